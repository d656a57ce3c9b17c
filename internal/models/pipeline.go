package models

// PipelineConfig represents the parsed pipeline.yaml configuration.
type PipelineConfig struct {
	Name        string `yaml:"name" json:"name"`
	RunsDir     string `yaml:"runs_dir" json:"runs_dir"`
	MaxParallel int    `yaml:"max_parallel" json:"max_parallel"`
	// Registry is the image registry prefix, e.g. registry.example.com/voting.
	Registry string `yaml:"registry" json:"registry"`
	// BlockSeverity is the gate threshold: any finding at or above it blocks
	// publication. Defaults to CRITICAL, the highest level.
	BlockSeverity    Severity `yaml:"block_severity" json:"block_severity"`
	DeployTimeoutSec float64  `yaml:"deploy_timeout_sec" json:"deploy_timeout_sec"`
	// SharedPaths are release-template paths whose modification invalidates
	// every service (templates affect all releases).
	SharedPaths []string `yaml:"shared_paths" json:"shared_paths,omitempty"`
	// TriggerPaths scope pipeline activation: the run is a no-op unless the
	// modified-path set intersects them. Empty means always active.
	TriggerPaths []string `yaml:"trigger_paths" json:"trigger_paths,omitempty"`
	// Namespaces is the static service→namespace mapping table.
	Namespaces map[string]string `yaml:"namespaces" json:"namespaces"`
	Services   []ServiceRef      `yaml:"services" json:"services"`
}

// ServiceRef names one deployable service and its directory in the
// repository. Per-service build configuration lives in <path>/service.toml.
type ServiceRef struct {
	Name string `yaml:"name" json:"name"`
	Path string `yaml:"path" json:"path"`
}
