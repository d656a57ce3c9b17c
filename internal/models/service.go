package models

// ServiceDescriptor is the static definition of one deployable unit: its
// trigger paths, target namespace and build/chart configuration. Descriptors
// are loaded once at run start and never mutated afterwards.
type ServiceDescriptor struct {
	Name string `json:"name"`
	// Path is the service directory relative to the repository root.
	Path string `json:"path"`
	// SourcePaths are the path prefixes whose modification triggers this
	// service. Defaults to the service path itself.
	SourcePaths []string `json:"source_paths"`
	// Namespace is resolved from the pipeline config's static mapping table.
	// Empty when the service has no mapping entry; deployment then fails
	// with unknown_namespace for this service only.
	Namespace string        `json:"namespace"`
	Config    ServiceConfig `json:"config"`
}

// ServiceConfig represents the parsed service.toml of one service directory.
type ServiceConfig struct {
	SourcePaths []string           `toml:"source_paths" json:"source_paths,omitempty"`
	Chart       string             `toml:"chart" json:"chart"`
	Build       BuildServiceConfig `toml:"build" json:"build"`
	Scan        ScanServiceConfig  `toml:"scan" json:"scan"`
}

type BuildServiceConfig struct {
	// Context is the image build context, relative to the repository root.
	// Defaults to the service path.
	Context    string            `toml:"context" json:"context"`
	Args       map[string]string `toml:"args" json:"args,omitempty"`
	TimeoutSec float64           `toml:"timeout_sec" json:"timeout_sec"`
}

type ScanServiceConfig struct {
	TimeoutSec float64 `toml:"timeout_sec" json:"timeout_sec"`
}

// ChangeSet is the set of services whose source paths intersect the modified
// paths of the triggering revision range. Computed once per run.
type ChangeSet struct {
	Services []ServiceDescriptor `json:"services"`
	// ModifiedPaths is the full modified-path list the set was computed
	// from, kept for audit.
	ModifiedPaths []string `json:"modified_paths"`
}

// Empty reports whether the change set contains no services. An empty set is
// valid and ends the run with zero work performed.
func (c ChangeSet) Empty() bool {
	return len(c.Services) == 0
}

// Names returns the changed service names in change-set order.
func (c ChangeSet) Names() []string {
	names := make([]string, 0, len(c.Services))
	for _, svc := range c.Services {
		names = append(names, svc.Name)
	}
	return names
}

// Credentials are the opaque secrets injected at run start. They are held in
// memory for the duration of one run and never persisted.
type Credentials struct {
	RegistryUser  string
	RegistryToken string
	KubeServer    string
	KubeToken     string
	KubeCAFile    string
}
