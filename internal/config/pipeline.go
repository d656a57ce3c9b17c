package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/slipway-dev/slipway/internal/models"
)

// DefaultPipelineConfig returns a PipelineConfig with default values.
func DefaultPipelineConfig() models.PipelineConfig {
	return models.PipelineConfig{
		RunsDir:          "runs",
		MaxParallel:      1,
		BlockSeverity:    models.SeverityCritical,
		DeployTimeoutSec: 300,
	}
}

// LoadPipelineConfig loads and parses a pipeline.yaml file.
func LoadPipelineConfig(path string) (models.PipelineConfig, error) {
	cfg := DefaultPipelineConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading pipeline config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing pipeline config: %w", err)
	}

	// Validate service refs
	seen := make(map[string]bool)
	for i, ref := range cfg.Services {
		if ref.Name == "" {
			return cfg, fmt.Errorf("services[%d]: missing name", i)
		}
		if ref.Path == "" {
			return cfg, fmt.Errorf("services[%d] (%s): missing path", i, ref.Name)
		}
		if seen[ref.Name] {
			return cfg, fmt.Errorf("services[%d]: duplicate service name %q", i, ref.Name)
		}
		seen[ref.Name] = true
	}

	if cfg.Registry == "" {
		return cfg, fmt.Errorf("pipeline config: missing registry")
	}

	// Apply defaults for missing values
	if cfg.RunsDir == "" {
		cfg.RunsDir = "runs"
	}
	if cfg.MaxParallel <= 0 {
		cfg.MaxParallel = 1
	}
	if cfg.BlockSeverity == "" {
		cfg.BlockSeverity = models.SeverityCritical
	} else {
		sev := models.NormalizeSeverity(string(cfg.BlockSeverity))
		if sev == models.SeverityUnknown && !strings.EqualFold(string(cfg.BlockSeverity), string(models.SeverityUnknown)) {
			return cfg, fmt.Errorf("pipeline config: invalid block_severity %q", cfg.BlockSeverity)
		}
		cfg.BlockSeverity = sev
	}
	if cfg.DeployTimeoutSec <= 0 {
		cfg.DeployTimeoutSec = 300
	}

	return cfg, nil
}
