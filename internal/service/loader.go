package service

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/BurntSushi/toml"
	"golang.org/x/sync/errgroup"

	"github.com/slipway-dev/slipway/internal/models"
)

// DefaultServiceConfig returns a ServiceConfig with default values.
func DefaultServiceConfig() models.ServiceConfig {
	return models.ServiceConfig{
		Build: models.BuildServiceConfig{
			TimeoutSec: 600.0,
		},
		Scan: models.ScanServiceConfig{
			TimeoutSec: 300.0,
		},
	}
}

// LoadServiceConfig loads and parses a service.toml from the given
// filesystem. A missing service.toml is not an error; the defaults apply.
func LoadServiceConfig(fsys fs.FS) (models.ServiceConfig, error) {
	cfg := DefaultServiceConfig()

	data, err := fs.ReadFile(fsys, "service.toml")
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading service.toml: %w", err)
	}

	if _, err := toml.Decode(string(data), &cfg); err != nil {
		return cfg, fmt.Errorf("parsing service.toml: %w", err)
	}

	return cfg, nil
}

// Load resolves every configured service into a ServiceDescriptor: reads the
// per-service service.toml, applies defaults, and resolves the target
// namespace from the pipeline config's static mapping table. Services are
// loaded in parallel.
func Load(ctx context.Context, cfg models.PipelineConfig, repoDir string) ([]models.ServiceDescriptor, error) {
	descriptors := make(map[string]models.ServiceDescriptor)
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	for _, ref := range cfg.Services {
		ref := ref
		g.Go(func() error {
			desc, err := loadOne(ctx, cfg, repoDir, ref)
			if err != nil {
				return fmt.Errorf("loading service %s: %w", ref.Name, err)
			}
			mu.Lock()
			descriptors[ref.Name] = desc
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Preserve pipeline config order
	out := make([]models.ServiceDescriptor, 0, len(cfg.Services))
	for _, ref := range cfg.Services {
		out = append(out, descriptors[ref.Name])
	}

	slog.Debug("loaded service descriptors", "count", len(out))
	return out, nil
}

func loadOne(ctx context.Context, cfg models.PipelineConfig, repoDir string, ref models.ServiceRef) (models.ServiceDescriptor, error) {
	if err := ctx.Err(); err != nil {
		return models.ServiceDescriptor{}, err
	}

	dir := filepath.Join(repoDir, ref.Path)
	if _, err := os.Stat(dir); err != nil {
		return models.ServiceDescriptor{}, fmt.Errorf("service directory: %w", err)
	}

	svcCfg, err := LoadServiceConfig(os.DirFS(dir))
	if err != nil {
		return models.ServiceDescriptor{}, err
	}

	if svcCfg.Build.Context == "" {
		svcCfg.Build.Context = ref.Path
	}
	if svcCfg.Chart == "" {
		svcCfg.Chart = filepath.Join("helm", ref.Name)
	}

	sourcePaths := svcCfg.SourcePaths
	if len(sourcePaths) == 0 {
		sourcePaths = []string{ref.Path}
	}

	return models.ServiceDescriptor{
		Name:        ref.Name,
		Path:        ref.Path,
		SourcePaths: sourcePaths,
		Namespace:   cfg.Namespaces[ref.Name],
		Config:      svcCfg,
	}, nil
}
