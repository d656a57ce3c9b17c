package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/slipway-dev/slipway/internal/cluster"
	"github.com/slipway-dev/slipway/internal/models"
	"github.com/slipway-dev/slipway/internal/registry"
	"github.com/slipway-dev/slipway/internal/report"
)

// Orchestrator fans the change set out over a bounded worker pool. Each
// changed service owns its whole build→scan→gate→publish→deploy sequence;
// services never share state and never wait on each other beyond pool
// capacity.
type Orchestrator struct {
	cfg         models.PipelineConfig
	registry    registry.Provider
	cluster     cluster.Provider
	repoDir     string
	newExecutor NewServiceExecutorFunc
}

// NewOrchestrator creates a new run orchestrator.
func NewOrchestrator(cfg models.PipelineConfig, reg registry.Provider, clu cluster.Provider, repoDir string, executorFactory NewServiceExecutorFunc) *Orchestrator {
	return &Orchestrator{
		cfg:         cfg,
		registry:    reg,
		cluster:     clu,
		repoDir:     repoDir,
		newExecutor: executorFactory,
	}
}

// Run executes every service in the change set and returns the finalized
// run summary. An empty change set is valid and yields an empty, successful
// summary with zero work performed.
func (o *Orchestrator) Run(ctx context.Context, cs models.ChangeSet, branch, oldRev, newRev string) (*models.RunSummary, error) {
	info := report.RunInfo{
		RunID:     uuid.NewString(),
		Name:      o.cfg.Name,
		Branch:    branch,
		OldRev:    oldRev,
		NewRev:    newRev,
		StartedAt: time.Now(),
	}

	if cs.Empty() {
		slog.Info("change set is empty, nothing to do")
		info.EndedAt = time.Now()
		return report.Aggregate(info, cs, nil, false), nil
	}

	runDir, err := o.createRunDir(info, cs)
	if err != nil {
		return nil, err
	}
	info.RunDir = runDir

	tag := shortRev(newRev)
	nWorkers := o.cfg.MaxParallel
	if nWorkers <= 0 {
		nWorkers = 1
	}
	if nWorkers > len(cs.Services) {
		nWorkers = len(cs.Services)
	}

	slog.Info("starting run",
		"run_id", info.RunID,
		"services", cs.Names(),
		"workers", nWorkers,
		"tag", tag)

	results := o.runConcurrent(ctx, cs.Services, nWorkers, tag, runDir)
	cancelled := len(results) < len(cs.Services)

	info.EndedAt = time.Now()
	return report.Aggregate(info, cs, results, cancelled), nil
}

// runConcurrent executes services using a fan-out/fan-in pattern and
// returns the collected results. Services never fed to a worker (context
// cancelled) are absent; the aggregation step backfills them as skipped.
func (o *Orchestrator) runConcurrent(ctx context.Context, services []models.ServiceDescriptor, nWorkers int, tag, runDir string) []models.ServiceResult {
	taskChan := make(chan models.ServiceDescriptor) // unbuffered
	resultChan := make(chan models.ServiceResult, len(services))

	var wg sync.WaitGroup

	// Start workers
	for i := 0; i < nWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			executor := o.newExecutor(o.cfg, o.registry, o.cluster, o.repoDir, tag, runDir)

			for svc := range taskChan {
				result := executor.Execute(ctx, svc)

				resultJSON, _ := json.MarshalIndent(result, "", "  ")
				os.WriteFile(filepath.Join(runDir, svc.Name, "outcome.json"), resultJSON, 0644)

				resultChan <- result
			}
		}()
	}

	// Feeder goroutine: sends services to workers, respects context
	// cancellation. A cancelled feed never aborts services already running.
	go func() {
		defer close(taskChan)
		for _, svc := range services {
			select {
			case <-ctx.Done():
				return
			case taskChan <- svc:
			}
		}
	}()

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	var results []models.ServiceResult
	for result := range resultChan {
		results = append(results, result)
	}

	return results
}

// createRunDir prepares the per-run output directory and records the run's
// inputs for audit.
func (o *Orchestrator) createRunDir(info report.RunInfo, cs models.ChangeSet) (string, error) {
	runName := fmt.Sprintf("%s__%s", time.Now().Format("2006-01-02__15-04-05"), shortRev(info.NewRev))
	runDir := filepath.Join(o.cfg.RunsDir, runName)

	if _, err := os.Stat(runDir); err == nil {
		return "", fmt.Errorf("run directory already exists: %s (will not overwrite existing results)", runDir)
	}
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", fmt.Errorf("creating run directory: %w", err)
	}

	for _, svc := range cs.Services {
		if err := os.MkdirAll(filepath.Join(runDir, svc.Name), 0755); err != nil {
			return "", fmt.Errorf("creating service directory: %w", err)
		}
	}

	cfgJSON, _ := json.MarshalIndent(o.cfg, "", "  ")
	os.WriteFile(filepath.Join(runDir, "config.json"), cfgJSON, 0644)

	csJSON, _ := json.MarshalIndent(cs, "", "  ")
	os.WriteFile(filepath.Join(runDir, "changeset.json"), csJSON, 0644)

	return runDir, nil
}

// shortRev abbreviates a revision identifier the way registries show tags.
// Short inputs (branch names, test revisions) pass through unchanged.
func shortRev(rev string) string {
	if len(rev) > 12 {
		return rev[:12]
	}
	return rev
}
