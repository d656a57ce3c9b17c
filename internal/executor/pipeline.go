package executor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/slipway-dev/slipway/internal/cluster"
	"github.com/slipway-dev/slipway/internal/models"
	"github.com/slipway-dev/slipway/internal/registry"
)

// ServiceExecutor runs one changed service to its terminal outcome.
type ServiceExecutor interface {
	Execute(ctx context.Context, svc models.ServiceDescriptor) models.ServiceResult
}

// NewServiceExecutorFunc creates a ServiceExecutor for one run.
type NewServiceExecutorFunc func(cfg models.PipelineConfig, reg registry.Provider, clu cluster.Provider, repoDir, tag, runDir string) ServiceExecutor

// ServicePipeline executes the strictly ordered per-service stages:
// build → scan → gate → publish → deploy. Each stage is a hard dependency on
// the prior one succeeding; every failure is converted into the service's
// terminal result and never touches sibling services.
type ServicePipeline struct {
	cfg      models.PipelineConfig
	registry registry.Provider
	cluster  cluster.Provider
	repoDir  string
	// tag is the triggering revision identifier; image tags are derived
	// from it deterministically.
	tag    string
	runDir string
}

// NewServicePipeline creates the default per-service executor.
func NewServicePipeline(cfg models.PipelineConfig, reg registry.Provider, clu cluster.Provider, repoDir, tag, runDir string) ServiceExecutor {
	return &ServicePipeline{
		cfg:      cfg,
		registry: reg,
		cluster:  clu,
		repoDir:  repoDir,
		tag:      tag,
		runDir:   runDir,
	}
}

// Execute runs the service through all stages and returns its result.
func (p *ServicePipeline) Execute(ctx context.Context, svc models.ServiceDescriptor) (result models.ServiceResult) {
	result = models.ServiceResult{
		Service: svc.Name,
		Timestamps: models.Timestamps{
			StartedAt: time.Now(),
		},
	}

	defer func() {
		result.Timestamps.EndedAt = time.Now()
		result.Durations.TotalSec = result.Timestamps.EndedAt.Sub(result.Timestamps.StartedAt).Seconds()
	}()

	outputDir := ""
	if p.runDir != "" {
		outputDir = filepath.Join(p.runDir, svc.Name)
		os.MkdirAll(outputDir, 0755)
	}

	artifact := &models.BuildArtifact{
		Service:  svc.Name,
		ImageRef: fmt.Sprintf("%s/%s:%s", p.cfg.Registry, svc.Name, p.tag),
	}
	result.Artifact = artifact

	// Stage 1: Build. Build failures are deterministic for the same source,
	// so they are final for this service.
	start := time.Now()
	err := p.build(ctx, svc, artifact, outputDir)
	buildDur := time.Since(start).Seconds()
	result.Durations.BuildSec = &buildDur

	if err != nil {
		result.Status = models.StatusBuildFailed
		result.Error = &models.ServiceError{Type: models.ErrBuildFailed, Message: err.Error()}
		return result
	}

	// Stage 2: Scan. Findings are recorded before the gate decides, so they
	// stay auditable even when publication is blocked.
	start = time.Now()
	findings, err := p.registry.Scan(ctx, artifact.ImageRef, registry.ScanOptions{
		Timeout: secs(svc.Config.Scan.TimeoutSec),
	})
	scanDur := time.Since(start).Seconds()
	result.Durations.ScanSec = &scanDur

	if err != nil {
		result.Status = models.StatusBuildFailed
		result.Error = &models.ServiceError{Type: models.ErrScanFailed, Message: err.Error()}
		return result
	}

	// Stage 3: Gate
	artifact.Scan = models.NewScanResult(findings, p.cfg.BlockSeverity)
	p.writeScanReport(outputDir, artifact.Scan)

	if !artifact.Scan.GatePassed {
		blocking := artifact.Scan.Blocking()
		slog.Warn("gate blocked publication",
			"service", svc.Name,
			"blocking_findings", len(blocking),
			"threshold", p.cfg.BlockSeverity)
		result.Status = models.StatusGateBlocked
		result.Error = &models.ServiceError{
			Type:    models.ErrGateBlocked,
			Message: fmt.Sprintf("%d finding(s) at or above %s", len(blocking), p.cfg.BlockSeverity),
		}
		return result
	}

	// Stage 4: Publish. Registry failures are infrastructure failures,
	// retryable by re-running the pipeline.
	start = time.Now()
	digest, err := p.registry.Push(ctx, artifact.ImageRef)
	publishDur := time.Since(start).Seconds()
	result.Durations.PublishSec = &publishDur

	if err != nil {
		result.Status = models.StatusPublishFailed
		result.Error = &models.ServiceError{Type: models.ErrPublishFailed, Message: err.Error()}
		return result
	}
	artifact.Digest = digest

	slog.Info("published image",
		"service", svc.Name,
		"image", artifact.ImageRef,
		"digest", digest)

	// Stage 5: Deploy
	start = time.Now()
	p.deploy(ctx, svc, artifact, &result)
	deployDur := time.Since(start).Seconds()
	result.Durations.DeploySec = &deployDur

	return result
}

func (p *ServicePipeline) build(ctx context.Context, svc models.ServiceDescriptor, artifact *models.BuildArtifact, outputDir string) error {
	opts := registry.BuildOptions{
		ContextDir: filepath.Join(p.repoDir, svc.Config.Build.Context),
		Tag:        artifact.ImageRef,
		Args:       svc.Config.Build.Args,
		Timeout:    secs(svc.Config.Build.TimeoutSec),
	}

	if outputDir != "" {
		logFile, err := os.Create(filepath.Join(outputDir, "build.log"))
		if err == nil {
			defer logFile.Close()
			opts.Output = logFile
		}
	}

	slog.Info("building image", "service", svc.Name, "image", artifact.ImageRef)
	_, err := p.registry.Build(ctx, opts)
	return err
}

func (p *ServicePipeline) deploy(ctx context.Context, svc models.ServiceDescriptor, artifact *models.BuildArtifact, result *models.ServiceResult) {
	if svc.Namespace == "" {
		result.Status = models.StatusDeployFailed
		result.Error = &models.ServiceError{
			Type:    models.ErrUnknownNamespace,
			Message: fmt.Sprintf("service %s has no namespace mapping", svc.Name),
		}
		return
	}

	outcome, err := p.cluster.ApplyRelease(ctx, cluster.ReleaseOptions{
		Service:     svc.Name,
		Namespace:   svc.Namespace,
		Chart:       svc.Config.Chart,
		ImageRef:    artifact.ImageRef,
		Force:       true,
		WaitTimeout: secs(p.cfg.DeployTimeoutSec),
	})

	deployment := &models.DeploymentOutcome{
		Service:   svc.Name,
		Namespace: svc.Namespace,
		Action:    outcome.Action,
		Ready:     outcome.Ready,
	}
	result.Deployment = deployment

	if err != nil {
		svcErr := &models.ServiceError{Type: models.ErrDeployFailed, Message: err.Error()}
		var typed *models.ServiceError
		if errors.As(err, &typed) {
			svcErr = typed
		}
		deployment.Error = svcErr
		result.Status = models.StatusDeployFailed
		result.Error = svcErr
		return
	}

	result.Status = models.StatusDeployed
}

func (p *ServicePipeline) writeScanReport(outputDir string, scan models.ScanResult) {
	if outputDir == "" {
		return
	}
	data, _ := json.MarshalIndent(scan, "", "  ")
	os.WriteFile(filepath.Join(outputDir, "scan.json"), data, 0644)
}

func secs(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
