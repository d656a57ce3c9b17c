package executor_test

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/slipway-dev/slipway/internal/cluster"
	"github.com/slipway-dev/slipway/internal/executor"
	"github.com/slipway-dev/slipway/internal/models"
	"github.com/slipway-dev/slipway/internal/registry"
	"github.com/slipway-dev/slipway/internal/report"
)

// fakeRegistry keys behavior by service name, extracted from the image tag
// (registry/<service>:<tag>).
type fakeRegistry struct {
	mu       sync.Mutex
	buildErr map[string]error
	scanErr  map[string]error
	pushErr  map[string]error
	findings map[string][]models.Finding

	builds []string
	scans  []string
	pushes []string
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{
		buildErr: make(map[string]error),
		scanErr:  make(map[string]error),
		pushErr:  make(map[string]error),
		findings: make(map[string][]models.Finding),
	}
}

func svcFromRef(imageRef string) string {
	// registry.example.com/voting/<service>:<tag>
	repo := imageRef
	if i := strings.LastIndex(repo, ":"); i >= 0 {
		repo = repo[:i]
	}
	if i := strings.LastIndex(repo, "/"); i >= 0 {
		repo = repo[i+1:]
	}
	return repo
}

func (f *fakeRegistry) Name() string { return "fake" }

func (f *fakeRegistry) Login(ctx context.Context, reg string, creds models.Credentials) error {
	return nil
}

func (f *fakeRegistry) Build(ctx context.Context, opts registry.BuildOptions) (string, error) {
	svc := svcFromRef(opts.Tag)
	f.mu.Lock()
	f.builds = append(f.builds, svc)
	f.mu.Unlock()
	if err := f.buildErr[svc]; err != nil {
		return "", err
	}
	return opts.Tag, nil
}

func (f *fakeRegistry) Scan(ctx context.Context, imageRef string, opts registry.ScanOptions) ([]models.Finding, error) {
	svc := svcFromRef(imageRef)
	f.mu.Lock()
	f.scans = append(f.scans, svc)
	f.mu.Unlock()
	if err := f.scanErr[svc]; err != nil {
		return nil, err
	}
	return f.findings[svc], nil
}

func (f *fakeRegistry) Push(ctx context.Context, imageRef string) (string, error) {
	svc := svcFromRef(imageRef)
	f.mu.Lock()
	f.pushes = append(f.pushes, svc)
	f.mu.Unlock()
	if err := f.pushErr[svc]; err != nil {
		return "", err
	}
	return "sha256:" + svc, nil
}

type fakeCluster struct {
	mu       sync.Mutex
	existing map[string]bool
	applyErr map[string]error

	applies []cluster.ReleaseOptions
}

func newFakeCluster() *fakeCluster {
	return &fakeCluster{
		existing: make(map[string]bool),
		applyErr: make(map[string]error),
	}
}

func (f *fakeCluster) Name() string { return "fake" }

func (f *fakeCluster) ReleaseExists(ctx context.Context, service, namespace string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.existing[namespace+"/"+service], nil
}

func (f *fakeCluster) ApplyRelease(ctx context.Context, opts cluster.ReleaseOptions) (cluster.ReleaseOutcome, error) {
	f.mu.Lock()
	f.applies = append(f.applies, opts)
	exists := f.existing[opts.Namespace+"/"+opts.Service]
	f.mu.Unlock()

	outcome := cluster.ReleaseOutcome{Action: models.ActionInstall}
	if exists {
		outcome.Action = models.ActionUpgrade
	}

	if err := f.applyErr[opts.Service]; err != nil {
		return outcome, err
	}

	f.mu.Lock()
	f.existing[opts.Namespace+"/"+opts.Service] = true
	f.mu.Unlock()

	outcome.Ready = true
	return outcome, nil
}

func testConfig(t *testing.T) models.PipelineConfig {
	return models.PipelineConfig{
		Name:             "example-voting-app",
		RunsDir:          t.TempDir(),
		MaxParallel:      2,
		Registry:         "registry.example.com/voting",
		BlockSeverity:    models.SeverityCritical,
		DeployTimeoutSec: 5,
		Namespaces: map[string]string{
			"vote":   "frontend",
			"result": "frontend",
			"worker": "backend",
		},
	}
}

func descriptor(name, namespace string) models.ServiceDescriptor {
	return models.ServiceDescriptor{
		Name:        name,
		Path:        name,
		SourcePaths: []string{name},
		Namespace:   namespace,
		Config: models.ServiceConfig{
			Chart: "helm/" + name,
			Build: models.BuildServiceConfig{Context: name},
		},
	}
}

func changeSet(services ...models.ServiceDescriptor) models.ChangeSet {
	var paths []string
	for _, svc := range services {
		paths = append(paths, svc.Path+"/main")
	}
	return models.ChangeSet{Services: services, ModifiedPaths: paths}
}

func runOrchestrator(t *testing.T, cfg models.PipelineConfig, reg registry.Provider, clu cluster.Provider, cs models.ChangeSet) *models.RunSummary {
	t.Helper()
	o := executor.NewOrchestrator(cfg, reg, clu, t.TempDir(), executor.NewServicePipeline)
	summary, err := o.Run(context.Background(), cs, "main", "aaa1111", "bbb2222")
	if err != nil {
		t.Fatalf("running orchestrator: %v", err)
	}
	return summary
}

func TestSingleServiceDeployed(t *testing.T) {
	reg := newFakeRegistry()
	// One LOW finding is below the CRITICAL threshold: gate passes
	reg.findings["vote"] = []models.Finding{{Severity: models.SeverityLow, ID: "CVE-2024-1111"}}
	clu := newFakeCluster()

	summary := runOrchestrator(t, testConfig(t), reg, clu, changeSet(descriptor("vote", "frontend")))

	if summary.Services["vote"] != models.StatusDeployed {
		t.Fatalf("expected vote deployed, got %s", summary.Services["vote"])
	}
	if report.ExitCode(summary) != 0 {
		t.Error("expected exit code 0")
	}

	if len(clu.applies) != 1 || clu.applies[0].Namespace != "frontend" {
		t.Fatalf("expected one apply to frontend, got %v", clu.applies)
	}

	result := summary.Results[0]
	if result.Artifact == nil || result.Artifact.Digest == "" {
		t.Error("expected published artifact with digest")
	}
	if result.Deployment == nil || !result.Deployment.Ready {
		t.Error("expected ready deployment outcome")
	}
	if result.Deployment.Action != models.ActionInstall {
		t.Errorf("expected install on first deploy, got %s", result.Deployment.Action)
	}
}

func TestGateBlockedNeverPublishes(t *testing.T) {
	reg := newFakeRegistry()
	reg.findings["worker"] = []models.Finding{{Severity: models.SeverityCritical, ID: "CVE-2024-2222"}}
	clu := newFakeCluster()

	summary := runOrchestrator(t, testConfig(t), reg, clu, changeSet(descriptor("worker", "backend")))

	if summary.Services["worker"] != models.StatusGateBlocked {
		t.Fatalf("expected worker gate-blocked, got %s", summary.Services["worker"])
	}
	if len(reg.pushes) != 0 {
		t.Error("gate-blocked artifact must never be published")
	}
	if len(clu.applies) != 0 {
		t.Error("gate-blocked service must never be deployed")
	}

	// Findings stay auditable even though publication was blocked
	result := summary.Results[0]
	if result.Artifact == nil || len(result.Artifact.Scan.Findings) != 1 {
		t.Error("expected scan findings recorded on blocked artifact")
	}
	if result.Artifact.Digest != "" {
		t.Error("blocked artifact must not carry a digest")
	}
	if report.ExitCode(summary) != 1 {
		t.Error("expected exit code 1")
	}
}

func TestIndependentOutcomes(t *testing.T) {
	reg := newFakeRegistry()
	clu := newFakeCluster()
	clu.applyErr["vote"] = &models.ServiceError{
		Type:    models.ErrDeployTimeout,
		Message: "release frontend/vote not ready within 5s",
	}

	cs := changeSet(descriptor("vote", "frontend"), descriptor("result", "frontend"))
	summary := runOrchestrator(t, testConfig(t), reg, clu, cs)

	if summary.Services["vote"] != models.StatusDeployFailed {
		t.Errorf("expected vote deploy-failed, got %s", summary.Services["vote"])
	}
	if summary.Services["result"] != models.StatusDeployed {
		t.Errorf("expected result deployed, got %s", summary.Services["result"])
	}
	if report.ExitCode(summary) != 1 {
		t.Error("expected non-zero exit for partial failure")
	}

	for _, r := range summary.Results {
		if r.Service != "vote" {
			continue
		}
		if r.Error == nil || r.Error.Type != models.ErrDeployTimeout {
			t.Errorf("expected deploy_timeout error, got %v", r.Error)
		}
		if r.Deployment == nil || r.Deployment.Ready {
			t.Error("expected not-ready deployment outcome on timeout")
		}
	}
}

func TestEmptyChangeSet(t *testing.T) {
	reg := newFakeRegistry()
	clu := newFakeCluster()

	summary := runOrchestrator(t, testConfig(t), reg, clu, models.ChangeSet{})

	if len(summary.Services) != 0 {
		t.Errorf("expected empty summary, got %v", summary.Services)
	}
	if report.ExitCode(summary) != 0 {
		t.Error("expected success exit for empty change set")
	}
	if len(reg.builds) != 0 {
		t.Error("expected no builds for empty change set")
	}
	if summary.RunDir != "" {
		t.Error("expected no run directory for empty change set")
	}
}

func TestBuildFailureIsolation(t *testing.T) {
	reg := newFakeRegistry()
	reg.buildErr["vote"] = fmt.Errorf("docker build exited with code 1")
	clu := newFakeCluster()

	cs := changeSet(descriptor("vote", "frontend"), descriptor("result", "frontend"))
	summary := runOrchestrator(t, testConfig(t), reg, clu, cs)

	if summary.Services["vote"] != models.StatusBuildFailed {
		t.Errorf("expected vote build-failed, got %s", summary.Services["vote"])
	}
	if summary.Services["result"] != models.StatusDeployed {
		t.Errorf("expected result deployed despite vote failure, got %s", summary.Services["result"])
	}

	// A failed build never reaches the scanner
	for _, svc := range reg.scans {
		if svc == "vote" {
			t.Error("vote must not be scanned after build failure")
		}
	}
}

func TestPublishFailed(t *testing.T) {
	reg := newFakeRegistry()
	reg.pushErr["vote"] = fmt.Errorf("registry auth failure")
	clu := newFakeCluster()

	summary := runOrchestrator(t, testConfig(t), reg, clu, changeSet(descriptor("vote", "frontend")))

	if summary.Services["vote"] != models.StatusPublishFailed {
		t.Fatalf("expected publish-failed, got %s", summary.Services["vote"])
	}
	if len(clu.applies) != 0 {
		t.Error("deploy must not start after failed publish")
	}
}

func TestUnknownNamespaceMapping(t *testing.T) {
	reg := newFakeRegistry()
	clu := newFakeCluster()

	// redis has no entry in the namespace table
	summary := runOrchestrator(t, testConfig(t), reg, clu, changeSet(descriptor("redis", "")))

	if summary.Services["redis"] != models.StatusDeployFailed {
		t.Fatalf("expected deploy-failed, got %s", summary.Services["redis"])
	}
	result := summary.Results[0]
	if result.Error == nil || result.Error.Type != models.ErrUnknownNamespace {
		t.Errorf("expected unknown_namespace error, got %v", result.Error)
	}
	if len(clu.applies) != 0 {
		t.Error("no cluster call may happen without a namespace mapping")
	}
}

func TestDeployIdempotence(t *testing.T) {
	reg := newFakeRegistry()
	clu := newFakeCluster()

	cfg := testConfig(t)
	cs := changeSet(descriptor("vote", "frontend"))

	first := runOrchestrator(t, cfg, reg, clu, cs)
	if first.Services["vote"] != models.StatusDeployed {
		t.Fatalf("expected first run deployed, got %s", first.Services["vote"])
	}

	cfg.RunsDir = t.TempDir()
	second := runOrchestrator(t, cfg, reg, clu, cs)
	if second.Services["vote"] != models.StatusDeployed {
		t.Fatalf("expected rerun deployed again, got %s", second.Services["vote"])
	}

	if len(clu.applies) != 2 {
		t.Fatalf("expected two applies, got %d", len(clu.applies))
	}
	if clu.applies[0].Namespace != clu.applies[1].Namespace {
		t.Error("rerun must target the same namespace")
	}
	for _, r := range second.Results {
		if r.Deployment.Action != models.ActionUpgrade {
			t.Errorf("expected no-op upgrade on rerun, got %s", r.Deployment.Action)
		}
	}
}

func TestEveryServiceReported(t *testing.T) {
	reg := newFakeRegistry()
	clu := newFakeCluster()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cs := changeSet(descriptor("vote", "frontend"), descriptor("result", "frontend"))
	o := executor.NewOrchestrator(testConfig(t), reg, clu, t.TempDir(), executor.NewServicePipeline)
	summary, err := o.Run(ctx, cs, "main", "aaa1111", "bbb2222")
	if err != nil {
		t.Fatalf("running orchestrator: %v", err)
	}

	// Whatever the cancellation timing, the summary carries one terminal
	// entry per change set member
	if len(summary.Services) != 2 {
		t.Fatalf("expected 2 entries, got %v", summary.Services)
	}
	for svc, status := range summary.Services {
		if status != models.StatusDeployed && status != models.StatusSkipped {
			t.Errorf("unexpected status %s for %s", status, svc)
		}
	}
}
