package helm

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"

	"github.com/slipway-dev/slipway/internal/cluster"
	"github.com/slipway-dev/slipway/internal/models"
)

// Provider implements the cluster provider with the helm CLI.
type Provider struct {
	// RepoDir is the repository root chart paths are relative to.
	RepoDir string
	creds   models.Credentials
}

// NewProvider creates a helm provider with the injected cluster credentials.
// Credentials are passed as helm flags per invocation and never persisted.
func NewProvider(repoDir string, creds models.Credentials) *Provider {
	return &Provider{RepoDir: repoDir, creds: creds}
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return "helm"
}

// kubeFlags returns the connection flags for the injected credentials.
func (p *Provider) kubeFlags() []string {
	var flags []string
	if p.creds.KubeServer != "" {
		flags = append(flags, "--kube-apiserver", p.creds.KubeServer)
	}
	if p.creds.KubeToken != "" {
		flags = append(flags, "--kube-token", p.creds.KubeToken)
	}
	if p.creds.KubeCAFile != "" {
		flags = append(flags, "--kube-ca-file", p.creds.KubeCAFile)
	}
	return flags
}

// ReleaseExists checks for a prior release via helm status.
func (p *Provider) ReleaseExists(ctx context.Context, service, namespace string) (bool, error) {
	args := append([]string{"status", service, "--namespace", namespace}, p.kubeFlags()...)

	cmd := exec.CommandContext(ctx, "helm", args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if strings.Contains(stderr.String(), "not found") {
			return false, nil
		}
		return false, fmt.Errorf("helm status %s/%s: %w: %s", namespace, service, err, strings.TrimSpace(stderr.String()))
	}
	return true, nil
}

// ApplyRelease applies the service's chart with the new image reference and
// waits for readiness. Re-applying the same image reference is a no-op
// upgrade: the apply call is safe to repeat.
func (p *Provider) ApplyRelease(ctx context.Context, opts cluster.ReleaseOptions) (cluster.ReleaseOutcome, error) {
	exists, err := p.ReleaseExists(ctx, opts.Service, opts.Namespace)
	if err != nil {
		return cluster.ReleaseOutcome{}, err
	}

	outcome := cluster.ReleaseOutcome{Action: models.ActionInstall}
	if exists {
		outcome.Action = models.ActionUpgrade
	}

	repository, tag := splitImageRef(opts.ImageRef)

	args := []string{
		"upgrade", "--install", opts.Service, opts.Chart,
		"--namespace", opts.Namespace,
		"--set", fmt.Sprintf("image.repository=%s", repository),
		"--set", fmt.Sprintf("image.tag=%s", tag),
		"--wait",
	}
	if opts.Force {
		args = append(args, "--force")
	}
	if opts.WaitTimeout > 0 {
		args = append(args, "--timeout", opts.WaitTimeout.String())
	}
	args = append(args, p.kubeFlags()...)

	slog.Info("applying release",
		"service", opts.Service,
		"namespace", opts.Namespace,
		"action", outcome.Action,
		"image", opts.ImageRef)

	cmd := exec.CommandContext(ctx, "helm", args...)
	cmd.Dir = p.RepoDir
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if errors.Is(ctx.Err(), context.DeadlineExceeded) || strings.Contains(msg, "timed out") {
			// Release stays as-is for operator decision
			return outcome, &models.ServiceError{
				Type:    models.ErrDeployTimeout,
				Message: fmt.Sprintf("release %s/%s not ready within %s", opts.Namespace, opts.Service, opts.WaitTimeout),
			}
		}
		return outcome, &models.ServiceError{
			Type:    models.ErrDeployFailed,
			Message: fmt.Sprintf("helm upgrade %s/%s: %s: %s", opts.Namespace, opts.Service, err, msg),
		}
	}

	outcome.Ready = true
	return outcome, nil
}

// splitImageRef splits registry/repository:tag at the tag separator.
func splitImageRef(ref string) (repository, tag string) {
	i := strings.LastIndex(ref, ":")
	if i < 0 || strings.Contains(ref[i:], "/") {
		return ref, "latest"
	}
	return ref[:i], ref[i+1:]
}
