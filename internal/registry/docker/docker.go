package docker

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"

	"github.com/slipway-dev/slipway/internal/models"
	"github.com/slipway-dev/slipway/internal/registry"
)

// Provider implements the registry provider with the docker and trivy CLIs.
type Provider struct{}

// NewProvider creates a new Docker registry provider.
func NewProvider() *Provider {
	return &Provider{}
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return "docker"
}

// Login authenticates docker against the registry. The token is fed over
// stdin so it never appears in the process table.
func (p *Provider) Login(ctx context.Context, reg string, creds models.Credentials) error {
	host := reg
	if i := strings.Index(host, "/"); i >= 0 {
		host = host[:i]
	}

	cmd := exec.CommandContext(ctx, "docker", "login", host, "-u", creds.RegistryUser, "--password-stdin")
	cmd.Stdin = strings.NewReader(creds.RegistryToken)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("docker login %s: %w: %s", host, err, stderr.String())
	}
	return nil
}

// Build builds a Docker image from the given context directory.
func (p *Provider) Build(ctx context.Context, opts registry.BuildOptions) (string, error) {
	args := []string{"build", "-t", opts.Tag}
	if opts.NoCache {
		args = append(args, "--no-cache")
	}
	for k, v := range opts.Args {
		args = append(args, "--build-arg", fmt.Sprintf("%s=%s", k, v))
	}
	args = append(args, opts.ContextDir)

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	out := opts.Output
	if out == nil {
		out = io.Discard
	}

	cmd := exec.CommandContext(ctx, "docker", args...)
	cmd.Stdout = out
	cmd.Stderr = out

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("building docker image: %w", err)
	}

	return opts.Tag, nil
}

// Push publishes the image and returns the digest the registry assigned.
func (p *Provider) Push(ctx context.Context, imageRef string) (string, error) {
	cmd := exec.CommandContext(ctx, "docker", "push", imageRef)
	var stderr bytes.Buffer
	cmd.Stdout = io.Discard
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("pushing docker image: %w: %s", err, stderr.String())
	}

	return p.imageDigest(ctx, imageRef)
}

// imageDigest reads the repo digest docker recorded for the pushed image.
func (p *Provider) imageDigest(ctx context.Context, imageRef string) (string, error) {
	cmd := exec.CommandContext(ctx, "docker", "inspect", "--format", "{{index .RepoDigests 0}}", imageRef)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("inspecting image digest: %w: %s", err, stderr.String())
	}

	ref := strings.TrimSpace(stdout.String())
	if i := strings.LastIndex(ref, "@"); i >= 0 {
		return ref[i+1:], nil
	}
	return "", fmt.Errorf("no repo digest recorded for %s", imageRef)
}
