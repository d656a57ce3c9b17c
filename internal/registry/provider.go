package registry

import (
	"context"
	"io"
	"time"

	"github.com/slipway-dev/slipway/internal/models"
)

// Provider is the image registry surface the pipeline consumes: build a
// local image, scan it, and push it. Publication is the only stage with a
// registry side effect.
type Provider interface {
	// Name returns the provider name (e.g., "docker").
	Name() string

	// Login authenticates against the registry with the injected
	// credentials. Called once at run start when a token is configured.
	Login(ctx context.Context, registry string, creds models.Credentials) error

	// Build constructs an image from the given build context and tags it.
	// Returns the image reference.
	Build(ctx context.Context, opts BuildOptions) (string, error)

	// Scan runs a vulnerability scan against a built image and returns the
	// findings in scanner order.
	Scan(ctx context.Context, imageRef string, opts ScanOptions) ([]models.Finding, error)

	// Push publishes the image and returns the digest assigned by the
	// registry.
	Push(ctx context.Context, imageRef string) (string, error)
}

// BuildOptions configures an image build.
type BuildOptions struct {
	ContextDir string
	Tag        string
	Args       map[string]string
	Timeout    time.Duration
	NoCache    bool
	// Output receives the build tool's combined output. Nil discards it.
	Output io.Writer
}

// ScanOptions configures a vulnerability scan.
type ScanOptions struct {
	Timeout time.Duration
}
