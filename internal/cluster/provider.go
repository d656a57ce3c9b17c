package cluster

import (
	"context"
	"time"

	"github.com/slipway-dev/slipway/internal/models"
)

// Provider is the cluster surface the deployment stage consumes: apply a
// release for one service to its namespace and wait for readiness.
type Provider interface {
	// Name returns the provider name (e.g., "helm").
	Name() string

	// ReleaseExists reports whether a prior release exists for the
	// (service, namespace) pair. Decides install vs upgrade.
	ReleaseExists(ctx context.Context, service, namespace string) (bool, error)

	// ApplyRelease installs or upgrades the service's release and blocks
	// until it reports ready or the wait timeout elapses. On timeout the
	// release is left in its current state; there is no auto-rollback.
	ApplyRelease(ctx context.Context, opts ReleaseOptions) (ReleaseOutcome, error)
}

// ReleaseOptions configures one release application.
type ReleaseOptions struct {
	Service   string
	Namespace string
	Chart     string
	ImageRef  string
	// Force re-applies resource specs that otherwise only change on spec
	// diff; stateful resources need it to pick up a new image tag even when
	// only metadata changed.
	Force       bool
	WaitTimeout time.Duration
}

// ReleaseOutcome reports how the release was applied and whether it became
// ready within the wait timeout.
type ReleaseOutcome struct {
	Action models.ReleaseAction
	Ready  bool
}
