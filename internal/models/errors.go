package models

// ErrorType identifies the category of error that occurred.
type ErrorType string

const (
	// Change detection (fatal to the whole run)
	ErrDiffUnavailable ErrorType = "diff_unavailable"

	// Image pipeline
	ErrBuildFailed   ErrorType = "build_failed"
	ErrScanFailed    ErrorType = "scan_failed"
	ErrGateBlocked   ErrorType = "gate_blocked"
	ErrPublishFailed ErrorType = "publish_failed"

	// Deployment
	ErrUnknownNamespace ErrorType = "unknown_namespace"
	ErrDeployFailed     ErrorType = "deploy_failed"
	ErrDeployTimeout    ErrorType = "deploy_timeout"

	// Catch-all
	ErrInternalError ErrorType = "internal_error"
)

// ServiceError is the terminal error recorded for a single service.
// Per-service errors never abort sibling services; they are converted
// into the service's ServiceResult at the executor boundary.
type ServiceError struct {
	Type    ErrorType `json:"type"`
	Message string    `json:"message"`
}

func (e *ServiceError) Error() string {
	return string(e.Type) + ": " + e.Message
}
