package models

// Finding is a single vulnerability reported by the image scan.
type Finding struct {
	Severity Severity `json:"severity"`
	ID       string   `json:"id"`
	Package  string   `json:"package,omitempty"`
	Title    string   `json:"title,omitempty"`
}

// ScanResult holds the ordered scan findings and the gate decision. Findings
// are always recorded, even when the gate blocks publication, so they remain
// auditable independent of the outcome.
type ScanResult struct {
	Findings   []Finding `json:"findings"`
	GatePassed bool      `json:"gate_passed"`
	// Threshold is the blocking severity the gate was evaluated against.
	Threshold Severity `json:"threshold"`
}

// NewScanResult evaluates the gate: it passes iff no finding is at or above
// the blocking threshold.
func NewScanResult(findings []Finding, threshold Severity) ScanResult {
	res := ScanResult{
		Findings:   findings,
		GatePassed: true,
		Threshold:  threshold,
	}
	for _, f := range findings {
		if f.Severity.AtLeast(threshold) {
			res.GatePassed = false
			break
		}
	}
	return res
}

// Blocking returns the findings at or above the gate threshold.
func (r ScanResult) Blocking() []Finding {
	var blocking []Finding
	for _, f := range r.Findings {
		if f.Severity.AtLeast(r.Threshold) {
			blocking = append(blocking, f)
		}
	}
	return blocking
}

// BuildArtifact is the image produced for one changed service. It is owned
// by the service's own pipeline instance and never shared between services.
type BuildArtifact struct {
	Service string `json:"service"`
	// ImageRef is registry/repository:tag; the tag is deterministically the
	// triggering revision identifier.
	ImageRef string `json:"image_ref"`
	// Digest is assigned by the registry on push. Empty until a successful
	// publish; a failed gate never yields a digest.
	Digest string     `json:"digest,omitempty"`
	Scan   ScanResult `json:"scan"`
}

// ReleaseAction is how a release was applied to the cluster.
type ReleaseAction string

const (
	ActionInstall ReleaseAction = "install"
	ActionUpgrade ReleaseAction = "upgrade"
)

// DeploymentOutcome is the terminal record of one service's deployment.
type DeploymentOutcome struct {
	Service   string        `json:"service"`
	Namespace string        `json:"namespace"`
	Action    ReleaseAction `json:"action"`
	// Ready reports whether the release rolled out within the readiness
	// timeout. On timeout the release is left as-is for operator decision.
	Ready bool          `json:"ready"`
	Error *ServiceError `json:"error,omitempty"`
}
