package models

import "time"

// ServiceStatus is a service's terminal status within one run.
type ServiceStatus string

const (
	StatusSkipped       ServiceStatus = "skipped"
	StatusBuildFailed   ServiceStatus = "build-failed"
	StatusGateBlocked   ServiceStatus = "gate-blocked"
	StatusPublishFailed ServiceStatus = "publish-failed"
	StatusDeployFailed  ServiceStatus = "deploy-failed"
	StatusDeployed      ServiceStatus = "deployed"
)

// Success reports whether the status counts as a successful end state for
// the run's exit status.
func (s ServiceStatus) Success() bool {
	return s == StatusDeployed || s == StatusSkipped
}

// ServiceResult contains the outcome of one service's pipeline run.
type ServiceResult struct {
	Service    string             `json:"service"`
	Status     ServiceStatus      `json:"status"`
	Artifact   *BuildArtifact     `json:"artifact,omitempty"`
	Deployment *DeploymentOutcome `json:"deployment,omitempty"`
	Error      *ServiceError      `json:"error,omitempty"`
	Durations  Durations          `json:"durations"`
	Timestamps Timestamps         `json:"timestamps"`
}

type Durations struct {
	TotalSec   float64  `json:"total_sec"`
	BuildSec   *float64 `json:"build_sec,omitempty"`
	ScanSec    *float64 `json:"scan_sec,omitempty"`
	PublishSec *float64 `json:"publish_sec,omitempty"`
	DeploySec  *float64 `json:"deploy_sec,omitempty"`
}

type Timestamps struct {
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`
}
