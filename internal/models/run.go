package models

import "time"

// RunSummary is the aggregate outcome of one pipeline run: one terminal
// status per changed service, plus the triggering revision range and branch.
// It is finalized and emitted exactly once at run end.
type RunSummary struct {
	RunID     string `json:"run_id"`
	Name      string `json:"name"`
	RunDir    string `json:"run_dir,omitempty"`
	Branch    string `json:"branch"`
	OldRev    string `json:"old_rev"`
	NewRev    string `json:"new_rev"`
	Cancelled bool   `json:"cancelled"`

	TotalServices int `json:"total_services"`
	Deployed      int `json:"deployed"`
	Failed        int `json:"failed"`
	Skipped       int `json:"skipped"`

	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`
	TotalSec  float64   `json:"total_sec"`

	// Services maps every service in the change set to its terminal status.
	Services map[string]ServiceStatus `json:"services"`
	Results  []ServiceResult          `json:"results"`
}

// Success reports whether every changed service ended deployed or skipped
// and the run was not cancelled mid-flight.
func (s *RunSummary) Success() bool {
	if s.Cancelled {
		return false
	}
	for _, status := range s.Services {
		if !status.Success() {
			return false
		}
	}
	return true
}
