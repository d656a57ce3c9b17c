package report

import (
	"time"

	"github.com/slipway-dev/slipway/internal/models"
)

// RunInfo carries the identity of one pipeline run into aggregation.
type RunInfo struct {
	RunID     string
	Name      string
	RunDir    string
	Branch    string
	OldRev    string
	NewRev    string
	StartedAt time.Time
	EndedAt   time.Time
}

// Aggregate builds the run summary from the collected per-service results.
// Aggregation is order-independent: each entry reflects only that service's
// own terminal outcome. Every service in the change set gets exactly one
// entry; services with no result (never fed to a worker) are recorded as
// skipped.
func Aggregate(info RunInfo, cs models.ChangeSet, results []models.ServiceResult, cancelled bool) *models.RunSummary {
	summary := &models.RunSummary{
		RunID:         info.RunID,
		Name:          info.Name,
		RunDir:        info.RunDir,
		Branch:        info.Branch,
		OldRev:        info.OldRev,
		NewRev:        info.NewRev,
		Cancelled:     cancelled,
		TotalServices: len(cs.Services),
		StartedAt:     info.StartedAt,
		EndedAt:       info.EndedAt,
		Services:      make(map[string]models.ServiceStatus),
		Results:       make([]models.ServiceResult, 0, len(cs.Services)),
	}
	summary.TotalSec = summary.EndedAt.Sub(summary.StartedAt).Seconds()

	reported := make(map[string]bool)
	for _, r := range results {
		summary.Services[r.Service] = r.Status
		summary.Results = append(summary.Results, r)
		reported[r.Service] = true
	}

	for _, svc := range cs.Services {
		if reported[svc.Name] {
			continue
		}
		skipped := models.ServiceResult{
			Service: svc.Name,
			Status:  models.StatusSkipped,
		}
		summary.Services[svc.Name] = skipped.Status
		summary.Results = append(summary.Results, skipped)
	}

	for _, status := range summary.Services {
		switch {
		case status == models.StatusDeployed:
			summary.Deployed++
		case status == models.StatusSkipped:
			summary.Skipped++
		default:
			summary.Failed++
		}
	}

	return summary
}

// ExitCode maps the summary onto the run's process exit status: success only
// if every changed service reached deployed (or the run had no work at all).
func ExitCode(summary *models.RunSummary) int {
	if summary.Success() {
		return 0
	}
	return 1
}
