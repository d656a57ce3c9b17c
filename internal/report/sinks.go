package report

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/slipway-dev/slipway/internal/models"
)

// Sink receives the finalized run summary. Sink failures are reporting
// failures only; they never change a service's outcome.
type Sink interface {
	Publish(summary *models.RunSummary) error
}

// Publish emits the summary to every sink, logging failures.
func Publish(summary *models.RunSummary, sinks ...Sink) {
	for _, s := range sinks {
		if err := s.Publish(summary); err != nil {
			slog.Error("publishing run summary", "error", err)
		}
	}
}

// TableSink renders the summary as a human-readable table.
type TableSink struct {
	W io.Writer
}

func (s *TableSink) Publish(summary *models.RunSummary) error {
	fmt.Fprintf(s.W, "\nRun %s (%s @ %s)\n", summary.RunID, summary.Branch, summary.NewRev)

	t := table.NewWriter()
	t.SetOutputMirror(s.W)
	t.AppendHeader(table.Row{"Service", "Status", "Namespace", "Action", "Detail"})

	for _, r := range summary.Results {
		namespace, action := "", ""
		if r.Deployment != nil {
			namespace = r.Deployment.Namespace
			action = string(r.Deployment.Action)
		}
		detail := ""
		switch {
		case r.Status == models.StatusDeployed && r.Artifact != nil:
			detail = r.Artifact.ImageRef
		case r.Error != nil:
			detail = r.Error.Message
		}
		t.AppendRow(table.Row{r.Service, r.Status, namespace, action, text.WrapSoft(detail, 60)})
	}
	t.Render()

	// Gate-blocked services surface their blocking findings for remediation
	for _, r := range summary.Results {
		if r.Status != models.StatusGateBlocked || r.Artifact == nil {
			continue
		}
		fmt.Fprintf(s.W, "\nBlocking findings for %s:\n", r.Service)
		for _, f := range r.Artifact.Scan.Blocking() {
			fmt.Fprintf(s.W, "  [%s] %s %s\n", f.Severity, f.ID, f.Package)
		}
	}

	fmt.Fprintf(s.W, "\nDeployed: %d  Failed: %d  Skipped: %d  (%.1fs)\n",
		summary.Deployed, summary.Failed, summary.Skipped, summary.TotalSec)
	if summary.Cancelled {
		fmt.Fprintln(s.W, "Run was cancelled before all services completed.")
	}
	return nil
}

// FileSink persists the summary as JSON in the run directory.
type FileSink struct {
	Path string
}

func (s *FileSink) Publish(summary *models.RunSummary) error {
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding run summary: %w", err)
	}
	if err := os.WriteFile(s.Path, data, 0644); err != nil {
		return fmt.Errorf("writing run summary: %w", err)
	}
	return nil
}
