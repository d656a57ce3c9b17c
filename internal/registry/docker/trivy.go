package docker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"

	"github.com/slipway-dev/slipway/internal/models"
	"github.com/slipway-dev/slipway/internal/registry"
)

// trivyReport is the subset of trivy's JSON report the gate needs.
type trivyReport struct {
	Results []struct {
		Target          string `json:"Target"`
		Vulnerabilities []struct {
			VulnerabilityID string `json:"VulnerabilityID"`
			PkgName         string `json:"PkgName"`
			Title           string `json:"Title"`
			Severity        string `json:"Severity"`
		} `json:"Vulnerabilities"`
	} `json:"Results"`
}

// Scan runs trivy against a locally built image and returns its findings in
// report order. Scanning never decides the gate; it only collects evidence.
func (p *Provider) Scan(ctx context.Context, imageRef string, opts registry.ScanOptions) ([]models.Finding, error) {
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, "trivy", "image", "--format", "json", "--quiet", imageRef)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("scanning image: %w: %s", err, stderr.String())
	}

	return ParseTrivyReport(stdout.Bytes())
}

// ParseTrivyReport converts a trivy JSON report into ordered findings.
func ParseTrivyReport(data []byte) ([]models.Finding, error) {
	var report trivyReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("parsing scan report: %w", err)
	}

	var findings []models.Finding
	for _, res := range report.Results {
		for _, v := range res.Vulnerabilities {
			findings = append(findings, models.Finding{
				Severity: models.NormalizeSeverity(v.Severity),
				ID:       v.VulnerabilityID,
				Package:  v.PkgName,
				Title:    v.Title,
			})
		}
	}
	return findings, nil
}
