package models

import "strings"

// Severity is a vulnerability severity level as reported by the scanner.
type Severity string

const (
	SeverityUnknown  Severity = "UNKNOWN"
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

var severityRank = map[Severity]int{
	SeverityUnknown:  0,
	SeverityLow:      1,
	SeverityMedium:   2,
	SeverityHigh:     3,
	SeverityCritical: 4,
}

// NormalizeSeverity maps a scanner-reported severity string onto the known
// scale. Unrecognized values become SeverityUnknown, which never blocks.
func NormalizeSeverity(s string) Severity {
	sev := Severity(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := severityRank[sev]; !ok {
		return SeverityUnknown
	}
	return sev
}

// Rank returns the ordering position of the severity. Higher is worse.
func (s Severity) Rank() int {
	return severityRank[s]
}

// AtLeast reports whether s is at or above the threshold t.
func (s Severity) AtLeast(t Severity) bool {
	return severityRank[s] >= severityRank[t]
}
