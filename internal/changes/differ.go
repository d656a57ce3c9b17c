package changes

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"

	"github.com/slipway-dev/slipway/internal/models"
)

// Differ computes the modified paths between two revisions.
type Differ interface {
	Changes(ctx context.Context, oldRev, newRev string) ([]string, error)
}

// GitDiffer resolves revision ranges with the git CLI.
type GitDiffer struct {
	// RepoDir is the repository root. Empty means the current directory.
	RepoDir string
}

// Changes runs git diff --name-status over the revision range and returns
// the modified paths. A rename contributes both the old and the new path; a
// deletion contributes the deleted path. Fails with diff_unavailable when
// the range cannot be resolved (e.g. shallow history) — no safe default
// exists, so this is fatal to the whole run.
func (g *GitDiffer) Changes(ctx context.Context, oldRev, newRev string) ([]string, error) {
	args := []string{"diff", "--name-status", "--find-renames", oldRev, newRev}
	if g.RepoDir != "" {
		args = append([]string{"-C", g.RepoDir}, args...)
	}

	slog.Debug("resolving revision diff", "old", oldRev, "new", newRev)

	cmd := exec.CommandContext(ctx, "git", args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, &models.ServiceError{
			Type:    models.ErrDiffUnavailable,
			Message: fmt.Sprintf("git diff %s..%s: %s: %s", oldRev, newRev, err, strings.TrimSpace(stderr.String())),
		}
	}

	return parseNameStatus(stdout.String()), nil
}

// parseNameStatus parses git diff --name-status output. Lines are
// status\tpath, or status\told\tnew for renames and copies.
func parseNameStatus(out string) []string {
	var paths []string
	for _, line := range strings.Split(out, "\n") {
		if line == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) < 2 {
			continue
		}
		status := fields[0]
		if strings.HasPrefix(status, "R") || strings.HasPrefix(status, "C") {
			// Both sides of a rename are modifications
			paths = append(paths, fields[1:]...)
			continue
		}
		paths = append(paths, fields[1])
	}
	return paths
}
