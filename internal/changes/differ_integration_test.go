package changes_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/slipway-dev/slipway/internal/changes"
	"github.com/slipway-dev/slipway/internal/models"
)

func git(t *testing.T, dir string, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(),
		"GIT_AUTHOR_NAME=test", "GIT_AUTHOR_EMAIL=test@example.com",
		"GIT_COMMITTER_NAME=test", "GIT_COMMITTER_EMAIL=test@example.com",
	)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		t.Fatalf("git %v: %v: %s", args, err, out.String())
	}
	return strings.TrimSpace(out.String())
}

func write(t *testing.T, dir, path, content string) {
	t.Helper()
	full := filepath.Join(dir, path)
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(full, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestGitDifferChanges(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	dir := t.TempDir()
	git(t, dir, "init")

	write(t, dir, "vote/app.py", "print('vote')\n")
	write(t, dir, "worker/main.go", "package main\n")
	git(t, dir, "add", ".")
	git(t, dir, "commit", "-m", "initial")
	oldRev := git(t, dir, "rev-parse", "HEAD")

	write(t, dir, "vote/app.py", "print('vote v2')\n")
	git(t, dir, "mv", "worker/main.go", "worker/worker.go")
	git(t, dir, "add", ".")
	git(t, dir, "commit", "-m", "change vote, rename worker entrypoint")
	newRev := git(t, dir, "rev-parse", "HEAD")

	differ := &changes.GitDiffer{RepoDir: dir}
	paths, err := differ.Changes(context.Background(), oldRev, newRev)
	if err != nil {
		t.Fatalf("Changes failed: %v", err)
	}

	want := map[string]bool{
		"vote/app.py":      true,
		"worker/main.go":   true, // old side of the rename
		"worker/worker.go": true, // new side of the rename
	}
	if len(paths) != len(want) {
		t.Fatalf("expected %d paths, got %v", len(want), paths)
	}
	for _, p := range paths {
		if !want[p] {
			t.Errorf("unexpected path %s", p)
		}
	}
}

func TestGitDifferUnresolvableRange(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	dir := t.TempDir()
	git(t, dir, "init")
	write(t, dir, "vote/app.py", "print('vote')\n")
	git(t, dir, "add", ".")
	git(t, dir, "commit", "-m", "initial")

	differ := &changes.GitDiffer{RepoDir: dir}
	_, err := differ.Changes(context.Background(), "0000000", "HEAD")
	if err == nil {
		t.Fatal("expected error for unresolvable range")
	}

	var svcErr *models.ServiceError
	if !errors.As(err, &svcErr) || svcErr.Type != models.ErrDiffUnavailable {
		t.Errorf("expected diff_unavailable, got %v", err)
	}
}
