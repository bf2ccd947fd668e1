package seiter

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestResolveWorkspace_InterpolatesTimestamp(t *testing.T) {
	now := time.Date(2026, 3, 5, 9, 30, 0, 0, time.UTC)
	got := ResolveWorkspace("runs/{timestamp}/out", now)
	want := "runs/20260305_093000/out"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestResolveWorkspace_NoPlaceholderPassesThrough(t *testing.T) {
	got := ResolveWorkspace("runs/fixed", time.Now())
	if got != "runs/fixed" {
		t.Errorf("got %q", got)
	}
}

func TestWorkspace_Paths(t *testing.T) {
	w := Workspace{Root: "/tmp/ws"}
	if got := w.PoolPath(); got != filepath.Join("/tmp/ws", "traj.pool") {
		t.Errorf("PoolPath: got %q", got)
	}
	if got := w.LogPath(); got != filepath.Join("/tmp/ws", "se_framework.log") {
		t.Errorf("LogPath: got %q", got)
	}
	if got := w.IterationDir(3); got != filepath.Join("/tmp/ws", "iteration_3") {
		t.Errorf("IterationDir: got %q", got)
	}
}

func TestWorkspace_CreateIsIdempotent(t *testing.T) {
	w := Workspace{Root: filepath.Join(t.TempDir(), "ws")}
	if err := w.Create(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := w.Create(); err != nil {
		t.Fatalf("second create should be a no-op, got: %v", err)
	}
}

func TestWorkspace_Inspect_NoCompletionMarkerExcluded(t *testing.T) {
	root := t.TempDir()
	os.MkdirAll(filepath.Join(root, "iteration_1"), 0o755)

	w := Workspace{Root: root}
	exists, completed := w.Inspect()
	if !exists {
		t.Fatal("expected workspace to exist")
	}
	if len(completed) != 0 {
		t.Errorf("expected no completed iterations, got %v", completed)
	}
}

func TestWorkspace_Inspect_RunBatchExitStatusesMarksComplete(t *testing.T) {
	root := t.TempDir()
	iter := filepath.Join(root, "iteration_2")
	os.MkdirAll(iter, 0o755)
	os.WriteFile(filepath.Join(iter, "run_batch_exit_statuses.yaml"), []byte("a: 0\n"), 0o644)

	w := Workspace{Root: root}
	_, completed := w.Inspect()
	if len(completed) != 1 || completed[0] != 2 {
		t.Errorf("expected [2], got %v", completed)
	}
}

func TestWorkspace_OpenLogger_WritesToFile(t *testing.T) {
	root := t.TempDir()
	w := Workspace{Root: root}
	if err := w.Create(); err != nil {
		t.Fatal(err)
	}

	logger, closeLog, err := w.OpenLogger()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	logger.Info("hello from test")
	closeLog()

	raw, err := os.ReadFile(w.LogPath())
	if err != nil {
		t.Fatalf("expected log file: %v", err)
	}
	if len(raw) == 0 {
		t.Error("expected log file to contain output")
	}
}
