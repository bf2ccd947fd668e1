package seiter

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Workspace enforces the §4.8 layout contract: a run's output directory,
// its per-iteration subdirectories, traj.pool, and se_framework.log all
// live at fixed, predictable paths so the scheduler and operators never
// need to pass path fragments around.
type Workspace struct {
	Root string
}

// ResolveWorkspace interpolates a single "{timestamp}" placeholder in dir
// (if present) with the current time formatted "20060102_150405", matching
// the teacher's single-interpolation-at-start contract — the timestamp is
// fixed once per run, not re-evaluated per iteration.
func ResolveWorkspace(dir string, now time.Time) string {
	if !strings.Contains(dir, "{timestamp}") {
		return dir
	}
	return strings.ReplaceAll(dir, "{timestamp}", now.Format("20060102_150405"))
}

// PoolPath returns <root>/traj.pool.
func (w Workspace) PoolPath() string { return filepath.Join(w.Root, "traj.pool") }

// LogPath returns <root>/se_framework.log.
func (w Workspace) LogPath() string { return filepath.Join(w.Root, "se_framework.log") }

// IterationDir returns <root>/iteration_<i>.
func (w Workspace) IterationDir(i int) string {
	return filepath.Join(w.Root, fmt.Sprintf("iteration_%d", i))
}

// ensureDir creates dir (and parents) if missing; idempotent, matching
// safe_create_directory's mkdir(parents=True, exist_ok=True) semantics.
func ensureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &ConfigError{Field: "output_dir", Message: fmt.Sprintf("create %s: %v", dir, err)}
	}
	return nil
}

// Create idempotently creates the workspace root.
func (w Workspace) Create() error {
	return ensureDir(w.Root)
}

// Reset deletes the workspace root entirely and recreates it empty,
// implementing --clean-restart.
func (w Workspace) Reset() error {
	if err := os.RemoveAll(w.Root); err != nil {
		return &ConfigError{Field: "output_dir", Message: fmt.Sprintf("remove %s: %v", w.Root, err)}
	}
	return w.Create()
}

// iterationComplete reports whether iteration_<i> carries either of the
// two agent-runner completion markers named in §4.8's layout contract.
func (w Workspace) iterationComplete(i int) bool {
	dir := w.IterationDir(i)
	for _, marker := range []string{"preds.json", "run_batch_exit_statuses.yaml"} {
		if _, err := os.Stat(filepath.Join(dir, marker)); err == nil {
			return true
		}
	}
	return false
}

// Inspect reports whether w.Root already exists and, if so, the sorted
// list of completed iteration numbers found under it (§4.7 step 2).
func (w Workspace) Inspect() (exists bool, completed []int) {
	if _, err := os.Stat(w.Root); err != nil {
		return false, nil
	}
	entries, err := os.ReadDir(w.Root)
	if err != nil {
		return true, nil
	}

	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), "iteration_") {
			continue
		}
		n, err := strconv.Atoi(strings.TrimPrefix(entry.Name(), "iteration_"))
		if err != nil {
			continue
		}
		if w.iterationComplete(n) {
			completed = append(completed, n)
		}
	}
	sort.Ints(completed)
	return true, completed
}

// CleanIncomplete removes iteration_<i> entirely, used to clear a
// partially-written iteration directory left by a crashed run before
// --resume restarts it.
func (w Workspace) CleanIncomplete(i int) error {
	dir := w.IterationDir(i)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil
	}
	if err := os.RemoveAll(dir); err != nil {
		return &ConfigError{Field: "output_dir", Message: fmt.Sprintf("clean incomplete %s: %v", dir, err)}
	}
	return nil
}

// OpenLogger opens (creating/appending to) se_framework.log and returns a
// slog.Logger writing to both that file and stdout, matching the ambient
// logging contract: file for durable records, stdout mirror so
// --mode execute runs stay visible in an operator's terminal.
func (w Workspace) OpenLogger() (*slog.Logger, func() error, error) {
	f, err := os.OpenFile(w.LogPath(), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, &ConfigError{Field: "output_dir", Message: fmt.Sprintf("open log file: %v", err)}
	}
	handler := slog.NewTextHandler(io.MultiWriter(f, os.Stdout), nil)
	return slog.New(handler), f.Close, nil
}
