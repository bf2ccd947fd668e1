package seiter

import (
	"os"
	"path/filepath"
	"testing"
)

func writeInstanceFile(t *testing.T, dir, name, ext, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name+"."+ext), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestGetInstanceData_ProblemFromProblemFile(t *testing.T) {
	dir := t.TempDir()
	instanceDir := filepath.Join(dir, "astropy__astropy-1")
	if err := os.MkdirAll(instanceDir, 0o755); err != nil {
		t.Fatal(err)
	}
	writeInstanceFile(t, instanceDir, "astropy__astropy-1", "problem", "  fix the bug  \n")

	m := NewInstanceDataManager(nil)
	set := m.GetInstanceData(instanceDir, true)
	if !set.HasProblem || set.Problem != "fix the bug" {
		t.Errorf("got problem %q (has=%v), want %q", set.Problem, set.HasProblem, "fix the bug")
	}
}

func TestGetInstanceData_ProblemFromTrajWhenNoProblemFile(t *testing.T) {
	dir := t.TempDir()
	instanceDir := filepath.Join(dir, "django__django-2")
	if err := os.MkdirAll(instanceDir, 0o755); err != nil {
		t.Fatal(err)
	}
	traj := `{"history":[
		{"role":"system","content":"you are an agent"},
		{"role":"user","content":"<pr_description>\nFix the off-by-one error\n</pr_description>"}
	]}`
	writeInstanceFile(t, instanceDir, "django__django-2", "traj", traj)

	m := NewInstanceDataManager(nil)
	set := m.GetInstanceData(instanceDir, true)
	if !set.HasProblem {
		t.Fatal("expected problem extracted from .traj")
	}
	if set.Problem != "Fix the off-by-one error" {
		t.Errorf("got %q", set.Problem)
	}
}

func TestGetInstanceData_NoProblemSourcesAvailable(t *testing.T) {
	dir := t.TempDir()
	instanceDir := filepath.Join(dir, "sympy__sympy-3")
	if err := os.MkdirAll(instanceDir, 0o755); err != nil {
		t.Fatal(err)
	}

	m := NewInstanceDataManager(nil)
	set := m.GetInstanceData(instanceDir, true)
	if set.HasProblem {
		t.Error("expected no problem resolved")
	}
}

func TestGetInstanceData_PatchPrefersPatchOverPred(t *testing.T) {
	dir := t.TempDir()
	instanceDir := filepath.Join(dir, "flask__flask-4")
	if err := os.MkdirAll(instanceDir, 0o755); err != nil {
		t.Fatal(err)
	}
	writeInstanceFile(t, instanceDir, "flask__flask-4", "patch", "diff --git a b")
	writeInstanceFile(t, instanceDir, "flask__flask-4", "pred", "should not be used")

	m := NewInstanceDataManager(nil)
	set := m.GetInstanceData(instanceDir, true)
	if set.PatchContent != "diff --git a b" {
		t.Errorf("got %q, want patch content to win over pred", set.PatchContent)
	}
}

func TestGetInstanceData_FallsBackToPred(t *testing.T) {
	dir := t.TempDir()
	instanceDir := filepath.Join(dir, "flask__flask-5")
	if err := os.MkdirAll(instanceDir, 0o755); err != nil {
		t.Fatal(err)
	}
	writeInstanceFile(t, instanceDir, "flask__flask-5", "pred", "diff --git pred")

	m := NewInstanceDataManager(nil)
	set := m.GetInstanceData(instanceDir, true)
	if set.PatchContent != "diff --git pred" {
		t.Errorf("got %q", set.PatchContent)
	}
}

func TestGetInstanceData_TruncatesLargeArtifacts(t *testing.T) {
	dir := t.TempDir()
	instanceDir := filepath.Join(dir, "big__instance-1")
	if err := os.MkdirAll(instanceDir, 0o755); err != nil {
		t.Fatal(err)
	}
	big := make([]byte, maxArtifactBytes+1000)
	for i := range big {
		big[i] = 'a'
	}
	writeInstanceFile(t, instanceDir, "big__instance-1", "patch", string(big))

	m := NewInstanceDataManager(nil)
	set := m.GetInstanceData(instanceDir, true)
	if len(set.PatchContent) != maxArtifactBytes {
		t.Errorf("got length %d, want %d", len(set.PatchContent), maxArtifactBytes)
	}
}

func TestGetIterationInstances_MissingDirReturnsEmpty(t *testing.T) {
	m := NewInstanceDataManager(nil)
	sets := m.GetIterationInstances(filepath.Join(t.TempDir(), "does-not-exist"))
	if sets != nil {
		t.Errorf("expected nil, got %v", sets)
	}
}

func TestGetIterationInstances_EnumeratesDirectSubdirsOnly(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"inst-a", "inst-b"} {
		if err := os.MkdirAll(filepath.Join(dir, name), 0o755); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(filepath.Join(dir, "not-a-dir.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	m := NewInstanceDataManager(nil)
	sets := m.GetIterationInstances(dir)
	if len(sets) != 2 {
		t.Fatalf("expected 2 instances, got %d", len(sets))
	}
}

func TestValidateCompleteness(t *testing.T) {
	full := ArtifactSet{HasProblem: true, HasTra: true, HasPatch: true}
	c := ValidateCompleteness(full)
	if c.Score != 100 || len(c.Missing) != 0 {
		t.Errorf("got score %v missing %v, want 100/none", c.Score, c.Missing)
	}

	partial := ArtifactSet{HasProblem: true}
	c2 := ValidateCompleteness(partial)
	want := float64(1) / 3 * 100
	if c2.Score != want {
		t.Errorf("got score %v, want %v", c2.Score, want)
	}
	if len(c2.Missing) != 2 {
		t.Errorf("expected 2 missing fields, got %v", c2.Missing)
	}

	// traj presence must not affect the score.
	withTraj := ArtifactSet{HasProblem: true, HasTraj: true}
	c3 := ValidateCompleteness(withTraj)
	if c3.Score != want {
		t.Errorf("traj presence changed score: got %v, want %v", c3.Score, want)
	}
}
