package seiter

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func validSEConfig(t *testing.T, dir string) SEConfig {
	t.Helper()
	base := filepath.Join(dir, "base.yaml")
	writeFile(t, base, "agent: {}\n")

	instances := filepath.Join(dir, "instances.json")
	data, _ := json.Marshal([]map[string]string{
		{"instance_id": "a"},
		{"instance_id": "b"},
	})
	writeFile(t, instances, string(data))

	return SEConfig{
		BaseConfig: base,
		Model:      ModelConfig{Name: "gpt-4o"},
		Instances:  InstancesConfig{JSONFile: instances, Key: "instance_id"},
		OutputDir:  filepath.Join(dir, "runs"),
		NumWorkers: 2,
		Strategy: StrategyPlan{
			Iterations: []IterationPlanEntry{
				{BaseConfig: base},
				{BaseConfig: base},
			},
		},
	}
}

func TestValidate_MissingFields(t *testing.T) {
	s := NewScheduler(SEConfig{}, t.TempDir())
	errs := s.Validate()
	if len(errs) == 0 {
		t.Fatal("expected validation errors for empty config")
	}

	fields := map[string]bool{}
	for _, err := range errs {
		if ce, ok := err.(*ConfigError); ok {
			fields[ce.Field] = true
		}
	}
	for _, want := range []string{"base_config", "model.name", "instances.json_file", "output_dir", "strategy.iterations"} {
		if !fields[want] {
			t.Errorf("expected an error for field %q, got %v", want, fields)
		}
	}
}

func TestValidate_ValidConfigPasses(t *testing.T) {
	dir := t.TempDir()
	cfg := validSEConfig(t, dir)
	s := NewScheduler(cfg, filepath.Join(dir, "runs"))
	if errs := s.Validate(); len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
}

func TestValidate_UnknownOperatorReported(t *testing.T) {
	dir := t.TempDir()
	cfg := validSEConfig(t, dir)
	cfg.Strategy.Iterations[1].Operator = "not_a_real_operator"
	s := NewScheduler(cfg, filepath.Join(dir, "runs"))
	errs := s.Validate()
	found := false
	for _, err := range errs {
		if ce, ok := err.(*ConfigError); ok && ce.Field == "strategy.iterations[1].operator" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected unknown-operator error, got %v", errs)
	}
}

func TestValidate_EmptyInstanceKeyRejected(t *testing.T) {
	dir := t.TempDir()
	cfg := validSEConfig(t, dir)

	data, _ := json.Marshal([]map[string]string{{"instance_id": ""}})
	writeFile(t, cfg.Instances.JSONFile, string(data))

	s := NewScheduler(cfg, filepath.Join(dir, "runs"))
	errs := s.Validate()
	found := false
	for _, err := range errs {
		if ce, ok := err.(*ConfigError); ok && ce.Field == "instances.json_file" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected instances.json_file error, got %v", errs)
	}
}

func TestResolveWorkspace_NewWorkspaceStartsAtOne(t *testing.T) {
	root := filepath.Join(t.TempDir(), "runs")
	s := NewScheduler(SEConfig{}, root)
	start, err := s.resolveWorkspace(false, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if start != 1 {
		t.Errorf("expected start 1, got %d", start)
	}
	if _, err := os.Stat(root); err != nil {
		t.Errorf("expected workspace dir to be created: %v", err)
	}
}

func TestResolveWorkspace_ExistingWithoutFlagsFails(t *testing.T) {
	root := t.TempDir()
	s := NewScheduler(SEConfig{}, root)
	if _, err := s.resolveWorkspace(false, false); err == nil {
		t.Fatal("expected error for existing workspace without resume/clean-restart")
	}
}

func TestResolveWorkspace_ResumeAdvancesPastCompleted(t *testing.T) {
	root := t.TempDir()
	iter1 := filepath.Join(root, "iteration_1")
	os.MkdirAll(iter1, 0o755)
	writeFile(t, filepath.Join(iter1, "preds.json"), "{}")

	s := NewScheduler(SEConfig{}, root)
	start, err := s.resolveWorkspace(true, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if start != 2 {
		t.Errorf("expected start 2, got %d", start)
	}
}

func TestResolveWorkspace_ResumeCleansPartialNextIteration(t *testing.T) {
	root := t.TempDir()
	iter1 := filepath.Join(root, "iteration_1")
	os.MkdirAll(iter1, 0o755)
	writeFile(t, filepath.Join(iter1, "preds.json"), "{}")

	iter2 := filepath.Join(root, "iteration_2")
	os.MkdirAll(filepath.Join(iter2, "a"), 0o755)
	writeFile(t, filepath.Join(iter2, "a", "stray.txt"), "partial")

	s := NewScheduler(SEConfig{}, root)
	if _, err := s.resolveWorkspace(true, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := os.Stat(iter2); !os.IsNotExist(err) {
		t.Errorf("expected partial iteration_2 to be removed, stat err=%v", err)
	}
}

func TestResolveWorkspace_CleanRestartWipesWorkspace(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "traj.pool"), "{}")

	s := NewScheduler(SEConfig{}, root)
	start, err := s.resolveWorkspace(false, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if start != 1 {
		t.Errorf("expected start 1, got %d", start)
	}
	if _, err := os.Stat(filepath.Join(root, "traj.pool")); !os.IsNotExist(err) {
		t.Errorf("expected traj.pool to be wiped, stat err=%v", err)
	}
}

func TestRun_MutuallyExclusiveFlags(t *testing.T) {
	s := NewScheduler(SEConfig{}, t.TempDir())
	err := s.Run(context.Background(), true, true)
	ce, ok := err.(*ConfigError)
	if !ok {
		t.Fatalf("expected *ConfigError, got %T: %v", err, err)
	}
	if ce.Field != "mode" {
		t.Errorf("expected mode field, got %q", ce.Field)
	}
}

func TestRun_DemoModeDrivesAllIterationsWithoutSubprocess(t *testing.T) {
	dir := t.TempDir()
	cfg := validSEConfig(t, dir)

	s := NewScheduler(cfg, cfg.OutputDir, WithMode(ModeDemo))
	if err := s.Run(context.Background(), false, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := os.Stat(filepath.Join(cfg.OutputDir, "traj.pool")); err != nil {
		t.Errorf("expected traj.pool to be initialized: %v", err)
	}
	if _, err := os.Stat(filepath.Join(cfg.OutputDir, "se_framework.log")); err != nil {
		t.Errorf("expected se_framework.log to be created: %v", err)
	}
}

func TestRun_InvalidConfigReturnsAllErrorsJoined(t *testing.T) {
	s := NewScheduler(SEConfig{}, t.TempDir())
	err := s.Run(context.Background(), false, false)
	ce, ok := err.(*ConfigError)
	if !ok {
		t.Fatalf("expected *ConfigError, got %T", err)
	}
	if ce.Field != "" {
		t.Errorf("joined error should not carry a single field, got %q", ce.Field)
	}
}
