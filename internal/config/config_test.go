package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := Default()
	if cfg.OutputDir != "se_runs" {
		t.Errorf("expected se_runs, got %s", cfg.OutputDir)
	}
	if cfg.NumWorkers != 4 {
		t.Errorf("expected 4 workers, got %d", cfg.NumWorkers)
	}
	if cfg.Model.Name != "gpt-4o" {
		t.Errorf("expected gpt-4o, got %s", cfg.Model.Name)
	}
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "se_config.yaml")
	os.WriteFile(path, []byte(`
base_config: base.yaml
model:
  name: gpt-4o-mini
  api_base: https://api.openai.com/v1
  api_key: file-key
num_workers: 8
output_dir: custom_runs
instances:
  json_file: instances.json
  key: instance_id
strategy:
  iterations:
    - base_config: base.yaml
    - base_config: base.yaml
      operator: alternative_strategy
`), 0644)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.NumWorkers != 8 {
		t.Errorf("expected 8, got %d", cfg.NumWorkers)
	}
	if cfg.OutputDir != "custom_runs" {
		t.Errorf("expected custom_runs, got %s", cfg.OutputDir)
	}
	if len(cfg.Strategy.Iterations) != 2 {
		t.Fatalf("expected 2 plan entries, got %d", len(cfg.Strategy.Iterations))
	}
	if cfg.Strategy.Iterations[1].Operator != "alternative_strategy" {
		t.Errorf("got %q", cfg.Strategy.Iterations[1].Operator)
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.OutputDir != "se_runs" {
		t.Errorf("expected default output dir, got %s", cfg.OutputDir)
	}
}

func TestLoad_EnvOverridesAPIKey(t *testing.T) {
	t.Setenv("SEITER_MODEL_API_KEY", "env-key")
	t.Setenv("SEITER_OUTPUT_DIR", "env-runs")

	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Model.APIKey != "env-key" {
		t.Errorf("expected env-key, got %s", cfg.Model.APIKey)
	}
	if cfg.OutputDir != "env-runs" {
		t.Errorf("expected env-runs, got %s", cfg.OutputDir)
	}
}

func TestLoad_OperatorModelFallsBackToMainKey(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "se_config.yaml")
	os.WriteFile(path, []byte(`
model:
  name: gpt-4o
  api_key: main-key
operator_models:
  name: gpt-4o-mini
`), 0644)

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.OperatorModels == nil {
		t.Fatal("expected operator_models to be parsed")
	}
	if cfg.OperatorModels.APIKey != "main-key" {
		t.Errorf("expected fallback to main-key, got %q", cfg.OperatorModels.APIKey)
	}
}

func TestRunnerConfig_OverridesApplyOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "se_config.yaml")
	os.WriteFile(path, []byte(`
runner:
  python_bin: python3
  swe_iterator_path: /opt/se/core/swe_iterator.py
  project_root: /opt/se
`), 0644)

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	rc := cfg.RunnerConfig()
	if rc.PythonBin != "python3" {
		t.Errorf("expected python3, got %q", rc.PythonBin)
	}
	if rc.SWEIteratorPath != "/opt/se/core/swe_iterator.py" {
		t.Errorf("got %q", rc.SWEIteratorPath)
	}
	if rc.ProjectRoot != "/opt/se" {
		t.Errorf("got %q", rc.ProjectRoot)
	}
}

func TestRunnerConfig_DefaultsWhenNoOverride(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	rc := cfg.RunnerConfig()
	if rc.PythonBin != "python" {
		t.Errorf("expected python, got %q", rc.PythonBin)
	}
	if filepath.Base(rc.SWEIteratorPath) != "swe_iterator.py" {
		t.Errorf("expected default swe_iterator.py path, got %q", rc.SWEIteratorPath)
	}
}

func TestLoad_InvalidYAMLReturnsError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "se_config.yaml")
	os.WriteFile(path, []byte("not: valid: yaml: [["), 0644)

	if _, err := Load(path); err == nil {
		t.Fatal("expected error for malformed yaml")
	}
}
