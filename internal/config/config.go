// Package config loads the run configuration a Scheduler drives an
// iteration plan from: the YAML SE config schema (spec §6) plus the
// observability toggles layered on top of it.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	seiter "github.com/nevindra/seiter"
	"github.com/nevindra/seiter/observer"
	"gopkg.in/yaml.v3"
)

// ObserverConfig controls OTEL export and per-model cost overrides. It is
// not part of SEConfig proper (spec §6 scopes that to the iteration plan);
// it is a sibling section this module layers on top for the ambient
// observability stack.
type ObserverConfig struct {
	Enabled bool                             `yaml:"enabled"`
	Pricing map[string]observer.ModelPricing `yaml:"pricing,omitempty"`
}

// RunnerOverride lets a config file point the agent runner subprocess at a
// real swe_iterator.py when the computed default (next to the driver
// binary) doesn't apply. Like ObserverConfig, it is a sibling section, not
// part of the fixed SEConfig schema (spec §6).
type RunnerOverride struct {
	PythonBin       string `yaml:"python_bin,omitempty"`
	SWEIteratorPath string `yaml:"swe_iterator_path,omitempty"`
	ProjectRoot     string `yaml:"project_root,omitempty"`
}

// Config is the full file this module reads: a run's SEConfig plus the
// observer and runner overlays.
type Config struct {
	seiter.SEConfig `yaml:",inline"`
	Observer        ObserverConfig `yaml:"observer,omitempty"`
	Runner          RunnerOverride `yaml:"runner,omitempty"`
}

// Default returns a Config with the defaults a minimal run can start from:
// four workers, output under ./se_runs, no operator model override (falls
// back to Model for operator calls).
func Default() Config {
	return Config{
		SEConfig: seiter.SEConfig{
			OutputDir:  "se_runs",
			NumWorkers: 4,
			Model: seiter.ModelConfig{
				Name:            "gpt-4o",
				MaxInputTokens:  32000,
				MaxOutputTokens: 4096,
				Temperature:     0.0,
			},
		},
	}
}

// defaultRunnerConfig derives the agent runner invocation the way
// se_run.py's main() does: swe_iterator.py lives in a "core" subdirectory
// next to the driver, and the subprocess cwd (project_root) is one level
// further up (spec §6: "relative paths resolve against a project root two
// directories above the driver"). Falls back to a bare "python" with no
// path when the running binary's location can't be determined; Launch's
// exec then fails with a clear "file not found", and RunnerConfig() below
// always lets a config file override it.
func defaultRunnerConfig() seiter.RunnerConfig {
	rc := seiter.RunnerConfig{PythonBin: "python"}

	exe, err := os.Executable()
	if err != nil {
		return rc
	}
	driverDir := filepath.Dir(exe)
	rc.SWEIteratorPath = filepath.Join(driverDir, "core", "swe_iterator.py")
	rc.ProjectRoot = filepath.Dir(driverDir)
	return rc
}

// RunnerConfig resolves the agent runner invocation for this run: the
// computed default, with any non-empty field from the config file's
// "runner" section overriding it.
func (c Config) RunnerConfig() seiter.RunnerConfig {
	rc := defaultRunnerConfig()
	if c.Runner.PythonBin != "" {
		rc.PythonBin = c.Runner.PythonBin
	}
	if c.Runner.SWEIteratorPath != "" {
		rc.SWEIteratorPath = c.Runner.SWEIteratorPath
	}
	if c.Runner.ProjectRoot != "" {
		rc.ProjectRoot = c.Runner.ProjectRoot
	}
	return rc
}

// Load reads config: defaults -> YAML file -> env vars (env wins). A
// missing file is not an error — Load falls back to Default() and applies
// env overrides on top, so a run can be fully specified via environment in
// CI without a checked-in file.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = "se_config.yaml"
	}

	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("read %s: %w", path, err)
	}

	if v := os.Getenv("SEITER_MODEL_API_KEY"); v != "" {
		cfg.Model.APIKey = v
	}
	if v := os.Getenv("SEITER_OPERATOR_MODEL_API_KEY"); v != "" {
		if cfg.OperatorModels == nil {
			cfg.OperatorModels = &seiter.ModelConfig{}
		}
		cfg.OperatorModels.APIKey = v
	}
	if v := os.Getenv("SEITER_OUTPUT_DIR"); v != "" {
		cfg.OutputDir = v
	}
	if v := os.Getenv("SEITER_OBSERVER_ENABLED"); v == "true" || v == "1" {
		cfg.Observer.Enabled = true
	}

	// Operator calls fall back to the main model's key when no separate,
	// typically cheaper, operator model is configured with its own.
	if cfg.OperatorModels != nil && cfg.OperatorModels.APIKey == "" {
		cfg.OperatorModels.APIKey = cfg.Model.APIKey
	}

	return cfg, nil
}
