package seiter

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// RunnerConfig names where the agent runner lives and how it is invoked.
// Launch always runs `<PythonBin> <SWEIteratorPath> <tempconfig>` in
// ProjectRoot; an empty PythonBin falls back to "python".
type RunnerConfig struct {
	PythonBin        string // default "python"
	SWEIteratorPath  string // path to swe_iterator.py
	ProjectRoot      string // subprocess cwd
}

// mergedRunnerConfig is the per-iteration YAML written to a temp file and
// handed to the agent runner (§4.7 step b/c, §6 "Agent runner protocol").
// Field order/names mirror the source's create_temp_config output exactly,
// since the agent runner parses this file by key.
type mergedRunnerConfig struct {
	BaseConfig string          `yaml:"base_config"`
	Model      ModelConfig     `yaml:"model"`
	Instances  InstancesConfig `yaml:"instances"`
	OutputDir  string          `yaml:"output_dir"`
	Suffix     string          `yaml:"suffix"`
	NumWorkers int             `yaml:"num_workers"`

	// Operator-derived overlay keys; at most one is set (§4.5 Family tag).
	InstanceTemplatesDir    string `yaml:"instance_templates_dir,omitempty"`
	EnhanceHistoryFilterJSON string `yaml:"enhance_history_filter_json,omitempty"`
}

// buildMergedConfig assembles the temp config for one iteration: base ←
// entry.BaseConfig; overlay {model, instances, num_workers, output_dir}
// fixed across iterations; plus whichever OperatorResult field is set.
func buildMergedConfig(cfg SEConfig, entry IterationPlanEntry, iterationOutputDir string, opResult OperatorResult) mergedRunnerConfig {
	return mergedRunnerConfig{
		BaseConfig:               entry.BaseConfig,
		Model:                    cfg.Model,
		Instances:                cfg.Instances,
		OutputDir:                iterationOutputDir,
		Suffix:                   "iteration_run",
		NumWorkers:               cfg.NumWorkers,
		InstanceTemplatesDir:     opResult.TemplatesDir,
		EnhanceHistoryFilterJSON: opResult.EnhanceJSON,
	}
}

// writeTempConfig serializes merged to a uniquely-named YAML file under
// os.TempDir, named se-iter-<uuid>.yaml so stray files from a crashed
// prior run never collide with the current one.
func writeTempConfig(merged mergedRunnerConfig) (string, error) {
	encoded, err := yaml.Marshal(merged)
	if err != nil {
		return "", fmt.Errorf("marshal merged runner config: %w", err)
	}
	path := filepath.Join(os.TempDir(), fmt.Sprintf("se-iter-%s.yaml", uuid.NewString()))
	if err := os.WriteFile(path, encoded, 0o644); err != nil {
		return "", fmt.Errorf("write merged runner config: %w", err)
	}
	return path, nil
}

// Launch runs the agent runner subprocess for one iteration: writes the
// merged config to a temp file (removed on return regardless of outcome),
// execs the runner with inherited stdout/stderr (§4.7c: the scheduler
// never parses runner output, only its exit code), and reports a nonzero
// exit as *IterationFailure.
func (rc RunnerConfig) Launch(ctx context.Context, iteration int, merged mergedRunnerConfig) error {
	tempPath, err := writeTempConfig(merged)
	if err != nil {
		return err
	}
	defer os.Remove(tempPath)

	pythonBin := rc.PythonBin
	if pythonBin == "" {
		pythonBin = "python"
	}

	cmd := exec.CommandContext(ctx, pythonBin, rc.SWEIteratorPath, tempPath)
	cmd.Dir = rc.ProjectRoot
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return &IterationFailure{Iteration: iteration, ExitCode: exitErr.ExitCode(), Message: "agent runner exited nonzero"}
		}
		return &IterationFailure{Iteration: iteration, ExitCode: -1, Message: err.Error()}
	}
	return nil
}
