package seiter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"
)

// Mode selects whether Scheduler.Run actually launches the agent runner.
type Mode string

const (
	ModeExecute Mode = "execute"
	ModeDemo    Mode = "demo"
)

// Scheduler drives a StrategyPlan's iterations in strict sequence (§4.7):
// validate, resolve the workspace, then for each iteration call the
// configured operator, launch the agent runner, and ingest its output
// into the trajectory pool. Dependencies are injected through functional
// options, mirroring the teacher's scheduler construction shape.
type Scheduler struct {
	cfg       SEConfig
	workspace Workspace
	runner    RunnerConfig
	mode      Mode

	pool       *Pool
	compressor *Compressor
	dataMgr    *InstanceDataManager
	logger     *slog.Logger
	tracer     Tracer
	metrics    Metrics
}

// Option configures a Scheduler at construction time.
type Option func(*Scheduler)

// WithRunnerConfig sets how the agent runner subprocess is invoked.
func WithRunnerConfig(rc RunnerConfig) Option {
	return func(s *Scheduler) { s.runner = rc }
}

// WithMode sets demo vs execute; defaults to ModeExecute.
func WithMode(mode Mode) Option {
	return func(s *Scheduler) { s.mode = mode }
}

// WithLogger overrides the scheduler's logger. Run opens
// workspace/se_framework.log and sets this itself when unset.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) { s.logger = logger }
}

// WithTracer attaches a Tracer used to span each iteration and operator
// run. When unset, span creation is a no-op.
func WithTracer(tracer Tracer) Option {
	return func(s *Scheduler) { s.tracer = tracer }
}

// WithMetrics attaches a Metrics sink recording iteration/operator
// counters and durations. When unset, recording is a no-op.
func WithMetrics(metrics Metrics) Option {
	return func(s *Scheduler) { s.metrics = metrics }
}

// NewScheduler constructs a Scheduler for cfg, rooted at workspaceRoot
// (after any "{timestamp}" interpolation the caller has already applied).
func NewScheduler(cfg SEConfig, workspaceRoot string, opts ...Option) *Scheduler {
	s := &Scheduler{
		cfg:        cfg,
		workspace:  Workspace{Root: workspaceRoot},
		mode:       ModeExecute,
		compressor: NewCompressor(nil),
		dataMgr:    NewInstanceDataManager(nil),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Validate checks the plan and its referenced files, returning every
// problem found rather than stopping at the first one (the
// --validate-only report supplemented from the original's
// validate_config, which raises on the first failure only).
func (s *Scheduler) Validate() []error {
	var errs []error
	field := func(path, msg string) {
		errs = append(errs, &ConfigError{Field: path, Message: msg})
	}

	if s.cfg.BaseConfig == "" {
		field("base_config", "required")
	} else if _, err := os.Stat(s.cfg.BaseConfig); err != nil {
		field("base_config", fmt.Sprintf("not found: %s", s.cfg.BaseConfig))
	}

	if s.cfg.Model.Name == "" {
		field("model.name", "required")
	}

	if s.cfg.Instances.JSONFile == "" {
		field("instances.json_file", "required")
	} else if err := validateInstancesFile(s.cfg.Instances); err != nil {
		field("instances.json_file", err.Error())
	}

	if s.cfg.OutputDir == "" {
		field("output_dir", "required")
	}

	if len(s.cfg.Strategy.Iterations) == 0 {
		field("strategy.iterations", "at least one iteration required")
	}
	for i, entry := range s.cfg.Strategy.Iterations {
		path := fmt.Sprintf("strategy.iterations[%d]", i)
		if entry.BaseConfig == "" {
			field(path+".base_config", "required")
		} else if _, err := os.Stat(entry.BaseConfig); err != nil {
			field(path+".base_config", fmt.Sprintf("not found: %s", entry.BaseConfig))
		}
		if entry.Operator != "" {
			if _, err := NewOperatorByName(entry.Operator, s.cfg); err != nil {
				field(path+".operator", fmt.Sprintf("unknown operator %q", entry.Operator))
			}
		}
	}

	return errs
}

// validateInstancesFile confirms the instances JSON file exists, parses as
// a non-empty list of objects, and that every entry carries ic.Key with a
// non-empty value.
func validateInstancesFile(ic InstancesConfig) error {
	raw, err := os.ReadFile(ic.JSONFile)
	if err != nil {
		return fmt.Errorf("not found: %s", ic.JSONFile)
	}
	var entries []map[string]json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return fmt.Errorf("not a JSON list of objects: %v", err)
	}
	if len(entries) == 0 {
		return fmt.Errorf("empty instance list")
	}
	for i, entry := range entries {
		v, ok := entry[ic.Key]
		if !ok || len(v) == 0 || string(v) == `""` {
			return fmt.Errorf("entry %d missing non-empty %q", i, ic.Key)
		}
	}
	return nil
}

// Run executes the scheduler's full algorithm: validate, resolve the
// workspace (honoring resume/cleanRestart), then drive every configured
// iteration in sequence. ctx cancellation between iterations (e.g. SIGINT)
// aborts after the current iteration's pool update and returns
// *UserInterrupt rather than continuing.
func (s *Scheduler) Run(ctx context.Context, resume, cleanRestart bool) error {
	if resume && cleanRestart {
		return &ConfigError{Field: "mode", Message: "--resume and --clean-restart are mutually exclusive"}
	}
	if errs := s.Validate(); len(errs) > 0 {
		return joinConfigErrors(errs)
	}

	startIteration, err := s.resolveWorkspace(resume, cleanRestart)
	if err != nil {
		return err
	}

	if s.logger == nil {
		logger, closeLog, err := s.workspace.OpenLogger()
		if err != nil {
			return err
		}
		defer closeLog()
		s.logger = logger
	}
	logger := s.logger

	llm := operatorLLM(s.cfg, s.metrics)
	s.pool = NewPool(s.workspace.PoolPath(), llm, logger)
	s.pool.Metrics = s.metrics
	if err := s.pool.Initialize(); err != nil {
		return &PoolUpdateError{Path: s.workspace.PoolPath(), Err: err}
	}

	iterations := s.cfg.Strategy.Iterations
	logger.Info("scheduler starting", "total_iterations", len(iterations), "start_iteration", startIteration, "mode", s.mode)

	for i := startIteration; i <= len(iterations); i++ {
		entry := iterations[i-1]
		logger.Info("iteration starting", "iteration", i, "base_config", entry.BaseConfig, "operator", entry.Operator)

		iterCtx, span := s.startSpan(ctx, "iteration", IntAttr("iteration", i))
		started := time.Now()

		opResult := s.runOperator(iterCtx, entry, i, logger)

		iterationDir := s.workspace.IterationDir(i)
		merged := buildMergedConfig(s.cfg, entry, iterationDir, opResult)

		if s.mode == ModeDemo {
			logger.Info("demo mode: skipping agent runner", "iteration", i)
			span.End()
			continue
		}

		if err := s.runner.Launch(iterCtx, i, merged); err != nil {
			logger.Error("iteration failed", "iteration", i, "error", err)
			span.Error(err)
			span.End()
			if s.metrics != nil {
				s.metrics.IterationFailed(ctx, i, time.Since(started))
			}
			return err
		}
		logger.Info("iteration succeeded", "iteration", i)

		s.ingest(iterCtx, iterationDir, i, logger)
		span.End()
		if s.metrics != nil {
			s.metrics.IterationCompleted(ctx, i, time.Since(started))
		}

		if err := ctx.Err(); err != nil {
			return &UserInterrupt{LastCompletedIteration: i}
		}
	}

	logger.Info("scheduler finished", "iterations_run", len(iterations)-startIteration+1)
	return nil
}

// resolveWorkspace implements §4.7 step 2: determine start_iteration and
// put the workspace directory into the state the loop below expects.
func (s *Scheduler) resolveWorkspace(resume, cleanRestart bool) (int, error) {
	exists, completed := s.workspace.Inspect()

	if !exists {
		if err := s.workspace.Create(); err != nil {
			return 0, err
		}
		return 1, nil
	}

	switch {
	case cleanRestart:
		if err := s.workspace.Reset(); err != nil {
			return 0, err
		}
		return 1, nil

	case resume:
		if len(completed) == 0 {
			return 1, nil
		}
		start := completed[len(completed)-1] + 1
		if err := s.workspace.CleanIncomplete(start); err != nil {
			return 0, err
		}
		return start, nil

	default:
		return 0, &ConfigError{
			Field: "output_dir",
			Message: fmt.Sprintf(
				"workspace %s already exists with completed iterations %v; use --resume to continue from iteration %d, or --clean-restart to start over",
				s.workspace.Root, completed, nextIteration(completed)),
		}
	}
}

func nextIteration(completed []int) int {
	if len(completed) == 0 {
		return 1
	}
	return completed[len(completed)-1] + 1
}

// runOperator calls entry's configured operator, if any, and returns its
// OperatorResult or a zero value on any failure — never fatal to the
// iteration (§4.5, §7 OperatorSkip).
func (s *Scheduler) runOperator(ctx context.Context, entry IterationPlanEntry, iteration int, logger *slog.Logger) OperatorResult {
	if entry.Operator == "" {
		return OperatorResult{}
	}

	op, err := NewOperatorByName(entry.Operator, s.cfg)
	if err != nil {
		logger.Warn("operator: construction failed", "operator", entry.Operator, "error", err)
		return OperatorResult{}
	}

	opCtx, span := s.startSpan(ctx, "operator", StringAttr("operator", entry.Operator), IntAttr("iteration", iteration))
	defer span.End()
	started := time.Now()

	result, err := RunOperator(opCtx, op, s.workspace.Root, iteration, s.cfg.NumWorkers, s.pool, logger)
	if err != nil {
		logger.Warn("operator: skipped", "operator", entry.Operator, "iteration", iteration, "error", err)
		if s.metrics != nil {
			s.metrics.OperatorRun(ctx, entry.Operator, time.Since(started), true)
		}
		return OperatorResult{}
	}
	logger.Info("operator: succeeded", "operator", entry.Operator, "iteration", iteration)
	if s.metrics != nil {
		s.metrics.OperatorRun(ctx, entry.Operator, time.Since(started), false)
	}
	return result
}

// startSpan creates a child span via the configured Tracer, or a no-op
// span when none is set.
func (s *Scheduler) startSpan(ctx context.Context, name string, attrs ...SpanAttr) (context.Context, Span) {
	if s.tracer == nil {
		return ctx, noopSpan{}
	}
	return s.tracer.Start(ctx, name, attrs...)
}

// noopSpan is the Span used when no Tracer is configured.
type noopSpan struct{}

func (noopSpan) SetAttr(...SpanAttr)  {}
func (noopSpan) Event(string, ...SpanAttr) {}
func (noopSpan) Error(error)          {}
func (noopSpan) End()                 {}

// ingest implements §4.7 step d: compress the iteration's raw trajectories,
// then feed each instance's (problem, tra, patch) into the pool. A missing
// patch/pred is recorded as the FAILED_NO_PATCH sentinel so the pool
// summary reflects failure explicitly rather than silently succeeding.
// Failures here are logged, not returned — a pool or compression error
// never aborts the run (§7 PoolUpdateError).
func (s *Scheduler) ingest(ctx context.Context, iterationDir string, iteration int, logger *slog.Logger) {
	if _, err := s.compressor.CompressIterationDir(iterationDir); err != nil {
		logger.Warn("ingest: compression failed", "iteration", iteration, "error", err)
	}

	sets := s.dataMgr.GetIterationInstances(iterationDir)
	for _, set := range sets {
		patch := set.PatchContent
		if !set.HasPatch {
			patch = failedNoPatchSentinel
			logger.Warn((&ArtifactMissing{Instance: set.InstanceName, Iteration: iteration}).Error())
		}
		if err := s.pool.AddIterationSummary(ctx, set.InstanceName, iteration, set.TraContent, patch, set.Problem); err != nil {
			logger.Warn("ingest: pool update failed", "instance", set.InstanceName, "iteration", iteration, "error", err)
		}
	}
}

// joinConfigErrors combines multiple validation errors into a single
// *ConfigError whose message lists every field path, so Run reports the
// whole set at once instead of one-at-a-time (--validate-only prints
// Validate's slice directly and does not go through this function).
func joinConfigErrors(errs []error) error {
	messages := make([]string, len(errs))
	for i, err := range errs {
		messages[i] = err.Error()
	}
	return &ConfigError{Message: strings.Join(messages, "; ")}
}
