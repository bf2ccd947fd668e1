package seiter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// failedNoPatchSentinel is passed as patchContent when an iteration
// produced no .patch/.pred artifact, so the summary records failure
// explicitly instead of silently treating an empty patch as a solution.
const failedNoPatchSentinel = "FAILED_NO_PATCH"

const summarizerSystemPrompt = `You are an AI assistant specialized in analyzing software engineering trajectories. Your task is to analyze execution trajectories from SWE-agent runs and provide structured insights about the solution approach.

You will be provided with:
1. A trajectory file (.tra) in JSON format containing the agent's step-by-step execution
2. A prediction file (.pred) containing the final result

Your goal is to extract and summarize the core solution strategy, techniques, and approaches used in this trajectory.

Return your analysis in JSON format with the following fields:
- approach_summary: A concise summary of the main approach used in this solution
- modified_files: List of files that were modified during execution
- key_changes: Description of the most important code changes made
- strategy: The core solution strategy at an abstract level
- specific_techniques: Specific techniques or methods used in this solution
- tools_used: Tools and commands heavily utilized during execution
- reasoning_pattern: The problem-solving pattern observed in the trajectory
- assumptions_made: Key assumptions made during the solution process
- components_touched: Main components, functions, or modules that were modified

Focus on extracting actionable insights about the solution methodology rather than implementation details.`

const summarizerUserPromptTemplate = `Please analyze the following SWE-agent trajectory and provide insights about the solution approach.

Trajectory Data (.tra file):
%s

Prediction Result (.patch/.pred file):
%s

Please provide your analysis in the JSON format specified in the system prompt.`

// Pool is the append-only, per-instance, per-iteration trajectory summary
// store backed by a single JSON file at <workspace>/traj.pool. Every
// mutation goes through the whole load → mutate → save cycle under a
// single mutex: the file is small enough that a full rewrite per update is
// the simplest correct approach, and concurrent iteration runs never
// happen (the scheduler runs iterations strictly in sequence), but
// operators may read and summarize in parallel within an iteration.
type Pool struct {
	Path    string
	LLM     *LLMClient
	Logger  *slog.Logger
	Metrics Metrics

	mu sync.Mutex
}

// poolData mirrors the on-disk shape: instance name → { "problem": "...",
// "<iteration>": {...summary...} }. Raw messages are used because the
// "problem" key's value (a string) and the iteration keys' values (summary
// objects) don't share a Go type; marshaling through json.RawMessage keeps
// the file's shape exactly as written without a custom encoder.
type poolData map[string]map[string]json.RawMessage

// NewPool returns a Pool backed by path. llm may be nil, in which case
// every summary is produced by the deterministic fallback.
func NewPool(path string, llm *LLMClient, logger *slog.Logger) *Pool {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pool{Path: path, LLM: llm, Logger: logger}
}

// Initialize creates the pool's parent directory and writes an empty pool
// if the file does not already exist. Idempotent.
func (p *Pool) Initialize() error {
	if err := os.MkdirAll(filepath.Dir(p.Path), 0o755); err != nil {
		return fmt.Errorf("create pool directory: %w", err)
	}
	if _, err := os.Stat(p.Path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return err
	}
	return p.save(poolData{})
}

// Load reads the whole pool file. A missing file is not an error: it
// returns an empty pool, matching a freshly initialized workspace.
func (p *Pool) Load() (poolData, error) {
	raw, err := os.ReadFile(p.Path)
	if os.IsNotExist(err) {
		return poolData{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read pool: %w", err)
	}
	var data poolData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("parse pool: %w", err)
	}
	if data == nil {
		data = poolData{}
	}
	return data, nil
}

// save writes the whole pool atomically via write-then-rename in the same
// directory, so a crash mid-write never leaves a truncated pool file.
func (p *Pool) save(data poolData) error {
	encoded, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(p.Path)
	tmp, err := os.CreateTemp(dir, ".traj.pool.*.tmp")
	if err != nil {
		return fmt.Errorf("create temp pool file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(encoded); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp pool file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpPath, p.Path)
}

// AddIterationSummary loads the pool, records problem (if this is the
// instance's first appearance and problem is non-empty), computes a
// summary for (traContent, patchContent, iteration), stores it at
// pool[instance][str(iteration)], and saves — all under a single mutex
// so concurrent operator/instance goroutines within the same iteration
// never interleave a load with another's save.
func (p *Pool) AddIterationSummary(ctx context.Context, instance string, iteration int, traContent, patchContent, problem string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	data, err := p.Load()
	if err != nil {
		return &PoolUpdateError{Path: p.Path, Err: err}
	}

	if data[instance] == nil {
		data[instance] = map[string]json.RawMessage{}
	}
	if _, hasProblem := data[instance]["problem"]; !hasProblem && problem != "" {
		encoded, _ := json.Marshal(problem)
		data[instance]["problem"] = encoded
	}

	summary := p.summarize(ctx, instance, traContent, patchContent, iteration)
	encoded, err := json.Marshal(summary)
	if err != nil {
		return &PoolUpdateError{Path: p.Path, Err: err}
	}
	data[instance][strconv.Itoa(iteration)] = encoded

	if err := p.save(data); err != nil {
		return &PoolUpdateError{Path: p.Path, Err: err}
	}
	if p.Metrics != nil {
		p.Metrics.PoolUpdate(ctx, summary.IsFallback())
	}
	return nil
}

// summarize produces the IterationSummary for one instance's iteration.
// When an LLM client is configured, it is tried first; a missing client,
// a transport error, or a response that fails validation all fall back to
// the deterministic summary. Either way, the FAILED_NO_PATCH sentinel
// always forces strategy_status=FAILED on the result, so a failed
// iteration is never silently recorded as having succeeded.
func (p *Pool) summarize(ctx context.Context, instance, traContent, patchContent string, iteration int) IterationSummary {
	isFailed := patchContent == failedNoPatchSentinel

	summary := p.fallbackSummary(traContent, patchContent, iteration)
	if p.LLM != nil {
		resp, err := p.LLM.Complete(ctx, summarizerSystemPrompt, fmt.Sprintf(summarizerUserPromptTemplate, traContent, patchContent))
		if err != nil {
			p.logFallback(instance, iteration, err.Error())
		} else if parsed, ok := parseSummaryResponse(resp); ok {
			summary = parsed
		} else {
			p.logFallback(instance, iteration, "LLM response failed validation")
		}
	}

	if isFailed {
		summary.StrategyStatus = "FAILED"
		summary.FailureReason = "No patch/prediction generated (likely due to cost limit or early termination)"
	}
	return summary
}

// logFallback records a *SummarizationFallback: never returned (summarize
// has no error path of its own), just logged so the deterministic-fallback
// reason is visible in se_framework.log under its proper taxonomy type.
func (p *Pool) logFallback(instance string, iteration int, reason string) {
	p.Logger.Warn((&SummarizationFallback{Instance: instance, Iteration: iteration, Reason: reason}).Error())
}

// parseSummaryResponse tolerates surrounding prose by extracting the
// substring between the first '{' and the last '}' before parsing, then
// requires every field in requiredSummaryFields to be present.
func parseSummaryResponse(resp string) (IterationSummary, bool) {
	trimmed := strings.TrimSpace(resp)
	start := strings.IndexByte(trimmed, '{')
	end := strings.LastIndexByte(trimmed, '}')
	if start < 0 || end < start {
		return IterationSummary{}, false
	}
	candidate := trimmed[start : end+1]

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(candidate), &fields); err != nil {
		return IterationSummary{}, false
	}
	for _, required := range requiredSummaryFields {
		if _, ok := fields[required]; !ok {
			return IterationSummary{}, false
		}
	}

	var summary IterationSummary
	if err := json.Unmarshal([]byte(candidate), &summary); err != nil {
		return IterationSummary{}, false
	}
	summary.raw = json.RawMessage(candidate)
	return summary, true
}

// fallbackSummary is the deterministic stub used when no LLM client is
// configured, the call fails, or the response doesn't validate.
func (p *Pool) fallbackSummary(traContent, patchContent string, iteration int) IterationSummary {
	trajectoryLength := 0
	if traContent != "" {
		trajectoryLength = len(strings.Split(traContent, "\n"))
	}
	patchLength := len(patchContent)

	return IterationSummary{
		ApproachSummary:    fmt.Sprintf("Iteration %d execution with %d trajectory steps", iteration, trajectoryLength),
		ModifiedFiles:      []string{"unknown"},
		KeyChanges:         "Unable to analyze - LLM summarization failed",
		Strategy:           fmt.Sprintf("iteration_%d_strategy", iteration),
		SpecificTechniques: []string{"automated_execution"},
		ToolsUsed:          []string{"swe_agent"},
		ReasoningPattern:   "step_by_step_execution",
		AssumptionsMade:    []string{"standard_swe_agent_assumptions"},
		ComponentsTouched:  []string{"unknown_components"},
		Meta: &FallbackMeta{
			IsFallback:       true,
			TrajectoryLength: trajectoryLength,
			PatchLength:      patchLength,
			Iteration:        iteration,
		},
	}
}

// PoolStats summarizes the pool's current contents.
type PoolStats struct {
	TotalInstances  int      `json:"total_instances"`
	TotalIterations int      `json:"total_iterations"`
	Instances       []string `json:"instances"`
}

// GetPoolStats reports the number of instances, total iteration summaries
// across all instances, and the instance names present in the pool.
func (p *Pool) GetPoolStats() (PoolStats, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	data, err := p.Load()
	if err != nil {
		return PoolStats{}, err
	}

	stats := PoolStats{TotalInstances: len(data), Instances: make([]string, 0, len(data))}
	for instance, record := range data {
		stats.Instances = append(stats.Instances, instance)
		for key := range record {
			if key == "problem" {
				continue
			}
			stats.TotalIterations++
		}
	}
	return stats, nil
}

// GetInstanceSummary returns a parsed iteration summary for instance at
// the given iteration, if present.
func (p *Pool) GetInstanceSummary(instance string, iteration int) (IterationSummary, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	data, err := p.Load()
	if err != nil {
		return IterationSummary{}, false, err
	}
	record, ok := data[instance]
	if !ok {
		return IterationSummary{}, false, nil
	}
	raw, ok := record[strconv.Itoa(iteration)]
	if !ok {
		return IterationSummary{}, false, nil
	}
	var summary IterationSummary
	if err := json.Unmarshal(raw, &summary); err != nil {
		return IterationSummary{}, false, err
	}
	summary.raw = raw
	return summary, true, nil
}

// LatestIteration returns the highest iteration number recorded for
// instance and its summary, or false if the instance has no iterations.
func (p *Pool) LatestIteration(instance string) (int, IterationSummary, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	data, err := p.Load()
	if err != nil {
		return 0, IterationSummary{}, false, err
	}
	record, ok := data[instance]
	if !ok {
		return 0, IterationSummary{}, false, nil
	}

	latest := -1
	for key := range record {
		if key == "problem" {
			continue
		}
		n, err := strconv.Atoi(key)
		if err == nil && n > latest {
			latest = n
		}
	}
	if latest < 0 {
		return 0, IterationSummary{}, false, nil
	}

	var summary IterationSummary
	if err := json.Unmarshal(record[strconv.Itoa(latest)], &summary); err != nil {
		return 0, IterationSummary{}, false, err
	}
	return latest, summary, true, nil
}

// Iterations returns every numeric-keyed summary recorded for instance,
// unfiltered (including FAILED ones) — the raw material operators apply
// their own "valid iteration" predicates to.
func (p *Pool) Iterations(instance string) (map[int]IterationSummary, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	data, err := p.Load()
	if err != nil {
		return nil, err
	}
	record, ok := data[instance]
	if !ok {
		return nil, nil
	}

	out := make(map[int]IterationSummary, len(record))
	for key, raw := range record {
		if key == "problem" {
			continue
		}
		n, err := strconv.Atoi(key)
		if err != nil {
			continue
		}
		var summary IterationSummary
		if err := json.Unmarshal(raw, &summary); err != nil {
			continue
		}
		out[n] = summary
	}
	return out, nil
}

// Problem returns the stored problem statement for instance, if any.
func (p *Pool) Problem(instance string) (string, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	data, err := p.Load()
	if err != nil {
		return "", false, err
	}
	record, ok := data[instance]
	if !ok {
		return "", false, nil
	}
	raw, ok := record["problem"]
	if !ok {
		return "", false, nil
	}
	var problem string
	if err := json.Unmarshal(raw, &problem); err != nil {
		return "", false, err
	}
	return problem, true, nil
}

// InstanceNames returns every instance name currently recorded in the
// pool, the set risk-summary-style operators iterate when they derive
// guidance directly from the pool rather than from iteration_<prev>/.
func (p *Pool) InstanceNames() ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	data, err := p.Load()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(data))
	for name := range data {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}
