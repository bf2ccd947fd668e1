package seiter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Family distinguishes the two operator output shapes: Template operators
// write a per-instance system-prompt overlay; Enhance operators write a
// runtime history-filter JSON mapping.
type Family int

const (
	FamilyTemplate Family = iota
	FamilyEnhance
)

// InstanceContext is the per-instance input an Operator's GenerateContent
// hook receives: the previous iteration's compressed trajectory plus
// whatever problem statement discovery managed to extract.
type InstanceContext struct {
	InstanceName      string
	InstanceDir       string
	PreviousIteration int
	ProblemStatement  string
	Trajectory        traDocument

	// pool is the run's trajectory pool, attached by Discover so
	// GenerateContent implementations that need cross-iteration history
	// (alternative_strategy, crossover, traj_pool_summary) can query it
	// without threading an extra parameter through the Operator interface.
	pool *Pool
}

// attachPool copies pool onto every context in contexts, for Discover
// implementations that build on DefaultDiscover and then need pool access
// in GenerateContent.
func attachPool(contexts []InstanceContext, pool *Pool) []InstanceContext {
	for i := range contexts {
		contexts[i].pool = pool
	}
	return contexts
}

// Operator is a stateful per-iteration processor: it discovers work from
// iteration_<current-1>, derives per-instance content, and the shared
// runner (RunOperator) serializes that content per Family.
type Operator interface {
	Name() string
	Family() Family
	StrategyPrefix() string
	Discover(workspaceDir string, currentIteration int, pool *Pool, logger *slog.Logger) ([]InstanceContext, error)
	GenerateContent(ctx context.Context, ic InstanceContext) (string, error)
}

// OperatorFactory constructs a fresh Operator instance from the run's
// config (model credentials, etc).
type OperatorFactory func(cfg SEConfig) Operator

var operatorRegistry = map[string]OperatorFactory{}

// RegisterOperator adds name to the global operator registry. Concrete
// operators call this from an init() func, mirroring the teacher
// package-scoped registration idiom used elsewhere in this module.
func RegisterOperator(name string, factory OperatorFactory) {
	operatorRegistry[name] = factory
}

// NewOperatorByName looks up name in the registry and constructs it with
// cfg. Returns a *ConfigError if name is not registered.
func NewOperatorByName(name string, cfg SEConfig) (Operator, error) {
	factory, ok := operatorRegistry[name]
	if !ok {
		return nil, &ConfigError{Field: "strategy.iterations[].operator", Message: fmt.Sprintf("unknown operator %q", name)}
	}
	return factory(cfg), nil
}

// operatorLLM builds the LLM client operator factories share: operator
// calls use cfg.OperatorModels when the run configured a separate,
// typically cheaper, model for operator-generated content, falling back to
// the main agent model. A construction failure is logged and treated as
// "no LLM available" rather than a fatal factory error, since every
// concrete operator has a deterministic fallback string.
func operatorLLM(cfg SEConfig, metrics Metrics) *LLMClient {
	model := cfg.Model
	if cfg.OperatorModels != nil {
		model = *cfg.OperatorModels
	}
	client, err := NewLLMClient(model, WithLLMMetrics(metrics))
	if err != nil {
		slog.Default().Warn("operator: no LLM client available, falling back to static guidance", "error", err)
		return nil
	}
	return client
}

// DefaultDiscover implements the shared C5 discovery rule: list the
// direct subdirectories of iteration_<currentIteration-1> that contain at
// least one .tra file, parse each .tra, and extract its problem statement
// from the second trajectory entry's <pr_description> tag. A missing
// previous-iteration directory yields no instances, not an error.
func DefaultDiscover(workspaceDir string, currentIteration int) ([]InstanceContext, error) {
	prev := currentIteration - 1
	if prev < 1 {
		return nil, nil
	}

	prevDir := filepath.Join(workspaceDir, fmt.Sprintf("iteration_%d", prev))
	entries, err := os.ReadDir(prevDir)
	if err != nil {
		return nil, nil
	}

	var contexts []InstanceContext
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		instanceDir := filepath.Join(prevDir, entry.Name())
		raw, err := os.ReadFile(filepath.Join(instanceDir, entry.Name()+".tra"))
		if err != nil {
			continue
		}
		var doc traDocument
		if err := json.Unmarshal(raw, &doc); err != nil {
			continue
		}
		contexts = append(contexts, InstanceContext{
			InstanceName:      entry.Name(),
			InstanceDir:       instanceDir,
			PreviousIteration: prev,
			ProblemStatement:  extractProblemFromTraDoc(doc),
			Trajectory:        doc,
		})
	}
	return contexts, nil
}

// extractProblemFromTraDoc applies the shared problem-statement
// extraction hook: the second entry (index 1) of a .tra document, if
// role=user, is scanned for a <pr_description>...</pr_description> span.
func extractProblemFromTraDoc(doc traDocument) string {
	if len(doc.Trajectory) < 2 {
		return ""
	}
	entry := doc.Trajectory[1]
	if entry.Role != "user" {
		return ""
	}
	match := prDescriptionPattern.FindStringSubmatch(entry.Content)
	if match == nil {
		return ""
	}
	return strings.TrimSpace(match[1])
}

type operatorOutcome struct {
	instanceName string
	content      string
}

// RunOperator executes op's full per-iteration pipeline: discovery, a
// bounded-concurrency fan-out of GenerateContent across discovered
// instances (skipping any with an empty problem statement or empty
// generated content, logged not fatal), and family-specific
// serialization. The operator succeeds if at least one instance
// succeeded; otherwise it returns an *OperatorSkip, which the scheduler
// treats as a best-effort skip rather than a fatal error.
func RunOperator(ctx context.Context, op Operator, workspaceDir string, currentIteration, numWorkers int, pool *Pool, logger *slog.Logger) (OperatorResult, error) {
	if logger == nil {
		logger = slog.Default()
	}

	contexts, err := op.Discover(workspaceDir, currentIteration, pool, logger)
	if err != nil {
		return OperatorResult{}, err
	}
	if len(contexts) == 0 {
		return OperatorResult{}, &OperatorSkip{Operator: op.Name(), Iteration: currentIteration, Reason: "no instances discovered"}
	}

	if numWorkers < 1 {
		numWorkers = 1
	}
	sem := make(chan struct{}, numWorkers)

	var wg sync.WaitGroup
	var mu sync.Mutex
	var outcomes []operatorOutcome

	for _, ic := range contexts {
		ic := ic
		if ic.ProblemStatement == "" {
			logger.Warn("operator: skipping instance, empty problem statement", "operator", op.Name(), "instance", ic.InstanceName)
			continue
		}

		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			content, err := op.GenerateContent(ctx, ic)
			if err != nil {
				logger.Warn("operator: instance failed", "operator", op.Name(), "instance", ic.InstanceName, "error", err)
				return
			}
			if content == "" {
				logger.Warn("operator: instance produced empty content", "operator", op.Name(), "instance", ic.InstanceName)
				return
			}

			mu.Lock()
			outcomes = append(outcomes, operatorOutcome{instanceName: ic.InstanceName, content: content})
			mu.Unlock()
		}()
	}
	wg.Wait()

	if len(outcomes) == 0 {
		return OperatorResult{}, &OperatorSkip{Operator: op.Name(), Iteration: currentIteration, Reason: "no instance succeeded"}
	}

	switch op.Family() {
	case FamilyEnhance:
		return OperatorResult{}, fmt.Errorf("operator %s: enhance family serialization is not implemented (out of scope)", op.Name())
	default:
		dir, err := writeTemplateOutputs(workspaceDir, currentIteration, op.StrategyPrefix(), outcomes)
		if err != nil {
			return OperatorResult{}, err
		}
		return OperatorResult{TemplatesDir: dir}, nil
	}
}

const templateSystemPreamble = "You are a helpful assistant that can interact with a terminal to solve software engineering tasks."

type templateAgentConfig struct {
	Agent struct {
		Templates struct {
			SystemTemplate string `yaml:"system_template"`
		} `yaml:"templates"`
	} `yaml:"agent"`
}

// writeTemplateOutputs writes one YAML file per outcome to
// <workspaceDir>/iteration_<currentIteration>/system_prompt/<instance>.yaml,
// per §4.5.1's fixed preamble + strategy-prefix + generated-content shape.
func writeTemplateOutputs(workspaceDir string, currentIteration int, strategyPrefix string, outcomes []operatorOutcome) (string, error) {
	dir := filepath.Join(workspaceDir, fmt.Sprintf("iteration_%d", currentIteration), "system_prompt")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create system_prompt dir: %w", err)
	}

	for _, outcome := range outcomes {
		var cfg templateAgentConfig
		cfg.Agent.Templates.SystemTemplate = fmt.Sprintf("%s\n\n%s:\n\n%s", templateSystemPreamble, strategyPrefix, outcome.content)

		encoded, err := yaml.Marshal(cfg)
		if err != nil {
			return "", fmt.Errorf("marshal template for %s: %w", outcome.instanceName, err)
		}
		path := filepath.Join(dir, outcome.instanceName+".yaml")
		if err := os.WriteFile(path, encoded, 0o644); err != nil {
			return "", fmt.Errorf("write template for %s: %w", outcome.instanceName, err)
		}
	}
	return dir, nil
}

// EnhanceAnalysis is the per-instance schema the Enhance family's JSON
// mapping carries (§4.5.2). The runtime history-rewriting hook that
// consumes this mapping is out of scope; only the schema and its
// serialization are implemented.
type EnhanceAnalysis struct {
	ApproachSummary                    string   `json:"approach_summary"`
	ModifiedFiles                      []string `json:"modified_files"`
	KeyChanges                         string   `json:"key_changes"`
	Strategy                           string   `json:"strategy"`
	SpecificTechniqueFromFirstSolution string   `json:"specific_technique_from_first_solution"`
	SpecificFilesOrFunctions           []string `json:"specific_files_or_functions"`
	AssumptionsMadeInFirstSolution     []string `json:"assumptions_made_in_first_solution"`
	DifferentPerspective               string   `json:"different_perspective"`
	ComponentNotTouchedInFirstSolution []string `json:"component_not_touched_in_first_solution"`
}

type enhanceEntry struct {
	ClaudeAnalysis EnhanceAnalysis `json:"claude_analysis"`
	IsCalled       *string         `json:"is_called"`
}

// WriteEnhanceJSON serializes analyses as the instance_id →
// {claude_analysis, is_called: null} mapping §4.5.2 specifies, writing it
// to path. is_called is always null here: marking it is the runtime
// injection hook's job, which this module does not implement.
func WriteEnhanceJSON(path string, analyses map[string]EnhanceAnalysis) error {
	wrapped := make(map[string]enhanceEntry, len(analyses))
	for instance, analysis := range analyses {
		wrapped[instance] = enhanceEntry{ClaudeAnalysis: analysis, IsCalled: nil}
	}
	encoded, err := json.MarshalIndent(wrapped, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, encoded, 0o644)
}
