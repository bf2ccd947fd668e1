package seiter

import "encoding/json"

// ModelConfig is the LLM backend configuration shape used both for the
// primary model and (optionally) the operator/summarizer model.
type ModelConfig struct {
	Name            string  `yaml:"name" json:"name"`
	APIBase         string  `yaml:"api_base" json:"api_base"`
	APIKey          string  `yaml:"api_key" json:"api_key"`
	MaxInputTokens  int     `yaml:"max_input_tokens,omitempty" json:"max_input_tokens,omitempty"`
	MaxOutputTokens int     `yaml:"max_output_tokens,omitempty" json:"max_output_tokens,omitempty"`
	Temperature     float64 `yaml:"temperature,omitempty" json:"temperature,omitempty"`
	TopP            float64 `yaml:"top_p,omitempty" json:"top_p,omitempty"`
}

// InstancesConfig describes the batch of problem instances an iteration
// run operates over.
type InstancesConfig struct {
	JSONFile string `yaml:"json_file" json:"json_file"`
	Key      string `yaml:"key" json:"key"`
	Subset   string `yaml:"subset,omitempty" json:"subset,omitempty"`
	Split    string `yaml:"split,omitempty" json:"split,omitempty"`
	Shuffle  bool   `yaml:"shuffle,omitempty" json:"shuffle,omitempty"`
	Evaluate bool   `yaml:"evaluate,omitempty" json:"evaluate,omitempty"`
}

// IterationPlanEntry is one step of a StrategyPlan: which base config to
// launch the agent runner with, and which operator (if any) to run first.
type IterationPlanEntry struct {
	BaseConfig string `yaml:"base_config" json:"base_config"`
	Operator   string `yaml:"operator,omitempty" json:"operator,omitempty"`
}

// StrategyPlan is the ordered list of iterations a Scheduler drives
// through, 1-indexed in all user-facing output (plan[0] is iteration 1).
type StrategyPlan struct {
	Iterations []IterationPlanEntry `yaml:"iterations" json:"iterations"`
}

// SEConfig is the top-level YAML configuration schema (spec §6).
type SEConfig struct {
	BaseConfig     string          `yaml:"base_config" json:"base_config"`
	Model          ModelConfig     `yaml:"model" json:"model"`
	OperatorModels *ModelConfig    `yaml:"operator_models,omitempty" json:"operator_models,omitempty"`
	Instances      InstancesConfig `yaml:"instances" json:"instances"`
	OutputDir      string          `yaml:"output_dir" json:"output_dir"`
	NumWorkers     int             `yaml:"num_workers" json:"num_workers"`
	Strategy       StrategyPlan    `yaml:"strategy" json:"strategy"`
}

// OperatorResult is the tagged variant a RunOperator call returns to
// the scheduler: exactly one of TemplatesDir or EnhanceJSON is set,
// depending on the operator's Family.
type OperatorResult struct {
	TemplatesDir string `json:"instance_templates_dir,omitempty"`
	EnhanceJSON  string `json:"enhance_history_filter_json,omitempty"`
}

// IsZero reports whether r carries no result (the scheduler treats this
// the same as an OperatorSkip: the iteration proceeds without
// operator-derived config overlay).
func (r OperatorResult) IsZero() bool {
	return r.TemplatesDir == "" && r.EnhanceJSON == ""
}

// FallbackMeta is the meta sub-object attached to a deterministic fallback
// summary (see IterationSummary.Meta), grounded on TrajSummarizer.create_fallback_summary.
type FallbackMeta struct {
	IsFallback       bool `json:"is_fallback"`
	TrajectoryLength int  `json:"trajectory_length"`
	PatchLength      int  `json:"patch_length"`
	Iteration        int  `json:"iteration"`
}

// IterationSummary is the structured analysis of one instance's one
// iteration, stored under pool[instance][str(iteration)]. Either produced
// by the LLM per the §4.4.1 prompt contract, or by the deterministic
// fallback when the LLM call fails or its response doesn't validate.
type IterationSummary struct {
	ApproachSummary     string          `json:"approach_summary"`
	ModifiedFiles       []string        `json:"modified_files"`
	KeyChanges          string          `json:"key_changes"`
	Strategy            string          `json:"strategy"`
	SpecificTechniques  []string        `json:"specific_techniques"`
	ToolsUsed           []string        `json:"tools_used"`
	ReasoningPattern    string          `json:"reasoning_pattern"`
	AssumptionsMade     []string        `json:"assumptions_made"`
	ComponentsTouched   []string        `json:"components_touched"`
	StrategyStatus      string          `json:"strategy_status,omitempty"`
	FailureReason       string          `json:"failure_reason,omitempty"`
	Meta                *FallbackMeta   `json:"meta,omitempty"`
	raw                 json.RawMessage // unparsed LLM JSON, retained for diagnostics only
}

// Failed reports whether this summary records a FAILED_NO_PATCH instance.
func (s IterationSummary) Failed() bool { return s.StrategyStatus == "FAILED" }

// IsFallback reports whether this summary was produced by the
// deterministic fallback path rather than an LLM call.
func (s IterationSummary) IsFallback() bool { return s.Meta != nil && s.Meta.IsFallback }

// requiredSummaryFields lists the fields the §4.4.1 prompt contract
// requires for a parsed LLM response to be considered valid (anything
// missing triggers the deterministic fallback).
var requiredSummaryFields = []string{
	"approach_summary", "modified_files", "key_changes", "strategy",
	"specific_techniques", "tools_used", "reasoning_pattern",
	"assumptions_made", "components_touched",
}
