package seiter

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// alternativeStrategyOperator generates a strategy deliberately orthogonal
// to an instance's most recent iteration, emphasizing focused incremental
// changes when that iteration was marked FAILED.
type alternativeStrategyOperator struct {
	llm *LLMClient
}

func newAlternativeStrategyOperator(cfg SEConfig) Operator {
	return &alternativeStrategyOperator{llm: operatorLLM(cfg, nil)}
}

func init() {
	RegisterOperator("alternative_strategy", newAlternativeStrategyOperator)
}

func (o *alternativeStrategyOperator) Name() string          { return "alternative_strategy" }
func (o *alternativeStrategyOperator) Family() Family         { return FamilyTemplate }
func (o *alternativeStrategyOperator) StrategyPrefix() string { return "ALTERNATIVE SOLUTION STRATEGY" }

func (o *alternativeStrategyOperator) Discover(workspaceDir string, currentIteration int, pool *Pool, logger *slog.Logger) ([]InstanceContext, error) {
	contexts, err := DefaultDiscover(workspaceDir, currentIteration)
	if err != nil {
		return nil, err
	}
	return attachPool(contexts, pool), nil
}

const alternativeStrategySystemPrompt = `You are an expert software engineering strategist specializing in breakthrough problem-solving. Your task is to generate a fundamentally different approach to a software engineering problem, based on analyzing a previous failed attempt.

You will be given a problem and a previous approach that FAILED (possibly due to cost limits, early termination, or strategic inadequacy). Create a completely orthogonal strategy that:
1. Uses different investigation paradigms (e.g., runtime analysis vs static analysis)
2. Approaches from unconventional angles (e.g., user impact vs code structure)
3. Employs alternative tools and techniques
4. Follows different logical progression

CRITICAL: Your strategy must be architecturally dissimilar to avoid the same limitations and blind spots.

SPECIAL FOCUS: If the previous approach failed due to early termination or cost limits, prioritize:
- More focused, direct approaches
- Faster problem identification techniques
- Incremental validation methods
- Minimal viable change strategies

IMPORTANT:
- Respond with plain text, no formatting
- Keep response under 200 words for system prompt efficiency
- Focus on cognitive framework rather than code specifics
- Provide actionable strategic guidance`

const alternativeStrategyUserPromptTemplate = `Generate a radically different solution strategy:

PROBLEM:
%s...

PREVIOUS FAILED APPROACH:
%s...

Requirements for alternative strategy:
1. Adopt different investigation paradigm (e.g., empirical vs theoretical)
2. Start from alternative entry point (e.g., dependencies vs core logic)
3. Use non-linear logical sequence (e.g., symptom-to-cause vs cause-to-symptom)
4. Integrate unconventional techniques (e.g., profiling, fuzzing, visualization)
5. Prioritize overlooked aspects (e.g., performance, edge cases, integration)

Provide a concise strategic framework that enables an AI agent to approach this problem through an entirely different methodology. Focus on WHY this approach differs and HOW it circumvents previous limitations.

Keep response under 200 words.`

const alternativeStrategyFallback = "Try a more direct approach: focus on the specific error message, search for similar issues in the codebase, and make minimal targeted changes rather than broad modifications."

func (o *alternativeStrategyOperator) GenerateContent(ctx context.Context, ic InstanceContext) (string, error) {
	if ic.pool == nil {
		return "", nil
	}
	latest, summary, ok, err := ic.pool.LatestIteration(ic.InstanceName)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", nil
	}
	approach := formatLatestApproach(latest, summary)
	if approach == "" {
		return "", nil
	}

	if o.llm == nil {
		return alternativeStrategyFallback, nil
	}
	user := fmt.Sprintf(alternativeStrategyUserPromptTemplate, truncateForPrompt(ic.ProblemStatement, 400), truncateForPrompt(approach, 600))
	strategy, err := o.llm.Complete(ctx, alternativeStrategySystemPrompt, user)
	if err != nil || strings.TrimSpace(strategy) == "" {
		return alternativeStrategyFallback, nil
	}
	return strategy, nil
}

// formatLatestApproach mirrors AlternativeStrategyOperator._get_latest_failed_approach:
// a line-per-field summary of one iteration's recorded summary.
func formatLatestApproach(iteration int, s IterationSummary) string {
	var lines []string
	lines = append(lines, fmt.Sprintf("Strategy: %s", orNA(s.Strategy)))
	if s.Failed() {
		lines = append(lines, fmt.Sprintf("STATUS: FAILED - %s", orUnknown(s.FailureReason)))
	}
	if len(s.ModifiedFiles) > 0 {
		lines = append(lines, fmt.Sprintf("Modified Files: %s", strings.Join(s.ModifiedFiles, ", ")))
	}
	if s.KeyChanges != "" {
		lines = append(lines, fmt.Sprintf("Key Changes: %s", s.KeyChanges))
	}
	if len(s.ToolsUsed) > 0 {
		lines = append(lines, fmt.Sprintf("Tools Used: %s", strings.Join(s.ToolsUsed, ", ")))
	}
	if s.ReasoningPattern != "" {
		lines = append(lines, fmt.Sprintf("Reasoning Pattern: %s", s.ReasoningPattern))
	}
	if len(s.AssumptionsMade) > 0 {
		lines = append(lines, fmt.Sprintf("Assumptions: %s", strings.Join(s.AssumptionsMade, "; ")))
	}
	return strings.Join(lines, "\n")
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

func orUnknown(s string) string {
	if s == "" {
		return "Unknown failure"
	}
	return s
}

// truncateForPrompt mirrors the Python source's f-string slicing
// (problem_statement[:n]) by byte length. It appends nothing itself: the
// "..." after each %s in the prompt templates above is literal and appears
// whether or not the text was cut.
func truncateForPrompt(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit]
}
