package seiter

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
)

// crossoverOperator synthesizes a hybrid strategy from the two most recent
// iterations that carry a meaningful strategy record, skipping instances
// with fewer than two such iterations.
type crossoverOperator struct {
	llm *LLMClient
}

func newCrossoverOperator(cfg SEConfig) Operator {
	return &crossoverOperator{llm: operatorLLM(cfg, nil)}
}

func init() {
	RegisterOperator("crossover", newCrossoverOperator)
}

func (o *crossoverOperator) Name() string          { return "crossover" }
func (o *crossoverOperator) Family() Family         { return FamilyTemplate }
func (o *crossoverOperator) StrategyPrefix() string { return "CROSSOVER STRATEGY" }

func (o *crossoverOperator) Discover(workspaceDir string, currentIteration int, pool *Pool, logger *slog.Logger) ([]InstanceContext, error) {
	contexts, err := DefaultDiscover(workspaceDir, currentIteration)
	if err != nil {
		return nil, err
	}
	return attachPool(contexts, pool), nil
}

const crossoverSystemPrompt = `You are an expert software engineering strategy consultant specializing in synthesis and optimization. Your task is to analyze two different approaches to a software engineering problem and create a superior hybrid strategy that combines their strengths while avoiding their weaknesses.

You will be given a problem and two different approaches that have been tried. Your job is to:
1. Identify the strengths and effective elements of each approach
2. Recognize common pitfalls or limitations shared by both approaches
3. Synthesize a new strategy that leverages the best aspects of both while addressing their shortcomings
4. Create an approach that is more robust and comprehensive than either individual strategy

CRITICAL: Your strategy should be a thoughtful synthesis, not just a simple combination. Focus on how the approaches can complement each other and cover each other's blind spots.

IMPORTANT:
- Respond with plain text, no formatting
- Keep response under 250 words for system prompt efficiency
- Focus on strategic synthesis rather than technical details
- Provide actionable guidance that builds on both approaches`

const crossoverUserPromptTemplate = `Analyze these two approaches and create a superior hybrid strategy:

PROBLEM:
%s...

APPROACH 1:
%s...

APPROACH 2:
%s...

Create a crossover strategy that:
1. Combines the most effective elements from both approaches
2. Addresses the limitations observed in each approach
3. Covers blind spots that neither approach addressed individually
4. Provides a more comprehensive and robust solution methodology

Requirements for the hybrid strategy:
- Synthesize complementary strengths (e.g., if one approach excels at analysis and another at implementation, combine both)
- Mitigate shared weaknesses (e.g., if both approaches rush to implementation, emphasize planning)
- Fill coverage gaps (e.g., if both focus on code but ignore testing, integrate testing)
- Create synergistic effects where the combination is more powerful than individual parts

The strategy should be conceptual yet actionable, providing a framework that an AI agent can follow to achieve better results than either approach alone. Focus on WHY this synthesis is superior and HOW it leverages the best of both worlds while mitigating their individual shortcomings.`

const crossoverFallback = "Synthesize the most effective elements from both previous approaches. Start with the stronger analytical method from the first approach, then apply the more focused implementation technique from the second approach. Address the common limitations observed in both attempts by adding intermediate validation steps. This hybrid approach combines thorough analysis with targeted action, while incorporating safeguards against the pitfalls encountered in both previous attempts."

func (o *crossoverOperator) GenerateContent(ctx context.Context, ic InstanceContext) (string, error) {
	if ic.pool == nil {
		return "", nil
	}
	iterations, err := ic.pool.Iterations(ic.InstanceName)
	if err != nil {
		return "", err
	}
	valid := validCrossoverIterations(iterations)
	if len(valid) < 2 {
		return "", nil
	}

	first, second := valid[len(valid)-2], valid[len(valid)-1]
	t1 := formatCrossoverIteration(first.iteration, first.summary)
	t2 := formatCrossoverIteration(second.iteration, second.summary)

	if o.llm == nil {
		return crossoverFallback, nil
	}
	user := fmt.Sprintf(crossoverUserPromptTemplate, truncateForPrompt(ic.ProblemStatement, 400), truncateForPrompt(t1, 600), truncateForPrompt(t2, 600))
	strategy, err := o.llm.Complete(ctx, crossoverSystemPrompt, user)
	if err != nil || strings.TrimSpace(strategy) == "" {
		return crossoverFallback, nil
	}
	return strategy, nil
}

type crossoverIteration struct {
	iteration int
	summary   IterationSummary
}

// validCrossoverIterations mirrors CrossoverOperator._get_valid_iterations:
// an iteration counts only if it carries a strategy, modified_files, or
// key_changes — independent of FAILED status, sorted ascending by
// iteration number.
func validCrossoverIterations(iterations map[int]IterationSummary) []crossoverIteration {
	var valid []crossoverIteration
	for iteration, summary := range iterations {
		if summary.Strategy != "" || len(summary.ModifiedFiles) > 0 || summary.KeyChanges != "" {
			valid = append(valid, crossoverIteration{iteration: iteration, summary: summary})
		}
	}
	sort.Slice(valid, func(i, j int) bool { return valid[i].iteration < valid[j].iteration })
	return valid
}

// formatCrossoverIteration mirrors CrossoverOperator._format_trajectory_data.
func formatCrossoverIteration(iteration int, s IterationSummary) string {
	lines := []string{fmt.Sprintf("ITERATION %d:", iteration)}
	if s.Strategy != "" {
		lines = append(lines, fmt.Sprintf("Strategy: %s", s.Strategy))
	}
	if s.StrategyStatus != "" {
		lines = append(lines, fmt.Sprintf("Status: %s", s.StrategyStatus))
		if s.FailureReason != "" {
			lines = append(lines, fmt.Sprintf("Failure Reason: %s", s.FailureReason))
		}
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
