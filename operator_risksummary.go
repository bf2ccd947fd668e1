package seiter

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
)

// riskSummaryOperator reads the run's entire trajectory pool directly
// (bypassing iteration_<prev>/ discovery entirely) and asks the LLM to
// distill common blind spots across an instance's past attempts into
// short risk-avoidance guidance.
type riskSummaryOperator struct {
	llm *LLMClient
}

func newRiskSummaryOperator(cfg SEConfig) Operator {
	return &riskSummaryOperator{llm: operatorLLM(cfg, nil)}
}

func init() {
	RegisterOperator("traj_pool_summary", newRiskSummaryOperator)
}

func (o *riskSummaryOperator) Name() string  { return "traj_pool_summary" }
func (o *riskSummaryOperator) Family() Family { return FamilyTemplate }
func (o *riskSummaryOperator) StrategyPrefix() string {
	return "RISK-AWARE PROBLEM SOLVING GUIDANCE"
}

// Discover overrides the shared iteration_<prev>/ scan entirely: every
// instance the pool has recorded at least one iteration for is a
// candidate, regardless of whether it appears in the previous iteration's
// workspace directory.
func (o *riskSummaryOperator) Discover(workspaceDir string, currentIteration int, pool *Pool, logger *slog.Logger) ([]InstanceContext, error) {
	if pool == nil {
		return nil, nil
	}
	names, err := pool.InstanceNames()
	if err != nil {
		return nil, err
	}

	var contexts []InstanceContext
	for _, name := range names {
		iterations, err := pool.Iterations(name)
		if err != nil {
			return nil, err
		}
		if len(iterations) == 0 {
			continue
		}
		contexts = append(contexts, InstanceContext{
			InstanceName:      name,
			PreviousIteration: currentIteration - 1,
			ProblemStatement:  "placeholder",
			pool:              pool,
		})
	}
	return contexts, nil
}

const riskSummarySystemPrompt = `You are a software engineering consultant specializing in failure analysis. Analyze failed attempts and provide concise, actionable guidance for avoiding common pitfalls.

Your output will be used as system prompt guidance, so be direct and specific.

Focus on:
1. Key blind spots to avoid
2. Critical risk points
3. Brief strategic approach

IMPORTANT:
- Keep response under 200 words total
- Use plain text, no formatting
- Be specific and actionable
- Focus on risk avoidance`

const riskSummaryUserPromptTemplate = `Analyze these failed attempts and provide concise guidance:

PROBLEM:
%s...

FAILED ATTEMPTS:
%s...

Provide concise guidance in this structure:

BLIND SPOTS TO AVOID:
[List 2-3 key systematic limitations observed]

CRITICAL RISKS:
[List 2-3 specific failure patterns to watch for]

STRATEGIC APPROACH:
[2-3 sentences on how to approach this problem differently]

Keep total response under 200 words. Be specific and actionable.`

const riskSummaryFallback = "Be careful with changes that affect multiple files. Test each change incrementally. Focus on understanding the problem before implementing solutions."

func (o *riskSummaryOperator) GenerateContent(ctx context.Context, ic InstanceContext) (string, error) {
	if ic.pool == nil {
		return "", nil
	}
	iterations, err := ic.pool.Iterations(ic.InstanceName)
	if err != nil {
		return "", err
	}
	if len(iterations) == 0 {
		return "", nil
	}

	poolProblem := fmt.Sprintf("Instance %s software engineering problem", ic.InstanceName)
	formatted := formatPastAttempts(iterations)

	if o.llm == nil {
		return riskSummaryFallback, nil
	}
	user := fmt.Sprintf(riskSummaryUserPromptTemplate, truncateForPrompt(poolProblem, 300), truncateForPrompt(formatted, 800))
	guidance, err := o.llm.Complete(ctx, riskSummarySystemPrompt, user)
	if err != nil || strings.TrimSpace(guidance) == "" {
		return riskSummaryFallback, nil
	}
	return guidance, nil
}

// formatPastAttempts mirrors TrajPoolSummaryOperator._format_approaches_data,
// iterating iterations in ascending order for stable, reproducible prompts.
func formatPastAttempts(iterations map[int]IterationSummary) string {
	keys := make([]int, 0, len(iterations))
	for k := range iterations {
		keys = append(keys, k)
	}
	sort.Ints(keys)

	var b strings.Builder
	for _, key := range keys {
		s := iterations[key]
		fmt.Fprintf(&b, "\nATTEMPT %d:\n", key)
		fmt.Fprintf(&b, "Strategy: %s\n", orNA(s.Strategy))
		fmt.Fprintf(&b, "Files Modified: %s\n", strings.Join(s.ModifiedFiles, ", "))
		fmt.Fprintf(&b, "Key Changes: %s\n", s.KeyChanges)
		fmt.Fprintf(&b, "Tools: %s\n", strings.Join(s.ToolsUsed, ", "))
		fmt.Fprintf(&b, "Assumptions: %s\n", strings.Join(s.AssumptionsMade, "; "))
	}
	return b.String()
}
