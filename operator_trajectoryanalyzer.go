package seiter

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// trajectoryAnalyzerOperator reads the previous iteration's compressed
// trajectory directly (not the trajectory pool) and asks for a strategy
// radically different from what that trajectory attempted.
type trajectoryAnalyzerOperator struct {
	llm *LLMClient
}

func newTrajectoryAnalyzerOperator(cfg SEConfig) Operator {
	return &trajectoryAnalyzerOperator{llm: operatorLLM(cfg, nil)}
}

func init() {
	RegisterOperator("trajectory_analyzer", newTrajectoryAnalyzerOperator)
}

func (o *trajectoryAnalyzerOperator) Name() string          { return "trajectory_analyzer" }
func (o *trajectoryAnalyzerOperator) Family() Family         { return FamilyTemplate }
func (o *trajectoryAnalyzerOperator) StrategyPrefix() string { return "SOLUTION STRATEGY" }

func (o *trajectoryAnalyzerOperator) Discover(workspaceDir string, currentIteration int, pool *Pool, logger *slog.Logger) ([]InstanceContext, error) {
	return DefaultDiscover(workspaceDir, currentIteration)
}

const trajectoryAnalyzerSystemPrompt = `You are an expert software engineering strategy consultant specializing in innovative problem-solving. Your task is to generate radically divergent problem-solving approaches for software engineering tasks, drawing from diverse methodologies across fields like reverse engineering, data-driven analysis, simulation-based testing, or interdisciplinary techniques borrowed from domains such as systems biology or game theory.

You will be given a problem and trajectory analysis from a previous attempt. Your job is to create a fundamentally different strategy that:
1. Leverages entirely novel investigation paradigms, such as starting from end-user impact analysis or component isolation experiments
2. Approaches the problem from an unconventional angle, like focusing on runtime behavior tracing instead of static code review
3. Incorporates alternative tools, techniques, or conceptual frameworks, such as visualization tools for data flow or probabilistic modeling for error prediction
4. Establishes a distinct logical progression, perhaps iterative prototyping over linear debugging

CRITICAL: Your strategy must be architecturally dissimilar to avoid the same limitations and blind spots.

Respond with a high-level conceptual strategy that outlines key actionable steps. Emphasize the COGNITIVE FRAMEWORK rather than granular code specifics.

IMPORTANT:
- Respond ONLY with plain text without markdown formatting
- Do NOT use bullet points, headers, or special formatting
- Do NOT use any tools, commands, or function calls
- Provide ONLY the text content of the strategy
- Your response should be a cohesive strategic narrative in paragraph form`

const trajectoryAnalyzerUserPromptTemplate = `Generate a radically divergent solution strategy for this software engineering problem:

PROBLEM:
%s

TRAJECTORY ANALYSIS:
%s

Requirements for the solution strategy:
1. Adopt a profoundly different investigation paradigm, such as empirical experimentation or holistic system modeling
2. Initiate from an alternative entry point (e.g., examining dependencies externally or simulating environmental factors)
3. Pursue a non-linear or inverted logical sequence, like working backwards from symptoms to causes
4. Integrate unconventional debugging/analysis techniques, such as fuzzing, profiling, or comparative benchmarking
5. Prioritize overlooked aspects, like performance metrics, edge-case simulations, or cross-version diffs
6. Incorporate diverse tools and commands, potentially from outside the standard toolkit, where feasible

The strategy should be conceptual yet executable - articulate the reasoning paradigm and pivotal strategic phases that would enable an agent to tackle this problem via an entirely novel trajectory.

Elaborate on WHY this approach diverges significantly and HOW it circumvents the shortcomings of the previous effort, potentially by introducing variability in assumptions or exploring parallel hypotheses.

Craft a strategy that empowers an AI agent to reconceptualize the problem from ground zero with an innovative methodology, fostering breakthrough potential.`

const trajectoryAnalyzerFallback = "Adopt a systematic approach that begins with comprehensive problem space mapping rather than immediate code investigation. Start by establishing clear success criteria and testing boundaries, then proceed through iterative hypothesis formation and validation cycles. Focus on understanding the system's behavioral patterns through runtime observation and incremental experimentation rather than static analysis. This methodology emphasizes empirical validation over theoretical assumptions, allowing for rapid course correction when approaches prove ineffective. The strategy prioritizes building a robust mental model of the system's actual behavior before attempting modifications, ensuring that solutions address root causes rather than symptoms."

func (o *trajectoryAnalyzerOperator) GenerateContent(ctx context.Context, ic InstanceContext) (string, error) {
	problem := ic.ProblemStatement
	analysis := analyzeTrajectory(ic.Trajectory)

	if o.llm == nil {
		return trajectoryAnalyzerFallback, nil
	}
	user := fmt.Sprintf(trajectoryAnalyzerUserPromptTemplate, problem, analysis)
	strategy, err := o.llm.Complete(ctx, trajectoryAnalyzerSystemPrompt, user)
	if err != nil || strings.TrimSpace(strategy) == "" {
		return trajectoryAnalyzerFallback, nil
	}
	return strategy, nil
}

// analyzeTrajectory mirrors TrajectoryAnalyzerOperator._extract_trajectory_analysis:
// step/role counts, tool-usage detection, and the last three assistant
// responses (most recent first), each capped at 200 characters.
func analyzeTrajectory(doc traDocument) string {
	var assistantSteps, userSteps int
	hasTools := false
	for _, entry := range doc.Trajectory {
		switch entry.Role {
		case "assistant":
			assistantSteps++
			if entry.Action != "" {
				hasTools = true
			}
		case "user":
			userSteps++
		}
	}

	var responses []string
	for i := len(doc.Trajectory) - 1; i >= 0 && len(responses) < 3; i-- {
		entry := doc.Trajectory[i]
		if entry.Role != "assistant" {
			continue
		}
		text := entry.Content
		if text == "" {
			text = entry.Thought
		}
		responses = append(responses, truncateWithEllipsis(text, 200))
	}

	var recent strings.Builder
	for i, resp := range responses {
		fmt.Fprintf(&recent, "%d. %s\n", i+1, resp)
	}

	toolsUsed := "No"
	if hasTools {
		toolsUsed = "Yes"
	}

	return fmt.Sprintf("Trajectory statistics:\n- Total steps: %d\n- Assistant responses: %d\n- User inputs: %d\n- Tool usage: %s\n\nRecent assistant responses:\n%s",
		len(doc.Trajectory), assistantSteps, userSteps, toolsUsed, strings.TrimRight(recent.String(), "\n"))
}

func truncateWithEllipsis(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}
