package seiter

import "fmt"

// ErrLLM represents a failure from the LLM transport (construction error,
// malformed response, or a non-2xx HTTP status that the caller should not
// treat as transient). There is no retry wrapper in this package — C1 is
// one-shot by design, so ErrLLM always surfaces directly to the caller.
type ErrLLM struct {
	Provider string
	Message  string
}

func (e *ErrLLM) Error() string {
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

// ErrHTTP carries a non-2xx HTTP response from the LLM transport.
type ErrHTTP struct {
	Status int
	Body   string
}

func (e *ErrHTTP) Error() string {
	return fmt.Sprintf("http %d: %s", e.Status, e.Body)
}

// ConfigError reports a problem found while validating a StrategyPlan or
// its referenced config files. ConfigError is fatal: it is reported before
// any iteration starts and is the only error kind (besides an unexpected
// panic) that propagates all the way to the process exit code.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// IterationFailure reports that the agent runner subprocess for an
// iteration exited with a non-zero status. The scheduler stops further
// iterations when this occurs, but pool state from prior iterations is
// preserved.
type IterationFailure struct {
	Iteration int
	ExitCode  int
	Message   string
}

func (e *IterationFailure) Error() string {
	return fmt.Sprintf("iteration %d: agent runner exited %d: %s", e.Iteration, e.ExitCode, e.Message)
}

// OperatorSkip reports that an operator returned no result or failed for
// an iteration. It is never fatal: the scheduler logs it and proceeds to
// the agent runner without operator-derived inputs.
type OperatorSkip struct {
	Operator  string
	Iteration int
	Reason    string
}

func (e *OperatorSkip) Error() string {
	return fmt.Sprintf("operator %q skipped at iteration %d: %s", e.Operator, e.Iteration, e.Reason)
}

// SummarizationFallback reports that the trajectory pool produced a
// deterministic fallback summary instead of an LLM-generated one (LLM
// unavailable, timed out, or returned unparsable/incomplete JSON). Never
// fatal — the fallback summary is still stored in the pool with
// meta.is_fallback set.
type SummarizationFallback struct {
	Instance  string
	Iteration int
	Reason    string
}

func (e *SummarizationFallback) Error() string {
	return fmt.Sprintf("summarization fallback for %s iteration %d: %s", e.Instance, e.Iteration, e.Reason)
}

// PoolUpdateError reports an I/O failure while loading or saving
// traj.pool. Never fatal: the scheduler logs it and continues; the last
// successful save remains authoritative (no rollback).
type PoolUpdateError struct {
	Path string
	Err  error
}

func (e *PoolUpdateError) Error() string {
	return fmt.Sprintf("pool update failed at %s: %v", e.Path, e.Err)
}

func (e *PoolUpdateError) Unwrap() error { return e.Err }

// ArtifactMissing is not an error in the usual sense — it is the
// representation of a result: an instance produced a `.tra` but no
// `.patch`/`.pred`. The trajectory pool records this as
// strategy_status=FAILED rather than aborting anything.
type ArtifactMissing struct {
	Instance  string
	Iteration int
}

func (e *ArtifactMissing) Error() string {
	return fmt.Sprintf("instance %s iteration %d: no patch or prediction artifact", e.Instance, e.Iteration)
}

// UserInterrupt reports a SIGINT received between iterations. The
// workspace is left in a state recoverable via --resume.
type UserInterrupt struct {
	LastCompletedIteration int
}

func (e *UserInterrupt) Error() string {
	return fmt.Sprintf("interrupted after iteration %d (resume with --resume)", e.LastCompletedIteration)
}
