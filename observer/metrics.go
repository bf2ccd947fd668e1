package observer

import (
	"context"
	"time"

	seiter "github.com/nevindra/seiter"
)

// otelMetrics implements seiter.Metrics on top of Instruments.
type otelMetrics struct {
	inst *Instruments
}

// NewMetrics returns a seiter.Metrics backed by inst. Pass the *Instruments
// returned from Init.
func NewMetrics(inst *Instruments) seiter.Metrics {
	return &otelMetrics{inst: inst}
}

func (m *otelMetrics) IterationCompleted(ctx context.Context, iteration int, d time.Duration) {
	m.inst.IterationRuns.Add(ctx, 1)
	m.inst.IterationDuration.Record(ctx, float64(d.Milliseconds()))
}

func (m *otelMetrics) IterationFailed(ctx context.Context, iteration int, d time.Duration) {
	m.inst.IterationRuns.Add(ctx, 1)
	m.inst.IterationDuration.Record(ctx, float64(d.Milliseconds()))
}

func (m *otelMetrics) OperatorRun(ctx context.Context, name string, d time.Duration, skipped bool) {
	if skipped {
		m.inst.OperatorSkips.Add(ctx, 1)
	} else {
		m.inst.OperatorRuns.Add(ctx, 1)
	}
	m.inst.OperatorDuration.Record(ctx, float64(d.Milliseconds()))
}

func (m *otelMetrics) LLMCall(ctx context.Context, model string, promptTokens, completionTokens int, d time.Duration) {
	m.inst.LLMRequests.Add(ctx, 1)
	m.inst.TokenUsage.Add(ctx, int64(promptTokens+completionTokens))
	m.inst.CostTotal.Add(ctx, m.inst.Cost.Calculate(model, promptTokens, completionTokens))
	m.inst.LLMDuration.Record(ctx, float64(d.Milliseconds()))
}

func (m *otelMetrics) PoolUpdate(ctx context.Context, fallback bool) {
	m.inst.PoolUpdates.Add(ctx, 1)
	if fallback {
		m.inst.PoolFallbacks.Add(ctx, 1)
	}
}

var _ seiter.Metrics = (*otelMetrics)(nil)
