// Package observer provides OTEL-based observability for the iteration
// scheduler, operators, and trajectory pool.
//
// It exposes counters and histograms for LLM calls, operator executions,
// and per-iteration runs, plus a Tracer implementation consumers wire in
// via seiter.Tracer. Users export to any OTEL-compatible backend by
// setting standard OTEL env vars.
package observer

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const scopeName = "github.com/nevindra/seiter/observer"

// Instruments holds all OTEL instruments used by the observer wrappers.
type Instruments struct {
	Tracer trace.Tracer
	Meter  metric.Meter

	// Counters
	TokenUsage        metric.Int64Counter
	CostTotal         metric.Float64Counter
	LLMRequests       metric.Int64Counter
	OperatorRuns      metric.Int64Counter
	OperatorSkips     metric.Int64Counter
	PoolUpdates       metric.Int64Counter
	PoolFallbacks     metric.Int64Counter
	IterationRuns     metric.Int64Counter

	// Histograms
	LLMDuration       metric.Float64Histogram
	OperatorDuration  metric.Float64Histogram
	IterationDuration metric.Float64Histogram

	Cost *CostCalculator
}

// Init sets up OTEL trace and metric providers with OTLP HTTP exporters.
// se_framework.log remains a plain file written via log/slog
// (workspace.OpenLogger); OTEL carries only spans and counters.
// Configuration comes from standard OTEL env vars (OTEL_EXPORTER_OTLP_ENDPOINT, etc.).
// Returns a shutdown function that must be called on application exit.
func Init(ctx context.Context, pricing map[string]ModelPricing) (*Instruments, func(context.Context) error, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceName("seiter")),
		resource.WithFromEnv(),
	)
	if err != nil {
		return nil, nil, err
	}

	// Trace provider
	traceExp, err := otlptracehttp.New(ctx)
	if err != nil {
		return nil, nil, err
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExp),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	// Metric provider
	metricExp, err := otlpmetrichttp.New(ctx)
	if err != nil {
		_ = tp.Shutdown(ctx)
		return nil, nil, err
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExp)),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(mp)

	inst, err := newInstruments(pricing)
	if err != nil {
		_ = tp.Shutdown(ctx)
		_ = mp.Shutdown(ctx)
		return nil, nil, err
	}

	shutdown := func(ctx context.Context) error {
		return errors.Join(
			tp.Shutdown(ctx),
			mp.Shutdown(ctx),
		)
	}

	return inst, shutdown, nil
}

func newInstruments(pricing map[string]ModelPricing) (*Instruments, error) {
	tracer := otel.Tracer(scopeName)
	meter := otel.Meter(scopeName)

	tokenUsage, err := meter.Int64Counter("llm.token.usage",
		metric.WithDescription("Total tokens consumed"),
		metric.WithUnit("{token}"))
	if err != nil {
		return nil, err
	}

	costTotal, err := meter.Float64Counter("llm.cost.total",
		metric.WithDescription("Cumulative LLM cost in USD"),
		metric.WithUnit("USD"))
	if err != nil {
		return nil, err
	}

	llmRequests, err := meter.Int64Counter("llm.requests",
		metric.WithDescription("LLM request count"),
		metric.WithUnit("{request}"))
	if err != nil {
		return nil, err
	}

	operatorRuns, err := meter.Int64Counter("operator.runs",
		metric.WithDescription("Operator run count"),
		metric.WithUnit("{run}"))
	if err != nil {
		return nil, err
	}

	operatorSkips, err := meter.Int64Counter("operator.skips",
		metric.WithDescription("Operator skip count (no instances, no successes)"),
		metric.WithUnit("{skip}"))
	if err != nil {
		return nil, err
	}

	poolUpdates, err := meter.Int64Counter("pool.updates",
		metric.WithDescription("Trajectory pool iteration-summary writes"),
		metric.WithUnit("{update}"))
	if err != nil {
		return nil, err
	}

	poolFallbacks, err := meter.Int64Counter("pool.fallbacks",
		metric.WithDescription("Deterministic fallback summaries (LLM unavailable or unparsable)"),
		metric.WithUnit("{summary}"))
	if err != nil {
		return nil, err
	}

	iterationRuns, err := meter.Int64Counter("iteration.runs",
		metric.WithDescription("Scheduler iteration count"),
		metric.WithUnit("{iteration}"))
	if err != nil {
		return nil, err
	}

	llmDuration, err := meter.Float64Histogram("llm.duration",
		metric.WithDescription("LLM call duration"),
		metric.WithUnit("ms"))
	if err != nil {
		return nil, err
	}

	operatorDuration, err := meter.Float64Histogram("operator.duration",
		metric.WithDescription("Operator run duration"),
		metric.WithUnit("ms"))
	if err != nil {
		return nil, err
	}

	iterationDuration, err := meter.Float64Histogram("iteration.duration",
		metric.WithDescription("Full iteration duration (operator + agent runner)"),
		metric.WithUnit("ms"))
	if err != nil {
		return nil, err
	}

	return &Instruments{
		Tracer:            tracer,
		Meter:             meter,
		TokenUsage:        tokenUsage,
		CostTotal:         costTotal,
		LLMRequests:       llmRequests,
		OperatorRuns:      operatorRuns,
		OperatorSkips:     operatorSkips,
		PoolUpdates:       poolUpdates,
		PoolFallbacks:     poolFallbacks,
		IterationRuns:     iterationRuns,
		LLMDuration:       llmDuration,
		OperatorDuration:  operatorDuration,
		IterationDuration: iterationDuration,
		Cost:              NewCostCalculator(pricing),
	}, nil
}
