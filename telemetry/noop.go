package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Noop satisfies Logger, Metrics, and Tracer at once by discarding
// everything; there's nothing method-specific to hold state for, so one
// zero-size type stands in for all three rather than three empty structs.
type Noop struct{}

type noopSpan struct{}

// NewNoopLogger constructs a Logger that discards all log messages.
func NewNoopLogger() Logger { return Noop{} }

// NewNoopMetrics constructs a Metrics recorder that discards all metrics.
func NewNoopMetrics() Metrics { return Noop{} }

// NewNoopTracer constructs a Tracer that creates no-op spans.
func NewNoopTracer() Tracer { return Noop{} }

func (Noop) Debug(context.Context, string, ...any) {}
func (Noop) Info(context.Context, string, ...any)  {}
func (Noop) Warn(context.Context, string, ...any)  {}
func (Noop) Error(context.Context, string, ...any) {}

func (Noop) IncCounter(string, float64, ...string)        {}
func (Noop) RecordTimer(string, time.Duration, ...string) {}
func (Noop) RecordGauge(string, float64, ...string)       {}

func (Noop) Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, Span) {
	return ctx, noopSpan{}
}
func (Noop) Span(context.Context) Span { return noopSpan{} }

func (noopSpan) End(...trace.SpanEndOption)              {}
func (noopSpan) AddEvent(string, ...any)                 {}
func (noopSpan) SetStatus(codes.Code, string)            {}
func (noopSpan) RecordError(error, ...trace.EventOption) {}
