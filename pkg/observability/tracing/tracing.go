// Package tracing defines the capability-set tracing abstraction used
// across the resilience pipeline, the bus, and the saga orchestrator, plus
// a no-op default and an OpenTelemetry-backed implementation.
//
// The core never depends on a concrete tracing backend: every component
// that wants a span accepts a Tracer and falls back to NoOp() when the
// caller wires nothing.
package tracing

import "context"

// SpanKind classifies the relationship of a span to its caller, mirroring
// the OpenTelemetry span kinds the core actually uses.
type SpanKind int

const (
	SpanKindInternal SpanKind = iota
	SpanKindClient
	SpanKindServer
	SpanKindProducer
	SpanKindConsumer
)

// StatusCode is the terminal status recorded on a span.
type StatusCode int

const (
	StatusUnset StatusCode = iota
	StatusOK
	StatusError
)

// Span is a scoped handle to one in-flight unit of work. Releasing it
// (calling End) closes the span; callers MUST call End exactly once,
// typically via defer.
type Span interface {
	AddTag(key string, value interface{})
	AddEvent(name string, tags map[string]interface{})
	SetStatus(code StatusCode, description string)
	TraceID() string
	SpanID() string
	End()
}

// Tracer starts new spans. Implementations MAY be no-ops; every component
// that invokes a Tracer MUST remain correct when it is.
type Tracer interface {
	StartActivity(ctx context.Context, name string, kind SpanKind) (context.Context, Span)
}

// NoOp returns a Tracer whose spans do nothing. It is the default used
// whenever a caller wires no tracing backend.
func NoOp() Tracer {
	return noopTracer{}
}

type noopTracer struct{}

func (noopTracer) StartActivity(ctx context.Context, _ string, _ SpanKind) (context.Context, Span) {
	return ctx, noopSpan{}
}

type noopSpan struct{}

func (noopSpan) AddTag(string, interface{})            {}
func (noopSpan) AddEvent(string, map[string]interface{}) {}
func (noopSpan) SetStatus(StatusCode, string)           {}
func (noopSpan) TraceID() string                        { return "" }
func (noopSpan) SpanID() string                          { return "" }
func (noopSpan) End()                                    {}
