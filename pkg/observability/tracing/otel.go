package tracing

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	otrace "go.opentelemetry.io/otel/trace"
)

// Config configures the OpenTelemetry-backed Tracer, matching the
// `tracing.*` configuration surface: serviceName, serviceVersion,
// environment, samplingRatio.
type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	// SamplingRatio is in [0,1]; 1.0 samples every span, matching what a
	// development environment wants. 0 disables sampling entirely.
	SamplingRatio float64
	// CollectorEndpoint is the OTLP gRPC collector address, e.g.
	// "localhost:4317". Unlike the teacher's InitTracer, this parameter
	// is actually used to dial the exporter instead of being accepted
	// and silently ignored.
	CollectorEndpoint string
}

// NewOtel creates an OpenTelemetry TracerProvider, installs it as the
// process-wide tracer and propagator, and returns a Tracer backed by it
// plus a shutdown function the caller must invoke on teardown.
func NewOtel(cfg Config) (Tracer, func(context.Context) error, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	exporter, err := otlptracegrpc.New(
		ctx,
		otlptracegrpc.WithEndpoint(cfg.CollectorEndpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("create otlp exporter: %w", err)
	}

	res, err := resource.New(
		ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
			semconv.DeploymentEnvironment(cfg.Environment),
		),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.TraceIDRatioBased(cfg.SamplingRatio)),
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(
		propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		),
	)

	shutdown := func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return tp.Shutdown(ctx)
	}

	return &otelTracer{tracer: tp.Tracer(cfg.ServiceName)}, shutdown, nil
}

type otelTracer struct {
	tracer otrace.Tracer
}

func (t *otelTracer) StartActivity(ctx context.Context, name string, kind SpanKind) (context.Context, Span) {
	ctx, span := t.tracer.Start(ctx, name, otrace.WithSpanKind(toOtelKind(kind)))
	return ctx, &otelSpan{span: span}
}

func toOtelKind(kind SpanKind) otrace.SpanKind {
	switch kind {
	case SpanKindClient:
		return otrace.SpanKindClient
	case SpanKindServer:
		return otrace.SpanKindServer
	case SpanKindProducer:
		return otrace.SpanKindProducer
	case SpanKindConsumer:
		return otrace.SpanKindConsumer
	default:
		return otrace.SpanKindInternal
	}
}

type otelSpan struct {
	span otrace.Span
}

func (s *otelSpan) AddTag(key string, value interface{}) {
	s.span.SetAttributes(toAttribute(key, value))
}

func (s *otelSpan) AddEvent(name string, tags map[string]interface{}) {
	attrs := make([]attribute.KeyValue, 0, len(tags))
	for k, v := range tags {
		attrs = append(attrs, toAttribute(k, v))
	}
	s.span.AddEvent(name, otrace.WithAttributes(attrs...))
}

func (s *otelSpan) SetStatus(code StatusCode, description string) {
	switch code {
	case StatusOK:
		s.span.SetStatus(codes.Ok, description)
	case StatusError:
		s.span.SetStatus(codes.Error, description)
	default:
		s.span.SetStatus(codes.Unset, description)
	}
}

func (s *otelSpan) TraceID() string {
	if !s.span.SpanContext().IsValid() {
		return ""
	}
	return s.span.SpanContext().TraceID().String()
}

func (s *otelSpan) SpanID() string {
	if !s.span.SpanContext().IsValid() {
		return ""
	}
	return s.span.SpanContext().SpanID().String()
}

func (s *otelSpan) End() {
	s.span.End()
}

func toAttribute(key string, value interface{}) attribute.KeyValue {
	switch v := value.(type) {
	case string:
		return attribute.String(key, v)
	case int:
		return attribute.Int(key, v)
	case int64:
		return attribute.Int64(key, v)
	case float64:
		return attribute.Float64(key, v)
	case bool:
		return attribute.Bool(key, v)
	default:
		return attribute.String(key, fmt.Sprintf("%v", v))
	}
}
