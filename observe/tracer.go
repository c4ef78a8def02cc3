package observe

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// OpMeta identifies one store operation for telemetry purposes.
type OpMeta struct {
	Op     string // get, set, delete, flush_all, stats
	Server string // target endpoint when known
}

// SpanName returns the span name for this operation, "cache.op." plus
// the operation.
func (m OpMeta) SpanName() string {
	return "cache.op." + m.Op
}

// attributes returns the span attributes for this operation. The
// cache.error attribute starts false and flips in EndSpan on failure.
func (m OpMeta) attributes() []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 3)
	attrs = append(attrs,
		attribute.String("cache.op", m.Op),
		attribute.Bool("cache.error", false),
	)
	if m.Server != "" {
		attrs = append(attrs, attribute.String("cache.server", m.Server))
	}
	return attrs
}

// Tracer manages spans around store operations.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: StartSpan must propagate the parent span from ctx.
// - Errors: EndSpan must be best-effort and must not panic.
type Tracer interface {
	StartSpan(ctx context.Context, meta OpMeta) (context.Context, trace.Span)
	EndSpan(span trace.Span, err error)
}

// otelTracer emits real spans through an OpenTelemetry tracer.
type otelTracer struct {
	tracer trace.Tracer
}

func newTracer(t trace.Tracer) Tracer {
	return otelTracer{tracer: t}
}

// StartSpan opens a span named for the operation. Store calls are
// outbound requests, so the span kind is client.
func (t otelTracer) StartSpan(ctx context.Context, meta OpMeta) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, meta.SpanName(),
		trace.WithAttributes(meta.attributes()...),
		trace.WithSpanKind(trace.SpanKindClient),
	)
}

// EndSpan closes the span, marking it failed when err is non-nil.
func (t otelTracer) EndSpan(span trace.Span, err error) {
	defer span.End()

	if err == nil {
		span.SetStatus(codes.Ok, "")
		return
	}
	span.RecordError(err)
	span.SetAttributes(attribute.Bool("cache.error", true))
	span.SetStatus(codes.Error, err.Error())
}

// noopTracer hands out inert spans.
type noopTracer struct {
	tracer trace.Tracer
}

func newNoopTracer() Tracer {
	return noopTracer{tracer: tracenoop.NewTracerProvider().Tracer("noop")}
}

func (t noopTracer) StartSpan(ctx context.Context, meta OpMeta) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, meta.SpanName())
}

func (t noopTracer) EndSpan(span trace.Span, err error) {
	span.End()
}
