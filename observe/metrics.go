package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/jonwraymond/cacheops/cache"
)

// Metrics records cache operation metrics.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: must honor cancellation/deadlines and return quickly.
// - Errors: implementations must not panic.
type Metrics interface {
	// RecordOp records one store operation with duration and error status.
	RecordOp(ctx context.Context, meta OpMeta, duration time.Duration, err error)

	// RecordLookup records the outcome of one logical cache lookup.
	RecordLookup(ctx context.Context, hit bool)
}

// Ensure Metrics plugs into the cache client's lookup hook.
var _ cache.LookupRecorder = (Metrics)(nil)

// metricsImpl is the concrete implementation of Metrics.
type metricsImpl struct {
	meter        metric.Meter
	opTotal      metric.Int64Counter
	opErrors     metric.Int64Counter
	opDuration   metric.Float64Histogram
	lookupHits   metric.Int64Counter
	lookupMisses metric.Int64Counter
}

// newMetrics creates a new Metrics instance with the given meter.
func newMetrics(meter metric.Meter) (*metricsImpl, error) {
	opTotal, err := meter.Int64Counter(
		"cache.op.total",
		metric.WithDescription("Total number of store operations"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	opErrors, err := meter.Int64Counter(
		"cache.op.errors",
		metric.WithDescription("Total number of failed store operations"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	opDuration, err := meter.Float64Histogram(
		"cache.op.duration_ms",
		metric.WithDescription("Store operation duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	lookupHits, err := meter.Int64Counter(
		"cache.lookup.hits",
		metric.WithDescription("Logical lookups answered from cache"),
		metric.WithUnit("{hit}"),
	)
	if err != nil {
		return nil, err
	}

	lookupMisses, err := meter.Int64Counter(
		"cache.lookup.misses",
		metric.WithDescription("Logical lookups not answered from cache"),
		metric.WithUnit("{miss}"),
	)
	if err != nil {
		return nil, err
	}

	return &metricsImpl{
		meter:        meter,
		opTotal:      opTotal,
		opErrors:     opErrors,
		opDuration:   opDuration,
		lookupHits:   lookupHits,
		lookupMisses: lookupMisses,
	}, nil
}

// RecordOp records metrics for one store operation.
func (m *metricsImpl) RecordOp(ctx context.Context, meta OpMeta, duration time.Duration, err error) {
	attrs := []attribute.KeyValue{
		attribute.String("cache.op", meta.Op),
	}
	if meta.Server != "" {
		attrs = append(attrs, attribute.String("cache.server", meta.Server))
	}
	opt := metric.WithAttributes(attrs...)

	m.opTotal.Add(ctx, 1, opt)
	if err != nil {
		m.opErrors.Add(ctx, 1, opt)
	}
	m.opDuration.Record(ctx, float64(duration.Milliseconds()), opt)
}

// RecordLookup records the outcome of one logical cache lookup.
func (m *metricsImpl) RecordLookup(ctx context.Context, hit bool) {
	if hit {
		m.lookupHits.Add(ctx, 1)
		return
	}
	m.lookupMisses.Add(ctx, 1)
}

// noopMetrics is a metrics implementation that does nothing.
type noopMetrics struct{}

func (m *noopMetrics) RecordOp(ctx context.Context, meta OpMeta, duration time.Duration, err error) {
}

func (m *noopMetrics) RecordLookup(ctx context.Context, hit bool) {
}
