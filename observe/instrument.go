package observe

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/jonwraymond/cacheops/store"
)

// Instrumentor bundles the telemetry applied around a store.
//
// Contract:
//   - Concurrency: WrapStore returns a store as safe for concurrent use as the wrapped one.
//   - Context: propagates context through tracing spans.
//   - Errors: errors from the wrapped store are recorded and propagated unchanged.
type Instrumentor struct {
	tracer  Tracer
	metrics Metrics
	logger  Logger
}

// NewInstrumentor creates an Instrumentor from explicit components.
func NewInstrumentor(tracer Tracer, metrics Metrics, logger Logger) *Instrumentor {
	return &Instrumentor{
		tracer:  tracer,
		metrics: metrics,
		logger:  logger,
	}
}

// InstrumentorFromObserver creates an Instrumentor from an Observer.
// This is a convenience function for common use cases.
func InstrumentorFromObserver(obs Observer) (*Instrumentor, error) {
	if obs == nil {
		return nil, ErrNilObserver
	}

	metrics, err := newMetrics(obs.Meter())
	if err != nil {
		return nil, err
	}

	return NewInstrumentor(newTracer(obs.Tracer()), metrics, obs.Logger()), nil
}

// Metrics returns the instrumentor's recorder, for wiring into the
// cache client's lookup hook.
func (i *Instrumentor) Metrics() Metrics {
	return i.metrics
}

// WrapStore decorates a store with a span, metrics, and a log line per
// operation. A cache miss is an answer, not a failure; it is excluded
// from error accounting and span status.
func (i *Instrumentor) WrapStore(st store.Store) store.Store {
	return &instrumentedStore{next: st, inst: i}
}

// instrumentedStore is the store decorator returned by WrapStore.
type instrumentedStore struct {
	next store.Store
	inst *Instrumentor
}

// Ensure instrumentedStore implements store.Store
var _ store.Store = (*instrumentedStore)(nil)

func (s *instrumentedStore) Get(ctx context.Context, key string) (*store.Item, error) {
	meta := OpMeta{Op: "get"}
	ctx, span := s.inst.tracer.StartSpan(ctx, meta)
	start := time.Now()

	item, err := s.next.Get(ctx, key)

	opErr := err
	if errors.Is(err, store.ErrCacheMiss) {
		opErr = nil
	}
	s.finish(ctx, span, meta, start, opErr)
	return item, err
}

func (s *instrumentedStore) Set(ctx context.Context, item *store.Item) error {
	meta := OpMeta{Op: "set"}
	ctx, span := s.inst.tracer.StartSpan(ctx, meta)
	start := time.Now()

	err := s.next.Set(ctx, item)

	s.finish(ctx, span, meta, start, err)
	return err
}

func (s *instrumentedStore) Delete(ctx context.Context, key string) error {
	meta := OpMeta{Op: "delete"}
	ctx, span := s.inst.tracer.StartSpan(ctx, meta)
	start := time.Now()

	err := s.next.Delete(ctx, key)

	s.finish(ctx, span, meta, start, err)
	return err
}

func (s *instrumentedStore) FlushAll(ctx context.Context) error {
	meta := OpMeta{Op: "flush_all"}
	ctx, span := s.inst.tracer.StartSpan(ctx, meta)
	start := time.Now()

	err := s.next.FlushAll(ctx)

	s.finish(ctx, span, meta, start, err)
	return err
}

func (s *instrumentedStore) Stats(ctx context.Context, args string) ([]store.ServerStats, error) {
	meta := OpMeta{Op: "stats"}
	ctx, span := s.inst.tracer.StartSpan(ctx, meta)
	start := time.Now()

	servers, err := s.next.Stats(ctx, args)

	s.finish(ctx, span, meta, start, err)
	return servers, err
}

func (s *instrumentedStore) Servers() []string {
	return s.next.Servers()
}

func (s *instrumentedStore) Close() error {
	return s.next.Close()
}

// finish ends the span, records metrics, and logs the operation.
func (s *instrumentedStore) finish(ctx context.Context, span trace.Span, meta OpMeta, start time.Time, err error) {
	duration := time.Since(start)

	s.inst.tracer.EndSpan(span, err)
	s.inst.metrics.RecordOp(ctx, meta, duration, err)

	opLogger := s.inst.logger.WithOp(meta)
	fields := []Field{
		{Key: "duration_ms", Value: float64(duration.Milliseconds())},
	}
	if err != nil {
		fields = append(fields, Field{Key: "error", Value: err.Error()})
		opLogger.Error(ctx, "store operation failed", fields...)
		return
	}
	opLogger.Debug(ctx, "store operation completed", fields...)
}
