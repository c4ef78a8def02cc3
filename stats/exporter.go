package stats

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Exporter republishes polled counters and rates as OpenTelemetry
// observable gauges, so a polling process can double as a scrape
// target.
//
// Contract:
// - Concurrency: Record may race with collection; both are safe.
// - Gauges report the most recent observation until the next Record.
// - Close unregisters the gauges from the meter.
type Exporter struct {
	mu     sync.RWMutex
	sample Sample
	rates  []Rates

	reg metric.Registration
}

// NewExporter registers the cache server gauges on the meter.
func NewExporter(meter metric.Meter) (*Exporter, error) {
	e := &Exporter{}

	getRate, err := meter.Float64ObservableGauge(
		"cache.server.get_rate",
		metric.WithDescription("Get commands per second between the last two samples"),
		metric.WithUnit("1/s"),
	)
	if err != nil {
		return nil, err
	}

	setRate, err := meter.Float64ObservableGauge(
		"cache.server.set_rate",
		metric.WithDescription("Set commands per second between the last two samples"),
		metric.WithUnit("1/s"),
	)
	if err != nil {
		return nil, err
	}

	hits, err := meter.Int64ObservableGauge(
		"cache.server.hits",
		metric.WithDescription("Lifetime get hits reported by the server"),
		metric.WithUnit("{hit}"),
	)
	if err != nil {
		return nil, err
	}

	misses, err := meter.Int64ObservableGauge(
		"cache.server.misses",
		metric.WithDescription("Lifetime get misses reported by the server"),
		metric.WithUnit("{miss}"),
	)
	if err != nil {
		return nil, err
	}

	used, err := meter.Int64ObservableGauge(
		"cache.server.bytes",
		metric.WithDescription("Memory currently holding entries"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, err
	}

	items, err := meter.Int64ObservableGauge(
		"cache.server.items",
		metric.WithDescription("Entries currently stored"),
		metric.WithUnit("{item}"),
	)
	if err != nil {
		return nil, err
	}

	reg, err := meter.RegisterCallback(
		func(_ context.Context, o metric.Observer) error {
			e.mu.RLock()
			defer e.mu.RUnlock()

			for _, r := range e.rates {
				opt := metric.WithAttributes(attribute.String("server", r.Server))
				o.ObserveFloat64(getRate, r.GetsPerSec, opt)
				o.ObserveFloat64(setRate, r.SetsPerSec, opt)
			}
			for _, s := range e.sample.Servers {
				opt := metric.WithAttributes(attribute.String("server", s.Server))
				o.ObserveInt64(hits, int64(s.Uint("get_hits")), opt)
				o.ObserveInt64(misses, int64(s.Uint("get_misses")), opt)
				o.ObserveInt64(used, int64(s.Uint("bytes")), opt)
				o.ObserveInt64(items, int64(s.Uint("curr_items")), opt)
			}
			return nil
		},
		getRate, setRate, hits, misses, used, items,
	)
	if err != nil {
		return nil, err
	}
	e.reg = reg
	return e, nil
}

// Record stores the latest observation for the gauge callback. Its
// signature matches Sink so an Exporter can feed straight off a Poller.
func (e *Exporter) Record(sample Sample, rates []Rates) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sample = sample
	e.rates = rates
}

// Close unregisters the gauges.
func (e *Exporter) Close() error {
	return e.reg.Unregister()
}
