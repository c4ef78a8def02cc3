package stats

import (
	"context"
	"time"
)

// DefaultInterval is the sample spacing used when none is configured.
const DefaultInterval = time.Second

// Sink receives each sample together with the rates computed against
// the previous one. rates is nil on the first tick.
type Sink func(sample Sample, rates []Rates)

// Poller samples a source on a fixed interval and feeds a sink.
type Poller struct {
	// Source yields the counters. Required.
	Source Source

	// Interval is the sample spacing. Default: DefaultInterval.
	Interval time.Duration

	// Sink receives every observation. Optional.
	Sink Sink
}

// Run blocks, sampling until ctx is done.
//
// Contract:
// - The first sample only establishes the baseline; rates flow from the second on.
// - A source error ends the run and is returned.
// - Cancellation returns ctx.Err().
func (p *Poller) Run(ctx context.Context) error {
	interval := p.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var prev Sample
	var have bool
	for {
		sample, err := Snapshot(ctx, p.Source)
		if err != nil {
			return err
		}

		var rates []Rates
		if have {
			rates = RatesBetween(prev, sample)
		}
		if p.Sink != nil {
			p.Sink(sample, rates)
		}
		prev, have = sample, true

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
