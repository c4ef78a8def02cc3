package stats

import (
	"context"
	"time"

	"github.com/jonwraymond/cacheops/store"
)

// Source yields per-server counters. *cache.Client satisfies it.
type Source interface {
	Stats(ctx context.Context) ([]store.ServerStats, error)
}

// Sample is one observation of raw server counters.
type Sample struct {
	// At is when the observation was taken.
	At time.Time

	// Servers holds the counters of every server that responded.
	Servers []store.ServerStats
}

// Snapshot takes a timestamped sample from the source.
func Snapshot(ctx context.Context, src Source) (Sample, error) {
	servers, err := src.Stats(ctx)
	if err != nil {
		return Sample{}, err
	}
	return Sample{At: time.Now(), Servers: servers}, nil
}

// Rates holds one server's traffic rates between two samples.
type Rates struct {
	// Server is the endpoint the rates belong to.
	Server string

	// GetsPerSec is the cmd_get delta divided by the sample spacing.
	GetsPerSec float64

	// SetsPerSec is the cmd_set delta divided by the sample spacing.
	SetsPerSec float64
}

// RatesBetween computes per-server rates from two samples.
//
// Contract:
// - Pure: no clock reads, no I/O; safe to call from tests with synthetic samples.
// - Servers present in only one sample are skipped.
// - Output order follows cur.Servers.
// - A non-positive sample spacing yields nil.
func RatesBetween(prev, cur Sample) []Rates {
	dt := cur.At.Sub(prev.At).Seconds()
	if dt <= 0 {
		return nil
	}

	prevByServer := make(map[string]store.ServerStats, len(prev.Servers))
	for _, s := range prev.Servers {
		prevByServer[s.Server] = s
	}

	var out []Rates
	for _, s := range cur.Servers {
		p, ok := prevByServer[s.Server]
		if !ok {
			continue
		}
		// Deltas can go negative after a counter reset.
		gets := int64(s.Uint("cmd_get")) - int64(p.Uint("cmd_get"))
		sets := int64(s.Uint("cmd_set")) - int64(p.Uint("cmd_set"))
		out = append(out, Rates{
			Server:     s.Server,
			GetsPerSec: float64(gets) / dt,
			SetsPerSec: float64(sets) / dt,
		})
	}
	return out
}
