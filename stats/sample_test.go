package stats

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/jonwraymond/cacheops/store"
)

func serverStats(server string, counters map[string]string) store.ServerStats {
	return store.ServerStats{Server: server, Stats: counters}
}

func TestRatesBetween_ComputesPerSecond(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	prev := Sample{
		At: at,
		Servers: []store.ServerStats{
			serverStats("10.0.0.1:11211", map[string]string{"cmd_get": "100", "cmd_set": "40"}),
		},
	}
	cur := Sample{
		At: at.Add(time.Second),
		Servers: []store.ServerStats{
			serverStats("10.0.0.1:11211", map[string]string{"cmd_get": "150", "cmd_set": "60"}),
		},
	}

	got := RatesBetween(prev, cur)
	want := []Rates{{Server: "10.0.0.1:11211", GetsPerSec: 50.0, SetsPerSec: 20.0}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("RatesBetween() mismatch (-want +got):\n%s", diff)
	}
}

func TestRatesBetween_FractionalInterval(t *testing.T) {
	at := time.Now()
	prev := Sample{
		At:      at,
		Servers: []store.ServerStats{serverStats("a:11211", map[string]string{"cmd_get": "0", "cmd_set": "0"})},
	}
	cur := Sample{
		At:      at.Add(500 * time.Millisecond),
		Servers: []store.ServerStats{serverStats("a:11211", map[string]string{"cmd_get": "10", "cmd_set": "5"})},
	}

	got := RatesBetween(prev, cur)
	if len(got) != 1 {
		t.Fatalf("RatesBetween() returned %d entries, want 1", len(got))
	}
	if got[0].GetsPerSec != 20.0 {
		t.Errorf("GetsPerSec = %g, want 20", got[0].GetsPerSec)
	}
	if got[0].SetsPerSec != 10.0 {
		t.Errorf("SetsPerSec = %g, want 10", got[0].SetsPerSec)
	}
}

func TestRatesBetween_SkipsServersMissingFromEitherSample(t *testing.T) {
	at := time.Now()
	prev := Sample{
		At: at,
		Servers: []store.ServerStats{
			serverStats("a:11211", map[string]string{"cmd_get": "10", "cmd_set": "0"}),
			serverStats("gone:11211", map[string]string{"cmd_get": "10", "cmd_set": "0"}),
		},
	}
	cur := Sample{
		At: at.Add(time.Second),
		Servers: []store.ServerStats{
			serverStats("a:11211", map[string]string{"cmd_get": "20", "cmd_set": "0"}),
			serverStats("new:11211", map[string]string{"cmd_get": "5", "cmd_set": "0"}),
		},
	}

	got := RatesBetween(prev, cur)
	if len(got) != 1 {
		t.Fatalf("RatesBetween() returned %d entries, want 1", len(got))
	}
	// Only the server present in both samples has a defined rate.
	if got[0].Server != "a:11211" {
		t.Errorf("Server = %q, want %q", got[0].Server, "a:11211")
	}
}

func TestRatesBetween_NegativeAfterCounterReset(t *testing.T) {
	at := time.Now()
	prev := Sample{
		At:      at,
		Servers: []store.ServerStats{serverStats("a:11211", map[string]string{"cmd_get": "500", "cmd_set": "100"})},
	}
	cur := Sample{
		At:      at.Add(time.Second),
		Servers: []store.ServerStats{serverStats("a:11211", map[string]string{"cmd_get": "10", "cmd_set": "2"})},
	}

	got := RatesBetween(prev, cur)
	if len(got) != 1 {
		t.Fatalf("RatesBetween() returned %d entries, want 1", len(got))
	}
	if got[0].GetsPerSec != -490.0 {
		t.Errorf("GetsPerSec = %g, want -490", got[0].GetsPerSec)
	}
}

func TestRatesBetween_NonPositiveSpacing(t *testing.T) {
	at := time.Now()
	s := Sample{
		At:      at,
		Servers: []store.ServerStats{serverStats("a:11211", map[string]string{"cmd_get": "10"})},
	}
	if got := RatesBetween(s, s); got != nil {
		t.Errorf("RatesBetween(s, s) = %v, want nil", got)
	}

	earlier := Sample{At: at.Add(-time.Second), Servers: s.Servers}
	if got := RatesBetween(s, earlier); got != nil {
		t.Errorf("RatesBetween() with reversed samples = %v, want nil", got)
	}
}

func TestRatesBetween_OrderFollowsCurrentSample(t *testing.T) {
	at := time.Now()
	counters := map[string]string{"cmd_get": "1", "cmd_set": "1"}
	prev := Sample{
		At: at,
		Servers: []store.ServerStats{
			serverStats("a:11211", counters),
			serverStats("b:11211", counters),
		},
	}
	cur := Sample{
		At: at.Add(time.Second),
		Servers: []store.ServerStats{
			serverStats("b:11211", counters),
			serverStats("a:11211", counters),
		},
	}

	got := RatesBetween(prev, cur)
	if len(got) != 2 {
		t.Fatalf("RatesBetween() returned %d entries, want 2", len(got))
	}
	if got[0].Server != "b:11211" || got[1].Server != "a:11211" {
		t.Errorf("order = [%s, %s], want [b:11211, a:11211]", got[0].Server, got[1].Server)
	}
}

// staticSource serves a fixed stats response.
type staticSource struct {
	servers []store.ServerStats
	err     error
}

func (s *staticSource) Stats(context.Context) ([]store.ServerStats, error) {
	return s.servers, s.err
}

func TestSnapshot_StampsTime(t *testing.T) {
	src := &staticSource{servers: []store.ServerStats{serverStats("a:11211", nil)}}

	before := time.Now()
	sample, err := Snapshot(context.Background(), src)
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	after := time.Now()

	if sample.At.Before(before) || sample.At.After(after) {
		t.Errorf("Snapshot() At = %v, want within [%v, %v]", sample.At, before, after)
	}
	if len(sample.Servers) != 1 {
		t.Errorf("Snapshot() carried %d servers, want 1", len(sample.Servers))
	}
}

func TestSnapshot_PropagatesSourceError(t *testing.T) {
	srcErr := errors.New("stats failed")
	src := &staticSource{err: srcErr}

	if _, err := Snapshot(context.Background(), src); !errors.Is(err, srcErr) {
		t.Errorf("Snapshot() error = %v, want %v", err, srcErr)
	}
}
