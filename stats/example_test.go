package stats_test

import (
	"fmt"
	"time"

	"github.com/jonwraymond/cacheops/stats"
	"github.com/jonwraymond/cacheops/store"
)

func ExampleRatesBetween() {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	prev := stats.Sample{
		At: at,
		Servers: []store.ServerStats{{
			Server: "10.0.0.1:11211",
			Stats:  map[string]string{"cmd_get": "100", "cmd_set": "40"},
		}},
	}
	cur := stats.Sample{
		At: at.Add(time.Second),
		Servers: []store.ServerStats{{
			Server: "10.0.0.1:11211",
			Stats:  map[string]string{"cmd_get": "150", "cmd_set": "60"},
		}},
	}

	for _, r := range stats.RatesBetween(prev, cur) {
		fmt.Printf("%s %g gets/s %g sets/s\n", r.Server, r.GetsPerSec, r.SetsPerSec)
	}
	// Output:
	// 10.0.0.1:11211 50 gets/s 20 sets/s
}

func ExampleSummarize() {
	servers := []store.ServerStats{{
		Server: "10.0.0.1:11211",
		Stats: map[string]string{
			"uptime":     "7200",
			"get_hits":   "750",
			"get_misses": "250",
		},
	}}

	for _, s := range stats.Summarize(servers) {
		fmt.Printf("%s up %s, %d%% hit ratio\n", s.Server, stats.FormatDuration(s.Uptime), s.HitPercent)
	}
	// Output:
	// 10.0.0.1:11211 up 2 hours, 75% hit ratio
}

func ExampleFormatBytes() {
	fmt.Println(stats.FormatBytes(64 << 20))
	fmt.Println(stats.FormatBytes(1536))
	// Output:
	// 64 MiB
	// 1.5 KiB
}
