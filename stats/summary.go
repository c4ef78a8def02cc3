package stats

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/jonwraymond/cacheops/store"
)

// ServerSummary condenses one server's counters for display.
type ServerSummary struct {
	// Server is the endpoint, stripped of any weight suffix.
	Server string

	// Uptime is how long the server has been running.
	Uptime time.Duration

	// Hits and Misses are the lifetime get counters.
	Hits   uint64
	Misses uint64

	// HitPercent is hits over total lookups, truncated to a percent.
	HitPercent int

	// MaxBytes is the configured memory limit.
	MaxBytes uint64

	// UsedBytes is the memory currently holding entries.
	UsedBytes uint64

	// UsedPercent is used over limit, truncated to a percent.
	UsedPercent int
}

// Summarize condenses raw counters, one entry per server, preserving
// order. Absent counters read as zero.
func Summarize(servers []store.ServerStats) []ServerSummary {
	out := make([]ServerSummary, 0, len(servers))
	for _, s := range servers {
		hits := s.Uint("get_hits")
		misses := s.Uint("get_misses")
		maxBytes := s.Uint("limit_maxbytes")
		used := s.Uint("bytes")

		// Some servers report "host:port (weight)"; keep the endpoint.
		server := s.Server
		if i := strings.IndexByte(server, ' '); i >= 0 {
			server = server[:i]
		}

		out = append(out, ServerSummary{
			Server:      server,
			Uptime:      time.Duration(s.Uint("uptime")) * time.Second,
			Hits:        hits,
			Misses:      misses,
			HitPercent:  int(float64(hits) / float64(max(hits+misses, 1)) * 100),
			MaxBytes:    maxBytes,
			UsedBytes:   used,
			UsedPercent: int(float64(used) / float64(max(maxBytes, 1)) * 100),
		})
	}
	return out
}

// WriteTable renders summaries as the aligned admin table.
func WriteTable(w io.Writer, summaries []ServerSummary) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CACHE SERVER\tUPTIME\tHITS\tMISSES\tHIT RATIO\tMEMORY\tUSED")
	fmt.Fprintln(tw, "------------\t------\t----\t------\t---------\t------\t----")
	for _, s := range summaries {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d%%\t%s\t%s (%d%%)\n",
			s.Server,
			FormatDuration(s.Uptime),
			s.Hits,
			s.Misses,
			s.HitPercent,
			FormatBytes(s.MaxBytes),
			FormatBytes(s.UsedBytes),
			s.UsedPercent,
		)
	}
	return tw.Flush()
}

// WritePollHeader prints the polling table header.
func WritePollHeader(w io.Writer) {
	fmt.Fprintf(w, "%-64s %-16s %-16s\n", "SERVER", "GET/s", "SET/s")
}

// WriteRates prints one polling line per server.
func WriteRates(w io.Writer, rates []Rates) {
	for _, r := range rates {
		fmt.Fprintf(w, "%-64s %-16g %-16g\n", r.Server, r.GetsPerSec, r.SetsPerSec)
	}
}
