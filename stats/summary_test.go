package stats

import (
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/jonwraymond/cacheops/store"
)

func TestSummarize_CondensesCounters(t *testing.T) {
	servers := []store.ServerStats{serverStats("10.0.0.1:11211 (1)", map[string]string{
		"uptime":         "3661",
		"get_hits":       "75",
		"get_misses":     "25",
		"limit_maxbytes": "67108864",
		"bytes":          "1048576",
	})}

	got := Summarize(servers)
	want := []ServerSummary{{
		Server:      "10.0.0.1:11211",
		Uptime:      3661 * time.Second,
		Hits:        75,
		Misses:      25,
		HitPercent:  75,
		MaxBytes:    67108864,
		UsedBytes:   1048576,
		UsedPercent: 1,
	}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Summarize() mismatch (-want +got):\n%s", diff)
	}
}

func TestSummarize_AbsentCountersReadAsZero(t *testing.T) {
	got := Summarize([]store.ServerStats{serverStats("a:11211", nil)})
	if len(got) != 1 {
		t.Fatalf("Summarize() returned %d entries, want 1", len(got))
	}
	s := got[0]
	if s.Hits != 0 || s.Misses != 0 || s.HitPercent != 0 || s.UsedPercent != 0 {
		t.Errorf("Summarize() = %+v, want all-zero counters", s)
	}
}

func TestSummarize_PercentagesTruncate(t *testing.T) {
	got := Summarize([]store.ServerStats{serverStats("a:11211", map[string]string{
		"get_hits":   "1",
		"get_misses": "2",
	})})
	// 1 of 3 lookups is 33.3%, reported as 33.
	if got[0].HitPercent != 33 {
		t.Errorf("HitPercent = %d, want 33", got[0].HitPercent)
	}
}

func TestSummarize_PreservesServerOrder(t *testing.T) {
	servers := []store.ServerStats{
		serverStats("b:11211", nil),
		serverStats("a:11211", nil),
	}
	got := Summarize(servers)
	if got[0].Server != "b:11211" || got[1].Server != "a:11211" {
		t.Errorf("order = [%s, %s], want [b:11211, a:11211]", got[0].Server, got[1].Server)
	}
}

func TestWriteTable_RendersAlignedRows(t *testing.T) {
	summaries := []ServerSummary{{
		Server:      "10.0.0.1:11211",
		Uptime:      time.Hour,
		Hits:        75,
		Misses:      25,
		HitPercent:  75,
		MaxBytes:    64 << 20,
		UsedBytes:   1 << 20,
		UsedPercent: 1,
	}}

	var buf strings.Builder
	if err := WriteTable(&buf, summaries); err != nil {
		t.Fatalf("WriteTable() error = %v", err)
	}
	out := buf.String()

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("WriteTable() produced %d lines, want 3:\n%s", len(lines), out)
	}
	if !strings.HasPrefix(lines[0], "CACHE SERVER") {
		t.Errorf("header = %q, want CACHE SERVER first", lines[0])
	}
	for _, col := range []string{"UPTIME", "HITS", "MISSES", "HIT RATIO", "MEMORY", "USED"} {
		if !strings.Contains(lines[0], col) {
			t.Errorf("header %q missing column %q", lines[0], col)
		}
	}
	for _, cell := range []string{"10.0.0.1:11211", "1 hour", "75", "25", "75%", "64 MiB", "1.0 MiB (1%)"} {
		if !strings.Contains(lines[2], cell) {
			t.Errorf("row %q missing cell %q", lines[2], cell)
		}
	}
}

func TestWritePollHeader_ColumnPositions(t *testing.T) {
	var buf strings.Builder
	WritePollHeader(&buf)
	out := buf.String()

	if !strings.HasPrefix(out, "SERVER") {
		t.Errorf("header = %q, want SERVER first", out)
	}
	// Columns sit at fixed offsets so successive rate lines align.
	if got := strings.Index(out, "GET/s"); got != 65 {
		t.Errorf("GET/s at offset %d, want 65", got)
	}
	if got := strings.Index(out, "SET/s"); got != 82 {
		t.Errorf("SET/s at offset %d, want 82", got)
	}
}

func TestWriteRates_AlignsWithHeader(t *testing.T) {
	var buf strings.Builder
	WriteRates(&buf, []Rates{
		{Server: "10.0.0.1:11211", GetsPerSec: 50, SetsPerSec: 12.5},
	})
	out := buf.String()

	if !strings.HasPrefix(out, "10.0.0.1:11211") {
		t.Errorf("line = %q, want the server first", out)
	}
	if got := strings.Index(out, "50"); got != 65 {
		t.Errorf("gets column at offset %d, want 65", got)
	}
	if got := strings.Index(out, "12.5"); got != 82 {
		t.Errorf("sets column at offset %d, want 82", got)
	}
}
