package stats

import (
	"math"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
)

// FormatBytes renders a byte count in binary units, e.g. "64 MiB".
func FormatBytes(n uint64) string {
	return humanize.IBytes(n)
}

// FormatDuration renders a duration in its largest whole unit, rounded
// to one decimal, e.g. "14 secs", "2.5 mins", "1 day".
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	switch {
	case d >= 24*time.Hour:
		return formatUnit(d.Hours()/24, "day")
	case d >= time.Hour:
		return formatUnit(d.Hours(), "hour")
	case d >= time.Minute:
		return formatUnit(d.Minutes(), "min")
	default:
		return formatUnit(d.Seconds(), "sec")
	}
}

func formatUnit(v float64, unit string) string {
	s := strconv.FormatFloat(math.Round(v*10)/10, 'f', -1, 64)
	if s == "1" {
		return "1 " + unit
	}
	return s + " " + unit + "s"
}
