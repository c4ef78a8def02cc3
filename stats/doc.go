// Package stats turns raw cache server counters into traffic rates and
// human-readable summaries.
//
// A Sample is one timestamped observation of per-server counters.
// RatesBetween computes get/set throughput from two samples; Poller
// runs the sample loop. Summarize condenses counters for the admin
// table, and Exporter republishes observations as OpenTelemetry gauges
// for scraping.
package stats
