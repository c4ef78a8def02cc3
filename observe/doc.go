// Package observe provides observability primitives for cache operations.
//
// It is a pure instrumentation library: no caching, no transport, no I/O
// beyond exporter setup. Consumers wrap their store with an Instrumentor
// and wire the metrics recorder into the cache client's lookup hook.
package observe
