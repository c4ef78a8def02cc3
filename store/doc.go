// Package store defines the key-value store consumed by the cache layer.
//
// It provides a Store interface with memcached, in-memory, and SQLite
// implementations. The memcached client speaks the text protocol directly
// so that per-server stats, stats reset, and flush_all are available to
// the admin tooling.
package store
