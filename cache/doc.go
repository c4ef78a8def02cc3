// Package cache provides a memcached-backed cache client with qualified
// keys, generation-based soft flushing, and collision-safe entries.
//
// Values are stored as a (qualified key, value) envelope. On read, the
// embedded key is compared to the expected qualified key, so a physical
// key collision reads as a miss rather than wrong data. A hit whose
// value is JSON null is distinct from a miss.
package cache
