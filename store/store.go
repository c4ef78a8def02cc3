package store

import (
	"context"
	"errors"
	"strings"
	"time"
)

// MaxKeyLength is the maximum key length accepted by memcached servers.
const MaxKeyLength = 250

// Sentinel errors for store operations.
var (
	ErrCacheMiss         = errors.New("store: cache miss")
	ErrNoServers         = errors.New("store: no servers configured")
	ErrInvalidKey        = errors.New("store: key is invalid")
	ErrUnavailable       = errors.New("store: server unavailable")
	ErrServerError       = errors.New("store: server error")
	ErrMalformedResponse = errors.New("store: malformed response")
)

// Item is a single stored value with its transport metadata.
type Item struct {
	// Key is the physical store key. Must pass ValidateKey.
	Key string

	// Value is the raw payload.
	Value []byte

	// Flags travel with the value and are returned unchanged on Get.
	Flags uint32

	// TTL is the storage lifetime. Zero means no expiry.
	TTL time.Duration
}

// ServerStats holds the raw counters reported by one server.
type ServerStats struct {
	// Server is the endpoint identifier, e.g. "127.0.0.1:11211".
	Server string

	// Stats maps counter names to their string values as reported.
	Stats map[string]string
}

// Uint returns the named counter as an integer, or 0 if absent or unparsable.
func (s ServerStats) Uint(name string) uint64 {
	var n uint64
	for _, c := range s.Stats[name] {
		if c < '0' || c > '9' {
			return 0
		}
		n = n*10 + uint64(c-'0')
	}
	return n
}

// Store is the interface for the remote key-value store.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: methods must honor cancellation/deadlines.
// - Errors: Get returns ErrCacheMiss on miss; Delete is idempotent.
// - Stats: unreachable servers are skipped, never errored.
type Store interface {
	// Get retrieves an item. Returns ErrCacheMiss if the key is absent.
	Get(ctx context.Context, key string) (*Item, error)

	// Set stores an item, overwriting any existing value.
	Set(ctx context.Context, item *Item) error

	// Delete removes a key. Absent keys are not an error.
	Delete(ctx context.Context, key string) error

	// FlushAll invalidates every entry on every server. Destructive.
	FlushAll(ctx context.Context) error

	// Stats fetches raw counters from each server, in configured order.
	// args is passed through to the stats command ("" or "reset").
	// Servers that do not respond are skipped, not errored.
	Stats(ctx context.Context, args string) ([]ServerStats, error)

	// Servers returns the configured endpoints in order.
	Servers() []string

	// Close releases held connections.
	Close() error
}

// ValidateKey checks that a key is acceptable to the store.
func ValidateKey(key string) error {
	if key == "" {
		return ErrInvalidKey
	}
	if len(key) > MaxKeyLength {
		return ErrInvalidKey
	}
	// Whitespace and control characters break the text protocol.
	if strings.ContainsAny(key, " \t\n\r\x00") {
		return ErrInvalidKey
	}
	return nil
}
