package cache

import "errors"

// Sentinel errors for cache operations.
var (
	// ErrDisabled is returned by cache operations on a client with no
	// configured servers.
	ErrDisabled = errors.New("cache: caching is not enabled")

	// ErrNoValue is returned by Result.Decode when the result is a miss.
	ErrNoValue = errors.New("cache: no value to decode")
)
