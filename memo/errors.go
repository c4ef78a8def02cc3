package memo

import "errors"

// Sentinel errors for memoization.
var (
	// ErrKeyDerivation wraps a failure to derive a cache key from a
	// call argument. Unlike store trouble, this is a caller bug and is
	// always surfaced.
	ErrKeyDerivation = errors.New("memo: key derivation failed")
)
