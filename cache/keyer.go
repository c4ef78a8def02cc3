package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"

	"github.com/jonwraymond/cacheops/store"
)

// debugHashLen is the digest prefix kept in debug physical keys.
const debugHashLen = 16

var nonAlnum = regexp.MustCompile("[^0-9a-zA-Z]+")

// Keyer derives qualified and physical store keys.
//
// Contract:
// - Determinism: same inputs always produce the same key.
// - Length: Physical output never exceeds store.MaxKeyLength.
// - Concurrency: Keyer is a value type and safe for concurrent use.
type Keyer struct {
	// Namespace scopes keys against other users of the same servers.
	Namespace string

	// Debug keeps physical keys human-readable for server-side
	// inspection, at the cost of weaker distinctness.
	Debug bool
}

// Qualify builds the fully qualified key for a logical key under the
// given generation tag.
func (k Keyer) Qualify(generation, key string) string {
	return k.Namespace + ":" + generation + ":" + key
}

// Physical derives the store key for a qualified key.
//
// Normally this is the full hex SHA-256 of the qualified key: fixed
// length, uniform, and far under the server key limit. In debug mode a
// digest prefix is kept for distinctness and the qualified key itself
// is appended, truncated to the server limit, with runs of
// non-alphanumeric characters collapsed to underscores.
func (k Keyer) Physical(qualified string) string {
	sum := sha256.Sum256([]byte(qualified))
	digest := hex.EncodeToString(sum[:])
	if !k.Debug {
		return digest
	}

	key := digest[:debugHashLen] + ":" + qualified
	if len(key) > store.MaxKeyLength {
		key = key[:store.MaxKeyLength]
	}
	return nonAlnum.ReplaceAllString(key, "_")
}
