package memo

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/jonwraymond/cacheops/cache"
)

// Options configures a memoized target. The zero value uses the
// defaults documented per field.
type Options[A, R any] struct {
	// Key derives the logical cache key for a call argument.
	// Default: the target name plus the canonical JSON of the argument.
	// A derivation failure surfaces as ErrKeyDerivation.
	Key func(arg A) (string, error)

	// TTL bounds entry lifetime. Zero uses the client default.
	TTL time.Duration

	// CompressThreshold overrides the client's compression threshold
	// when greater than zero.
	CompressThreshold int

	// FromCache post-processes a cache hit before it is returned, e.g.
	// to re-attach state that was stripped for storage.
	// Default: identity.
	FromCache func(ctx context.Context, arg A, cached R) (R, error)

	// ToCache pre-processes a computed value before it is stored.
	// The caller still receives the original, untransformed value.
	// Default: identity.
	ToCache func(ctx context.Context, arg A, computed R) (R, error)

	// Client overrides the private cache client. When set, Forget
	// invalidates everything that client wrote, and Close becomes a
	// no-op.
	Client *cache.Client
}

// Memoized wraps a Target with caching. Safe for concurrent use;
// concurrent calls with the same argument are collapsed into a single
// computation.
type Memoized[A, R any] struct {
	name       string
	fn         Target[A, R]
	client     *cache.Client
	ownsClient bool
	key        func(A) (string, error)
	fromCache  func(ctx context.Context, arg A, v R) (R, error)
	toCache    func(ctx context.Context, arg A, v R) (R, error)
	setOpts    []cache.SetOption
	group      singleflight.Group
}

// New wraps fn under the given name. The name scopes cache keys and
// must be stable across processes for entries to be shared. When the
// config names no servers the wrapper is a plain passthrough.
func New[A, R any](cfg cache.Config, name string, fn Target[A, R], opts ...Options[A, R]) *Memoized[A, R] {
	var o Options[A, R]
	if len(opts) > 0 {
		o = opts[0]
	}

	m := &Memoized[A, R]{
		name:      name,
		fn:        fn,
		client:    o.Client,
		key:       o.Key,
		fromCache: o.FromCache,
		toCache:   o.ToCache,
	}
	if m.client == nil {
		m.client = cache.New(cfg)
		m.ownsClient = true
	}
	if m.key == nil {
		m.key = defaultKey[A](name)
	}
	if m.fromCache == nil {
		m.fromCache = passthrough[A, R]
	}
	if m.toCache == nil {
		m.toCache = passthrough[A, R]
	}
	if o.TTL > 0 {
		m.setOpts = append(m.setOpts, cache.WithTTL(o.TTL))
	}
	if o.CompressThreshold > 0 {
		m.setOpts = append(m.setOpts, cache.WithCompressThreshold(o.CompressThreshold))
	}
	return m
}

func passthrough[A, R any](_ context.Context, _ A, v R) (R, error) { return v, nil }

// Call invokes the target through the cache.
//
// On a hit the cached value is returned (through FromCache) without
// invoking the target. On a miss the target runs; a Cacheable result
// is stored (through ToCache) and the original value returned, an
// Uncacheable result is returned without being stored. Store errors
// fail the Call; only a genuine miss falls through to the target.
func (m *Memoized[A, R]) Call(ctx context.Context, arg A) (R, error) {
	if !m.client.Enabled() {
		res, err := m.fn(ctx, arg)
		return res.Value(), err
	}

	key, err := m.key(arg)
	if err != nil {
		var zero R
		return zero, fmt.Errorf("%w: %v", ErrKeyDerivation, err)
	}

	res, err := m.client.Get(ctx, key)
	if err != nil {
		var zero R
		return zero, fmt.Errorf("memo %s: %w", m.name, err)
	}
	if res.Hit() {
		var cached R
		if err := res.Decode(&cached); err == nil {
			return m.fromCache(ctx, arg, cached)
		}
		// An entry that no longer decodes into R reads as a miss.
	}

	v, err, _ := m.group.Do(key, func() (any, error) {
		res, err := m.fn(ctx, arg)
		if err != nil {
			return nil, err
		}
		if res.Cacheable() {
			stored, err := m.toCache(ctx, arg, res.Value())
			if err != nil {
				return nil, err
			}
			if err := m.client.Set(ctx, key, stored, m.setOpts...); err != nil {
				return nil, fmt.Errorf("memo %s: %w", m.name, err)
			}
		}
		return res.Value(), nil
	})
	if err != nil {
		var zero R
		return zero, err
	}

	out, _ := v.(R)
	return out, nil
}

// Forget invalidates every entry written by this wrapper. Entries of
// other wrappers and clients are untouched. No-op when caching is
// disabled.
func (m *Memoized[A, R]) Forget() error {
	if !m.client.Enabled() {
		return nil
	}
	return m.client.Flush(context.Background(), false)
}

// Unwrapped returns the wrapped target, bypassing the cache entirely.
func (m *Memoized[A, R]) Unwrapped() Target[A, R] {
	return m.fn
}

// Name returns the name the wrapper was created with.
func (m *Memoized[A, R]) Name() string {
	return m.name
}

// Close releases the private cache client. No-op when the client was
// supplied via Options.Client.
func (m *Memoized[A, R]) Close() error {
	if !m.ownsClient {
		return nil
	}
	return m.client.Close()
}
