package memo

import "context"

// Result tags a computed value as cacheable or not. The zero value is
// an uncacheable zero value.
type Result[R any] struct {
	value     R
	cacheable bool
}

// Cacheable marks a computed value as safe to store.
func Cacheable[R any](v R) Result[R] {
	return Result[R]{value: v, cacheable: true}
}

// Uncacheable marks a value that is returned to the caller but never
// stored, e.g. a result computed under degraded conditions that should
// not be served to later callers.
func Uncacheable[R any](v R) Result[R] {
	return Result[R]{value: v}
}

// Value returns the computed value.
func (r Result[R]) Value() R { return r.value }

// Cacheable reports whether the value may be stored.
func (r Result[R]) Cacheable() bool { return r.cacheable }

// Target is the signature of a computation that can be memoized. A
// target decides per call whether its result may be cached.
type Target[A, R any] func(ctx context.Context, arg A) (Result[R], error)

// Plain adapts a function whose results are always cacheable.
func Plain[A, R any](fn func(ctx context.Context, arg A) (R, error)) Target[A, R] {
	return func(ctx context.Context, arg A) (Result[R], error) {
		v, err := fn(ctx, arg)
		if err != nil {
			return Result[R]{}, err
		}
		return Cacheable(v), nil
	}
}
