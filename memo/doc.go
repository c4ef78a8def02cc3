// Package memo provides function memoization backed by the cache
// client.
//
// A memoized target keeps the wrapped function's call semantics: the
// caller cannot tell a computed result from a cached one, except in
// latency. Each wrapper owns a private cache client so Forget only
// invalidates its own entries. Computations may opt out of storage per
// call by returning an Uncacheable result.
package memo
