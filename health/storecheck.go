package health

import (
	"context"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jonwraymond/cacheops/cache"
	"github.com/jonwraymond/cacheops/store"
)

// probeTTL bounds the lifetime of probe keys left on the server.
const probeTTL = time.Minute

// EndpointCheckerConfig configures a single-endpoint checker.
type EndpointCheckerConfig struct {
	// Endpoint is the "host:port" address to probe. Required.
	Endpoint string

	// DialTimeout bounds connection establishment.
	// Default: 500ms (the store default).
	DialTimeout time.Duration

	// OpTimeout bounds each probe round trip.
	// Default: 2s (the store default).
	OpTimeout time.Duration
}

// EndpointChecker probes one cache server with a set-then-get round
// trip under a random key. A server that accepts the write but returns
// a different value reads as unhealthy, not degraded.
type EndpointChecker struct {
	config EndpointCheckerConfig
}

// NewEndpointChecker creates a checker for a single cache server.
func NewEndpointChecker(config EndpointCheckerConfig) *EndpointChecker {
	return &EndpointChecker{config: config}
}

// Name returns the probed endpoint.
func (e *EndpointChecker) Name() string {
	return e.config.Endpoint
}

// Check performs the round-trip probe.
func (e *EndpointChecker) Check(ctx context.Context) Result {
	select {
	case <-ctx.Done():
		return Unhealthy("context cancelled", ctx.Err())
	default:
	}

	st, err := store.NewMemcached(store.MemcachedConfig{
		Servers:     []string{e.config.Endpoint},
		DialTimeout: e.config.DialTimeout,
		OpTimeout:   e.config.OpTimeout,
	})
	if err != nil {
		return Unhealthy(fmt.Sprintf("cannot probe %s", e.config.Endpoint), err)
	}
	defer st.Close()

	// A random key avoids colliding with live cache entries.
	u := uuid.New()
	key := hex.EncodeToString(u[:])

	if err := st.Set(ctx, &store.Item{Key: key, Value: []byte("1"), TTL: probeTTL}); err != nil {
		return Unhealthy(fmt.Sprintf("server %s not responding", e.config.Endpoint), err)
	}

	item, err := st.Get(ctx, key)
	if err != nil {
		return Unhealthy(fmt.Sprintf("server %s lost the probe key", e.config.Endpoint), err)
	}
	if string(item.Value) != "1" {
		return Unhealthy(fmt.Sprintf("server %s returned a corrupt probe value", e.config.Endpoint), ErrCheckFailed)
	}

	return Healthy(fmt.Sprintf("server %s responding", e.config.Endpoint)).WithDetails(map[string]any{
		"server": e.config.Endpoint,
	})
}

// ClientChecker reports the health of every server behind a cache client.
type ClientChecker struct {
	client *cache.Client
}

// NewClientChecker creates a checker over all of the client's servers.
func NewClientChecker(client *cache.Client) *ClientChecker {
	return &ClientChecker{client: client}
}

// Name identifies the composite cache check.
func (c *ClientChecker) Name() string {
	return "cache"
}

// Check probes every configured server through the client.
// A disabled client degrades rather than fails: the service runs
// without caching, it is not broken.
func (c *ClientChecker) Check(ctx context.Context) Result {
	if !c.client.Enabled() {
		return Degraded("caching is disabled")
	}

	responding, err := c.client.TestServers(ctx)
	if err != nil {
		return Unhealthy("server probe failed", err)
	}

	details := make(map[string]any, len(responding))
	up := 0
	for server, ok := range responding {
		details[server] = ok
		if ok {
			up++
		}
	}

	total := len(responding)
	switch {
	case up == total:
		return Healthy(fmt.Sprintf("%d of %d servers responding", up, total)).WithDetails(details)
	case up > 0:
		return Degraded(fmt.Sprintf("%d of %d servers responding", up, total)).WithDetails(details)
	default:
		return Unhealthy(fmt.Sprintf("0 of %d servers responding", total), ErrCheckFailed).WithDetails(details)
	}
}
