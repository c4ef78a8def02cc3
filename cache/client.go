package cache

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jonwraymond/cacheops/store"
)

// DefaultNamespace scopes keys when Config.Namespace is empty.
const DefaultNamespace = "cacheops"

// probeTTL bounds the lifetime of TestServers probe keys.
const probeTTL = time.Minute

// Config configures a cache client.
type Config struct {
	// Servers are memcached "host:port" endpoints. An empty list
	// disables caching: Enabled reports false and cache operations
	// return ErrDisabled.
	Servers []string

	// Namespace scopes every key stored by this client.
	// Default: "cacheops".
	Namespace string

	// Debug stores human-readable physical keys and marks soft-flush
	// generations with a "flushed" prefix.
	Debug bool

	// DefaultTTL applies to Set calls without WithTTL. Zero means
	// entries do not expire.
	DefaultTTL time.Duration

	// CompressThreshold is the encoded entry size in bytes at or above
	// which payloads are zlib-compressed. Zero disables compression.
	CompressThreshold int

	// DialTimeout and OpTimeout bound store round trips. Zero values
	// use the store defaults.
	DialTimeout time.Duration
	OpTimeout   time.Duration
}

// Enabled reports whether the config names any servers.
func (c Config) Enabled() bool { return len(c.Servers) > 0 }

// StoreFactory builds the backing store for a client. The default
// factory is the memcached client over Config.Servers.
type StoreFactory func(cfg Config) (store.Store, error)

// LookupRecorder observes cache lookup outcomes.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
type LookupRecorder interface {
	RecordLookup(ctx context.Context, hit bool)
}

// Option customizes a client.
type Option func(*Client)

// WithStoreFactory overrides how the backing store is built. Used by
// tests and by instrumentation wrappers.
func WithStoreFactory(factory StoreFactory) Option {
	return func(c *Client) { c.factory = factory }
}

// WithLookupRecorder registers a hit/miss observer.
func WithLookupRecorder(rec LookupRecorder) Option {
	return func(c *Client) { c.recorder = rec }
}

// SetOption adjusts a single Set call.
type SetOption func(*setOptions)

type setOptions struct {
	ttl      time.Duration
	compress int
}

// WithTTL overrides the client's default TTL for one Set.
func WithTTL(ttl time.Duration) SetOption {
	return func(o *setOptions) { o.ttl = ttl }
}

// WithCompressThreshold overrides the client's compression threshold
// for one Set. Zero disables compression for the call.
func WithCompressThreshold(n int) SetOption {
	return func(o *setOptions) { o.compress = n }
}

// Client is a cache client bound to a pool of servers.
//
// The generation tag starts empty; a soft flush replaces it with a
// random token, making every previously written key unreachable without
// any server traffic. Client is safe for concurrent use.
type Client struct {
	cfg      Config
	keyer    Keyer
	factory  StoreFactory
	recorder LookupRecorder

	mu         sync.RWMutex
	generation string
	st         store.Store
}

// New creates a client. No connection is made until the first store
// operation.
func New(cfg Config, opts ...Option) *Client {
	if cfg.Namespace == "" {
		cfg.Namespace = DefaultNamespace
	}
	c := &Client{
		cfg:     cfg,
		keyer:   Keyer{Namespace: cfg.Namespace, Debug: cfg.Debug},
		factory: defaultStoreFactory,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func defaultStoreFactory(cfg Config) (store.Store, error) {
	return store.NewMemcached(store.MemcachedConfig{
		Servers:     cfg.Servers,
		DialTimeout: cfg.DialTimeout,
		OpTimeout:   cfg.OpTimeout,
	})
}

// Enabled reports whether caching is configured.
func (c *Client) Enabled() bool { return c.cfg.Enabled() }

// Servers returns the configured endpoints.
func (c *Client) Servers() []string {
	servers := make([]string, len(c.cfg.Servers))
	copy(servers, c.cfg.Servers)
	return servers
}

// Generation returns the current generation tag. Empty until the first
// soft flush.
func (c *Client) Generation() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.generation
}

// Set stores a value under a logical key. The value must be JSON
// encodable; nil is stored as JSON null and reads back as a hit.
func (c *Client) Set(ctx context.Context, key string, value any, opts ...SetOption) error {
	if !c.Enabled() {
		return ErrDisabled
	}
	st, err := c.store()
	if err != nil {
		return err
	}

	so := setOptions{ttl: c.cfg.DefaultTTL, compress: c.cfg.CompressThreshold}
	for _, opt := range opts {
		opt(&so)
	}

	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache: encode value: %w", err)
	}

	qualified := c.qualify(key)
	payload, err := json.Marshal(envelope{Key: qualified, Value: raw})
	if err != nil {
		return fmt.Errorf("cache: encode entry: %w", err)
	}

	var flags uint32
	if so.compress > 0 && len(payload) >= so.compress {
		compressed, err := compress(payload)
		if err != nil {
			return fmt.Errorf("cache: compress entry: %w", err)
		}
		// Small payloads can grow under compression; keep the smaller form.
		if len(compressed) < len(payload) {
			payload = compressed
			flags |= flagCompressed
		}
	}

	return st.Set(ctx, &store.Item{
		Key:   c.keyer.Physical(qualified),
		Value: payload,
		Flags: flags,
		TTL:   so.ttl,
	})
}

// Get retrieves the value stored under a logical key. A miss is not an
// error: the Result reports Hit() == false. Entries whose embedded key
// does not match the expected qualified key (physical collisions) and
// entries that cannot be decoded read as misses.
func (c *Client) Get(ctx context.Context, key string) (Result, error) {
	if !c.Enabled() {
		return Result{}, ErrDisabled
	}
	st, err := c.store()
	if err != nil {
		return Result{}, err
	}

	qualified := c.qualify(key)
	item, err := st.Get(ctx, c.keyer.Physical(qualified))
	if err != nil {
		if errors.Is(err, store.ErrCacheMiss) {
			return c.miss(ctx), nil
		}
		return Result{}, err
	}

	payload := item.Value
	if item.Flags&flagCompressed != 0 {
		payload, err = decompress(payload)
		if err != nil {
			return c.miss(ctx), nil
		}
	}

	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return c.miss(ctx), nil
	}
	if env.Key != qualified {
		return c.miss(ctx), nil
	}

	if c.recorder != nil {
		c.recorder.RecordLookup(ctx, true)
	}
	return hitResult(env.Value), nil
}

// Delete removes the entry for a logical key.
func (c *Client) Delete(ctx context.Context, key string) error {
	if !c.Enabled() {
		return ErrDisabled
	}
	st, err := c.store()
	if err != nil {
		return err
	}
	return st.Delete(ctx, c.keyer.Physical(c.qualify(key)))
}

// Flush invalidates cached entries.
//
// A soft flush (hard=false) rotates the generation tag locally: no
// server traffic, previously written entries become unreachable but
// stay on the servers until they expire or a hard flush removes them.
// A hard flush destroys every entry on every server, for all
// generations and all clients, then resets server stats.
func (c *Client) Flush(ctx context.Context, hard bool) error {
	if !c.Enabled() {
		return ErrDisabled
	}

	if !hard {
		u := uuid.New()
		token := hex.EncodeToString(u[:])
		if c.cfg.Debug {
			token = "flushed" + token
		}
		c.mu.Lock()
		c.generation = token
		c.mu.Unlock()
		return nil
	}

	st, err := c.store()
	if err != nil {
		return err
	}
	if err := st.FlushAll(ctx); err != nil {
		return err
	}
	return c.ResetStats(ctx)
}

// Stats fetches raw counters from each responding server.
func (c *Client) Stats(ctx context.Context) ([]store.ServerStats, error) {
	if !c.Enabled() {
		return nil, ErrDisabled
	}
	st, err := c.store()
	if err != nil {
		return nil, err
	}
	return st.Stats(ctx, "")
}

// ResetStats zeroes the stat counters on each responding server.
func (c *Client) ResetStats(ctx context.Context) error {
	if !c.Enabled() {
		return ErrDisabled
	}
	st, err := c.store()
	if err != nil {
		return err
	}
	_, err = st.Stats(ctx, "reset")
	return err
}

// TestServers probes every configured endpoint with an independent
// connection and a disposable key round trip. The result maps each
// endpoint to whether it responded; per-endpoint failures show up
// there, never as an error.
func (c *Client) TestServers(ctx context.Context) (map[string]bool, error) {
	if !c.Enabled() {
		return nil, ErrDisabled
	}

	responding := make(map[string]bool, len(c.cfg.Servers))
	for _, server := range c.cfg.Servers {
		responding[server] = c.probe(ctx, server)
	}
	return responding, nil
}

func (c *Client) probe(ctx context.Context, server string) bool {
	cfg := c.cfg
	cfg.Servers = []string{server}
	st, err := c.factory(cfg)
	if err != nil {
		return false
	}
	defer st.Close()

	u := uuid.New()
	key := hex.EncodeToString(u[:])
	if err := st.Set(ctx, &store.Item{Key: key, Value: []byte("1"), TTL: probeTTL}); err != nil {
		return false
	}
	item, err := st.Get(ctx, key)
	if err != nil {
		return false
	}
	return string(item.Value) == "1"
}

// Close releases the backing store, if one was built.
func (c *Client) Close() error {
	c.mu.Lock()
	st := c.st
	c.st = nil
	c.mu.Unlock()

	if st == nil {
		return nil
	}
	return st.Close()
}

func (c *Client) miss(ctx context.Context) Result {
	if c.recorder != nil {
		c.recorder.RecordLookup(ctx, false)
	}
	return Result{}
}

func (c *Client) qualify(key string) string {
	c.mu.RLock()
	gen := c.generation
	c.mu.RUnlock()
	return c.keyer.Qualify(gen, key)
}

func (c *Client) store() (store.Store, error) {
	c.mu.RLock()
	st := c.st
	c.mu.RUnlock()
	if st != nil {
		return st, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.st == nil {
		st, err := c.factory(c.cfg)
		if err != nil {
			return nil, err
		}
		c.st = st
	}
	return c.st, nil
}
