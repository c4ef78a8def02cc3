package store

import (
	"context"
	"strconv"
	"sync"
	"time"
)

// MemoryMaxBytes is the synthetic capacity the memory store reports as
// limit_maxbytes.
const MemoryMaxBytes = 64 << 20

// Memory is an in-process Store for tests and embedded use. It reports
// synthetic counters under the same stat names a memcached server uses,
// so the stats and admin layers work against it unchanged.
type Memory struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	start   time.Time

	cmdGet    uint64
	cmdSet    uint64
	getHits   uint64
	getMisses uint64
}

type memoryEntry struct {
	value     []byte
	flags     uint32
	expiresAt time.Time // zero means no expiry
}

// NewMemory creates an empty memory store.
func NewMemory() *Memory {
	return &Memory{
		entries: make(map[string]memoryEntry),
		start:   time.Now(),
	}
}

// Get retrieves an item. Returns ErrCacheMiss on miss or expiry.
func (m *Memory) Get(_ context.Context, key string) (*Item, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.cmdGet++
	entry, ok := m.entries[key]
	if ok && !entry.expiresAt.IsZero() && time.Now().After(entry.expiresAt) {
		delete(m.entries, key)
		ok = false
	}
	if !ok {
		m.getMisses++
		return nil, ErrCacheMiss
	}
	m.getHits++

	value := make([]byte, len(entry.value))
	copy(value, entry.value)
	return &Item{Key: key, Value: value, Flags: entry.flags}, nil
}

// Set stores an item, overwriting any existing value.
func (m *Memory) Set(_ context.Context, item *Item) error {
	if err := ValidateKey(item.Key); err != nil {
		return err
	}

	value := make([]byte, len(item.Value))
	copy(value, item.Value)

	var expiresAt time.Time
	if item.TTL > 0 {
		expiresAt = time.Now().Add(item.TTL)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.cmdSet++
	m.entries[item.Key] = memoryEntry{value: value, flags: item.Flags, expiresAt: expiresAt}
	return nil
}

// Delete removes a key. Absent keys are not an error.
func (m *Memory) Delete(_ context.Context, key string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}

	m.mu.Lock()
	delete(m.entries, key)
	m.mu.Unlock()
	return nil
}

// FlushAll removes every entry.
func (m *Memory) FlushAll(_ context.Context) error {
	m.mu.Lock()
	m.entries = make(map[string]memoryEntry)
	m.mu.Unlock()
	return nil
}

// Stats reports synthetic counters. args "reset" zeroes the command and
// hit/miss counters before reporting.
func (m *Memory) Stats(_ context.Context, args string) ([]ServerStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if args == "reset" {
		m.cmdGet, m.cmdSet, m.getHits, m.getMisses = 0, 0, 0, 0
	}

	var bytes int
	for _, entry := range m.entries {
		bytes += len(entry.value)
	}

	stats := map[string]string{
		"uptime":         strconv.FormatInt(int64(time.Since(m.start)/time.Second), 10),
		"cmd_get":        strconv.FormatUint(m.cmdGet, 10),
		"cmd_set":        strconv.FormatUint(m.cmdSet, 10),
		"get_hits":       strconv.FormatUint(m.getHits, 10),
		"get_misses":     strconv.FormatUint(m.getMisses, 10),
		"bytes":          strconv.Itoa(bytes),
		"curr_items":     strconv.Itoa(len(m.entries)),
		"limit_maxbytes": strconv.Itoa(MemoryMaxBytes),
	}
	return []ServerStats{{Server: "memory", Stats: stats}}, nil
}

// Servers returns the single synthetic endpoint "memory".
func (m *Memory) Servers() []string {
	return []string{"memory"}
}

// Close is a no-op for the memory store.
func (m *Memory) Close() error {
	return nil
}

// Ensure Memory implements Store
var _ Store = (*Memory)(nil)
