package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS entries (
	key        TEXT PRIMARY KEY,
	value      BLOB NOT NULL,
	flags      INTEGER NOT NULL,
	expires_at INTEGER NOT NULL
)`

// SQLite is a single-file persistent Store for hosts without a memcached
// pool. Command counters live in memory and reset on restart; stored
// entries survive.
type SQLite struct {
	db    *sql.DB
	path  string
	start time.Time

	mu        sync.Mutex
	cmdGet    uint64
	cmdSet    uint64
	getHits   uint64
	getMisses uint64
}

// NewSQLite opens the store file at path, creating it and its schema if
// needed.
func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite %s: %w", path, err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: init sqlite schema: %w", err)
	}
	return &SQLite{db: db, path: path, start: time.Now()}, nil
}

// Get retrieves an item. Returns ErrCacheMiss on miss or expiry.
func (s *SQLite) Get(ctx context.Context, key string) (*Item, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	s.count(&s.cmdGet)

	var (
		value     []byte
		flags     int64
		expiresAt int64
	)
	row := s.db.QueryRowContext(ctx, `SELECT value, flags, expires_at FROM entries WHERE key = ?`, key)
	if err := row.Scan(&value, &flags, &expiresAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.count(&s.getMisses)
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if expiresAt > 0 && time.Now().Unix() >= expiresAt {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM entries WHERE key = ?`, key)
		s.count(&s.getMisses)
		return nil, ErrCacheMiss
	}
	s.count(&s.getHits)
	return &Item{Key: key, Value: value, Flags: uint32(flags)}, nil
}

// Set stores an item, overwriting any existing value.
func (s *SQLite) Set(ctx context.Context, item *Item) error {
	if err := ValidateKey(item.Key); err != nil {
		return err
	}
	s.count(&s.cmdSet)

	var expiresAt int64
	if item.TTL > 0 {
		expiresAt = time.Now().Add(item.TTL).Unix()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO entries (key, value, flags, expires_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			flags = excluded.flags,
			expires_at = excluded.expires_at`,
		item.Key, item.Value, int64(item.Flags), expiresAt)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Delete removes a key. Absent keys are not an error.
func (s *SQLite) Delete(ctx context.Context, key string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM entries WHERE key = ?`, key); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// FlushAll removes every entry.
func (s *SQLite) FlushAll(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM entries`); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Stats reports counters. Capacity (limit_maxbytes) is reported as 0
// since a SQLite file has no fixed limit.
func (s *SQLite) Stats(ctx context.Context, args string) ([]ServerStats, error) {
	var (
		items int64
		bytes int64
	)
	row := s.db.QueryRowContext(ctx, `SELECT COUNT(*), COALESCE(SUM(LENGTH(value)), 0) FROM entries`)
	if err := row.Scan(&items, &bytes); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if args == "reset" {
		s.cmdGet, s.cmdSet, s.getHits, s.getMisses = 0, 0, 0, 0
	}

	stats := map[string]string{
		"uptime":         strconv.FormatInt(int64(time.Since(s.start)/time.Second), 10),
		"cmd_get":        strconv.FormatUint(s.cmdGet, 10),
		"cmd_set":        strconv.FormatUint(s.cmdSet, 10),
		"get_hits":       strconv.FormatUint(s.getHits, 10),
		"get_misses":     strconv.FormatUint(s.getMisses, 10),
		"bytes":          strconv.FormatInt(bytes, 10),
		"curr_items":     strconv.FormatInt(items, 10),
		"limit_maxbytes": "0",
	}
	return []ServerStats{{Server: s.serverID(), Stats: stats}}, nil
}

// Servers returns the single endpoint "sqlite:<path>".
func (s *SQLite) Servers() []string {
	return []string{s.serverID()}
}

// Close closes the underlying database.
func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) serverID() string {
	return "sqlite:" + s.path
}

func (s *SQLite) count(c *uint64) {
	s.mu.Lock()
	*c++
	s.mu.Unlock()
}

// Ensure SQLite implements Store
var _ Store = (*SQLite)(nil)
