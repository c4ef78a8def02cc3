package store

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Defaults applied by NewMemcached when the config leaves them zero.
const (
	DefaultDialTimeout = 500 * time.Millisecond
	DefaultOpTimeout   = 2 * time.Second
)

// MemcachedConfig configures the memcached client.
type MemcachedConfig struct {
	// Servers are "host:port" endpoints. Required.
	Servers []string

	// DialTimeout bounds connection establishment.
	// Default: 500ms.
	DialTimeout time.Duration

	// OpTimeout bounds a single round trip.
	// Default: 2s.
	OpTimeout time.Duration
}

// Memcached speaks the memcached text protocol to a pool of servers.
// Keys are distributed by CRC-32 over the configured server list.
// Connections are dialed lazily and re-dialed after any failure.
type Memcached struct {
	cfg MemcachedConfig

	mu    sync.Mutex
	conns map[string]*textConn
}

type textConn struct {
	nc net.Conn
	r  *bufio.Reader
	w  *bufio.Writer
}

// NewMemcached creates a client for the given servers. No connection is
// made until the first operation.
func NewMemcached(cfg MemcachedConfig) (*Memcached, error) {
	if len(cfg.Servers) == 0 {
		return nil, ErrNoServers
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = DefaultDialTimeout
	}
	if cfg.OpTimeout <= 0 {
		cfg.OpTimeout = DefaultOpTimeout
	}
	servers := make([]string, len(cfg.Servers))
	copy(servers, cfg.Servers)
	cfg.Servers = servers

	return &Memcached{
		cfg:   cfg,
		conns: make(map[string]*textConn),
	}, nil
}

// Get retrieves an item from the server owning the key.
func (m *Memcached) Get(ctx context.Context, key string) (*Item, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}

	var item *Item
	err := m.do(ctx, m.pickServer(key), func(tc *textConn) error {
		if err := tc.writeLine("get " + key); err != nil {
			return err
		}
		line, err := tc.readLine()
		if err != nil {
			return err
		}
		if line == "END" {
			return ErrCacheMiss
		}

		fields := strings.Fields(line)
		if len(fields) != 4 || fields[0] != "VALUE" {
			return responseError(line)
		}
		flags, err := strconv.ParseUint(fields[2], 10, 32)
		if err != nil {
			return fmt.Errorf("%w: flags %q", ErrMalformedResponse, fields[2])
		}
		size, err := strconv.Atoi(fields[3])
		if err != nil || size < 0 {
			return fmt.Errorf("%w: length %q", ErrMalformedResponse, fields[3])
		}

		// Payload is followed by \r\n, then the END terminator.
		buf := make([]byte, size+2)
		if _, err := io.ReadFull(tc.r, buf); err != nil {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		end, err := tc.readLine()
		if err != nil {
			return err
		}
		if end != "END" {
			return responseError(end)
		}

		item = &Item{Key: key, Value: buf[:size], Flags: uint32(flags)}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

// Set stores an item on the server owning its key.
func (m *Memcached) Set(ctx context.Context, item *Item) error {
	if err := ValidateKey(item.Key); err != nil {
		return err
	}

	// memcached expiry is in whole seconds; zero means no expiry, so
	// sub-second TTLs round up rather than becoming eternal.
	exptime := 0
	if item.TTL > 0 {
		exptime = int(item.TTL / time.Second)
		if exptime < 1 {
			exptime = 1
		}
	}

	return m.do(ctx, m.pickServer(item.Key), func(tc *textConn) error {
		header := fmt.Sprintf("set %s %d %d %d", item.Key, item.Flags, exptime, len(item.Value))
		if err := tc.writePayload(header, item.Value); err != nil {
			return err
		}
		line, err := tc.readLine()
		if err != nil {
			return err
		}
		if line != "STORED" {
			return responseError(line)
		}
		return nil
	})
}

// Delete removes a key. Absent keys are not an error.
func (m *Memcached) Delete(ctx context.Context, key string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}

	return m.do(ctx, m.pickServer(key), func(tc *textConn) error {
		if err := tc.writeLine("delete " + key); err != nil {
			return err
		}
		line, err := tc.readLine()
		if err != nil {
			return err
		}
		if line != "DELETED" && line != "NOT_FOUND" {
			return responseError(line)
		}
		return nil
	})
}

// FlushAll invalidates every entry on every server. All servers are
// attempted even if some fail; the first failure is reported.
func (m *Memcached) FlushAll(ctx context.Context) error {
	var firstErr error
	for _, server := range m.cfg.Servers {
		err := m.do(ctx, server, func(tc *textConn) error {
			if err := tc.writeLine("flush_all"); err != nil {
				return err
			}
			line, err := tc.readLine()
			if err != nil {
				return err
			}
			if line != "OK" {
				return responseError(line)
			}
			return nil
		})
		if err != nil && firstErr == nil {
			firstErr = fmt.Errorf("flush %s: %w", server, err)
		}
	}
	return firstErr
}

// Stats fetches counters from every server in configured order. Servers
// that fail to respond are skipped.
func (m *Memcached) Stats(ctx context.Context, args string) ([]ServerStats, error) {
	cmd := "stats"
	if args != "" {
		cmd += " " + args
	}

	out := make([]ServerStats, 0, len(m.cfg.Servers))
	for _, server := range m.cfg.Servers {
		stats := make(map[string]string)
		err := m.do(ctx, server, func(tc *textConn) error {
			if err := tc.writeLine(cmd); err != nil {
				return err
			}
			for {
				line, err := tc.readLine()
				if err != nil {
					return err
				}
				switch {
				case line == "END" || line == "RESET":
					return nil
				case strings.HasPrefix(line, "STAT "):
					kv := strings.SplitN(line[len("STAT "):], " ", 2)
					if len(kv) == 2 {
						stats[kv[0]] = kv[1]
					}
				default:
					return responseError(line)
				}
			}
		})
		if err != nil {
			continue
		}
		out = append(out, ServerStats{Server: server, Stats: stats})
	}
	return out, nil
}

// Servers returns the configured endpoints in order.
func (m *Memcached) Servers() []string {
	servers := make([]string, len(m.cfg.Servers))
	copy(servers, m.cfg.Servers)
	return servers
}

// Close drops all held connections.
func (m *Memcached) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var firstErr error
	for server, tc := range m.conns {
		if err := tc.nc.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(m.conns, server)
	}
	return firstErr
}

// pickServer selects the server owning a key.
func (m *Memcached) pickServer(key string) string {
	if len(m.cfg.Servers) == 1 {
		return m.cfg.Servers[0]
	}
	// Unsigned modulo: int(sum) would go negative for high checksums
	// on 32-bit platforms and index out of range.
	sum := crc32.ChecksumIEEE([]byte(key))
	return m.cfg.Servers[sum%uint32(len(m.cfg.Servers))]
}

// do runs one round trip against a server under the client lock. A miss
// leaves the connection healthy; any other failure invalidates it so the
// next operation redials.
func (m *Memcached) do(ctx context.Context, server string, fn func(*textConn) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	tc, err := m.dialLocked(ctx, server)
	if err != nil {
		return err
	}

	deadline := time.Now().Add(m.cfg.OpTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = tc.nc.SetDeadline(deadline)

	if err := fn(tc); err != nil {
		if !errors.Is(err, ErrCacheMiss) {
			_ = tc.nc.Close()
			delete(m.conns, server)
		}
		return err
	}
	return nil
}

func (m *Memcached) dialLocked(ctx context.Context, server string) (*textConn, error) {
	if tc, ok := m.conns[server]; ok {
		return tc, nil
	}

	d := net.Dialer{Timeout: m.cfg.DialTimeout}
	nc, err := d.DialContext(ctx, "tcp", server)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %v", ErrUnavailable, server, err)
	}

	tc := &textConn{nc: nc, r: bufio.NewReader(nc), w: bufio.NewWriter(nc)}
	m.conns[server] = tc
	return tc, nil
}

func (tc *textConn) writeLine(line string) error {
	if _, err := tc.w.WriteString(line + "\r\n"); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err := tc.w.Flush(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (tc *textConn) writePayload(header string, payload []byte) error {
	if _, err := tc.w.WriteString(header + "\r\n"); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if _, err := tc.w.Write(payload); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if _, err := tc.w.WriteString("\r\n"); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err := tc.w.Flush(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (tc *textConn) readLine() (string, error) {
	line, err := tc.r.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// responseError classifies an unexpected protocol line.
func responseError(line string) error {
	if line == "ERROR" || strings.HasPrefix(line, "CLIENT_ERROR") || strings.HasPrefix(line, "SERVER_ERROR") {
		return fmt.Errorf("%w: %s", ErrServerError, line)
	}
	return fmt.Errorf("%w: %q", ErrMalformedResponse, line)
}

// Ensure Memcached implements Store
var _ Store = (*Memcached)(nil)
