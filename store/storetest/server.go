// Package storetest provides an in-process memcached server for tests.
//
// The server speaks enough of the text protocol to exercise the real
// client: get, set, delete, flush_all, stats, stats reset, quit.
package storetest

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"
)

// LimitMaxBytes is the capacity the fake server reports.
const LimitMaxBytes = 64 << 20

// Server is an in-process memcached for tests.
type Server struct {
	ln net.Listener

	mu     sync.Mutex
	items  map[string]serverItem
	conns  map[net.Conn]struct{}
	start  time.Time
	closed bool

	cmdGet uint64
	cmdSet uint64
	hits   uint64
	misses uint64

	wg sync.WaitGroup
}

type serverItem struct {
	value     []byte
	flags     uint32
	expiresAt time.Time
}

// Start runs a server on an ephemeral local port and registers cleanup
// with the test.
func Start(t testing.TB) *Server {
	t.Helper()
	s, err := Listen()
	if err != nil {
		t.Fatalf("storetest: %v", err)
	}
	t.Cleanup(s.Stop)
	return s
}

// Listen runs a server on an ephemeral local port.
func Listen() (*Server, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("storetest: listen: %w", err)
	}
	s := &Server{
		ln:    ln,
		items: make(map[string]serverItem),
		conns: make(map[net.Conn]struct{}),
		start: time.Now(),
	}
	s.wg.Add(1)
	go s.serve()
	return s, nil
}

// Addr returns the listen address, e.g. "127.0.0.1:42815".
func (s *Server) Addr() string {
	return s.ln.Addr().String()
}

// Stop closes the listener and every open connection. Safe to call more
// than once.
func (s *Server) Stop() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	for nc := range s.conns {
		_ = nc.Close()
	}
	s.mu.Unlock()

	_ = s.ln.Close()
	s.wg.Wait()
}

// Plant stores an item directly, bypassing the protocol. Used to seed
// fixtures such as foreign cache envelopes.
func (s *Server) Plant(key string, value []byte, flags uint32) {
	s.mu.Lock()
	s.items[key] = serverItem{value: value, flags: flags}
	s.mu.Unlock()
}

// Item returns a stored value, or false if absent.
func (s *Server) Item(key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[key]
	if !ok {
		return nil, false
	}
	value := make([]byte, len(it.value))
	copy(value, it.value)
	return value, true
}

// Len reports the number of stored items.
func (s *Server) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

func (s *Server) serve() {
	defer s.wg.Done()
	for {
		nc, err := s.ln.Accept()
		if err != nil {
			return
		}

		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			_ = nc.Close()
			return
		}
		s.conns[nc] = struct{}{}
		s.mu.Unlock()

		s.wg.Add(1)
		go s.handle(nc)
	}
}

func (s *Server) handle(nc net.Conn) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		delete(s.conns, nc)
		s.mu.Unlock()
		_ = nc.Close()
	}()

	r := bufio.NewReader(nc)
	w := bufio.NewWriter(nc)
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		fields := strings.Fields(strings.TrimRight(line, "\r\n"))
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case "get":
			s.doGet(w, fields[1:])
		case "set":
			s.doSet(r, w, fields[1:])
		case "delete":
			s.doDelete(w, fields[1:])
		case "flush_all":
			s.doFlushAll(w)
		case "stats":
			s.doStats(w, fields[1:])
		case "quit":
			return
		default:
			_, _ = w.WriteString("ERROR\r\n")
		}
		if err := w.Flush(); err != nil {
			return
		}
	}
}

func (s *Server) doGet(w *bufio.Writer, keys []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cmdGet++
	for _, key := range keys {
		it, ok := s.items[key]
		if ok && !it.expiresAt.IsZero() && time.Now().After(it.expiresAt) {
			delete(s.items, key)
			ok = false
		}
		if !ok {
			s.misses++
			continue
		}
		s.hits++
		fmt.Fprintf(w, "VALUE %s %d %d\r\n", key, it.flags, len(it.value))
		_, _ = w.Write(it.value)
		_, _ = w.WriteString("\r\n")
	}
	_, _ = w.WriteString("END\r\n")
}

func (s *Server) doSet(r *bufio.Reader, w *bufio.Writer, args []string) {
	if len(args) != 4 {
		_, _ = w.WriteString("CLIENT_ERROR bad command line format\r\n")
		return
	}
	flags, _ := strconv.ParseUint(args[1], 10, 32)
	exptime, _ := strconv.Atoi(args[2])
	size, err := strconv.Atoi(args[3])
	if err != nil || size < 0 {
		_, _ = w.WriteString("CLIENT_ERROR bad data chunk\r\n")
		return
	}

	buf := make([]byte, size+2)
	if _, err := io.ReadFull(r, buf); err != nil {
		return
	}

	var expiresAt time.Time
	if exptime > 0 {
		expiresAt = time.Now().Add(time.Duration(exptime) * time.Second)
	}

	s.mu.Lock()
	s.cmdSet++
	s.items[args[0]] = serverItem{value: buf[:size], flags: uint32(flags), expiresAt: expiresAt}
	s.mu.Unlock()

	_, _ = w.WriteString("STORED\r\n")
}

func (s *Server) doDelete(w *bufio.Writer, args []string) {
	if len(args) != 1 {
		_, _ = w.WriteString("CLIENT_ERROR bad command line format\r\n")
		return
	}

	s.mu.Lock()
	_, ok := s.items[args[0]]
	delete(s.items, args[0])
	s.mu.Unlock()

	if ok {
		_, _ = w.WriteString("DELETED\r\n")
	} else {
		_, _ = w.WriteString("NOT_FOUND\r\n")
	}
}

func (s *Server) doFlushAll(w *bufio.Writer) {
	s.mu.Lock()
	s.items = make(map[string]serverItem)
	s.mu.Unlock()
	_, _ = w.WriteString("OK\r\n")
}

func (s *Server) doStats(w *bufio.Writer, args []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(args) > 0 && args[0] == "reset" {
		s.cmdGet, s.cmdSet, s.hits, s.misses = 0, 0, 0, 0
		_, _ = w.WriteString("RESET\r\n")
		return
	}

	var bytes int
	for _, it := range s.items {
		bytes += len(it.value)
	}

	stats := [][2]string{
		{"pid", "1"},
		{"uptime", strconv.FormatInt(int64(time.Since(s.start)/time.Second), 10)},
		{"cmd_get", strconv.FormatUint(s.cmdGet, 10)},
		{"cmd_set", strconv.FormatUint(s.cmdSet, 10)},
		{"get_hits", strconv.FormatUint(s.hits, 10)},
		{"get_misses", strconv.FormatUint(s.misses, 10)},
		{"bytes", strconv.Itoa(bytes)},
		{"curr_items", strconv.Itoa(len(s.items))},
		{"limit_maxbytes", strconv.Itoa(LimitMaxBytes)},
	}
	for _, kv := range stats {
		fmt.Fprintf(w, "STAT %s %s\r\n", kv[0], kv[1])
	}
	_, _ = w.WriteString("END\r\n")
}
