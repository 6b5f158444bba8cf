package server

import (
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/epokhe/bitcask/engine"
	"github.com/epokhe/bitcask/internal/logging"
	"github.com/epokhe/bitcask/internal/netproto"
)

// memStore is a minimal in-memory engine.Store stand-in so the
// dispatcher can be exercised without touching disk.
type memStore struct {
	data map[string]string
}

func newMemStore() *memStore { return &memStore{data: make(map[string]string)} }

func (m *memStore) Get(key string) (string, bool, error) {
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memStore) Set(key, value string) error {
	m.data[key] = value
	return nil
}

func (m *memStore) Remove(key string) error {
	if _, ok := m.data[key]; !ok {
		return fmt.Errorf("%w: %q", engine.ErrKeyNotFound, key)
	}
	delete(m.data, key)
	return nil
}

func (m *memStore) Close() error { return nil }

func startTestServer(t *testing.T) (addr string, stop func()) {
	t.Helper()
	srv := New(newMemStore(), 2, logging.New())

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen failed: %v", err)
	}
	srv.listener = ln

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			_ = srv.pool.Spawn(func() { srv.handle(conn) })
		}
	}()

	return ln.Addr().String(), func() { srv.Close() } // nolint:errcheck
}

func send(t *testing.T, addr, opcode string, operands ...string) string {
	t.Helper()
	conn, err := net.DialTimeout("tcp", addr, time.Second)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close() // nolint:errcheck

	parts := append([]string{opcode}, operands...)
	payload := ""
	for i, p := range parts {
		if i > 0 {
			payload += "\r\n"
		}
		payload += p
	}
	if _, err := fmt.Fprintf(conn, "%d\r\n%s", len(payload), payload); err != nil {
		t.Fatalf("write request failed: %v", err)
	}
	if c, ok := conn.(*net.TCPConn); ok {
		_ = c.CloseWrite()
	}

	reply, err := netproto.ReadReply(conn)
	if err != nil {
		t.Fatalf("read reply failed: %v", err)
	}
	return reply
}

// TestEndToEndScenario exercises spec §8 scenario 4: SET/GET/RM/RM/GET
// against a running dispatcher.
func TestEndToEndScenario(t *testing.T) {
	addr, stop := startTestServer(t)
	defer stop()

	if got := send(t, addr, "SET", "foo", "bar"); got != "set successful" {
		t.Errorf("SET reply = %q, want %q", got, "set successful")
	}
	if got := send(t, addr, "GET", "foo"); got != "bar" {
		t.Errorf("GET reply = %q, want %q", got, "bar")
	}
	if got := send(t, addr, "RM", "foo"); got != "Success" {
		t.Errorf("RM reply = %q, want %q", got, "Success")
	}
	if got := send(t, addr, "RM", "foo"); got != "Key not found" {
		t.Errorf("second RM reply = %q, want %q", got, "Key not found")
	}
	if got := send(t, addr, "GET", "foo"); got != "Key not found" {
		t.Errorf("GET after remove reply = %q, want %q", got, "Key not found")
	}
}

func TestUnknownOpcode(t *testing.T) {
	addr, stop := startTestServer(t)
	defer stop()

	if got := send(t, addr, "FOO", "bar"); got != "Invalid command" {
		t.Errorf("got %q, want %q", got, "Invalid command")
	}
}
