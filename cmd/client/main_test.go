package main

import (
	"bufio"
	"net"
	"testing"

	"github.com/epokhe/bitcask/internal/netproto"
)

// fakeServer accepts exactly one connection, reads a request, and
// writes back a canned reply, mimicking the dispatcher's half-closed
// reply contract.
func fakeServer(t *testing.T, reply string) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen failed: %v", err)
	}
	t.Cleanup(func() { ln.Close() }) // nolint:errcheck

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close() // nolint:errcheck
		_, _ = netproto.ReadRequest(bufio.NewReader(conn))
		_, _ = conn.Write([]byte(reply))
	}()

	return ln.Addr().String()
}

func TestDispatchRmKeyNotFound(t *testing.T) {
	addr := fakeServer(t, netproto.KeyNotFound)

	got, err := dispatch(addr, "RM", "missing")
	if err != nil {
		t.Fatalf("dispatch failed: %v", err)
	}
	if got != netproto.KeyNotFound {
		t.Errorf("got %q, want %q", got, netproto.KeyNotFound)
	}
}

func TestDispatchSetSuccess(t *testing.T) {
	addr := fakeServer(t, netproto.SetSuccessful)

	got, err := dispatch(addr, "SET", "k", "v")
	if err != nil {
		t.Fatalf("dispatch failed: %v", err)
	}
	if got != netproto.SetSuccessful {
		t.Errorf("got %q, want %q", got, netproto.SetSuccessful)
	}
}
