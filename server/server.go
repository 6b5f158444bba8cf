// Package server implements the network dispatcher: it binds a TCP
// listener, accepts connections, and hands each one to a worker pool
// that frames requests, dispatches them to a store, and writes the
// reply.
package server

import (
	"bufio"
	"fmt"
	"net"

	"github.com/epokhe/bitcask/engine"
	"github.com/epokhe/bitcask/internal/logging"
	"github.com/epokhe/bitcask/internal/netproto"
	"github.com/epokhe/bitcask/internal/workerpool"
)

// Server binds a listener and dispatches accepted connections to a
// fixed-size worker pool, each job calling into store.
type Server struct {
	store    engine.Store
	pool     *workerpool.Pool
	log      *logging.Logger
	listener net.Listener
}

// New builds a Server around store, backed by a pool of workers workers
// wide. Pass workers <= 0 to default to runtime.NumCPU().
func New(store engine.Store, workers int, log *logging.Logger) *Server {
	if workers <= 0 {
		workers = numCPU()
	}
	return &Server{
		store: store,
		pool:  workerpool.New(workers),
		log:   log,
	}
}

// ListenAndServe binds addr and serves until the listener is closed.
func (s *Server) ListenAndServe(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %q: %w", addr, err)
	}
	s.listener = ln
	s.log.Infof("listening on %s", ln.Addr())

	for {
		conn, err := ln.Accept()
		if err != nil {
			return fmt.Errorf("accept: %w", err)
		}
		if err := s.pool.Spawn(func() { s.handle(conn) }); err != nil {
			s.log.Errorf("could not schedule connection: %v", err)
			conn.Close() // nolint:errcheck
		}
	}
}

// Close stops accepting connections and shuts the worker pool down.
func (s *Server) Close() error {
	var err error
	if s.listener != nil {
		err = s.listener.Close()
	}
	s.pool.Close()
	return err
}

// handle services one connection to completion: read one framed
// command, dispatch it, write one reply, close. Per spec §4.7, any
// I/O or parse error here is logged and the connection is dropped;
// it never crashes the worker.
func (s *Server) handle(conn net.Conn) {
	defer conn.Close() // nolint:errcheck

	req, err := netproto.ReadRequest(bufio.NewReader(conn))
	if err != nil {
		s.log.Errorf("read request from %s: %v", conn.RemoteAddr(), err)
		return
	}

	reply := s.dispatch(req)
	if _, err := fmt.Fprint(conn, reply); err != nil {
		s.log.Errorf("write reply to %s: %v", conn.RemoteAddr(), err)
	}
}

// dispatch maps a parsed Request onto a store operation and returns
// the protocol-level reply line, per spec §4.7 and §6.
func (s *Server) dispatch(req netproto.Request) string {
	switch req.Opcode {
	case "GET":
		if len(req.Operands) != 1 {
			return netproto.InvalidCommand
		}
		val, ok, err := s.store.Get(req.Operands[0])
		if err != nil {
			s.log.Errorf("get %q: %v", req.Operands[0], err)
			return netproto.InvalidCommand
		}
		if !ok {
			return netproto.KeyNotFound
		}
		return val

	case "SET":
		if len(req.Operands) != 2 {
			return netproto.InvalidCommand
		}
		if err := s.store.Set(req.Operands[0], req.Operands[1]); err != nil {
			s.log.Errorf("set %q: %v", req.Operands[0], err)
			return netproto.InvalidCommand
		}
		return netproto.SetSuccessful

	case "RM":
		if len(req.Operands) != 1 {
			return netproto.InvalidCommand
		}
		if err := s.store.Remove(req.Operands[0]); err != nil {
			if isKeyNotFound(err) {
				return netproto.KeyNotFound
			}
			s.log.Errorf("rm %q: %v", req.Operands[0], err)
			return netproto.InvalidCommand
		}
		return netproto.RemoveSuccessful

	default:
		return netproto.InvalidCommand
	}
}
