// Festwire - Festival Box Office Client/Server Synchronization
// Copyright 2026 Festwire Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/festwire/festwire

// Package server implements the command transport: a TCP listener that
// runs one independent session loop per accepted connection. Each loop
// reads one envelope, dispatches it against the domain service, writes
// exactly one response envelope, and repeats until the peer goes away.
package server

import (
	"context"
	"errors"
	"net"
	"sync"

	"github.com/festwire/festwire/internal/logging"
	"github.com/festwire/festwire/internal/service"
)

// Server accepts command transport connections. It implements
// suture.Service; Serve blocks until the context is canceled.
type Server struct {
	addr     string
	festival *service.Festival

	mu       sync.Mutex
	bound    net.Addr
	sessions map[*session]struct{}
}

// New creates a command transport server bound to addr (host:port).
func New(addr string, festival *service.Festival) *Server {
	return &Server{
		addr:     addr,
		festival: festival,
		sessions: make(map[*session]struct{}),
	}
}

// Serve listens and accepts until ctx is canceled. Sessions share no
// state with each other beyond the domain service they dispatch into.
func (s *Server) Serve(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.addr)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.bound = ln.Addr()
	s.mu.Unlock()

	// Canceling the context unblocks Accept and tears down every
	// session's connection.
	stop := context.AfterFunc(ctx, func() {
		_ = ln.Close()
		s.closeSessions()
	})
	defer stop()

	logging.Info().Str("component", "command-server").Str("addr", ln.Addr().String()).Msg("listening")

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				logging.Info().Str("component", "command-server").Msg("command server stopped")
				return ctx.Err()
			}
			return err
		}

		sess := newSession(conn, s.festival)
		s.track(sess)
		go func() {
			sess.run(ctx)
			s.untrack(sess)
		}()
	}
}

// String implements fmt.Stringer for supervisor logs.
func (s *Server) String() string { return "command-server" }

// Addr returns the bind address the server was created with.
func (s *Server) Addr() string { return s.addr }

// BoundAddr returns the listener's resolved address, or nil before
// Serve has bound it. Binding to port 0 makes this the only way to
// learn the real port.
func (s *Server) BoundAddr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bound
}

func (s *Server) track(sess *session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess] = struct{}{}
}

func (s *Server) untrack(sess *session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sess)
}

func (s *Server) closeSessions() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for sess := range s.sessions {
		_ = sess.conn.Close()
	}
}

// isClosedConnError reports errors produced by reading a connection the
// shutdown path closed underneath us.
func isClosedConnError(err error) bool {
	return errors.Is(err, net.ErrClosed)
}
