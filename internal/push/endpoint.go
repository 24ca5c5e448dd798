// Festwire - Festival Box Office Client/Server Synchronization
// Copyright 2026 Festwire Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/festwire/festwire

package push

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"github.com/festwire/festwire/internal/logging"
)

// Endpoint serves the websocket attach point for the push channel. It
// implements suture.Service and owns the HTTP listener; the hub itself
// runs as a sibling service.
type Endpoint struct {
	addr string
	path string
	hub  *Hub

	mu    sync.Mutex
	bound net.Addr
}

// NewEndpoint creates the push endpoint on addr serving upgrades at path.
func NewEndpoint(addr, path string, hub *Hub) *Endpoint {
	return &Endpoint{addr: addr, path: path, hub: hub}
}

// String implements fmt.Stringer for supervisor logs.
func (e *Endpoint) String() string { return "push-endpoint" }

// BoundAddr returns the listener's resolved address, or nil before
// Serve has bound it.
func (e *Endpoint) BoundAddr() net.Addr {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.bound
}

// Serve runs the HTTP listener until ctx is canceled.
func (e *Endpoint) Serve(ctx context.Context) error {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get(e.path, e.handleAttach)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", e.addr)
	if err != nil {
		return err
	}
	e.mu.Lock()
	e.bound = ln.Addr()
	e.mu.Unlock()

	srv := &http.Server{
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	logging.Info().Str("component", "push-endpoint").Str("addr", ln.Addr().String()).Str("path", e.path).Msg("listening")

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		<-errCh
		logging.Info().Str("component", "push-endpoint").Msg("push endpoint stopped")
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// upgrader accepts any origin: terminals are native clients, not
// browsers, and send no Origin header worth checking.
var upgrader = websocket.Upgrader{
	ReadBufferSize:   1024,
	WriteBufferSize:  1024,
	HandshakeTimeout: 10 * time.Second,
	CheckOrigin:      func(*http.Request) bool { return true },
}

func (e *Endpoint) handleAttach(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Error().Err(err).Str("component", "push-endpoint").Msg("websocket upgrade failed")
		return
	}
	l := NewListener(e.hub, conn)
	e.hub.Register <- l
	l.Start()
}
