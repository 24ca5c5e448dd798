// Festwire - Festival Box Office Client/Server Synchronization
// Copyright 2026 Festwire Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/festwire/festwire

package push

import (
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/festwire/festwire/internal/logging"
	"github.com/festwire/festwire/internal/protocol"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

// listenerSeq orders listeners for deterministic fan-out.
var listenerSeq atomic.Uint64

// Listener is the hub-side handle for one attached terminal. The id is
// assigned here and announced to the peer in the Connected greeting.
type Listener struct {
	id   string
	seq  uint64
	hub  *Hub
	conn *websocket.Conn
	send chan protocol.Envelope
}

// NewListener wraps an upgraded websocket connection.
func NewListener(hub *Hub, conn *websocket.Conn) *Listener {
	return &Listener{
		id:   uuid.NewString(),
		seq:  listenerSeq.Add(1),
		hub:  hub,
		conn: conn,
		send: make(chan protocol.Envelope, 256),
	}
}

// ID returns the listener id announced to the peer.
func (l *Listener) ID() string { return l.id }

// Start begins the read and write pumps.
func (l *Listener) Start() {
	go l.writePump()
	go l.readPump()
}

// readPump exists to observe the connection: terminals never send
// application data, so any read result other than a pong means the
// peer is gone.
func (l *Listener) readPump() {
	defer func() {
		l.hub.Unregister <- l
		_ = l.conn.Close()
	}()

	l.conn.SetReadLimit(maxMessageSize)
	if err := l.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		logging.Error().Err(err).Str("component", "push-hub").Msg("failed to set read deadline")
		return
	}
	l.conn.SetPongHandler(func(string) error {
		return l.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := l.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				logging.Debug().Err(err).Str("component", "push-hub").Str("listener_id", l.id).Msg("listener read ended")
			}
			return
		}
	}
}

// writePump drains the send queue onto the connection and keeps the
// peer alive with pings.
func (l *Listener) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = l.conn.Close()
	}()

	for {
		select {
		case env, ok := <-l.send:
			if err := l.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				logging.Error().Err(err).Str("component", "push-hub").Msg("failed to set write deadline")
				return
			}
			if !ok {
				// The hub closed this listener.
				_ = l.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := l.conn.WriteJSON(env); err != nil {
				logging.Debug().Err(err).Str("component", "push-hub").Str("listener_id", l.id).Msg("listener write failed")
				return
			}
		case <-ticker.C:
			if err := l.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := l.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
