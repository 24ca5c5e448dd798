// Festwire - Festival Box Office Client/Server Synchronization
// Copyright 2026 Festwire Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/festwire/festwire

// Package push fans domain change events out to connected box-office
// terminals over websocket. Delivery is best effort: a listener that
// cannot keep up is dropped and is expected to reconnect and resync.
package push

import (
	"context"
	"sort"
	"sync"

	"github.com/festwire/festwire/internal/logging"
	"github.com/festwire/festwire/internal/models"
	"github.com/festwire/festwire/internal/protocol"
)

// Hub maintains the set of attached listeners and broadcasts event
// envelopes to all of them. It implements service.Notifier, so the
// domain service announces changes without knowing about websockets.
type Hub struct {
	listeners  map[*Listener]bool
	broadcast  chan protocol.Envelope
	Register   chan *Listener
	Unregister chan *Listener
	mu         sync.RWMutex
}

// NewHub creates a hub with an empty listener set.
func NewHub() *Hub {
	return &Hub{
		listeners:  make(map[*Listener]bool),
		broadcast:  make(chan protocol.Envelope, 256),
		Register:   make(chan *Listener),
		Unregister: make(chan *Listener),
	}
}

// Serve runs the hub loop until ctx is canceled. Listener lifecycle
// events take priority over broadcasts so the listener set is always
// settled before a message fans out.
func (h *Hub) Serve(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			h.shutdown(ctx)
			return ctx.Err()
		default:
		}

		select {
		case l := <-h.Register:
			h.attach(l)
			continue
		case l := <-h.Unregister:
			h.detach(l)
			continue
		default:
		}

		select {
		case <-ctx.Done():
			h.shutdown(ctx)
			return ctx.Err()
		case l := <-h.Register:
			h.attach(l)
		case l := <-h.Unregister:
			h.detach(l)
		case env := <-h.broadcast:
			h.fanOut(env)
		}
	}
}

// String implements fmt.Stringer for supervisor logs.
func (h *Hub) String() string { return "push-hub" }

// attach adds a listener and greets it with a Connected event carrying
// its assigned id. The greeting goes to the new listener only.
func (h *Hub) attach(l *Listener) {
	h.mu.Lock()
	h.listeners[l] = true
	total := len(h.listeners)
	h.mu.Unlock()

	greeting := protocol.MustEnvelope(protocol.TypeConnected, protocol.ConnectedEvent{ListenerID: l.id})
	select {
	case l.send <- greeting:
	default:
		// A fresh listener with a full queue is already dead.
		h.detach(l)
		return
	}
	logging.Info().Str("component", "push-hub").Str("listener_id", l.id).Int("total_listeners", total).Msg("listener attached")
}

func (h *Hub) detach(l *Listener) {
	h.mu.Lock()
	if _, ok := h.listeners[l]; ok {
		delete(h.listeners, l)
		close(l.send)
	}
	total := len(h.listeners)
	h.mu.Unlock()
	logging.Info().Str("component", "push-hub").Str("listener_id", l.id).Int("total_listeners", total).Msg("listener detached")
}

// fanOut delivers one envelope to every listener in a stable order.
// Listeners whose queues are full are removed rather than blocked on.
func (h *Hub) fanOut(env protocol.Envelope) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ordered := make([]*Listener, 0, len(h.listeners))
	for l := range h.listeners {
		ordered = append(ordered, l)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].seq < ordered[j].seq })

	var stalled []*Listener
	for _, l := range ordered {
		select {
		case l.send <- env:
		default:
			stalled = append(stalled, l)
		}
	}
	for _, l := range stalled {
		close(l.send)
		delete(h.listeners, l)
		logging.Warn().Str("component", "push-hub").Str("listener_id", l.id).Str("event", string(env.Type)).Msg("listener queue full, dropping listener")
	}
}

func (h *Hub) shutdown(ctx context.Context) {
	h.mu.Lock()
	count := len(h.listeners)
	for l := range h.listeners {
		close(l.send)
		delete(h.listeners, l)
	}
	h.mu.Unlock()

	reason := "context_canceled"
	if ctx.Err() == context.DeadlineExceeded {
		reason = "context_deadline"
	}
	logging.Info().Str("component", "push-hub").Str("reason", reason).Int("listeners_closed", count).Msg("push hub stopped")
}

// ListenerCount returns the number of attached listeners.
func (h *Hub) ListenerCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.listeners)
}

// publish queues an event for fan-out; a full queue drops the event
// with a warning instead of blocking the caller.
func (h *Hub) publish(t protocol.MessageType, payload interface{}) {
	env, err := protocol.NewEnvelope(t, payload)
	if err != nil {
		logging.Error().Err(err).Str("component", "push-hub").Str("event", string(t)).Msg("event marshal failed")
		return
	}
	select {
	case h.broadcast <- env:
	default:
		logging.Warn().Str("component", "push-hub").Str("event", string(t)).Msg("broadcast queue full, dropping event")
	}
}

// ShowUpdated implements service.Notifier.
func (h *Hub) ShowUpdated(show models.Show) {
	h.publish(protocol.TypeShowUpdated, show)
}

// TicketSold implements service.Notifier.
func (h *Hub) TicketSold(ticket models.Ticket) {
	h.publish(protocol.TypeTicketSold, ticket)
}

// ClientAdded implements service.Notifier.
func (h *Hub) ClientAdded(client models.Client) {
	h.publish(protocol.TypeClientAdded, client)
}
