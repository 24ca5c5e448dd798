// Festwire - Festival Box Office Client/Server Synchronization
// Copyright 2026 Festwire Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/festwire/festwire

package client

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/festwire/festwire/internal/logging"
	"github.com/festwire/festwire/internal/protocol"
)

// DefaultBackoff is the reconnect delay schedule for the push channel.
// The first attempt after a drop is immediate; later attempts slow
// down and then hold at the final value.
var DefaultBackoff = []time.Duration{0, 2 * time.Second, 5 * time.Second, 10 * time.Second, 15 * time.Second}

// Backoff returns the delay before the given reconnect attempt,
// counted from zero. Attempts past the end of the schedule repeat its
// last entry.
func Backoff(schedule []time.Duration, attempt int) time.Duration {
	if len(schedule) == 0 {
		return 0
	}
	if attempt >= len(schedule) {
		return schedule[len(schedule)-1]
	}
	return schedule[attempt]
}

// PushListener keeps a websocket subscription to the push channel
// alive, applying every event to the state mirror. It implements
// suture.Service: Serve blocks, reconnecting with backoff, until ctx
// is canceled.
type PushListener struct {
	url      string
	state    *State
	backoff  []time.Duration
	dialer   *websocket.Dialer
	resynced func()

	mu         sync.Mutex
	listenerID string
}

// NewPushListener creates a listener for the push channel URL
// (ws://host:port/path). The resynced hook, if non-nil, runs after
// every successful attach; wiring it to the puller reconciles events
// missed while disconnected.
func NewPushListener(url string, state *State, resynced func()) *PushListener {
	return &PushListener{
		url:      url,
		state:    state,
		backoff:  DefaultBackoff,
		dialer:   &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		resynced: resynced,
	}
}

// String implements fmt.Stringer for supervisor logs.
func (p *PushListener) String() string { return "push-listener" }

// ListenerID returns the id the server assigned on the most recent
// attach, or "" before the first one.
func (p *PushListener) ListenerID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.listenerID
}

func (p *PushListener) setListenerID(id string) {
	p.mu.Lock()
	p.listenerID = id
	p.mu.Unlock()
}

// Serve dials, reads until the connection drops, and redials per the
// backoff schedule. A successful attach resets the schedule.
func (p *PushListener) Serve(ctx context.Context) error {
	attempt := 0
	for {
		delay := Backoff(p.backoff, attempt)
		if delay > 0 {
			logging.Info().Str("component", "push-listener").Dur("delay", delay).Int("attempt", attempt).Msg("waiting before reconnect")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		attached, err := p.listen(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logging.Warn().Err(err).Str("component", "push-listener").Msg("push channel lost")
		if attached {
			// A real session happened; the next dial starts the
			// schedule over from the immediate retry.
			attempt = 0
		} else {
			attempt++
		}
	}
}

// listen runs one attach: dial, greet, apply events until failure. The
// bool reports whether the attach got far enough to count as a session.
func (p *PushListener) listen(ctx context.Context) (bool, error) {
	conn, resp, err := p.dialer.DialContext(ctx, p.url, nil)
	if err != nil {
		if resp != nil {
			_ = resp.Body.Close()
		}
		return false, err
	}
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	// The server greets every new listener with a Connected event
	// carrying a fresh id. The id changes on every attach.
	var greeting protocol.Envelope
	if err := conn.ReadJSON(&greeting); err != nil {
		return false, err
	}
	if greeting.Type == protocol.TypeConnected {
		var event protocol.ConnectedEvent
		if err := greeting.Decode(&event); err == nil {
			p.setListenerID(event.ListenerID)
		}
	} else if err := p.state.Apply(greeting); err != nil {
		return false, err
	}
	logging.Info().Str("component", "push-listener").Str("listener_id", p.ListenerID()).Msg("push channel attached")

	// Events pushed while we were disconnected are gone; pull the
	// authoritative catalog to catch up.
	if p.resynced != nil {
		p.resynced()
	}

	for {
		var env protocol.Envelope
		if err := conn.ReadJSON(&env); err != nil {
			return true, err
		}
		if err := p.state.Apply(env); err != nil {
			logging.Warn().Err(err).Str("component", "push-listener").Str("event", string(env.Type)).Msg("dropping malformed push event")
		}
	}
}
