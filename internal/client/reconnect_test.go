// Festwire - Festival Box Office Client/Server Synchronization
// Copyright 2026 Festwire Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/festwire/festwire

package client

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/festwire/festwire/internal/models"
	"github.com/festwire/festwire/internal/push"
)

// startPush runs a real push hub plus endpoint and returns the
// websocket URL terminals attach to.
func startPush(t *testing.T) (*push.Hub, string) {
	t.Helper()
	hub := push.NewHub()
	endpoint := push.NewEndpoint("127.0.0.1:0", "/festival", hub)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = hub.Serve(ctx) }()
	go func() { _ = endpoint.Serve(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for endpoint.BoundAddr() == nil {
		if time.Now().After(deadline) {
			t.Fatal("push endpoint never bound its listener")
		}
		time.Sleep(5 * time.Millisecond)
	}
	return hub, "ws://" + endpoint.BoundAddr().String() + "/festival"
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestPushListenerMirrorsEvents(t *testing.T) {
	hub, url := startPush(t)
	state := NewState()
	var resyncs atomic.Int32
	listener := NewPushListener(url, state, func() { resyncs.Add(1) })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- listener.Serve(ctx) }()

	// Attaching fires the resync hook once and registers with the hub.
	waitFor(t, "listener attach", func() bool { return hub.ListenerCount() == 1 })
	waitFor(t, "resync hook", func() bool { return resyncs.Load() == 1 })

	hub.ShowUpdated(models.Show{ID: 3, Name: "Midnight Brass", AvailableSeats: 12})
	hub.TicketSold(models.Ticket{ID: 5, ShowID: 3, NumberOfSeats: 2})
	hub.ClientAdded(models.Client{ID: 8, Name: "Ion"})

	waitFor(t, "mirrored events", func() bool {
		return len(state.Shows()) == 1 && len(state.Tickets()) == 1 && len(state.Clients()) == 1
	})

	cancel()
	select {
	case err := <-done:
		if err != context.Canceled {
			t.Fatalf("Serve returned %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

func TestPushListenerSurvivesDialFailure(t *testing.T) {
	state := NewState()
	// Nothing listens here; every dial fails and the loop must keep
	// retrying rather than exit.
	listener := NewPushListener("ws://127.0.0.1:1/festival", state, nil)
	listener.backoff = []time.Duration{0, time.Millisecond}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	err := listener.Serve(ctx)
	if err != context.DeadlineExceeded {
		t.Fatalf("Serve returned %v, want context.DeadlineExceeded", err)
	}
}

func TestPushListenerReattachTriggersResync(t *testing.T) {
	// The hub and endpoint get separate lifetimes so the hub can be
	// bounced while the endpoint keeps accepting upgrades.
	hub := push.NewHub()
	endpoint := push.NewEndpoint("127.0.0.1:0", "/festival", hub)
	endpointCtx, stopEndpoint := context.WithCancel(context.Background())
	t.Cleanup(stopEndpoint)
	go func() { _ = endpoint.Serve(endpointCtx) }()
	waitFor(t, "endpoint bind", func() bool { return endpoint.BoundAddr() != nil })
	url := "ws://" + endpoint.BoundAddr().String() + "/festival"

	hubCtx, stopHub := context.WithCancel(context.Background())
	hubDone := make(chan struct{})
	go func() { _ = hub.Serve(hubCtx); close(hubDone) }()

	state := NewState()
	var resyncs atomic.Int32
	listener := NewPushListener(url, state, func() { resyncs.Add(1) })
	listener.backoff = []time.Duration{0, 10 * time.Millisecond}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = listener.Serve(ctx) }()

	waitFor(t, "first attach", func() bool { return resyncs.Load() == 1 })
	firstID := listener.ListenerID()
	if firstID == "" {
		t.Fatal("attach did not record a listener id")
	}

	// Bounce the hub. Stopping it closes the attached websocket, which
	// the terminal sees as a dropped push channel.
	stopHub()
	<-hubDone
	hubCtx2, stopHub2 := context.WithCancel(context.Background())
	t.Cleanup(stopHub2)
	go func() { _ = hub.Serve(hubCtx2) }()

	// The listener reconnects on its own and resyncs the catalog again.
	waitFor(t, "reattach resync", func() bool { return resyncs.Load() >= 2 })
	waitFor(t, "reattach", func() bool { return hub.ListenerCount() == 1 })
	waitFor(t, "fresh listener id", func() bool {
		id := listener.ListenerID()
		return id != "" && id != firstID
	})
}

func TestPushListenerRedialsImmediatelyAfterSession(t *testing.T) {
	hub := push.NewHub()
	endpoint := push.NewEndpoint("127.0.0.1:0", "/festival", hub)
	endpointCtx, stopEndpoint := context.WithCancel(context.Background())
	t.Cleanup(stopEndpoint)
	go func() { _ = endpoint.Serve(endpointCtx) }()
	waitFor(t, "endpoint bind", func() bool { return endpoint.BoundAddr() != nil })
	url := "ws://" + endpoint.BoundAddr().String() + "/festival"

	hubCtx, stopHub := context.WithCancel(context.Background())
	hubDone := make(chan struct{})
	go func() { _ = hub.Serve(hubCtx); close(hubDone) }()

	state := NewState()
	var resyncs atomic.Int32
	listener := NewPushListener(url, state, func() { resyncs.Add(1) })
	// The hour-long second step means only the schedule's immediate
	// first entry can reattach within the poll window below.
	listener.backoff = []time.Duration{0, time.Hour}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = listener.Serve(ctx) }()

	waitFor(t, "first attach", func() bool { return resyncs.Load() == 1 })

	// Drop the session by bouncing the hub. The redial after a real
	// session must come at once, not after the schedule's second step.
	stopHub()
	<-hubDone
	hubCtx2, stopHub2 := context.WithCancel(context.Background())
	t.Cleanup(stopHub2)
	go func() { _ = hub.Serve(hubCtx2) }()

	waitFor(t, "immediate reattach", func() bool { return resyncs.Load() >= 2 })
}
