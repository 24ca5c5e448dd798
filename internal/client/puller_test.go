// Festwire - Festival Box Office Client/Server Synchronization
// Copyright 2026 Festwire Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/festwire/festwire

package client

import (
	"context"
	"testing"
	"time"

	"github.com/festwire/festwire/internal/models"
	"github.com/festwire/festwire/internal/store"
)

func TestPullerRefreshesMirror(t *testing.T) {
	addr, st := startServer(t)
	ctx := context.Background()
	if err := store.Seed(ctx, st); err != nil {
		t.Fatalf("Seed: %v", err)
	}
	c := connect(t, addr)
	if _, err := c.Register(ctx, "ana", "hunter2"); err != nil {
		t.Fatalf("Register: %v", err)
	}

	state := NewState()
	puller := NewPuller(c, state, time.Hour) // ticks never fire in this test

	if err := puller.Refresh(ctx); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if len(state.Shows()) == 0 {
		t.Fatal("mirror has no shows after refresh")
	}

	// Server-side changes the mirror never heard about arrive on the
	// next refresh.
	show := models.Show{Name: "Late Addition", Artist: "The Encores", Date: time.Now().Add(24 * time.Hour), Location: "Tent", AvailableSeats: 40}
	if err := st.SaveShow(ctx, &show); err != nil {
		t.Fatalf("SaveShow: %v", err)
	}
	before := len(state.Shows())
	if err := puller.Refresh(ctx); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if len(state.Shows()) != before+1 {
		t.Fatalf("len(Shows) = %d, want %d", len(state.Shows()), before+1)
	}
}

func TestPullerServeHonorsTrigger(t *testing.T) {
	addr, st := startServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := store.Seed(ctx, st); err != nil {
		t.Fatalf("Seed: %v", err)
	}
	c := connect(t, addr)
	if _, err := c.Register(ctx, "ana", "hunter2"); err != nil {
		t.Fatalf("Register: %v", err)
	}

	state := NewState()
	puller := NewPuller(c, state, time.Hour)
	done := make(chan error, 1)
	go func() { done <- puller.Serve(ctx) }()

	puller.TriggerRefresh()
	waitFor(t, "triggered refresh", func() bool { return len(state.Shows()) > 0 })

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
