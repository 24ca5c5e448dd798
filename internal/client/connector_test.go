// Festwire - Festival Box Office Client/Server Synchronization
// Copyright 2026 Festwire Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/festwire/festwire

package client

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/festwire/festwire/internal/protocol"
	"github.com/festwire/festwire/internal/server"
	"github.com/festwire/festwire/internal/service"
	"github.com/festwire/festwire/internal/store"
)

// startServer runs a real command transport on a loopback port and
// returns its address plus the backing store for assertions.
func startServer(t *testing.T) (string, *store.MemoryStore) {
	t.Helper()
	st := store.NewMemoryStore()
	srv := server.New("127.0.0.1:0", service.NewFestival(st, nil))

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = srv.Serve(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for srv.BoundAddr() == nil {
		if time.Now().After(deadline) {
			t.Fatal("server never bound its listener")
		}
		time.Sleep(5 * time.Millisecond)
	}
	return srv.BoundAddr().String(), st
}

func connect(t *testing.T, addr string) *Connector {
	t.Helper()
	c := NewConnector(addr)
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestConnectorCommandFlow(t *testing.T) {
	addr, st := startServer(t)
	ctx := context.Background()
	if err := store.Seed(ctx, st); err != nil {
		t.Fatalf("Seed: %v", err)
	}

	c := connect(t, addr)

	// Commands before authentication surface the refusal as a
	// ServerError, not a dead connection.
	_, err := c.Shows(ctx)
	var srvErr *ServerError
	if !errors.As(err, &srvErr) {
		t.Fatalf("Shows before login: %v, want *ServerError", err)
	}

	employee, err := c.Register(ctx, "ana", "hunter2")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if employee.Username != "ana" {
		t.Fatalf("employee = %+v", employee)
	}

	shows, err := c.Shows(ctx)
	if err != nil {
		t.Fatalf("Shows: %v", err)
	}
	if len(shows) == 0 {
		t.Fatal("seeded catalog came back empty")
	}

	target := shows[0]
	ticket, err := c.SellTicket(ctx, protocol.ShowRef{ID: target.ID, Name: target.Name}, "Maria", "2")
	if err != nil {
		t.Fatalf("SellTicket: %v", err)
	}
	if ticket.Client.Name != "Maria" || ticket.NumberOfSeats != 2 {
		t.Fatalf("ticket = %+v", ticket)
	}

	tickets, err := c.Tickets(ctx)
	if err != nil {
		t.Fatalf("Tickets: %v", err)
	}
	if len(tickets) != 1 {
		t.Fatalf("len(Tickets) = %d, want 1", len(tickets))
	}

	clients, err := c.Clients(ctx)
	if err != nil {
		t.Fatalf("Clients: %v", err)
	}
	if len(clients) != 1 || clients[0].Name != "Maria" {
		t.Fatalf("clients = %+v", clients)
	}

	// An oversell is refused but the session keeps working.
	_, err = c.SellTicket(ctx, protocol.ShowRef{ID: target.ID, Name: target.Name}, "Maria", "100000")
	if !errors.As(err, &srvErr) {
		t.Fatalf("oversell: %v, want *ServerError", err)
	}
	if _, err := c.Shows(ctx); err != nil {
		t.Fatalf("Shows after refused sale: %v", err)
	}
}

func TestConnectorSearchAndUpdate(t *testing.T) {
	addr, st := startServer(t)
	ctx := context.Background()
	if err := store.Seed(ctx, st); err != nil {
		t.Fatalf("Seed: %v", err)
	}
	c := connect(t, addr)
	if _, err := c.Register(ctx, "ana", "hunter2"); err != nil {
		t.Fatalf("Register: %v", err)
	}

	matches, err := c.ShowsByArtistAndTime(ctx, "voltas", "")
	if err != nil {
		t.Fatalf("ShowsByArtistAndTime: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("len(matches) = %d, want 1", len(matches))
	}

	updated := matches[0]
	updated.Location = "River Stage"
	if err := c.UpdateShow(ctx, updated); err != nil {
		t.Fatalf("UpdateShow: %v", err)
	}
	stored, err := st.ShowByID(ctx, updated.ID)
	if err != nil {
		t.Fatalf("ShowByID: %v", err)
	}
	if stored.Location != "River Stage" {
		t.Fatalf("Location = %q, want %q", stored.Location, "River Stage")
	}
}

func TestConnectorFailsDeadAfterTransportLoss(t *testing.T) {
	addr, _ := startServer(t)
	c := connect(t, addr)
	ctx := context.Background()
	if _, err := c.Register(ctx, "ana", "hunter2"); err != nil {
		t.Fatalf("Register: %v", err)
	}

	// Kill the transport out from under the connector.
	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := c.Shows(ctx); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("Shows after close: %v, want ErrNotConnected", err)
	}

	// Reconnecting starts a fresh, unauthenticated session.
	if err := c.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	_, err := c.Shows(ctx)
	var srvErr *ServerError
	if !errors.As(err, &srvErr) {
		t.Fatalf("Shows on fresh session: %v, want *ServerError", err)
	}
}

func TestConnectorConnectFailure(t *testing.T) {
	// Grab a port and close it so the dial target refuses.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()

	c := NewConnector(addr)
	if err := c.Connect(context.Background()); err == nil {
		t.Fatal("Connect to a closed port did not fail")
	}
	if _, err := c.Shows(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("Shows without connection: %v, want ErrNotConnected", err)
	}
}
