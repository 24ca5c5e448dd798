// Festwire - Festival Box Office Client/Server Synchronization
// Copyright 2026 Festwire Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/festwire/festwire

package push

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/festwire/festwire/internal/logging"
	"github.com/festwire/festwire/internal/models"
	"github.com/festwire/festwire/internal/protocol"
)

//nolint:gochecknoinits // keep test output quiet
func init() {
	logging.Init(logging.Config{Level: "disabled", Output: io.Discard})
}

// startHub runs a hub loop plus an attach endpoint and returns a dial
// helper speaking the listener side of the push channel.
func startHub(t *testing.T) (*Hub, func() *websocket.Conn) {
	t.Helper()
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = hub.Serve(ctx) }()

	endpoint := NewEndpoint("", "/festival", hub)
	srv := httptest.NewServer(http.HandlerFunc(endpoint.handleAttach))
	t.Cleanup(srv.Close)
	wsURL := "ws://" + strings.TrimPrefix(srv.URL, "http://")

	dial := func() *websocket.Conn {
		t.Helper()
		conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
		if err != nil {
			t.Fatalf("Dial: %v", err)
		}
		t.Cleanup(func() { _ = conn.Close() })
		return conn
	}
	return hub, dial
}

func readEnvelope(t *testing.T, conn *websocket.Conn) protocol.Envelope {
	t.Helper()
	if err := conn.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
		t.Fatalf("SetReadDeadline: %v", err)
	}
	var env protocol.Envelope
	if err := conn.ReadJSON(&env); err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	return env
}

func TestHubGreetsNewListener(t *testing.T) {
	_, dial := startHub(t)
	conn := dial()

	env := readEnvelope(t, conn)
	if env.Type != protocol.TypeConnected {
		t.Fatalf("first envelope = %s, want %s", env.Type, protocol.TypeConnected)
	}
	var event protocol.ConnectedEvent
	if err := env.Decode(&event); err != nil {
		t.Fatalf("decode connected event: %v", err)
	}
	if event.ListenerID == "" {
		t.Fatal("connected event carries no listener id")
	}

	// A second listener gets its own greeting, not a copy of ours.
	conn2 := dial()
	env2 := readEnvelope(t, conn2)
	var event2 protocol.ConnectedEvent
	if err := env2.Decode(&event2); err != nil {
		t.Fatalf("decode second connected event: %v", err)
	}
	if event2.ListenerID == event.ListenerID {
		t.Fatal("listener ids are not unique")
	}
}

func TestHubFansOutToAllListeners(t *testing.T) {
	hub, dial := startHub(t)
	connA := dial()
	connB := dial()
	readEnvelope(t, connA) // greetings
	readEnvelope(t, connB)

	show := models.Show{ID: 7, Name: "Electric Nights", Artist: "The Voltas", AvailableSeats: 5, SoldSeats: 5}
	hub.ShowUpdated(show)

	for _, conn := range []*websocket.Conn{connA, connB} {
		env := readEnvelope(t, conn)
		if env.Type != protocol.TypeShowUpdated {
			t.Fatalf("envelope = %s, want %s", env.Type, protocol.TypeShowUpdated)
		}
		var got models.Show
		if err := env.Decode(&got); err != nil {
			t.Fatalf("decode show: %v", err)
		}
		if got.ID != show.ID || got.AvailableSeats != 5 {
			t.Fatalf("fanned-out show = %+v", got)
		}
	}
}

func TestHubEventOrderPerListener(t *testing.T) {
	hub, dial := startHub(t)
	conn := dial()
	readEnvelope(t, conn)

	ticket := models.Ticket{ID: 1, ShowID: 7, ShowName: "Electric Nights", Client: models.Client{ID: 3, Name: "Maria"}, NumberOfSeats: 2, Price: 10}
	hub.TicketSold(ticket)
	hub.ShowUpdated(models.Show{ID: 7, Name: "Electric Nights"})
	hub.ClientAdded(models.Client{ID: 4, Name: "Ion"})

	want := []protocol.MessageType{protocol.TypeTicketSold, protocol.TypeShowUpdated, protocol.TypeClientAdded}
	for _, wt := range want {
		env := readEnvelope(t, conn)
		if env.Type != wt {
			t.Fatalf("envelope = %s, want %s", env.Type, wt)
		}
	}
}

func TestHubDetachesClosedListener(t *testing.T) {
	hub, dial := startHub(t)
	conn := dial()
	readEnvelope(t, conn)

	if got := hub.ListenerCount(); got != 1 {
		t.Fatalf("ListenerCount = %d, want 1", got)
	}
	_ = conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.ListenerCount() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("closed listener never detached")
		}
		time.Sleep(5 * time.Millisecond)
	}

	// Broadcasting to an empty hub is a no-op, not a fault.
	hub.ShowUpdated(models.Show{ID: 1})
}

func TestEndpointHealthz(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = hub.Serve(ctx) }()

	endpoint := NewEndpoint("127.0.0.1:0", "/festival", hub)
	errCh := make(chan error, 1)
	go func() { errCh <- endpoint.Serve(ctx) }()

	var addr string
	deadline := time.Now().Add(2 * time.Second)
	for {
		if bound := endpoint.BoundAddr(); bound != nil {
			addr = bound.String()
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("endpoint never bound its listener")
		}
		time.Sleep(5 * time.Millisecond)
	}

	resp, err := http.Get("http://" + addr + "/healthz")
	if err != nil {
		t.Fatalf("Get /healthz: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz status = %d, want 200", resp.StatusCode)
	}

	cancel()
	if err := <-errCh; err != context.Canceled {
		t.Fatalf("Serve returned %v, want context.Canceled", err)
	}
}
