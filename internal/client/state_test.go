// Festwire - Festival Box Office Client/Server Synchronization
// Copyright 2026 Festwire Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/festwire/festwire

package client

import (
	"io"
	"testing"
	"time"

	"github.com/festwire/festwire/internal/logging"
	"github.com/festwire/festwire/internal/models"
	"github.com/festwire/festwire/internal/protocol"
)

//nolint:gochecknoinits // keep test output quiet
func init() {
	logging.Init(logging.Config{Level: "disabled", Output: io.Discard})
}

func TestStateShowUpsert(t *testing.T) {
	s := NewState()

	s.ApplyShowUpdated(models.Show{ID: 1, Name: "Electric Nights", AvailableSeats: 10})
	s.ApplyShowUpdated(models.Show{ID: 2, Name: "Acoustic Dawn", AvailableSeats: 4})
	if got := len(s.Shows()); got != 2 {
		t.Fatalf("len(Shows) = %d, want 2", got)
	}

	// Updating an existing show replaces it in place.
	s.ApplyShowUpdated(models.Show{ID: 1, Name: "Electric Nights", AvailableSeats: 8, SoldSeats: 2})
	shows := s.Shows()
	if len(shows) != 2 {
		t.Fatalf("len(Shows) after update = %d, want 2", len(shows))
	}
	for _, show := range shows {
		if show.ID == 1 && (show.AvailableSeats != 8 || show.SoldSeats != 2) {
			t.Fatalf("show 1 = %+v, want 8 available / 2 sold", show)
		}
	}
}

func TestStateTicketSoldIsIdempotent(t *testing.T) {
	s := NewState()
	ticket := models.Ticket{ID: 9, ShowID: 1, Client: models.Client{ID: 2, Name: "Maria"}, NumberOfSeats: 2, Price: 10}

	s.ApplyTicketSold(ticket)
	s.ApplyTicketSold(ticket) // replayed event
	if got := len(s.Tickets()); got != 1 {
		t.Fatalf("len(Tickets) after replay = %d, want 1", got)
	}
}

func TestStateReplaceAllReconcilesDroppedEvents(t *testing.T) {
	s := NewState()
	// The mirror saw one sale but missed another while disconnected.
	s.ApplyShowUpdated(models.Show{ID: 1, Name: "Electric Nights", AvailableSeats: 8, SoldSeats: 2})
	s.ApplyTicketSold(models.Ticket{ID: 1, ShowID: 1, NumberOfSeats: 2})

	serverShows := []models.Show{{ID: 1, Name: "Electric Nights", AvailableSeats: 5, SoldSeats: 5}}
	serverTickets := []models.Ticket{
		{ID: 1, ShowID: 1, NumberOfSeats: 2},
		{ID: 2, ShowID: 1, NumberOfSeats: 3},
	}
	s.ReplaceAll(serverShows, serverTickets, nil)

	if shows := s.Shows(); len(shows) != 1 || shows[0].AvailableSeats != 5 {
		t.Fatalf("Shows after pull = %+v, want the server catalog", shows)
	}
	if tickets := s.Tickets(); len(tickets) != 2 {
		t.Fatalf("len(Tickets) after pull = %d, want 2", len(tickets))
	}
}

func TestStateApplyRoutesEnvelopes(t *testing.T) {
	s := NewState()

	envs := []protocol.Envelope{
		protocol.MustEnvelope(protocol.TypeShowUpdated, models.Show{ID: 1, Name: "Electric Nights"}),
		protocol.MustEnvelope(protocol.TypeTicketSold, models.Ticket{ID: 1, ShowID: 1, NumberOfSeats: 1}),
		protocol.MustEnvelope(protocol.TypeClientAdded, models.Client{ID: 1, Name: "Maria"}),
		protocol.MustEnvelope(protocol.TypeConnected, protocol.ConnectedEvent{ListenerID: "abc"}),
		{Type: "telemetry_v9"}, // unknown events are skipped
	}
	for _, env := range envs {
		if err := s.Apply(env); err != nil {
			t.Fatalf("Apply(%s): %v", env.Type, err)
		}
	}

	if len(s.Shows()) != 1 || len(s.Tickets()) != 1 || len(s.Clients()) != 1 {
		t.Fatalf("mirror = %d/%d/%d, want 1/1/1", len(s.Shows()), len(s.Tickets()), len(s.Clients()))
	}

	// A malformed payload is an error and leaves the mirror alone.
	if err := s.Apply(protocol.Envelope{Type: protocol.TypeShowUpdated, Data: `[1,2]`}); err == nil {
		t.Fatal("Apply with malformed payload did not fail")
	}
	if len(s.Shows()) != 1 {
		t.Fatal("malformed event mutated the mirror")
	}
}

func TestStateChangedCoalesces(t *testing.T) {
	s := NewState()

	for i := 0; i < 5; i++ {
		s.ApplyShowUpdated(models.Show{ID: int64(i + 1)})
	}

	select {
	case <-s.Changed():
	case <-time.After(time.Second):
		t.Fatal("no change signal after mutations")
	}
	select {
	case <-s.Changed():
		t.Fatal("change signals did not coalesce")
	default:
	}

	// The channel signals again after the next mutation.
	s.ApplyClientAdded(models.Client{ID: 1, Name: "Maria"})
	select {
	case <-s.Changed():
	case <-time.After(time.Second):
		t.Fatal("no change signal after further mutation")
	}
}

func TestBackoffSchedule(t *testing.T) {
	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 0},
		{1, 2 * time.Second},
		{2, 5 * time.Second},
		{3, 10 * time.Second},
		{4, 15 * time.Second},
		{5, 15 * time.Second}, // holds at the ceiling
		{40, 15 * time.Second},
	}
	for _, tc := range cases {
		if got := Backoff(DefaultBackoff, tc.attempt); got != tc.want {
			t.Errorf("Backoff(attempt=%d) = %v, want %v", tc.attempt, got, tc.want)
		}
	}
	if got := Backoff(nil, 3); got != 0 {
		t.Errorf("Backoff with empty schedule = %v, want 0", got)
	}
}
