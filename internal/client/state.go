// Festwire - Festival Box Office Client/Server Synchronization
// Copyright 2026 Festwire Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/festwire/festwire

package client

import (
	"sync"

	"github.com/festwire/festwire/internal/logging"
	"github.com/festwire/festwire/internal/models"
	"github.com/festwire/festwire/internal/protocol"
)

// State is the terminal's local mirror of the server's catalog. Push
// events patch it optimistically; periodic pulls replace it wholesale.
// Both paths converge on the server's data, so applying the same event
// twice, or applying an event the next pull also reflects, is harmless.
type State struct {
	mu      sync.RWMutex
	shows   []models.Show
	tickets []models.Ticket
	clients []models.Client

	// changed coalesces notifications: one pending signal regardless
	// of how many mutations piled up behind it.
	changed chan struct{}
}

// NewState creates an empty mirror.
func NewState() *State {
	return &State{changed: make(chan struct{}, 1)}
}

// Changed returns a channel that receives a signal after the mirror
// has been mutated. Signals coalesce; a receive means "re-read the
// mirror", not "exactly one change happened".
func (s *State) Changed() <-chan struct{} {
	return s.changed
}

func (s *State) notify() {
	select {
	case s.changed <- struct{}{}:
	default:
	}
}

// Shows returns a copy of the mirrored show catalog.
func (s *State) Shows() []models.Show {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Show, len(s.shows))
	copy(out, s.shows)
	return out
}

// Tickets returns a copy of the mirrored ticket list.
func (s *State) Tickets() []models.Ticket {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Ticket, len(s.tickets))
	copy(out, s.tickets)
	return out
}

// Clients returns a copy of the mirrored client list.
func (s *State) Clients() []models.Client {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Client, len(s.clients))
	copy(out, s.clients)
	return out
}

// ApplyShowUpdated upserts a show by id.
func (s *State) ApplyShowUpdated(show models.Show) {
	s.mu.Lock()
	replaced := false
	for i := range s.shows {
		if s.shows[i].ID == show.ID {
			s.shows[i] = show
			replaced = true
			break
		}
	}
	if !replaced {
		s.shows = append(s.shows, show)
	}
	s.mu.Unlock()
	s.notify()
}

// ApplyTicketSold records a ticket unless it is already present, so a
// replayed event cannot double-count a sale.
func (s *State) ApplyTicketSold(ticket models.Ticket) {
	s.mu.Lock()
	for i := range s.tickets {
		if s.tickets[i].ID == ticket.ID {
			s.mu.Unlock()
			return
		}
	}
	s.tickets = append(s.tickets, ticket)
	s.mu.Unlock()
	s.notify()
}

// ApplyClientAdded upserts a client by id.
func (s *State) ApplyClientAdded(client models.Client) {
	s.mu.Lock()
	replaced := false
	for i := range s.clients {
		if s.clients[i].ID == client.ID {
			s.clients[i] = client
			replaced = true
			break
		}
	}
	if !replaced {
		s.clients = append(s.clients, client)
	}
	s.mu.Unlock()
	s.notify()
}

// ReplaceAll swaps the whole mirror for authoritative server data.
func (s *State) ReplaceAll(shows []models.Show, tickets []models.Ticket, clients []models.Client) {
	s.mu.Lock()
	s.shows = append([]models.Show(nil), shows...)
	s.tickets = append([]models.Ticket(nil), tickets...)
	s.clients = append([]models.Client(nil), clients...)
	s.mu.Unlock()
	s.notify()
}

// Apply routes one push envelope into the mirror. Connected events
// carry session bookkeeping, not catalog data, and are ignored here.
func (s *State) Apply(env protocol.Envelope) error {
	switch env.Type {
	case protocol.TypeShowUpdated:
		var show models.Show
		if err := env.Decode(&show); err != nil {
			return err
		}
		s.ApplyShowUpdated(show)
	case protocol.TypeTicketSold:
		var ticket models.Ticket
		if err := env.Decode(&ticket); err != nil {
			return err
		}
		s.ApplyTicketSold(ticket)
	case protocol.TypeClientAdded:
		var client models.Client
		if err := env.Decode(&client); err != nil {
			return err
		}
		s.ApplyClientAdded(client)
	case protocol.TypeConnected, protocol.TypeDisconnected:
		// Session bookkeeping, nothing to mirror.
	default:
		// Unknown events are skipped so an older terminal keeps
		// working against a newer server.
		logging.Debug().Str("component", "state").Str("event", string(env.Type)).Msg("ignoring unknown push event")
	}
	return nil
}
