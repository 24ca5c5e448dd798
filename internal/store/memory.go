// Festwire - Festival Box Office Client/Server Synchronization
// Copyright 2026 Festwire Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/festwire/festwire

package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/festwire/festwire/internal/models"
)

// MemoryStore implements Store with in-process maps. It backs tests and
// any deployment that does not need persistence.
type MemoryStore struct {
	mu sync.RWMutex

	shows     map[int64]models.Show
	tickets   map[int64]models.Ticket
	clients   map[int64]models.Client
	employees map[int64]models.Employee

	clientNames   map[string]int64
	employeeNames map[string]int64

	nextShowID     int64
	nextTicketID   int64
	nextClientID   int64
	nextEmployeeID int64
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		shows:         make(map[int64]models.Show),
		tickets:       make(map[int64]models.Ticket),
		clients:       make(map[int64]models.Client),
		employees:     make(map[int64]models.Employee),
		clientNames:   make(map[string]int64),
		employeeNames: make(map[string]int64),
	}
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error { return nil }

func sortedIDs[M ~map[int64]V, V any](m M) []int64 {
	ids := make([]int64, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// ShowByID returns the show with the given id.
func (s *MemoryStore) ShowByID(_ context.Context, id int64) (models.Show, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	show, ok := s.shows[id]
	if !ok {
		return models.Show{}, ErrNotFound
	}
	return show, nil
}

// Shows returns all shows in id order.
func (s *MemoryStore) Shows(_ context.Context) ([]models.Show, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	shows := make([]models.Show, 0, len(s.shows))
	for _, id := range sortedIDs(s.shows) {
		shows = append(shows, s.shows[id])
	}
	return shows, nil
}

// SaveShow assigns a fresh id and stores the show.
func (s *MemoryStore) SaveShow(_ context.Context, show *models.Show) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextShowID++
	show.ID = s.nextShowID
	s.shows[show.ID] = *show
	return nil
}

// UpdateShow replaces an existing show record.
func (s *MemoryStore) UpdateShow(_ context.Context, show models.Show) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.shows[show.ID]; !ok {
		return ErrNotFound
	}
	s.shows[show.ID] = show
	return nil
}

// DeleteShow removes a show record.
func (s *MemoryStore) DeleteShow(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.shows, id)
	return nil
}

// ShowsByArtistAndTime returns shows matching the search terms.
func (s *MemoryStore) ShowsByArtistAndTime(ctx context.Context, artist, timeOfDay string) ([]models.Show, error) {
	all, err := s.Shows(ctx)
	if err != nil {
		return nil, err
	}
	matched := []models.Show{}
	for _, show := range all {
		if matchShow(show, artist, timeOfDay) {
			matched = append(matched, show)
		}
	}
	return matched, nil
}

// TicketByID returns the ticket with the given id.
func (s *MemoryStore) TicketByID(_ context.Context, id int64) (models.Ticket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ticket, ok := s.tickets[id]
	if !ok {
		return models.Ticket{}, ErrNotFound
	}
	return ticket, nil
}

// Tickets returns all tickets in id order.
func (s *MemoryStore) Tickets(_ context.Context) ([]models.Ticket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tickets := make([]models.Ticket, 0, len(s.tickets))
	for _, id := range sortedIDs(s.tickets) {
		tickets = append(tickets, s.tickets[id])
	}
	return tickets, nil
}

// SaveTicket assigns a fresh id and stores the ticket.
func (s *MemoryStore) SaveTicket(_ context.Context, ticket *models.Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextTicketID++
	ticket.ID = s.nextTicketID
	s.tickets[ticket.ID] = *ticket
	return nil
}

// DeleteTicket removes a ticket record.
func (s *MemoryStore) DeleteTicket(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tickets, id)
	return nil
}

// ClientByID returns the client with the given id.
func (s *MemoryStore) ClientByID(_ context.Context, id int64) (models.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	client, ok := s.clients[id]
	if !ok {
		return models.Client{}, ErrNotFound
	}
	return client, nil
}

// Clients returns all clients in id order.
func (s *MemoryStore) Clients(_ context.Context) ([]models.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	clients := make([]models.Client, 0, len(s.clients))
	for _, id := range sortedIDs(s.clients) {
		clients = append(clients, s.clients[id])
	}
	return clients, nil
}

// SaveClient assigns a fresh id and stores the client; an existing name
// is ErrDuplicate.
func (s *MemoryStore) SaveClient(_ context.Context, client *models.Client) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	nameKey := strings.ToLower(client.Name)
	if _, ok := s.clientNames[nameKey]; ok {
		return fmt.Errorf("%w: client name %q", ErrDuplicate, client.Name)
	}
	s.nextClientID++
	client.ID = s.nextClientID
	s.clients[client.ID] = *client
	s.clientNames[nameKey] = client.ID
	return nil
}

// UpdateClient replaces an existing client record.
func (s *MemoryStore) UpdateClient(_ context.Context, client models.Client) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.clients[client.ID]
	if !ok {
		return ErrNotFound
	}
	if old.Name != client.Name {
		delete(s.clientNames, strings.ToLower(old.Name))
		s.clientNames[strings.ToLower(client.Name)] = client.ID
	}
	s.clients[client.ID] = client
	return nil
}

// DeleteClient removes a client record.
func (s *MemoryStore) DeleteClient(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if client, ok := s.clients[id]; ok {
		delete(s.clientNames, strings.ToLower(client.Name))
		delete(s.clients, id)
	}
	return nil
}

// ClientByName resolves a client by its unique name.
func (s *MemoryStore) ClientByName(_ context.Context, name string) (models.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.clientNames[strings.ToLower(name)]
	if !ok {
		return models.Client{}, ErrNotFound
	}
	return s.clients[id], nil
}

// EmployeeByUsername resolves an employee by username.
func (s *MemoryStore) EmployeeByUsername(_ context.Context, username string) (models.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.employeeNames[strings.ToLower(username)]
	if !ok {
		return models.Employee{}, ErrNotFound
	}
	return s.employees[id], nil
}

// SaveEmployee assigns a fresh id and stores the employee; an existing
// username is ErrDuplicate.
func (s *MemoryStore) SaveEmployee(_ context.Context, employee *models.Employee) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	nameKey := strings.ToLower(employee.Username)
	if _, ok := s.employeeNames[nameKey]; ok {
		return fmt.Errorf("%w: username %q", ErrDuplicate, employee.Username)
	}
	s.nextEmployeeID++
	employee.ID = s.nextEmployeeID
	s.employees[employee.ID] = *employee
	s.employeeNames[nameKey] = employee.ID
	return nil
}
