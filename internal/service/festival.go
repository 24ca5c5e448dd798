// Festwire - Festival Box Office Client/Server Synchronization
// Copyright 2026 Festwire Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/festwire/festwire

// Package service implements the Festwire domain operations: employee
// authentication, show/ticket/client reads, and the seat-moving ticket
// sale. Successful mutations are announced through a Notifier so every
// attached push listener learns about changes made by other sessions.
package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"golang.org/x/crypto/bcrypt"

	"github.com/festwire/festwire/internal/logging"
	"github.com/festwire/festwire/internal/models"
	"github.com/festwire/festwire/internal/store"
	"github.com/festwire/festwire/internal/validation"
)

// DefaultTicketPrice is charged when a sale does not specify a price.
const DefaultTicketPrice = 10

// Notifier receives change announcements after successful mutations.
// Implementations must not block: delivery is best-effort and must never
// fail the originating operation.
type Notifier interface {
	ShowUpdated(show models.Show)
	TicketSold(ticket models.Ticket)
	ClientAdded(client models.Client)
}

// NopNotifier discards all announcements. Useful for tests and tooling.
type NopNotifier struct{}

func (NopNotifier) ShowUpdated(models.Show)   {}
func (NopNotifier) TicketSold(models.Ticket)  {}
func (NopNotifier) ClientAdded(models.Client) {}

// Festival exposes the domain operations behind the command dispatcher.
// All methods are safe for concurrent use from independent sessions; the
// per-show seat movement is the only sequence serialized across them.
type Festival struct {
	store    store.Store
	notifier Notifier

	// showLocks serializes check-and-update on a single show's seat
	// counters. Two sessions racing to sell the last seats must not
	// both succeed.
	mu        sync.Mutex
	showLocks map[int64]*sync.Mutex
}

// NewFestival creates the domain service on top of a store and notifier.
func NewFestival(st store.Store, notifier Notifier) *Festival {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &Festival{
		store:     st,
		notifier:  notifier,
		showLocks: make(map[int64]*sync.Mutex),
	}
}

// lockShow returns the mutex serializing sales of one show. The map
// holds one mutex per show id ever sold and is never pruned; growth is
// bounded by the catalog size, which stays small for a single festival.
func (f *Festival) lockShow(id int64) *sync.Mutex {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.showLocks[id]
	if !ok {
		m = &sync.Mutex{}
		f.showLocks[id] = m
	}
	return m
}

// LoginEmployee authenticates by username and password. A missing user
// and a wrong password are the same business error.
func (f *Festival) LoginEmployee(ctx context.Context, username, password string) (models.Employee, error) {
	employee, err := f.store.EmployeeByUsername(ctx, username)
	if errors.Is(err, store.ErrNotFound) {
		logging.Warn().Str("username", username).Msg("login failed: unknown username")
		return models.Employee{}, ErrInvalidCredentials
	}
	if err != nil {
		return models.Employee{}, fmt.Errorf("login: %w", err)
	}

	if bcrypt.CompareHashAndPassword([]byte(employee.Password), []byte(password)) != nil {
		logging.Warn().Str("username", username).Msg("login failed: wrong password")
		return models.Employee{}, ErrInvalidCredentials
	}

	logging.Info().Str("username", username).Msg("employee logged in")
	return employee.Redacted(), nil
}

// RegisterEmployee creates a new employee with a bcrypt-hashed password
// and returns it authenticated. An existing username is rejected.
func (f *Festival) RegisterEmployee(ctx context.Context, username, password string) (models.Employee, error) {
	if username == "" || password == "" {
		return models.Employee{}, &BusinessError{msg: "username and password are required"}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return models.Employee{}, fmt.Errorf("hash password: %w", err)
	}

	employee := models.Employee{Username: username, Password: string(hash)}
	if err := validation.ValidateStruct(&employee); err != nil {
		return models.Employee{}, &BusinessError{msg: err.Error()}
	}

	if err := f.store.SaveEmployee(ctx, &employee); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return models.Employee{}, ErrUsernameTaken
		}
		return models.Employee{}, fmt.Errorf("register: %w", err)
	}

	logging.Info().Str("username", username).Int64("employee_id", employee.ID).Msg("employee registered")
	return employee.Redacted(), nil
}

// Shows returns the full show catalog.
func (f *Festival) Shows(ctx context.Context) ([]models.Show, error) {
	return f.store.Shows(ctx)
}

// ShowsByArtistAndTime returns shows matching the artist and time search
// terms; empty terms match everything.
func (f *Festival) ShowsByArtistAndTime(ctx context.Context, artist, timeOfDay string) ([]models.Show, error) {
	return f.store.ShowsByArtistAndTime(ctx, artist, timeOfDay)
}

// UpdateShow validates and persists a show update, then announces it.
func (f *Festival) UpdateShow(ctx context.Context, show models.Show) error {
	if err := validation.ValidateStruct(&show); err != nil {
		return &BusinessError{msg: err.Error()}
	}
	if err := f.store.UpdateShow(ctx, show); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: id %d", ErrShowNotFound, show.ID)
		}
		return fmt.Errorf("update show: %w", err)
	}

	logging.Info().Int64("show_id", show.ID).Str("name", show.Name).Msg("show updated")
	f.notifier.ShowUpdated(show)
	return nil
}

// Tickets returns all sold tickets.
func (f *Festival) Tickets(ctx context.Context) ([]models.Ticket, error) {
	return f.store.Tickets(ctx)
}

// AddTicket validates and persists a pre-built ticket without touching
// seat counters. Seat-moving sales go through SellTicket.
func (f *Festival) AddTicket(ctx context.Context, ticket models.Ticket) (models.Ticket, error) {
	if err := validation.ValidateStruct(&ticket); err != nil {
		return models.Ticket{}, &BusinessError{msg: err.Error()}
	}
	if err := f.store.SaveTicket(ctx, &ticket); err != nil {
		return models.Ticket{}, fmt.Errorf("add ticket: %w", err)
	}
	logging.Info().Int64("ticket_id", ticket.ID).Str("show", ticket.ShowName).Msg("ticket added")
	return ticket, nil
}

// Clients returns all known clients.
func (f *Festival) Clients(ctx context.Context) ([]models.Client, error) {
	return f.store.Clients(ctx)
}

// AddClient validates and persists a new client, then announces it.
func (f *Festival) AddClient(ctx context.Context, client models.Client) (models.Client, error) {
	if err := validation.ValidateStruct(&client); err != nil {
		return models.Client{}, &BusinessError{msg: err.Error()}
	}
	if err := f.store.SaveClient(ctx, &client); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return models.Client{}, fmt.Errorf("%w: %q", ErrDuplicateClient, client.Name)
		}
		return models.Client{}, fmt.Errorf("add client: %w", err)
	}

	logging.Info().Int64("client_id", client.ID).Str("name", client.Name).Msg("client added")
	f.notifier.ClientAdded(client)
	return client, nil
}

// findOrCreateClient resolves the named client, creating it when absent.
// A creation race against another session falls back to the winner's
// record.
func (f *Festival) findOrCreateClient(ctx context.Context, name string) (models.Client, error) {
	client, err := f.store.ClientByName(ctx, name)
	if err == nil {
		return client, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return models.Client{}, fmt.Errorf("find client: %w", err)
	}

	client = models.Client{Name: name}
	if err := validation.ValidateStruct(&client); err != nil {
		return models.Client{}, &BusinessError{msg: err.Error()}
	}
	if err := f.store.SaveClient(ctx, &client); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return f.store.ClientByName(ctx, name)
		}
		return models.Client{}, fmt.Errorf("create client: %w", err)
	}

	logging.Info().Str("name", name).Int64("client_id", client.ID).Msg("client created during sale")
	f.notifier.ClientAdded(client)
	return client, nil
}

// SellTicket performs one sale: find-or-create the named client, move
// the requested seats from available to sold, and persist the ticket.
// The seat check and update run under the per-show lock so concurrent
// sales of the same show cannot oversell; the lock is released before
// announcing TicketSold and ShowUpdated.
//
// numberOfSeats arrives as a string (its wire form) and is parsed here.
func (f *Festival) SellTicket(ctx context.Context, showID int64, clientName, numberOfSeats string) (models.Ticket, error) {
	seats, err := strconv.Atoi(numberOfSeats)
	if err != nil || seats <= 0 {
		return models.Ticket{}, fmt.Errorf("%w: %q", ErrInvalidSeatCount, numberOfSeats)
	}

	client, err := f.findOrCreateClient(ctx, clientName)
	if err != nil {
		return models.Ticket{}, err
	}

	var (
		show   models.Show
		ticket models.Ticket
	)
	lock := f.lockShow(showID)
	lock.Lock()
	err = func() error {
		defer lock.Unlock()

		// Re-read the authoritative record; the caller's copy of the
		// show may be stale.
		show, err = f.store.ShowByID(ctx, showID)
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: id %d", ErrShowNotFound, showID)
		}
		if err != nil {
			return fmt.Errorf("sell ticket: %w", err)
		}

		if seats > show.AvailableSeats {
			return fmt.Errorf("%w: show %q has %d available, requested %d",
				ErrNotEnoughSeats, show.Name, show.AvailableSeats, seats)
		}

		show.AvailableSeats -= seats
		show.SoldSeats += seats
		if err := f.store.UpdateShow(ctx, show); err != nil {
			return fmt.Errorf("sell ticket: update show: %w", err)
		}

		ticket = models.Ticket{
			ShowID:        show.ID,
			ShowName:      show.Name,
			Client:        client,
			NumberOfSeats: seats,
			Price:         DefaultTicketPrice,
		}
		if err := f.store.SaveTicket(ctx, &ticket); err != nil {
			return fmt.Errorf("sell ticket: save ticket: %w", err)
		}
		return nil
	}()
	if err != nil {
		return models.Ticket{}, err
	}

	logging.Info().
		Int64("show_id", show.ID).
		Str("client", client.Name).
		Int("seats", seats).
		Int("remaining", show.AvailableSeats).
		Msg("ticket sold")

	f.notifier.TicketSold(ticket)
	f.notifier.ShowUpdated(show)
	return ticket, nil
}
