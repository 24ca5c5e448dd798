// Festwire - Festival Box Office Client/Server Synchronization
// Copyright 2026 Festwire Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/festwire/festwire

// Package store provides the persistence capability backing the Festwire
// service: per-entity CRUD plus the domain lookups the protocol needs
// (client by name, shows by artist and time, employee by username).
//
// Two implementations exist: a BadgerDB-backed store for the server
// binary and an in-memory store for tests. Neither performs validation;
// callers validate entities before saving them.
package store

import (
	"context"
	"errors"
	"strings"

	"github.com/festwire/festwire/internal/models"
)

// ErrNotFound reports a lookup that matched no entity.
var ErrNotFound = errors.New("store: not found")

// ErrDuplicate reports a save that would violate a uniqueness constraint
// (client name, employee username).
var ErrDuplicate = errors.New("store: duplicate")

// Store is the persistence capability used by the service layer. Save
// methods assign the entity's ID through the pointer. The store itself
// provides no cross-entity atomicity; the service serializes the one
// sequence that needs it (per-show seat movement).
type Store interface {
	ShowByID(ctx context.Context, id int64) (models.Show, error)
	Shows(ctx context.Context) ([]models.Show, error)
	SaveShow(ctx context.Context, show *models.Show) error
	UpdateShow(ctx context.Context, show models.Show) error
	DeleteShow(ctx context.Context, id int64) error
	ShowsByArtistAndTime(ctx context.Context, artist, timeOfDay string) ([]models.Show, error)

	TicketByID(ctx context.Context, id int64) (models.Ticket, error)
	Tickets(ctx context.Context) ([]models.Ticket, error)
	SaveTicket(ctx context.Context, ticket *models.Ticket) error
	DeleteTicket(ctx context.Context, id int64) error

	ClientByID(ctx context.Context, id int64) (models.Client, error)
	Clients(ctx context.Context) ([]models.Client, error)
	SaveClient(ctx context.Context, client *models.Client) error
	UpdateClient(ctx context.Context, client models.Client) error
	DeleteClient(ctx context.Context, id int64) error
	ClientByName(ctx context.Context, name string) (models.Client, error)

	EmployeeByUsername(ctx context.Context, username string) (models.Employee, error)
	SaveEmployee(ctx context.Context, employee *models.Employee) error

	Close() error
}

// matchShow implements the artist/time search shared by both store
// implementations: case-insensitive substring match on the artist name
// and on the show's start time formatted as HH:MM. An empty term
// matches everything.
func matchShow(show models.Show, artist, timeOfDay string) bool {
	if artist != "" && !strings.Contains(strings.ToLower(show.Artist), strings.ToLower(artist)) {
		return false
	}
	if timeOfDay != "" && !strings.Contains(show.Date.Format("15:04"), timeOfDay) {
		return false
	}
	return true
}
