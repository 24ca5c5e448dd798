// Festwire - Festival Box Office Client/Server Synchronization
// Copyright 2026 Festwire Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/festwire/festwire

// Package models defines the domain entities shared by the Festwire server
// and client: shows, tickets, clients, and the employee auth principal.
//
// Validation tags are enforced through internal/validation before any
// entity reaches the store.
package models

import (
	"fmt"
	"time"
)

// Show is a scheduled festival performance with seat inventory.
//
// AvailableSeats + SoldSeats is conserved across a sale: selling moves
// seats from available to sold, it never creates or destroys them. Shows
// are created by the seeding process; the protocol only reads and
// updates them.
type Show struct {
	ID             int64     `json:"id"`
	Name           string    `json:"name" validate:"required"`
	Artist         string    `json:"artist" validate:"required"`
	Date           time.Time `json:"date"`
	Location       string    `json:"location" validate:"required"`
	AvailableSeats int       `json:"available_seats" validate:"min=0"`
	SoldSeats      int       `json:"sold_seats" validate:"min=0"`
}

func (s Show) String() string {
	return fmt.Sprintf("Show{id=%d, name=%q, artist=%q, available=%d, sold=%d}",
		s.ID, s.Name, s.Artist, s.AvailableSeats, s.SoldSeats)
}

// Client is a ticket-buying customer. Name is the unique lookup key used
// to find-or-create the client during a sale.
type Client struct {
	ID   int64  `json:"id"`
	Name string `json:"name" validate:"required"`
}

func (c Client) String() string {
	return fmt.Sprintf("Client{id=%d, name=%q}", c.ID, c.Name)
}

// Ticket records one successful sale. It references its show by id and
// denormalized name, and embeds the purchasing client. Tickets are
// immutable once created.
type Ticket struct {
	ID            int64  `json:"id"`
	ShowID        int64  `json:"show_id" validate:"required"`
	ShowName      string `json:"show_name" validate:"required"`
	Client        Client `json:"client"`
	NumberOfSeats int    `json:"number_of_seats" validate:"gt=0"`
	Price         int    `json:"price" validate:"min=0"`
}

func (t Ticket) String() string {
	return fmt.Sprintf("Ticket{id=%d, show=%q, client=%q, seats=%d}",
		t.ID, t.ShowName, t.Client.Name, t.NumberOfSeats)
}

// Employee is the authentication principal attached to a command
// transport session. Password holds a bcrypt hash at rest; Redacted
// copies strip it before an employee crosses the wire.
type Employee struct {
	ID       int64  `json:"id"`
	Username string `json:"username" validate:"required"`
	Password string `json:"password,omitempty" validate:"required"`
}

// Redacted returns a copy with the password hash removed, safe to send
// in a Success envelope.
func (e Employee) Redacted() Employee {
	e.Password = ""
	return e
}

func (e Employee) String() string {
	return fmt.Sprintf("Employee{id=%d, username=%q}", e.ID, e.Username)
}
