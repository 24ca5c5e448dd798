// Festwire - Festival Box Office Client/Server Synchronization
// Copyright 2026 Festwire Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/festwire/festwire

// Package client implements the terminal side of the system: a command
// connector speaking the request/response transport, a local state
// mirror fed by push events, and a reconnect loop that keeps the push
// channel alive across server restarts.
package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/festwire/festwire/internal/logging"
	"github.com/festwire/festwire/internal/models"
	"github.com/festwire/festwire/internal/protocol"
)

// ErrNotConnected is returned by calls made on a connector whose
// connection is absent or has failed. The connector never redials on
// its own; the owner decides when to reconnect.
var ErrNotConnected = errors.New("client: not connected")

// ServerError is a refusal the server expressed as an Error envelope:
// bad credentials, not enough seats, unknown command. The connection
// stays usable after one.
type ServerError struct {
	Message string
}

func (e *ServerError) Error() string { return e.Message }

// Connector issues commands over a single TCP connection. The
// transport is strict request/response, so calls are serialized: one
// in flight at a time, each call owning the connection until its
// response arrives.
type Connector struct {
	addr string

	mu   sync.Mutex
	conn net.Conn
	enc  *protocol.Encoder
	dec  *protocol.Decoder
}

// NewConnector creates a connector for the command address. It does
// not dial; call Connect first.
func NewConnector(addr string) *Connector {
	return &Connector{addr: addr}
}

// Connect dials the command transport, replacing any previous
// connection.
func (c *Connector) Connect(ctx context.Context) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		return fmt.Errorf("client: dial %s: %w", c.addr, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		_ = c.conn.Close()
	}
	c.conn = conn
	c.enc = protocol.NewEncoder(conn)
	c.dec = protocol.NewDecoder(conn)
	logging.Debug().Str("component", "connector").Str("addr", c.addr).Msg("command connection established")
	return nil
}

// Close tears down the connection. Further calls fail with
// ErrNotConnected until Connect succeeds again.
func (c *Connector) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	c.enc = nil
	c.dec = nil
	return err
}

// call performs one request/response exchange. A transport failure
// marks the connector dead; a server Error envelope does not.
func (c *Connector) call(ctx context.Context, req protocol.Envelope) (protocol.Envelope, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return protocol.Envelope{}, ErrNotConnected
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Time{}
	}
	if err := c.conn.SetDeadline(deadline); err != nil {
		return protocol.Envelope{}, c.fail(err)
	}

	if err := c.enc.Encode(req); err != nil {
		return protocol.Envelope{}, c.fail(err)
	}
	var resp protocol.Envelope
	if err := c.dec.Decode(&resp); err != nil {
		return protocol.Envelope{}, c.fail(err)
	}

	if resp.Type == protocol.TypeError {
		return protocol.Envelope{}, &ServerError{Message: resp.ErrorMessage()}
	}
	return resp, nil
}

// fail closes the dead connection and dresses the transport error.
// Callers must hold c.mu.
func (c *Connector) fail(err error) error {
	_ = c.conn.Close()
	c.conn = nil
	c.enc = nil
	c.dec = nil
	logging.Warn().Err(err).Str("component", "connector").Msg("command connection failed")
	return fmt.Errorf("%w: %v", ErrNotConnected, err)
}

// Login authenticates the session with employee credentials.
func (c *Connector) Login(ctx context.Context, username, password string) (models.Employee, error) {
	return c.callEmployee(ctx, protocol.TypeLogin, username, password)
}

// Register creates an employee account and authenticates the session.
func (c *Connector) Register(ctx context.Context, username, password string) (models.Employee, error) {
	return c.callEmployee(ctx, protocol.TypeRegister, username, password)
}

func (c *Connector) callEmployee(ctx context.Context, t protocol.MessageType, username, password string) (models.Employee, error) {
	req, err := protocol.NewEnvelope(t, protocol.Credentials{Username: username, Password: password})
	if err != nil {
		return models.Employee{}, err
	}
	resp, err := c.call(ctx, req)
	if err != nil {
		return models.Employee{}, err
	}
	var employee models.Employee
	if err := resp.Decode(&employee); err != nil {
		return models.Employee{}, err
	}
	return employee, nil
}

// Logout drops the session's authentication.
func (c *Connector) Logout(ctx context.Context) error {
	_, err := c.call(ctx, protocol.MustEnvelope(protocol.TypeLogout, nil))
	return err
}

// Shows fetches the full show catalog.
func (c *Connector) Shows(ctx context.Context) ([]models.Show, error) {
	resp, err := c.call(ctx, protocol.MustEnvelope(protocol.TypeGetShows, nil))
	if err != nil {
		return nil, err
	}
	var shows []models.Show
	if err := resp.Decode(&shows); err != nil {
		return nil, err
	}
	return shows, nil
}

// ShowsByArtistAndTime fetches shows matching the search terms. Empty
// terms match everything.
func (c *Connector) ShowsByArtistAndTime(ctx context.Context, artist, timeOfDay string) ([]models.Show, error) {
	req, err := protocol.NewEnvelope(protocol.TypeGetShowsByArtistAndTime, protocol.ShowSearch{Artist: artist, Time: timeOfDay})
	if err != nil {
		return nil, err
	}
	resp, err := c.call(ctx, req)
	if err != nil {
		return nil, err
	}
	var shows []models.Show
	if err := resp.Decode(&shows); err != nil {
		return nil, err
	}
	return shows, nil
}

// UpdateShow replaces a show's stored fields.
func (c *Connector) UpdateShow(ctx context.Context, show models.Show) error {
	req, err := protocol.NewEnvelope(protocol.TypeUpdateShow, show)
	if err != nil {
		return err
	}
	_, err = c.call(ctx, req)
	return err
}

// Tickets fetches all sold tickets.
func (c *Connector) Tickets(ctx context.Context) ([]models.Ticket, error) {
	resp, err := c.call(ctx, protocol.MustEnvelope(protocol.TypeGetTickets, nil))
	if err != nil {
		return nil, err
	}
	var tickets []models.Ticket
	if err := resp.Decode(&tickets); err != nil {
		return nil, err
	}
	return tickets, nil
}

// AddTicket stores a ticket directly, without touching seat counts.
func (c *Connector) AddTicket(ctx context.Context, ticket models.Ticket) (models.Ticket, error) {
	req, err := protocol.NewEnvelope(protocol.TypeAddTicket, ticket)
	if err != nil {
		return models.Ticket{}, err
	}
	resp, err := c.call(ctx, req)
	if err != nil {
		return models.Ticket{}, err
	}
	var saved models.Ticket
	if err := resp.Decode(&saved); err != nil {
		return models.Ticket{}, err
	}
	return saved, nil
}

// SellTicket sells seats for a show to a named client and returns the
// issued ticket.
func (c *Connector) SellTicket(ctx context.Context, show protocol.ShowRef, clientName, numberOfSeats string) (models.Ticket, error) {
	req, err := protocol.NewEnvelope(protocol.TypeSellTicket, protocol.SellTicketRequest{
		Show: show, ClientName: clientName, NumberOfSeats: numberOfSeats,
	})
	if err != nil {
		return models.Ticket{}, err
	}
	resp, err := c.call(ctx, req)
	if err != nil {
		return models.Ticket{}, err
	}
	var ticket models.Ticket
	if err := resp.Decode(&ticket); err != nil {
		return models.Ticket{}, err
	}
	return ticket, nil
}

// Clients fetches all registered festival clients.
func (c *Connector) Clients(ctx context.Context) ([]models.Client, error) {
	resp, err := c.call(ctx, protocol.MustEnvelope(protocol.TypeGetClients, nil))
	if err != nil {
		return nil, err
	}
	var clients []models.Client
	if err := resp.Decode(&clients); err != nil {
		return nil, err
	}
	return clients, nil
}

// AddClient registers a festival client.
func (c *Connector) AddClient(ctx context.Context, client models.Client) (models.Client, error) {
	req, err := protocol.NewEnvelope(protocol.TypeAddClient, client)
	if err != nil {
		return models.Client{}, err
	}
	resp, err := c.call(ctx, req)
	if err != nil {
		return models.Client{}, err
	}
	var saved models.Client
	if err := resp.Decode(&saved); err != nil {
		return models.Client{}, err
	}
	return saved, nil
}
