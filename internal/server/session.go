// Festwire - Festival Box Office Client/Server Synchronization
// Copyright 2026 Festwire Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/festwire/festwire

package server

import (
	"context"
	"errors"
	"io"
	"net"

	"github.com/festwire/festwire/internal/logging"
	"github.com/festwire/festwire/internal/models"
	"github.com/festwire/festwire/internal/protocol"
	"github.com/festwire/festwire/internal/service"
)

const (
	msgNotAuthenticated = "not authenticated"
	msgUnknownCommand   = "unknown command"
	msgInternalError    = "internal error"
)

// session is the per-connection state of the command transport. The
// transport is strict request/response, so a session never has more
// than one request in flight and needs no internal locking.
type session struct {
	conn     net.Conn
	festival *service.Festival
	dec      *protocol.Decoder
	enc      *protocol.Encoder
	remote   string

	// employee is nil until a successful Login or Register.
	employee *models.Employee
}

func newSession(conn net.Conn, festival *service.Festival) *session {
	return &session{
		conn:     conn,
		festival: festival,
		dec:      protocol.NewDecoder(conn),
		enc:      protocol.NewEncoder(conn),
		remote:   conn.RemoteAddr().String(),
	}
}

// run drives the read-dispatch-respond loop until the peer disconnects
// or the server shuts down.
func (s *session) run(ctx context.Context) {
	defer s.conn.Close()
	stop := context.AfterFunc(ctx, func() { _ = s.conn.Close() })
	defer stop()

	logging.Debug().Str("component", "command-server").Str("remote", s.remote).Msg("session opened")

	for {
		var env protocol.Envelope
		if err := s.dec.Decode(&env); err != nil {
			if errors.Is(err, io.EOF) || isClosedConnError(err) || ctx.Err() != nil {
				logging.Debug().Str("component", "command-server").Str("remote", s.remote).Msg("session closed")
			} else {
				logging.Warn().Err(err).Str("component", "command-server").Str("remote", s.remote).Msg("session read failed")
			}
			return
		}

		resp := s.dispatch(ctx, env)
		if err := s.enc.Encode(resp); err != nil {
			if !isClosedConnError(err) && ctx.Err() == nil {
				logging.Warn().Err(err).Str("component", "command-server").Str("remote", s.remote).Msg("session write failed")
			}
			return
		}
	}
}

// dispatch maps one request envelope to exactly one response envelope.
// Every command except Login and Register requires an authenticated
// session and is refused without touching the domain service otherwise.
func (s *session) dispatch(ctx context.Context, env protocol.Envelope) protocol.Envelope {
	if s.employee == nil && env.Type != protocol.TypeLogin && env.Type != protocol.TypeRegister {
		return protocol.NewError(msgNotAuthenticated)
	}

	switch env.Type {
	case protocol.TypeLogin:
		return s.handleLogin(ctx, env)
	case protocol.TypeRegister:
		return s.handleRegister(ctx, env)
	case protocol.TypeLogout:
		s.employee = nil
		return respond(nil)
	case protocol.TypeGetShows:
		shows, err := s.festival.Shows(ctx)
		if err != nil {
			return s.fail(env.Type, err)
		}
		return respond(shows)
	case protocol.TypeGetShowsByArtistAndTime:
		var search protocol.ShowSearch
		if err := env.Decode(&search); err != nil {
			return s.fail(env.Type, err)
		}
		shows, err := s.festival.ShowsByArtistAndTime(ctx, search.Artist, search.Time)
		if err != nil {
			return s.fail(env.Type, err)
		}
		return respond(shows)
	case protocol.TypeUpdateShow:
		var show models.Show
		if err := env.Decode(&show); err != nil {
			return s.fail(env.Type, err)
		}
		if err := s.festival.UpdateShow(ctx, show); err != nil {
			return s.fail(env.Type, err)
		}
		return respond(nil)
	case protocol.TypeGetTickets:
		tickets, err := s.festival.Tickets(ctx)
		if err != nil {
			return s.fail(env.Type, err)
		}
		return respond(tickets)
	case protocol.TypeAddTicket:
		var ticket models.Ticket
		if err := env.Decode(&ticket); err != nil {
			return s.fail(env.Type, err)
		}
		saved, err := s.festival.AddTicket(ctx, ticket)
		if err != nil {
			return s.fail(env.Type, err)
		}
		return respond(saved)
	case protocol.TypeSellTicket:
		var req protocol.SellTicketRequest
		if err := env.Decode(&req); err != nil {
			return s.fail(env.Type, err)
		}
		ticket, err := s.festival.SellTicket(ctx, req.Show.ID, req.ClientName, req.NumberOfSeats)
		if err != nil {
			return s.fail(env.Type, err)
		}
		return respond(ticket)
	case protocol.TypeGetClients:
		clients, err := s.festival.Clients(ctx)
		if err != nil {
			return s.fail(env.Type, err)
		}
		return respond(clients)
	case protocol.TypeAddClient:
		var client models.Client
		if err := env.Decode(&client); err != nil {
			return s.fail(env.Type, err)
		}
		saved, err := s.festival.AddClient(ctx, client)
		if err != nil {
			return s.fail(env.Type, err)
		}
		return respond(saved)
	default:
		return protocol.NewError(msgUnknownCommand)
	}
}

func (s *session) handleLogin(ctx context.Context, env protocol.Envelope) protocol.Envelope {
	var creds protocol.Credentials
	if err := env.Decode(&creds); err != nil {
		return s.fail(env.Type, err)
	}
	employee, err := s.festival.LoginEmployee(ctx, creds.Username, creds.Password)
	if err != nil {
		return s.fail(env.Type, err)
	}
	s.employee = &employee
	logging.Info().Str("component", "command-server").Str("remote", s.remote).Str("username", employee.Username).Msg("employee logged in")
	return respond(employee)
}

func (s *session) handleRegister(ctx context.Context, env protocol.Envelope) protocol.Envelope {
	var creds protocol.Credentials
	if err := env.Decode(&creds); err != nil {
		return s.fail(env.Type, err)
	}
	employee, err := s.festival.RegisterEmployee(ctx, creds.Username, creds.Password)
	if err != nil {
		return s.fail(env.Type, err)
	}
	s.employee = &employee
	logging.Info().Str("component", "command-server").Str("remote", s.remote).Str("username", employee.Username).Msg("employee registered")
	return respond(employee)
}

// fail converts a dispatch error into an Error envelope. Business and
// protocol errors carry their message to the peer; anything else is an
// internal fault that is logged and masked.
func (s *session) fail(t protocol.MessageType, err error) protocol.Envelope {
	switch {
	case service.IsBusiness(err):
		logging.Debug().Err(err).Str("component", "command-server").Str("remote", s.remote).Str("command", string(t)).Msg("request refused")
		return protocol.NewError(err.Error())
	case errors.Is(err, protocol.ErrBadPayload):
		logging.Warn().Err(err).Str("component", "command-server").Str("remote", s.remote).Str("command", string(t)).Msg("malformed payload")
		return protocol.NewError(err.Error())
	default:
		logging.Error().Err(err).Str("component", "command-server").Str("remote", s.remote).Str("command", string(t)).Msg("request failed")
		return protocol.NewError(msgInternalError)
	}
}

// respond wraps a result in a Success envelope; nil means a bare
// confirmation with no payload.
func respond(payload interface{}) protocol.Envelope {
	env, err := protocol.NewSuccess(payload)
	if err != nil {
		// Our own structs always marshal; reaching this is a bug.
		logging.Error().Err(err).Str("component", "command-server").Msg("response marshal failed")
		return protocol.NewError(msgInternalError)
	}
	return env
}
