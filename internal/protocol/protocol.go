// Festwire - Festival Box Office Client/Server Synchronization
// Copyright 2026 Festwire Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/festwire/festwire

// Package protocol defines the Festwire wire format: a typed envelope
// carrying one serialized payload, framed one JSON document per
// newline-terminated line.
//
// The same envelope shape is used on both channels. The command transport
// exchanges request/response envelopes in strict ping-pong order; the push
// channel delivers unsolicited event envelopes.
package protocol

import (
	"errors"
	"fmt"

	"github.com/goccy/go-json"
)

// MessageType discriminates the payload carried by an Envelope.
type MessageType string

// Command types accepted by the server.
const (
	TypeLogin                   MessageType = "login"
	TypeRegister                MessageType = "register"
	TypeLogout                  MessageType = "logout"
	TypeGetShows                MessageType = "get_shows"
	TypeGetShowsByArtistAndTime MessageType = "get_shows_by_artist_and_time"
	TypeUpdateShow              MessageType = "update_show"
	TypeGetTickets              MessageType = "get_tickets"
	TypeAddTicket               MessageType = "add_ticket"
	TypeSellTicket              MessageType = "sell_ticket"
	TypeGetClients              MessageType = "get_clients"
	TypeAddClient               MessageType = "add_client"
)

// Response types produced by the server.
const (
	TypeSuccess MessageType = "success"
	TypeError   MessageType = "error"
)

// Push event types delivered over the push channel.
const (
	TypeConnected    MessageType = "connected"
	TypeDisconnected MessageType = "disconnected"
	TypeShowUpdated  MessageType = "show_updated"
	TypeTicketSold   MessageType = "ticket_sold"
	TypeClientAdded  MessageType = "client_added"
)

// ErrBadPayload reports a payload that could not be decoded under the
// shape its envelope type requires.
var ErrBadPayload = errors.New("protocol: bad payload")

// Envelope is the wire unit: a discriminating type plus one serialized
// payload. Data holds a nested JSON document as a string; empty means no
// payload. Envelopes are constructed fresh per message and never retained.
type Envelope struct {
	Type MessageType `json:"type"`
	Data string      `json:"data,omitempty"`
}

// NewEnvelope builds an envelope of the given type, serializing payload
// into Data. A nil payload produces an empty Data field.
func NewEnvelope(t MessageType, payload interface{}) (Envelope, error) {
	env := Envelope{Type: t}
	if payload == nil {
		return env, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("protocol: marshal %s payload: %w", t, err)
	}
	env.Data = string(data)
	return env, nil
}

// MustEnvelope is NewEnvelope for payloads that cannot fail to marshal
// (our own model and payload structs). It panics on marshal failure.
func MustEnvelope(t MessageType, payload interface{}) Envelope {
	env, err := NewEnvelope(t, payload)
	if err != nil {
		panic(err)
	}
	return env
}

// NewSuccess wraps a result payload in a Success envelope.
func NewSuccess(payload interface{}) (Envelope, error) {
	return NewEnvelope(TypeSuccess, payload)
}

// NewError wraps a human-readable message in an Error envelope.
func NewError(msg string) Envelope {
	return MustEnvelope(TypeError, msg)
}

// Decode unmarshals the envelope's payload into v. Decoding under the
// wrong expected shape is a protocol error reported as ErrBadPayload.
func (e Envelope) Decode(v interface{}) error {
	if e.Data == "" {
		return fmt.Errorf("%w: %s envelope has no payload", ErrBadPayload, e.Type)
	}
	if err := json.Unmarshal([]byte(e.Data), v); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrBadPayload, e.Type, err)
	}
	return nil
}

// ErrorMessage extracts the message from an Error envelope. When the
// payload is not a plain string, the raw payload text is returned so the
// caller always gets something printable.
func (e Envelope) ErrorMessage() string {
	var msg string
	if err := e.Decode(&msg); err != nil {
		return e.Data
	}
	return msg
}

// Credentials is the payload of Login and Register.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// ShowSearch is the payload of GetShowsByArtistAndTime.
type ShowSearch struct {
	Artist string `json:"artist"`
	Time   string `json:"time"`
}

// SellTicketRequest is the payload of SellTicket. NumberOfSeats crosses
// the wire as a string and is parsed server-side.
type SellTicketRequest struct {
	Show          ShowRef `json:"show"`
	ClientName    string  `json:"client_name"`
	NumberOfSeats string  `json:"number_of_seats"`
}

// ShowRef identifies the show a sale targets. Only the id is
// authoritative; the server re-reads the show record before mutating it.
type ShowRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name,omitempty"`
}

// ConnectedEvent is the payload of the Connected push event, carrying the
// listener id the hub assigned to this attachment.
type ConnectedEvent struct {
	ListenerID string `json:"listener_id"`
}
