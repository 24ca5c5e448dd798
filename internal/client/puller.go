// Festwire - Festival Box Office Client/Server Synchronization
// Copyright 2026 Festwire Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/festwire/festwire

package client

import (
	"context"
	"time"

	"github.com/festwire/festwire/internal/logging"
)

// Puller periodically replaces the state mirror with the server's
// authoritative catalog. Push keeps the mirror fresh between pulls;
// the pull bounds how long a dropped push event can go unnoticed.
type Puller struct {
	connector *Connector
	state     *State
	interval  time.Duration
	kick      chan struct{}
}

// NewPuller creates a puller refreshing every interval.
func NewPuller(connector *Connector, state *State, interval time.Duration) *Puller {
	return &Puller{
		connector: connector,
		state:     state,
		interval:  interval,
		kick:      make(chan struct{}, 1),
	}
}

// String implements fmt.Stringer for supervisor logs.
func (p *Puller) String() string { return "puller" }

// TriggerRefresh requests an immediate pull ahead of the next tick.
// Requests coalesce.
func (p *Puller) TriggerRefresh() {
	select {
	case p.kick <- struct{}{}:
	default:
	}
}

// Serve pulls on every tick and on every TriggerRefresh until ctx is
// canceled. Pull failures are logged and retried on the next round;
// the mirror keeps its last good data in the meantime.
func (p *Puller) Serve(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		case <-p.kick:
		}
		if err := p.Refresh(ctx); err != nil {
			logging.Warn().Err(err).Str("component", "puller").Msg("catalog refresh failed")
		}
	}
}

// Refresh fetches shows, tickets, and clients and swaps the mirror.
// The three reads are not a snapshot; the next refresh squares up any
// skew between them.
func (p *Puller) Refresh(ctx context.Context) error {
	shows, err := p.connector.Shows(ctx)
	if err != nil {
		return err
	}
	tickets, err := p.connector.Tickets(ctx)
	if err != nil {
		return err
	}
	clients, err := p.connector.Clients(ctx)
	if err != nil {
		return err
	}
	p.state.ReplaceAll(shows, tickets, clients)
	logging.Debug().Str("component", "puller").Int("shows", len(shows)).Int("tickets", len(tickets)).Int("clients", len(clients)).Msg("catalog refreshed")
	return nil
}
