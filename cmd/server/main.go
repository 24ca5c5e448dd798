// Festwire - Festival Box Office Client/Server Synchronization
// Copyright 2026 Festwire Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/festwire/festwire

// Package main is the festwire server: the box-office backend that
// owns the catalog and fans changes out to connected terminals.
//
// The server runs three supervised services:
//
//  1. Command transport: TCP request/response for Login, Register,
//     catalog reads, UpdateShow, SellTicket, AddTicket, AddClient.
//  2. Push hub: fans ShowUpdated, TicketSold, and ClientAdded events
//     out to attached terminals.
//  3. Push endpoint: the websocket attach point plus /healthz.
//
// Configuration is loaded via Koanf v2 with layered sources (highest
// priority wins): FESTWIRE_* environment variables, the optional
// festwire.yaml file, built-in defaults.
//
// The server handles graceful shutdown on SIGINT and SIGTERM: the
// supervisor tree stops every service, sessions and listeners are
// closed, and the store is flushed before exit.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/festwire/festwire/internal/config"
	"github.com/festwire/festwire/internal/logging"
	"github.com/festwire/festwire/internal/push"
	"github.com/festwire/festwire/internal/server"
	"github.com/festwire/festwire/internal/service"
	"github.com/festwire/festwire/internal/store"
	"github.com/festwire/festwire/internal/supervisor"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to load configuration")
	}
	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})

	logging.Info().
		Str("command_addr", cfg.Server.Addr).
		Str("push_addr", cfg.Push.Addr).
		Str("store_backend", cfg.Store.Backend).
		Msg("starting festwire server")

	st, err := openStore(cfg.Store)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to open store")
	}
	defer func() {
		if err := st.Close(); err != nil {
			logging.Error().Err(err).Msg("error closing store")
		}
	}()

	if cfg.Store.Seed {
		if err := store.Seed(context.Background(), st); err != nil {
			logging.Fatal().Err(err).Msg("failed to seed catalog")
		}
	}

	hub := push.NewHub()
	festival := service.NewFestival(st, hub)

	tree := supervisor.NewTree("festwire", logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	tree.AddTransportService(server.New(cfg.Server.Addr, festival))
	tree.AddMessagingService(hub)
	tree.AddMessagingService(push.NewEndpoint(cfg.Push.Addr, cfg.Push.Path, hub))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Msg("supervisor tree failed")
		os.Exit(1)
	}

	if report, err := tree.UnstoppedServiceReport(); err == nil && len(report) > 0 {
		for _, svc := range report {
			logging.Warn().Str("service", svc.Name).Msg("service missed shutdown timeout")
		}
	}
	logging.Info().Msg("festwire server stopped")
}

func openStore(cfg config.StoreConfig) (store.Store, error) {
	if cfg.Backend == "memory" {
		return store.NewMemoryStore(), nil
	}
	return store.OpenBadger(cfg.Path)
}
