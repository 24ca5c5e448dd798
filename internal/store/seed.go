// Festwire - Festival Box Office Client/Server Synchronization
// Copyright 2026 Festwire Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/festwire/festwire

package store

import (
	"context"
	"fmt"
	"time"

	"github.com/festwire/festwire/internal/logging"
	"github.com/festwire/festwire/internal/models"
)

// Seed inserts the initial show catalog when the store holds no shows.
// Shows are otherwise created only by this process; the protocol has no
// create-show command.
func Seed(ctx context.Context, s Store) error {
	existing, err := s.Shows(ctx)
	if err != nil {
		return fmt.Errorf("seed: list shows: %w", err)
	}
	if len(existing) > 0 {
		return nil
	}

	year := time.Now().Year() + 1
	shows := []models.Show{
		{Name: "Electric Nights", Artist: "The Voltas", Date: time.Date(year, 7, 14, 20, 0, 0, 0, time.UTC), Location: "Main Stage", AvailableSeats: 200, SoldSeats: 0},
		{Name: "Acoustic Dawn", Artist: "Mara Lioara", Date: time.Date(year, 7, 15, 11, 0, 0, 0, time.UTC), Location: "Garden Stage", AvailableSeats: 80, SoldSeats: 0},
		{Name: "Midnight Brass", Artist: "Fanfara Doina", Date: time.Date(year, 7, 15, 23, 30, 0, 0, time.UTC), Location: "Plaza", AvailableSeats: 150, SoldSeats: 0},
		{Name: "Strings of the Delta", Artist: "Mara Lioara", Date: time.Date(year, 7, 16, 18, 0, 0, 0, time.UTC), Location: "Garden Stage", AvailableSeats: 120, SoldSeats: 0},
	}

	for i := range shows {
		if err := SeedShow(ctx, s, &shows[i]); err != nil {
			return err
		}
	}
	logging.Info().Int("shows", len(shows)).Msg("seeded initial show catalog")
	return nil
}

// SeedShow saves one show, used by Seed and by tests building fixtures.
func SeedShow(ctx context.Context, s Store, show *models.Show) error {
	if err := s.SaveShow(ctx, show); err != nil {
		return fmt.Errorf("seed: save show %q: %w", show.Name, err)
	}
	return nil
}
