// Festwire - Festival Box Office Client/Server Synchronization
// Copyright 2026 Festwire Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/festwire/festwire

package validation

import (
	"errors"
	"strings"
	"testing"

	"github.com/festwire/festwire/internal/models"
)

func TestValidateStructShow(t *testing.T) {
	tests := []struct {
		name    string
		show    models.Show
		wantErr bool
		wantMsg string
	}{
		{
			name: "valid show",
			show: models.Show{
				Name: "Electric Nights", Artist: "The Voltas",
				Location: "Main Stage", AvailableSeats: 100, SoldSeats: 0,
			},
			wantErr: false,
		},
		{
			name: "missing name",
			show: models.Show{
				Artist: "The Voltas", Location: "Main Stage",
			},
			wantErr: true,
			wantMsg: "Name is required",
		},
		{
			name: "negative seats",
			show: models.Show{
				Name: "Electric Nights", Artist: "The Voltas",
				Location: "Main Stage", AvailableSeats: -1,
			},
			wantErr: true,
			wantMsg: "AvailableSeats must be at least 0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStruct(&tt.show)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateStruct() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error %q does not contain %q", err.Error(), tt.wantMsg)
			}
		})
	}
}

func TestValidateStructTicketSeats(t *testing.T) {
	ticket := models.Ticket{
		ShowID: 1, ShowName: "Electric Nights",
		Client:        models.Client{ID: 1, Name: "Maria"},
		NumberOfSeats: 0, Price: 10,
	}

	err := ValidateStruct(&ticket)
	if err == nil {
		t.Fatal("expected error for zero seats")
	}

	var verr *Error
	if !errors.As(err, &verr) {
		t.Fatalf("expected *validation.Error, got %T", err)
	}
	if len(verr.Fields) != 1 || verr.Fields[0].Field != "NumberOfSeats" {
		t.Errorf("unexpected field errors: %+v", verr.Fields)
	}
}

func TestValidatorIsSingleton(t *testing.T) {
	if Validator() != Validator() {
		t.Error("Validator() must return the same instance")
	}
}
