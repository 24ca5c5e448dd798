// Festwire - Festival Box Office Client/Server Synchronization
// Copyright 2026 Festwire Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/festwire/festwire

package service

import "errors"

// BusinessError marks a domain-rule violation. The dispatcher converts
// business errors into Error envelopes and keeps the session alive;
// anything else is treated as an internal failure.
type BusinessError struct {
	msg string
}

// Error implements the error interface.
func (e *BusinessError) Error() string { return e.msg }

// Business errors raised by domain operations. Wrapping them with
// fmt.Errorf("%w: ...") keeps both errors.Is on the sentinel and
// errors.As on *BusinessError working.
var (
	ErrInvalidCredentials = &BusinessError{msg: "invalid credentials"}
	ErrUsernameTaken      = &BusinessError{msg: "registration failed: username already exists"}
	ErrShowNotFound       = &BusinessError{msg: "show not found"}
	ErrNotEnoughSeats     = &BusinessError{msg: "not enough seats available"}
	ErrInvalidSeatCount   = &BusinessError{msg: "invalid number of seats"}
	ErrDuplicateClient    = &BusinessError{msg: "client already exists"}
)

// IsBusiness reports whether err is (or wraps) a domain-rule violation.
func IsBusiness(err error) bool {
	var berr *BusinessError
	return errors.As(err, &berr)
}
