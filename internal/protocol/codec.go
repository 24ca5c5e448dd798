// Festwire - Festival Box Office Client/Server Synchronization
// Copyright 2026 Festwire Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/festwire/festwire

package protocol

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/goccy/go-json"
)

// maxFrameSize bounds a single envelope line. Payloads are entity lists;
// 1 MiB is far beyond any legitimate frame.
const maxFrameSize = 1 << 20

// ErrFrameTooLarge reports a line exceeding maxFrameSize.
var ErrFrameTooLarge = errors.New("protocol: frame exceeds size limit")

// Encoder writes envelopes one per line.
type Encoder struct {
	w *bufio.Writer
}

// NewEncoder wraps w for envelope writing.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: bufio.NewWriter(w)}
}

// Encode writes one envelope followed by a newline and flushes, so a
// peer blocked in Decode always observes a complete frame.
func (e *Encoder) Encode(env Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("protocol: marshal envelope: %w", err)
	}
	if _, err := e.w.Write(data); err != nil {
		return fmt.Errorf("protocol: write envelope: %w", err)
	}
	if err := e.w.WriteByte('\n'); err != nil {
		return fmt.Errorf("protocol: write frame delimiter: %w", err)
	}
	return e.w.Flush()
}

// Decoder reads newline-delimited envelopes.
type Decoder struct {
	scanner *bufio.Scanner
}

// NewDecoder wraps r for envelope reading.
func NewDecoder(r io.Reader) *Decoder {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 4096), maxFrameSize)
	return &Decoder{scanner: scanner}
}

// Decode reads the next envelope. It returns io.EOF on orderly close and
// an unmarshal error on a malformed frame; either way the connection is
// unusable for further requests once an error is returned.
func (d *Decoder) Decode(env *Envelope) error {
	if !d.scanner.Scan() {
		if err := d.scanner.Err(); err != nil {
			if errors.Is(err, bufio.ErrTooLong) {
				return ErrFrameTooLarge
			}
			return err
		}
		return io.EOF
	}

	line := strings.TrimSpace(d.scanner.Text())
	if line == "" {
		return fmt.Errorf("protocol: empty frame")
	}
	if err := json.Unmarshal([]byte(line), env); err != nil {
		return fmt.Errorf("protocol: malformed frame: %w", err)
	}
	return nil
}
