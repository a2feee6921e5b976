// Copyright (C) 2026 Kodiak AI (jmercer@kodiakai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package wire defines the binary request/reply protocol spoken between the
// valgen server and instrumented fuzzing runs.
//
// A protocol message is an ordered sequence of typed binary parts. Part 0 of
// every request is a one-byte is-exit flag; part 0 of every response is a
// one-byte status code. All multi-byte integers on the wire are big-endian.
package wire

// Status is the one-byte response code in part 0 of every server reply.
type Status uint8

const (
	// StatusExitAck acknowledges an exit request. Part 1 echoes the
	// client's success flag unchanged.
	StatusExitAck Status = 10

	// StatusValue carries a generated value. Part 1 holds the value at
	// exactly the width implied by the request's type tag.
	StatusValue Status = 11

	// StatusMalformed reports a structurally invalid request (truncated
	// parts, wrong part widths). The connection remains usable.
	StatusMalformed Status = 22

	// StatusUnsupported reports a structurally complete request the server
	// refuses to interpret: an unknown type tag or inverted bounds.
	StatusUnsupported Status = 23
)

// String returns a short human-readable name for logs and errors.
func (s Status) String() string {
	switch s {
	case StatusExitAck:
		return "exit_ack"
	case StatusValue:
		return "value"
	case StatusMalformed:
		return "malformed"
	case StatusUnsupported:
		return "unsupported"
	default:
		return "unknown"
	}
}

// Request part-0 flag values.
const (
	FlagGenerate byte = 0
	FlagExit     byte = 1
)
