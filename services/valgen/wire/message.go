// Copyright (C) 2026 Kodiak AI (jmercer@kodiakai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Sentinel errors for frame and payload decoding.
var (
	// ErrTruncated indicates a frame or part ended before its declared length.
	ErrTruncated = errors.New("truncated message")

	// ErrTooLarge indicates a frame exceeds MaxMessageSize.
	ErrTooLarge = errors.New("message exceeds size limit")

	// ErrTooManyParts indicates a frame declares more than MaxParts parts.
	ErrTooManyParts = errors.New("too many message parts")

	// ErrUnknownTag indicates a type tag outside the supported set.
	ErrUnknownTag = errors.New("unknown type tag")
)

const (
	// MaxMessageSize bounds a single encoded frame. Requests are at most a
	// few dozen bytes; anything near this limit is garbage.
	MaxMessageSize = 4096

	// MaxParts bounds the part count of a single frame.
	MaxParts = 16
)

// Message is an ordered sequence of binary parts.
//
// On the transport, one Message is one binary frame. Inside the frame each
// part is encoded as a 4-byte big-endian length followed by the payload
// bytes, concatenated with no padding.
type Message struct {
	parts [][]byte
}

// NewMessage builds a message from literal parts, in order.
func NewMessage(parts ...[]byte) *Message {
	return &Message{parts: parts}
}

// Append adds a raw part at the end of the message and returns the message
// for chaining.
func (m *Message) Append(p []byte) *Message {
	m.parts = append(m.parts, p)
	return m
}

// AppendByte adds a single-byte part.
func (m *Message) AppendByte(b byte) *Message {
	return m.Append([]byte{b})
}

// AppendUint64 adds an 8-byte big-endian part.
func (m *Message) AppendUint64(v uint64) *Message {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, v)
	return m.Append(buf)
}

// AppendValue adds a part holding the value at its tag's wire width.
func (m *Message) AppendValue(v Value) *Message {
	return m.Append(v.Encode())
}

// Len returns the number of parts.
func (m *Message) Len() int {
	return len(m.parts)
}

// Part returns part i, or nil if out of range.
func (m *Message) Part(i int) []byte {
	if i < 0 || i >= len(m.parts) {
		return nil
	}
	return m.parts[i]
}

// Byte returns the single byte of part i. The comma-ok result is false when
// the part is absent or not exactly one byte wide.
func (m *Message) Byte(i int) (byte, bool) {
	p := m.Part(i)
	if len(p) != 1 {
		return 0, false
	}
	return p[0], true
}

// Uint64 returns part i decoded as an 8-byte big-endian integer.
func (m *Message) Uint64(i int) (uint64, bool) {
	p := m.Part(i)
	if len(p) != 8 {
		return 0, false
	}
	return binary.BigEndian.Uint64(p), true
}

// Encode serializes the message into a single frame.
func (m *Message) Encode() []byte {
	size := 0
	for _, p := range m.parts {
		size += 4 + len(p)
	}
	buf := make([]byte, 0, size)
	for _, p := range m.parts {
		var hdr [4]byte
		binary.BigEndian.PutUint32(hdr[:], uint32(len(p)))
		buf = append(buf, hdr[:]...)
		buf = append(buf, p...)
	}
	return buf
}

// Decode parses a frame back into its parts.
//
// Every structural defect maps to a sentinel error: a part extending past
// the end of the frame is ErrTruncated, an oversized frame is ErrTooLarge,
// and an absurd part count is ErrTooManyParts.
func Decode(data []byte) (*Message, error) {
	if len(data) > MaxMessageSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrTooLarge, len(data))
	}

	m := &Message{}
	for off := 0; off < len(data); {
		if len(m.parts) >= MaxParts {
			return nil, ErrTooManyParts
		}
		if len(data)-off < 4 {
			return nil, fmt.Errorf("%w: partial length header at offset %d", ErrTruncated, off)
		}
		n := int(binary.BigEndian.Uint32(data[off : off+4]))
		off += 4
		if n > len(data)-off {
			return nil, fmt.Errorf("%w: part of %d bytes at offset %d", ErrTruncated, n, off)
		}
		m.parts = append(m.parts, data[off:off+n])
		off += n
	}
	return m, nil
}

// Convenience constructors for the response shapes.

// ExitAck builds the [10, success] reply.
func ExitAck(success byte) *Message {
	return NewMessage().AppendByte(byte(StatusExitAck)).AppendByte(success)
}

// ValueReply builds the [11, value] reply.
func ValueReply(v Value) *Message {
	return NewMessage().AppendByte(byte(StatusValue)).AppendValue(v)
}

// Malformed builds the single-part [22] reply.
func Malformed() *Message {
	return NewMessage().AppendByte(byte(StatusMalformed))
}

// Unsupported builds the single-part [23] reply.
func Unsupported() *Message {
	return NewMessage().AppendByte(byte(StatusUnsupported))
}
