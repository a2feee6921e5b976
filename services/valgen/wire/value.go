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
	"fmt"
	"math"
)

// Value is a single typed scalar: a tag plus a 64-bit container holding the
// value's bit pattern.
//
// Representation:
//   - signed tags: the value sign-extended into the uint64 container
//   - unsigned and bool tags: the value zero-extended
//   - float tags: the IEEE-754 bits (Float32 in the low 32 bits)
type Value struct {
	Tag  TypeTag
	Bits uint64
}

// BoolValue builds a boolean Value.
func BoolValue(b bool) Value {
	var bits uint64
	if b {
		bits = 1
	}
	return Value{Tag: TagBool, Bits: bits}
}

// IntValue builds a signed integer Value under the given tag.
// The tag must be one of the signed integer tags.
func IntValue(tag TypeTag, v int64) Value {
	return Value{Tag: tag, Bits: uint64(v)}
}

// UintValue builds an unsigned integer Value under the given tag.
func UintValue(tag TypeTag, v uint64) Value {
	return Value{Tag: tag, Bits: v}
}

// Float32Value builds a float32 Value.
func Float32Value(v float32) Value {
	return Value{Tag: TagFloat32, Bits: uint64(math.Float32bits(v))}
}

// Float64Value builds a float64 Value.
func Float64Value(v float64) Value {
	return Value{Tag: TagFloat64, Bits: math.Float64bits(v)}
}

// Bool returns the value as a boolean. Only meaningful for TagBool.
func (v Value) Bool() bool { return v.Bits != 0 }

// Int64 returns the value as a signed integer. Only meaningful for signed tags.
func (v Value) Int64() int64 { return int64(v.Bits) }

// Uint64 returns the value as an unsigned integer. Only meaningful for
// unsigned and bool tags.
func (v Value) Uint64() uint64 { return v.Bits }

// Float64 returns the value as a float64. Only meaningful for float tags.
func (v Value) Float64() float64 {
	if v.Tag == TagFloat32 {
		return float64(math.Float32frombits(uint32(v.Bits)))
	}
	return math.Float64frombits(v.Bits)
}

// Key normalizes the value to the float64 edge key used by the execution
// tree. Unsigned values above 2^53 lose precision here; the float key space
// is a deliberate property of the tree, not an accident of this method.
func (v Value) Key() float64 {
	switch {
	case v.Tag == TagBool:
		if v.Bits != 0 {
			return 1
		}
		return 0
	case v.Tag.Signed():
		return float64(v.Int64())
	case v.Tag.Float():
		return v.Float64()
	default:
		return float64(v.Bits)
	}
}

// LessEq reports a <= b under the tag's ordering. Both values must carry the
// same tag; mismatched tags compare false.
func LessEq(a, b Value) bool {
	if a.Tag != b.Tag {
		return false
	}
	switch {
	case a.Tag.Signed():
		return a.Int64() <= b.Int64()
	case a.Tag.Float():
		return a.Float64() <= b.Float64()
	default:
		return a.Bits <= b.Bits
	}
}

// Encode serializes the value at exactly Tag.Width() bytes, big-endian.
func (v Value) Encode() []byte {
	w := v.Tag.Width()
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, v.Bits)
	return buf[8-w:]
}

// DecodeValue parses a payload of exactly tag.Width() bytes into a Value.
// Signed values are sign-extended into the container.
func DecodeValue(tag TypeTag, payload []byte) (Value, error) {
	w := tag.Width()
	if w == 0 {
		return Value{}, fmt.Errorf("%w: tag %d", ErrUnknownTag, uint8(tag))
	}
	if len(payload) != w {
		return Value{}, fmt.Errorf("%w: %s payload is %d bytes, want %d",
			ErrTruncated, tag, len(payload), w)
	}

	var bits uint64
	for _, b := range payload {
		bits = bits<<8 | uint64(b)
	}

	if tag.Signed() && w < 8 {
		shift := uint(64 - 8*w)
		bits = uint64(int64(bits<<shift) >> shift)
	}
	return Value{Tag: tag, Bits: bits}, nil
}
