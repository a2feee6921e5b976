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

// TypeTag identifies the primitive type of a generation request's bounds and
// of the generated value in the reply. The tag fixes both the wire width and
// the signedness, so encoding a value under a tag and decoding it under the
// same tag is lossless.
type TypeTag uint8

const (
	TagInvalid TypeTag = 0

	TagBool    TypeTag = 1
	TagInt8    TypeTag = 2
	TagInt16   TypeTag = 3
	TagInt32   TypeTag = 4
	TagInt64   TypeTag = 5
	TagUint8   TypeTag = 6
	TagUint16  TypeTag = 7
	TagUint32  TypeTag = 8
	TagUint64  TypeTag = 9
	TagFloat32 TypeTag = 10
	TagFloat64 TypeTag = 11
)

// Tags lists every supported tag in ascending order. Useful for exhaustive
// tests over the full primitive set.
var Tags = []TypeTag{
	TagBool,
	TagInt8, TagInt16, TagInt32, TagInt64,
	TagUint8, TagUint16, TagUint32, TagUint64,
	TagFloat32, TagFloat64,
}

// Valid reports whether the tag is in the supported set.
func (t TypeTag) Valid() bool {
	return t >= TagBool && t <= TagFloat64
}

// Width returns the wire width of a value of this type, in bytes.
// Returns 0 for invalid tags.
func (t TypeTag) Width() int {
	switch t {
	case TagBool, TagInt8, TagUint8:
		return 1
	case TagInt16, TagUint16:
		return 2
	case TagInt32, TagUint32, TagFloat32:
		return 4
	case TagInt64, TagUint64, TagFloat64:
		return 8
	default:
		return 0
	}
}

// Signed reports whether the tag names a signed integer type.
func (t TypeTag) Signed() bool {
	switch t {
	case TagInt8, TagInt16, TagInt32, TagInt64:
		return true
	default:
		return false
	}
}

// Float reports whether the tag names a floating-point type.
func (t TypeTag) Float() bool {
	return t == TagFloat32 || t == TagFloat64
}

// String returns the Go-style type name for the tag.
func (t TypeTag) String() string {
	switch t {
	case TagBool:
		return "bool"
	case TagInt8:
		return "int8"
	case TagInt16:
		return "int16"
	case TagInt32:
		return "int32"
	case TagInt64:
		return "int64"
	case TagUint8:
		return "uint8"
	case TagUint16:
		return "uint16"
	case TagUint32:
		return "uint32"
	case TagUint64:
		return "uint64"
	case TagFloat32:
		return "float32"
	case TagFloat64:
		return "float64"
	default:
		return "invalid"
	}
}
