// Copyright (C) 2026 Kodiak AI (jmercer@kodiakai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package client

import (
	"context"
	"fmt"

	"github.com/KodiakAI/KodiakFuzz/services/valgen/wire"
)

// Primitive is the set of Go types the protocol can generate. Plain int and
// uint travel as their 64-bit tags.
type Primitive interface {
	bool |
		int | int8 | int16 | int32 | int64 |
		uint | uint8 | uint16 | uint32 | uint64 |
		float32 | float64
}

// Between draws a uniformly random value in [lo, hi] from the session.
// callSite identifies the decision point in the instrumented program; calls
// from the same site should pass the same id.
//
// Outputs:
//
//	T - The generated value, within the requested bounds.
//	error - ErrUnsupported when lo > hi, ErrClosed after NotifyExit,
//	    or a transport error.
func Between[T Primitive](ctx context.Context, c *Client, lo, hi T, callSite uint64) (T, error) {
	var zero T

	loVal := toWire(lo)
	hiVal := toWire(hi)

	req := wire.NewMessage().
		AppendByte(wire.FlagGenerate).
		AppendUint64(callSite).
		AppendByte(byte(loVal.Tag)).
		AppendValue(loVal).
		AppendValue(hiVal)

	reply, err := c.roundTrip(ctx, req)
	if err != nil {
		return zero, err
	}

	status, err := statusOf(reply)
	if err != nil {
		return zero, err
	}
	if status != wire.StatusValue {
		return zero, fmt.Errorf("%w: status %s to generation request", ErrBadReply, status)
	}

	v, err := wire.DecodeValue(loVal.Tag, reply.Part(1))
	if err != nil {
		return zero, fmt.Errorf("%w: %v", ErrBadReply, err)
	}
	return fromWire[T](v), nil
}

// toWire maps a Go primitive onto its wire value.
func toWire[T Primitive](v T) wire.Value {
	switch x := any(v).(type) {
	case bool:
		return wire.BoolValue(x)
	case int:
		return wire.IntValue(wire.TagInt64, int64(x))
	case int8:
		return wire.IntValue(wire.TagInt8, int64(x))
	case int16:
		return wire.IntValue(wire.TagInt16, int64(x))
	case int32:
		return wire.IntValue(wire.TagInt32, int64(x))
	case int64:
		return wire.IntValue(wire.TagInt64, x)
	case uint:
		return wire.UintValue(wire.TagUint64, uint64(x))
	case uint8:
		return wire.UintValue(wire.TagUint8, uint64(x))
	case uint16:
		return wire.UintValue(wire.TagUint16, uint64(x))
	case uint32:
		return wire.UintValue(wire.TagUint32, uint64(x))
	case uint64:
		return wire.UintValue(wire.TagUint64, x)
	case float32:
		return wire.Float32Value(x)
	case float64:
		return wire.Float64Value(x)
	default:
		// Unreachable: the constraint admits only the cases above.
		panic(fmt.Sprintf("unsupported primitive type %T", v))
	}
}

func fromWire[T Primitive](v wire.Value) T {
	var out T
	switch any(out).(type) {
	case bool:
		out = any(v.Bool()).(T)
	case int:
		out = any(int(v.Int64())).(T)
	case int8:
		out = any(int8(v.Int64())).(T)
	case int16:
		out = any(int16(v.Int64())).(T)
	case int32:
		out = any(int32(v.Int64())).(T)
	case int64:
		out = any(v.Int64()).(T)
	case uint:
		out = any(uint(v.Uint64())).(T)
	case uint8:
		out = any(uint8(v.Uint64())).(T)
	case uint16:
		out = any(uint16(v.Uint64())).(T)
	case uint32:
		out = any(uint32(v.Uint64())).(T)
	case uint64:
		out = any(v.Uint64()).(T)
	case float32:
		out = any(float32(v.Float64())).(T)
	case float64:
		out = any(v.Float64()).(T)
	}
	return out
}
