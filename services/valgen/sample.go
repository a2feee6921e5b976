// Copyright (C) 2026 Kodiak AI (jmercer@kodiakai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package valgen

import (
	"math"
	"math/rand/v2"
	"sync"

	"github.com/KodiakAI/KodiakFuzz/services/valgen/wire"
)

// Sampler draws uniformly distributed values within typed bounds from a
// single deterministic pseudorandom source.
//
// The source is seeded once at construction and never reseeded: the same
// seed and the same request sequence reproduce the same values. All sessions
// share one Sampler, so draws are serialized behind the internal mutex.
type Sampler struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewSampler creates a sampler backed by a PCG source with the given seed.
func NewSampler(seed uint64) *Sampler {
	return &Sampler{rng: rand.New(rand.NewPCG(seed, 0))}
}

// Between returns a uniform value v with lo <= v <= hi under the tag's
// ordering.
//
// Equal bounds return lo exactly without consuming entropy, for every tag.
// Integer spans are computed in the uint64 domain so the full int64/uint64
// range works without overflow. Floating bounds must be finite; NaN and
// infinite bounds are rejected, since no uniform draw can satisfy
// lo <= v <= hi over them. Finite floating bounds sample a continuous
// uniform over [lo, hi]; exact inclusion of hi is not guaranteed (and not
// needed) except in the equal-bounds case.
//
// Outputs:
//
//	wire.Value - The sampled value, carrying the request's tag.
//	error - ErrTagMismatch, ErrUnsupportedTag, or ErrInvalidBounds on a
//	        caller contract violation. Nothing is drawn on error.
func (s *Sampler) Between(lo, hi wire.Value) (wire.Value, error) {
	if lo.Tag != hi.Tag {
		return wire.Value{}, ErrTagMismatch
	}
	if !lo.Tag.Valid() {
		return wire.Value{}, ErrUnsupportedTag
	}
	if !wire.LessEq(lo, hi) {
		return wire.Value{}, ErrInvalidBounds
	}
	if lo.Tag.Float() && (!isFinite(lo.Float64()) || !isFinite(hi.Float64())) {
		return wire.Value{}, ErrInvalidBounds
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case lo.Tag == wire.TagBool:
		return s.betweenBool(lo, hi), nil
	case lo.Tag.Float():
		return s.betweenFloat(lo, hi), nil
	default:
		return s.betweenInteger(lo, hi), nil
	}
}

// betweenBool collapses the bounds to truth values with the same
// any-nonzero reading as Value.Bool, then flips an unbiased coin when they
// differ. The result carries canonical bits.
func (s *Sampler) betweenBool(lo, hi wire.Value) wire.Value {
	l, h := lo.Bits != 0, hi.Bits != 0
	if l == h {
		return wire.BoolValue(l)
	}
	return wire.BoolValue(s.rng.Uint64N(2) != 0)
}

// betweenInteger handles all eight integer tags in the uint64 domain.
//
// For signed tags the Bits containers hold sign-extended two's complement,
// so hi.Bits-lo.Bits is the span regardless of sign, and adding the offset
// back to lo.Bits lands inside [lo, hi] with wraparound doing the right
// thing.
func (s *Sampler) betweenInteger(lo, hi wire.Value) wire.Value {
	span := hi.Bits - lo.Bits
	if span == 0 {
		return lo
	}

	var off uint64
	if span == math.MaxUint64 {
		// Full-range request: span+1 would overflow to zero.
		off = s.rng.Uint64()
	} else {
		off = s.rng.Uint64N(span + 1)
	}
	return wire.Value{Tag: lo.Tag, Bits: lo.Bits + off}
}

// betweenFloat samples lo + U*(hi-lo) in float64 space, falling back to a
// convex combination when the difference overflows, and clamps the result
// into [lo, hi] against rounding drift. Float32 values are computed in
// float64 and converted back.
func (s *Sampler) betweenFloat(lo, hi wire.Value) wire.Value {
	l, h := lo.Float64(), hi.Float64()
	if l == h {
		return lo
	}

	u := s.rng.Float64()
	var v float64
	if d := h - l; math.IsInf(d, 0) {
		v = l*(1-u) + h*u
	} else {
		v = l + u*d
	}
	if v < l {
		v = l
	}
	if v > h {
		v = h
	}

	if lo.Tag == wire.TagFloat32 {
		f := float32(v)
		if f < float32(l) {
			f = float32(l)
		}
		if f > float32(h) {
			f = float32(h)
		}
		return wire.Float32Value(f)
	}
	return wire.Float64Value(v)
}

func isFinite(f float64) bool {
	return !math.IsInf(f, 0) && !math.IsNaN(f)
}
