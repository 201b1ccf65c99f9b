// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package encoding

import (
	"math"

	"github.com/cockroachdb/errors"
)

// EncodeFloatAscending returns the resulting byte slice with the encoded float64
// appended to b. The encoded format for a float64 value f is, for positive f, the
// encoding of the 64 bits (in IEEE 754 format) re-interpreted as a uint64 and
// encoded using EncodeUint64Ascending. For negative f, all bits are inverted
// before encoding. This approach was inspired by in
// github.com/google/orderedcode/orderedcode.go.
//
// One of four single-byte prefix tags is appended to the front of the encoding.
// The tags split the encoded floats into four categories:
// - NaN
// - Negative valued floats
// - Zero (positive and negative)
// - Positive valued floats
func EncodeFloatAscending(b []byte, f float64) []byte {
	// Handle the simplistic cases first.
	switch {
	case math.IsNaN(f):
		return append(b, floatNaN)
	case f == 0:
		// This encodes both positive and negative zero the same.
		return append(b, floatZero)
	}
	u := math.Float64bits(f)
	if u&(1<<63) != 0 {
		u = ^u
		b = append(b, floatNeg)
	} else {
		b = append(b, floatPos)
	}
	return EncodeUint64Ascending(b, u)
}

// EncodeFloatDescending is the descending version of EncodeFloatAscending.
func EncodeFloatDescending(b []byte, f float64) []byte {
	n := len(b)
	b = EncodeFloatAscending(b, f)
	onesComplement(b[n:])
	return b
}

// DecodeFloatAscending returns the remaining byte slice after decoding and the decoded
// float64 from buf.
func DecodeFloatAscending(buf []byte) ([]byte, float64, error) {
	if PeekType(buf) != Float {
		return buf, 0, errors.Errorf("did not find marker in %x", buf)
	}
	switch buf[0] {
	case floatNaN:
		return buf[1:], math.NaN(), nil
	case floatZero:
		return buf[1:], 0, nil
	case floatNeg:
		b, u, err := DecodeUint64Ascending(buf[1:])
		if err != nil {
			return b, 0, err
		}
		return b, math.Float64frombits(^u), nil
	case floatPos:
		b, u, err := DecodeUint64Ascending(buf[1:])
		if err != nil {
			return b, 0, err
		}
		return b, math.Float64frombits(u), nil
	default:
		return nil, 0, errors.Errorf("unknown prefix of the encoded byte slice: %x", buf)
	}
}

// DecodeFloatDescending decodes floats encoded with EncodeFloatDescending.
func DecodeFloatDescending(buf []byte) ([]byte, float64, error) {
	rest, tmp, err := descendingCopy(buf)
	if err != nil {
		return nil, 0, err
	}
	_, f, err := DecodeFloatAscending(tmp)
	return rest, f, err
}
