// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package encoding

import (
	"math"
	"strconv"
	"strings"

	"github.com/cockroachdb/apd/v3"
	"github.com/cockroachdb/errors"
)

// EncodeDecimalAscending returns the resulting byte slice with the
// encoded decimal appended to b.
//
// The encoding assumes that any finite, non-zero number can be written as
// ±0.xyz... * 10^exp, where xyz is a digit string, x != 0, and the last
// digit in xyz is also not 0. Numerically equal decimals therefore encode
// identically regardless of their scale.
//
// The first byte splits decimals into the ordered groups NaN, -Infinity,
// negative, zero, positive and +Infinity. For positive values the exponent
// follows as a varint, then one byte per digit (digit+1) and a 0x00
// terminator. Negative values encode the negated exponent and complement the
// digit bytes and terminator, so larger magnitudes sort first.
func EncodeDecimalAscending(b []byte, d *apd.Decimal) []byte {
	switch d.Form {
	case apd.NaN, apd.NaNSignaling:
		return append(b, decimalNaN)
	case apd.Infinite:
		if d.Negative {
			return append(b, decimalNegInf)
		}
		return append(b, decimalInf)
	}
	if d.IsZero() {
		return append(b, decimalZero)
	}
	digits, e := decimalDigits(d)
	if d.Negative {
		b = append(b, decimalNeg)
		b = EncodeVarintAscending(b, -e)
		for i := 0; i < len(digits); i++ {
			b = append(b, ^(digits[i]-'0'+1))
		}
		return append(b, ^byte(decimalTerminator))
	}
	b = append(b, decimalPos)
	b = EncodeVarintAscending(b, e)
	for i := 0; i < len(digits); i++ {
		b = append(b, digits[i]-'0'+1)
	}
	return append(b, decimalTerminator)
}

// EncodeDecimalDescending is the descending version of EncodeDecimalAscending.
func EncodeDecimalDescending(b []byte, d *apd.Decimal) []byte {
	n := len(b)
	b = EncodeDecimalAscending(b, d)
	onesComplement(b[n:])
	return b
}

// decimalDigits returns the significant digits of d's coefficient with
// trailing zeros removed, and the exponent e such that |d| = 0.digits * 10^e.
func decimalDigits(d *apd.Decimal) (string, int64) {
	s := d.Coeff.String()
	e := int64(len(s)) + int64(d.Exponent)
	return strings.TrimRight(s, "0"), e
}

// DecodeDecimalAscending returns the remaining byte slice after decoding and
// the decoded decimal from buf. The result is in its reduced form.
func DecodeDecimalAscending(buf []byte) ([]byte, apd.Decimal, error) {
	var d apd.Decimal
	if PeekType(buf) != Decimal {
		return nil, d, errors.Errorf("did not find decimal marker in %x", buf)
	}
	m := buf[0]
	switch m {
	case decimalNaN:
		d.Form = apd.NaN
		return buf[1:], d, nil
	case decimalNegInf:
		d.Form = apd.Infinite
		d.Negative = true
		return buf[1:], d, nil
	case decimalInf:
		d.Form = apd.Infinite
		return buf[1:], d, nil
	case decimalZero:
		return buf[1:], d, nil
	}
	neg := m == decimalNeg
	b, e, err := DecodeVarintAscending(buf[1:])
	if err != nil {
		return nil, d, err
	}
	term := byte(decimalTerminator)
	if neg {
		e = -e
		term = ^term
	}
	var digits strings.Builder
	for i := 0; ; i++ {
		if i >= len(b) {
			return nil, d, errors.Errorf("did not find decimal terminator in %x", buf)
		}
		c := b[i]
		if c == term {
			b = b[i+1:]
			break
		}
		if neg {
			c = ^c
		}
		if c < 1 || c > 10 {
			return nil, d, errors.Errorf("invalid decimal digit %#x in %x", b[i], buf)
		}
		digits.WriteByte('0' + c - 1)
	}
	exp := e - int64(digits.Len())
	if exp < math.MinInt32 || exp > math.MaxInt32 {
		return nil, d, errors.Errorf("decimal exponent %d out of range", exp)
	}
	s := digits.String() + "E" + strconv.FormatInt(exp, 10)
	if neg {
		s = "-" + s
	}
	if _, _, err := d.SetString(s); err != nil {
		return nil, d, errors.Wrapf(err, "decoding decimal %x", buf)
	}
	return b, d, nil
}

// DecodeDecimalDescending decodes decimals encoded with EncodeDecimalDescending.
func DecodeDecimalDescending(buf []byte) ([]byte, apd.Decimal, error) {
	rest, tmp, err := descendingCopy(buf)
	if err != nil {
		return nil, apd.Decimal{}, err
	}
	_, d, err := DecodeDecimalAscending(tmp)
	return rest, d, err
}
