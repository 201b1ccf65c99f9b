// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package encoding implements the order-preserving byte encodings used to
// build keys. Every encoding appends to a caller supplied buffer and is
// prefix-free, so encoded values can be concatenated and still compare
// component by component with bytes.Compare.
//
// The descending form of every value is the ones complement of its ascending
// form. All ascending value markers fall in [0x02, 0xfd]; EMPTY (0xfe) and
// NULL (0xff) sort after every real value ascending and before every real
// value descending.
package encoding

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	"unsafe"

	"github.com/cockroachdb/apd/v3"
	"github.com/cockroachdb/errors"
)

const (
	floatNaN  = 0x05
	floatNeg  = floatNaN + 1
	floatZero = floatNeg + 1
	floatPos  = floatZero + 1

	// The gap between floatPos and bytesMarker is unused.
	bytesMarker byte = 0x12
	timeMarker  byte = 0x14

	decimalNaN        = 0x18
	decimalNegInf     = decimalNaN + 1
	decimalNeg        = decimalNegInf + 1
	decimalZero       = decimalNeg + 1
	decimalPos        = decimalZero + 1
	decimalInf        = decimalPos + 1
	decimalTerminator = 0x00

	// IntMin is chosen such that the range of int tags does not overlap the
	// ascii character set that is frequently used in testing.
	IntMin      = 0x80
	intMaxWidth = 8
	intZero     = IntMin + intMaxWidth
	intSmall    = IntMax - intZero - intMaxWidth // 109
	// IntMax is the maximum int tag value.
	IntMax = 0xfd

	encodedEmpty = 0xfe
	encodedNull  = 0xff
)

// Direction for ordering results.
type Direction int

// Direction values.
const (
	_ Direction = iota
	Ascending
	Descending
)

func (d Direction) String() string {
	switch d {
	case Ascending:
		return "ASC"
	case Descending:
		return "DESC"
	default:
		return fmt.Sprintf("Direction(%d)", int(d))
	}
}

// ParseDirection parses "asc"/"desc" in any case. The empty string is
// Ascending.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(s) {
	case "", "asc", "ascending":
		return Ascending, nil
	case "desc", "descending":
		return Descending, nil
	}
	return 0, errors.Newf("invalid direction %q", s)
}

// EncodeUint32Ascending encodes the uint32 value using a big-endian 4 byte
// representation. The bytes are appended to the supplied buffer and
// the final buffer is returned.
func EncodeUint32Ascending(b []byte, v uint32) []byte {
	return append(b, byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}

// DecodeUint32Ascending decodes a uint32 from the input buffer, treating
// the input as a big-endian 4 byte uint32 representation. The remainder
// of the input buffer and the decoded uint32 are returned.
func DecodeUint32Ascending(b []byte) ([]byte, uint32, error) {
	if len(b) < 4 {
		return nil, 0, errors.Errorf("insufficient bytes to decode uint32 int value")
	}
	v := (uint32(b[0]) << 24) | (uint32(b[1]) << 16) |
		(uint32(b[2]) << 8) | uint32(b[3])
	return b[4:], v, nil
}

// EncodeUint64Ascending encodes the uint64 value using a big-endian 8 byte
// representation. The bytes are appended to the supplied buffer and
// the final buffer is returned.
func EncodeUint64Ascending(b []byte, v uint64) []byte {
	return append(b,
		byte(v>>56), byte(v>>48), byte(v>>40), byte(v>>32),
		byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}

// DecodeUint64Ascending decodes a uint64 from the input buffer, treating
// the input as a big-endian 8 byte uint64 representation. The remainder
// of the input buffer and the decoded uint64 are returned.
func DecodeUint64Ascending(b []byte) ([]byte, uint64, error) {
	if len(b) < 8 {
		return nil, 0, errors.Errorf("insufficient bytes to decode uint64 int value")
	}
	v := (uint64(b[0]) << 56) | (uint64(b[1]) << 48) |
		(uint64(b[2]) << 40) | (uint64(b[3]) << 32) |
		(uint64(b[4]) << 24) | (uint64(b[5]) << 16) |
		(uint64(b[6]) << 8) | uint64(b[7])
	return b[8:], v, nil
}

// EncodeVarintAscending encodes the int64 value using a variable length
// (length-prefixed) representation. The length is encoded as a single
// byte. If the value to be encoded is negative the length is encoded
// as 8-numBytes. If the value is positive it is encoded as
// 8+numBytes. The encoded bytes are appended to the supplied buffer
// and the final buffer is returned.
func EncodeVarintAscending(b []byte, v int64) []byte {
	if v < 0 {
		switch {
		case v >= -0xff:
			return append(b, IntMin+7, byte(v))
		case v >= -0xffff:
			return append(b, IntMin+6, byte(v>>8), byte(v))
		case v >= -0xffffff:
			return append(b, IntMin+5, byte(v>>16), byte(v>>8), byte(v))
		case v >= -0xffffffff:
			return append(b, IntMin+4, byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
		case v >= -0xffffffffff:
			return append(b, IntMin+3, byte(v>>32), byte(v>>24), byte(v>>16), byte(v>>8),
				byte(v))
		case v >= -0xffffffffffff:
			return append(b, IntMin+2, byte(v>>40), byte(v>>32), byte(v>>24), byte(v>>16),
				byte(v>>8), byte(v))
		case v >= -0xffffffffffffff:
			return append(b, IntMin+1, byte(v>>48), byte(v>>40), byte(v>>32), byte(v>>24),
				byte(v>>16), byte(v>>8), byte(v))
		default:
			return append(b, IntMin, byte(v>>56), byte(v>>48), byte(v>>40), byte(v>>32),
				byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
		}
	}
	return EncodeUvarintAscending(b, uint64(v))
}

// EncodeVarintDescending encodes the int64 value so that it sorts in reverse
// order, from largest to smallest.
func EncodeVarintDescending(b []byte, v int64) []byte {
	n := len(b)
	b = EncodeVarintAscending(b, v)
	onesComplement(b[n:])
	return b
}

// DecodeVarintAscending decodes a value encoded by EncodeVarintAscending.
func DecodeVarintAscending(b []byte) ([]byte, int64, error) {
	if len(b) == 0 {
		return nil, 0, errors.Errorf("insufficient bytes to decode varint value")
	}
	length := int(b[0]) - intZero
	if length < 0 {
		length = -length
		remB := b[1:]
		if len(remB) < length {
			return nil, 0, errors.Errorf("insufficient bytes to decode varint value: %x", remB)
		}
		var v int64
		// Use the ones-complement of each encoded byte in order to build
		// up a positive number, then take the ones-complement again to
		// arrive at our negative value.
		for _, t := range remB[:length] {
			v = (v << 8) | int64(^t)
		}
		return remB[length:], ^v, nil
	}

	remB, v, err := DecodeUvarintAscending(b)
	if err != nil {
		return remB, 0, err
	}
	if v > math.MaxInt64 {
		return nil, 0, errors.Errorf("varint %d overflows int64", v)
	}
	return remB, int64(v), nil
}

// DecodeVarintDescending decodes a value encoded by EncodeVarintDescending.
func DecodeVarintDescending(b []byte) ([]byte, int64, error) {
	rest, tmp, err := descendingCopy(b)
	if err != nil {
		return nil, 0, err
	}
	_, v, err := DecodeVarintAscending(tmp)
	return rest, v, err
}

// EncodeUvarintAscending encodes the uint64 value using a variable length
// (length-prefixed) representation. The length is encoded as a single
// byte indicating the number of encoded bytes (-8) to follow. See
// EncodeVarintAscending for rationale. The encoded bytes are appended to the
// supplied buffer and the final buffer is returned.
func EncodeUvarintAscending(b []byte, v uint64) []byte {
	switch {
	case v <= intSmall:
		return append(b, intZero+byte(v))
	case v <= 0xff:
		return append(b, IntMax-7, byte(v))
	case v <= 0xffff:
		return append(b, IntMax-6, byte(v>>8), byte(v))
	case v <= 0xffffff:
		return append(b, IntMax-5, byte(v>>16), byte(v>>8), byte(v))
	case v <= 0xffffffff:
		return append(b, IntMax-4, byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
	case v <= 0xffffffffff:
		return append(b, IntMax-3, byte(v>>32), byte(v>>24), byte(v>>16), byte(v>>8),
			byte(v))
	case v <= 0xffffffffffff:
		return append(b, IntMax-2, byte(v>>40), byte(v>>32), byte(v>>24), byte(v>>16),
			byte(v>>8), byte(v))
	case v <= 0xffffffffffffff:
		return append(b, IntMax-1, byte(v>>48), byte(v>>40), byte(v>>32), byte(v>>24),
			byte(v>>16), byte(v>>8), byte(v))
	default:
		return append(b, IntMax, byte(v>>56), byte(v>>48), byte(v>>40), byte(v>>32),
			byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
	}
}

// EncodeUvarintDescending encodes the uint64 value so that it sorts in
// reverse order, from largest to smallest.
func EncodeUvarintDescending(b []byte, v uint64) []byte {
	n := len(b)
	b = EncodeUvarintAscending(b, v)
	onesComplement(b[n:])
	return b
}

// DecodeUvarintAscending decodes a varint encoded uint64 from the input
// buffer. The remainder of the input buffer and the decoded uint64
// are returned.
func DecodeUvarintAscending(b []byte) ([]byte, uint64, error) {
	if len(b) == 0 {
		return nil, 0, errors.Errorf("insufficient bytes to decode uvarint value")
	}
	length := int(b[0]) - intZero
	if length < 0 {
		return nil, 0, errors.Errorf("invalid uvarint tag %#x", b[0])
	}
	b = b[1:] // skip length byte
	if length <= intSmall {
		return b, uint64(length), nil
	}
	length -= intSmall
	if length < 0 || length > 8 {
		return nil, 0, errors.Errorf("invalid uvarint length of %d", length)
	} else if len(b) < length {
		return nil, 0, errors.Errorf("insufficient bytes to decode uvarint value: %x", b)
	}
	var v uint64
	// It is faster to range over the elements in a slice than to index
	// into the slice on each loop iteration.
	for _, t := range b[:length] {
		v = (v << 8) | uint64(t)
	}
	return b[length:], v, nil
}

// DecodeUvarintDescending decodes a uint64 value which was encoded
// using EncodeUvarintDescending.
func DecodeUvarintDescending(b []byte) ([]byte, uint64, error) {
	rest, tmp, err := descendingCopy(b)
	if err != nil {
		return nil, 0, err
	}
	_, v, err := DecodeUvarintAscending(tmp)
	return rest, v, err
}

// varintLen returns the encoded length of the varint or uvarint whose tag
// byte is tag, or -1 if tag is not an int tag.
func varintLen(tag byte) int {
	if tag < IntMin || tag > IntMax {
		return -1
	}
	length := int(tag) - intZero
	if length < 0 {
		return 1 - length
	}
	if length <= intSmall {
		return 1
	}
	return 1 + length - intSmall
}

const (
	// <term>     -> \x00\x01
	// \x00       -> \x00\xff
	escape      byte = 0x00
	escapedTerm byte = 0x01
	escaped00   byte = 0xff
	escapedFF   byte = 0x00
)

// EncodeBytesAscending encodes the []byte value using an escape-based
// encoding. The encoded value is terminated with the sequence
// "\x00\x01" which is guaranteed to not occur elsewhere in the
// encoded value. The encoded bytes are append to the supplied buffer
// and the resulting buffer is returned.
func EncodeBytesAscending(b []byte, data []byte) []byte {
	b = append(b, bytesMarker)
	for {
		// IndexByte is implemented by the go runtime in assembly and is
		// much faster than looping over the bytes in the slice.
		i := bytes.IndexByte(data, escape)
		if i == -1 {
			break
		}
		b = append(b, data[:i]...)
		b = append(b, escape, escaped00)
		data = data[i+1:]
	}
	b = append(b, data...)
	return append(b, escape, escapedTerm)
}

// EncodeBytesDescending encodes the []byte value using an
// escape-based encoding and then inverts (ones complement) the result
// so that it sorts in reverse order, from larger to smaller
// lexicographically.
func EncodeBytesDescending(b []byte, data []byte) []byte {
	n := len(b)
	b = EncodeBytesAscending(b, data)
	onesComplement(b[n:])
	return b
}

// DecodeBytesAscending decodes a []byte value from the input buffer
// which was encoded using EncodeBytesAscending. The decoded bytes
// are appended to r. The remainder of the input buffer and the
// decoded []byte are returned.
func DecodeBytesAscending(b []byte, r []byte) ([]byte, []byte, error) {
	if len(b) == 0 || b[0] != bytesMarker {
		return nil, nil, errors.Errorf("did not find marker %#x in buffer %#x", bytesMarker, b)
	}
	b = b[1:]
	for {
		i := bytes.IndexByte(b, escape)
		if i == -1 {
			return nil, nil, errors.Errorf("did not find terminator %#x in buffer %#x", escape, b)
		}
		if i+1 >= len(b) {
			return nil, nil, errors.Errorf("malformed escape in buffer %#x", b)
		}
		v := b[i+1]
		if v == escapedTerm {
			if r == nil {
				r = b[:i]
			} else {
				r = append(r, b[:i]...)
			}
			return b[i+2:], r, nil
		}
		if v != escaped00 {
			return nil, nil, errors.Errorf("unknown escape sequence: %#x %#x", escape, v)
		}
		r = append(r, b[:i]...)
		r = append(r, escapedFF)
		b = b[i+2:]
	}
}

// DecodeBytesDescending decodes a []byte value from the input buffer
// which was encoded using EncodeBytesDescending. The decoded bytes
// are appended to r. The remainder of the input buffer and the
// decoded []byte are returned.
func DecodeBytesDescending(b []byte, r []byte) ([]byte, []byte, error) {
	rest, tmp, err := descendingCopy(b)
	if err != nil {
		return nil, nil, err
	}
	_, v, err := DecodeBytesAscending(tmp, r)
	return rest, v, err
}

// EncodeStringAscending encodes the string value using an escape-based
// encoding. See EncodeBytesAscending for details.
func EncodeStringAscending(b []byte, s string) []byte {
	return EncodeBytesAscending(b, unsafeBytes(s))
}

// EncodeStringDescending is the descending version of EncodeStringAscending.
func EncodeStringDescending(b []byte, s string) []byte {
	return EncodeBytesDescending(b, unsafeBytes(s))
}

// unsafeBytes returns a []byte sharing memory with s. The encoders never
// retain or modify their input.
func unsafeBytes(s string) []byte {
	if len(s) == 0 {
		return nil
	}
	return unsafe.Slice(unsafe.StringData(s), len(s))
}

// DecodeStringAscending decodes a string value from the input buffer which
// was encoded using EncodeStringAscending or EncodeBytesAscending. The
// returned string never aliases b.
func DecodeStringAscending(b []byte) ([]byte, string, error) {
	b, r, err := DecodeBytesAscending(b, nil)
	return b, string(r), err
}

// DecodeStringDescending is the descending version of DecodeStringAscending.
func DecodeStringDescending(b []byte) ([]byte, string, error) {
	b, r, err := DecodeBytesDescending(b, nil)
	return b, string(r), err
}

// EncodeNullAscending encodes a NULL value. NULL sorts after every other
// ascending encoding, including EMPTY.
func EncodeNullAscending(b []byte) []byte {
	return append(b, encodedNull)
}

// EncodeNullDescending is the descending equivalent of EncodeNullAscending.
func EncodeNullDescending(b []byte) []byte {
	return append(b, ^byte(encodedNull))
}

// EncodeEmptyAscending encodes the EMPTY marker used for index paths that
// do not exist in a row. It sorts after every value but before NULL.
func EncodeEmptyAscending(b []byte) []byte {
	return append(b, encodedEmpty)
}

// EncodeEmptyDescending is the descending equivalent of EncodeEmptyAscending.
func EncodeEmptyDescending(b []byte) []byte {
	return append(b, ^byte(encodedEmpty))
}

// DecodeIfNull decodes a NULL value from the input buffer. If the input
// buffer contains a null at the start of the buffer then it is removed from
// the buffer and true is returned for the second result. Otherwise, the
// buffer is returned unchanged and false is returned for the second result.
// This function handles both ascendingly and descendingly encoded NULLs.
func DecodeIfNull(b []byte) ([]byte, bool) {
	if PeekType(b) == Null {
		return b[1:], true
	}
	return b, false
}

// DecodeIfEmpty is like DecodeIfNull for the EMPTY marker.
func DecodeIfEmpty(b []byte) ([]byte, bool) {
	if PeekType(b) == Empty {
		return b[1:], true
	}
	return b, false
}

// EncodeTimeAscending encodes a time value, appends it to the supplied buffer,
// and returns the final buffer. The encoding is guaranteed to be ordered
// such that if t1.Before(t2) then after EncodeTimeAscending(b1, t1), and
// EncodeTimeAscending(b2, t2), bytes.Compare(b1, b2) < 0. The time zone
// offset is not included in the encoding.
func EncodeTimeAscending(b []byte, t time.Time) []byte {
	b = append(b, timeMarker)
	b = EncodeVarintAscending(b, t.Unix())
	return EncodeVarintAscending(b, int64(t.Nanosecond()))
}

// EncodeTimeDescending is the descending version of EncodeTimeAscending.
func EncodeTimeDescending(b []byte, t time.Time) []byte {
	n := len(b)
	b = EncodeTimeAscending(b, t)
	onesComplement(b[n:])
	return b
}

// DecodeTimeAscending decodes a time.Time value which was encoded using
// EncodeTimeAscending. The decoded time is in UTC.
func DecodeTimeAscending(b []byte) ([]byte, time.Time, error) {
	if PeekType(b) != Time {
		return nil, time.Time{}, errors.Errorf("did not find time marker in %x", b)
	}
	b, sec, err := DecodeVarintAscending(b[1:])
	if err != nil {
		return b, time.Time{}, err
	}
	b, nsec, err := DecodeVarintAscending(b)
	if err != nil {
		return b, time.Time{}, err
	}
	return b, time.Unix(sec, nsec).UTC(), nil
}

// DecodeTimeDescending is the descending version of DecodeTimeAscending.
func DecodeTimeDescending(b []byte) ([]byte, time.Time, error) {
	rest, tmp, err := descendingCopy(b)
	if err != nil {
		return nil, time.Time{}, err
	}
	_, t, err := DecodeTimeAscending(tmp)
	return rest, t, err
}

// Type represents the type of a value encoded by this package.
type Type int

// Type values.
const (
	Unknown Type = iota
	Null
	Empty
	Int
	Float
	Decimal
	Bytes
	Time
)

// PeekType peeks at the type of the ascending value encoded at the start of
// b. Null and Empty are recognized in both directions.
func PeekType(b []byte) Type {
	if len(b) >= 1 {
		m := b[0]
		switch {
		case m == encodedNull, m == ^byte(encodedNull):
			return Null
		case m == encodedEmpty, m == ^byte(encodedEmpty):
			return Empty
		case m == bytesMarker:
			return Bytes
		case m == timeMarker:
			return Time
		case m >= IntMin && m <= IntMax:
			return Int
		case m >= floatNaN && m <= floatPos:
			return Float
		case m >= decimalNaN && m <= decimalInf:
			return Decimal
		}
	}
	return Unknown
}

// PeekLength returns the length of the value at the start of b, which may
// be encoded in either direction. dir selects how the marker byte is read.
func PeekLength(b []byte, dir Direction) (int, error) {
	var x byte
	if dir == Descending {
		x = 0xff
	}
	return peekLength(b, x)
}

// peekLength reads every byte of b XOR x, so the same code measures
// ascending (x=0) and descending (x=0xff) encodings.
func peekLength(b []byte, x byte) (int, error) {
	if len(b) == 0 {
		return 0, errors.Errorf("empty slice")
	}
	m := b[0] ^ x
	switch {
	case m == encodedNull, m == encodedEmpty:
		return 1, nil
	case m == floatNaN, m == floatZero:
		return 1, nil
	case m == floatNeg, m == floatPos:
		if len(b) < 9 {
			return 0, errors.Errorf("insufficient bytes for float: %x", b)
		}
		return 9, nil
	case m >= IntMin && m <= IntMax:
		n := varintLen(m)
		if len(b) < n {
			return 0, errors.Errorf("insufficient bytes for varint: %x", b)
		}
		return n, nil
	case m == bytesMarker:
		for i := 1; i+1 < len(b); i++ {
			if b[i]^x != escape {
				continue
			}
			if b[i+1]^x == escapedTerm {
				return i + 2, nil
			}
			i++
		}
		return 0, errors.Errorf("did not find terminator in buffer %x", b)
	case m == timeMarker:
		n := 1
		for j := 0; j < 2; j++ {
			if len(b) <= n {
				return 0, errors.Errorf("insufficient bytes for time: %x", b)
			}
			l := varintLen(b[n] ^ x)
			if l < 0 || len(b) < n+l {
				return 0, errors.Errorf("malformed time encoding: %x", b)
			}
			n += l
		}
		return n, nil
	case m == decimalNaN, m == decimalNegInf, m == decimalZero, m == decimalInf:
		return 1, nil
	case m == decimalNeg, m == decimalPos:
		if len(b) < 2 {
			return 0, errors.Errorf("insufficient bytes for decimal: %x", b)
		}
		l := varintLen(b[1] ^ x)
		if l < 0 || len(b) < 1+l {
			return 0, errors.Errorf("malformed decimal exponent: %x", b)
		}
		term := byte(decimalTerminator)
		if m == decimalNeg {
			term = ^term
		}
		idx := bytes.IndexByte(b[1+l:], term^x)
		if idx == -1 {
			return 0, errors.Errorf("did not find decimal terminator in %x", b)
		}
		return 1 + l + idx + 1, nil
	}
	return 0, errors.Errorf("unknown tag %#x", m)
}

// descendingCopy splits the descending value at the start of b off and
// returns the remainder together with an ascending copy of the value.
func descendingCopy(b []byte) (rest []byte, asc []byte, err error) {
	n, err := peekLength(b, 0xff)
	if err != nil {
		return nil, nil, err
	}
	asc = make([]byte, n)
	copy(asc, b[:n])
	onesComplement(asc)
	return b[n:], asc, nil
}

// PrettyPrintValue returns the string representation of all contiguous
// decodable values in the provided byte slice, separated by a provided
// separator. Values are assumed to be encoded ascending.
func PrettyPrintValue(b []byte, sep string) string {
	var buf strings.Builder
	for len(b) > 0 {
		bb, s, err := prettyPrintFirstValue(b)
		if err != nil {
			fmt.Fprintf(&buf, "%s<%v>", sep, err)
			return buf.String()
		}
		fmt.Fprintf(&buf, "%s%s", sep, s)
		b = bb
	}
	return buf.String()
}

// prettyPrintFirstValue returns a string representation of the first decodable
// value in the provided byte slice, along with the remaining byte slice
// after decoding.
func prettyPrintFirstValue(b []byte) ([]byte, string, error) {
	var err error
	switch PeekType(b) {
	case Null:
		b, _ = DecodeIfNull(b)
		return b, "NULL", nil
	case Empty:
		b, _ = DecodeIfEmpty(b)
		return b, "EMPTY", nil
	case Int:
		var i int64
		b, i, err = DecodeVarintAscending(b)
		if err != nil {
			return b, "", err
		}
		return b, strconv.FormatInt(i, 10), nil
	case Float:
		var f float64
		b, f, err = DecodeFloatAscending(b)
		if err != nil {
			return b, "", err
		}
		return b, strconv.FormatFloat(f, 'g', -1, 64), nil
	case Decimal:
		var d apd.Decimal
		b, d, err = DecodeDecimalAscending(b)
		if err != nil {
			return b, "", err
		}
		return b, d.String(), nil
	case Bytes:
		var s string
		b, s, err = DecodeStringAscending(b)
		if err != nil {
			return b, "", err
		}
		return b, strconv.Quote(s), nil
	case Time:
		var t time.Time
		b, t, err = DecodeTimeAscending(b)
		if err != nil {
			return b, "", err
		}
		return b, t.Format(time.RFC3339Nano), nil
	default:
		return nil, "", errors.Errorf("unknown tag in %x", b)
	}
}
