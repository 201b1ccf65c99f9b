// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package protoutil encodes messages in the protobuf wire format. Messages
// write their own fields through an Encoder and read them back through a
// Decoder that skips fields it does not know, so a reader built against an
// older message definition accepts data produced by a newer writer.
package protoutil

import (
	"math"

	"github.com/cockroachdb/errors"
	"github.com/gogo/protobuf/proto"
	"github.com/golang/snappy"
)

// Protobuf wire types.
const (
	WireVarint  = 0
	WireFixed64 = 1
	WireBytes   = 2
	WireFixed32 = 5
)

// Message is implemented by types that marshal themselves in the wire format.
type Message interface {
	MarshalTo(e *Encoder)
	UnmarshalFrom(d *Decoder) error
}

// Encoder appends wire format fields to a buffer. Scalar fields holding the
// zero value are omitted.
type Encoder struct {
	buf proto.Buffer
}

// Bytes returns the encoded buffer.
func (e *Encoder) Bytes() []byte { return e.buf.Bytes() }

// The proto.Buffer encoders used here never fail.
func (e *Encoder) tag(field int, wire int) {
	_ = e.buf.EncodeVarint(uint64(field)<<3 | uint64(wire))
}

// Uvarint encodes an unsigned integer field.
func (e *Encoder) Uvarint(field int, v uint64) {
	if v == 0 {
		return
	}
	e.tag(field, WireVarint)
	_ = e.buf.EncodeVarint(v)
}

// Varint encodes a signed integer field using zigzag encoding.
func (e *Encoder) Varint(field int, v int64) {
	if v == 0 {
		return
	}
	e.tag(field, WireVarint)
	_ = e.buf.EncodeZigzag64(uint64(v))
}

// Bool encodes a boolean field.
func (e *Encoder) Bool(field int, v bool) {
	if v {
		e.Uvarint(field, 1)
	}
}

// Float64 encodes a double field.
func (e *Encoder) Float64(field int, v float64) {
	if v == 0 {
		return
	}
	e.tag(field, WireFixed64)
	_ = e.buf.EncodeFixed64(math.Float64bits(v))
}

// Text encodes a string field.
func (e *Encoder) Text(field int, s string) {
	if s == "" {
		return
	}
	e.tag(field, WireBytes)
	_ = e.buf.EncodeStringBytes(s)
}

// RawBytes encodes a bytes field. Unlike the scalar encoders it writes empty
// values, so repeated bytes fields keep their element count.
func (e *Encoder) RawBytes(field int, b []byte) {
	e.tag(field, WireBytes)
	_ = e.buf.EncodeRawBytes(b)
}

// Message encodes a nested message field. Nested messages are always
// written, even when empty, so repeated message fields round trip.
func (e *Encoder) Message(field int, m Message) {
	var inner Encoder
	m.MarshalTo(&inner)
	e.RawBytes(field, inner.Bytes())
}

// Decoder reads wire format fields from a buffer. proto.Buffer does not
// expose its read offset, so left counts the bytes not yet consumed and
// every read subtracts the size of what it decoded.
type Decoder struct {
	buf   proto.Buffer
	left  int
	field int
	wire  int
}

// NewDecoder returns a Decoder reading from buf.
func NewDecoder(buf []byte) *Decoder {
	d := &Decoder{left: len(buf)}
	d.buf.SetBuf(buf)
	return d
}

// Next advances to the next field. It returns false at the end of the
// buffer.
func (d *Decoder) Next() (bool, error) {
	if d.left <= 0 {
		return false, nil
	}
	d.field = 0
	t, err := d.uvarint()
	if err != nil {
		return false, err
	}
	d.field, d.wire = int(t>>3), int(t&7)
	if d.field == 0 {
		return false, errors.Errorf("illegal field number 0")
	}
	return true, nil
}

// Field returns the number of the current field.
func (d *Decoder) Field() int { return d.field }

func (d *Decoder) uvarint() (uint64, error) {
	v, err := d.buf.DecodeVarint()
	if err != nil {
		return 0, errors.Wrapf(err, "field %d: malformed varint", d.field)
	}
	d.left -= proto.SizeVarint(v)
	return v, nil
}

func (d *Decoder) expect(wire int) error {
	if d.wire != wire {
		return errors.Errorf("field %d: wire type %d, expected %d", d.field, d.wire, wire)
	}
	return nil
}

// Uvarint decodes the current field as an unsigned integer.
func (d *Decoder) Uvarint() (uint64, error) {
	if err := d.expect(WireVarint); err != nil {
		return 0, err
	}
	return d.uvarint()
}

// Varint decodes the current field as a zigzag encoded signed integer.
func (d *Decoder) Varint() (int64, error) {
	u, err := d.Uvarint()
	return int64(u>>1) ^ -int64(u&1), err
}

// Bool decodes the current field as a boolean.
func (d *Decoder) Bool() (bool, error) {
	u, err := d.Uvarint()
	return u != 0, err
}

func (d *Decoder) fixed64() (uint64, error) {
	v, err := d.buf.DecodeFixed64()
	if err != nil {
		return 0, errors.Wrapf(err, "field %d: truncated fixed64", d.field)
	}
	d.left -= 8
	return v, nil
}

// Float64 decodes the current field as a double.
func (d *Decoder) Float64() (float64, error) {
	if err := d.expect(WireFixed64); err != nil {
		return 0, err
	}
	v, err := d.fixed64()
	return math.Float64frombits(v), err
}

// RawBytes decodes the current field as bytes. The result aliases the
// decoder's buffer.
func (d *Decoder) RawBytes() ([]byte, error) {
	if err := d.expect(WireBytes); err != nil {
		return nil, err
	}
	b, err := d.buf.DecodeRawBytes(false /* alloc */)
	if err != nil {
		return nil, errors.Wrapf(err, "field %d: truncated bytes", d.field)
	}
	d.left -= proto.SizeVarint(uint64(len(b))) + len(b)
	return b, nil
}

// Text decodes the current field as a string.
func (d *Decoder) Text() (string, error) {
	b, err := d.RawBytes()
	return string(b), err
}

// Message decodes the current field into m.
func (d *Decoder) Message(m Message) error {
	b, err := d.RawBytes()
	if err != nil {
		return err
	}
	return m.UnmarshalFrom(NewDecoder(b))
}

// Skip discards the current field. Messages call it for unknown fields.
func (d *Decoder) Skip() error {
	switch d.wire {
	case WireVarint:
		_, err := d.uvarint()
		return err
	case WireFixed64:
		_, err := d.fixed64()
		return err
	case WireFixed32:
		if _, err := d.buf.DecodeFixed32(); err != nil {
			return errors.Wrapf(err, "field %d: truncated fixed32", d.field)
		}
		d.left -= 4
	case WireBytes:
		_, err := d.RawBytes()
		return err
	default:
		return errors.Errorf("field %d: unsupported wire type %d", d.field, d.wire)
	}
	return nil
}

// Marshal encodes m into the wire format.
func Marshal(m Message) []byte {
	var e Encoder
	m.MarshalTo(&e)
	return e.Bytes()
}

// Unmarshal decodes data into m.
func Unmarshal(data []byte, m Message) error {
	return m.UnmarshalFrom(NewDecoder(data))
}

// MarshalVersioned prefixes the encoding of m with a protocol version.
func MarshalVersioned(version uint64, m Message) []byte {
	var e Encoder
	_ = e.buf.EncodeVarint(version)
	m.MarshalTo(&e)
	return e.Bytes()
}

// UnmarshalVersioned decodes data written by MarshalVersioned and returns
// the writer's protocol version. Data written by a newer version is decoded
// as far as m understands it.
func UnmarshalVersioned(data []byte, m Message) (version uint64, _ error) {
	d := NewDecoder(data)
	version, err := d.uvarint()
	if err != nil || version == 0 {
		return 0, errors.Errorf("missing protocol version")
	}
	if err := m.UnmarshalFrom(d); err != nil {
		return version, errors.Wrapf(err, "decoding version %d message", version)
	}
	return version, nil
}

// MarshalCompressed is MarshalVersioned followed by snappy block compression.
func MarshalCompressed(version uint64, m Message) []byte {
	return snappy.Encode(nil, MarshalVersioned(version, m))
}

// UnmarshalCompressed reverses MarshalCompressed.
func UnmarshalCompressed(data []byte, m Message) (uint64, error) {
	raw, err := snappy.Decode(nil, data)
	if err != nil {
		return 0, errors.Wrap(err, "decompressing")
	}
	return UnmarshalVersioned(raw, m)
}
