// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package valueside encodes whole values, including containers, for storage
// in the value part of a KV pair. Unlike keyside the encoding does not
// preserve ordering; it is a protobuf message per value whose interpretation
// is driven by the declared type, so it only needs to be decodable with the
// type at hand.
package valueside

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/tablemeta/pkg/datum"
	"github.com/cockroachdb/tablemeta/pkg/types"
	"github.com/cockroachdb/tablemeta/pkg/util/protoutil"
)

// Field numbers of the value message.
const (
	fieldKey     = 1
	fieldNull    = 2
	fieldEmpty   = 3
	fieldInt     = 4
	fieldFloat   = 5
	fieldText    = 6
	fieldSeconds = 7
	fieldNanos   = 8
	fieldElem    = 9
)

// value adapts a datum to protoutil.Message for encoding. key is the map key
// or record field name when the value is nested in a container.
type value struct {
	key string
	d   datum.Datum
}

func (v *value) MarshalTo(e *protoutil.Encoder) {
	e.Text(fieldKey, v.key)
	switch t := v.d.(type) {
	case datum.DBool:
		e.Bool(fieldInt, bool(t))
	case datum.DInt:
		e.Varint(fieldInt, int64(t))
	case datum.DLong:
		e.Varint(fieldInt, int64(t))
	case datum.DEnum:
		e.Varint(fieldInt, int64(t.Ordinal))
	case datum.DFloat:
		e.Float64(fieldFloat, float64(t))
	case datum.DDouble:
		e.Float64(fieldFloat, float64(t))
	case *datum.DDecimal:
		e.Text(fieldText, t.Decimal.String())
	case datum.DBytes:
		e.Text(fieldText, string(t))
	case datum.DFixedBytes:
		e.Text(fieldText, string(t))
	case datum.DString:
		e.Text(fieldText, string(t))
	case datum.DJSON:
		e.Text(fieldText, string(t))
	case datum.DTimestamp:
		e.Varint(fieldSeconds, t.Time.Unix())
		e.Varint(fieldNanos, int64(t.Time.Nanosecond()))
	case *datum.DArray:
		for _, el := range t.Elems {
			e.Message(fieldElem, &value{d: el})
		}
	case *datum.DMap:
		for _, en := range t.Entries {
			e.Message(fieldElem, &value{key: en.Key, d: en.Value})
		}
	case *datum.DRecord:
		for _, f := range t.Fields {
			if datum.IsEmpty(f.Value) {
				continue
			}
			e.Message(fieldElem, &value{key: f.Name, d: f.Value})
		}
	default:
		if datum.IsNull(v.d) {
			e.Bool(fieldNull, true)
		} else if datum.IsEmpty(v.d) {
			e.Bool(fieldEmpty, true)
		}
	}
}

// UnmarshalFrom is unused: decoding needs the declared type, see rawValue.
func (v *value) UnmarshalFrom(*protoutil.Decoder) error {
	return errors.AssertionFailedf("values are decoded through rawValue")
}

// rawValue is a decoded value message before it is interpreted with a type.
type rawValue struct {
	key         string
	null, empty bool
	i           int64
	f           float64
	text        string
	sec, nsec   int64
	elems       []*rawValue
}

func (r *rawValue) MarshalTo(*protoutil.Encoder) {}

func (r *rawValue) UnmarshalFrom(d *protoutil.Decoder) error {
	for {
		ok, err := d.Next()
		if err != nil || !ok {
			return err
		}
		switch d.Field() {
		case fieldKey:
			r.key, err = d.Text()
		case fieldNull:
			r.null, err = d.Bool()
		case fieldEmpty:
			r.empty, err = d.Bool()
		case fieldInt:
			r.i, err = d.Varint()
		case fieldFloat:
			r.f, err = d.Float64()
		case fieldText:
			r.text, err = d.Text()
		case fieldSeconds:
			r.sec, err = d.Varint()
		case fieldNanos:
			r.nsec, err = d.Varint()
		case fieldElem:
			el := &rawValue{}
			err = d.Message(el)
			r.elems = append(r.elems, el)
		default:
			err = d.Skip()
		}
		if err != nil {
			return err
		}
	}
}

// Encode appends the value encoding of d to b.
func Encode(b []byte, d datum.Datum) []byte {
	return append(b, protoutil.Marshal(&value{d: d})...)
}

// Decode decodes a value of type typ encoded by Encode.
func Decode(typ *types.T, data []byte) (datum.Datum, error) {
	var r rawValue
	if err := protoutil.Unmarshal(data, &r); err != nil {
		return nil, errors.Wrap(err, "decoding value")
	}
	return r.toDatum(typ)
}

func (r *rawValue) toDatum(typ *types.T) (datum.Datum, error) {
	if r.null {
		return datum.DNull, nil
	}
	if r.empty {
		return datum.DEmpty, nil
	}
	switch typ.Family() {
	case types.BoolFamily:
		return datum.DBool(r.i != 0), nil
	case types.IntFamily:
		return datum.DInt(r.i), nil
	case types.LongFamily:
		return datum.DLong(r.i), nil
	case types.EnumFamily:
		if r.i < 0 || r.i >= int64(len(typ.EnumValues())) {
			return nil, errors.Errorf("ordinal %d out of range for %s", r.i, typ)
		}
		return datum.DEnum{Typ: typ, Ordinal: int(r.i)}, nil
	case types.FloatFamily:
		return datum.DFloat(r.f), nil
	case types.DoubleFamily:
		return datum.DDouble(r.f), nil
	case types.NumberFamily:
		if r.text == "" {
			return datum.NewDDecimal("0")
		}
		return datum.NewDDecimal(r.text)
	case types.BinaryFamily:
		return datum.DBytes(r.text), nil
	case types.FixedBinaryFamily:
		return datum.DFixedBytes(r.text), nil
	case types.StringFamily:
		return datum.DString(r.text), nil
	case types.JSONFamily:
		return datum.DJSON(r.text), nil
	case types.TimestampFamily:
		return datum.DTimestamp{
			Time: time.Unix(r.sec, r.nsec).UTC(), Precision: typ.Precision(),
		}, nil
	case types.ArrayFamily:
		arr := &datum.DArray{Typ: typ, Elems: make([]datum.Datum, len(r.elems))}
		for i, el := range r.elems {
			d, err := el.toDatum(typ.Elem())
			if err != nil {
				return nil, err
			}
			arr.Elems[i] = d
		}
		return arr, nil
	case types.MapFamily:
		m := &datum.DMap{Typ: typ, Entries: make([]datum.MapEntry, len(r.elems))}
		for i, el := range r.elems {
			d, err := el.toDatum(typ.Elem())
			if err != nil {
				return nil, err
			}
			m.Entries[i] = datum.MapEntry{Key: el.key, Value: d}
		}
		return m, nil
	case types.RecordFamily:
		rec := &datum.DRecord{Typ: typ}
		for _, el := range r.elems {
			ft, ok := typ.Field(el.key)
			if !ok {
				// Dropped by a later schema version.
				continue
			}
			d, err := el.toDatum(ft)
			if err != nil {
				return nil, errors.Wrapf(err, "field %q", el.key)
			}
			rec.Fields = append(rec.Fields, datum.RecordField{Name: el.key, Value: d})
		}
		return rec, nil
	}
	return nil, errors.Errorf("cannot decode value of type %s", typ)
}
