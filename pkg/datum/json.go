// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package datum

import (
	"encoding/base64"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/tablemeta/pkg/types"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.Config{
	EscapeHTML:             true,
	SortMapKeys:            true,
	ValidateJsonRawMessage: true,
	UseNumber:              true,
}.Froze()

// ParseJSON converts a JSON document into a datum of type typ. Binary values
// are base64 strings, timestamps are RFC 3339 strings and enums are symbols.
// A JSON null becomes DNull. Record fields missing from an object are absent
// from the resulting DRecord.
func ParseJSON(typ *types.T, data []byte) (Datum, error) {
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, errors.Wrap(err, "decoding JSON value")
	}
	return FromGo(typ, v)
}

// FromGo converts a decoded JSON value (as produced by a decoder with
// UseNumber set) into a datum of type typ.
func FromGo(typ *types.T, v interface{}) (Datum, error) {
	if v == nil {
		return DNull, nil
	}
	mismatch := func() error {
		return errors.Newf("cannot convert %T to %s", v, typ)
	}
	switch typ.Family() {
	case types.BoolFamily:
		b, ok := v.(bool)
		if !ok {
			return nil, mismatch()
		}
		return DBool(b), nil

	case types.IntFamily, types.LongFamily:
		n, ok := jsoniter.CastJsonNumber(v)
		if !ok {
			return nil, mismatch()
		}
		i, err := strconv.ParseInt(n, 10, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "converting %s to %s", n, typ)
		}
		if typ.Family() == types.IntFamily {
			if i < math.MinInt32 || i > math.MaxInt32 {
				return nil, errors.Newf("%d out of range for %s", i, typ)
			}
			return DInt(i), nil
		}
		return DLong(i), nil

	case types.FloatFamily, types.DoubleFamily:
		n, ok := jsoniter.CastJsonNumber(v)
		if !ok {
			return nil, mismatch()
		}
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "converting %s to %s", n, typ)
		}
		if typ.Family() == types.FloatFamily {
			return DFloat(f), nil
		}
		return DDouble(f), nil

	case types.NumberFamily:
		if n, ok := jsoniter.CastJsonNumber(v); ok {
			return NewDDecimal(n)
		}
		if s, ok := v.(string); ok {
			return NewDDecimal(s)
		}
		return nil, mismatch()

	case types.BinaryFamily, types.FixedBinaryFamily:
		s, ok := v.(string)
		if !ok {
			return nil, mismatch()
		}
		b, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return nil, errors.Wrapf(err, "decoding %s", typ)
		}
		if typ.Family() == types.FixedBinaryFamily {
			if int32(len(b)) != typ.Size() {
				return nil, errors.Newf("%s requires %d bytes, got %d", typ, typ.Size(), len(b))
			}
			return DFixedBytes(b), nil
		}
		return DBytes(b), nil

	case types.StringFamily:
		s, ok := v.(string)
		if !ok {
			return nil, mismatch()
		}
		return DString(s), nil

	case types.EnumFamily:
		s, ok := v.(string)
		if !ok {
			return nil, mismatch()
		}
		return NewDEnum(typ, s)

	case types.TimestampFamily:
		s, ok := v.(string)
		if !ok {
			return nil, mismatch()
		}
		ts, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return nil, errors.Wrapf(err, "converting to %s", typ)
		}
		return MakeDTimestamp(ts, typ.Precision()), nil

	case types.JSONFamily:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		return DJSON(b), nil

	case types.ArrayFamily:
		elems, ok := v.([]interface{})
		if !ok {
			return nil, mismatch()
		}
		arr := &DArray{Typ: typ, Elems: make([]Datum, len(elems))}
		for i, e := range elems {
			d, err := FromGo(typ.Elem(), e)
			if err != nil {
				return nil, errors.Wrapf(err, "element %d", i)
			}
			arr.Elems[i] = d
		}
		return arr, nil

	case types.MapFamily:
		obj, ok := v.(map[string]interface{})
		if !ok {
			return nil, mismatch()
		}
		entries := make(map[string]Datum, len(obj))
		for k, e := range obj {
			d, err := FromGo(typ.Elem(), e)
			if err != nil {
				return nil, errors.Wrapf(err, "key %q", k)
			}
			entries[k] = d
		}
		return NewDMap(typ, entries), nil

	case types.RecordFamily:
		obj, ok := v.(map[string]interface{})
		if !ok {
			return nil, mismatch()
		}
		rec := &DRecord{Typ: typ}
		for _, f := range typ.Fields() {
			e, ok := lookupFold(obj, f.Name)
			if !ok {
				continue
			}
			d, err := FromGo(f.Type, e)
			if err != nil {
				return nil, errors.Wrapf(err, "field %q", f.Name)
			}
			rec.Fields = append(rec.Fields, RecordField{Name: f.Name, Value: d})
		}
		for k := range obj {
			if _, ok := typ.Field(k); !ok {
				return nil, errors.Newf("unknown field %q for %s", k, typ)
			}
		}
		return rec, nil
	}
	return nil, errors.Newf("cannot convert JSON to %s", typ)
}

func lookupFold(obj map[string]interface{}, name string) (interface{}, bool) {
	if v, ok := obj[name]; ok {
		return v, true
	}
	for k, v := range obj {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return nil, false
}

// ToGo converts d into a value that marshals to its JSON form. DEmpty has no
// JSON form and yields nil.
func ToGo(d Datum) interface{} {
	switch t := d.(type) {
	case dNull, dEmpty:
		return nil
	case DBool:
		return bool(t)
	case DInt:
		return int64(t)
	case DLong:
		return int64(t)
	case DFloat:
		return float64(t)
	case DDouble:
		return float64(t)
	case *DDecimal:
		return jsoniter.Number(t.Decimal.String())
	case DBytes:
		return base64.StdEncoding.EncodeToString([]byte(t))
	case DFixedBytes:
		return base64.StdEncoding.EncodeToString([]byte(t))
	case DString:
		return string(t)
	case DEnum:
		return t.String()
	case DTimestamp:
		return t.Time.Format(time.RFC3339Nano)
	case DJSON:
		return jsoniter.RawMessage(t)
	case *DArray:
		out := make([]interface{}, len(t.Elems))
		for i, e := range t.Elems {
			out[i] = ToGo(e)
		}
		return out
	case *DMap:
		out := make(map[string]interface{}, len(t.Entries))
		for _, e := range t.Entries {
			out[e.Key] = ToGo(e.Value)
		}
		return out
	case *DRecord:
		out := make(map[string]interface{}, len(t.Fields))
		for _, f := range t.Fields {
			if IsEmpty(f.Value) {
				continue
			}
			out[f.Name] = ToGo(f.Value)
		}
		return out
	}
	return nil
}

// MarshalJSON renders d as JSON.
func MarshalJSON(d Datum) ([]byte, error) {
	return json.Marshal(ToGo(d))
}
