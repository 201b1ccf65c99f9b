// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package types

import (
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/tablemeta/pkg/util/protoutil"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// typeJSON is the JSON form of a type:
//
//	{"type": "MAP", "collection": {"type": "INTEGER"}}
//	{"type": "RECORD", "fields": [{"name": "a", "type": {"type": "STRING"}}]}
//	{"type": "TIMESTAMP", "precision": 3}
type typeJSON struct {
	Type       string      `json:"type"`
	Collection *typeJSON   `json:"collection,omitempty"`
	Fields     []fieldJSON `json:"fields,omitempty"`
	Symbols    []string    `json:"symbols,omitempty"`
	Size       int32       `json:"size,omitempty"`
	Precision  *int32      `json:"precision,omitempty"`
}

type fieldJSON struct {
	Name string    `json:"name"`
	Type *typeJSON `json:"type"`
}

func (t *T) toJSON() *typeJSON {
	j := &typeJSON{Type: t.family.String()}
	switch t.family {
	case FixedBinaryFamily:
		j.Size = t.width
	case TimestampFamily:
		p := t.width
		j.Precision = &p
	case EnumFamily:
		j.Symbols = t.values
	case ArrayFamily, MapFamily:
		j.Collection = t.elem.toJSON()
	case RecordFamily:
		for _, f := range t.fields {
			j.Fields = append(j.Fields, fieldJSON{Name: f.Name, Type: f.Type.toJSON()})
		}
	}
	return j
}

func fromJSON(j *typeJSON) (*T, error) {
	if j == nil {
		return nil, errors.New("missing type")
	}
	var fam Family = -1
	for f, name := range familyNames {
		if strings.EqualFold(name, j.Type) {
			fam = f
			break
		}
	}
	switch fam {
	case -1, UnknownFamily:
		return nil, errors.Newf("unknown type %q", j.Type)
	case FixedBinaryFamily:
		return MakeFixedBinary(j.Size), nil
	case TimestampFamily:
		if j.Precision == nil {
			return Timestamp, nil
		}
		return MakeTimestamp(*j.Precision), nil
	case EnumFamily:
		return MakeEnum(j.Symbols...), nil
	case ArrayFamily, MapFamily:
		elem, err := fromJSON(j.Collection)
		if err != nil {
			return nil, errors.Wrapf(err, "%s element", fam)
		}
		return &T{family: fam, elem: elem}, nil
	case RecordFamily:
		fields := make([]RecordField, len(j.Fields))
		for i, f := range j.Fields {
			ft, err := fromJSON(f.Type)
			if err != nil {
				return nil, errors.Wrapf(err, "field %q", f.Name)
			}
			fields[i] = RecordField{Name: f.Name, Type: ft}
		}
		return MakeRecord(fields...), nil
	}
	return &T{family: fam}, nil
}

// MarshalJSON implements json.Marshaler.
func (t *T) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.toJSON())
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *T) UnmarshalJSON(data []byte) error {
	var j typeJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return errors.Wrap(err, "decoding type")
	}
	res, err := fromJSON(&j)
	if err != nil {
		return err
	}
	if err := res.Validate(); err != nil {
		return err
	}
	*t = *res
	return nil
}

// MarshalTo implements protoutil.Message.
func (t *T) MarshalTo(e *protoutil.Encoder) {
	e.Uvarint(1, uint64(t.family))
	e.Varint(2, int64(t.width))
	if t.elem != nil {
		e.Message(3, t.elem)
	}
	for i := range t.fields {
		e.Message(4, &recordFieldMsg{RecordField: t.fields[i]})
	}
	for _, v := range t.values {
		e.RawBytes(5, []byte(v))
	}
}

// UnmarshalFrom implements protoutil.Message.
func (t *T) UnmarshalFrom(d *protoutil.Decoder) error {
	*t = T{}
	for {
		ok, err := d.Next()
		if err != nil || !ok {
			return err
		}
		switch d.Field() {
		case 1:
			var f uint64
			f, err = d.Uvarint()
			t.family = Family(f)
		case 2:
			var w int64
			w, err = d.Varint()
			t.width = int32(w)
		case 3:
			t.elem = &T{}
			err = d.Message(t.elem)
		case 4:
			var f recordFieldMsg
			err = d.Message(&f)
			t.fields = append(t.fields, f.RecordField)
		case 5:
			var v string
			v, err = d.Text()
			t.values = append(t.values, v)
		default:
			err = d.Skip()
		}
		if err != nil {
			return err
		}
	}
}

type recordFieldMsg struct {
	RecordField
}

func (f *recordFieldMsg) MarshalTo(e *protoutil.Encoder) {
	e.Text(1, f.Name)
	e.Message(2, f.Type)
}

func (f *recordFieldMsg) UnmarshalFrom(d *protoutil.Decoder) error {
	for {
		ok, err := d.Next()
		if err != nil || !ok {
			return err
		}
		switch d.Field() {
		case 1:
			f.Name, err = d.Text()
		case 2:
			f.Type = &T{}
			err = d.Message(f.Type)
		default:
			err = d.Skip()
		}
		if err != nil {
			return err
		}
	}
}
