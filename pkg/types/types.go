// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package types defines the closed set of field types a table may declare.
// A *T is immutable once constructed and may be shared.
package types

import (
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/redact"
)

// Family groups types that share a representation and comparison.
type Family int32

// Family values. The order is the order in which datums of different
// families compare.
const (
	UnknownFamily Family = iota
	BoolFamily
	IntFamily
	LongFamily
	FloatFamily
	DoubleFamily
	NumberFamily
	BinaryFamily
	FixedBinaryFamily
	StringFamily
	EnumFamily
	TimestampFamily
	ArrayFamily
	MapFamily
	RecordFamily
	JSONFamily
)

var familyNames = map[Family]string{
	UnknownFamily:     "UNKNOWN",
	BoolFamily:        "BOOLEAN",
	IntFamily:         "INTEGER",
	LongFamily:        "LONG",
	FloatFamily:       "FLOAT",
	DoubleFamily:      "DOUBLE",
	NumberFamily:      "NUMBER",
	BinaryFamily:      "BINARY",
	FixedBinaryFamily: "FIXED_BINARY",
	StringFamily:      "STRING",
	EnumFamily:        "ENUM",
	TimestampFamily:   "TIMESTAMP",
	ArrayFamily:       "ARRAY",
	MapFamily:         "MAP",
	RecordFamily:      "RECORD",
	JSONFamily:        "JSON",
}

func (f Family) String() string {
	if s, ok := familyNames[f]; ok {
		return s
	}
	return "Family(" + strconv.Itoa(int(f)) + ")"
}

// SafeValue implements redact.SafeValue.
func (Family) SafeValue() {}

// MaxTimestampPrecision is the largest number of fractional second digits a
// timestamp may keep.
const MaxTimestampPrecision = 9

// T is a field type.
type T struct {
	family Family
	// size of a FixedBinary; precision of a Timestamp.
	width  int32
	elem   *T
	fields []RecordField
	values []string
}

// RecordField is a named member of a RECORD type.
type RecordField struct {
	Name string
	Type *T
}

// Singleton types.
var (
	Unknown = &T{family: UnknownFamily}
	Bool    = &T{family: BoolFamily}
	Int     = &T{family: IntFamily}
	Long    = &T{family: LongFamily}
	Float   = &T{family: FloatFamily}
	Double  = &T{family: DoubleFamily}
	Number  = &T{family: NumberFamily}
	Binary  = &T{family: BinaryFamily}
	String  = &T{family: StringFamily}
	JSON    = &T{family: JSONFamily}
	// Timestamp has the default precision of 9.
	Timestamp = &T{family: TimestampFamily, width: MaxTimestampPrecision}
)

// MakeFixedBinary returns a FIXED_BINARY type holding exactly size bytes.
func MakeFixedBinary(size int32) *T {
	return &T{family: FixedBinaryFamily, width: size}
}

// MakeTimestamp returns a TIMESTAMP type keeping precision fractional digits.
func MakeTimestamp(precision int32) *T {
	return &T{family: TimestampFamily, width: precision}
}

// MakeEnum returns an ENUM type over the given symbols, whose ordinals are
// their positions.
func MakeEnum(values ...string) *T {
	return &T{family: EnumFamily, values: append([]string(nil), values...)}
}

// MakeArray returns an ARRAY type with the given element type.
func MakeArray(elem *T) *T {
	return &T{family: ArrayFamily, elem: elem}
}

// MakeMap returns a MAP type with string keys and the given value type.
func MakeMap(elem *T) *T {
	return &T{family: MapFamily, elem: elem}
}

// MakeRecord returns a RECORD type with the given fields.
func MakeRecord(fields ...RecordField) *T {
	return &T{family: RecordFamily, fields: append([]RecordField(nil), fields...)}
}

// Family returns the type's family.
func (t *T) Family() Family { return t.family }

// Elem returns the element type of an ARRAY or the value type of a MAP.
func (t *T) Elem() *T { return t.elem }

// Fields returns the fields of a RECORD.
func (t *T) Fields() []RecordField { return t.fields }

// Field returns the type of the named RECORD field. Field names are case
// insensitive.
func (t *T) Field(name string) (*T, bool) {
	for i := range t.fields {
		if strings.EqualFold(t.fields[i].Name, name) {
			return t.fields[i].Type, true
		}
	}
	return nil, false
}

// Size returns the byte size of a FIXED_BINARY.
func (t *T) Size() int32 { return t.width }

// Precision returns the number of fractional second digits of a TIMESTAMP.
func (t *T) Precision() int32 { return t.width }

// EnumValues returns the symbols of an ENUM.
func (t *T) EnumValues() []string { return t.values }

// EnumOrdinal returns the ordinal of an ENUM symbol, or -1.
func (t *T) EnumOrdinal(symbol string) int {
	for i, v := range t.values {
		if v == symbol {
			return i
		}
	}
	return -1
}

// IsContainer returns true for ARRAY, MAP and RECORD.
func (t *T) IsContainer() bool {
	switch t.family {
	case ArrayFamily, MapFamily, RecordFamily:
		return true
	}
	return false
}

// Indexable returns true if values of the type may appear in keys.
func (t *T) Indexable() bool {
	return !t.IsContainer() && t.family != JSONFamily && t.family != UnknownFamily
}

// Equal returns true if the types are identical.
func (t *T) Equal(o *T) bool {
	if t == o {
		return true
	}
	if t == nil || o == nil || t.family != o.family || t.width != o.width {
		return false
	}
	if (t.elem == nil) != (o.elem == nil) || (t.elem != nil && !t.elem.Equal(o.elem)) {
		return false
	}
	if len(t.fields) != len(o.fields) || len(t.values) != len(o.values) {
		return false
	}
	for i := range t.fields {
		if t.fields[i].Name != o.fields[i].Name || !t.fields[i].Type.Equal(o.fields[i].Type) {
			return false
		}
	}
	for i := range t.values {
		if t.values[i] != o.values[i] {
			return false
		}
	}
	return true
}

// Validate checks the type's parameters.
func (t *T) Validate() error {
	switch t.family {
	case FixedBinaryFamily:
		if t.width <= 0 {
			return errors.Newf("FIXED_BINARY size must be positive, got %d", t.width)
		}
	case TimestampFamily:
		if t.width < 0 || t.width > MaxTimestampPrecision {
			return errors.Newf("TIMESTAMP precision must be in [0, %d], got %d",
				redact.Safe(MaxTimestampPrecision), t.width)
		}
	case EnumFamily:
		if len(t.values) == 0 {
			return errors.New("ENUM requires at least one symbol")
		}
		seen := make(map[string]struct{}, len(t.values))
		for _, v := range t.values {
			if _, ok := seen[v]; ok {
				return errors.Newf("duplicate ENUM symbol %q", v)
			}
			seen[v] = struct{}{}
		}
	case ArrayFamily, MapFamily:
		if t.elem == nil {
			return errors.Newf("%s requires an element type", t.family)
		}
		return t.elem.Validate()
	case RecordFamily:
		if len(t.fields) == 0 {
			return errors.New("RECORD requires at least one field")
		}
		seen := make(map[string]struct{}, len(t.fields))
		for _, f := range t.fields {
			k := strings.ToLower(f.Name)
			if _, ok := seen[k]; ok {
				return errors.Newf("duplicate RECORD field %q", f.Name)
			}
			seen[k] = struct{}{}
			if f.Type == nil {
				return errors.Newf("RECORD field %q has no type", f.Name)
			}
			if err := f.Type.Validate(); err != nil {
				return err
			}
		}
	case UnknownFamily:
		return errors.New("unknown type")
	}
	return nil
}

// String renders the type in the syntax accepted by Parse.
func (t *T) String() string {
	var buf strings.Builder
	t.format(&buf)
	return buf.String()
}

func (t *T) format(buf *strings.Builder) {
	switch t.family {
	case FixedBinaryFamily:
		buf.WriteString("BINARY(")
		buf.WriteString(strconv.Itoa(int(t.width)))
		buf.WriteByte(')')
	case TimestampFamily:
		buf.WriteString("TIMESTAMP(")
		buf.WriteString(strconv.Itoa(int(t.width)))
		buf.WriteByte(')')
	case EnumFamily:
		buf.WriteString("ENUM(")
		buf.WriteString(strings.Join(t.values, ", "))
		buf.WriteByte(')')
	case ArrayFamily, MapFamily:
		buf.WriteString(t.family.String())
		buf.WriteByte('(')
		t.elem.format(buf)
		buf.WriteByte(')')
	case RecordFamily:
		buf.WriteString("RECORD(")
		for i, f := range t.fields {
			if i > 0 {
				buf.WriteString(", ")
			}
			buf.WriteString(f.Name)
			buf.WriteByte(' ')
			f.Type.format(buf)
		}
		buf.WriteByte(')')
	default:
		buf.WriteString(t.family.String())
	}
}

// SafeFormat implements redact.SafeFormatter. Types never hold user data.
func (t *T) SafeFormat(w redact.SafePrinter, _ rune) {
	w.Print(redact.SafeString(t.String()))
}
