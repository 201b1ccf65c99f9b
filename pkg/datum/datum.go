// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package datum defines the values stored in rows. Datum is a closed sum
// type: every implementation lives in this package and callers switch on
// the concrete type or on ResolvedType().Family().
//
// Two sentinels stand outside the typed values. DNull is a value that is
// present and explicitly null. DEmpty marks a path that does not exist in a
// row. Both compare greater than every typed value, with DEmpty before
// DNull.
package datum

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/apd/v3"
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/tablemeta/pkg/types"
)

// Datum is a typed value.
type Datum interface {
	// ResolvedType returns the type of the value. DNull and DEmpty return
	// types.Unknown.
	ResolvedType() *types.T
	// Compare returns -1, 0 or 1 as the receiver sorts before, equal to or
	// after other. Datums of different families compare by family.
	Compare(other Datum) int
	// String returns a human readable rendering of the value.
	String() string

	datum()
}

type dNull struct{}
type dEmpty struct{}

var (
	// DNull is the explicit null value.
	DNull Datum = dNull{}
	// DEmpty marks a path absent from a row.
	DEmpty Datum = dEmpty{}
)

// DBool is a BOOLEAN value.
type DBool bool

// DInt is a 32-bit INTEGER value.
type DInt int32

// DLong is a 64-bit LONG value.
type DLong int64

// DFloat is a 32-bit FLOAT value.
type DFloat float32

// DDouble is a 64-bit DOUBLE value.
type DDouble float64

// DDecimal is an arbitrary precision NUMBER value.
type DDecimal struct {
	apd.Decimal
}

// DBytes is a variable length BINARY value.
type DBytes string

// DFixedBytes is a FIXED_BINARY value.
type DFixedBytes string

// DString is a STRING value.
type DString string

// DEnum is an ENUM value identified by its ordinal.
type DEnum struct {
	Typ     *types.T
	Ordinal int
}

// DTimestamp is a TIMESTAMP value. Time is truncated to Precision
// fractional second digits and kept in UTC.
type DTimestamp struct {
	Time      time.Time
	Precision int32
}

// DJSON is a JSON document kept in its textual form.
type DJSON string

// DArray is an ARRAY value.
type DArray struct {
	Typ   *types.T
	Elems []Datum
}

// DMap is a MAP value. Entries are sorted by key and keys are unique.
type DMap struct {
	Typ     *types.T
	Entries []MapEntry
}

// MapEntry is a single key/value pair of a DMap.
type MapEntry struct {
	Key   string
	Value Datum
}

// DRecord is a RECORD value and also the representation of a row. A field
// missing from Fields is absent; a field holding DNull is explicitly null.
type DRecord struct {
	Typ    *types.T
	Fields []RecordField
}

// RecordField is a named value in a DRecord.
type RecordField struct {
	Name  string
	Value Datum
}

func (dNull) datum()       {}
func (dEmpty) datum()      {}
func (DBool) datum()       {}
func (DInt) datum()        {}
func (DLong) datum()       {}
func (DFloat) datum()      {}
func (DDouble) datum()     {}
func (*DDecimal) datum()   {}
func (DBytes) datum()      {}
func (DFixedBytes) datum() {}
func (DString) datum()     {}
func (DEnum) datum()       {}
func (DTimestamp) datum()  {}
func (DJSON) datum()       {}
func (*DArray) datum()     {}
func (*DMap) datum()       {}
func (*DRecord) datum()    {}

// NewDDecimal parses a NUMBER value.
func NewDDecimal(s string) (*DDecimal, error) {
	d := &DDecimal{}
	if _, _, err := d.SetString(s); err != nil {
		return nil, errors.Wrapf(err, "parsing NUMBER %q", s)
	}
	return d, nil
}

// MakeDTimestamp truncates t to precision fractional digits.
func MakeDTimestamp(t time.Time, precision int32) DTimestamp {
	if precision < 0 || precision > types.MaxTimestampPrecision {
		precision = types.MaxTimestampPrecision
	}
	round := time.Duration(math.Pow10(int(types.MaxTimestampPrecision - precision)))
	return DTimestamp{Time: t.Truncate(round).UTC(), Precision: precision}
}

// NewDEnum returns the ENUM value for symbol.
func NewDEnum(typ *types.T, symbol string) (DEnum, error) {
	ord := typ.EnumOrdinal(symbol)
	if ord < 0 {
		return DEnum{}, errors.Newf("%q is not a symbol of %s", symbol, typ)
	}
	return DEnum{Typ: typ, Ordinal: ord}, nil
}

// NewDMap builds a map value from unordered entries.
func NewDMap(typ *types.T, entries map[string]Datum) *DMap {
	m := &DMap{Typ: typ, Entries: make([]MapEntry, 0, len(entries))}
	for k, v := range entries {
		m.Entries = append(m.Entries, MapEntry{Key: k, Value: v})
	}
	sort.Slice(m.Entries, func(i, j int) bool { return m.Entries[i].Key < m.Entries[j].Key })
	return m
}

// Get returns the value stored under key.
func (d *DMap) Get(key string) (Datum, bool) {
	i := sort.Search(len(d.Entries), func(i int) bool { return d.Entries[i].Key >= key })
	if i < len(d.Entries) && d.Entries[i].Key == key {
		return d.Entries[i].Value, true
	}
	return nil, false
}

// Get returns the value of the named field. Names are case insensitive.
func (d *DRecord) Get(name string) (Datum, bool) {
	for i := range d.Fields {
		if strings.EqualFold(d.Fields[i].Name, name) {
			return d.Fields[i].Value, true
		}
	}
	return nil, false
}

// Set replaces or appends the named field.
func (d *DRecord) Set(name string, v Datum) {
	for i := range d.Fields {
		if strings.EqualFold(d.Fields[i].Name, name) {
			d.Fields[i].Value = v
			return
		}
	}
	d.Fields = append(d.Fields, RecordField{Name: name, Value: v})
}

// Delete removes the named field, making it absent.
func (d *DRecord) Delete(name string) {
	for i := range d.Fields {
		if strings.EqualFold(d.Fields[i].Name, name) {
			d.Fields = append(d.Fields[:i:i], d.Fields[i+1:]...)
			return
		}
	}
}

// Clone returns a deep copy of the record's field list. Values are shared.
func (d *DRecord) Clone() *DRecord {
	return &DRecord{Typ: d.Typ, Fields: append([]RecordField(nil), d.Fields...)}
}

// ResolvedType implementations.

func (dNull) ResolvedType() *types.T         { return types.Unknown }
func (dEmpty) ResolvedType() *types.T        { return types.Unknown }
func (DBool) ResolvedType() *types.T         { return types.Bool }
func (DInt) ResolvedType() *types.T          { return types.Int }
func (DLong) ResolvedType() *types.T         { return types.Long }
func (DFloat) ResolvedType() *types.T        { return types.Float }
func (DDouble) ResolvedType() *types.T       { return types.Double }
func (*DDecimal) ResolvedType() *types.T     { return types.Number }
func (DBytes) ResolvedType() *types.T        { return types.Binary }
func (d DFixedBytes) ResolvedType() *types.T { return types.MakeFixedBinary(int32(len(d))) }
func (DString) ResolvedType() *types.T       { return types.String }
func (d DEnum) ResolvedType() *types.T       { return d.Typ }
func (d DTimestamp) ResolvedType() *types.T  { return types.MakeTimestamp(d.Precision) }
func (DJSON) ResolvedType() *types.T         { return types.JSON }
func (d *DArray) ResolvedType() *types.T     { return d.Typ }
func (d *DMap) ResolvedType() *types.T       { return d.Typ }
func (d *DRecord) ResolvedType() *types.T    { return d.Typ }

// rank orders the sentinels after every typed value.
func rank(d Datum) int {
	switch d.(type) {
	case dEmpty:
		return 1
	case dNull:
		return 2
	}
	return 0
}

// compareSentinels handles the comparisons involving DNull or DEmpty. ok is
// false when both datums are typed values.
func compareSentinels(a, b Datum) (c int, ok bool) {
	ra, rb := rank(a), rank(b)
	if ra == 0 && rb == 0 {
		return 0, false
	}
	return cmpInt(int64(ra), int64(rb)), true
}

// compareFamilies orders datums whose families differ.
func compareFamilies(a, b Datum) (c int, ok bool) {
	fa, fb := a.ResolvedType().Family(), b.ResolvedType().Family()
	if fa == fb {
		return 0, false
	}
	return cmpInt(int64(fa), int64(fb)), true
}

func cmpInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// cmpFloat orders NaN before every other value, matching the key encoding.
func cmpFloat(a, b float64) int {
	switch {
	case math.IsNaN(a) && math.IsNaN(b):
		return 0
	case math.IsNaN(a):
		return -1
	case math.IsNaN(b):
		return 1
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func precheck(a, b Datum) (int, bool) {
	if c, ok := compareSentinels(a, b); ok {
		return c, true
	}
	return compareFamilies(a, b)
}

func (d dNull) Compare(o Datum) int {
	c, _ := compareSentinels(d, o)
	return c
}

func (d dEmpty) Compare(o Datum) int {
	c, _ := compareSentinels(d, o)
	return c
}

func (d DBool) Compare(o Datum) int {
	if c, ok := precheck(d, o); ok {
		return c
	}
	a, b := 0, 0
	if d {
		a = 1
	}
	if o.(DBool) {
		b = 1
	}
	return cmpInt(int64(a), int64(b))
}

func (d DInt) Compare(o Datum) int {
	if c, ok := precheck(d, o); ok {
		return c
	}
	return cmpInt(int64(d), int64(o.(DInt)))
}

func (d DLong) Compare(o Datum) int {
	if c, ok := precheck(d, o); ok {
		return c
	}
	return cmpInt(int64(d), int64(o.(DLong)))
}

func (d DFloat) Compare(o Datum) int {
	if c, ok := precheck(d, o); ok {
		return c
	}
	return cmpFloat(float64(d), float64(o.(DFloat)))
}

func (d DDouble) Compare(o Datum) int {
	if c, ok := precheck(d, o); ok {
		return c
	}
	return cmpFloat(float64(d), float64(o.(DDouble)))
}

func (d *DDecimal) Compare(o Datum) int {
	if c, ok := precheck(d, o); ok {
		return c
	}
	od := o.(*DDecimal)
	// NaN sorts first.
	dn, on := d.Form == apd.NaN || d.Form == apd.NaNSignaling, od.Form == apd.NaN || od.Form == apd.NaNSignaling
	switch {
	case dn && on:
		return 0
	case dn:
		return -1
	case on:
		return 1
	}
	return d.Decimal.Cmp(&od.Decimal)
}

func (d DBytes) Compare(o Datum) int {
	if c, ok := precheck(d, o); ok {
		return c
	}
	return strings.Compare(string(d), string(o.(DBytes)))
}

func (d DFixedBytes) Compare(o Datum) int {
	if c, ok := precheck(d, o); ok {
		return c
	}
	return strings.Compare(string(d), string(o.(DFixedBytes)))
}

func (d DString) Compare(o Datum) int {
	if c, ok := precheck(d, o); ok {
		return c
	}
	return strings.Compare(string(d), string(o.(DString)))
}

func (d DEnum) Compare(o Datum) int {
	if c, ok := precheck(d, o); ok {
		return c
	}
	return cmpInt(int64(d.Ordinal), int64(o.(DEnum).Ordinal))
}

func (d DTimestamp) Compare(o Datum) int {
	if c, ok := precheck(d, o); ok {
		return c
	}
	return d.Time.Compare(o.(DTimestamp).Time)
}

func (d DJSON) Compare(o Datum) int {
	if c, ok := precheck(d, o); ok {
		return c
	}
	return strings.Compare(string(d), string(o.(DJSON)))
}

func (d *DArray) Compare(o Datum) int {
	if c, ok := precheck(d, o); ok {
		return c
	}
	od := o.(*DArray)
	for i := 0; i < len(d.Elems) && i < len(od.Elems); i++ {
		if c := d.Elems[i].Compare(od.Elems[i]); c != 0 {
			return c
		}
	}
	return cmpInt(int64(len(d.Elems)), int64(len(od.Elems)))
}

func (d *DMap) Compare(o Datum) int {
	if c, ok := precheck(d, o); ok {
		return c
	}
	om := o.(*DMap)
	for i := 0; i < len(d.Entries) && i < len(om.Entries); i++ {
		if c := strings.Compare(d.Entries[i].Key, om.Entries[i].Key); c != 0 {
			return c
		}
		if c := d.Entries[i].Value.Compare(om.Entries[i].Value); c != 0 {
			return c
		}
	}
	return cmpInt(int64(len(d.Entries)), int64(len(om.Entries)))
}

func (d *DRecord) Compare(o Datum) int {
	if c, ok := precheck(d, o); ok {
		return c
	}
	or := o.(*DRecord)
	for i := 0; i < len(d.Fields) && i < len(or.Fields); i++ {
		if c := strings.Compare(d.Fields[i].Name, or.Fields[i].Name); c != 0 {
			return c
		}
		if c := d.Fields[i].Value.Compare(or.Fields[i].Value); c != 0 {
			return c
		}
	}
	return cmpInt(int64(len(d.Fields)), int64(len(or.Fields)))
}

// String implementations.

func (dNull) String() string  { return "NULL" }
func (dEmpty) String() string { return "EMPTY" }
func (d DBool) String() string {
	return strconv.FormatBool(bool(d))
}
func (d DInt) String() string  { return strconv.FormatInt(int64(d), 10) }
func (d DLong) String() string { return strconv.FormatInt(int64(d), 10) }
func (d DFloat) String() string {
	return strconv.FormatFloat(float64(d), 'g', -1, 32)
}
func (d DDouble) String() string {
	return strconv.FormatFloat(float64(d), 'g', -1, 64)
}
func (d *DDecimal) String() string { return d.Decimal.String() }
func (d DBytes) String() string    { return `x'` + hex.EncodeToString([]byte(d)) + `'` }
func (d DFixedBytes) String() string {
	return `x'` + hex.EncodeToString([]byte(d)) + `'`
}
func (d DString) String() string { return strconv.Quote(string(d)) }
func (d DEnum) String() string {
	if d.Typ != nil && d.Ordinal >= 0 && d.Ordinal < len(d.Typ.EnumValues()) {
		return d.Typ.EnumValues()[d.Ordinal]
	}
	return fmt.Sprintf("enum(%d)", d.Ordinal)
}
func (d DTimestamp) String() string {
	layout := "2006-01-02T15:04:05"
	if d.Precision > 0 {
		layout += "." + strings.Repeat("0", int(d.Precision))
	}
	return d.Time.Format(layout + "Z")
}
func (d DJSON) String() string { return string(d) }

func (d *DArray) String() string {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, e := range d.Elems {
		if i > 0 {
			buf.WriteString(", ")
		}
		buf.WriteString(e.String())
	}
	buf.WriteByte(']')
	return buf.String()
}

func (d *DMap) String() string {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range d.Entries {
		if i > 0 {
			buf.WriteString(", ")
		}
		buf.WriteString(strconv.Quote(e.Key))
		buf.WriteString(": ")
		buf.WriteString(e.Value.String())
	}
	buf.WriteByte('}')
	return buf.String()
}

func (d *DRecord) String() string {
	var buf bytes.Buffer
	buf.WriteByte('(')
	for i, f := range d.Fields {
		if i > 0 {
			buf.WriteString(", ")
		}
		buf.WriteString(f.Name)
		buf.WriteString(": ")
		buf.WriteString(f.Value.String())
	}
	buf.WriteByte(')')
	return buf.String()
}

// IsNull returns true for DNull.
func IsNull(d Datum) bool {
	_, ok := d.(dNull)
	return ok
}

// IsEmpty returns true for DEmpty.
func IsEmpty(d Datum) bool {
	_, ok := d.(dEmpty)
	return ok
}
