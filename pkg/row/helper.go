// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package row reads and writes table rows and keeps their secondary index
// entries in step with them.
//
// A row lives under the primary index of its table:
//
//	<table prefix> <primary index id> <primary key> -> <row value>
//
// and every writable secondary index holds one entry per derived tuple, see
// package rowenc. All the keys written for one row mutation go through a
// single storage.Batch, which applies them in ascending key order.
package row

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/tablemeta/pkg/catalog/descpb"
	"github.com/cockroachdb/tablemeta/pkg/datum"
	"github.com/cockroachdb/tablemeta/pkg/rowenc"
	"github.com/cockroachdb/tablemeta/pkg/rowenc/keyside"
	"github.com/cockroachdb/tablemeta/pkg/rowenc/valueside"
	"github.com/cockroachdb/tablemeta/pkg/types"
	"github.com/cockroachdb/tablemeta/pkg/util/encoding"
)

// Errors returned by row operations.
var (
	ErrRowExists   = errors.New("row already exists")
	ErrRowNotFound = errors.New("row not found")
	ErrInvalidRow  = errors.New("invalid row")
)

// Config configures row operations.
type Config struct {
	// MaxIndexKeysPerRow is passed on to every index key deriver.
	MaxIndexKeysPerRow int
	// BatchSize bounds the keys read per engine iterator by scans and
	// backfills. Zero means DefaultBatchSize.
	BatchSize int
	// Locks serializes row writes. Writers and backfills of one engine must
	// share it; a nil Locks gives each Writer or Backfill its own.
	Locks *RowLocks
}

// DefaultBatchSize is the scan batch size used when Config.BatchSize is
// zero.
const DefaultBatchSize = 1000

func (c Config) locks() *RowLocks {
	if c.Locks == nil {
		return NewRowLocks()
	}
	return c.Locks
}

func (c Config) batchSize() int {
	if c.BatchSize <= 0 {
		return DefaultBatchSize
	}
	return c.BatchSize
}

// indexHelper maintains one secondary index.
type indexHelper struct {
	deriver *rowenc.IndexKeyDeriver
	prefix  []byte
}

// rowHelper holds what is needed to encode the keys of one table's rows.
type rowHelper struct {
	table         *descpb.TableDescriptor
	primaryPrefix []byte
	indexes       []indexHelper
}

// newRowHelper prepares the encoding of table's rows. Only the indexes
// accepted by include are maintained.
func newRowHelper(
	table *descpb.TableDescriptor,
	tablePrefix []byte,
	cfg Config,
	include func(*descpb.IndexDescriptor) bool,
) (*rowHelper, error) {
	if len(table.PrimaryKey) == 0 {
		return nil, errors.Wrapf(descpb.ErrMissingPrimaryKey, "table %q", table.Name)
	}
	h := &rowHelper{
		table:         table,
		primaryPrefix: rowenc.MakeIndexKeyPrefix(tablePrefix, descpb.PrimaryIndexID),
	}
	for i := range table.Indexes {
		idx := &table.Indexes[i]
		if !include(idx) {
			continue
		}
		d, err := rowenc.NewIndexKeyDeriver(table, idx, rowenc.DeriverConfig{
			MaxIndexKeysPerRow: cfg.MaxIndexKeysPerRow,
		})
		if err != nil {
			return nil, err
		}
		h.indexes = append(h.indexes, indexHelper{
			deriver: d,
			prefix:  rowenc.MakeIndexKeyPrefix(tablePrefix, idx.ID),
		})
	}
	return h, nil
}

// primaryKey returns the encoded primary key of row without the index
// prefix.
func (h *rowHelper) primaryKey(row *datum.DRecord) ([]byte, error) {
	return rowenc.EncodePrimaryKey(nil, h.table, row)
}

// encodeKeyValues encodes primary key values given in key order.
func (h *rowHelper) encodeKeyValues(pk []datum.Datum) ([]byte, error) {
	if len(pk) != len(h.table.PrimaryKey) {
		return nil, errors.Wrapf(ErrInvalidRow, "table %q: expected %d primary key values, got %d",
			h.table.Name, len(h.table.PrimaryKey), len(pk))
	}
	var b []byte
	for i, v := range pk {
		if datum.IsNull(v) || datum.IsEmpty(v) {
			return nil, errors.Wrapf(ErrInvalidRow, "table %q: primary key field %q must have a value",
				h.table.Name, h.table.PrimaryKey[i])
		}
		var err error
		if b, err = keyside.Encode(b, v, encoding.Ascending); err != nil {
			return nil, err
		}
	}
	return b, nil
}

func (h *rowHelper) rowKey(pk []byte) []byte {
	key := make([]byte, 0, len(h.primaryPrefix)+len(pk))
	return append(append(key, h.primaryPrefix...), pk...)
}

// indexEntries derives the entries of row in every maintained index, keyed
// by their string form. Derivation errors are returned before anything is
// written.
func (h *rowHelper) indexEntries(row *datum.DRecord, pk []byte) (map[string][]byte, error) {
	entries := make(map[string][]byte)
	for i := range h.indexes {
		ih := &h.indexes[i]
		tuples, err := ih.deriver.Derive(row)
		if err != nil {
			return nil, errors.Wrapf(err, "table %q", h.table.Name)
		}
		for _, e := range rowenc.EncodeIndexEntries(ih.prefix, pk, tuples) {
			entries[string(e.Key)] = e.Value
		}
	}
	return entries, nil
}

// prepare checks row against the table's fields and fills in defaults. The
// returned record is a copy holding the fields in declaration order.
func (h *rowHelper) prepare(row *datum.DRecord) (*datum.DRecord, error) {
	for _, f := range row.Fields {
		if _, ok := h.table.FindField(f.Name); !ok {
			return nil, errors.Wrapf(ErrInvalidRow, "table %q has no field %q", h.table.Name, f.Name)
		}
	}
	out := &datum.DRecord{Typ: h.table.RowType()}
	for i := range h.table.Fields {
		f := &h.table.Fields[i]
		v, ok := row.Get(f.Name)
		if !ok || datum.IsEmpty(v) {
			def, err := f.DefaultValue()
			if err != nil {
				return nil, err
			}
			if def == nil {
				if !f.Nullable {
					return nil, errors.Wrapf(ErrInvalidRow, "table %q: field %q requires a value", h.table.Name, f.Name)
				}
				continue
			}
			v = def
		}
		if datum.IsNull(v) {
			if !f.Nullable {
				return nil, errors.Wrapf(ErrInvalidRow, "table %q: field %q is not nullable", h.table.Name, f.Name)
			}
		} else {
			var err error
			if v, err = conform(f.Type, v, f.Name); err != nil {
				return nil, errors.Wrapf(err, "table %q", h.table.Name)
			}
		}
		out.Fields = append(out.Fields, datum.RecordField{Name: f.Name, Value: v})
	}
	return out, nil
}

// conform checks that v, found at path, is a value of typ, descending into
// containers. Nested nulls are allowed. Timestamps are brought to the
// precision of typ when that loses nothing.
func conform(typ *types.T, v datum.Datum, path string) (datum.Datum, error) {
	if datum.IsNull(v) {
		return v, nil
	}
	rt := v.ResolvedType()
	if datum.IsEmpty(v) || rt == nil {
		return nil, errors.Wrapf(ErrInvalidRow, "%s expects %s, got an untyped value", path, typ)
	}
	if rt.Family() != typ.Family() {
		return nil, errors.Wrapf(ErrInvalidRow, "%s expects %s, got %s", path, typ, rt)
	}
	switch t := v.(type) {
	case datum.DFixedBytes:
		if int32(len(t)) != typ.Size() {
			return nil, errors.Wrapf(ErrInvalidRow, "%s expects %d bytes, got %d", path, typ.Size(), len(t))
		}
	case datum.DEnum:
		if !t.Typ.Equal(typ) {
			return nil, errors.Wrapf(ErrInvalidRow, "%s expects %s, got %s", path, typ, t.Typ)
		}
		if t.Ordinal < 0 || t.Ordinal >= len(typ.EnumValues()) {
			return nil, errors.Wrapf(ErrInvalidRow, "%s: ordinal %d out of range for %s", path, t.Ordinal, typ)
		}
	case datum.DTimestamp:
		ts := datum.MakeDTimestamp(t.Time, typ.Precision())
		if !ts.Time.Equal(t.Time) {
			return nil, errors.Wrapf(ErrInvalidRow, "%s: %s exceeds precision %d", path, t, typ.Precision())
		}
		return ts, nil
	case *datum.DArray:
		out := &datum.DArray{Typ: typ, Elems: make([]datum.Datum, len(t.Elems))}
		for i, el := range t.Elems {
			c, err := conform(typ.Elem(), el, fmt.Sprintf("%s[%d]", path, i))
			if err != nil {
				return nil, err
			}
			out.Elems[i] = c
		}
		return out, nil
	case *datum.DMap:
		out := &datum.DMap{Typ: typ, Entries: make([]datum.MapEntry, len(t.Entries))}
		for i, e := range t.Entries {
			c, err := conform(typ.Elem(), e.Value, fmt.Sprintf("%s[%q]", path, e.Key))
			if err != nil {
				return nil, err
			}
			out.Entries[i] = datum.MapEntry{Key: e.Key, Value: c}
		}
		return out, nil
	case *datum.DRecord:
		out := &datum.DRecord{Typ: typ, Fields: make([]datum.RecordField, 0, len(t.Fields))}
		for _, f := range t.Fields {
			ft, ok := typ.Field(f.Name)
			if !ok {
				return nil, errors.Wrapf(ErrInvalidRow, "%s has no member %q", path, f.Name)
			}
			c, err := conform(ft, f.Value, path+"."+f.Name)
			if err != nil {
				return nil, err
			}
			out.Fields = append(out.Fields, datum.RecordField{Name: f.Name, Value: c})
		}
		return out, nil
	}
	return v, nil
}

func (h *rowHelper) encodeRow(row *datum.DRecord) []byte {
	return valueside.Encode(nil, row)
}

func (h *rowHelper) decodeRow(value []byte) (*datum.DRecord, error) {
	d, err := valueside.Decode(h.table.RowType(), value)
	if err != nil {
		return nil, errors.Wrapf(err, "table %q", h.table.Name)
	}
	rec, ok := d.(*datum.DRecord)
	if !ok {
		return nil, errors.AssertionFailedf("table %q: decoded %T", h.table.Name, d)
	}
	return rec, nil
}
