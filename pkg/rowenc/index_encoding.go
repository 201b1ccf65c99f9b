// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package rowenc

import (
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/tablemeta/pkg/catalog/descpb"
	"github.com/cockroachdb/tablemeta/pkg/datum"
	"github.com/cockroachdb/tablemeta/pkg/keys"
	"github.com/cockroachdb/tablemeta/pkg/rowenc/keyside"
	"github.com/cockroachdb/tablemeta/pkg/util/encoding"
)

// IndexEntry represents an encoded key/value for an index entry.
type IndexEntry struct {
	Key   []byte
	Value []byte
}

// MakeIndexKeyPrefix returns the key prefix of an index of the table whose
// hierarchical identity prefix is tablePrefix.
func MakeIndexKeyPrefix(tablePrefix []byte, indexID descpb.IndexID) []byte {
	return keys.MakeIndexPrefix(tablePrefix, uint32(indexID))
}

// EncodeIndexEntries builds the entries of tuples under indexPrefix. Each key
// is the prefix, the tuple and the encoded primary key pk, so entries of
// different rows never collide. The value is pk, the back reference to the
// row.
func EncodeIndexEntries(indexPrefix, pk []byte, tuples []IndexTuple) []IndexEntry {
	entries := make([]IndexEntry, len(tuples))
	for i, t := range tuples {
		key := make([]byte, 0, len(indexPrefix)+len(t.Key)+len(pk))
		key = append(key, indexPrefix...)
		key = append(key, t.Key...)
		key = append(key, pk...)
		entries[i] = IndexEntry{Key: key, Value: pk}
	}
	return entries
}

// EncodePrimaryKey appends the ascending encoding of row's primary key
// values to b.
func EncodePrimaryKey(b []byte, table *descpb.TableDescriptor, row *datum.DRecord) ([]byte, error) {
	for _, name := range table.PrimaryKey {
		v, ok := row.Get(name)
		if !ok || datum.IsNull(v) || datum.IsEmpty(v) {
			return nil, errors.Newf("table %q: primary key field %q must have a value", table.Name, name)
		}
		var err error
		if b, err = keyside.Encode(b, v, encoding.Ascending); err != nil {
			return nil, errors.Wrapf(err, "primary key field %q", name)
		}
	}
	return b, nil
}

// DecodePrimaryKey decodes the primary key values at the start of key,
// returning them in key order with the remaining bytes.
func DecodePrimaryKey(
	table *descpb.TableDescriptor, key []byte,
) ([]datum.Datum, []byte, error) {
	fields, err := table.PrimaryKeyFields()
	if err != nil {
		return nil, nil, err
	}
	vals := make([]datum.Datum, len(fields))
	for i, f := range fields {
		if vals[i], key, err = keyside.Decode(f.Type, key, encoding.Ascending); err != nil {
			return nil, nil, errors.Wrapf(err, "primary key field %q", f.Name)
		}
	}
	return vals, key, nil
}

// DecodeIndexEntryKey splits the part of an index entry key following the
// index prefix into the indexed values and the encoded primary key.
func DecodeIndexEntryKey(
	idx *descpb.IndexDescriptor, key []byte,
) (vals []datum.Datum, pk []byte, _ error) {
	vals = make([]datum.Datum, len(idx.Fields))
	for i := range idx.Fields {
		f := &idx.Fields[i]
		if f.Type == nil {
			return nil, nil, errors.AssertionFailedf("index %q: path %q has no type", idx.Name, f.Path)
		}
		var err error
		if vals[i], key, err = keyside.Decode(f.Type, key, f.Direction); err != nil {
			return nil, nil, errors.Wrapf(err, "index %q", idx.Name)
		}
	}
	return vals, key, nil
}
