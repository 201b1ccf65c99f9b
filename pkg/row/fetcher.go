// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package row

import (
	"github.com/cockroachdb/tablemeta/pkg/catalog/descpb"
	"github.com/cockroachdb/tablemeta/pkg/datum"
	"github.com/cockroachdb/tablemeta/pkg/storage"
)

// Fetcher reads rows by primary key.
type Fetcher struct {
	r storage.Reader
	h *rowHelper
}

// NewFetcher returns a Fetcher for table.
func NewFetcher(r storage.Reader, table *descpb.TableDescriptor, tablePrefix []byte) (*Fetcher, error) {
	h, err := newRowHelper(table, tablePrefix, Config{}, func(*descpb.IndexDescriptor) bool { return false })
	if err != nil {
		return nil, err
	}
	return &Fetcher{r: r, h: h}, nil
}

// Get returns the row with the given primary key values, in key order, or
// nil if there is none.
func (f *Fetcher) Get(pk ...datum.Datum) (*datum.DRecord, error) {
	enc, err := f.h.encodeKeyValues(pk)
	if err != nil {
		return nil, err
	}
	return f.getEncoded(enc)
}

// getEncoded looks a row up by its encoded primary key, the value of its
// index entries.
func (f *Fetcher) getEncoded(pk []byte) (*datum.DRecord, error) {
	v, err := f.r.Get(f.h.rowKey(pk))
	if err != nil || v == nil {
		return nil, err
	}
	return f.h.decodeRow(v)
}
