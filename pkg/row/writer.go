// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package row

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/tablemeta/pkg/catalog/descpb"
	"github.com/cockroachdb/tablemeta/pkg/datum"
	"github.com/cockroachdb/tablemeta/pkg/storage"
	"github.com/cockroachdb/tablemeta/pkg/util/log"
)

// Writer inserts, updates and deletes the rows of one table version. It
// maintains the table's writable indexes, that is those POPULATING or
// READY. A Writer is bound to the descriptor it was created with; callers
// create a new one when the table changes.
//
// A row's old value is read, its index entries diffed and the new value
// written while the row is locked, so concurrent writes of one row through
// Writers sharing Config.Locks apply one after the other.
type Writer struct {
	eng   storage.Engine
	h     *rowHelper
	locks *RowLocks
}

// NewWriter returns a Writer for table, whose identity prefix is
// tablePrefix.
func NewWriter(
	eng storage.Engine, table *descpb.TableDescriptor, tablePrefix []byte, cfg Config,
) (*Writer, error) {
	h, err := newRowHelper(table, tablePrefix, cfg, func(idx *descpb.IndexDescriptor) bool {
		return idx.Status.Writable()
	})
	if err != nil {
		return nil, err
	}
	return &Writer{eng: eng, h: h, locks: cfg.locks()}, nil
}

// Insert writes a new row. Absent fields take their defaults. It fails with
// ErrRowExists if a row with the same primary key exists.
func (w *Writer) Insert(ctx context.Context, row *datum.DRecord) error {
	return w.write(ctx, row, false /* overwrite */, true /* create */)
}

// Update replaces an existing row, identified by the primary key of row. It
// fails with ErrRowNotFound if there is no such row.
func (w *Writer) Update(ctx context.Context, row *datum.DRecord) error {
	return w.write(ctx, row, true /* overwrite */, false /* create */)
}

// Upsert inserts row or replaces the row with the same primary key.
func (w *Writer) Upsert(ctx context.Context, row *datum.DRecord) error {
	return w.write(ctx, row, true /* overwrite */, true /* create */)
}

func (w *Writer) write(ctx context.Context, row *datum.DRecord, overwrite, create bool) error {
	row, err := w.h.prepare(row)
	if err != nil {
		return err
	}
	pk, err := w.h.primaryKey(row)
	if err != nil {
		return errors.Mark(err, ErrInvalidRow)
	}
	newEntries, err := w.h.indexEntries(row, pk)
	if err != nil {
		return err
	}

	key := w.h.rowKey(pk)
	defer w.locks.lock(key)()
	old, err := w.eng.Get(key)
	if err != nil {
		return err
	}
	var oldEntries map[string][]byte
	switch {
	case old != nil && !overwrite:
		return errors.Wrapf(ErrRowExists, "table %q", w.h.table.Name)
	case old == nil && !create:
		return errors.Wrapf(ErrRowNotFound, "table %q", w.h.table.Name)
	case old != nil:
		oldRow, err := w.h.decodeRow(old)
		if err != nil {
			return err
		}
		if oldEntries, err = w.h.indexEntries(oldRow, pk); err != nil {
			return errors.Wrap(err, "deriving entries of the existing row")
		}
	}

	b := w.eng.NewBatch()
	defer b.Close()
	if err := b.Put(key, w.h.encodeRow(row)); err != nil {
		return err
	}
	var added, removed int
	for k := range oldEntries {
		if _, ok := newEntries[k]; !ok {
			if err := b.Delete([]byte(k)); err != nil {
				return err
			}
			removed++
		}
	}
	for k, v := range newEntries {
		if _, ok := oldEntries[k]; !ok {
			if err := b.Put([]byte(k), v); err != nil {
				return err
			}
			added++
		}
	}
	if err := b.Commit(); err != nil {
		return err
	}
	log.VEventf(ctx, 2, "table %s: wrote row, %d index entries added, %d removed",
		w.h.table.Name, added, removed)
	return nil
}

// Delete removes the row with the given primary key values, in key order,
// and its index entries. It reports whether the row existed.
func (w *Writer) Delete(ctx context.Context, pk ...datum.Datum) (bool, error) {
	enc, err := w.h.encodeKeyValues(pk)
	if err != nil {
		return false, err
	}
	key := w.h.rowKey(enc)
	defer w.locks.lock(key)()
	old, err := w.eng.Get(key)
	if err != nil || old == nil {
		return false, err
	}
	oldRow, err := w.h.decodeRow(old)
	if err != nil {
		return false, err
	}
	entries, err := w.h.indexEntries(oldRow, enc)
	if err != nil {
		return false, errors.Wrap(err, "deriving entries of the existing row")
	}

	b := w.eng.NewBatch()
	defer b.Close()
	if err := b.Delete(key); err != nil {
		return false, err
	}
	for k := range entries {
		if err := b.Delete([]byte(k)); err != nil {
			return false, err
		}
	}
	if err := b.Commit(); err != nil {
		return false, err
	}
	log.VEventf(ctx, 2, "table %s: deleted row and %d index entries", w.h.table.Name, len(entries))
	return true, nil
}
