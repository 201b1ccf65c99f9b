// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package row

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/tablemeta/pkg/catalog"
	"github.com/cockroachdb/tablemeta/pkg/catalog/descpb"
	"github.com/cockroachdb/tablemeta/pkg/keys"
	"github.com/cockroachdb/tablemeta/pkg/storage"
	"github.com/cockroachdb/tablemeta/pkg/util/log"
)

// backfillProgressInterval is the minimum time between two progress reports
// of one backfill.
const backfillProgressInterval = 10 * time.Second

// Backfill writes the entries of the POPULATING index indexName for every
// row of table and returns the number of rows indexed. Rows are read a batch
// at a time and each batch of entries is committed before the next is read.
// Concurrent writers must share cfg.Locks with the backfill.
//
// Writers created after the index became POPULATING maintain it already, so
// once Backfill returns the index can be moved to READY.
func Backfill(
	ctx context.Context,
	eng storage.Engine,
	table *descpb.TableDescriptor,
	tablePrefix []byte,
	indexName string,
	cfg Config,
) (int, error) {
	idx, ok := table.FindIndexByName(indexName)
	if !ok {
		return 0, errors.Wrapf(catalog.ErrIndexNotFound, "index %q of table %q", indexName, table.Name)
	}
	if idx.Status != descpb.IndexStatusPopulating {
		return 0, errors.Newf("index %q of table %q is %s, not %s",
			idx.Name, table.Name, idx.Status, descpb.IndexStatusPopulating)
	}
	h, err := newRowHelper(table, tablePrefix, cfg, func(i *descpb.IndexDescriptor) bool {
		return i.ID == idx.ID
	})
	if err != nil {
		return 0, err
	}

	locks := cfg.locks()
	start := h.primaryPrefix
	end := keys.PrefixEnd(h.primaryPrefix)
	rows := 0
	progress := log.Every(backfillProgressInterval)
	for {
		if err := ctx.Err(); err != nil {
			return rows, err
		}
		n, resume, err := backfillBatch(h, eng, locks, start, end, cfg.batchSize())
		rows += n
		if err != nil {
			return rows, err
		}
		if resume == nil {
			break
		}
		start = resume
		if progress.ShouldLog() {
			log.Infof(ctx, "index %s: backfilled %d rows so far", idx.Name, rows)
		}
	}
	log.Infof(ctx, "index %s of table %s: backfilled %d rows", idx.Name, table.Name, rows)
	return rows, nil
}

// backfillBatch indexes up to limit rows in [start, end). It returns the key
// to resume from, or nil when the span is done. The rows of the batch are
// locked and read again before their entries are derived, so a row written
// concurrently is indexed at its latest value.
func backfillBatch(
	h *rowHelper, eng storage.Engine, locks *RowLocks, start, end []byte, limit int,
) (n int, resume []byte, _ error) {
	it, err := eng.NewIterator(storage.IterOptions{LowerBound: start, UpperBound: end})
	if err != nil {
		return 0, nil, err
	}
	var rowKeys [][]byte
	ok := it.First()
	for ; ok && len(rowKeys) < limit; ok = it.Next() {
		rowKeys = append(rowKeys, append([]byte(nil), it.Key()...))
	}
	if ok {
		resume = append([]byte(nil), it.Key()...)
	}
	if err := it.Close(); err != nil {
		return 0, nil, err
	}

	defer locks.lockAll(rowKeys)()
	b := eng.NewBatch()
	defer b.Close()
	for _, key := range rowKeys {
		value, err := eng.Get(key)
		if err != nil {
			return n, nil, err
		}
		if value == nil {
			// Deleted since the scan.
			continue
		}
		row, err := h.decodeRow(value)
		if err != nil {
			return n, nil, errors.Wrapf(err, "key %s", keys.PrettyPrint(key))
		}
		entries, err := h.indexEntries(row, key[len(h.primaryPrefix):])
		if err != nil {
			return n, nil, errors.Wrapf(err, "key %s", keys.PrettyPrint(key))
		}
		for k, v := range entries {
			if err := b.Put([]byte(k), v); err != nil {
				return n, nil, err
			}
		}
		n++
	}
	if err := b.Commit(); err != nil {
		return 0, nil, err
	}
	return n, resume, nil
}
