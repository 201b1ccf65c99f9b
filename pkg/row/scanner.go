// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package row

import (
	"bytes"
	"context"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/tablemeta/pkg/catalog"
	"github.com/cockroachdb/tablemeta/pkg/catalog/descpb"
	"github.com/cockroachdb/tablemeta/pkg/datum"
	"github.com/cockroachdb/tablemeta/pkg/keys"
	"github.com/cockroachdb/tablemeta/pkg/rowenc"
	"github.com/cockroachdb/tablemeta/pkg/rowenc/keyside"
	"github.com/cockroachdb/tablemeta/pkg/storage"
	"github.com/cockroachdb/tablemeta/pkg/util/encoding"
)

// ScanOptions configure an IndexScanner.
type ScanOptions struct {
	// Prefix restricts the scan to entries whose leading index values equal
	// these. An empty prefix scans the whole index.
	Prefix []datum.Datum
	// Reverse scans in descending key order.
	Reverse bool
	// IncludeEmpty returns the placeholder entries of rows that have no
	// values for a multi-key path of the index, because the container is
	// empty or absent. They are skipped by default. Entries whose scalar
	// paths are absent are always returned.
	IncludeEmpty bool
	// BatchSize bounds the keys read per engine iterator. Zero means
	// DefaultBatchSize.
	BatchSize int
}

// IndexEntry is an entry returned by an IndexScanner.
type IndexEntry struct {
	// Values are the indexed values, one per index field.
	Values []datum.Datum
	// PrimaryKey are the primary key values of the row, in key order.
	PrimaryKey []datum.Datum

	pk []byte
}

// IndexScanner iterates over the entries of a READY secondary index. It
// reads in batches and closes the engine iterator of a batch before Next
// returns, so a scanner holds no engine resources between calls and can be
// abandoned without being closed.
type IndexScanner struct {
	r       storage.Reader
	table   *descpb.TableDescriptor
	index   *descpb.IndexDescriptor
	fetcher *Fetcher
	opts    ScanOptions

	// multiKey marks the index fields whose paths select several values.
	multiKey   []bool
	prefix     []byte
	start, end []byte
	// resume is the last key read; the next batch starts after it.
	resume    []byte
	buf       []IndexEntry
	pos       int
	exhausted bool
	closed    bool
	cur       IndexEntry
}

// NewIndexScanner returns a scanner over the index named indexName of table.
func NewIndexScanner(
	r storage.Reader,
	table *descpb.TableDescriptor,
	tablePrefix []byte,
	indexName string,
	opts ScanOptions,
) (*IndexScanner, error) {
	idx, ok := table.FindIndexByName(indexName)
	if !ok {
		return nil, errors.Wrapf(catalog.ErrIndexNotFound, "index %q of table %q", indexName, table.Name)
	}
	if idx.Status != descpb.IndexStatusReady {
		return nil, errors.WithHint(
			errors.Newf("index %q of table %q is %s", idx.Name, table.Name, idx.Status),
			"only READY indexes can be scanned")
	}
	idx, err := rowenc.ResolveIndex(table, idx)
	if err != nil {
		return nil, err
	}
	if len(opts.Prefix) > len(idx.Fields) {
		return nil, errors.Newf("index %q has %d fields, got a prefix of %d values",
			idx.Name, len(idx.Fields), len(opts.Prefix))
	}
	multiKey := make([]bool, len(idx.Fields))
	for i := range idx.Fields {
		p, err := rowenc.ParsePath(idx.Fields[i].Path)
		if err != nil {
			return nil, err
		}
		multiKey[i] = p.MultiKey()
	}
	fetcher, err := NewFetcher(r, table, tablePrefix)
	if err != nil {
		return nil, err
	}
	s := &IndexScanner{
		r:        r,
		table:    table,
		index:    idx,
		fetcher:  fetcher,
		opts:     opts,
		multiKey: multiKey,
		prefix:   rowenc.MakeIndexKeyPrefix(tablePrefix, idx.ID),
	}
	s.start = append([]byte(nil), s.prefix...)
	for i, v := range opts.Prefix {
		if s.start, err = keyside.Encode(s.start, v, idx.Fields[i].Direction); err != nil {
			return nil, errors.Wrapf(err, "index %q: prefix value %d", idx.Name, i)
		}
	}
	s.end = keys.PrefixEnd(s.start)
	return s, nil
}

// Next advances to the next entry. It returns false when the scan is done
// or the scanner is closed.
func (s *IndexScanner) Next(ctx context.Context) (bool, error) {
	for s.pos >= len(s.buf) {
		if s.closed || s.exhausted {
			return false, nil
		}
		if err := s.fetch(ctx); err != nil {
			return false, err
		}
	}
	s.cur = s.buf[s.pos]
	s.pos++
	return true, nil
}

// Entry returns the current entry.
func (s *IndexScanner) Entry() IndexEntry { return s.cur }

// Row fetches the row of the current entry. It returns nil if the row was
// deleted since the entry was read.
func (s *IndexScanner) Row() (*datum.DRecord, error) {
	return s.fetcher.getEncoded(s.cur.pk)
}

// Close ends the scan. It is safe to call more than once.
func (s *IndexScanner) Close() {
	s.closed = true
	s.buf = nil
	s.pos = 0
}

// fetch reads the next batch of keys with a short-lived iterator.
func (s *IndexScanner) fetch(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	opts := storage.IterOptions{LowerBound: s.start, UpperBound: s.end}
	if s.resume != nil {
		if s.opts.Reverse {
			opts.UpperBound = s.resume
		} else {
			opts.LowerBound = append(append([]byte(nil), s.resume...), 0)
		}
	}
	it, err := s.r.NewIterator(opts)
	if err != nil {
		return err
	}
	defer it.Close()

	s.buf, s.pos = s.buf[:0], 0
	limit := s.opts.BatchSize
	if limit <= 0 {
		limit = DefaultBatchSize
	}
	n := 0
	ok := it.First()
	if s.opts.Reverse {
		ok = it.Last()
	}
	for ; ok && n < limit; n++ {
		key := append([]byte(nil), it.Key()...)
		s.resume = key
		skip, err := s.isPlaceholder(key)
		if err != nil {
			return err
		}
		if !skip {
			e, err := s.decode(key)
			if err != nil {
				return err
			}
			s.buf = append(s.buf, e)
		}
		if s.opts.Reverse {
			ok = it.Prev()
		} else {
			ok = it.Next()
		}
	}
	s.exhausted = !ok
	return nil
}

func (s *IndexScanner) decode(key []byte) (IndexEntry, error) {
	if !bytes.HasPrefix(key, s.prefix) {
		return IndexEntry{}, errors.AssertionFailedf("key %s outside of index %q",
			keys.PrettyPrint(key), s.index.Name)
	}
	vals, pk, err := rowenc.DecodeIndexEntryKey(s.index, key[len(s.prefix):])
	if err != nil {
		return IndexEntry{}, err
	}
	pkVals, rest, err := rowenc.DecodePrimaryKey(s.table, pk)
	if err != nil {
		return IndexEntry{}, err
	}
	if len(rest) != 0 {
		return IndexEntry{}, errors.AssertionFailedf("index %q: %d trailing bytes in key %s",
			s.index.Name, len(rest), keys.PrettyPrint(key))
	}
	return IndexEntry{Values: vals, PrimaryKey: pkVals, pk: pk}, nil
}

// isPlaceholder returns true for the entry of a row with no values for a
// multi-key path, unless the scan includes them. It looks at the encoded
// values only, so skipped entries are never decoded.
func (s *IndexScanner) isPlaceholder(key []byte) (bool, error) {
	if s.opts.IncludeEmpty || !bytes.HasPrefix(key, s.prefix) {
		return false, nil
	}
	key = key[len(s.prefix):]
	for i := range s.index.Fields {
		if s.multiKey[i] && encoding.PeekType(key) == encoding.Empty {
			return true, nil
		}
		var err error
		if key, err = keyside.Skip(key, s.index.Fields[i].Direction); err != nil {
			return false, errors.Wrapf(err, "index %q", s.index.Name)
		}
	}
	return false, nil
}
