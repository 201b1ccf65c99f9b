// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package storage

import (
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
)

// PebbleConfig configures a Pebble engine.
type PebbleConfig struct {
	// Dir is the directory of the store.
	Dir string
	// FS defaults to the operating system's file system. Tests use
	// vfs.NewMem.
	FS vfs.FS
	// Sync makes every batch commit wait for the write ahead log to be
	// synced.
	Sync bool
}

type pebbleEngine struct {
	db   *pebble.DB
	opts *pebble.WriteOptions
}

// NewPebble opens or creates a Pebble store.
func NewPebble(cfg PebbleConfig) (Engine, error) {
	opts := &pebble.Options{FS: cfg.FS}
	if opts.FS == nil {
		opts.FS = vfs.Default
	}
	db, err := pebble.Open(cfg.Dir, opts)
	if err != nil {
		return nil, errors.Wrapf(err, "opening pebble store in %q", cfg.Dir)
	}
	e := &pebbleEngine{db: db, opts: pebble.NoSync}
	if cfg.Sync {
		e.opts = pebble.Sync
	}
	return e, nil
}

func (e *pebbleEngine) Get(key []byte) ([]byte, error) {
	v, closer, err := e.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer closer.Close()
	return append([]byte{}, v...), nil
}

func (e *pebbleEngine) NewIterator(opts IterOptions) (Iterator, error) {
	it, err := e.db.NewIter(&pebble.IterOptions{LowerBound: opts.LowerBound, UpperBound: opts.UpperBound})
	if err != nil {
		return nil, err
	}
	return &pebbleIter{Iterator: it}, nil
}

func (e *pebbleEngine) NewBatch() Batch {
	return newSortedBatch(e.apply)
}

func (e *pebbleEngine) apply(muts []mutation) error {
	b := e.db.NewBatch()
	defer b.Close()
	for _, m := range muts {
		var err error
		if m.value == nil {
			err = b.Delete(m.key, nil)
		} else {
			err = b.Set(m.key, m.value, nil)
		}
		if err != nil {
			return err
		}
	}
	return b.Commit(e.opts)
}

func (e *pebbleEngine) Close() error {
	return e.db.Close()
}

type pebbleIter struct {
	*pebble.Iterator
	closed bool
}

func (it *pebbleIter) Close() error {
	if it.closed {
		return nil
	}
	it.closed = true
	return it.Iterator.Close()
}
