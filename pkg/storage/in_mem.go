// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package storage

import (
	"bytes"

	"github.com/cockroachdb/tablemeta/pkg/util/syncutil"
	"github.com/google/btree"
)

// inMemBtreeDegree is the degree of the in-memory engine's btree.
const inMemBtreeDegree = 32

type kv struct {
	key, value []byte
}

var _ btree.Item = (*kv)(nil)

// Less implements the btree.Item interface.
func (a *kv) Less(b btree.Item) bool {
	return bytes.Compare(a.key, b.(*kv).key) < 0
}

type inMem struct {
	mu struct {
		syncutil.RWMutex
		t      *btree.BTree
		closed bool
	}
}

// NewInMem returns an empty in-memory engine.
func NewInMem() Engine {
	e := &inMem{}
	e.mu.t = btree.New(inMemBtreeDegree)
	return e
}

func (e *inMem) Get(key []byte) ([]byte, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.mu.closed {
		return nil, ErrClosed
	}
	it := e.mu.t.Get(&kv{key: key})
	if it == nil {
		return nil, nil
	}
	return append([]byte{}, it.(*kv).value...), nil
}

func (e *inMem) NewIterator(opts IterOptions) (Iterator, error) {
	// Clone updates the tree's copy-on-write state and needs the write lock.
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.mu.closed {
		return nil, ErrClosed
	}
	return &inMemIter{t: e.mu.t.Clone(), opts: opts}, nil
}

func (e *inMem) NewBatch() Batch {
	return newSortedBatch(e.apply)
}

func (e *inMem) apply(muts []mutation) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.mu.closed {
		return ErrClosed
	}
	for _, m := range muts {
		if m.value == nil {
			e.mu.t.Delete(&kv{key: m.key})
		} else {
			e.mu.t.ReplaceOrInsert(&kv{key: m.key, value: m.value})
		}
	}
	return nil
}

func (e *inMem) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.mu.closed = true
	e.mu.t = btree.New(inMemBtreeDegree)
	return nil
}

type inMemIter struct {
	t    *btree.BTree
	opts IterOptions
	cur  *kv
}

func (it *inMemIter) set(i *kv) bool {
	if i != nil && !it.opts.contains(i.key) {
		i = nil
	}
	it.cur = i
	return i != nil
}

// seekGE finds the first key >= key, or > key if strict.
func (it *inMemIter) seekGE(key []byte, strict bool) bool {
	if it.t == nil {
		return false
	}
	if it.opts.LowerBound != nil && bytes.Compare(key, it.opts.LowerBound) < 0 {
		key, strict = it.opts.LowerBound, false
	}
	var found *kv
	it.t.AscendGreaterOrEqual(&kv{key: key}, func(i btree.Item) bool {
		if strict && bytes.Equal(i.(*kv).key, key) {
			return true
		}
		found = i.(*kv)
		return false
	})
	return it.set(found)
}

// seekLE finds the last key <= key, or < key if strict.
func (it *inMemIter) seekLE(key []byte, strict bool) bool {
	if it.t == nil {
		return false
	}
	if it.opts.UpperBound != nil && bytes.Compare(key, it.opts.UpperBound) >= 0 {
		key, strict = it.opts.UpperBound, true
	}
	var found *kv
	it.t.DescendLessOrEqual(&kv{key: key}, func(i btree.Item) bool {
		if strict && bytes.Equal(i.(*kv).key, key) {
			return true
		}
		found = i.(*kv)
		return false
	})
	return it.set(found)
}

func (it *inMemIter) SeekGE(key []byte) bool { return it.seekGE(key, false) }
func (it *inMemIter) SeekLT(key []byte) bool { return it.seekLE(key, true) }

func (it *inMemIter) First() bool {
	if it.opts.LowerBound != nil {
		return it.seekGE(it.opts.LowerBound, false)
	}
	if it.t == nil {
		return false
	}
	first := it.t.Min()
	if first == nil {
		return it.set(nil)
	}
	return it.set(first.(*kv))
}

func (it *inMemIter) Last() bool {
	if it.opts.UpperBound != nil {
		return it.seekLE(it.opts.UpperBound, true)
	}
	if it.t == nil {
		return false
	}
	last := it.t.Max()
	if last == nil {
		return it.set(nil)
	}
	return it.set(last.(*kv))
}

func (it *inMemIter) Next() bool {
	if it.cur == nil {
		return false
	}
	return it.seekGE(it.cur.key, true)
}

func (it *inMemIter) Prev() bool {
	if it.cur == nil {
		return false
	}
	return it.seekLE(it.cur.key, true)
}

func (it *inMemIter) Valid() bool   { return it.cur != nil }
func (it *inMemIter) Key() []byte   { return it.cur.key }
func (it *inMemIter) Value() []byte { return it.cur.value }

func (it *inMemIter) Close() error {
	it.t = nil
	it.cur = nil
	return nil
}
