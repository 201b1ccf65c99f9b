// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package storage

import (
	"bytes"
	"sort"

	"github.com/cockroachdb/errors"
)

// mutation is a buffered write. A nil value is a deletion.
type mutation struct {
	key, value []byte
}

// sortedBatch buffers writes, keeping the last write of each key, and hands
// them to apply sorted by key.
type sortedBatch struct {
	ops   map[string]int
	muts  []mutation
	apply func(muts []mutation) error
	done  bool
}

func newSortedBatch(apply func(muts []mutation) error) *sortedBatch {
	return &sortedBatch{ops: make(map[string]int), apply: apply}
}

func (b *sortedBatch) write(key, value []byte) error {
	if b.done {
		return ErrClosed
	}
	if len(key) == 0 {
		return errors.New("storage: empty key")
	}
	m := mutation{key: append([]byte(nil), key...)}
	if value != nil {
		m.value = append([]byte{}, value...)
	}
	if i, ok := b.ops[string(key)]; ok {
		b.muts[i] = m
		return nil
	}
	b.ops[string(key)] = len(b.muts)
	b.muts = append(b.muts, m)
	return nil
}

func (b *sortedBatch) Put(key, value []byte) error {
	if value == nil {
		value = []byte{}
	}
	return b.write(key, value)
}

func (b *sortedBatch) Delete(key []byte) error {
	return b.write(key, nil)
}

func (b *sortedBatch) Len() int { return len(b.muts) }

func (b *sortedBatch) Commit() error {
	if b.done {
		return ErrClosed
	}
	b.done = true
	sort.Slice(b.muts, func(i, j int) bool { return bytes.Compare(b.muts[i].key, b.muts[j].key) < 0 })
	return b.apply(b.muts)
}

func (b *sortedBatch) Close() {
	b.done = true
	b.muts = nil
	b.ops = nil
}
