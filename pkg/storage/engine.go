// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package storage defines the ordered key-value engine contract the row and
// index layers are written against, with two adapters: an in-memory B-tree
// and Pebble.
//
// The contract is deliberately small. Keys are compared with bytes.Compare.
// Writes go through a Batch which applies its mutations atomically and in
// ascending key order, whatever the order they were added in, so that
// concurrent writers always acquire keys in the same relative order.
package storage

import (
	"bytes"

	"github.com/cockroachdb/errors"
)

// ErrClosed is returned by operations on a closed engine, iterator or
// batch.
var ErrClosed = errors.New("storage: closed")

// Reader reads from an engine.
type Reader interface {
	// Get returns the value of key, or nil if the key does not exist. The
	// returned slice is owned by the caller.
	Get(key []byte) ([]byte, error)
	// NewIterator returns an iterator over the keys within opts' bounds. The
	// iterator sees a consistent view of the engine and must be closed.
	NewIterator(opts IterOptions) (Iterator, error)
}

// Engine is an ordered key-value store.
type Engine interface {
	Reader
	// NewBatch returns an empty write batch.
	NewBatch() Batch
	Close() error
}

// IterOptions bound an iterator. A nil bound is unbounded.
type IterOptions struct {
	// LowerBound is inclusive.
	LowerBound []byte
	// UpperBound is exclusive.
	UpperBound []byte
}

func (o IterOptions) contains(key []byte) bool {
	return (o.LowerBound == nil || bytes.Compare(key, o.LowerBound) >= 0) &&
		(o.UpperBound == nil || bytes.Compare(key, o.UpperBound) < 0)
}

// Iterator walks keys in order. Positioning methods return whether the
// iterator is positioned on a key. Key and Value are valid until the next
// positioning call.
type Iterator interface {
	SeekGE(key []byte) bool
	// SeekLT positions on the last key less than key.
	SeekLT(key []byte) bool
	First() bool
	Last() bool
	Next() bool
	Prev() bool
	Valid() bool
	Key() []byte
	Value() []byte
	// Close releases the iterator. It is safe to call more than once.
	Close() error
}

// Batch collects writes and applies them atomically.
type Batch interface {
	Put(key, value []byte) error
	Delete(key []byte) error
	// Len returns the number of distinct keys written.
	Len() int
	// Commit applies the batch in ascending key order. A batch cannot be
	// used after Commit.
	Commit() error
	// Close discards an uncommitted batch. It is safe to call after Commit.
	Close()
}
