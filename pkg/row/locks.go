// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package row

import (
	"sort"

	"github.com/cespare/xxhash/v2"
	"github.com/cockroachdb/tablemeta/pkg/util/syncutil"
)

const rowLockStripes = 256

// RowLocks serializes the read-modify-write of rows. Every Writer and
// Backfill working on the same engine must share one RowLocks, see
// Config.Locks. Row keys hash onto a fixed set of mutexes, so unrelated rows
// may occasionally wait for each other.
type RowLocks struct {
	stripes [rowLockStripes]syncutil.Mutex
}

// NewRowLocks returns an empty lock table.
func NewRowLocks() *RowLocks {
	return &RowLocks{}
}

func stripeOf(key []byte) int {
	return int(xxhash.Sum64(key) % rowLockStripes)
}

// lock locks the row stored at key and returns the function unlocking it.
func (l *RowLocks) lock(key []byte) (unlock func()) {
	mu := &l.stripes[stripeOf(key)]
	mu.Lock()
	return mu.Unlock
}

// lockAll locks the rows stored at keys. Stripes are taken in ascending
// order so that concurrent callers cannot deadlock.
func (l *RowLocks) lockAll(keys [][]byte) (unlock func()) {
	seen := make(map[int]struct{}, len(keys))
	stripes := make([]int, 0, len(keys))
	for _, k := range keys {
		s := stripeOf(k)
		if _, ok := seen[s]; !ok {
			seen[s] = struct{}{}
			stripes = append(stripes, s)
		}
	}
	sort.Ints(stripes)
	for _, s := range stripes {
		l.stripes[s].Lock()
	}
	return func() {
		for i := len(stripes) - 1; i >= 0; i-- {
			l.stripes[stripes[i]].Unlock()
		}
	}
}
