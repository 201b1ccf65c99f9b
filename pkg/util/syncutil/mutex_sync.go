// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package syncutil wraps the sync primitives with lock assertions.
package syncutil

import (
	"sync"

	"github.com/cockroachdb/errors"
)

// A Mutex is a mutual exclusion lock.
type Mutex struct {
	sync.Mutex
}

// AssertHeld panics if the mutex is not locked. Functions which require that
// their callers hold a particular lock use this to enforce the requirement
// directly.
//
// The lock is not required to be held by any particular goroutine, just that
// some goroutine holds it.
func (m *Mutex) AssertHeld() {
	if m.TryLock() {
		m.Unlock()
		panic(errors.AssertionFailedf("mutex is not held"))
	}
}

// An RWMutex is a reader/writer mutual exclusion lock.
type RWMutex struct {
	sync.RWMutex
}

// AssertHeld panics if the mutex is not locked for writing.
func (rw *RWMutex) AssertHeld() {
	if rw.TryRLock() {
		rw.RUnlock()
		panic(errors.AssertionFailedf("mutex is not write locked"))
	}
}

// AssertRHeld panics if the mutex is not locked for reading or writing.
func (rw *RWMutex) AssertRHeld() {
	if rw.TryLock() {
		rw.Unlock()
		panic(errors.AssertionFailedf("mutex is not read locked"))
	}
}
