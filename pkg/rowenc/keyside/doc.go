// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package keyside contains low-level primitives used to encode/decode typed
// values into/from keys.
//
// Low-level here means that these primitives do not operate with table or
// index descriptors. Only scalar families may appear in keys; containers and
// JSON are rejected with ErrUnsupportedType.
package keyside
