// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package catalog

import "github.com/cockroachdb/errors"

// Errors returned by catalog operations. Callers test for them with
// errors.Is; the returned errors carry more detail.
var (
	// ErrTableNotEmpty is returned when dropping a table with children
	// without cascading.
	ErrTableNotEmpty = errors.New("table has child tables")
	// ErrMetadataCorruption marks a change that cannot be applied. The
	// catalog must be reloaded from a snapshot.
	ErrMetadataCorruption = errors.New("metadata corruption")
	// ErrStaleMetadataVersion is returned when the requested sequence
	// number has been pruned from the change list.
	ErrStaleMetadataVersion = errors.New("metadata version no longer available")
	// ErrLimitExceeded is returned when a mutation would exceed a table's
	// index or child table limit.
	ErrLimitExceeded = errors.New("limit exceeded")
	// ErrNamespaceNotEmpty is returned when dropping a namespace that still
	// holds tables.
	ErrNamespaceNotEmpty = errors.New("namespace is not empty")
	// ErrNamespaceNotFound is returned for unknown namespaces.
	ErrNamespaceNotFound = errors.New("namespace not found")
	// ErrTableNotFound is returned for unknown tables.
	ErrTableNotFound = errors.New("table not found")
	// ErrTableExists is returned when a table name is already used in its
	// namespace.
	ErrTableExists = errors.New("table already exists")
	// ErrIndexNotFound is returned for unknown indexes.
	ErrIndexNotFound = errors.New("index not found")
	// ErrRegionNotFound is returned for unknown regions.
	ErrRegionNotFound = errors.New("region not found")
)
