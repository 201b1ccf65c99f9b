// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

/*
Package rowenc derives secondary index entries from rows.

An index declares one or more paths into the row. A path walks record
members and map keys, and may contain multi-key steps that select every
element of an array (`tags[]`) or every key or value of a map
(`m.keys()`, `m.values()`). A row produces one index tuple per position of
its multi-key steps. All multi-key paths of an index must walk the same
containers; keys() and values() of one map are paired entry by entry.

Tuple components that do not exist in the row are EMPTY and components
reached through an explicit null are NULL. In ascending order EMPTY sorts
after every value and NULL sorts last; see package keyside.

The key of an index entry is

	<table prefix> <index id> <tuple> <primary key>

and its value is the encoded primary key.
*/
package rowenc
