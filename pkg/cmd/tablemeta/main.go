// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Command tablemeta inspects the stores of a table metadata node.
package main

import "github.com/cockroachdb/tablemeta/pkg/cli"

func main() {
	cli.Main()
}
