// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package rowenc

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
	"testing"

	"github.com/cockroachdb/datadriven"
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/tablemeta/pkg/catalog/descpb"
	"github.com/cockroachdb/tablemeta/pkg/datum"
	"github.com/cockroachdb/tablemeta/pkg/keys"
	"github.com/cockroachdb/tablemeta/pkg/types"
	"github.com/cockroachdb/tablemeta/pkg/util/encoding"
	"github.com/stretchr/testify/require"
)

// makeTable builds a table whose first field is the primary key.
func makeTable(t *testing.T, fields string) *descpb.TableDescriptor {
	typ, err := types.Parse("RECORD(" + fields + ")")
	require.NoError(t, err)
	desc := &descpb.TableDescriptor{Namespace: "ns", Name: "t", ID: 52, NextIndexID: 2}
	for i, f := range typ.Fields() {
		desc.Fields = append(desc.Fields, descpb.FieldDef{Name: f.Name, Type: f.Type, Nullable: i > 0})
	}
	desc.PrimaryKey = []string{typ.Fields()[0].Name}
	require.NoError(t, desc.ValidateTable())
	return desc
}

func parseRow(t *testing.T, table *descpb.TableDescriptor, s string) *datum.DRecord {
	d, err := datum.ParseJSON(table.RowType(), []byte(s))
	require.NoError(t, err)
	return d.(*datum.DRecord)
}

// TestDerive runs the derivation scenarios in testdata/derive:
//
//	table
//	<field> <type>, ...
//
//	index name=<name> [unique] [no-nulls] [key-size=<n>] [max-keys=<n>]
//	<path> [asc|desc]
//	...
//
//	derive
//	<row as JSON>
//
// derive prints one tuple per line in enumeration order.
func TestDerive(t *testing.T) {
	datadriven.Walk(t, "testdata", func(t *testing.T, path string) {
		var table *descpb.TableDescriptor
		var deriver *IndexKeyDeriver
		datadriven.RunTest(t, path, func(t *testing.T, d *datadriven.TestData) string {
			switch d.Cmd {
			case "table":
				table = makeTable(t, strings.Join(strings.Split(d.Input, "\n"), " "))
				return ""

			case "index":
				idx := &descpb.IndexDescriptor{ID: table.NextIndexID, TableID: table.ID, IndexNulls: true}
				d.ScanArgs(t, "name", &idx.Name)
				idx.Unique = d.HasArg("unique")
				idx.IndexNulls = !d.HasArg("no-nulls")
				for _, line := range strings.Split(d.Input, "\n") {
					parts := strings.Fields(line)
					if len(parts) == 0 {
						continue
					}
					f := descpb.IndexField{Path: parts[0], Direction: encoding.Ascending}
					if len(parts) > 1 {
						var err error
						f.Direction, err = encoding.ParseDirection(parts[1])
						require.NoError(t, err)
					}
					idx.Fields = append(idx.Fields, f)
				}
				tbl := table.Clone()
				if d.HasArg("key-size") {
					d.ScanArgs(t, "key-size", &tbl.Limits.IndexKeySize)
				}
				var cfg DeriverConfig
				if d.HasArg("max-keys") {
					d.ScanArgs(t, "max-keys", &cfg.MaxIndexKeysPerRow)
				}
				var err error
				deriver, err = NewIndexKeyDeriver(tbl, idx, cfg)
				if err != nil {
					require.True(t, errors.Is(err, ErrInvalidIndexDefinition), "%v", err)
					return fmt.Sprintf("error: %v", err)
				}
				return "ok"

			case "derive":
				tuples, err := deriver.Derive(parseRow(t, table, d.Input))
				if err != nil {
					return fmt.Sprintf("error: %v", err)
				}
				if len(tuples) == 0 {
					return "<none>"
				}
				var buf strings.Builder
				for _, tup := range tuples {
					fmt.Fprintln(&buf, formatTuple(tup.Values))
				}
				return buf.String()

			default:
				t.Fatalf("unknown command %s", d.Cmd)
				return ""
			}
		})
	})
}

func TestParsePath(t *testing.T) {
	for _, tc := range []struct {
		in    string
		steps Path
	}{
		{"a", Path{{Kind: StepField, Name: "a"}}},
		{"a.b", Path{{Kind: StepField, Name: "a"}, {Kind: StepField, Name: "b"}}},
		{"tags[]", Path{{Kind: StepField, Name: "tags"}, {Kind: StepElems}}},
		{"grid[][]", Path{{Kind: StepField, Name: "grid"}, {Kind: StepElems}, {Kind: StepElems}}},
		{"m.keys()", Path{{Kind: StepField, Name: "m"}, {Kind: StepKeys}}},
		{"m.values()[].x", Path{
			{Kind: StepField, Name: "m"}, {Kind: StepValues}, {Kind: StepElems}, {Kind: StepField, Name: "x"},
		}},
	} {
		p, err := ParsePath(tc.in)
		require.NoError(t, err, tc.in)
		require.Equal(t, tc.steps, p)
		require.Equal(t, tc.in, p.String())
	}

	for _, in := range []string{"", ".", "a..b", "keys()", "a[", "a[x]", "a[]b", "a.f()", "[]"} {
		_, err := ParsePath(in)
		require.Error(t, err, in)
		require.True(t, errors.Is(err, ErrInvalidIndexDefinition), in)
	}
}

func TestResolveIndexFillsTypes(t *testing.T) {
	table := makeTable(t, "id LONG, m MAP(ARRAY(TIMESTAMP(3)))")
	idx := &descpb.IndexDescriptor{
		Name: "i", ID: 2, TableID: 52, IndexNulls: true,
		Fields: []descpb.IndexField{
			{Path: "m.keys()", Direction: encoding.Ascending},
			{Path: "m.values()[]", Direction: encoding.Descending},
		},
	}
	res, err := ResolveIndex(table, idx)
	require.NoError(t, err)
	require.Equal(t, "STRING", res.Fields[0].Type.String())
	require.Equal(t, "TIMESTAMP(3)", res.Fields[1].Type.String())
	require.Nil(t, idx.Fields[0].Type, "input must not be modified")

	idx.Fields[0].Type = types.Long
	_, err = ResolveIndex(table, idx)
	require.True(t, errors.Is(err, ErrInvalidIndexDefinition))
	require.Contains(t, err.Error(), "has type STRING, not LONG")
}

// TestIndexKeyCountGuard checks that a deeply nested multi-key path is
// rejected while it is being expanded.
func TestIndexKeyCountGuard(t *testing.T) {
	table := makeTable(t, "id LONG, deep MAP(MAP(MAP(MAP(MAP(MAP(INTEGER))))))")
	idx := &descpb.IndexDescriptor{
		Name: "deep_idx", ID: 2, TableID: 52, IndexNulls: true,
		Fields: []descpb.IndexField{{
			Path:      "deep.values().values().values().values().values().keys()",
			Direction: encoding.Ascending,
		}},
	}

	var build func(typ *types.T, depth int) datum.Datum
	build = func(typ *types.T, depth int) datum.Datum {
		if depth == 0 {
			return datum.DInt(1)
		}
		entries := make(map[string]datum.Datum, 5)
		for i := 0; i < 5; i++ {
			entries[fmt.Sprint(i)] = build(typ.Elem(), depth-1)
		}
		return datum.NewDMap(typ, entries)
	}
	deepType, _ := table.RowType().Field("deep")
	row := &datum.DRecord{Typ: table.RowType(), Fields: []datum.RecordField{
		{Name: "id", Value: datum.DLong(1)},
		{Name: "deep", Value: build(deepType, 6)},
	}}

	d, err := NewIndexKeyDeriver(table, idx, DeriverConfig{})
	require.NoError(t, err)
	_, err = d.Derive(row)
	require.True(t, errors.Is(err, ErrIndexKeyCountExceeded), "%v", err)

	d, err = NewIndexKeyDeriver(table, idx, DeriverConfig{MaxIndexKeysPerRow: 5 * 5 * 5 * 5 * 5 * 5})
	require.NoError(t, err)
	tuples, err := d.Derive(row)
	require.NoError(t, err)
	// Keys repeat across the inner maps and are collapsed.
	require.Len(t, tuples, 5)
}

// TestEntryOrdering checks that encoded index entries of several rows sort
// by value with EMPTY after every value and NULL last, and that a
// descending component reverses that.
func TestEntryOrdering(t *testing.T) {
	table := makeTable(t, "id LONG, v STRING, tags ARRAY(STRING)")
	rows := []string{
		`{"id": 1, "v": "b", "tags": ["x"]}`,
		`{"id": 2, "v": null, "tags": []}`,
		`{"id": 3, "tags": ["y", "x"]}`,
		`{"id": 4, "v": "a", "tags": null}`,
		`{"id": 5, "v": "b"}`,
	}
	for _, dir := range []encoding.Direction{encoding.Ascending, encoding.Descending} {
		idx := &descpb.IndexDescriptor{
			Name: "i", ID: 2, TableID: 52, IndexNulls: true,
			Fields: []descpb.IndexField{{Path: "v", Direction: dir}, {Path: "tags[]", Direction: encoding.Ascending}},
		}
		d, err := NewIndexKeyDeriver(table, idx, DeriverConfig{})
		require.NoError(t, err)
		prefix := MakeIndexKeyPrefix(keys.MakeTablePrefix(52), idx.ID)

		var entries []IndexEntry
		for _, s := range rows {
			row := parseRow(t, table, s)
			tuples, err := d.Derive(row)
			require.NoError(t, err)
			pk, err := EncodePrimaryKey(nil, table, row)
			require.NoError(t, err)
			entries = append(entries, EncodeIndexEntries(prefix, pk, tuples)...)
		}
		sort.Slice(entries, func(i, j int) bool { return bytes.Compare(entries[i].Key, entries[j].Key) < 0 })

		var got []string
		for _, e := range entries {
			require.True(t, bytes.HasPrefix(e.Key, prefix))
			vals, pk, err := DecodeIndexEntryKey(d.Index(), e.Key[len(prefix):])
			require.NoError(t, err)
			require.Equal(t, pk, e.Value)
			pkVals, rest, err := DecodePrimaryKey(table, pk)
			require.NoError(t, err)
			require.Empty(t, rest)
			got = append(got, fmt.Sprintf("%s/%s", formatTuple(vals), pkVals[0]))
		}
		expected := []string{
			`("a", NULL)/4`,
			`("b", "x")/1`,
			`("b", EMPTY)/5`,
			`(EMPTY, "x")/3`,
			`(EMPTY, "y")/3`,
			`(NULL, EMPTY)/2`,
		}
		if dir == encoding.Descending {
			expected = []string{
				`(NULL, EMPTY)/2`,
				`(EMPTY, "x")/3`,
				`(EMPTY, "y")/3`,
				`("b", "x")/1`,
				`("b", EMPTY)/5`,
				`("a", NULL)/4`,
			}
		}
		require.Equal(t, expected, got, "direction %s", dir)
	}
}

func TestEncodePrimaryKeyRequiresValues(t *testing.T) {
	table := makeTable(t, "id LONG, v STRING")
	_, err := EncodePrimaryKey(nil, table, parseRow(t, table, `{"v": "x"}`))
	require.Error(t, err)
	_, err = EncodePrimaryKey(nil, table, parseRow(t, table, `{"id": null}`))
	require.Error(t, err)
}
