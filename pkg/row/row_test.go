// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package row

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/cockroachdb/pebble/vfs"
	"github.com/cockroachdb/tablemeta/pkg/catalog"
	"github.com/cockroachdb/tablemeta/pkg/catalog/descpb"
	"github.com/cockroachdb/tablemeta/pkg/datum"
	"github.com/cockroachdb/tablemeta/pkg/keys"
	"github.com/cockroachdb/tablemeta/pkg/rowenc"
	"github.com/cockroachdb/tablemeta/pkg/storage"
	"github.com/cockroachdb/tablemeta/pkg/types"
	"github.com/cockroachdb/tablemeta/pkg/util/encoding"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func runWithEngines(t *testing.T, f func(t *testing.T, eng storage.Engine)) {
	t.Run("inmem", func(t *testing.T) {
		eng := storage.NewInMem()
		defer eng.Close()
		f(t, eng)
	})
	t.Run("pebble", func(t *testing.T) {
		eng, err := storage.NewPebble(storage.PebbleConfig{Dir: "db", FS: vfs.NewMem()})
		require.NoError(t, err)
		defer eng.Close()
		f(t, eng)
	})
}

// makeDesc builds a table whose first field is the primary key and whose
// other fields are nullable.
func makeDesc(t *testing.T, name, fields string, indexes ...descpb.IndexDescriptor) *descpb.TableDescriptor {
	typ, err := types.Parse("RECORD(" + fields + ")")
	require.NoError(t, err)
	desc := &descpb.TableDescriptor{Namespace: catalog.DefaultNamespace, Name: name, Indexes: indexes}
	for i, f := range typ.Fields() {
		desc.Fields = append(desc.Fields, descpb.FieldDef{Name: f.Name, Type: f.Type, Nullable: i > 0})
	}
	desc.PrimaryKey = []string{typ.Fields()[0].Name}
	return desc
}

func makeIndex(name string, paths ...string) descpb.IndexDescriptor {
	idx := descpb.IndexDescriptor{Name: name, IndexNulls: true}
	for _, p := range paths {
		idx.Fields = append(idx.Fields, descpb.IndexField{Path: p, Direction: encoding.Ascending})
	}
	return idx
}

func createTable(
	t *testing.T, cat *catalog.Catalog, desc *descpb.TableDescriptor,
) (*descpb.TableDescriptor, []byte) {
	ctx := context.Background()
	created, err := cat.AddTable(ctx, desc)
	require.NoError(t, err)
	prefix, err := cat.TablePrefix(created.ID)
	require.NoError(t, err)
	return created, prefix
}

func parseRow(t *testing.T, table *descpb.TableDescriptor, s string) *datum.DRecord {
	d, err := datum.ParseJSON(table.RowType(), []byte(s))
	require.NoError(t, err)
	return d.(*datum.DRecord)
}

// scanIndex returns the entries of an index as "(values)/pk" strings.
func scanIndex(
	t *testing.T,
	eng storage.Reader,
	table *descpb.TableDescriptor,
	prefix []byte,
	index string,
	opts ScanOptions,
) []string {
	s, err := NewIndexScanner(eng, table, prefix, index, opts)
	require.NoError(t, err)
	defer s.Close()
	var out []string
	for {
		ok, err := s.Next(context.Background())
		require.NoError(t, err)
		if !ok {
			return out
		}
		e := s.Entry()
		out = append(out, fmt.Sprintf("%s/%s", formatValues(e.Values), formatValues(e.PrimaryKey)))
	}
}

func formatValues(vals []datum.Datum) string {
	s := "("
	for i, v := range vals {
		if i > 0 {
			s += ", "
		}
		s += v.String()
	}
	return s + ")"
}

// countKeys counts the keys stored under prefix.
func countKeys(t *testing.T, eng storage.Reader, prefix []byte) int {
	it, err := eng.NewIterator(storage.IterOptions{LowerBound: prefix, UpperBound: keys.PrefixEnd(prefix)})
	require.NoError(t, err)
	defer it.Close()
	n := 0
	for ok := it.First(); ok; ok = it.Next() {
		n++
	}
	return n
}

// TestMapKeysIndex indexes the keys of a map where one row's map is empty.
// Scanning the index returns the rows with keys only; the empty map row is
// reachable through its placeholder entry alone.
func TestMapKeysIndex(t *testing.T) {
	runWithEngines(t, func(t *testing.T, eng storage.Engine) {
		ctx := context.Background()
		cat := catalog.New(catalog.Config{})
		table, prefix := createTable(t, cat, makeDesc(t, "t", "id INT, m MAP(INT)", makeIndex("m_keys", "m.keys()")))

		w, err := NewWriter(eng, table, prefix, Config{})
		require.NoError(t, err)
		for _, r := range []string{
			`{"id": 1, "m": {"a": 10}}`,
			`{"id": 2, "m": {}}`,
			`{"id": 3, "m": {"b": 30}}`,
		} {
			require.NoError(t, w.Insert(ctx, parseRow(t, table, r)))
		}

		require.Equal(t, []string{`("a")/(1)`, `("b")/(3)`},
			scanIndex(t, eng, table, prefix, "m_keys", ScanOptions{}))
		require.Equal(t, []string{`("a")/(1)`, `("b")/(3)`, `(EMPTY)/(2)`},
			scanIndex(t, eng, table, prefix, "m_keys", ScanOptions{IncludeEmpty: true}))

		for _, tc := range []struct {
			key      string
			expected []string
		}{
			{"a", []string{`("a")/(1)`}},
			{"b", []string{`("b")/(3)`}},
			{"", nil},
			{"c", nil},
		} {
			got := scanIndex(t, eng, table, prefix, "m_keys", ScanOptions{
				Prefix: []datum.Datum{datum.DString(tc.key)}, IncludeEmpty: true,
			})
			require.Equal(t, tc.expected, got, "key %q", tc.key)
		}

		s, err := NewIndexScanner(eng, table, prefix, "m_keys", ScanOptions{Prefix: []datum.Datum{datum.DString("b")}})
		require.NoError(t, err)
		ok, err := s.Next(ctx)
		require.NoError(t, err)
		require.True(t, ok)
		r, err := s.Row()
		require.NoError(t, err)
		require.Equal(t, `(id: 3, m: {"b": 30})`, r.String())
		s.Close()

		f, err := NewFetcher(eng, table, prefix)
		require.NoError(t, err)
		r, err = f.Get(datum.DInt(2))
		require.NoError(t, err)
		require.Equal(t, `(id: 2, m: {})`, r.String())
		r, err = f.Get(datum.DInt(4))
		require.NoError(t, err)
		require.Nil(t, r)
	})
}

// TestPlaceholderRestore empties and refills an indexed array and checks
// that the placeholder entry comes and goes with it.
func TestPlaceholderRestore(t *testing.T) {
	runWithEngines(t, func(t *testing.T, eng storage.Engine) {
		ctx := context.Background()
		cat := catalog.New(catalog.Config{})
		table, prefix := createTable(t, cat, makeDesc(t, "t", "id LONG, tags ARRAY(STRING)", makeIndex("tags", "tags[]")))
		idxPrefix := rowenc.MakeIndexKeyPrefix(prefix, table.Indexes[0].ID)

		w, err := NewWriter(eng, table, prefix, Config{})
		require.NoError(t, err)
		scan := func() []string {
			return scanIndex(t, eng, table, prefix, "tags", ScanOptions{IncludeEmpty: true})
		}

		require.NoError(t, w.Insert(ctx, parseRow(t, table, `{"id": 1, "tags": ["x"]}`)))
		require.Equal(t, []string{`("x")/(1)`}, scan())

		require.NoError(t, w.Update(ctx, parseRow(t, table, `{"id": 1, "tags": []}`)))
		require.Equal(t, []string{`(EMPTY)/(1)`}, scan())

		require.NoError(t, w.Update(ctx, parseRow(t, table, `{"id": 1, "tags": ["y", "x"]}`)))
		require.Equal(t, []string{`("x")/(1)`, `("y")/(1)`}, scan())

		require.NoError(t, w.Update(ctx, parseRow(t, table, `{"id": 1, "tags": []}`)))
		require.Equal(t, []string{`(EMPTY)/(1)`}, scan())
		require.Equal(t, 1, countKeys(t, eng, idxPrefix))

		require.NoError(t, w.Update(ctx, parseRow(t, table, `{"id": 1, "tags": null}`)))
		require.Equal(t, []string{`(NULL)/(1)`}, scan())

		found, err := w.Delete(ctx, datum.DLong(1))
		require.NoError(t, err)
		require.True(t, found)
		require.Empty(t, scan())
		require.Equal(t, 0, countKeys(t, eng, prefix))

		found, err = w.Delete(ctx, datum.DLong(1))
		require.NoError(t, err)
		require.False(t, found)
	})
}

// TestNullOrdering checks that rows with a NULL indexed value come last in
// forward scans and first in reverse scans, whatever the batch size.
func TestNullOrdering(t *testing.T) {
	runWithEngines(t, func(t *testing.T, eng storage.Engine) {
		ctx := context.Background()
		cat := catalog.New(catalog.Config{})
		table, prefix := createTable(t, cat, makeDesc(t, "t", "id LONG, v LONG", makeIndex("v", "v")))

		w, err := NewWriter(eng, table, prefix, Config{})
		require.NoError(t, err)
		const n = 10
		nulls := 0
		for i := 1; i <= n; i++ {
			r := fmt.Sprintf(`{"id": %d, "v": %d}`, i, (i*7)%n)
			if i%3 == 0 {
				r = fmt.Sprintf(`{"id": %d, "v": null}`, i)
				nulls++
			}
			require.NoError(t, w.Insert(ctx, parseRow(t, table, r)))
		}

		for _, batch := range []int{1, 2, 3, 100} {
			for _, reverse := range []bool{false, true} {
				s, err := NewIndexScanner(eng, table, prefix, "v", ScanOptions{Reverse: reverse, BatchSize: batch})
				require.NoError(t, err)
				var vals []datum.Datum
				for {
					ok, err := s.Next(ctx)
					require.NoError(t, err)
					if !ok {
						break
					}
					vals = append(vals, s.Entry().Values[0])
				}
				s.Close()
				require.Len(t, vals, n)

				nullPart, valuePart := vals[n-nulls:], vals[:n-nulls]
				if reverse {
					nullPart, valuePart = vals[:nulls], vals[nulls:]
				}
				for _, v := range nullPart {
					require.True(t, datum.IsNull(v), "batch=%d reverse=%t: %s", batch, reverse, vals)
				}
				for i, v := range valuePart {
					require.False(t, datum.IsNull(v))
					if i > 0 {
						c := valuePart[i-1].Compare(v)
						if reverse {
							require.Equal(t, 1, c)
						} else {
							require.Equal(t, -1, c)
						}
					}
				}
			}
		}
	})
}

func TestWriterErrors(t *testing.T) {
	runWithEngines(t, func(t *testing.T, eng storage.Engine) {
		ctx := context.Background()
		cat := catalog.New(catalog.Config{})
		desc := makeDesc(t, "t", "id LONG, name STRING, tags ARRAY(STRING)", makeIndex("name", "name"))
		desc.Fields[1].Default = `"anonymous"`
		tagsIdx := makeIndex("tags", "tags[]")
		tagsIdx.Unique = true
		desc.Indexes = append(desc.Indexes, tagsIdx)
		table, prefix := createTable(t, cat, desc)

		w, err := NewWriter(eng, table, prefix, Config{})
		require.NoError(t, err)
		f, err := NewFetcher(eng, table, prefix)
		require.NoError(t, err)

		require.NoError(t, w.Insert(ctx, parseRow(t, table, `{"id": 1}`)))
		r, err := f.Get(datum.DLong(1))
		require.NoError(t, err)
		require.Equal(t, `(id: 1, name: "anonymous")`, r.String())
		require.Equal(t, []string{`("anonymous")/(1)`}, scanIndex(t, eng, table, prefix, "name", ScanOptions{}))

		err = w.Insert(ctx, parseRow(t, table, `{"id": 1, "name": "x"}`))
		require.ErrorIs(t, err, ErrRowExists)
		err = w.Update(ctx, parseRow(t, table, `{"id": 2, "name": "x"}`))
		require.ErrorIs(t, err, ErrRowNotFound)
		err = w.Insert(ctx, parseRow(t, table, `{"name": "x"}`))
		require.ErrorIs(t, err, ErrInvalidRow)
		err = w.Insert(ctx, &datum.DRecord{Fields: []datum.RecordField{
			{Name: "id", Value: datum.DLong(5)}, {Name: "other", Value: datum.DLong(1)},
		}})
		require.ErrorIs(t, err, ErrInvalidRow)
		err = w.Insert(ctx, &datum.DRecord{Fields: []datum.RecordField{
			{Name: "id", Value: datum.DString("5")},
		}})
		require.ErrorIs(t, err, ErrInvalidRow)

		// A derivation error leaves the row unwritten.
		err = w.Insert(ctx, parseRow(t, table, `{"id": 3, "tags": ["a", "a"]}`))
		require.ErrorIs(t, err, rowenc.ErrDuplicateIndexKey)
		r, err = f.Get(datum.DLong(3))
		require.NoError(t, err)
		require.Nil(t, r)

		// So does a failed update.
		require.NoError(t, w.Update(ctx, parseRow(t, table, `{"id": 1, "name": "a", "tags": ["a"]}`)))
		err = w.Update(ctx, parseRow(t, table, `{"id": 1, "name": "b", "tags": ["b", "b"]}`))
		require.ErrorIs(t, err, rowenc.ErrDuplicateIndexKey)
		require.Equal(t, []string{`("a")/(1)`}, scanIndex(t, eng, table, prefix, "name", ScanOptions{}))

		require.NoError(t, w.Upsert(ctx, parseRow(t, table, `{"id": 4, "name": "d"}`)))
		require.NoError(t, w.Upsert(ctx, parseRow(t, table, `{"id": 4, "name": "e"}`)))
		require.Equal(t, []string{`("a")/(1)`, `("e")/(4)`}, scanIndex(t, eng, table, prefix, "name", ScanOptions{}))

		_, err = w.Delete(ctx)
		require.ErrorIs(t, err, ErrInvalidRow)
	})
}

func TestScannerLifecycle(t *testing.T) {
	runWithEngines(t, func(t *testing.T, eng storage.Engine) {
		ctx := context.Background()
		cat := catalog.New(catalog.Config{})
		table, prefix := createTable(t, cat, makeDesc(t, "t", "id LONG, v STRING", makeIndex("v", "v")))
		w, err := NewWriter(eng, table, prefix, Config{})
		require.NoError(t, err)
		for i := 0; i < 5; i++ {
			require.NoError(t, w.Insert(ctx, parseRow(t, table, fmt.Sprintf(`{"id": %d, "v": "v%d"}`, i, i))))
		}

		_, err = NewIndexScanner(eng, table, prefix, "missing", ScanOptions{})
		require.ErrorIs(t, err, catalog.ErrIndexNotFound)
		_, err = NewIndexScanner(eng, table, prefix, "v", ScanOptions{
			Prefix: []datum.Datum{datum.DString("a"), datum.DString("b")},
		})
		require.Error(t, err)

		// Closing mid-scan ends it and may be repeated.
		s, err := NewIndexScanner(eng, table, prefix, "v", ScanOptions{BatchSize: 2})
		require.NoError(t, err)
		ok, err := s.Next(ctx)
		require.NoError(t, err)
		require.True(t, ok)
		s.Close()
		s.Close()
		ok, err = s.Next(ctx)
		require.NoError(t, err)
		require.False(t, ok)

		// An abandoned scanner holds no iterator, so the engine can be
		// written and read around it.
		s, err = NewIndexScanner(eng, table, prefix, "v", ScanOptions{BatchSize: 2})
		require.NoError(t, err)
		ok, err = s.Next(ctx)
		require.NoError(t, err)
		require.True(t, ok)
		require.NoError(t, w.Insert(ctx, parseRow(t, table, `{"id": 9, "v": "v9"}`)))

		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		s, err = NewIndexScanner(eng, table, prefix, "v", ScanOptions{})
		require.NoError(t, err)
		_, err = s.Next(cancelled)
		require.ErrorIs(t, err, context.Canceled)
		s.Close()
	})
}

// TestBackfill adds an index to a populated table and walks it through
// POPULATING to READY while rows keep being written.
func TestBackfill(t *testing.T) {
	runWithEngines(t, func(t *testing.T, eng storage.Engine) {
		ctx := context.Background()
		cat := catalog.New(catalog.Config{})
		table, prefix := createTable(t, cat, makeDesc(t, "t", "id LONG, v STRING"))
		w, err := NewWriter(eng, table, prefix, Config{})
		require.NoError(t, err)
		for i := 0; i < 7; i++ {
			require.NoError(t, w.Insert(ctx, parseRow(t, table, fmt.Sprintf(`{"id": %d, "v": "v%d"}`, i, i%3))))
		}

		_, err = cat.AddIndex(ctx, table.ID, makeIndex("v", "v"))
		require.NoError(t, err)
		require.NoError(t, cat.UpdateIndexStatus(ctx, table.ID, "v", descpb.IndexStatusPopulating))
		table, err = cat.GetTableByID(table.ID)
		require.NoError(t, err)

		_, err = NewIndexScanner(eng, table, prefix, "v", ScanOptions{})
		require.Error(t, err)

		w, err = NewWriter(eng, table, prefix, Config{})
		require.NoError(t, err)
		require.NoError(t, w.Insert(ctx, parseRow(t, table, `{"id": 7, "v": "v0"}`)))
		_, err = w.Delete(ctx, datum.DLong(1))
		require.NoError(t, err)

		rows, err := Backfill(ctx, eng, table, prefix, "v", Config{BatchSize: 2})
		require.NoError(t, err)
		require.Equal(t, 7, rows)

		_, err = Backfill(ctx, eng, table, prefix, "missing", Config{})
		require.ErrorIs(t, err, catalog.ErrIndexNotFound)

		require.NoError(t, cat.UpdateIndexStatus(ctx, table.ID, "v", descpb.IndexStatusReady))
		table, err = cat.GetTableByID(table.ID)
		require.NoError(t, err)
		require.Equal(t, []string{
			`("v0")/(0)`, `("v0")/(3)`, `("v0")/(6)`, `("v0")/(7)`,
			`("v1")/(4)`,
			`("v2")/(2)`, `("v2")/(5)`,
		}, scanIndex(t, eng, table, prefix, "v", ScanOptions{}))

		_, err = Backfill(ctx, eng, table, prefix, "v", Config{})
		require.Error(t, err)
	})
}

// TestConcurrentScansAndWrites runs forward and reverse scans of an index
// while its rows are updated.
func TestConcurrentScansAndWrites(t *testing.T) {
	runWithEngines(t, func(t *testing.T, eng storage.Engine) {
		ctx := context.Background()
		cat := catalog.New(catalog.Config{})
		table, prefix := createTable(t, cat, makeDesc(t, "t", "id LONG, v LONG", makeIndex("v", "v")))
		w, err := NewWriter(eng, table, prefix, Config{})
		require.NoError(t, err)

		const writers, rowsPerWriter = 4, 20
		rows := make([][]*datum.DRecord, writers)
		for i := range rows {
			for j := 0; j < rowsPerWriter; j++ {
				id := i*rowsPerWriter + j
				rows[i] = append(rows[i], parseRow(t, table, fmt.Sprintf(`{"id": %d, "v": %d}`, id, j)))
			}
		}

		g, gCtx := errgroup.WithContext(ctx)
		for i := range rows {
			rows := rows[i]
			g.Go(func() error {
				for round := 0; round < 3; round++ {
					for _, r := range rows {
						if err := w.Upsert(gCtx, r); err != nil {
							return err
						}
					}
				}
				return nil
			})
		}
		for _, reverse := range []bool{false, true} {
			reverse := reverse
			g.Go(func() error {
				for round := 0; round < 5; round++ {
					s, err := NewIndexScanner(eng, table, prefix, "v", ScanOptions{Reverse: reverse, BatchSize: 3})
					if err != nil {
						return err
					}
					for {
						ok, err := s.Next(gCtx)
						if err != nil {
							return err
						}
						if !ok {
							break
						}
					}
					s.Close()
				}
				return nil
			})
		}
		require.NoError(t, g.Wait())
		require.Len(t, scanIndex(t, eng, table, prefix, "v", ScanOptions{}), writers*rowsPerWriter)
	})
}

// TestWriterChecksNestedTypes writes rows whose container elements, record
// members and parameterized scalars do not match the table and checks that
// none of them reaches the engine.
func TestWriterChecksNestedTypes(t *testing.T) {
	runWithEngines(t, func(t *testing.T, eng storage.Engine) {
		ctx := context.Background()
		cat := catalog.New(catalog.Config{})
		table, prefix := createTable(t, cat, makeDesc(t, "t",
			"id LONG, m MAP(INTEGER), tags ARRAY(STRING), r RECORD(a INTEGER), "+
				"fb FIXED_BINARY(4), e ENUM(x, y), ts TIMESTAMP(3)",
			makeIndex("vals", "m.values()")))
		typeOf := func(name string) *types.T {
			f, ok := table.FindField(name)
			require.True(t, ok)
			return f.Type
		}
		withField := func(name string, v datum.Datum) *datum.DRecord {
			return &datum.DRecord{Fields: []datum.RecordField{
				{Name: "id", Value: datum.DLong(1)}, {Name: name, Value: v},
			}}
		}

		w, err := NewWriter(eng, table, prefix, Config{})
		require.NoError(t, err)
		for _, tc := range []struct {
			field string
			value datum.Datum
		}{
			{"m", &datum.DMap{Typ: typeOf("m"), Entries: []datum.MapEntry{{Key: "a", Value: datum.DString("oops")}}}},
			{"m", &datum.DMap{Entries: []datum.MapEntry{{Key: "a", Value: datum.DInt(1)}}}},
			{"tags", &datum.DArray{Typ: typeOf("tags"), Elems: []datum.Datum{datum.DString("a"), datum.DLong(1)}}},
			{"r", &datum.DRecord{Typ: typeOf("r"), Fields: []datum.RecordField{{Name: "a", Value: datum.DString("1")}}}},
			{"r", &datum.DRecord{Typ: typeOf("r"), Fields: []datum.RecordField{{Name: "b", Value: datum.DInt(1)}}}},
			{"fb", datum.DFixedBytes("abc")},
			{"e", datum.DEnum{Typ: types.MakeEnum("x", "z"), Ordinal: 0}},
			{"e", datum.DEnum{Typ: typeOf("e"), Ordinal: 5}},
			{"ts", datum.DTimestamp{Time: time.Unix(0, 1234567).UTC(), Precision: 9}},
		} {
			err := w.Insert(ctx, withField(tc.field, tc.value))
			require.ErrorIs(t, err, ErrInvalidRow, "%s = %s", tc.field, tc.value)
		}
		require.Equal(t, 0, countKeys(t, eng, prefix))

		valid := withField("m", &datum.DMap{Typ: typeOf("m"), Entries: []datum.MapEntry{{Key: "a", Value: datum.DInt(10)}}})
		valid.Set("tags", &datum.DArray{Typ: typeOf("tags"), Elems: []datum.Datum{datum.DString("a"), datum.DNull}})
		valid.Set("fb", datum.DFixedBytes("abcd"))
		valid.Set("ts", datum.DTimestamp{Time: time.Unix(0, 5000000).UTC(), Precision: 9})
		require.NoError(t, w.Insert(ctx, valid))
		require.Equal(t, []string{`(10)/(1)`}, scanIndex(t, eng, table, prefix, "vals", ScanOptions{}))

		f, err := NewFetcher(eng, table, prefix)
		require.NoError(t, err)
		r, err := f.Get(datum.DLong(1))
		require.NoError(t, err)
		ts, ok := r.Get("ts")
		require.True(t, ok)
		require.Equal(t, int32(3), ts.(datum.DTimestamp).Precision)
	})
}

// TestConcurrentWritesOfOneRow upserts one row from many goroutines through
// two writers and checks that the index holds exactly the entry of the
// surviving value.
func TestConcurrentWritesOfOneRow(t *testing.T) {
	runWithEngines(t, func(t *testing.T, eng storage.Engine) {
		ctx := context.Background()
		cat := catalog.New(catalog.Config{})
		table, prefix := createTable(t, cat, makeDesc(t, "t", "id LONG, a LONG", makeIndex("a", "a")))
		cfg := Config{Locks: NewRowLocks()}
		writers := make([]*Writer, 2)
		for i := range writers {
			var err error
			writers[i], err = NewWriter(eng, table, prefix, cfg)
			require.NoError(t, err)
		}

		var g errgroup.Group
		for i := 0; i < 200; i++ {
			w, r := writers[i%2], parseRow(t, table, fmt.Sprintf(`{"id": 1, "a": %d}`, i))
			g.Go(func() error { return w.Upsert(ctx, r) })
		}
		require.NoError(t, g.Wait())

		f, err := NewFetcher(eng, table, prefix)
		require.NoError(t, err)
		r, err := f.Get(datum.DLong(1))
		require.NoError(t, err)
		a, _ := r.Get("a")
		require.Equal(t, []string{fmt.Sprintf("(%s)/(1)", a)},
			scanIndex(t, eng, table, prefix, "a", ScanOptions{IncludeEmpty: true}))
	})
}

// TestScanReturnsRowsWithOmittedFields checks that rows without a value for
// a scalar index path are scanned by default, absent before null.
func TestScanReturnsRowsWithOmittedFields(t *testing.T) {
	runWithEngines(t, func(t *testing.T, eng storage.Engine) {
		ctx := context.Background()
		cat := catalog.New(catalog.Config{})
		table, prefix := createTable(t, cat, makeDesc(t, "t", "id LONG, a LONG, b LONG", makeIndex("ab", "a", "b")))
		w, err := NewWriter(eng, table, prefix, Config{})
		require.NoError(t, err)
		for _, r := range []string{
			`{"id": 1, "a": 5, "b": 1}`,
			`{"id": 2, "a": 5}`,
			`{"id": 3, "a": 5, "b": null}`,
			`{"id": 4, "a": 6, "b": 0}`,
		} {
			require.NoError(t, w.Insert(ctx, parseRow(t, table, r)))
		}
		require.Equal(t, []string{`(5, 1)/(1)`, `(5, EMPTY)/(2)`, `(5, NULL)/(3)`},
			scanIndex(t, eng, table, prefix, "ab", ScanOptions{Prefix: []datum.Datum{datum.DLong(5)}}))
		require.Equal(t, []string{`(6, 0)/(4)`, `(5, NULL)/(3)`, `(5, EMPTY)/(2)`, `(5, 1)/(1)`},
			scanIndex(t, eng, table, prefix, "ab", ScanOptions{Reverse: true}))
	})
}
