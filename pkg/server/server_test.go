// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package server

import (
	"context"
	"fmt"
	"testing"

	"github.com/cockroachdb/tablemeta/pkg/base"
	"github.com/cockroachdb/tablemeta/pkg/catalog"
	"github.com/cockroachdb/tablemeta/pkg/catalog/descpb"
	"github.com/cockroachdb/tablemeta/pkg/datum"
	"github.com/cockroachdb/tablemeta/pkg/keys"
	"github.com/cockroachdb/tablemeta/pkg/row"
	"github.com/cockroachdb/tablemeta/pkg/rowenc"
	"github.com/cockroachdb/tablemeta/pkg/storage"
	"github.com/cockroachdb/tablemeta/pkg/types"
	"github.com/cockroachdb/tablemeta/pkg/util/encoding"
	"github.com/kr/pretty"
	"github.com/stretchr/testify/require"
)

func makeDesc(t *testing.T, name, fields string, parent descpb.ID) *descpb.TableDescriptor {
	typ, err := types.Parse("RECORD(" + fields + ")")
	require.NoError(t, err)
	desc := &descpb.TableDescriptor{Namespace: catalog.DefaultNamespace, Name: name, ParentID: parent}
	for i, f := range typ.Fields() {
		desc.Fields = append(desc.Fields, descpb.FieldDef{Name: f.Name, Type: f.Type, Nullable: i > 0})
	}
	desc.PrimaryKey = []string{typ.Fields()[0].Name}
	return desc
}

func insert(t *testing.T, s *Server, id descpb.ID, rows ...string) {
	ctx := context.Background()
	desc, err := s.Table(ctx, id)
	require.NoError(t, err)
	w, err := s.Writer(ctx, id)
	require.NoError(t, err)
	for _, r := range rows {
		d, err := datum.ParseJSON(desc.RowType(), []byte(r))
		require.NoError(t, err)
		require.NoError(t, w.Insert(ctx, d.(*datum.DRecord)))
	}
}

func scan(t *testing.T, s *Server, id descpb.ID, index string) []string {
	ctx := context.Background()
	sc, err := s.IndexScanner(ctx, id, index, row.ScanOptions{})
	require.NoError(t, err)
	defer sc.Close()
	var out []string
	for {
		ok, err := sc.Next(ctx)
		require.NoError(t, err)
		if !ok {
			return out
		}
		e := sc.Entry()
		out = append(out, fmt.Sprintf("%s/%s", e.Values[0], e.PrimaryKey[0]))
	}
}

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

func TestBuildIndex(t *testing.T) {
	ctx := context.Background()
	cfg := base.DefaultConfig()
	cfg.Index.ScanBatchSize = 2
	s, err := NewServer(ctx, cfg)
	require.NoError(t, err)
	defer func() { require.NoError(t, s.Close(ctx)) }()

	table, err := s.CreateTable(ctx, makeDesc(t, "users", "id LONG, email STRING", descpb.InvalidID))
	require.NoError(t, err)
	insert(t, s, table.ID,
		`{"id": 1, "email": "c@x"}`,
		`{"id": 2, "email": "a@x"}`,
		`{"id": 3}`,
		`{"id": 4, "email": "b@x"}`,
	)

	idx, err := s.BuildIndex(ctx, table.ID, descpb.IndexDescriptor{
		Name:       "by_email",
		Fields:     []descpb.IndexField{{Path: "email", Direction: encoding.Ascending}},
		IndexNulls: true,
	})
	require.NoError(t, err)
	require.Equal(t, descpb.IndexStatusReady, idx.Status)
	require.Equal(t, []string{`"a@x"/2`, `"b@x"/4`, `"c@x"/1`, `EMPTY/3`}, scan(t, s, table.ID, "by_email"))

	// The cache serves the new version.
	cached := s.Cache().GetByID(table.ID)
	require.NotNil(t, cached)
	current, err := s.Catalog().GetTableByID(table.ID)
	require.NoError(t, err)
	require.Equal(t, current.SeqNum, cached.SeqNum, "%v", pretty.Diff(current, cached))

	// New writers maintain the index.
	insert(t, s, table.ID, `{"id": 5, "email": "aa@x"}`)
	require.Equal(t, []string{`"a@x"/2`, `"aa@x"/5`, `"b@x"/4`, `"c@x"/1`, `EMPTY/3`},
		scan(t, s, table.ID, "by_email"))

	prefix, err := s.Catalog().TablePrefix(table.ID)
	require.NoError(t, err)
	require.NoError(t, s.DropIndex(ctx, table.ID, "by_email"))
	require.Equal(t, 5, countKeys(t, s.Engine(), prefix))
	_, err = s.IndexScanner(ctx, table.ID, "by_email", row.ScanOptions{})
	require.ErrorIs(t, err, catalog.ErrIndexNotFound)
}

// TestBuildIndexFailure builds a unique index that one row violates. The
// failed build leaves neither the index nor any of its entries behind.
func TestBuildIndexFailure(t *testing.T) {
	ctx := context.Background()
	cfg := base.DefaultConfig()
	cfg.Index.ScanBatchSize = 1
	s, err := NewServer(ctx, cfg)
	require.NoError(t, err)
	defer func() { require.NoError(t, s.Close(ctx)) }()

	table, err := s.CreateTable(ctx, makeDesc(t, "t", "id LONG, tags ARRAY(STRING)", descpb.InvalidID))
	require.NoError(t, err)
	insert(t, s, table.ID, `{"id": 1, "tags": ["b"]}`, `{"id": 2, "tags": ["a", "a"]}`)
	prefix, err := s.Catalog().TablePrefix(table.ID)
	require.NoError(t, err)

	idx := descpb.IndexDescriptor{
		Name:   "by_tag",
		Fields: []descpb.IndexField{{Path: "tags[]", Direction: encoding.Ascending}},
		Unique: true,
	}
	_, err = s.BuildIndex(ctx, table.ID, idx)
	require.ErrorIs(t, err, rowenc.ErrDuplicateIndexKey)

	current, err := s.Catalog().GetTableByID(table.ID)
	require.NoError(t, err)
	_, found := current.FindIndexByName("by_tag")
	require.False(t, found)
	cached, err := s.Table(ctx, table.ID)
	require.NoError(t, err)
	_, found = cached.FindIndexByName("by_tag")
	require.False(t, found)
	require.Equal(t, 2, countKeys(t, s.Engine(), prefix))
	_, err = s.IndexScanner(ctx, table.ID, "by_tag", row.ScanOptions{})
	require.ErrorIs(t, err, catalog.ErrIndexNotFound)

	// Writers no longer see the dropped index.
	w, err := s.Writer(ctx, table.ID)
	require.NoError(t, err)
	d, err := datum.ParseJSON(table.RowType(), []byte(`{"id": 2, "tags": ["a", "a"]}`))
	require.NoError(t, err)
	require.NoError(t, w.Upsert(ctx, d.(*datum.DRecord)))

	// The name is free again.
	idx.Unique = false
	_, err = s.BuildIndex(ctx, table.ID, idx)
	require.NoError(t, err)
	require.Equal(t, []string{`"a"/2`, `"b"/1`}, scan(t, s, table.ID, "by_tag"))
}

func TestDropTableClearsSubtree(t *testing.T) {
	ctx := context.Background()
	s, err := NewServer(ctx, base.DefaultConfig())
	require.NoError(t, err)
	defer func() { require.NoError(t, s.Close(ctx)) }()

	parent, err := s.CreateTable(ctx, makeDesc(t, "p", "id LONG, v STRING", descpb.InvalidID))
	require.NoError(t, err)
	child, err := s.CreateTable(ctx, makeDesc(t, "c", "id LONG, w STRING", parent.ID))
	require.NoError(t, err)
	other, err := s.CreateTable(ctx, makeDesc(t, "o", "id LONG", descpb.InvalidID))
	require.NoError(t, err)
	insert(t, s, parent.ID, `{"id": 1}`, `{"id": 2}`)
	insert(t, s, child.ID, `{"id": 1, "w": "x"}`)
	insert(t, s, other.ID, `{"id": 1}`)

	cached, err := s.LookupTable(ctx, catalog.DefaultNamespace, "p")
	require.NoError(t, err)
	require.Equal(t, descpb.IDs{child.ID}, cached.Children)

	err = s.DropTable(ctx, parent.ID, false /* cascade */)
	require.ErrorIs(t, err, catalog.ErrTableNotEmpty)

	parentPrefix, err := s.Catalog().TablePrefix(parent.ID)
	require.NoError(t, err)
	otherPrefix, err := s.Catalog().TablePrefix(other.ID)
	require.NoError(t, err)
	require.Equal(t, 3, countKeys(t, s.Engine(), parentPrefix))

	require.NoError(t, s.DropTable(ctx, parent.ID, true /* cascade */))
	require.Equal(t, 0, countKeys(t, s.Engine(), parentPrefix))
	require.Equal(t, 1, countKeys(t, s.Engine(), otherPrefix))
	require.Nil(t, s.Cache().GetByID(parent.ID))
	require.Nil(t, s.Cache().GetByID(child.ID))
	_, err = s.Table(ctx, child.ID)
	require.ErrorIs(t, err, catalog.ErrTableNotFound)
}

// TestRestart reopens a Pebble store and finds the catalog and the data
// where they were left.
func TestRestart(t *testing.T) {
	ctx := context.Background()
	cfg := base.DefaultConfig()
	cfg.Storage = base.StorageConfig{Engine: base.EnginePebble, Dir: t.TempDir()}

	s, err := NewServer(ctx, cfg)
	require.NoError(t, err)
	table, err := s.CreateTable(ctx, makeDesc(t, "t", "id LONG, tags ARRAY(STRING)", descpb.InvalidID))
	require.NoError(t, err)
	insert(t, s, table.ID, `{"id": 1, "tags": ["b", "a"]}`, `{"id": 2, "tags": ["c"]}`)
	_, err = s.BuildIndex(ctx, table.ID, descpb.IndexDescriptor{
		Name:   "tags",
		Fields: []descpb.IndexField{{Path: "tags[]", Direction: encoding.Descending}},
	})
	require.NoError(t, err)
	catID, seq := s.Catalog().ID(), s.Catalog().SeqNum()
	require.NoError(t, s.Close(ctx))

	s, err = NewServer(ctx, cfg)
	require.NoError(t, err)
	defer func() { require.NoError(t, s.Close(ctx)) }()
	require.Equal(t, catID, s.Catalog().ID())
	require.Equal(t, seq, s.Catalog().SeqNum())

	desc, err := s.LookupTable(ctx, catalog.DefaultNamespace, "t")
	require.NoError(t, err)
	require.Equal(t, table.ID, desc.ID)
	require.Equal(t, []string{`"c"/2`, `"b"/1`, `"a"/1`}, scan(t, s, table.ID, "tags"))

	f, err := s.Fetcher(ctx, table.ID)
	require.NoError(t, err)
	r, err := f.Get(datum.DLong(2))
	require.NoError(t, err)
	require.Equal(t, `(id: 2, tags: ["c"])`, r.String())

	// New tables do not reuse IDs.
	next, err := s.CreateTable(ctx, makeDesc(t, "u", "id LONG", descpb.InvalidID))
	require.NoError(t, err)
	require.Greater(t, next.ID, table.ID)
}

func TestNewServerValidatesConfig(t *testing.T) {
	cfg := base.DefaultConfig()
	cfg.Storage.Engine = base.EnginePebble
	_, err := NewServer(context.Background(), cfg)
	require.Error(t, err)
}
