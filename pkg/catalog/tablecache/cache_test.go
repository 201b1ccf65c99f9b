// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package tablecache

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/tablemeta/pkg/catalog"
	"github.com/cockroachdb/tablemeta/pkg/catalog/descpb"
	"github.com/cockroachdb/tablemeta/pkg/types"
	"github.com/cockroachdb/tablemeta/pkg/util/timeutil"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func makeDesc(id descpb.ID, name string, seq descpb.SeqNum) *descpb.TableDescriptor {
	return &descpb.TableDescriptor{
		Namespace:  "ns",
		Name:       name,
		ID:         id,
		Fields:     []descpb.FieldDef{{Name: "id", Type: types.Long}},
		PrimaryKey: []string{"id"},
		SeqNum:     seq,
	}
}

func TestGetPut(t *testing.T) {
	c := New(Config{Capacity: 10})
	require.Nil(t, c.Get("ns", "t"))
	require.Nil(t, c.GetByID(1))

	require.Nil(t, c.Put(makeDesc(1, "T", 5)))
	require.Equal(t, descpb.SeqNum(5), c.Get("NS", "t").SeqNum)
	require.Equal(t, "T", c.GetByID(1).Name)

	// Lower or equal sequence numbers never replace, even with other content.
	other := makeDesc(1, "T", 5)
	other.Description = "different"
	require.Nil(t, c.Put(other))
	require.Nil(t, c.Put(makeDesc(1, "T", 4)))
	require.Equal(t, "", c.GetByID(1).Description)

	// Higher ones always do and return the displaced descriptor.
	prev := c.Put(makeDesc(1, "T", 6))
	require.NotNil(t, prev)
	require.Equal(t, descpb.SeqNum(5), prev.SeqNum)
	require.Equal(t, descpb.SeqNum(6), c.GetByID(1).SeqNum)
	require.Equal(t, 1, c.Len())

	// The cache holds a copy.
	d := makeDesc(2, "u", 1)
	c.Put(d)
	d.Name = "changed"
	require.Equal(t, "u", c.GetByID(2).Name)
	require.Nil(t, c.Get("ns", "changed"))

	// A new table taking a name evicts the dropped one.
	c.Put(makeDesc(3, "u", 9))
	require.Nil(t, c.GetByID(2))
	require.Equal(t, descpb.ID(3), c.Get("ns", "U").ID)
}

func TestMonotonicity(t *testing.T) {
	c := New(Config{})
	var cur descpb.SeqNum
	for _, seq := range []descpb.SeqNum{3, 1, 3, 7, 5, 7, 8, 2, 10} {
		prev := c.Put(makeDesc(1, "t", seq))
		switch {
		case cur == 0:
			require.Nil(t, prev)
			cur = seq
		case seq > cur:
			require.NotNil(t, prev)
			require.Equal(t, cur, prev.SeqNum)
			cur = seq
		default:
			require.Nil(t, prev)
		}
		require.Equal(t, cur, c.GetByID(1).SeqNum)
	}
}

func TestTTL(t *testing.T) {
	clock := timeutil.NewManualTime(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	c := New(Config{TTL: time.Minute, TimeSource: clock})

	c.Put(makeDesc(1, "t", 1))
	clock.Advance(59 * time.Second)
	require.NotNil(t, c.Get("ns", "t"))
	clock.Advance(time.Second)
	require.Nil(t, c.Get("ns", "t"))
	require.Zero(t, c.Len())
	require.Nil(t, c.GetByID(1))

	// An expired entry is replaced by any put, as if absent.
	c.Put(makeDesc(2, "u", 5))
	clock.Advance(time.Hour)
	require.Nil(t, c.Put(makeDesc(2, "u", 3)))
	require.Equal(t, descpb.SeqNum(3), c.GetByID(2).SeqNum)
}

func TestStats(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := timeutil.NewManualTime(start)
	c := New(Config{TTL: time.Minute, TimeSource: clock})
	_, ok := c.Stats(1)
	require.False(t, ok)

	c.Put(makeDesc(1, "t", 4))
	clock.Advance(10 * time.Second)
	st, ok := c.Stats(1)
	require.True(t, ok)
	require.Equal(t, EntryStats{SeqNum: 4, Added: start, LastAccess: start}, st)

	require.NotNil(t, c.Get("ns", "t"))
	clock.Advance(10 * time.Second)
	st, ok = c.Stats(1)
	require.True(t, ok)
	require.Equal(t, start.Add(10*time.Second), st.LastAccess)

	// Stats neither counts as an access nor keeps the entry alive.
	clock.Advance(40 * time.Second)
	_, ok = c.Stats(1)
	require.False(t, ok)
}

func TestValidate(t *testing.T) {
	c := New(Config{})
	c.Put(makeDesc(1, "t", 5))

	c.Validate(1, 5)
	require.NotNil(t, c.GetByID(1))
	c.Validate(1, 4)
	require.NotNil(t, c.GetByID(1))
	c.Validate(1, 6)
	require.Nil(t, c.GetByID(1))
	require.Nil(t, c.Get("ns", "t"))

	// A stale descriptor arriving after validation is not accepted.
	require.Nil(t, c.Put(makeDesc(1, "t", 5)))
	require.Nil(t, c.GetByID(1))
	require.Nil(t, c.Put(makeDesc(1, "t", 6)))
	require.Equal(t, descpb.SeqNum(6), c.GetByID(1).SeqNum)

	// Validating an uncached table also sets the watermark.
	c.Validate(9, 3)
	c.Put(makeDesc(9, "x", 2))
	require.Nil(t, c.GetByID(9))

	// Lower validations do not lower the watermark.
	c.Validate(9, 1)
	c.Put(makeDesc(9, "x", 2))
	require.Nil(t, c.GetByID(9))
}

func TestCapacity(t *testing.T) {
	c := New(Config{Capacity: 3})
	for i := 1; i <= 3; i++ {
		c.Put(makeDesc(descpb.ID(i), fmt.Sprintf("t%d", i), 1))
	}
	// Touch 1 so that 2 is the least recently used.
	require.NotNil(t, c.GetByID(1))
	c.Put(makeDesc(4, "t4", 1))
	require.Equal(t, 3, c.Len())
	require.Nil(t, c.GetByID(2))
	require.Nil(t, c.Get("ns", "t2"))
	require.NotNil(t, c.Get("ns", "t1"))

	require.NoError(t, c.SetCapacity(5))
	require.Equal(t, 3, c.Len())
	for i := 5; i <= 6; i++ {
		c.Put(makeDesc(descpb.ID(i), fmt.Sprintf("t%d", i), 1))
	}
	require.Equal(t, 5, c.Len())

	require.NoError(t, c.SetCapacity(5))
	require.Equal(t, 5, c.Len())
	require.NoError(t, c.SetCapacity(4))
	require.Zero(t, c.Len())
	require.Nil(t, c.Get("ns", "t1"))
	for i := 1; i <= 5; i++ {
		c.Put(makeDesc(descpb.ID(i), fmt.Sprintf("t%d", i), 1))
	}
	require.Equal(t, 4, c.Len())
	require.Error(t, c.SetCapacity(0))
}

func TestChildLinksParent(t *testing.T) {
	c := New(Config{})
	parent := makeDesc(1, "p", 3)
	c.Put(parent)

	child := makeDesc(2, "c", 4)
	child.ParentID = 1
	c.Put(child)

	p := c.GetByID(1)
	require.Equal(t, descpb.IDs{2}, p.Children)
	require.Equal(t, descpb.SeqNum(4), p.SeqNum)
	require.Empty(t, parent.Children)

	// The parent as fetched from the catalog at the same sequence number is
	// not newer than the repaired entry.
	fetched := makeDesc(1, "p", 4)
	fetched.Children = descpb.IDs{2}
	require.Nil(t, c.Put(fetched))
	c.Validate(1, 4)
	require.NotNil(t, c.GetByID(1))

	// A later child update keeps the link and raises the parent again.
	child2 := makeDesc(2, "c", 6)
	child2.ParentID = 1
	c.Put(child2)
	p = c.GetByID(1)
	require.Equal(t, descpb.IDs{2}, p.Children)
	require.Equal(t, descpb.SeqNum(6), p.SeqNum)

	// An uncached parent is left alone.
	orphan := makeDesc(5, "o", 1)
	orphan.ParentID = 42
	c.Put(orphan)
	require.Nil(t, c.GetByID(42))
}

func TestConcurrentPutValidate(t *testing.T) {
	clock := timeutil.NewManualTime(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	c := New(Config{Capacity: 8, TTL: time.Second, TimeSource: clock})

	var g errgroup.Group
	for w := 0; w < 8; w++ {
		w := w
		g.Go(func() error {
			for i := 1; i <= 200; i++ {
				id := descpb.ID(i%4 + 1)
				switch (i + w) % 4 {
				case 0:
					c.Put(makeDesc(id, fmt.Sprintf("t%d", id), descpb.SeqNum(i)))
				case 1:
					c.Validate(id, descpb.SeqNum(i/2))
				case 2:
					if d := c.GetByID(id); d != nil && d.ID != id {
						return errors.Newf("got table %d for %d", d.ID, id)
					}
				case 3:
					clock.Advance(10 * time.Millisecond)
					c.Get("ns", fmt.Sprintf("t%d", id))
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	// Whatever survived respects the watermarks.
	for id := descpb.ID(1); id <= 4; id++ {
		if d := c.GetByID(id); d != nil {
			c.Validate(id, d.SeqNum)
			require.NotNil(t, c.GetByID(id))
			c.Validate(id, d.SeqNum+1)
			require.Nil(t, c.GetByID(id))
		}
	}
}

func TestAcquire(t *testing.T) {
	ctx := context.Background()
	cat := catalog.New(catalog.Config{})
	desc := makeDesc(0, "t", 0)
	desc.Namespace = catalog.DefaultNamespace
	tbl, err := cat.AddTable(ctx, desc)
	require.NoError(t, err)

	c := New(Config{})
	var fetches atomic.Int32
	release := make(chan struct{})
	fetch := func(ctx context.Context, id descpb.ID) (*descpb.TableDescriptor, error) {
		fetches.Add(1)
		<-release
		return CatalogFetcher(cat)(ctx, id)
	}

	const n = 8
	var wg sync.WaitGroup
	results := make([]*descpb.TableDescriptor, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = c.Acquire(ctx, tbl.ID, fetch)
		}()
	}
	// Let the callers pile up on the shared fetch.
	time.Sleep(10 * time.Millisecond)
	close(release)
	wg.Wait()
	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		require.Equal(t, tbl.SeqNum, results[i].SeqNum)
	}
	require.LessOrEqual(t, fetches.Load(), int32(n))
	require.NotNil(t, c.GetByID(tbl.ID))

	// Hits do not fetch.
	before := fetches.Load()
	_, err = c.Acquire(ctx, tbl.ID, fetch)
	require.NoError(t, err)
	require.Equal(t, before, fetches.Load())

	// Not found errors come back from the fetch.
	_, err = c.Acquire(ctx, 99, CatalogFetcher(cat))
	require.True(t, errors.Is(err, catalog.ErrTableNotFound))

	// A fetch below the watermark is rejected.
	c.Validate(tbl.ID, tbl.SeqNum+1)
	_, err = c.Acquire(ctx, tbl.ID, CatalogFetcher(cat))
	require.True(t, errors.Is(err, catalog.ErrStaleMetadataVersion), "%v", err)

	// Cancellation abandons the wait.
	cctx, cancel := context.WithCancel(ctx)
	cancel()
	block := make(chan struct{})
	defer close(block)
	_, err = c.Acquire(cctx, 77, func(context.Context, descpb.ID) (*descpb.TableDescriptor, error) {
		<-block
		return nil, errors.New("unblocked")
	})
	require.ErrorIs(t, err, context.Canceled)
}

func TestFollowerInvalidates(t *testing.T) {
	ctx := context.Background()
	primary := catalog.New(catalog.Config{})
	replica := catalog.New(catalog.Config{CatalogID: primary.ID()})
	c := New(Config{})
	f := catalog.NewFollower(replica, catalog.NewLocalSource(primary), c.OnCatalogChange)

	desc := makeDesc(0, "t", 0)
	desc.Namespace = catalog.DefaultNamespace
	desc.Fields = append(desc.Fields, descpb.FieldDef{Name: "v", Type: types.String, Nullable: true})
	tbl, err := primary.AddTable(ctx, desc)
	require.NoError(t, err)
	require.NoError(t, f.Sync(ctx))

	got, err := c.Acquire(ctx, tbl.ID, CatalogFetcher(replica))
	require.NoError(t, err)
	require.Equal(t, tbl.SeqNum, got.SeqNum)

	require.NoError(t, primary.SetLimits(ctx, tbl.ID, descpb.Limits{ReadUnits: 5}))
	require.NoError(t, f.Sync(ctx))
	require.Nil(t, c.GetByID(tbl.ID))

	got, err = c.Acquire(ctx, tbl.ID, CatalogFetcher(replica))
	require.NoError(t, err)
	require.Equal(t, int64(5), got.Limits.ReadUnits)
}
