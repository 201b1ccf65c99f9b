// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package tablecache implements a bounded cache of table descriptors in
// front of a catalog.
//
// Entries are looked up by ID or by case insensitive (namespace, name).
// An entry is replaced only by a descriptor with a strictly greater
// sequence number, and Validate raises a per table watermark below which
// descriptors are neither served nor accepted. Entries expire a fixed time
// after they were put; expiry is checked on access.
package tablecache

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/tablemeta/pkg/catalog"
	"github.com/cockroachdb/tablemeta/pkg/catalog/descpb"
	"github.com/cockroachdb/tablemeta/pkg/util/log"
	"github.com/cockroachdb/tablemeta/pkg/util/syncutil"
	"github.com/cockroachdb/tablemeta/pkg/util/timeutil"
	"github.com/hashicorp/golang-lru/v2/simplelru"
	"golang.org/x/sync/singleflight"
)

// DefaultCapacity is the capacity of a cache configured without one.
const DefaultCapacity = 1024

// Config configures a Cache.
type Config struct {
	// Capacity is the maximum number of cached tables.
	Capacity int
	// TTL is how long an entry is served after it was put. Zero means
	// entries do not expire.
	TTL time.Duration
	// TimeSource defaults to the system clock.
	TimeSource timeutil.TimeSource
}

type nameKey struct {
	namespace, name string
}

func makeNameKey(namespace, name string) nameKey {
	return nameKey{strings.ToLower(namespace), strings.ToLower(name)}
}

type entry struct {
	desc       *descpb.TableDescriptor
	added      time.Time
	lastAccess time.Time
}

// Cache is a bounded, TTL aware cache of table descriptors. It is safe for
// concurrent use. Descriptors returned by a Cache are shared and must not
// be modified.
type Cache struct {
	ttl   time.Duration
	clock timeutil.TimeSource
	group singleflight.Group

	mu struct {
		syncutil.Mutex
		lru    *simplelru.LRU[descpb.ID, *entry]
		byName map[nameKey]descpb.ID
		// watermarks holds, per table, the highest sequence number passed to
		// Validate.
		watermarks map[descpb.ID]descpb.SeqNum
	}
}

// New returns an empty cache.
func New(cfg Config) *Cache {
	if cfg.Capacity <= 0 {
		cfg.Capacity = DefaultCapacity
	}
	if cfg.TimeSource == nil {
		cfg.TimeSource = timeutil.DefaultTimeSource{}
	}
	c := &Cache{ttl: cfg.TTL, clock: cfg.TimeSource}
	c.mu.byName = make(map[nameKey]descpb.ID)
	c.mu.watermarks = make(map[descpb.ID]descpb.SeqNum)
	lru, err := simplelru.NewLRU[descpb.ID, *entry](cfg.Capacity, c.onEvictLocked)
	if err != nil {
		panic(errors.NewAssertionErrorWithWrappedErrf(err, "capacity %d", cfg.Capacity))
	}
	c.mu.lru = lru
	return c
}

// onEvictLocked keeps the name index in step with the LRU. The LRU calls it
// for every removed entry.
func (c *Cache) onEvictLocked(id descpb.ID, e *entry) {
	key := makeNameKey(e.desc.Namespace, e.desc.Name)
	if c.mu.byName[key] == id {
		delete(c.mu.byName, key)
	}
}

// Len returns the number of cached entries, including expired entries not
// yet evicted.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mu.lru.Len()
}

// Get returns the named table, or nil if it is not cached or expired.
func (c *Cache) Get(namespace, name string) *descpb.TableDescriptor {
	c.mu.Lock()
	defer c.mu.Unlock()
	id, ok := c.mu.byName[makeNameKey(namespace, name)]
	if !ok {
		return nil
	}
	return c.getLocked(id)
}

// GetByID returns the table with the given ID, or nil if it is not cached
// or expired.
func (c *Cache) GetByID(id descpb.ID) *descpb.TableDescriptor {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.getLocked(id)
}

func (c *Cache) getLocked(id descpb.ID) *descpb.TableDescriptor {
	e, ok := c.mu.lru.Get(id)
	if !ok {
		return nil
	}
	now := c.clock.Now()
	if c.expired(e, now) {
		c.mu.lru.Remove(id)
		return nil
	}
	e.lastAccess = now
	return e.desc
}

// EntryStats describes a cached table.
type EntryStats struct {
	SeqNum descpb.SeqNum
	// Added is when the descriptor was put.
	Added time.Time
	// LastAccess is when the descriptor was last returned by a lookup, or
	// Added if it never was.
	LastAccess time.Time
}

// Stats returns the bookkeeping of a cached table. Unlike lookups it does
// not count as an access. ok is false if the table is not cached or
// expired.
func (c *Cache) Stats(id descpb.ID) (_ EntryStats, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.mu.lru.Peek(id)
	if !ok || c.expired(e, c.clock.Now()) {
		return EntryStats{}, false
	}
	return EntryStats{SeqNum: e.desc.SeqNum, Added: e.added, LastAccess: e.lastAccess}, true
}

func (c *Cache) expired(e *entry, now time.Time) bool {
	return c.ttl > 0 && now.Sub(e.added) >= c.ttl
}

// Put caches desc. If the table is not cached, desc is inserted and nil is
// returned. If it is, desc replaces the cached descriptor only if its
// sequence number is strictly greater, and the replaced descriptor is
// returned; otherwise nil is returned and the cache is unchanged.
// Descriptors below the table's Validate watermark are ignored.
//
// Putting a child table also adds it to the cached parent's children and
// raises the parent's sequence number to the child's.
func (c *Cache) Put(desc *descpb.TableDescriptor) *descpb.TableDescriptor {
	c.mu.Lock()
	defer c.mu.Unlock()
	if desc.SeqNum < c.mu.watermarks[desc.ID] {
		return nil
	}
	now := c.clock.Now()
	var prev *descpb.TableDescriptor
	if e, ok := c.mu.lru.Peek(desc.ID); ok {
		if c.expired(e, now) {
			c.mu.lru.Remove(desc.ID)
		} else if desc.SeqNum <= e.desc.SeqNum {
			return nil
		} else {
			prev = e.desc
		}
	}
	desc = desc.Clone()
	c.addLocked(desc, now)
	if desc.ParentID != descpb.InvalidID {
		c.linkParentLocked(desc)
	}
	return prev
}

func (c *Cache) addLocked(desc *descpb.TableDescriptor, now time.Time) {
	key := makeNameKey(desc.Namespace, desc.Name)
	if other, ok := c.mu.byName[key]; ok && other != desc.ID {
		// The name now belongs to another table; the old one was dropped.
		c.mu.lru.Remove(other)
	}
	c.mu.lru.Add(desc.ID, &entry{desc: desc, added: now, lastAccess: now})
	c.mu.byName[key] = desc.ID
}

// linkParentLocked repairs the cached parent of child so that readers see
// a child list that agrees with the child.
func (c *Cache) linkParentLocked(child *descpb.TableDescriptor) {
	e, ok := c.mu.lru.Peek(child.ParentID)
	if !ok {
		return
	}
	p := e.desc
	hasChild := false
	for _, id := range p.Children {
		hasChild = hasChild || id == child.ID
	}
	if hasChild && p.SeqNum >= child.SeqNum {
		return
	}
	np := p.Clone()
	np.AddChild(child.ID)
	if np.SeqNum < child.SeqNum {
		np.SeqNum = child.SeqNum
	}
	// Replace in place so the parent keeps its age and position.
	e.desc = np
}

// Validate drops the cached table if its sequence number is below seq, and
// makes the cache ignore descriptors of the table below seq from now on.
// An entry at or above seq is left alone.
func (c *Cache) Validate(id descpb.ID, seq descpb.SeqNum) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if seq > c.mu.watermarks[id] {
		c.mu.watermarks[id] = seq
	}
	if e, ok := c.mu.lru.Peek(id); ok && e.desc.SeqNum < seq {
		c.mu.lru.Remove(id)
	}
}

// OnCatalogChange validates a table reported by a catalog.Follower.
func (c *Cache) OnCatalogChange(ctx context.Context, id descpb.ID, seq descpb.SeqNum) {
	log.VEventf(ctx, 2, "validating table %d at %d", id, seq)
	c.Validate(id, seq)
}

var _ catalog.ChangeFunc = (*Cache)(nil).OnCatalogChange

// SetCapacity changes the capacity. Shrinking below the number of cached
// entries clears the cache; otherwise entries are kept.
func (c *Cache) SetCapacity(n int) error {
	if n <= 0 {
		return errors.Newf("cache capacity must be positive, got %d", n)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if n < c.mu.lru.Len() {
		c.mu.lru.Purge()
	}
	c.mu.lru.Resize(n)
	return nil
}

// Clear removes every entry. Watermarks are kept.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mu.lru.Purge()
}

// FetchFunc reads a table from the catalog.
type FetchFunc func(ctx context.Context, id descpb.ID) (*descpb.TableDescriptor, error)

// CatalogFetcher returns a FetchFunc reading from cat.
func CatalogFetcher(cat *catalog.Catalog) FetchFunc {
	return func(_ context.Context, id descpb.ID) (*descpb.TableDescriptor, error) {
		return cat.GetTableByID(id)
	}
}

// Acquire returns the cached table, fetching and caching it on a miss.
// Concurrent misses for one table share a single fetch. A fetched
// descriptor below the table's watermark fails with
// catalog.ErrStaleMetadataVersion.
func (c *Cache) Acquire(
	ctx context.Context, id descpb.ID, fetch FetchFunc,
) (*descpb.TableDescriptor, error) {
	if desc := c.GetByID(id); desc != nil {
		return desc, nil
	}
	ch := c.group.DoChan(strconv.FormatUint(uint64(id), 10), func() (interface{}, error) {
		desc, err := fetch(ctx, id)
		if err != nil {
			return nil, err
		}
		c.Put(desc)
		if cached := c.GetByID(id); cached != nil && cached.SeqNum >= desc.SeqNum {
			return cached, nil
		}
		return nil, errors.Wrapf(catalog.ErrStaleMetadataVersion,
			"fetched table %d at %d, which is older than the cache allows", id, desc.SeqNum)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*descpb.TableDescriptor), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
