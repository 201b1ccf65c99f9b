// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package catalog

import (
	"context"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/tablemeta/pkg/catalog/descpb"
	"github.com/cockroachdb/tablemeta/pkg/keys"
	"github.com/cockroachdb/tablemeta/pkg/rowenc"
	"github.com/cockroachdb/tablemeta/pkg/util/log"
	"github.com/cockroachdb/tablemeta/pkg/util/syncutil"
	"github.com/google/uuid"
)

// Config configures a Catalog.
type Config struct {
	// CatalogID identifies the catalog in snapshots. A random ID is chosen
	// when unset.
	CatalogID uuid.UUID
	// DefaultLimits fill the zero limits of new tables.
	DefaultLimits descpb.Limits
	// ChangeRetention, if positive, is the number of changes kept after
	// every mutation. Zero keeps every change until PruneChanges is called.
	ChangeRetention int
}

// ApplyResult is the outcome of ApplyChange.
type ApplyResult int

const (
	// Applied means the change was applied.
	Applied ApplyResult = iota
	// AlreadyApplied means the catalog is at or past the change's sequence
	// number. The catalog is unchanged.
	AlreadyApplied
	// NeedsSnapshot means the change could not be applied and the catalog
	// must be reloaded from a snapshot. The catalog is unchanged.
	NeedsSnapshot
)

func (r ApplyResult) String() string {
	switch r {
	case Applied:
		return "applied"
	case AlreadyApplied:
		return "already applied"
	case NeedsSnapshot:
		return "needs snapshot"
	}
	return "unknown"
}

// SafeValue implements redact.SafeValue.
func (ApplyResult) SafeValue() {}

// Catalog is the versioned registry of namespaces, regions, tables and
// indexes. Every mutation is atomic, produces one change list entry and
// advances the catalog sequence number by one. All descriptors returned by
// a Catalog are copies owned by the caller.
type Catalog struct {
	cfg Config

	mu struct {
		syncutil.RWMutex
		id      uuid.UUID
		st      *state
		changes changeList
	}
}

// New returns an empty catalog holding only the default namespace.
func New(cfg Config) *Catalog {
	c := &Catalog{cfg: cfg}
	c.mu.id = cfg.CatalogID
	if c.mu.id == uuid.Nil {
		c.mu.id = uuid.New()
	}
	c.mu.st = newState()
	return c
}

// NewFromSnapshot returns a catalog initialized from snap.
func NewFromSnapshot(ctx context.Context, cfg Config, snap *descpb.Snapshot) (*Catalog, error) {
	c := New(cfg)
	if err := c.LoadSnapshot(ctx, snap); err != nil {
		return nil, err
	}
	return c, nil
}

// ID returns the catalog's identity.
func (c *Catalog) ID() uuid.UUID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.mu.id
}

// SeqNum returns the catalog sequence number.
func (c *Catalog) SeqNum() descpb.SeqNum {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.mu.st.seq
}

// mutate builds a change against the current state, applies it to a copy
// and publishes the copy. Nothing is published when build or apply fail.
func (c *Catalog) mutate(
	ctx context.Context, build func(st *state, seq descpb.SeqNum) (*descpb.Change, error),
) (*state, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	seq := c.mu.st.seq + 1
	ch, err := build(c.mu.st, seq)
	if err != nil {
		return nil, err
	}
	ch.SeqNum = seq
	next := c.mu.st.clone()
	if err := next.apply(ch); err != nil {
		return nil, err
	}
	c.publishLocked(ctx, next, ch)
	return next, nil
}

func (c *Catalog) publishLocked(ctx context.Context, next *state, ch *descpb.Change) {
	c.mu.AssertHeld()
	c.mu.st = next
	c.mu.changes.append(ch)
	if c.cfg.ChangeRetention > 0 {
		c.mu.changes.prune(ch.SeqNum, c.cfg.ChangeRetention)
	}
	log.VEventf(ctx, 2, "catalog %s: %s", c.mu.id, ch)
}

// AddNamespace registers a namespace.
func (c *Catalog) AddNamespace(ctx context.Context, name string) error {
	_, err := c.mutate(ctx, func(st *state, _ descpb.SeqNum) (*descpb.Change, error) {
		return &descpb.Change{Type: descpb.ChangeAddNamespace, Namespace: name}, nil
	})
	return err
}

// DropNamespace removes an empty namespace. It fails with
// ErrNamespaceNotEmpty while the namespace holds tables.
func (c *Catalog) DropNamespace(ctx context.Context, name string) error {
	_, err := c.mutate(ctx, func(st *state, _ descpb.SeqNum) (*descpb.Change, error) {
		return &descpb.Change{Type: descpb.ChangeDropNamespace, Namespace: name}, nil
	})
	return err
}

// AddRegion registers a region and returns it with its assigned ID.
func (c *Catalog) AddRegion(ctx context.Context, name string) (descpb.Region, error) {
	var r descpb.Region
	_, err := c.mutate(ctx, func(st *state, _ descpb.SeqNum) (*descpb.Change, error) {
		r = descpb.Region{ID: st.nextRegion, Name: name}
		return &descpb.Change{Type: descpb.ChangeAddRegion, Region: &r}, nil
	})
	return r, err
}

// DropRegion removes a region no table refers to.
func (c *Catalog) DropRegion(ctx context.Context, name string) error {
	_, err := c.mutate(ctx, func(st *state, _ descpb.SeqNum) (*descpb.Change, error) {
		r, ok := st.regionByName(name)
		if !ok {
			return nil, errors.Wrapf(ErrRegionNotFound, "region %q", name)
		}
		return &descpb.Change{Type: descpb.ChangeDropRegion, Region: &r}, nil
	})
	return err
}

// AddTable creates a table from desc, which supplies the namespace, name,
// parent, fields, primary key and the optional shard key size, TTL, limits,
// regions, indexes and description. The catalog assigns the table and
// index IDs, fills zero limits with the defaults and marks the indexes
// READY. The created descriptor is returned.
func (c *Catalog) AddTable(
	ctx context.Context, desc *descpb.TableDescriptor,
) (*descpb.TableDescriptor, error) {
	var id descpb.ID
	st, err := c.mutate(ctx, func(st *state, seq descpb.SeqNum) (*descpb.Change, error) {
		t := desc.Clone()
		t.ID = st.nextID
		t.SeqNum = seq
		t.Version = 1
		t.Children = nil
		t.Limits = t.Limits.WithDefaults(c.cfg.DefaultLimits)
		indexes := t.Indexes
		t.Indexes = nil
		t.NextIndexID = descpb.FirstSecondaryIndexID
		for i := range indexes {
			idx := indexes[i]
			idx.ID = t.NextIndexID
			idx.TableID = t.ID
			idx.Status = descpb.IndexStatusReady
			res, err := rowenc.ResolveIndex(t, &idx)
			if err != nil {
				return nil, err
			}
			t.AddIndex(*res)
			t.NextIndexID++
		}
		id = t.ID
		return &descpb.Change{Type: descpb.ChangeAddTable, Table: t}, nil
	})
	if err != nil {
		return nil, err
	}
	log.Infof(ctx, "created table %s", st.tables[id])
	return st.tables[id].Clone(), nil
}

// DropTable removes a table. A table with children can only be dropped with
// cascade, which drops its whole subtree; otherwise ErrTableNotEmpty is
// returned.
func (c *Catalog) DropTable(ctx context.Context, id descpb.ID, cascade bool) error {
	_, err := c.mutate(ctx, func(st *state, _ descpb.SeqNum) (*descpb.Change, error) {
		return &descpb.Change{Type: descpb.ChangeDropTable, TableID: id, Cascade: cascade}, nil
	})
	return err
}

// EvolveTable replaces the schema of an existing table. desc identifies the
// table by ID and supplies the new fields, shard key size, TTL, regions and
// description. Existing fields keep their types; the primary key, name,
// parent, indexes and limits cannot change through EvolveTable. The
// table's version is incremented.
func (c *Catalog) EvolveTable(
	ctx context.Context, desc *descpb.TableDescriptor,
) (*descpb.TableDescriptor, error) {
	st, err := c.mutate(ctx, func(st *state, seq descpb.SeqNum) (*descpb.Change, error) {
		old, err := st.table(desc.ID)
		if err != nil {
			return nil, err
		}
		t := old.Clone()
		t.Fields = desc.Clone().Fields
		if len(desc.PrimaryKey) > 0 {
			t.PrimaryKey = append([]string(nil), desc.PrimaryKey...)
		}
		if desc.Namespace != "" {
			t.Namespace = desc.Namespace
		}
		if desc.Name != "" {
			t.Name = desc.Name
		}
		t.ShardKeySize = desc.ShardKeySize
		t.TTL = desc.TTL
		t.Regions = append([]descpb.RegionID(nil), desc.Regions...)
		t.Description = desc.Description
		t.Version = old.Version + 1
		t.SeqNum = seq
		return &descpb.Change{Type: descpb.ChangeEvolveTable, Table: t}, nil
	})
	if err != nil {
		return nil, err
	}
	return st.tables[desc.ID].Clone(), nil
}

// AddIndex adds a secondary index to a table in the CREATING state and
// returns it with its ID and field types assigned.
func (c *Catalog) AddIndex(
	ctx context.Context, tableID descpb.ID, idx descpb.IndexDescriptor,
) (*descpb.IndexDescriptor, error) {
	st, err := c.mutate(ctx, func(st *state, _ descpb.SeqNum) (*descpb.Change, error) {
		t, err := st.table(tableID)
		if err != nil {
			return nil, err
		}
		idx.ID = t.NextIndexID
		idx.TableID = t.ID
		idx.Status = descpb.IndexStatusCreating
		res, err := rowenc.ResolveIndex(t, &idx)
		if err != nil {
			return nil, err
		}
		return &descpb.Change{Type: descpb.ChangeAddIndex, TableID: tableID, Index: res}, nil
	})
	if err != nil {
		return nil, err
	}
	res, _ := st.tables[tableID].FindIndexByName(idx.Name)
	log.Infof(ctx, "added %s to table %d", res, tableID)
	return res.Clone(), nil
}

// DropIndex removes a secondary index.
func (c *Catalog) DropIndex(ctx context.Context, tableID descpb.ID, name string) error {
	_, err := c.mutate(ctx, func(st *state, _ descpb.SeqNum) (*descpb.Change, error) {
		return &descpb.Change{Type: descpb.ChangeDropIndex, TableID: tableID, IndexName: name}, nil
	})
	return err
}

// UpdateIndexStatus moves an index forward through its lifecycle.
func (c *Catalog) UpdateIndexStatus(
	ctx context.Context, tableID descpb.ID, name string, status descpb.IndexStatus,
) error {
	_, err := c.mutate(ctx, func(st *state, _ descpb.SeqNum) (*descpb.Change, error) {
		return &descpb.Change{
			Type: descpb.ChangeUpdateIndexStatus, TableID: tableID, IndexName: name, Status: status,
		}, nil
	})
	return err
}

// SetLimits replaces a table's limits. Zero limits are filled with the
// defaults. Limits below the table's current index or child count fail
// with ErrLimitExceeded.
func (c *Catalog) SetLimits(ctx context.Context, tableID descpb.ID, l descpb.Limits) error {
	_, err := c.mutate(ctx, func(st *state, _ descpb.SeqNum) (*descpb.Change, error) {
		l := l.WithDefaults(c.cfg.DefaultLimits)
		return &descpb.Change{Type: descpb.ChangeTableLimit, TableID: tableID, Limits: &l}, nil
	})
	return err
}

// GetTable returns the named table.
func (c *Catalog) GetTable(namespace, name string) (*descpb.TableDescriptor, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, err := c.mu.st.tableByName(namespace, name)
	if err != nil {
		return nil, err
	}
	return t.Clone(), nil
}

// GetTableByID returns the table with the given ID.
func (c *Catalog) GetTableByID(id descpb.ID) (*descpb.TableDescriptor, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, err := c.mu.st.table(id)
	if err != nil {
		return nil, err
	}
	return t.Clone(), nil
}

// ListTables returns the tables of a namespace sorted by name.
func (c *Catalog) ListTables(namespace string) ([]*descpb.TableDescriptor, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	key := strings.ToLower(namespace)
	if _, ok := c.mu.st.namespaces[key]; !ok {
		return nil, errors.Wrapf(ErrNamespaceNotFound, "namespace %q", namespace)
	}
	var out []*descpb.TableDescriptor
	for k, id := range c.mu.st.byName {
		if k.namespace == key {
			out = append(out, c.mu.st.tables[id].Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	return out, nil
}

// Namespaces returns the namespace names sorted.
func (c *Catalog) Namespaces() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.mu.st.namespaces))
	for _, ns := range c.mu.st.namespaces {
		out = append(out, ns)
	}
	sort.Strings(out)
	return out
}

// Regions returns the registered regions sorted by ID.
func (c *Catalog) Regions() []descpb.Region {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]descpb.Region, 0, len(c.mu.st.regions))
	for _, r := range c.mu.st.regions {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// TablePath returns the hierarchical identity of a table: the IDs from its
// top level ancestor down to the table.
func (c *Catalog) TablePath(id descpb.ID) ([]descpb.ID, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.mu.st.path(id)
}

// TablePrefix returns the key prefix of a table's data.
func (c *Catalog) TablePrefix(id descpb.ID) ([]byte, error) {
	path, err := c.TablePath(id)
	if err != nil {
		return nil, err
	}
	ids := make([]uint32, len(path))
	for i, p := range path {
		ids[i] = uint32(p)
	}
	return keys.MakeTablePrefix(ids...), nil
}

// GetFirstChangeSeqNum returns the sequence number of the oldest retained
// change, or EmptyChangeListSeqNum.
func (c *Catalog) GetFirstChangeSeqNum() descpb.SeqNum {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.mu.changes.first()
}

// ChangesSince returns the changes following seq in order. It fails with
// ErrStaleMetadataVersion when some of them were pruned.
func (c *Catalog) ChangesSince(seq descpb.SeqNum) ([]*descpb.Change, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.mu.changes.since(seq, c.mu.st.seq)
}

// PruneChanges removes the oldest changes with a sequence number below
// throughSeqNum, keeping at least keepCount changes and always the newest
// one. It returns the number of removed changes.
func (c *Catalog) PruneChanges(throughSeqNum descpb.SeqNum, keepCount int) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mu.changes.prune(throughSeqNum, keepCount)
}

// ApplyChange applies a change produced by another catalog. A change at or
// below the current sequence number is ignored. A change that leaves a gap
// or does not apply cleanly returns NeedsSnapshot with an error marked
// ErrMetadataCorruption; the catalog is unchanged in that case.
func (c *Catalog) ApplyChange(ctx context.Context, ch *descpb.Change) (ApplyResult, error) {
	ch = ch.Clone()
	c.mu.Lock()
	defer c.mu.Unlock()
	cur := c.mu.st.seq
	if ch.SeqNum <= cur {
		return AlreadyApplied, nil
	}
	if ch.SeqNum != cur+1 {
		return NeedsSnapshot, errors.Wrapf(ErrMetadataCorruption,
			"change %s does not follow %d", ch, cur)
	}
	next := c.mu.st.clone()
	if err := next.apply(ch); err != nil {
		log.Warningf(ctx, "catalog %s: cannot apply %s: %v", c.mu.id, ch, err)
		return NeedsSnapshot, errors.Mark(errors.Wrapf(err, "applying %s", ch), ErrMetadataCorruption)
	}
	c.publishLocked(ctx, next, ch)
	return Applied, nil
}

// CurrentSnapshot returns the complete state of the catalog.
func (c *Catalog) CurrentSnapshot() *descpb.Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.mu.st.snapshot(c.mu.id)
}

// LoadSnapshot replaces the catalog's state with snap after checking that
// it is consistent. The catalog adopts the snapshot's identity and its
// change list is emptied.
func (c *Catalog) LoadSnapshot(ctx context.Context, snap *descpb.Snapshot) error {
	st, err := stateFromSnapshot(snap)
	if err != nil {
		return errors.Wrapf(err, "loading snapshot %s at %d", snap.CatalogID, snap.SeqNum)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mu.id = snap.CatalogID
	c.mu.st = st
	c.mu.changes.reset()
	log.Infof(ctx, "catalog %s: loaded snapshot at %d with %d tables", snap.CatalogID, snap.SeqNum, len(snap.Tables))
	return nil
}

// tableSeqNums returns the sequence number of every table.
func (c *Catalog) tableSeqNums() map[descpb.ID]descpb.SeqNum {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[descpb.ID]descpb.SeqNum, len(c.mu.st.tables))
	for id, t := range c.mu.st.tables {
		out[id] = t.SeqNum
	}
	return out
}
