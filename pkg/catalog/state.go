// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package catalog

import (
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/tablemeta/pkg/catalog/descpb"
	"github.com/cockroachdb/tablemeta/pkg/rowenc"
	"github.com/google/uuid"
)

// DefaultNamespace always exists and cannot be dropped.
const DefaultNamespace = "sysdefault"

// FirstTableID is the ID assigned to the first table of a catalog.
const FirstTableID descpb.ID = 1

type nameKey struct {
	namespace, name string
}

func makeNameKey(namespace, name string) nameKey {
	return nameKey{strings.ToLower(namespace), strings.ToLower(name)}
}

// state is one immutable version of the catalog. Mutations clone the state,
// apply a change to the clone and publish it. Table descriptors reachable
// from a published state are never modified; a change replaces them.
type state struct {
	seq        descpb.SeqNum
	nextID     descpb.ID
	nextRegion descpb.RegionID
	// namespaces maps the lower case name to the name.
	namespaces map[string]string
	regions    map[descpb.RegionID]descpb.Region
	// tables is the arena of all tables; parents and children refer to each
	// other by ID.
	tables map[descpb.ID]*descpb.TableDescriptor
	byName map[nameKey]descpb.ID
}

func newState() *state {
	st := &state{
		nextID:     FirstTableID,
		nextRegion: 1,
		namespaces: map[string]string{DefaultNamespace: DefaultNamespace},
		regions:    map[descpb.RegionID]descpb.Region{},
		tables:     map[descpb.ID]*descpb.TableDescriptor{},
		byName:     map[nameKey]descpb.ID{},
	}
	return st
}

func (st *state) clone() *state {
	c := &state{
		seq:        st.seq,
		nextID:     st.nextID,
		nextRegion: st.nextRegion,
		namespaces: make(map[string]string, len(st.namespaces)),
		regions:    make(map[descpb.RegionID]descpb.Region, len(st.regions)),
		tables:     make(map[descpb.ID]*descpb.TableDescriptor, len(st.tables)),
		byName:     make(map[nameKey]descpb.ID, len(st.byName)),
	}
	for k, v := range st.namespaces {
		c.namespaces[k] = v
	}
	for k, v := range st.regions {
		c.regions[k] = v
	}
	for k, v := range st.tables {
		c.tables[k] = v
	}
	for k, v := range st.byName {
		c.byName[k] = v
	}
	return c
}

func (st *state) table(id descpb.ID) (*descpb.TableDescriptor, error) {
	t, ok := st.tables[id]
	if !ok {
		return nil, errors.Wrapf(ErrTableNotFound, "table %d", id)
	}
	return t, nil
}

func (st *state) tableByName(namespace, name string) (*descpb.TableDescriptor, error) {
	id, ok := st.byName[makeNameKey(namespace, name)]
	if !ok {
		return nil, errors.Wrapf(ErrTableNotFound, "table %q.%q", namespace, name)
	}
	return st.tables[id], nil
}

func (st *state) regionByName(name string) (descpb.Region, bool) {
	for _, r := range st.regions {
		if strings.EqualFold(r.Name, name) {
			return r, true
		}
	}
	return descpb.Region{}, false
}

func (st *state) putTable(t *descpb.TableDescriptor) {
	st.tables[t.ID] = t
	st.byName[makeNameKey(t.Namespace, t.Name)] = t.ID
}

// path returns the IDs from the root ancestor of id down to id.
func (st *state) path(id descpb.ID) ([]descpb.ID, error) {
	var rev []descpb.ID
	for id != descpb.InvalidID {
		t, err := st.table(id)
		if err != nil {
			return nil, err
		}
		rev = append(rev, id)
		if len(rev) > len(st.tables) {
			return nil, errors.AssertionFailedf("parent cycle at table %d", id)
		}
		id = t.ParentID
	}
	for i, j := 0, len(rev)-1; i < j; i, j = i+1, j-1 {
		rev[i], rev[j] = rev[j], rev[i]
	}
	return rev, nil
}

// bump returns a copy of t that carries seq. It is how every table change
// starts.
func bump(t *descpb.TableDescriptor, seq descpb.SeqNum) *descpb.TableDescriptor {
	c := t.Clone()
	c.SeqNum = seq
	return c
}

// apply applies ch to st. On error st may be partially modified and must be
// discarded.
func (st *state) apply(ch *descpb.Change) error {
	if ch.SeqNum != st.seq+1 {
		return errors.AssertionFailedf("change %s does not follow %d", ch, st.seq)
	}
	var err error
	switch ch.Type {
	case descpb.ChangeAddNamespace:
		err = st.addNamespace(ch.Namespace)
	case descpb.ChangeDropNamespace:
		err = st.dropNamespace(ch.Namespace)
	case descpb.ChangeAddRegion:
		err = st.addRegion(ch.Region)
	case descpb.ChangeDropRegion:
		err = st.dropRegion(ch.Region)
	case descpb.ChangeAddTable:
		err = st.addTable(ch.Table, ch.SeqNum)
	case descpb.ChangeDropTable:
		err = st.dropTable(ch.TableID, ch.Cascade, ch.SeqNum)
	case descpb.ChangeEvolveTable:
		err = st.evolveTable(ch.Table, ch.SeqNum)
	case descpb.ChangeAddIndex:
		err = st.addIndex(ch.TableID, ch.Index, ch.SeqNum)
	case descpb.ChangeDropIndex:
		err = st.dropIndex(ch.TableID, ch.IndexName, ch.SeqNum)
	case descpb.ChangeUpdateIndexStatus:
		err = st.updateIndexStatus(ch.TableID, ch.IndexName, ch.Status, ch.SeqNum)
	case descpb.ChangeTableLimit:
		err = st.setLimits(ch.TableID, ch.Limits, ch.SeqNum)
	default:
		err = errors.Newf("unknown change type %s", ch.Type)
	}
	if err != nil {
		return err
	}
	st.seq = ch.SeqNum
	return nil
}

func (st *state) addNamespace(name string) error {
	if name == "" {
		return errors.New("empty namespace name")
	}
	if _, ok := st.namespaces[strings.ToLower(name)]; ok {
		return errors.Newf("namespace %q already exists", name)
	}
	st.namespaces[strings.ToLower(name)] = name
	return nil
}

func (st *state) dropNamespace(name string) error {
	key := strings.ToLower(name)
	if key == DefaultNamespace {
		return errors.Newf("namespace %q cannot be dropped", name)
	}
	if _, ok := st.namespaces[key]; !ok {
		return errors.Wrapf(ErrNamespaceNotFound, "namespace %q", name)
	}
	for k := range st.byName {
		if k.namespace == key {
			return errors.Wrapf(ErrNamespaceNotEmpty, "namespace %q", name)
		}
	}
	delete(st.namespaces, key)
	return nil
}

func (st *state) addRegion(r *descpb.Region) error {
	if r == nil || r.Name == "" {
		return errors.New("empty region name")
	}
	if r.ID < st.nextRegion {
		return errors.Newf("region ID %d already used", r.ID)
	}
	if _, ok := st.regionByName(r.Name); ok {
		return errors.Newf("region %q already exists", r.Name)
	}
	st.regions[r.ID] = *r
	st.nextRegion = r.ID + 1
	return nil
}

func (st *state) dropRegion(r *descpb.Region) error {
	if r == nil {
		return errors.New("missing region")
	}
	if _, ok := st.regions[r.ID]; !ok {
		return errors.Wrapf(ErrRegionNotFound, "region %d", r.ID)
	}
	for _, t := range st.tables {
		if t.HasRegion(r.ID) {
			return errors.WithHint(
				errors.Newf("region %q is used by table %q.%q", r.Name, t.Namespace, t.Name),
				"remove the region from the table first")
		}
	}
	delete(st.regions, r.ID)
	return nil
}

// checkTable runs the checks a table must pass against the rest of the
// catalog, other than those involving its parent.
func (st *state) checkTable(t *descpb.TableDescriptor) error {
	if err := t.ValidateTable(); err != nil {
		return err
	}
	if _, ok := st.namespaces[strings.ToLower(t.Namespace)]; !ok {
		return errors.Wrapf(ErrNamespaceNotFound, "namespace %q", t.Namespace)
	}
	for _, r := range t.Regions {
		if _, ok := st.regions[r]; !ok {
			return errors.Wrapf(ErrRegionNotFound, "table %q: region %d", t.Name, r)
		}
	}
	if lim := t.Limits.MaxIndexes; lim > 0 && len(t.Indexes) > lim {
		return errors.Wrapf(ErrLimitExceeded, "table %q: %d indexes, limit is %d", t.Name, len(t.Indexes), lim)
	}
	if lim := t.Limits.MaxChildTables; lim > 0 && len(t.Children) > lim {
		return errors.Wrapf(ErrLimitExceeded, "table %q: %d child tables, limit is %d", t.Name, len(t.Children), lim)
	}
	for i := range t.Indexes {
		if err := checkIndex(t, &t.Indexes[i]); err != nil {
			return err
		}
	}
	return nil
}

// checkIndex verifies that an index stored in the catalog is resolved
// against its table.
func checkIndex(t *descpb.TableDescriptor, idx *descpb.IndexDescriptor) error {
	if idx.Status == descpb.IndexStatusTransient {
		return errors.Newf("index %q: TRANSIENT indexes cannot be stored", idx.Name)
	}
	for _, f := range idx.Fields {
		if f.Type == nil {
			return errors.Newf("index %q: path %q has no type", idx.Name, f.Path)
		}
	}
	_, err := rowenc.ResolveIndex(t, idx)
	return err
}

// checkParentKey verifies that the child's primary key starts with the
// parent's primary key.
func checkParentKey(parent, child *descpb.TableDescriptor) error {
	pf, err := parent.PrimaryKeyFields()
	if err != nil {
		return err
	}
	cf, err := child.PrimaryKeyFields()
	if err != nil {
		return err
	}
	if len(cf) < len(pf) {
		return errors.Newf("primary key of %q must start with the primary key of its parent %q", child.Name, parent.Name)
	}
	for i := range pf {
		if !strings.EqualFold(pf[i].Name, cf[i].Name) || !pf[i].Type.Equal(cf[i].Type) {
			return errors.Newf("primary key field %d of %q must be %s %s as in its parent %q",
				i+1, child.Name, pf[i].Name, pf[i].Type, parent.Name)
		}
	}
	return nil
}

func (st *state) addTable(t *descpb.TableDescriptor, seq descpb.SeqNum) error {
	if t == nil {
		return errors.New("missing table")
	}
	if t.SeqNum != seq {
		return errors.Newf("table %q carries sequence number %d, expected %d", t.Name, t.SeqNum, seq)
	}
	if _, ok := st.tables[t.ID]; ok || t.ID < st.nextID {
		return errors.Newf("table ID %d already used", t.ID)
	}
	if len(t.Children) != 0 {
		return errors.Newf("new table %q cannot have children", t.Name)
	}
	if err := st.checkTable(t); err != nil {
		return err
	}
	if _, ok := st.byName[makeNameKey(t.Namespace, t.Name)]; ok {
		return errors.Wrapf(ErrTableExists, "table %q.%q", t.Namespace, t.Name)
	}
	if t.ParentID != descpb.InvalidID {
		parent, err := st.table(t.ParentID)
		if err != nil {
			return errors.Wrap(err, "parent")
		}
		if !strings.EqualFold(parent.Namespace, t.Namespace) {
			return errors.Newf("table %q must be in the namespace of its parent %q", t.Name, parent.Name)
		}
		if lim := parent.Limits.MaxChildTables; lim > 0 && len(parent.Children) >= lim {
			return errors.Wrapf(ErrLimitExceeded, "table %q already has %d child tables", parent.Name, lim)
		}
		if err := checkParentKey(parent, t); err != nil {
			return err
		}
		p := bump(parent, seq)
		p.AddChild(t.ID)
		st.putTable(p)
	}
	st.putTable(t.Clone())
	st.nextID = t.ID + 1
	return nil
}

func (st *state) dropTable(id descpb.ID, cascade bool, seq descpb.SeqNum) error {
	t, err := st.table(id)
	if err != nil {
		return err
	}
	if len(t.Children) > 0 && !cascade {
		return errors.WithHint(
			errors.Wrapf(ErrTableNotEmpty, "table %q has %d child tables", t.Name, len(t.Children)),
			"drop the child tables first or cascade")
	}
	var remove func(id descpb.ID)
	remove = func(id descpb.ID) {
		t := st.tables[id]
		if t == nil {
			return
		}
		for _, c := range t.Children {
			remove(c)
		}
		delete(st.tables, id)
		delete(st.byName, makeNameKey(t.Namespace, t.Name))
	}
	remove(id)
	if t.ParentID != descpb.InvalidID {
		parent, err := st.table(t.ParentID)
		if err != nil {
			return errors.Wrap(err, "parent")
		}
		p := bump(parent, seq)
		p.RemoveChild(id)
		st.putTable(p)
	}
	return nil
}

func (st *state) evolveTable(t *descpb.TableDescriptor, seq descpb.SeqNum) error {
	if t == nil {
		return errors.New("missing table")
	}
	old, err := st.table(t.ID)
	if err != nil {
		return err
	}
	if t.SeqNum != seq {
		return errors.Newf("table %q carries sequence number %d, expected %d", t.Name, t.SeqNum, seq)
	}
	if t.Version != old.Version+1 {
		return errors.Newf("table %q: version %d does not follow %d", t.Name, t.Version, old.Version)
	}
	if makeNameKey(t.Namespace, t.Name) != makeNameKey(old.Namespace, old.Name) {
		return errors.Newf("table %q cannot be renamed or moved", old.Name)
	}
	if t.ParentID != old.ParentID || len(t.Children) != len(old.Children) {
		return errors.Newf("table %q: evolving cannot change parent or children", old.Name)
	}
	if len(t.PrimaryKey) != len(old.PrimaryKey) {
		return errors.Newf("table %q: the primary key cannot change", old.Name)
	}
	for i := range t.PrimaryKey {
		if !strings.EqualFold(t.PrimaryKey[i], old.PrimaryKey[i]) {
			return errors.Newf("table %q: the primary key cannot change", old.Name)
		}
	}
	for i := range t.Fields {
		f := &t.Fields[i]
		if of, ok := old.FindField(f.Name); ok && !of.Type.Equal(f.Type) {
			return errors.Newf("table %q: field %q cannot change type from %s to %s", old.Name, f.Name, of.Type, f.Type)
		}
	}
	if len(t.Indexes) != len(old.Indexes) {
		return errors.Newf("table %q: evolving cannot add or drop indexes", old.Name)
	}
	if err := st.checkTable(t); err != nil {
		return err
	}
	st.putTable(t.Clone())
	return nil
}

func (st *state) addIndex(id descpb.ID, idx *descpb.IndexDescriptor, seq descpb.SeqNum) error {
	t, err := st.table(id)
	if err != nil {
		return err
	}
	if idx == nil {
		return errors.New("missing index")
	}
	if _, ok := t.FindIndexByName(idx.Name); ok {
		return errors.Newf("index %q already exists on table %q", idx.Name, t.Name)
	}
	if idx.ID != t.NextIndexID || idx.TableID != t.ID {
		return errors.Newf("index %q has ID %d/%d, expected %d/%d", idx.Name, idx.TableID, idx.ID, t.ID, t.NextIndexID)
	}
	if lim := t.Limits.MaxIndexes; lim > 0 && len(t.Indexes) >= lim {
		return errors.Wrapf(ErrLimitExceeded, "table %q already has %d indexes", t.Name, lim)
	}
	if err := checkIndex(t, idx); err != nil {
		return err
	}
	nt := bump(t, seq)
	nt.AddIndex(*idx.Clone())
	nt.NextIndexID++
	st.putTable(nt)
	return nil
}

func (st *state) dropIndex(id descpb.ID, name string, seq descpb.SeqNum) error {
	t, err := st.table(id)
	if err != nil {
		return err
	}
	nt := bump(t, seq)
	if !nt.RemoveIndex(name) {
		return errors.Wrapf(ErrIndexNotFound, "index %q on table %q", name, t.Name)
	}
	st.putTable(nt)
	return nil
}

func (st *state) updateIndexStatus(
	id descpb.ID, name string, status descpb.IndexStatus, seq descpb.SeqNum,
) error {
	t, err := st.table(id)
	if err != nil {
		return err
	}
	nt := bump(t, seq)
	idx, ok := nt.FindIndexByName(name)
	if !ok {
		return errors.Wrapf(ErrIndexNotFound, "index %q on table %q", name, t.Name)
	}
	if !idx.Status.CanTransitionTo(status) {
		return errors.Newf("index %q cannot move from %s to %s", idx.Name, idx.Status, status)
	}
	idx.Status = status
	st.putTable(nt)
	return nil
}

func (st *state) setLimits(id descpb.ID, l *descpb.Limits, seq descpb.SeqNum) error {
	t, err := st.table(id)
	if err != nil {
		return err
	}
	if l == nil {
		return errors.New("missing limits")
	}
	if err := l.Validate(); err != nil {
		return err
	}
	nt := bump(t, seq)
	nt.Limits = *l
	if err := st.checkTable(nt); err != nil {
		return err
	}
	st.putTable(nt)
	return nil
}

func (st *state) snapshot(id uuid.UUID) *descpb.Snapshot {
	snap := &descpb.Snapshot{
		CatalogID:  id,
		SeqNum:     st.seq,
		NextID:     st.nextID,
		NextRegion: st.nextRegion,
	}
	for _, ns := range st.namespaces {
		snap.Namespaces = append(snap.Namespaces, ns)
	}
	sort.Strings(snap.Namespaces)
	for _, r := range st.regions {
		snap.Regions = append(snap.Regions, r)
	}
	sort.Slice(snap.Regions, func(i, j int) bool { return snap.Regions[i].ID < snap.Regions[j].ID })
	for _, t := range st.tables {
		snap.Tables = append(snap.Tables, *t.Clone())
	}
	sort.Slice(snap.Tables, func(i, j int) bool { return snap.Tables[i].ID < snap.Tables[j].ID })
	return snap
}

// stateFromSnapshot rebuilds a state and checks that it is consistent.
func stateFromSnapshot(snap *descpb.Snapshot) (*state, error) {
	st := &state{
		seq:        snap.SeqNum,
		nextID:     snap.NextID,
		nextRegion: snap.NextRegion,
		namespaces: make(map[string]string, len(snap.Namespaces)),
		regions:    make(map[descpb.RegionID]descpb.Region, len(snap.Regions)),
		tables:     make(map[descpb.ID]*descpb.TableDescriptor, len(snap.Tables)),
		byName:     make(map[nameKey]descpb.ID, len(snap.Tables)),
	}
	for _, ns := range snap.Namespaces {
		st.namespaces[strings.ToLower(ns)] = ns
	}
	if _, ok := st.namespaces[DefaultNamespace]; !ok {
		return nil, errors.Newf("snapshot lacks namespace %q", DefaultNamespace)
	}
	for _, r := range snap.Regions {
		if r.ID >= st.nextRegion {
			return nil, errors.Newf("region %d is not below the next region ID %d", r.ID, st.nextRegion)
		}
		st.regions[r.ID] = r
	}
	for i := range snap.Tables {
		t := snap.Tables[i].Clone()
		if _, ok := st.tables[t.ID]; ok {
			return nil, errors.Newf("duplicate table ID %d", t.ID)
		}
		if _, ok := st.byName[makeNameKey(t.Namespace, t.Name)]; ok {
			return nil, errors.Newf("duplicate table name %q.%q", t.Namespace, t.Name)
		}
		st.putTable(t)
	}
	for _, t := range st.tables {
		if t.ID >= st.nextID {
			return nil, errors.Newf("table %d is not below the next ID %d", t.ID, st.nextID)
		}
		if t.SeqNum > st.seq {
			return nil, errors.Newf("table %d has sequence number %d beyond the catalog's %d", t.ID, t.SeqNum, st.seq)
		}
		if err := st.checkTable(t); err != nil {
			return nil, errors.Wrapf(err, "table %d", t.ID)
		}
		if t.ParentID != descpb.InvalidID {
			p, ok := st.tables[t.ParentID]
			if !ok || !containsID(p.Children, t.ID) {
				return nil, errors.Newf("table %d is not a child of its parent %d", t.ID, t.ParentID)
			}
		}
		for _, c := range t.Children {
			if ct, ok := st.tables[c]; !ok || ct.ParentID != t.ID {
				return nil, errors.Newf("child %d of table %d does not exist or has another parent", c, t.ID)
			}
		}
	}
	return st, nil
}

func containsID(ids descpb.IDs, id descpb.ID) bool {
	i := sort.Search(len(ids), func(i int) bool { return ids[i] >= id })
	return i < len(ids) && ids[i] == id
}
