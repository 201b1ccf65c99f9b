// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package descpb defines the table, index and catalog descriptors together
// with their JSON and versioned binary forms.
package descpb

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/redact"
	"github.com/cockroachdb/tablemeta/pkg/datum"
	"github.com/cockroachdb/tablemeta/pkg/types"
	"github.com/cockroachdb/tablemeta/pkg/util/encoding"
)

// ID is a table identifier. IDs are assigned by the catalog and never reused.
type ID uint32

// InvalidID is the uninitialised table id.
const InvalidID ID = 0

// SafeValue implements redact.SafeValue.
func (ID) SafeValue() {}

// IDs is a sortable list of table ids.
type IDs []ID

func (ids IDs) Len() int           { return len(ids) }
func (ids IDs) Less(i, j int) bool { return ids[i] < ids[j] }
func (ids IDs) Swap(i, j int)      { ids[i], ids[j] = ids[j], ids[i] }

// IndexID is an index identifier, unique within a table.
type IndexID uint32

// SafeValue implements redact.SafeValue.
func (IndexID) SafeValue() {}

// PrimaryIndexID is the id of every table's primary index. Secondary indexes
// are numbered from FirstSecondaryIndexID.
const (
	PrimaryIndexID        IndexID = 1
	FirstSecondaryIndexID IndexID = 2
)

// SeqNum is a catalog or table sequence number.
type SeqNum uint64

// SafeValue implements redact.SafeValue.
func (SeqNum) SafeValue() {}

// RegionID identifies a region registered in the catalog.
type RegionID uint32

// SafeValue implements redact.SafeValue.
func (RegionID) SafeValue() {}

// Region is a region registered in the catalog.
type Region struct {
	ID   RegionID
	Name string
}

// IdentityParams are the sequence parameters of an identity field.
type IdentityParams struct {
	Start     int64 `json:"start"`
	Increment int64 `json:"increment"`
	Cache     int64 `json:"cache,omitempty"`
}

// FieldDef is a top level field of a table.
type FieldDef struct {
	Name     string
	Type     *types.T
	Nullable bool
	// Default is a JSON literal of Type, applied when a row omits the field.
	Default string
	// Identity is set for fields whose values come from a sequence.
	Identity *IdentityParams
}

// DefaultValue parses the field's default. It returns nil when the field
// has no default.
func (f *FieldDef) DefaultValue() (datum.Datum, error) {
	if f.Default == "" {
		return nil, nil
	}
	d, err := datum.ParseJSON(f.Type, []byte(f.Default))
	if err != nil {
		return nil, errors.Wrapf(err, "default of field %q", f.Name)
	}
	return d, nil
}

// TimeUnit is the unit of a table TTL.
type TimeUnit int32

// TimeUnit values.
const (
	TimeUnitSeconds TimeUnit = iota
	TimeUnitMinutes
	TimeUnitHours
	TimeUnitDays
)

var timeUnitNames = [...]string{"SECONDS", "MINUTES", "HOURS", "DAYS"}

func (u TimeUnit) String() string {
	if u >= 0 && int(u) < len(timeUnitNames) {
		return timeUnitNames[u]
	}
	return "TimeUnit(" + strconv.Itoa(int(u)) + ")"
}

// ParseTimeUnit parses the name of a time unit.
func ParseTimeUnit(s string) (TimeUnit, error) {
	for i, n := range timeUnitNames {
		if strings.EqualFold(n, s) {
			return TimeUnit(i), nil
		}
	}
	return 0, errors.Newf("unknown time unit %q", s)
}

// TTL is the default time to live of rows in a table. A zero Value means
// rows do not expire.
type TTL struct {
	Value int64
	Unit  TimeUnit
}

// Duration returns the TTL as a time.Duration.
func (t TTL) Duration() time.Duration {
	d := time.Duration(t.Value)
	switch t.Unit {
	case TimeUnitMinutes:
		return d * time.Minute
	case TimeUnitHours:
		return d * time.Hour
	case TimeUnitDays:
		return d * 24 * time.Hour
	}
	return d * time.Second
}

// Limits bound the resources a table may use. Zero values are replaced by
// the catalog defaults when the table is created.
type Limits struct {
	ReadUnits      int64
	WriteUnits     int64
	StorageGB      int64
	MaxIndexes     int
	MaxChildTables int
	// IndexKeySize bounds the encoded size of the indexed values of one
	// index entry.
	IndexKeySize int
}

// WithDefaults returns l with every zero field taken from def.
func (l Limits) WithDefaults(def Limits) Limits {
	if l.ReadUnits == 0 {
		l.ReadUnits = def.ReadUnits
	}
	if l.WriteUnits == 0 {
		l.WriteUnits = def.WriteUnits
	}
	if l.StorageGB == 0 {
		l.StorageGB = def.StorageGB
	}
	if l.MaxIndexes == 0 {
		l.MaxIndexes = def.MaxIndexes
	}
	if l.MaxChildTables == 0 {
		l.MaxChildTables = def.MaxChildTables
	}
	if l.IndexKeySize == 0 {
		l.IndexKeySize = def.IndexKeySize
	}
	return l
}

// Validate checks that no limit is negative.
func (l Limits) Validate() error {
	if l.ReadUnits < 0 || l.WriteUnits < 0 || l.StorageGB < 0 ||
		l.MaxIndexes < 0 || l.MaxChildTables < 0 || l.IndexKeySize < 0 {
		return errors.Newf("limits must not be negative: %+v", l)
	}
	return nil
}

// IndexStatus is the lifecycle state of an index.
type IndexStatus int32

// IndexStatus values. Status only moves forward through CREATING, POPULATING
// and READY. TRANSIENT marks descriptors decoded from the JSON form, which
// does not carry a durable status.
const (
	IndexStatusCreating IndexStatus = iota
	IndexStatusPopulating
	IndexStatusReady
	IndexStatusTransient
)

var indexStatusNames = [...]string{"CREATING", "POPULATING", "READY", "TRANSIENT"}

func (s IndexStatus) String() string {
	if s >= 0 && int(s) < len(indexStatusNames) {
		return indexStatusNames[s]
	}
	return "IndexStatus(" + strconv.Itoa(int(s)) + ")"
}

// SafeValue implements redact.SafeValue.
func (IndexStatus) SafeValue() {}

// ParseIndexStatus parses the name of an index status.
func ParseIndexStatus(s string) (IndexStatus, error) {
	for i, n := range indexStatusNames {
		if strings.EqualFold(n, s) {
			return IndexStatus(i), nil
		}
	}
	return 0, errors.Newf("unknown index status %q", s)
}

// CanTransitionTo returns true if an index may move from s to next.
func (s IndexStatus) CanTransitionTo(next IndexStatus) bool {
	if s == IndexStatusTransient || next == IndexStatusTransient {
		return false
	}
	return next > s
}

// Writable returns true if row writes must maintain entries of an index in
// this state.
func (s IndexStatus) Writable() bool {
	return s == IndexStatusPopulating || s == IndexStatusReady
}

// IndexField is one indexed path of an index.
type IndexField struct {
	Path string
	// Type is the type the path resolves to, filled in by the catalog when
	// the index is added.
	Type      *types.T
	Direction encoding.Direction
}

// IndexDescriptor describes a secondary index.
type IndexDescriptor struct {
	Name    string
	ID      IndexID
	TableID ID
	Fields  []IndexField
	// IndexNulls is false for indexes declared WITH NO NULLS, which drop
	// tuples holding a NULL or EMPTY component.
	IndexNulls bool
	// Unique rejects rows producing two identical tuples.
	Unique      bool
	Status      IndexStatus
	Description string
}

// Directions returns the encoding direction of every indexed field.
func (desc *IndexDescriptor) Directions() []encoding.Direction {
	dirs := make([]encoding.Direction, len(desc.Fields))
	for i := range desc.Fields {
		dirs[i] = desc.Fields[i].Direction
	}
	return dirs
}

// Clone returns a deep copy of desc.
func (desc *IndexDescriptor) Clone() *IndexDescriptor {
	c := *desc
	c.Fields = append([]IndexField(nil), desc.Fields...)
	return &c
}

// SafeFormat implements redact.SafeFormatter.
func (desc *IndexDescriptor) SafeFormat(w redact.SafePrinter, _ rune) {
	w.Printf("index %q [%d] (%s)", desc.Name, desc.ID, desc.Status)
}

func (desc *IndexDescriptor) String() string { return redact.StringWithoutMarkers(desc) }

// TableDescriptor describes a table.
type TableDescriptor struct {
	Namespace string
	Name      string
	ID        ID
	// ParentID is InvalidID for top level tables.
	ParentID     ID
	Fields       []FieldDef
	PrimaryKey   []string
	ShardKeySize int
	TTL          TTL
	Limits       Limits
	// Children is sorted.
	Children IDs
	// Indexes is sorted by name.
	Indexes     []IndexDescriptor
	Regions     []RegionID
	SeqNum      SeqNum
	Version     uint64
	NextIndexID IndexID
	Description string
}

// Clone returns a deep copy of desc.
func (desc *TableDescriptor) Clone() *TableDescriptor {
	c := *desc
	c.Fields = make([]FieldDef, len(desc.Fields))
	for i, f := range desc.Fields {
		if f.Identity != nil {
			id := *f.Identity
			f.Identity = &id
		}
		c.Fields[i] = f
	}
	c.PrimaryKey = append([]string(nil), desc.PrimaryKey...)
	c.Children = append(IDs(nil), desc.Children...)
	c.Regions = append([]RegionID(nil), desc.Regions...)
	c.Indexes = make([]IndexDescriptor, len(desc.Indexes))
	for i := range desc.Indexes {
		c.Indexes[i] = *desc.Indexes[i].Clone()
	}
	return &c
}

// FindField returns the named field. Names are case insensitive.
func (desc *TableDescriptor) FindField(name string) (*FieldDef, bool) {
	for i := range desc.Fields {
		if strings.EqualFold(desc.Fields[i].Name, name) {
			return &desc.Fields[i], true
		}
	}
	return nil, false
}

// FindIndexByName returns the named index. Names are case insensitive.
func (desc *TableDescriptor) FindIndexByName(name string) (*IndexDescriptor, bool) {
	for i := range desc.Indexes {
		if strings.EqualFold(desc.Indexes[i].Name, name) {
			return &desc.Indexes[i], true
		}
	}
	return nil, false
}

// FindIndexByID returns the index with the given id.
func (desc *TableDescriptor) FindIndexByID(id IndexID) (*IndexDescriptor, bool) {
	for i := range desc.Indexes {
		if desc.Indexes[i].ID == id {
			return &desc.Indexes[i], true
		}
	}
	return nil, false
}

// AddIndex inserts idx keeping Indexes sorted by name.
func (desc *TableDescriptor) AddIndex(idx IndexDescriptor) {
	i := sort.Search(len(desc.Indexes), func(i int) bool {
		return strings.ToLower(desc.Indexes[i].Name) >= strings.ToLower(idx.Name)
	})
	desc.Indexes = append(desc.Indexes, IndexDescriptor{})
	copy(desc.Indexes[i+1:], desc.Indexes[i:])
	desc.Indexes[i] = idx
}

// RemoveIndex removes the named index and reports whether it existed.
func (desc *TableDescriptor) RemoveIndex(name string) bool {
	for i := range desc.Indexes {
		if strings.EqualFold(desc.Indexes[i].Name, name) {
			desc.Indexes = append(desc.Indexes[:i:i], desc.Indexes[i+1:]...)
			return true
		}
	}
	return false
}

// AddChild records a child table id.
func (desc *TableDescriptor) AddChild(id ID) {
	i := sort.Search(len(desc.Children), func(i int) bool { return desc.Children[i] >= id })
	if i < len(desc.Children) && desc.Children[i] == id {
		return
	}
	desc.Children = append(desc.Children, 0)
	copy(desc.Children[i+1:], desc.Children[i:])
	desc.Children[i] = id
}

// RemoveChild forgets a child table id.
func (desc *TableDescriptor) RemoveChild(id ID) {
	i := sort.Search(len(desc.Children), func(i int) bool { return desc.Children[i] >= id })
	if i < len(desc.Children) && desc.Children[i] == id {
		desc.Children = append(desc.Children[:i:i], desc.Children[i+1:]...)
	}
}

// HasRegion returns true if the table is associated with the region.
func (desc *TableDescriptor) HasRegion(id RegionID) bool {
	for _, r := range desc.Regions {
		if r == id {
			return true
		}
	}
	return false
}

// RowType returns the RECORD type of the table's rows.
func (desc *TableDescriptor) RowType() *types.T {
	fields := make([]types.RecordField, len(desc.Fields))
	for i := range desc.Fields {
		fields[i] = types.RecordField{Name: desc.Fields[i].Name, Type: desc.Fields[i].Type}
	}
	return types.MakeRecord(fields...)
}

// PrimaryKeyFields returns the field definitions of the primary key, in key
// order.
func (desc *TableDescriptor) PrimaryKeyFields() ([]*FieldDef, error) {
	out := make([]*FieldDef, len(desc.PrimaryKey))
	for i, name := range desc.PrimaryKey {
		f, ok := desc.FindField(name)
		if !ok {
			return nil, errors.Newf("primary key field %q does not exist", name)
		}
		out[i] = f
	}
	return out, nil
}

// SafeFormat implements redact.SafeFormatter.
func (desc *TableDescriptor) SafeFormat(w redact.SafePrinter, _ rune) {
	w.Printf("table %q.%q [%d] @%d", desc.Namespace, desc.Name, desc.ID, desc.SeqNum)
}

func (desc *TableDescriptor) String() string { return redact.StringWithoutMarkers(desc) }

// ErrMissingFields indicates a table with no fields.
var ErrMissingFields = errors.New("table must contain at least 1 field")

// ErrMissingPrimaryKey indicates a table with no primary key.
var ErrMissingPrimaryKey = errors.New("table must contain a primary key")

func validateName(name, typ string) error {
	if len(name) == 0 {
		return errors.Newf("empty %s name", typ)
	}
	return nil
}

// ValidateTable validates that the table descriptor is well formed. Checks
// that need other tables, like parent key prefixes, are done by the catalog.
func (desc *TableDescriptor) ValidateTable() error {
	if err := validateName(desc.Namespace, "namespace"); err != nil {
		return err
	}
	if err := validateName(desc.Name, "table"); err != nil {
		return err
	}
	if desc.ID == InvalidID {
		return errors.Newf("invalid table ID %d", desc.ID)
	}
	if desc.ParentID == desc.ID {
		return errors.Newf("table %q is its own parent", desc.Name)
	}
	if len(desc.Fields) == 0 {
		return ErrMissingFields
	}

	fieldNames := make(map[string]struct{}, len(desc.Fields))
	for i := range desc.Fields {
		f := &desc.Fields[i]
		if err := validateName(f.Name, "field"); err != nil {
			return err
		}
		if strings.ContainsAny(f.Name, ".[]()") {
			return errors.Newf("field name %q contains a path character", f.Name)
		}
		key := strings.ToLower(f.Name)
		if _, ok := fieldNames[key]; ok {
			return errors.Newf("duplicate field name: %q", f.Name)
		}
		fieldNames[key] = struct{}{}
		if f.Type == nil {
			return errors.Newf("field %q has no type", f.Name)
		}
		if err := f.Type.Validate(); err != nil {
			return errors.Wrapf(err, "field %q", f.Name)
		}
		if _, err := f.DefaultValue(); err != nil {
			return err
		}
		if f.Identity != nil {
			if fam := f.Type.Family(); fam != types.IntFamily && fam != types.LongFamily {
				return errors.Newf("identity field %q must be INTEGER or LONG, not %s", f.Name, f.Type)
			}
			if f.Identity.Increment == 0 {
				return errors.Newf("identity field %q has a zero increment", f.Name)
			}
		}
	}

	if len(desc.PrimaryKey) == 0 {
		return ErrMissingPrimaryKey
	}
	pkNames := make(map[string]struct{}, len(desc.PrimaryKey))
	for _, name := range desc.PrimaryKey {
		f, ok := desc.FindField(name)
		if !ok {
			return errors.Newf("primary key field %q does not exist", name)
		}
		if _, ok := pkNames[strings.ToLower(name)]; ok {
			return errors.Newf("primary key field %q appears twice", name)
		}
		pkNames[strings.ToLower(name)] = struct{}{}
		if !f.Type.Indexable() {
			return errors.Newf("primary key field %q has type %s which cannot be used in a key", name, f.Type)
		}
		if f.Nullable {
			return errors.Newf("primary key field %q must not be nullable", name)
		}
	}
	if desc.ShardKeySize < 0 || desc.ShardKeySize > len(desc.PrimaryKey) {
		return errors.Newf("shard key size %d must be between 0 and %d", desc.ShardKeySize, len(desc.PrimaryKey))
	}
	if desc.TTL.Value < 0 {
		return errors.Newf("TTL must not be negative, got %d", desc.TTL.Value)
	}
	if err := desc.Limits.Validate(); err != nil {
		return err
	}
	if !sort.IsSorted(desc.Children) {
		return errors.AssertionFailedf("children of table %d are not sorted", desc.ID)
	}

	indexIDs := make(map[IndexID]struct{}, len(desc.Indexes))
	for i := range desc.Indexes {
		idx := &desc.Indexes[i]
		if err := validateName(idx.Name, "index"); err != nil {
			return err
		}
		if i > 0 && strings.ToLower(desc.Indexes[i-1].Name) >= strings.ToLower(idx.Name) {
			return errors.Newf("duplicate or unsorted index name: %q", idx.Name)
		}
		if idx.ID < FirstSecondaryIndexID || idx.ID >= desc.NextIndexID {
			return errors.Newf("index %q has invalid ID %d", idx.Name, idx.ID)
		}
		if _, ok := indexIDs[idx.ID]; ok {
			return errors.Newf("index %q has duplicate ID %d", idx.Name, idx.ID)
		}
		indexIDs[idx.ID] = struct{}{}
		if idx.TableID != desc.ID {
			return errors.Newf("index %q belongs to table %d, not %d", idx.Name, idx.TableID, desc.ID)
		}
		if len(idx.Fields) == 0 {
			return errors.Newf("index %q has no fields", idx.Name)
		}
		for _, f := range idx.Fields {
			if f.Direction != encoding.Ascending && f.Direction != encoding.Descending {
				return errors.Newf("index %q: invalid direction for %q", idx.Name, f.Path)
			}
		}
	}
	return nil
}
