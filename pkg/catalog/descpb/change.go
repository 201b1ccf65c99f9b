// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package descpb

import (
	"strconv"

	"github.com/cockroachdb/redact"
	"github.com/google/uuid"
)

// ChangeType tags a change list entry.
type ChangeType int32

// ChangeType values. The numbering is part of the binary form.
const (
	ChangeUnknown ChangeType = iota
	ChangeAddNamespace
	ChangeDropNamespace
	ChangeAddRegion
	ChangeDropRegion
	ChangeAddTable
	ChangeDropTable
	ChangeEvolveTable
	ChangeAddIndex
	ChangeDropIndex
	ChangeUpdateIndexStatus
	ChangeTableLimit
)

var changeTypeNames = [...]string{
	ChangeUnknown:           "Unknown",
	ChangeAddNamespace:      "AddNamespace",
	ChangeDropNamespace:     "DropNamespace",
	ChangeAddRegion:         "AddRegion",
	ChangeDropRegion:        "DropRegion",
	ChangeAddTable:          "AddTable",
	ChangeDropTable:         "DropTable",
	ChangeEvolveTable:       "EvolveTable",
	ChangeAddIndex:          "AddIndex",
	ChangeDropIndex:         "DropIndex",
	ChangeUpdateIndexStatus: "UpdateIndexStatus",
	ChangeTableLimit:        "TableLimit",
}

func (t ChangeType) String() string {
	if t >= 0 && int(t) < len(changeTypeNames) {
		return changeTypeNames[t]
	}
	return "ChangeType(" + strconv.Itoa(int(t)) + ")"
}

// SafeValue implements redact.SafeValue.
func (ChangeType) SafeValue() {}

// Change is one entry of the catalog change list. Its payload is fully
// resolved (ids assigned, index types filled in) so applying it is
// deterministic on every replica. Which payload fields are set depends on
// Type:
//
//	AddNamespace, DropNamespace: Namespace
//	AddRegion, DropRegion:       Region
//	AddTable, EvolveTable:       Table (the descriptor as it is after the change)
//	DropTable:                   TableID, Cascade
//	AddIndex:                    TableID, Index
//	DropIndex:                   TableID, IndexName
//	UpdateIndexStatus:           TableID, IndexName, Status
//	TableLimit:                  TableID, Limits
type Change struct {
	Type ChangeType
	// SeqNum is the catalog sequence number the change produces.
	SeqNum SeqNum

	Namespace string
	Region    *Region
	Table     *TableDescriptor
	TableID   ID
	Cascade   bool
	Index     *IndexDescriptor
	IndexName string
	Status    IndexStatus
	Limits    *Limits
}

// TargetID returns the id of the table the change applies to, or InvalidID
// for namespace and region changes.
func (c *Change) TargetID() ID {
	if c.Table != nil {
		return c.Table.ID
	}
	return c.TableID
}

// SafeFormat implements redact.SafeFormatter.
func (c *Change) SafeFormat(w redact.SafePrinter, _ rune) {
	w.Printf("%s @%d", c.Type, c.SeqNum)
	if id := c.TargetID(); id != InvalidID {
		w.Printf(" table=%d", id)
	}
	if c.IndexName != "" {
		w.Printf(" index=%q", c.IndexName)
	}
	if c.Index != nil {
		w.Printf(" index=%q", c.Index.Name)
	}
}

func (c *Change) String() string { return redact.StringWithoutMarkers(c) }

// Snapshot is the complete state of a catalog.
type Snapshot struct {
	CatalogID  uuid.UUID
	SeqNum     SeqNum
	NextID     ID
	NextRegion RegionID
	Namespaces []string
	Regions    []Region
	// Tables is sorted by ID.
	Tables []TableDescriptor
}

// Clone returns a deep copy of c.
func (c *Change) Clone() *Change {
	res := *c
	if c.Region != nil {
		r := *c.Region
		res.Region = &r
	}
	if c.Table != nil {
		res.Table = c.Table.Clone()
	}
	if c.Index != nil {
		res.Index = c.Index.Clone()
	}
	if c.Limits != nil {
		l := *c.Limits
		res.Limits = &l
	}
	return &res
}
