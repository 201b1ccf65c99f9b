// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package descpb

import (
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/tablemeta/pkg/types"
	"github.com/cockroachdb/tablemeta/pkg/util/encoding"
	"github.com/cockroachdb/tablemeta/pkg/util/protoutil"
	"github.com/google/uuid"
)

// ProtocolVersion is written in front of every binary encoded table, change
// and snapshot. Readers accept any version: fields they do not know are
// skipped and fields missing from older writers keep their zero value.
const ProtocolVersion = 1

// MarshalTable encodes a table descriptor in the versioned binary form.
func MarshalTable(desc *TableDescriptor) []byte {
	return protoutil.MarshalVersioned(ProtocolVersion, desc)
}

// UnmarshalTable decodes a table descriptor written by MarshalTable.
func UnmarshalTable(data []byte) (*TableDescriptor, error) {
	var desc TableDescriptor
	if _, err := protoutil.UnmarshalVersioned(data, &desc); err != nil {
		return nil, errors.Wrap(err, "decoding table descriptor")
	}
	return &desc, nil
}

// MarshalChange encodes a change list entry in the versioned binary form.
func MarshalChange(c *Change) []byte {
	return protoutil.MarshalVersioned(ProtocolVersion, c)
}

// UnmarshalChange decodes a change list entry written by MarshalChange.
func UnmarshalChange(data []byte) (*Change, error) {
	var c Change
	if _, err := protoutil.UnmarshalVersioned(data, &c); err != nil {
		return nil, errors.Wrap(err, "decoding change")
	}
	return &c, nil
}

// MarshalSnapshot encodes a snapshot in the versioned binary form,
// compressed with snappy.
func MarshalSnapshot(s *Snapshot) []byte {
	return protoutil.MarshalCompressed(ProtocolVersion, s)
}

// UnmarshalSnapshot decodes a snapshot written by MarshalSnapshot.
func UnmarshalSnapshot(data []byte) (*Snapshot, error) {
	var s Snapshot
	if _, err := protoutil.UnmarshalCompressed(data, &s); err != nil {
		return nil, errors.Wrap(err, "decoding snapshot")
	}
	return &s, nil
}

// MarshalTo implements protoutil.Message.
func (r *Region) MarshalTo(e *protoutil.Encoder) {
	e.Uvarint(1, uint64(r.ID))
	e.Text(2, r.Name)
}

// UnmarshalFrom implements protoutil.Message.
func (r *Region) UnmarshalFrom(d *protoutil.Decoder) error {
	for {
		ok, err := d.Next()
		if err != nil || !ok {
			return err
		}
		switch d.Field() {
		case 1:
			var v uint64
			v, err = d.Uvarint()
			r.ID = RegionID(v)
		case 2:
			r.Name, err = d.Text()
		default:
			err = d.Skip()
		}
		if err != nil {
			return err
		}
	}
}

// MarshalTo implements protoutil.Message.
func (p *IdentityParams) MarshalTo(e *protoutil.Encoder) {
	e.Varint(1, p.Start)
	e.Varint(2, p.Increment)
	e.Varint(3, p.Cache)
}

// UnmarshalFrom implements protoutil.Message.
func (p *IdentityParams) UnmarshalFrom(d *protoutil.Decoder) error {
	for {
		ok, err := d.Next()
		if err != nil || !ok {
			return err
		}
		switch d.Field() {
		case 1:
			p.Start, err = d.Varint()
		case 2:
			p.Increment, err = d.Varint()
		case 3:
			p.Cache, err = d.Varint()
		default:
			err = d.Skip()
		}
		if err != nil {
			return err
		}
	}
}

// MarshalTo implements protoutil.Message.
func (f *FieldDef) MarshalTo(e *protoutil.Encoder) {
	e.Text(1, f.Name)
	if f.Type != nil {
		e.Message(2, f.Type)
	}
	e.Bool(3, f.Nullable)
	e.Text(4, f.Default)
	if f.Identity != nil {
		e.Message(5, f.Identity)
	}
}

// UnmarshalFrom implements protoutil.Message.
func (f *FieldDef) UnmarshalFrom(d *protoutil.Decoder) error {
	for {
		ok, err := d.Next()
		if err != nil || !ok {
			return err
		}
		switch d.Field() {
		case 1:
			f.Name, err = d.Text()
		case 2:
			f.Type = &types.T{}
			err = d.Message(f.Type)
		case 3:
			f.Nullable, err = d.Bool()
		case 4:
			f.Default, err = d.Text()
		case 5:
			f.Identity = &IdentityParams{}
			err = d.Message(f.Identity)
		default:
			err = d.Skip()
		}
		if err != nil {
			return err
		}
	}
}

// MarshalTo implements protoutil.Message.
func (l *Limits) MarshalTo(e *protoutil.Encoder) {
	e.Varint(1, l.ReadUnits)
	e.Varint(2, l.WriteUnits)
	e.Varint(3, l.StorageGB)
	e.Varint(4, int64(l.MaxIndexes))
	e.Varint(5, int64(l.MaxChildTables))
	e.Varint(6, int64(l.IndexKeySize))
}

// UnmarshalFrom implements protoutil.Message.
func (l *Limits) UnmarshalFrom(d *protoutil.Decoder) error {
	for {
		ok, err := d.Next()
		if err != nil || !ok {
			return err
		}
		var v int64
		switch d.Field() {
		case 1:
			l.ReadUnits, err = d.Varint()
		case 2:
			l.WriteUnits, err = d.Varint()
		case 3:
			l.StorageGB, err = d.Varint()
		case 4:
			v, err = d.Varint()
			l.MaxIndexes = int(v)
		case 5:
			v, err = d.Varint()
			l.MaxChildTables = int(v)
		case 6:
			v, err = d.Varint()
			l.IndexKeySize = int(v)
		default:
			err = d.Skip()
		}
		if err != nil {
			return err
		}
	}
}

// MarshalTo implements protoutil.Message.
func (f *IndexField) MarshalTo(e *protoutil.Encoder) {
	e.Text(1, f.Path)
	if f.Type != nil {
		e.Message(2, f.Type)
	}
	e.Uvarint(3, uint64(f.Direction))
}

// UnmarshalFrom implements protoutil.Message.
func (f *IndexField) UnmarshalFrom(d *protoutil.Decoder) error {
	for {
		ok, err := d.Next()
		if err != nil || !ok {
			return err
		}
		switch d.Field() {
		case 1:
			f.Path, err = d.Text()
		case 2:
			f.Type = &types.T{}
			err = d.Message(f.Type)
		case 3:
			var v uint64
			v, err = d.Uvarint()
			f.Direction = encoding.Direction(v)
		default:
			err = d.Skip()
		}
		if err != nil {
			return err
		}
	}
}

// MarshalTo implements protoutil.Message.
func (desc *IndexDescriptor) MarshalTo(e *protoutil.Encoder) {
	e.Text(1, desc.Name)
	e.Uvarint(2, uint64(desc.ID))
	e.Uvarint(3, uint64(desc.TableID))
	for i := range desc.Fields {
		e.Message(4, &desc.Fields[i])
	}
	// Stored inverted so that the zero value is the default.
	e.Bool(5, !desc.IndexNulls)
	e.Bool(6, desc.Unique)
	e.Uvarint(7, uint64(desc.Status))
	e.Text(8, desc.Description)
}

// UnmarshalFrom implements protoutil.Message.
func (desc *IndexDescriptor) UnmarshalFrom(d *protoutil.Decoder) error {
	*desc = IndexDescriptor{IndexNulls: true}
	for {
		ok, err := d.Next()
		if err != nil || !ok {
			return err
		}
		var v uint64
		switch d.Field() {
		case 1:
			desc.Name, err = d.Text()
		case 2:
			v, err = d.Uvarint()
			desc.ID = IndexID(v)
		case 3:
			v, err = d.Uvarint()
			desc.TableID = ID(v)
		case 4:
			var f IndexField
			err = d.Message(&f)
			desc.Fields = append(desc.Fields, f)
		case 5:
			var noNulls bool
			noNulls, err = d.Bool()
			desc.IndexNulls = !noNulls
		case 6:
			desc.Unique, err = d.Bool()
		case 7:
			v, err = d.Uvarint()
			desc.Status = IndexStatus(v)
		case 8:
			desc.Description, err = d.Text()
		default:
			err = d.Skip()
		}
		if err != nil {
			return err
		}
	}
}

// MarshalTo implements protoutil.Message.
func (desc *TableDescriptor) MarshalTo(e *protoutil.Encoder) {
	e.Text(1, desc.Namespace)
	e.Text(2, desc.Name)
	e.Uvarint(3, uint64(desc.ID))
	e.Uvarint(4, uint64(desc.ParentID))
	for i := range desc.Fields {
		e.Message(5, &desc.Fields[i])
	}
	for _, pk := range desc.PrimaryKey {
		e.RawBytes(6, []byte(pk))
	}
	e.Varint(7, int64(desc.ShardKeySize))
	e.Varint(8, desc.TTL.Value)
	e.Uvarint(9, uint64(desc.TTL.Unit))
	if desc.Limits != (Limits{}) {
		e.Message(10, &desc.Limits)
	}
	for _, c := range desc.Children {
		e.Uvarint(11, uint64(c))
	}
	for i := range desc.Indexes {
		e.Message(12, &desc.Indexes[i])
	}
	for _, r := range desc.Regions {
		e.Uvarint(13, uint64(r))
	}
	e.Uvarint(14, uint64(desc.SeqNum))
	e.Uvarint(15, desc.Version)
	e.Uvarint(16, uint64(desc.NextIndexID))
	e.Text(17, desc.Description)
}

// UnmarshalFrom implements protoutil.Message.
func (desc *TableDescriptor) UnmarshalFrom(d *protoutil.Decoder) error {
	*desc = TableDescriptor{}
	for {
		ok, err := d.Next()
		if err != nil || !ok {
			return err
		}
		var v uint64
		var i int64
		switch d.Field() {
		case 1:
			desc.Namespace, err = d.Text()
		case 2:
			desc.Name, err = d.Text()
		case 3:
			v, err = d.Uvarint()
			desc.ID = ID(v)
		case 4:
			v, err = d.Uvarint()
			desc.ParentID = ID(v)
		case 5:
			var f FieldDef
			err = d.Message(&f)
			desc.Fields = append(desc.Fields, f)
		case 6:
			var pk string
			pk, err = d.Text()
			desc.PrimaryKey = append(desc.PrimaryKey, pk)
		case 7:
			i, err = d.Varint()
			desc.ShardKeySize = int(i)
		case 8:
			desc.TTL.Value, err = d.Varint()
		case 9:
			v, err = d.Uvarint()
			desc.TTL.Unit = TimeUnit(v)
		case 10:
			err = d.Message(&desc.Limits)
		case 11:
			v, err = d.Uvarint()
			desc.Children = append(desc.Children, ID(v))
		case 12:
			var idx IndexDescriptor
			err = d.Message(&idx)
			desc.Indexes = append(desc.Indexes, idx)
		case 13:
			v, err = d.Uvarint()
			desc.Regions = append(desc.Regions, RegionID(v))
		case 14:
			v, err = d.Uvarint()
			desc.SeqNum = SeqNum(v)
		case 15:
			desc.Version, err = d.Uvarint()
		case 16:
			v, err = d.Uvarint()
			desc.NextIndexID = IndexID(v)
		case 17:
			desc.Description, err = d.Text()
		default:
			err = d.Skip()
		}
		if err != nil {
			return err
		}
	}
}

// MarshalTo implements protoutil.Message.
func (c *Change) MarshalTo(e *protoutil.Encoder) {
	e.Uvarint(1, uint64(c.Type))
	e.Uvarint(2, uint64(c.SeqNum))
	e.Text(3, c.Namespace)
	if c.Region != nil {
		e.Message(4, c.Region)
	}
	if c.Table != nil {
		e.Message(5, c.Table)
	}
	e.Uvarint(6, uint64(c.TableID))
	e.Bool(7, c.Cascade)
	if c.Index != nil {
		e.Message(8, c.Index)
	}
	e.Text(9, c.IndexName)
	e.Uvarint(10, uint64(c.Status))
	if c.Limits != nil {
		e.Message(11, c.Limits)
	}
}

// UnmarshalFrom implements protoutil.Message.
func (c *Change) UnmarshalFrom(d *protoutil.Decoder) error {
	*c = Change{}
	for {
		ok, err := d.Next()
		if err != nil || !ok {
			return err
		}
		var v uint64
		switch d.Field() {
		case 1:
			v, err = d.Uvarint()
			c.Type = ChangeType(v)
		case 2:
			v, err = d.Uvarint()
			c.SeqNum = SeqNum(v)
		case 3:
			c.Namespace, err = d.Text()
		case 4:
			c.Region = &Region{}
			err = d.Message(c.Region)
		case 5:
			c.Table = &TableDescriptor{}
			err = d.Message(c.Table)
		case 6:
			v, err = d.Uvarint()
			c.TableID = ID(v)
		case 7:
			c.Cascade, err = d.Bool()
		case 8:
			c.Index = &IndexDescriptor{}
			err = d.Message(c.Index)
		case 9:
			c.IndexName, err = d.Text()
		case 10:
			v, err = d.Uvarint()
			c.Status = IndexStatus(v)
		case 11:
			c.Limits = &Limits{}
			err = d.Message(c.Limits)
		default:
			err = d.Skip()
		}
		if err != nil {
			return err
		}
	}
}

// MarshalTo implements protoutil.Message.
func (s *Snapshot) MarshalTo(e *protoutil.Encoder) {
	e.RawBytes(1, s.CatalogID[:])
	e.Uvarint(2, uint64(s.SeqNum))
	e.Uvarint(3, uint64(s.NextID))
	e.Uvarint(4, uint64(s.NextRegion))
	for _, ns := range s.Namespaces {
		e.RawBytes(5, []byte(ns))
	}
	for i := range s.Regions {
		e.Message(6, &s.Regions[i])
	}
	for i := range s.Tables {
		e.Message(7, &s.Tables[i])
	}
}

// UnmarshalFrom implements protoutil.Message.
func (s *Snapshot) UnmarshalFrom(d *protoutil.Decoder) error {
	*s = Snapshot{}
	for {
		ok, err := d.Next()
		if err != nil || !ok {
			return err
		}
		var v uint64
		switch d.Field() {
		case 1:
			var b []byte
			if b, err = d.RawBytes(); err == nil {
				s.CatalogID, err = uuid.FromBytes(b)
			}
		case 2:
			v, err = d.Uvarint()
			s.SeqNum = SeqNum(v)
		case 3:
			v, err = d.Uvarint()
			s.NextID = ID(v)
		case 4:
			v, err = d.Uvarint()
			s.NextRegion = RegionID(v)
		case 5:
			var ns string
			ns, err = d.Text()
			s.Namespaces = append(s.Namespaces, ns)
		case 6:
			var r Region
			err = d.Message(&r)
			s.Regions = append(s.Regions, r)
		case 7:
			var t TableDescriptor
			err = d.Message(&t)
			s.Tables = append(s.Tables, t)
		default:
			err = d.Skip()
		}
		if err != nil {
			return err
		}
	}
}
