// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package descpb

import (
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/tablemeta/pkg/types"
	"github.com/cockroachdb/tablemeta/pkg/util/encoding"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// The JSON form of a table is meant for humans and external tooling. It
// keeps field order, defaults, identity parameters, regions and the index
// null and unique flags. It does not carry index status: indexes decoded
// from JSON are TRANSIENT.

type tableJSON struct {
	Namespace    string      `json:"namespace"`
	Name         string      `json:"name"`
	ID           ID          `json:"id"`
	ParentID     ID          `json:"parentId,omitempty"`
	Fields       []fieldJSON `json:"fields"`
	PrimaryKey   []string    `json:"primaryKey"`
	ShardKeySize int         `json:"shardKeySize,omitempty"`
	TTL          *ttlJSON    `json:"ttl,omitempty"`
	Limits       *limitsJSON `json:"limits,omitempty"`
	Children     []ID        `json:"children,omitempty"`
	Indexes      []indexJSON `json:"indexes,omitempty"`
	Regions      []RegionID  `json:"regions,omitempty"`
	SeqNum       SeqNum      `json:"seqNum"`
	Version      uint64      `json:"version,omitempty"`
	NextIndexID  IndexID     `json:"nextIndexId,omitempty"`
	Description  string      `json:"description,omitempty"`
}

type fieldJSON struct {
	Name     string              `json:"name"`
	Type     *types.T            `json:"type"`
	Nullable bool                `json:"nullable,omitempty"`
	Default  jsoniter.RawMessage `json:"default,omitempty"`
	Identity *IdentityParams     `json:"identity,omitempty"`
}

type ttlJSON struct {
	Value int64  `json:"value"`
	Unit  string `json:"unit"`
}

type limitsJSON struct {
	ReadUnits      int64 `json:"readUnits,omitempty"`
	WriteUnits     int64 `json:"writeUnits,omitempty"`
	StorageGB      int64 `json:"storageGB,omitempty"`
	MaxIndexes     int   `json:"maxIndexes,omitempty"`
	MaxChildTables int   `json:"maxChildTables,omitempty"`
	IndexKeySize   int   `json:"indexKeySize,omitempty"`
}

type indexJSON struct {
	Name        string           `json:"name"`
	ID          IndexID          `json:"id"`
	Fields      []indexFieldJSON `json:"fields"`
	IndexNulls  *bool            `json:"indexNulls,omitempty"`
	Unique      bool             `json:"unique,omitempty"`
	Description string           `json:"description,omitempty"`
}

type indexFieldJSON struct {
	Path      string   `json:"path"`
	Type      *types.T `json:"type,omitempty"`
	Direction string   `json:"direction,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (desc *TableDescriptor) MarshalJSON() ([]byte, error) {
	j := tableJSON{
		Namespace:    desc.Namespace,
		Name:         desc.Name,
		ID:           desc.ID,
		ParentID:     desc.ParentID,
		PrimaryKey:   desc.PrimaryKey,
		ShardKeySize: desc.ShardKeySize,
		Children:     desc.Children,
		Regions:      desc.Regions,
		SeqNum:       desc.SeqNum,
		Version:      desc.Version,
		NextIndexID:  desc.NextIndexID,
		Description:  desc.Description,
	}
	if desc.TTL.Value != 0 {
		j.TTL = &ttlJSON{Value: desc.TTL.Value, Unit: desc.TTL.Unit.String()}
	}
	if desc.Limits != (Limits{}) {
		l := limitsJSON(desc.Limits)
		j.Limits = &l
	}
	for _, f := range desc.Fields {
		fj := fieldJSON{Name: f.Name, Type: f.Type, Nullable: f.Nullable, Identity: f.Identity}
		if f.Default != "" {
			fj.Default = jsoniter.RawMessage(f.Default)
		}
		j.Fields = append(j.Fields, fj)
	}
	for i := range desc.Indexes {
		idx := &desc.Indexes[i]
		ij := indexJSON{Name: idx.Name, ID: idx.ID, Unique: idx.Unique, Description: idx.Description}
		if !idx.IndexNulls {
			f := false
			ij.IndexNulls = &f
		}
		for _, f := range idx.Fields {
			ij.Fields = append(ij.Fields, indexFieldJSON{
				Path: f.Path, Type: f.Type, Direction: f.Direction.String(),
			})
		}
		j.Indexes = append(j.Indexes, ij)
	}
	return json.Marshal(&j)
}

// UnmarshalJSON implements json.Unmarshaler. Indexes are TRANSIENT and
// IndexNulls defaults to true.
func (desc *TableDescriptor) UnmarshalJSON(data []byte) error {
	var j tableJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return errors.Wrap(err, "decoding table descriptor")
	}
	res := TableDescriptor{
		Namespace:    j.Namespace,
		Name:         j.Name,
		ID:           j.ID,
		ParentID:     j.ParentID,
		PrimaryKey:   j.PrimaryKey,
		ShardKeySize: j.ShardKeySize,
		Children:     j.Children,
		Regions:      j.Regions,
		SeqNum:       j.SeqNum,
		Version:      j.Version,
		NextIndexID:  j.NextIndexID,
		Description:  j.Description,
	}
	if j.TTL != nil {
		u, err := ParseTimeUnit(j.TTL.Unit)
		if err != nil {
			return err
		}
		res.TTL = TTL{Value: j.TTL.Value, Unit: u}
	}
	if j.Limits != nil {
		res.Limits = Limits(*j.Limits)
	}
	for _, fj := range j.Fields {
		if fj.Type == nil {
			return errors.Newf("field %q has no type", fj.Name)
		}
		res.Fields = append(res.Fields, FieldDef{
			Name: fj.Name, Type: fj.Type, Nullable: fj.Nullable,
			Default: string(fj.Default), Identity: fj.Identity,
		})
	}
	for _, ij := range j.Indexes {
		idx := IndexDescriptor{
			Name: ij.Name, ID: ij.ID, TableID: res.ID, IndexNulls: true,
			Unique: ij.Unique, Status: IndexStatusTransient, Description: ij.Description,
		}
		if ij.IndexNulls != nil {
			idx.IndexNulls = *ij.IndexNulls
		}
		for _, fj := range ij.Fields {
			dir := encoding.Ascending
			if fj.Direction != "" {
				var err error
				if dir, err = encoding.ParseDirection(fj.Direction); err != nil {
					return errors.Wrapf(err, "index %q", ij.Name)
				}
			}
			idx.Fields = append(idx.Fields, IndexField{Path: fj.Path, Type: fj.Type, Direction: dir})
		}
		res.Indexes = append(res.Indexes, idx)
	}
	*desc = res
	return nil
}
