// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package catalog

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/logtags"
	"github.com/cockroachdb/tablemeta/pkg/catalog/descpb"
	"github.com/cockroachdb/tablemeta/pkg/util/log"
)

// Source supplies the changes and snapshots of the catalog a Follower
// replicates.
type Source interface {
	// ChangesSince returns the changes following seq. It returns an error
	// marked ErrStaleMetadataVersion when they are no longer available.
	ChangesSince(ctx context.Context, seq descpb.SeqNum) ([]*descpb.Change, error)
	// Snapshot returns the complete state of the catalog.
	Snapshot(ctx context.Context) (*descpb.Snapshot, error)
}

type localSource struct {
	c *Catalog
}

// NewLocalSource returns a Source reading from a catalog in the same
// process.
func NewLocalSource(c *Catalog) Source {
	return localSource{c: c}
}

func (s localSource) ChangesSince(
	_ context.Context, seq descpb.SeqNum,
) ([]*descpb.Change, error) {
	return s.c.ChangesSince(seq)
}

func (s localSource) Snapshot(context.Context) (*descpb.Snapshot, error) {
	return s.c.CurrentSnapshot(), nil
}

// ChangeFunc is called for every table a sync created, modified or removed.
// seq is the table's new sequence number, or the catalog's sequence number
// for removed tables, so that caches can be validated with it.
type ChangeFunc func(ctx context.Context, id descpb.ID, seq descpb.SeqNum)

// Follower keeps a catalog in step with a Source. It applies changes as
// they come and falls back to loading a snapshot when the changes it needs
// were pruned or do not apply.
type Follower struct {
	cat      *Catalog
	src      Source
	onChange ChangeFunc

	// recoveryLog limits the warnings about changes that do not apply.
	recoveryLog *log.EveryN
}

// NewFollower returns a follower replicating src into cat. onChange may be
// nil.
func NewFollower(cat *Catalog, src Source, onChange ChangeFunc) *Follower {
	return &Follower{cat: cat, src: src, onChange: onChange, recoveryLog: log.Every(10 * time.Second)}
}

// Sync brings the catalog up to date with the source. Errors applying
// changes are recovered by loading a snapshot; only a failure to fetch or
// load the snapshot is returned.
func (f *Follower) Sync(ctx context.Context) error {
	ctx = logtags.AddTag(ctx, "follower", f.cat.ID().String())
	before := f.cat.tableSeqNums()
	if err := f.sync(ctx); err != nil {
		return err
	}
	f.notify(ctx, before)
	return nil
}

func (f *Follower) sync(ctx context.Context) error {
	changes, err := f.src.ChangesSince(ctx, f.cat.SeqNum())
	if err != nil {
		if !errors.Is(err, ErrStaleMetadataVersion) {
			return err
		}
		log.Infof(ctx, "%v; loading a snapshot", err)
		return f.loadSnapshot(ctx)
	}
	for _, ch := range changes {
		res, err := f.cat.ApplyChange(ctx, ch)
		if res == NeedsSnapshot {
			if f.recoveryLog.ShouldLog() {
				log.Warningf(ctx, "%v; loading a snapshot", err)
			} else {
				log.VEventf(ctx, 1, "%v; loading a snapshot", err)
			}
			return f.loadSnapshot(ctx)
		}
	}
	return nil
}

func (f *Follower) loadSnapshot(ctx context.Context) error {
	snap, err := f.src.Snapshot(ctx)
	if err != nil {
		return errors.Wrap(err, "fetching snapshot")
	}
	return f.cat.LoadSnapshot(ctx, snap)
}

func (f *Follower) notify(ctx context.Context, before map[descpb.ID]descpb.SeqNum) {
	if f.onChange == nil {
		return
	}
	after := f.cat.tableSeqNums()
	for id, seq := range after {
		if old, ok := before[id]; !ok || old != seq {
			f.onChange(ctx, id, seq)
		}
	}
	seq := f.cat.SeqNum()
	for id := range before {
		if _, ok := after[id]; !ok {
			f.onChange(ctx, id, seq)
		}
	}
}
