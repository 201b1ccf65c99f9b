// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package catalog

import (
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/tablemeta/pkg/catalog/descpb"
)

// EmptyChangeListSeqNum is returned by GetFirstChangeSeqNum when the change
// list holds no entries.
const EmptyChangeListSeqNum descpb.SeqNum = 0

// changeList holds the retained changes in strictly increasing, gap free
// sequence number order. The last entry's sequence number is the catalog's.
type changeList struct {
	entries []*descpb.Change
}

func (l *changeList) first() descpb.SeqNum {
	if len(l.entries) == 0 {
		return EmptyChangeListSeqNum
	}
	return l.entries[0].SeqNum
}

func (l *changeList) append(ch *descpb.Change) {
	if n := len(l.entries); n > 0 && l.entries[n-1].SeqNum+1 != ch.SeqNum {
		panic(errors.AssertionFailedf("change %s does not follow %d", ch, l.entries[n-1].SeqNum))
	}
	l.entries = append(l.entries, ch)
}

func (l *changeList) reset() {
	l.entries = nil
}

// since returns clones of the changes following seq. current is the
// catalog's sequence number.
func (l *changeList) since(seq, current descpb.SeqNum) ([]*descpb.Change, error) {
	if seq == current {
		return nil, nil
	}
	if seq > current {
		return nil, errors.Newf("sequence number %d is ahead of the catalog at %d", seq, current)
	}
	if len(l.entries) == 0 || seq+1 < l.first() {
		return nil, errors.Wrapf(ErrStaleMetadataVersion,
			"changes after %d were pruned, the oldest retained change is %d", seq, l.first())
	}
	start := int(seq + 1 - l.first())
	out := make([]*descpb.Change, 0, len(l.entries)-start)
	for _, ch := range l.entries[start:] {
		out = append(out, ch.Clone())
	}
	return out, nil
}

// prune removes the oldest entries whose sequence number is below through,
// keeping at least keep entries and always the newest one. It returns the
// number of removed entries.
func (l *changeList) prune(through descpb.SeqNum, keep int) int {
	n := 0
	for n < len(l.entries) && l.entries[n].SeqNum < through {
		n++
	}
	if keep < 1 {
		keep = 1
	}
	if max := len(l.entries) - keep; n > max {
		n = max
	}
	if n <= 0 {
		return 0
	}
	l.entries = append([]*descpb.Change(nil), l.entries[n:]...)
	return n
}
