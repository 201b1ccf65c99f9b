// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package keys builds the storage keys for table rows and index entries.
//
// Every key starts with the hierarchical identity of its table: one segment
// per table on the path from the top-level ancestor down to the table. A
// segment is a length byte L in [1, 5], L base-255 digits each stored as
// digit+1, and a 0x00 terminator, so content bytes are never zero and a
// table's prefix is a byte prefix of another table's prefix only when the
// first table is an ancestor of the second. The table's own data follows
// the identity as an ordered uvarint index ID, whose tag byte (>= 0x88) can
// never be mistaken for a segment length byte.
package keys

import (
	"bytes"
	"math"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/tablemeta/pkg/util/encoding"
)

// ErrMalformedIdentity is returned when an encoded table identity is
// truncated, unterminated or otherwise invalid.
var ErrMalformedIdentity = errors.New("malformed identity")

const (
	segmentTerminator = 0x00
	segmentBase       = 255
	maxSegmentDigits  = 5
)

// SystemPrefix starts the keys that belong to no table. Table keys start
// with a segment length byte in [1, 5], so the system span sorts before
// every table.
var SystemPrefix = []byte{0x00, 's', 'y', 's'}

// CatalogSnapshotKey stores the persisted catalog snapshot.
var CatalogSnapshotKey = MakeSystemKey("catalog-snapshot")

// MakeSystemKey returns the system key with the given suffix.
func MakeSystemKey(suffix string) []byte {
	return append(append([]byte(nil), SystemPrefix...), suffix...)
}

// EncodeTableID appends the segment encoding of id to b.
func EncodeTableID(b []byte, id uint32) []byte {
	var digits [maxSegmentDigits]byte
	n := maxSegmentDigits
	v := uint64(id)
	for {
		n--
		digits[n] = byte(v%segmentBase) + 1
		v /= segmentBase
		if v == 0 {
			break
		}
	}
	b = append(b, byte(maxSegmentDigits-n))
	b = append(b, digits[n:]...)
	return append(b, segmentTerminator)
}

// DecodeTableID decodes the segment at the start of b and returns the
// remainder of b.
func DecodeTableID(b []byte) ([]byte, uint32, error) {
	if len(b) == 0 {
		return nil, 0, errors.Wrap(ErrMalformedIdentity, "empty key")
	}
	l := int(b[0])
	if l < 1 || l > maxSegmentDigits {
		return nil, 0, errors.Wrapf(ErrMalformedIdentity, "invalid segment length %d", l)
	}
	if len(b) < l+2 {
		return nil, 0, errors.Wrapf(ErrMalformedIdentity, "truncated segment %x", b)
	}
	if b[l+1] != segmentTerminator {
		return nil, 0, errors.Wrapf(ErrMalformedIdentity, "missing terminator in %x", b[:l+2])
	}
	var v uint64
	for _, c := range b[1 : l+1] {
		if c == segmentTerminator {
			return nil, 0, errors.Wrapf(ErrMalformedIdentity, "zero content byte in %x", b[:l+2])
		}
		v = v*segmentBase + uint64(c-1)
	}
	if v > math.MaxUint32 || (l > 1 && b[1] == 1) {
		return nil, 0, errors.Wrapf(ErrMalformedIdentity, "non-canonical segment %x", b[:l+2])
	}
	return b[l+2:], uint32(v), nil
}

// MakeTablePrefix returns the key prefix of the table whose hierarchical
// identity is path, listed from the top-level ancestor down.
func MakeTablePrefix(path ...uint32) []byte {
	key := make([]byte, 0, len(path)*(maxSegmentDigits+2))
	for _, id := range path {
		key = EncodeTableID(key, id)
	}
	return key
}

// DecodeTablePrefix decodes every leading identity segment of key. It stops
// at the first byte that does not start a segment.
func DecodeTablePrefix(key []byte) (rest []byte, path []uint32, _ error) {
	for len(key) > 0 && key[0] >= 1 && key[0] <= maxSegmentDigits {
		var id uint32
		var err error
		key, id, err = DecodeTableID(key)
		if err != nil {
			return nil, nil, err
		}
		path = append(path, id)
	}
	if len(path) == 0 {
		return nil, nil, errors.Wrapf(ErrMalformedIdentity, "no table identity in %x", key)
	}
	return key, path, nil
}

// Compare compares the leading identity segments of a and b. It compares
// byte by byte until a terminator is reached in either input, treating the
// end of an input as a terminator. Segments that terminate at the same
// position are equal regardless of what follows; otherwise the input that
// still has content is greater. Bytes past the terminator are never
// examined.
func Compare(a, b []byte) int {
	for i := 0; ; i++ {
		ca, cb := byte(segmentTerminator), byte(segmentTerminator)
		if i < len(a) {
			ca = a[i]
		}
		if i < len(b) {
			cb = b[i]
		}
		switch {
		case ca == segmentTerminator && cb == segmentTerminator:
			return 0
		case ca == segmentTerminator:
			return -1
		case cb == segmentTerminator:
			return 1
		case ca < cb:
			return -1
		case ca > cb:
			return 1
		}
	}
}

// skipSegment returns b past its first terminator, or nil if b has none.
func skipSegment(b []byte) []byte {
	if i := bytes.IndexByte(b, segmentTerminator); i >= 0 {
		return b[i+1:]
	}
	return nil
}

// ComparePath compares the first depth identity segments of a and b with
// Compare.
func ComparePath(a, b []byte, depth int) int {
	for i := 0; i < depth; i++ {
		if c := Compare(a, b); c != 0 {
			return c
		}
		a, b = skipSegment(a), skipSegment(b)
	}
	return 0
}

// MakeIndexPrefix returns the key prefix of an index of the table whose
// prefix is tablePrefix.
func MakeIndexPrefix(tablePrefix []byte, indexID uint32) []byte {
	key := make([]byte, 0, len(tablePrefix)+9)
	key = append(key, tablePrefix...)
	return encoding.EncodeUvarintAscending(key, uint64(indexID))
}

// DecodeIndexPrefix strips the table identity and index ID off key.
func DecodeIndexPrefix(key []byte) (rest []byte, path []uint32, indexID uint32, _ error) {
	rest, path, err := DecodeTablePrefix(key)
	if err != nil {
		return nil, nil, 0, err
	}
	rest, id, err := encoding.DecodeUvarintAscending(rest)
	if err != nil {
		return nil, nil, 0, errors.Wrap(err, "decoding index id")
	}
	if id > math.MaxUint32 {
		return nil, nil, 0, errors.Errorf("index id %d out of range", id)
	}
	return rest, path, uint32(id), nil
}

// PrefixEnd determines the end key given key as a prefix, that is the
// key that sorts precisely behind all keys starting with prefix: "1" is
// added to the final byte and the carry propagated. An empty key returns
// the maximal key \xff\xff.
func PrefixEnd(key []byte) []byte {
	if len(key) == 0 {
		return []byte{0xff, 0xff}
	}
	end := append([]byte(nil), key...)
	for i := len(end) - 1; i >= 0; i-- {
		end[i] = end[i] + 1
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	// This statement will only be reached if the key is already a
	// maximal byte string (i.e. already \xff...).
	return key
}
