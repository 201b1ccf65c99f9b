// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package keyside

import (
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/tablemeta/pkg/datum"
	"github.com/cockroachdb/tablemeta/pkg/util/encoding"
)

// ErrUnsupportedType is returned when a value of a non-indexable family is
// encoded into or decoded from a key.
var ErrUnsupportedType = errors.New("type cannot be used in a key")

// Encode encodes a value in a form suitable for use in a key. The encoding
// preserves ordering: for two values of the same family, bytes.Compare on
// their encodings has the sign of Datum.Compare (reversed for Descending).
// DEmpty and DNull encode as the corresponding sentinels.
func Encode(b []byte, val datum.Datum, dir encoding.Direction) ([]byte, error) {
	if (dir != encoding.Ascending) && (dir != encoding.Descending) {
		return nil, errors.Errorf("invalid direction: %d", dir)
	}
	asc := dir == encoding.Ascending

	if datum.IsNull(val) {
		if asc {
			return encoding.EncodeNullAscending(b), nil
		}
		return encoding.EncodeNullDescending(b), nil
	}
	if datum.IsEmpty(val) {
		if asc {
			return encoding.EncodeEmptyAscending(b), nil
		}
		return encoding.EncodeEmptyDescending(b), nil
	}

	switch t := val.(type) {
	case datum.DBool:
		var v int64
		if t {
			v = 1
		}
		if asc {
			return encoding.EncodeVarintAscending(b, v), nil
		}
		return encoding.EncodeVarintDescending(b, v), nil
	case datum.DInt:
		if asc {
			return encoding.EncodeVarintAscending(b, int64(t)), nil
		}
		return encoding.EncodeVarintDescending(b, int64(t)), nil
	case datum.DLong:
		if asc {
			return encoding.EncodeVarintAscending(b, int64(t)), nil
		}
		return encoding.EncodeVarintDescending(b, int64(t)), nil
	case datum.DFloat:
		if asc {
			return encoding.EncodeFloatAscending(b, float64(t)), nil
		}
		return encoding.EncodeFloatDescending(b, float64(t)), nil
	case datum.DDouble:
		if asc {
			return encoding.EncodeFloatAscending(b, float64(t)), nil
		}
		return encoding.EncodeFloatDescending(b, float64(t)), nil
	case *datum.DDecimal:
		if asc {
			return encoding.EncodeDecimalAscending(b, &t.Decimal), nil
		}
		return encoding.EncodeDecimalDescending(b, &t.Decimal), nil
	case datum.DBytes:
		if asc {
			return encoding.EncodeStringAscending(b, string(t)), nil
		}
		return encoding.EncodeStringDescending(b, string(t)), nil
	case datum.DFixedBytes:
		if asc {
			return encoding.EncodeStringAscending(b, string(t)), nil
		}
		return encoding.EncodeStringDescending(b, string(t)), nil
	case datum.DString:
		if asc {
			return encoding.EncodeStringAscending(b, string(t)), nil
		}
		return encoding.EncodeStringDescending(b, string(t)), nil
	case datum.DEnum:
		if asc {
			return encoding.EncodeUvarintAscending(b, uint64(t.Ordinal)), nil
		}
		return encoding.EncodeUvarintDescending(b, uint64(t.Ordinal)), nil
	case datum.DTimestamp:
		if asc {
			return encoding.EncodeTimeAscending(b, t.Time), nil
		}
		return encoding.EncodeTimeDescending(b, t.Time), nil
	}
	return nil, errors.Wrapf(ErrUnsupportedType, "%s", val.ResolvedType())
}

// EncodeTuple encodes vals one after another, each in the direction at the
// same position of dirs.
func EncodeTuple(b []byte, vals []datum.Datum, dirs []encoding.Direction) ([]byte, error) {
	if len(vals) != len(dirs) {
		return nil, errors.AssertionFailedf("%d values but %d directions", len(vals), len(dirs))
	}
	var err error
	for i, v := range vals {
		if b, err = Encode(b, v, dirs[i]); err != nil {
			return nil, err
		}
	}
	return b, nil
}
