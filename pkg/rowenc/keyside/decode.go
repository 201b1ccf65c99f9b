// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package keyside

import (
	"math"
	"time"

	"github.com/cockroachdb/apd/v3"
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/tablemeta/pkg/datum"
	"github.com/cockroachdb/tablemeta/pkg/types"
	"github.com/cockroachdb/tablemeta/pkg/util/encoding"
)

// Decode decodes a value encoded by Encode from a key.
func Decode(
	valType *types.T, key []byte, dir encoding.Direction,
) (_ datum.Datum, remainingKey []byte, _ error) {
	if (dir != encoding.Ascending) && (dir != encoding.Descending) {
		return nil, nil, errors.Errorf("invalid direction: %d", dir)
	}
	var isNull, isEmpty bool
	if key, isNull = encoding.DecodeIfNull(key); isNull {
		return datum.DNull, key, nil
	}
	if key, isEmpty = encoding.DecodeIfEmpty(key); isEmpty {
		return datum.DEmpty, key, nil
	}
	var rkey []byte
	var err error

	switch valType.Family() {
	case types.BoolFamily:
		var i int64
		if dir == encoding.Ascending {
			rkey, i, err = encoding.DecodeVarintAscending(key)
		} else {
			rkey, i, err = encoding.DecodeVarintDescending(key)
		}
		return datum.DBool(i != 0), rkey, err
	case types.IntFamily:
		var i int64
		if dir == encoding.Ascending {
			rkey, i, err = encoding.DecodeVarintAscending(key)
		} else {
			rkey, i, err = encoding.DecodeVarintDescending(key)
		}
		if err == nil && (i < math.MinInt32 || i > math.MaxInt32) {
			err = errors.Errorf("%d out of range for %s", i, valType)
		}
		return datum.DInt(i), rkey, err
	case types.LongFamily:
		var i int64
		if dir == encoding.Ascending {
			rkey, i, err = encoding.DecodeVarintAscending(key)
		} else {
			rkey, i, err = encoding.DecodeVarintDescending(key)
		}
		return datum.DLong(i), rkey, err
	case types.FloatFamily, types.DoubleFamily:
		var f float64
		if dir == encoding.Ascending {
			rkey, f, err = encoding.DecodeFloatAscending(key)
		} else {
			rkey, f, err = encoding.DecodeFloatDescending(key)
		}
		if valType.Family() == types.FloatFamily {
			return datum.DFloat(f), rkey, err
		}
		return datum.DDouble(f), rkey, err
	case types.NumberFamily:
		var d apd.Decimal
		if dir == encoding.Ascending {
			rkey, d, err = encoding.DecodeDecimalAscending(key)
		} else {
			rkey, d, err = encoding.DecodeDecimalDescending(key)
		}
		return &datum.DDecimal{Decimal: d}, rkey, err
	case types.BinaryFamily, types.FixedBinaryFamily, types.StringFamily:
		var r string
		if dir == encoding.Ascending {
			rkey, r, err = encoding.DecodeStringAscending(key)
		} else {
			rkey, r, err = encoding.DecodeStringDescending(key)
		}
		switch valType.Family() {
		case types.BinaryFamily:
			return datum.DBytes(r), rkey, err
		case types.FixedBinaryFamily:
			return datum.DFixedBytes(r), rkey, err
		}
		return datum.DString(r), rkey, err
	case types.EnumFamily:
		var o uint64
		if dir == encoding.Ascending {
			rkey, o, err = encoding.DecodeUvarintAscending(key)
		} else {
			rkey, o, err = encoding.DecodeUvarintDescending(key)
		}
		if err == nil && o >= uint64(len(valType.EnumValues())) {
			err = errors.Errorf("ordinal %d out of range for %s", o, valType)
		}
		return datum.DEnum{Typ: valType, Ordinal: int(o)}, rkey, err
	case types.TimestampFamily:
		var t time.Time
		if dir == encoding.Ascending {
			rkey, t, err = encoding.DecodeTimeAscending(key)
		} else {
			rkey, t, err = encoding.DecodeTimeDescending(key)
		}
		return datum.DTimestamp{Time: t, Precision: valType.Precision()}, rkey, err
	}
	return nil, nil, errors.Wrapf(ErrUnsupportedType, "%s", valType)
}

// Skip returns key with the value at its start removed, without decoding it.
func Skip(key []byte, dir encoding.Direction) ([]byte, error) {
	n, err := encoding.PeekLength(key, dir)
	if err != nil {
		return nil, err
	}
	return key[n:], nil
}
