// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package datum

import (
	"math"
	"testing"
	"time"

	"github.com/cockroachdb/tablemeta/pkg/types"
	"github.com/stretchr/testify/require"
)

func mustDecimal(t *testing.T, s string) *DDecimal {
	d, err := NewDDecimal(s)
	require.NoError(t, err)
	return d
}

func TestCompareOrdering(t *testing.T) {
	// Each group lists values in strictly increasing order.
	groups := [][]Datum{
		{DBool(false), DBool(true), DEmpty, DNull},
		{DInt(math.MinInt32), DInt(-1), DInt(0), DInt(math.MaxInt32), DEmpty, DNull},
		{DLong(math.MinInt64), DLong(0), DLong(math.MaxInt64), DEmpty, DNull},
		{DDouble(math.NaN()), DDouble(math.Inf(-1)), DDouble(-1.5), DDouble(0), DDouble(math.Inf(1))},
		{DFloat(-2), DFloat(0.5), DFloat(3)},
		{mustDecimal(t, "NaN"), mustDecimal(t, "-Infinity"), mustDecimal(t, "-10"), mustDecimal(t, "0"),
			mustDecimal(t, "0.001"), mustDecimal(t, "1e10"), mustDecimal(t, "Infinity")},
		{DString(""), DString("a"), DString("a\x00"), DString("b"), DEmpty, DNull},
		{DBytes(""), DBytes("\x00"), DBytes("\xff")},
	}
	for _, g := range groups {
		for i := range g {
			for j := range g {
				exp := 0
				if i < j {
					exp = -1
				} else if i > j {
					exp = 1
				}
				require.Equal(t, exp, g[i].Compare(g[j]), "%s vs %s", g[i], g[j])
			}
		}
	}

	// Decimals compare by value.
	require.Equal(t, 0, mustDecimal(t, "1.0").Compare(mustDecimal(t, "1.00")))
	// Different families compare by family.
	require.Equal(t, -1, DBool(true).Compare(DInt(0)))
	require.Equal(t, 1, DString("a").Compare(DLong(5)))
}

func TestContainers(t *testing.T) {
	typ := types.MustParse("MAP(INTEGER)")
	m := NewDMap(typ, map[string]Datum{"b": DInt(2), "a": DInt(1), "c": DNull})
	require.Equal(t, `{"a": 1, "b": 2, "c": NULL}`, m.String())
	v, ok := m.Get("b")
	require.True(t, ok)
	require.Equal(t, DInt(2), v)
	_, ok = m.Get("z")
	require.False(t, ok)

	rec := &DRecord{Typ: types.MustParse("RECORD(a INTEGER, b STRING)")}
	rec.Set("a", DInt(1))
	rec.Set("B", DString("x"))
	rec.Set("A", DInt(2))
	require.Equal(t, `(a: 2, B: "x")`, rec.String())
	c := rec.Clone()
	c.Delete("a")
	_, ok = c.Get("a")
	require.False(t, ok)
	v, ok = rec.Get("a")
	require.True(t, ok)
	require.Equal(t, DInt(2), v)
}

func TestTimestampPrecision(t *testing.T) {
	ts := time.Date(2024, 5, 6, 7, 8, 9, 123456789, time.FixedZone("x", 3600))
	d := MakeDTimestamp(ts, 3)
	require.Equal(t, 123000000, d.Time.Nanosecond())
	require.Equal(t, time.UTC, d.Time.Location())
	require.Equal(t, "2024-05-06T06:08:09.123Z", d.String())
	require.Equal(t, "TIMESTAMP(3)", d.ResolvedType().String())
	require.Equal(t, "2024-05-06T06:08:09Z", MakeDTimestamp(ts, 0).String())
}

func TestParseJSON(t *testing.T) {
	typ := types.MustParse(
		"RECORD(id LONG, name STRING, tags ARRAY(STRING), attrs MAP(INTEGER), " +
			"price NUMBER, kind ENUM(a, b), blob BINARY, at TIMESTAMP(3), doc JSON, note STRING)")
	d, err := ParseJSON(typ, []byte(`{
		"id": 7, "name": "x", "tags": ["p", null], "attrs": {"k": 1},
		"price": 12.50, "kind": "b", "blob": "AAE=", "at": "2024-01-02T03:04:05.6789Z",
		"doc": {"z": [1, 2]}, "note": null
	}`))
	require.NoError(t, err)
	rec := d.(*DRecord)

	get := func(name string) Datum {
		v, ok := rec.Get(name)
		require.True(t, ok, name)
		return v
	}
	require.Equal(t, DLong(7), get("id"))
	require.Equal(t, `["p", NULL]`, get("tags").String())
	require.Equal(t, "12.50", get("price").String())
	require.Equal(t, "b", get("kind").String())
	require.Equal(t, DBytes("\x00\x01"), get("blob"))
	require.Equal(t, "2024-01-02T03:04:05.678Z", get("at").String())
	require.Equal(t, DJSON(`{"z":[1,2]}`), get("doc"))
	require.True(t, IsNull(get("note")))

	// Missing fields are absent, not null.
	d, err = ParseJSON(typ, []byte(`{"id": 1}`))
	require.NoError(t, err)
	_, ok := d.(*DRecord).Get("name")
	require.False(t, ok)

	out, err := MarshalJSON(d)
	require.NoError(t, err)
	require.JSONEq(t, `{"id": 1}`, string(out))

	for _, bad := range []string{
		`{"id": "x"}`, `{"kind": "c"}`, `{"bogus": 1}`, `{"tags": {}}`, `[1]`,
	} {
		_, err := ParseJSON(typ, []byte(bad))
		require.Error(t, err, bad)
	}
	_, err = ParseJSON(types.Int, []byte(`4294967296`))
	require.Error(t, err)
	_, err = ParseJSON(types.MakeFixedBinary(3), []byte(`"AAE="`))
	require.Error(t, err)
}

func TestMarshalJSONRoundTrip(t *testing.T) {
	typ := types.MustParse("RECORD(a ARRAY(DOUBLE), m MAP(BOOLEAN), n NUMBER)")
	in := `{"a": [1.5, -2], "m": {"x": true, "y": null}, "n": 3.25}`
	d, err := ParseJSON(typ, []byte(in))
	require.NoError(t, err)
	out, err := MarshalJSON(d)
	require.NoError(t, err)
	require.JSONEq(t, in, string(out))
}
