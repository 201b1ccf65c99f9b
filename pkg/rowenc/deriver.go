// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package rowenc

import (
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/tablemeta/pkg/catalog/descpb"
	"github.com/cockroachdb/tablemeta/pkg/datum"
	"github.com/cockroachdb/tablemeta/pkg/rowenc/keyside"
	"github.com/cockroachdb/tablemeta/pkg/util/encoding"
	humanize "github.com/dustin/go-humanize"
)

// Errors returned while deriving index keys.
var (
	ErrInvalidIndexDefinition = errors.New("invalid index definition")
	ErrDuplicateIndexKey      = errors.New("duplicate index key in row")
	ErrKeySizeLimitExceeded   = errors.New("index key size limit exceeded")
	ErrIndexKeyCountExceeded  = errors.New("too many index keys for one row")
)

// DefaultMaxIndexKeysPerRow bounds the tuples one row may produce for one
// index when the config does not set a limit.
const DefaultMaxIndexKeysPerRow = 10000

// DeriverConfig configures an IndexKeyDeriver.
type DeriverConfig struct {
	// MaxIndexKeysPerRow bounds the tuples one row may produce. Zero means
	// DefaultMaxIndexKeysPerRow.
	MaxIndexKeysPerRow int
}

// IndexTuple is one index entry derived from a row: a value per indexed
// path and its key encoding.
type IndexTuple struct {
	Values []datum.Datum
	// Key is the encoding of Values only, without table, index or primary
	// key bytes.
	Key []byte
}

// ResolveIndex checks that every path of idx resolves against the table's
// row type to an indexable type and that the multi-key paths share one
// source. It returns a copy of idx with the field types filled in. A field
// that already carries a type must match the resolved one.
func ResolveIndex(
	table *descpb.TableDescriptor, idx *descpb.IndexDescriptor,
) (*descpb.IndexDescriptor, error) {
	_, res, err := resolveIndex(table, idx)
	return res, err
}

func resolveIndex(
	table *descpb.TableDescriptor, idx *descpb.IndexDescriptor,
) ([]resolvedPath, *descpb.IndexDescriptor, error) {
	if idx.Name == "" {
		return nil, nil, errors.Wrap(ErrInvalidIndexDefinition, "empty index name")
	}
	if len(idx.Fields) == 0 {
		return nil, nil, errors.Wrapf(ErrInvalidIndexDefinition, "index %q has no fields", idx.Name)
	}
	rowType := table.RowType()
	out := idx.Clone()
	paths := make([]resolvedPath, len(idx.Fields))
	seen := make(map[string]struct{}, len(idx.Fields))
	for i := range out.Fields {
		f := &out.Fields[i]
		p, err := ParsePath(f.Path)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "index %q", idx.Name)
		}
		key := strings.ToLower(p.String())
		if _, ok := seen[key]; ok {
			return nil, nil, errors.Wrapf(ErrInvalidIndexDefinition,
				"index %q: path %q appears twice", idx.Name, f.Path)
		}
		seen[key] = struct{}{}
		rp, err := resolvePath(rowType, p)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "index %q", idx.Name)
		}
		if f.Type != nil && !f.Type.Equal(rp.typ) {
			return nil, nil, errors.Wrapf(ErrInvalidIndexDefinition,
				"index %q: path %q has type %s, not %s", idx.Name, f.Path, rp.typ, f.Type)
		}
		f.Type = rp.typ
		if f.Direction != encoding.Ascending && f.Direction != encoding.Descending {
			return nil, nil, errors.Wrapf(ErrInvalidIndexDefinition,
				"index %q: invalid direction for %q", idx.Name, f.Path)
		}
		paths[i] = rp
	}
	driver := longestChain(paths)
	for i := range paths {
		if !paths[i].isPrefixOf(&paths[driver]) {
			return nil, nil, errors.WithHint(
				errors.Wrapf(ErrInvalidIndexDefinition,
					"index %q: paths %q and %q select independent multi-key values",
					idx.Name, idx.Fields[i].Path, idx.Fields[driver].Path),
				"multi-key paths of one index must walk the same array or map")
		}
	}
	return paths, out, nil
}

func longestChain(paths []resolvedPath) int {
	driver := 0
	for i := range paths {
		if len(paths[i].sources) > len(paths[driver].sources) {
			driver = i
		}
	}
	return driver
}

// IndexKeyDeriver produces the index tuples of rows for one index.
type IndexKeyDeriver struct {
	index   *descpb.IndexDescriptor
	paths   []resolvedPath
	driver  int
	dirs    []encoding.Direction
	maxKeys int
	// keySize bounds len(IndexTuple.Key); zero means unbounded.
	keySize int
}

// NewIndexKeyDeriver validates idx against the table and returns a deriver
// for it.
func NewIndexKeyDeriver(
	table *descpb.TableDescriptor, idx *descpb.IndexDescriptor, cfg DeriverConfig,
) (*IndexKeyDeriver, error) {
	paths, resolved, err := resolveIndex(table, idx)
	if err != nil {
		return nil, err
	}
	d := &IndexKeyDeriver{
		index:   resolved,
		paths:   paths,
		driver:  longestChain(paths),
		dirs:    resolved.Directions(),
		maxKeys: cfg.MaxIndexKeysPerRow,
		keySize: table.Limits.IndexKeySize,
	}
	if d.maxKeys <= 0 {
		d.maxKeys = DefaultMaxIndexKeysPerRow
	}
	return d, nil
}

// Index returns the index with its field types resolved.
func (d *IndexKeyDeriver) Index() *descpb.IndexDescriptor { return d.index }

// binding selects one element of a multi-key container. A placeholder
// binding (idx < 0) stands for a container that is absent, null or empty,
// and every value selected through it is fill.
type binding struct {
	idx  int
	fill datum.Datum
}

// Derive returns the index tuples of row in enumeration order: element order
// for arrays and key order for maps, nested multi-key steps depth first.
// A row producing no multi-key positions still produces one tuple, holding
// EMPTY or NULL for the multi-key components. Tuples with a NULL or EMPTY
// component are dropped for indexes that do not index nulls. Identical
// tuples are collapsed, or rejected with ErrDuplicateIndexKey on unique
// indexes.
func (d *IndexKeyDeriver) Derive(row *datum.DRecord) ([]IndexTuple, error) {
	var positions [][]binding
	bound := make([]binding, len(d.paths[d.driver].sources))
	if err := d.expand(row, 0, bound, &positions); err != nil {
		return nil, err
	}

	tuples := make([]IndexTuple, 0, len(positions))
	seen := make(map[string]struct{}, len(positions))
	for _, pos := range positions {
		vals := make([]datum.Datum, len(d.paths))
		hasNull := false
		for i := range d.paths {
			v, err := d.eval(row, &d.paths[i], len(d.paths[i].steps), pos)
			if err != nil {
				return nil, err
			}
			vals[i] = v
			hasNull = hasNull || datum.IsNull(v) || datum.IsEmpty(v)
		}
		if hasNull && !d.index.IndexNulls {
			continue
		}
		key, err := keyside.EncodeTuple(nil, vals, d.dirs)
		if err != nil {
			return nil, errors.Wrapf(err, "index %q", d.index.Name)
		}
		if d.keySize > 0 && len(key) > d.keySize {
			return nil, errors.Wrapf(ErrKeySizeLimitExceeded,
				"index %q: key of %s exceeds the limit of %s", d.index.Name,
				humanize.IBytes(uint64(len(key))), humanize.IBytes(uint64(d.keySize)))
		}
		if _, ok := seen[string(key)]; ok {
			if d.index.Unique {
				return nil, errors.Wrapf(ErrDuplicateIndexKey,
					"index %q: row produces %s more than once", d.index.Name, formatTuple(vals))
			}
			continue
		}
		seen[string(key)] = struct{}{}
		tuples = append(tuples, IndexTuple{Values: vals, Key: key})
	}
	return tuples, nil
}

// expand enumerates the positions of the driving path's multi-key steps
// from level on.
func (d *IndexKeyDeriver) expand(
	row *datum.DRecord, level int, bound []binding, out *[][]binding,
) error {
	driver := &d.paths[d.driver]
	if level == len(bound) {
		if len(*out) >= d.maxKeys {
			return errors.Wrapf(ErrIndexKeyCountExceeded,
				"index %q: row produces more than %d keys", d.index.Name, d.maxKeys)
		}
		*out = append(*out, append([]binding(nil), bound...))
		return nil
	}
	step := driver.multi[level]
	container, err := d.eval(row, driver, step, bound)
	if err != nil {
		return err
	}
	n := 0
	switch c := container.(type) {
	case *datum.DArray:
		n = len(c.Elems)
	case *datum.DMap:
		n = len(c.Entries)
	}
	if n == 0 {
		fill := datum.DEmpty
		if datum.IsNull(container) {
			fill = datum.DNull
		}
		for i := level; i < len(bound); i++ {
			bound[i] = binding{idx: -1, fill: fill}
		}
		return d.expand(row, len(bound), bound, out)
	}
	for i := 0; i < n; i++ {
		bound[level] = binding{idx: i}
		if err := d.expand(row, level+1, bound, out); err != nil {
			return err
		}
	}
	return nil
}

// eval walks the first upto steps of p through row, taking the element of
// each multi-key step from bound.
func (d *IndexKeyDeriver) eval(
	row *datum.DRecord, p *resolvedPath, upto int, bound []binding,
) (datum.Datum, error) {
	var cur datum.Datum = row
	level := 0
	for _, s := range p.steps[:upto] {
		if datum.IsNull(cur) || datum.IsEmpty(cur) {
			return cur, nil
		}
		if s.Kind == StepField {
			var v datum.Datum
			var ok bool
			switch c := cur.(type) {
			case *datum.DRecord:
				v, ok = c.Get(s.Name)
			case *datum.DMap:
				v, ok = c.Get(s.Name)
			default:
				return nil, errors.AssertionFailedf("cannot select %q from %s", s.Name, cur.ResolvedType())
			}
			if !ok {
				return datum.DEmpty, nil
			}
			cur = v
			continue
		}
		b := bound[level]
		level++
		if b.idx < 0 {
			return b.fill, nil
		}
		switch c := cur.(type) {
		case *datum.DArray:
			cur = c.Elems[b.idx]
		case *datum.DMap:
			if s.Kind == StepKeys {
				cur = datum.DString(c.Entries[b.idx].Key)
			} else {
				cur = c.Entries[b.idx].Value
			}
		default:
			return nil, errors.AssertionFailedf("path %s: unexpected %s", p.steps, cur.ResolvedType())
		}
	}
	return cur, nil
}

func formatTuple(vals []datum.Datum) string {
	var b strings.Builder
	b.WriteByte('(')
	for i, v := range vals {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(v.String())
	}
	b.WriteByte(')')
	return b.String()
}
