// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package rowenc

import (
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/tablemeta/pkg/types"
)

// StepKind is the kind of one step of an index path.
type StepKind int

const (
	// StepField selects a record member, or a single key of a map.
	StepField StepKind = iota
	// StepElems selects every element of an array: `name[]`.
	StepElems
	// StepKeys selects every key of a map: `name.keys()`.
	StepKeys
	// StepValues selects every value of a map: `name.values()`.
	StepValues
)

// MultiKey returns true for steps that select more than one value.
func (k StepKind) MultiKey() bool { return k != StepField }

// Step is one step of a Path.
type Step struct {
	Kind StepKind
	// Name is set for StepField.
	Name string
}

// Path is a parsed index path such as `a.b`, `tags[]` or `m.values()[]`.
type Path []Step

// ParsePath parses an index path. Steps are separated by dots; a name may be
// followed by any number of `[]`, and `keys()` and `values()` select the
// keys or values of the map addressed by the preceding steps.
func ParsePath(s string) (Path, error) {
	if s == "" {
		return nil, errors.Wrap(ErrInvalidIndexDefinition, "empty path")
	}
	var p Path
	for _, seg := range strings.Split(s, ".") {
		head := seg
		elems := 0
		if i := strings.IndexByte(seg, '['); i >= 0 {
			head = seg[:i]
			rest := seg[i:]
			for strings.HasPrefix(rest, "[]") {
				rest = rest[2:]
				elems++
			}
			if rest != "" {
				return nil, errors.Wrapf(ErrInvalidIndexDefinition, "path %q: unexpected %q", s, rest)
			}
		}
		switch {
		case head == "keys()":
			p = append(p, Step{Kind: StepKeys})
		case head == "values()":
			p = append(p, Step{Kind: StepValues})
		case head == "" || strings.ContainsAny(head, "()[]"):
			return nil, errors.Wrapf(ErrInvalidIndexDefinition, "path %q: invalid step %q", s, seg)
		default:
			p = append(p, Step{Kind: StepField, Name: head})
		}
		for ; elems > 0; elems-- {
			p = append(p, Step{Kind: StepElems})
		}
	}
	if p[0].Kind != StepField {
		return nil, errors.Wrapf(ErrInvalidIndexDefinition, "path %q must start with a field name", s)
	}
	return p, nil
}

// MultiKey returns true if the path selects more than one value per row.
func (p Path) MultiKey() bool {
	for _, s := range p {
		if s.Kind.MultiKey() {
			return true
		}
	}
	return false
}

// String formats the path in the form accepted by ParsePath.
func (p Path) String() string {
	var b strings.Builder
	for i, s := range p {
		switch s.Kind {
		case StepField:
			if i > 0 {
				b.WriteByte('.')
			}
			b.WriteString(s.Name)
		case StepElems:
			b.WriteString("[]")
		case StepKeys:
			b.WriteString(".keys()")
		case StepValues:
			b.WriteString(".values()")
		}
	}
	return b.String()
}

// resolvedPath is a path checked against a row type.
type resolvedPath struct {
	steps Path
	// typ is the type of the values the path selects.
	typ *types.T
	// sources identifies the container of each multi-key step, outermost
	// first. keys() and values() of one map share a source.
	sources []string
	// multi holds the index in steps of each multi-key step.
	multi []int
}

// resolvePath walks p through rowType.
func resolvePath(rowType *types.T, p Path) (resolvedPath, error) {
	res := resolvedPath{steps: p}
	cur := rowType
	var canon strings.Builder
	for i, s := range p {
		switch s.Kind {
		case StepField:
			switch cur.Family() {
			case types.RecordFamily:
				t, ok := cur.Field(s.Name)
				if !ok {
					return res, errors.Wrapf(ErrInvalidIndexDefinition, "path %q: no field %q", p, s.Name)
				}
				cur = t
				canon.WriteString("." + strings.ToLower(s.Name))
			case types.MapFamily:
				cur = cur.Elem()
				canon.WriteString(".[" + s.Name + "]")
			default:
				return res, errors.Wrapf(ErrInvalidIndexDefinition,
					"path %q: cannot select %q from %s", p, s.Name, cur)
			}
			continue
		case StepElems:
			if cur.Family() != types.ArrayFamily {
				return res, errors.Wrapf(ErrInvalidIndexDefinition, "path %q: %s is not an ARRAY", p, cur)
			}
			res.sources = append(res.sources, canon.String())
			cur = cur.Elem()
			canon.WriteString("[]")
		case StepKeys, StepValues:
			if cur.Family() != types.MapFamily {
				return res, errors.Wrapf(ErrInvalidIndexDefinition, "path %q: %s is not a MAP", p, cur)
			}
			res.sources = append(res.sources, canon.String())
			if s.Kind == StepKeys {
				cur = types.String
			} else {
				cur = cur.Elem()
			}
			// keys() and values() continue from the same entry.
			canon.WriteString(".entry()")
		}
		res.multi = append(res.multi, i)
	}
	if !cur.Indexable() {
		return res, errors.Wrapf(ErrInvalidIndexDefinition, "path %q: type %s cannot be indexed", p, cur)
	}
	res.typ = cur
	return res, nil
}

// isPrefixOf returns true if the multi-key sources of r are a prefix of those
// of o, meaning o enumerates at least every position r does.
func (r *resolvedPath) isPrefixOf(o *resolvedPath) bool {
	if len(r.sources) > len(o.sources) {
		return false
	}
	for i := range r.sources {
		if r.sources[i] != o.sources[i] {
			return false
		}
	}
	return true
}
