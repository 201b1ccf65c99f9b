// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package types

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/cockroachdb/errors"
)

// Parse parses a type written as by T.String, e.g. "MAP(INTEGER)",
// "RECORD(a STRING, b ARRAY(LONG))", "TIMESTAMP(3)" or "ENUM(red, green)".
// Keywords are case insensitive.
func Parse(s string) (*T, error) {
	p := parser{s: s}
	t, err := p.parseType()
	if err != nil {
		return nil, errors.Wrapf(err, "parsing type %q", s)
	}
	p.skipSpace()
	if p.pos != len(p.s) {
		return nil, errors.Newf("parsing type %q: unexpected %q", s, p.s[p.pos:])
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// MustParse is like Parse but panics on error. It is meant for tests and
// static declarations.
func MustParse(s string) *T {
	t, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return t
}

type parser struct {
	s   string
	pos int
}

func (p *parser) skipSpace() {
	for p.pos < len(p.s) && unicode.IsSpace(rune(p.s[p.pos])) {
		p.pos++
	}
}

func (p *parser) ident() string {
	p.skipSpace()
	start := p.pos
	for p.pos < len(p.s) {
		c := rune(p.s[p.pos])
		if !unicode.IsLetter(c) && !unicode.IsDigit(c) && c != '_' {
			break
		}
		p.pos++
	}
	return p.s[start:p.pos]
}

func (p *parser) consume(c byte) bool {
	p.skipSpace()
	if p.pos < len(p.s) && p.s[p.pos] == c {
		p.pos++
		return true
	}
	return false
}

func (p *parser) expect(c byte) error {
	if !p.consume(c) {
		return errors.Newf("expected %q at offset %d", c, p.pos)
	}
	return nil
}

func (p *parser) number() (int32, error) {
	n, err := strconv.ParseInt(p.ident(), 10, 32)
	if err != nil {
		return 0, errors.Wrap(err, "expected a number")
	}
	return int32(n), nil
}

func (p *parser) parseType() (*T, error) {
	name := strings.ToUpper(p.ident())
	switch name {
	case "BOOLEAN", "BOOL":
		return Bool, nil
	case "INTEGER", "INT":
		return Int, nil
	case "LONG":
		return Long, nil
	case "FLOAT":
		return Float, nil
	case "DOUBLE":
		return Double, nil
	case "NUMBER":
		return Number, nil
	case "STRING":
		return String, nil
	case "JSON":
		return JSON, nil
	case "BINARY", "FIXED_BINARY":
		if !p.consume('(') {
			if name == "FIXED_BINARY" {
				return nil, errors.New("FIXED_BINARY requires a size")
			}
			return Binary, nil
		}
		n, err := p.number()
		if err != nil {
			return nil, err
		}
		return MakeFixedBinary(n), p.expect(')')
	case "TIMESTAMP":
		if !p.consume('(') {
			return Timestamp, nil
		}
		n, err := p.number()
		if err != nil {
			return nil, err
		}
		return MakeTimestamp(n), p.expect(')')
	case "ENUM":
		if err := p.expect('('); err != nil {
			return nil, err
		}
		var values []string
		for {
			v := p.ident()
			if v == "" {
				return nil, errors.New("expected an ENUM symbol")
			}
			values = append(values, v)
			if !p.consume(',') {
				break
			}
		}
		return MakeEnum(values...), p.expect(')')
	case "ARRAY", "MAP":
		if err := p.expect('('); err != nil {
			return nil, err
		}
		elem, err := p.parseType()
		if err != nil {
			return nil, err
		}
		if err := p.expect(')'); err != nil {
			return nil, err
		}
		if name == "ARRAY" {
			return MakeArray(elem), nil
		}
		return MakeMap(elem), nil
	case "RECORD":
		if err := p.expect('('); err != nil {
			return nil, err
		}
		var fields []RecordField
		for {
			fname := p.ident()
			if fname == "" {
				return nil, errors.New("expected a RECORD field name")
			}
			ft, err := p.parseType()
			if err != nil {
				return nil, err
			}
			fields = append(fields, RecordField{Name: fname, Type: ft})
			if !p.consume(',') {
				break
			}
		}
		return MakeRecord(fields...), p.expect(')')
	case "":
		return nil, errors.Newf("expected a type at offset %d", p.pos)
	}
	return nil, errors.Newf("unknown type %q", name)
}
