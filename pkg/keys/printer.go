// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package keys

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/cockroachdb/tablemeta/pkg/util/encoding"
)

// PrettyPrint prints the key in a human readable format:
//
//	/Table/<id>/<child id>/Index/<index id>/<values...>
//
// Values are decoded assuming ascending encodings. Undecodable suffixes are
// printed in angle brackets.
func PrettyPrint(key []byte) string {
	var buf strings.Builder
	if bytes.HasPrefix(key, SystemPrefix) {
		buf.WriteString("/System/")
		buf.WriteString(strconv.Quote(string(key[len(SystemPrefix):])))
		return buf.String()
	}
	rest, path, err := DecodeTablePrefix(key)
	if err != nil {
		buf.WriteString("/<")
		buf.WriteString(err.Error())
		buf.WriteString(">")
		return buf.String()
	}
	buf.WriteString("/Table")
	for _, id := range path {
		buf.WriteByte('/')
		buf.WriteString(strconv.FormatUint(uint64(id), 10))
	}
	if len(rest) == 0 {
		return buf.String()
	}
	rest, indexID, err := encoding.DecodeUvarintAscending(rest)
	if err != nil {
		buf.WriteString("/<")
		buf.WriteString(err.Error())
		buf.WriteString(">")
		return buf.String()
	}
	buf.WriteString("/Index/")
	buf.WriteString(strconv.FormatUint(indexID, 10))
	buf.WriteString(encoding.PrettyPrintValue(rest, "/"))
	return buf.String()
}
