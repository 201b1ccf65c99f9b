// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package log

import "github.com/cockroachdb/redact"

// Severity is the severity level of a log entry.
type Severity int32

// Severity values, ordered from least to most severe.
const (
	Severity_INFO Severity = iota
	Severity_WARNING
	Severity_ERROR
	Severity_FATAL
)

var severityChars = [...]byte{'I', 'W', 'E', 'F'}

func (s Severity) char() byte {
	if s < 0 || int(s) >= len(severityChars) {
		return '?'
	}
	return severityChars[s]
}

// String implements fmt.Stringer.
func (s Severity) String() string {
	switch s {
	case Severity_INFO:
		return "INFO"
	case Severity_WARNING:
		return "WARNING"
	case Severity_ERROR:
		return "ERROR"
	case Severity_FATAL:
		return "FATAL"
	}
	return "UNKNOWN"
}

// SafeValue implements redact.SafeValue.
func (Severity) SafeValue() {}

var _ redact.SafeValue = Severity(0)
