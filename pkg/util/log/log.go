// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package log implements context-aware, severity-leveled logging. Messages
// are formatted through redact so that arguments not marked safe are
// enclosed in redaction markers when redactable output is enabled, and
// context tags added with logtags are prepended to every entry.
package log

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/tablemeta/pkg/util/timeutil"
)

var mainLog = loggerT{out: os.Stderr}

type loggerT struct {
	mu         sync.Mutex
	out        io.Writer
	redactable bool
	verbosity  atomic.Int32
}

// SetOutput redirects log output to w and returns a function restoring the
// previous writer. Tests use it to capture output.
func SetOutput(w io.Writer) (restore func()) {
	mainLog.mu.Lock()
	defer mainLog.mu.Unlock()
	prev := mainLog.out
	mainLog.out = w
	return func() {
		mainLog.mu.Lock()
		defer mainLog.mu.Unlock()
		mainLog.out = prev
	}
}

// SetRedactable controls whether redaction markers are kept in the output.
func SetRedactable(redactable bool) {
	mainLog.mu.Lock()
	defer mainLog.mu.Unlock()
	mainLog.redactable = redactable
}

// SetVerbosity sets the level up to which V and VEventf are enabled.
func SetVerbosity(level int32) {
	mainLog.verbosity.Store(level)
}

// V returns true if the logging verbosity is set to the specified level or
// higher.
func V(level int32) bool {
	return mainLog.verbosity.Load() >= level
}

// Infof logs to the INFO log.
func Infof(ctx context.Context, format string, args ...interface{}) {
	addStructured(ctx, Severity_INFO, 1, format, args)
}

// Info logs a message to the INFO log.
func Info(ctx context.Context, msg string) {
	addStructured(ctx, Severity_INFO, 1, "%s", []interface{}{msg})
}

// Warningf logs to the WARNING log.
func Warningf(ctx context.Context, format string, args ...interface{}) {
	addStructured(ctx, Severity_WARNING, 1, format, args)
}

// Errorf logs to the ERROR log.
func Errorf(ctx context.Context, format string, args ...interface{}) {
	addStructured(ctx, Severity_ERROR, 1, format, args)
}

// VEventf logs to the INFO log if the verbosity is at least level.
func VEventf(ctx context.Context, level int32, format string, args ...interface{}) {
	if V(level) {
		addStructured(ctx, Severity_INFO, 1, format, args)
	}
}

// outputEntry writes a single formatted line in the form
//
//	I261016 15:04:05.999999 file.go:123  [tag=val] message
func (l *loggerT) outputEntry(sev Severity, depth int, now time.Time, tags, msg string) {
	_, file, line, ok := runtime.Caller(depth + 1)
	if !ok {
		file, line = "???", 0
	}
	if tags != "" {
		tags = "[" + tags + "] "
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.out, "%c%s %s:%d  %s%s\n",
		sev.char(), now.Format("060102 15:04:05.000000"), filepath.Base(file), line, tags, msg)
}

func now() time.Time {
	return timeutil.Now()
}
