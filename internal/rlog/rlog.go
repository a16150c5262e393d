// Copyright 2026 The RangeLua Authors
// SPDX-License-Identifier: MIT

// Package rlog is a thin wrapper around [zombiezen.com/go/log] that gives
// the rest of the tree a single place to depend on for logging, matching
// the teacher repository's convention of threading a [context.Context]
// through every log call instead of holding a package-level *Logger.
//
// Only cmd/rangelua reads RANGELUA_LOG_LEVEL and calls [Init]; every
// other package (codegen, vm, gc) just calls Debugf/Infof/Warnf/Errorf
// with whatever context it was handed, and stays unaware of how (or
// whether) logging is configured -- matching §6's "No environment
// variable is inspected by the core of the VM itself."
package rlog

import (
	"context"
	"fmt"
	"math"
	"os"
	"sync"

	"zombiezen.com/go/log"
)

// Level names accepted by RANGELUA_LOG_LEVEL, per §6 of the language spec
// this package supports.
const (
	LevelOff   = "off"
	LevelError = "error"
	LevelWarn  = "warn"
	LevelInfo  = "info"
	LevelDebug = "debug"
	LevelTrace = "trace"
)

var initOnce sync.Once

// ParseLevel maps a RANGELUA_LOG_LEVEL string to a [log.Level].
// An unrecognized level defaults to [log.Info], matching the documented
// default.
func ParseLevel(s string) log.Level {
	switch s {
	case LevelOff:
		return log.Level(math.MaxInt32)
	case LevelError:
		return log.Error
	case LevelWarn:
		return log.Warn
	case LevelInfo, "":
		return log.Info
	case LevelDebug:
		return log.Debug
	case LevelTrace:
		// zombiezen.com/go/log has no dedicated trace level;
		// treat it as debug minus one so "trace" is strictly more verbose.
		return log.Debug - 1
	default:
		return log.Info
	}
}

// Init installs the process-wide default logger, writing to stderr with
// the "rangelua: " prefix the way the teacher's CLI prefixes its own
// logs. Init is idempotent; only the first call's level takes effect,
// matching cmd/zb's initLogOnce pattern.
func Init(level log.Level) {
	initOnce.Do(func() {
		log.SetDefault(&log.LevelFilter{
			Min:    level,
			Output: log.New(os.Stderr, "rangelua: ", log.StdFlags, nil),
		})
	})
}

// Debugf logs at debug level.
func Debugf(ctx context.Context, format string, args ...any) {
	log.Debugf(ctx, format, args...)
}

// Infof logs at info level.
func Infof(ctx context.Context, format string, args ...any) {
	log.Infof(ctx, format, args...)
}

// Warnf logs at warn level.
func Warnf(ctx context.Context, format string, args ...any) {
	log.Warnf(ctx, format, args...)
}

// Errorf logs at error level.
func Errorf(ctx context.Context, format string, args ...any) {
	log.Errorf(ctx, format, args...)
}

// Fields renders a short "key=value key=value" suffix for structured
// log lines, e.g. collection summaries from the garbage collector.
func Fields(kv ...any) string {
	s := ""
	for i := 0; i+1 < len(kv); i += 2 {
		if i > 0 {
			s += " "
		}
		s += fmt.Sprintf("%v=%v", kv[i], kv[i+1])
	}
	return s
}
