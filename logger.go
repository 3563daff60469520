// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package fixedfunc

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/gogpu/fixedfunc/internal/oit"
	"github.com/gogpu/fixedfunc/internal/shadercache"
	"github.com/gogpu/fixedfunc/internal/shadersrc"
)

// nopHandler is a slog.Handler that silently discards all log records.
// The Enabled method returns false so the caller skips message formatting
// entirely, making disabled logging effectively zero-cost.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

// newNopLogger creates a logger that silently discards all output.
func newNopLogger() *slog.Logger { return slog.New(nopHandler{}) }

// loggerPtr stores the active logger. Accessed atomically so that
// SetLogger can be called concurrently with logging from any goroutine,
// including the background shader compilers.
var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(newNopLogger())
}

// SetLogger configures the logger for fixedfunc and all its internal
// packages. By default, fixedfunc produces no log output.
//
// SetLogger is safe for concurrent use: it stores the new logger atomically.
// Pass nil to disable logging (restore default silent behavior).
//
// Log levels used by fixedfunc:
//   - [slog.LevelDebug]: cache misses, pipeline creation, resizes, OIT toggles
//   - [slog.LevelInfo]: device lifecycle, shader reloads
//   - [slog.LevelWarn]: background compile failures, permutation file I/O errors
//
// Example:
//
//	fixedfunc.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = newNopLogger()
	}
	loggerPtr.Store(l)

	shadersrc.SetLogger(l)
	shadercache.SetLogger(l)
	oit.SetLogger(l)
}

// Logger returns the current logger used by fixedfunc.
//
// Logger is safe for concurrent use.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}
