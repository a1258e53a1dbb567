// Copyright 2026 The Heapalloc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package heapalloc

// logging functions

import (
	"github.com/intuitivelabs/slog"
)

// Log is the generic allocator log.
var Log slog.Log = slog.New(slog.LERR, slog.LbackTraceL|slog.LlocInfoL,
	slog.LStdErr)

// WARN is a shorthand for logging a warning message.
func WARN(f string, a ...interface{}) {
	Log.LLog(slog.LWARN, 1, "WARNING: heapalloc: ", f, a...)
}

// ERR is a shorthand for logging an error message.
func ERR(f string, a ...interface{}) {
	Log.LLog(slog.LERR, 1, "ERROR: heapalloc: ", f, a...)
}

// BUG is a shorthand for logging a fatal allocator bug: double-free or
// heap corruption detected in a client's usage.
func BUG(f string, a ...interface{}) {
	Log.LLog(slog.LBUG, 1, "BUG: heapalloc: ", f, a...)
}
