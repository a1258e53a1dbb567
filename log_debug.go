// Copyright 2026 The Heapalloc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build default || debug || !nodebug

package heapalloc

// logging functions, debug version

import (
	"github.com/intuitivelabs/slog"
)

// DBGon reports whether generic debug logging is enabled.
func DBGon() bool {
	return Log.DBGon()
}

// DBG is a shorthand for logging a debug message.
func DBG(f string, a ...interface{}) {
	Log.LLog(slog.LDBG, 1, "DBG: heapalloc: ", f, a...)
}
