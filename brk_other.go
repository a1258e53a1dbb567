// Copyright 2026 The Heapalloc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build !linux

package heapalloc

import "errors"

// brkSupported is false on platforms without a usable brk(2) syscall (or
// without one reachable the way this package needs it). Per spec §4.3:
// "Platforms that do not support program-break extension use mapping
// unconditionally."
const brkSupported = false

func currentBreak() (uintptr, error) {
	return 0, errors.New("heapalloc: program-break extension unsupported on this platform")
}

func brkExtend(size int) (uintptr, error) {
	return 0, errors.New("heapalloc: program-break extension unsupported on this platform")
}
