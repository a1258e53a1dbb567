// Copyright 2026 The Heapalloc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package heapalloc

import "unsafe"

// uintptrOf is a test convenience for inspecting the address backing a
// returned slice; production code never needs to see it as a bare integer.
func uintptrOf(b []byte) uintptr {
	if len(b) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&b[0]))
}

func uintptrToPointer(p uintptr) unsafe.Pointer {
	return unsafe.Pointer(p)
}
