// Copyright 2026 The Heapalloc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package heapalloc

// sizeClasses is the boundary table original_source/include/allocator.h's
// get_size_class/get_class_size are built around. The core allocator below
// never consults it itself (every request is satisfied by the first-fit
// free list regardless of class); it exists purely as the contract an
// external per-thread cache would need to agree on, the way the original's
// caller-side cache does.
var sizeClasses = [...]int{16, 32, 64, 128, 256, 512, 1024}

// SizeClass returns the index of the smallest size class that can hold n
// bytes, or len(sizeClasses) if n exceeds every class, meaning a cache
// built on this table would forward the request straight to Allocate.
func SizeClass(n int) int {
	for i, c := range sizeClasses {
		if n <= c {
			return i
		}
	}
	return len(sizeClasses)
}

// ClassSize returns the boundary size of class, or 0 if class is out of
// [0, len(sizeClasses)) range.
func ClassSize(class int) int {
	if class < 0 || class >= len(sizeClasses) {
		return 0
	}
	return sizeClasses[class]
}
