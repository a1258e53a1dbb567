// Copyright 2026 The Heapalloc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package heapalloc implements a general-purpose, thread-safe heap allocator
// that can stand in for a process's dynamic memory allocation routines.
//
// Memory is sourced from the operating system either by extending the
// process break (small requests) or by mapping anonymous pages (large or
// fragmented requests), partitioned into header-prefixed blocks aligned to
// 16 bytes, and recycled through a first-fit free list with splitting and
// coalescing. A set of integrity checks on the block header detects a range
// of client misuse: double-free, heap corruption, and misalignment.
//
// The package exposes both a byte-slice API (Allocate/Release/...) and, for
// callers that need raw pointers, an Unsafe-prefixed mirror of the same
// operations. Its zero-value Allocator is not ready for use; call New or go
// through the package-level wrappers, which lazily initialize a process-wide
// singleton.
package heapalloc
