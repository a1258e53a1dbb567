// Copyright 2026 The Heapalloc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package heapalloc

import (
	"sync"
	"unsafe"
)

// global is the process-wide Allocator the package-level functions below
// operate on. Design Note 9 of SPEC_FULL.md: "a context holds the three
// locks and all state; the public functions are thin wrappers." globalMu
// only ever guards the pointer swap itself, never an allocation in flight;
// once read, callers use the Allocator's own locks.
var (
	globalMu sync.Mutex
	global   *Allocator
)

// Initialize installs a process-wide Allocator configured with opts. It is
// optional: the package-level functions below lazily construct a
// default-configured instance on first use if Initialize was never called.
// Calling it again replaces the existing instance outright, which is mainly
// useful for tests that need a non-default MmapThreshold or
// FragmentationThreshold.
func Initialize(opts ...Option) error {
	a, err := New(opts...)
	if err != nil {
		return err
	}
	globalMu.Lock()
	global = a
	globalMu.Unlock()
	return nil
}

// Cleanup unmaps every region the process-wide Allocator still owns and
// discards it; the next package-level call constructs a fresh one. Not
// required before process exit (program-break memory is never returned to
// the OS regardless), but useful between test cases.
func Cleanup() error {
	globalMu.Lock()
	a := global
	global = nil
	globalMu.Unlock()
	if a == nil {
		return nil
	}
	return a.Close()
}

func instance() *Allocator {
	globalMu.Lock()
	defer globalMu.Unlock()
	if global == nil {
		a, _ := New() // New never fails: errors only come from a live Allocator's OS calls.
		global = a
	}
	return global
}

// Allocate is the package-level form of (*Allocator).Allocate, operating on
// the lazily-initialized process-wide instance.
func Allocate(n int) ([]byte, error) { return instance().Allocate(n) }

// AllocateZeroed is the package-level form of (*Allocator).AllocateZeroed.
func AllocateZeroed(count, elemSize int) ([]byte, error) {
	return instance().AllocateZeroed(count, elemSize)
}

// Release is the package-level form of (*Allocator).Release.
func Release(b []byte) error { return instance().Release(b) }

// Reallocate is the package-level form of (*Allocator).Reallocate.
func Reallocate(b []byte, n int) ([]byte, error) { return instance().Reallocate(b, n) }

// AlignedAllocate is the package-level form of (*Allocator).AlignedAllocate.
func AlignedAllocate(alignTo, size int) ([]byte, error) {
	return instance().AlignedAllocate(alignTo, size)
}

// UsableSize is the package-level form of (*Allocator).UsableSize.
func UsableSize(b []byte) int { return instance().UsableSize(b) }

// ConsistencyWalk is the package-level form of (*Allocator).ConsistencyWalk.
func ConsistencyWalk() error { return instance().ConsistencyWalk() }

// Stats is the package-level form of (*Allocator).Stats.
func Stats() Statistics { return instance().Stats() }

// SetErrorHandler is the package-level form of (*Allocator).SetErrorHandler.
func SetErrorHandler(h ErrorHandler) { instance().SetErrorHandler(h) }

// LastError is the package-level form of (*Allocator).LastError.
func LastError() ErrCode { return instance().LastError() }

// UnsafeAllocate is the package-level form of (*Allocator).UnsafeAllocate.
func UnsafeAllocate(n int) (unsafe.Pointer, error) { return instance().UnsafeAllocate(n) }

// UnsafeAllocateZeroed is the package-level form of
// (*Allocator).UnsafeAllocateZeroed.
func UnsafeAllocateZeroed(count, elemSize int) (unsafe.Pointer, error) {
	return instance().UnsafeAllocateZeroed(count, elemSize)
}

// UnsafeRelease is the package-level form of (*Allocator).UnsafeRelease.
func UnsafeRelease(p unsafe.Pointer) error { return instance().UnsafeRelease(p) }

// UnsafeReallocate is the package-level form of (*Allocator).UnsafeReallocate.
func UnsafeReallocate(p unsafe.Pointer, n int) (unsafe.Pointer, error) {
	return instance().UnsafeReallocate(p, n)
}

// UnsafeAlignedAllocate is the package-level form of
// (*Allocator).UnsafeAlignedAllocate.
func UnsafeAlignedAllocate(alignTo, size int) (unsafe.Pointer, error) {
	return instance().UnsafeAlignedAllocate(alignTo, size)
}

// UnsafeUsableSize is the package-level form of (*Allocator).UnsafeUsableSize.
func UnsafeUsableSize(p unsafe.Pointer) int { return instance().UnsafeUsableSize(p) }
