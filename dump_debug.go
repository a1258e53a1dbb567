// Copyright 2026 The Heapalloc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build default || debug || !nodebug

package heapalloc

import (
	"fmt"
	"io"
	"unsafe"
)

// DumpLayout writes a line per block, region by region in registration
// order and each region from its base upward, restoring
// original_source/src/allocator.c's print_heap_layout. Built in every build
// except nodebug, where it is a no-op; it is not part of the stable public
// surface.
func (a *Allocator) DumpLayout(w io.Writer) error {
	for _, r := range a.regions.snapshot() {
		if _, err := fmt.Fprintf(w, "region %#x len=%d used=%d origin=%v\n", r.base, r.length, r.used, r.origin); err != nil {
			return err
		}
		limit := r.base + r.used
		addr := r.base
		for addr < limit {
			h := (*blockHeader)(unsafe.Pointer(addr))
			status := verifyBlockIntegrity(h)
			if status != statusValid {
				_, err := fmt.Fprintf(w, "  block %#x: %s\n", addr, status)
				return err
			}
			state := "allocated"
			if h.isFree == blockFree {
				state = "free"
			}
			if _, err := fmt.Fprintf(w, "  block %#x size=%d %s\n", addr, h.size, state); err != nil {
				return err
			}
			addr = blockEnd(h)
		}
	}
	return nil
}

// DumpFreeList writes a line per entry currently linked into the free
// list, in list order. Restores original_source's print_free_list.
func (a *Allocator) DumpFreeList(w io.Writer) error {
	a.heapLock.Lock()
	defer a.heapLock.Unlock()
	for b := a.freeHead; b != nil; b = freeLinksOf(b).next {
		if _, err := fmt.Fprintf(w, "free %#x size=%d\n", uintptr(unsafe.Pointer(b)), b.size); err != nil {
			return err
		}
	}
	return nil
}
