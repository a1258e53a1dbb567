// Copyright 2026 The Heapalloc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package heapalloc

import (
	"fmt"
	"unsafe"

	"github.com/cznic/mathutil"
)

// Statistics is a point-in-time snapshot of the allocator's bookkeeping
// counters. Restores the mem_stats reporting original_source/src/allocator.c
// keeps (alloc/free totals, failure counts, emergency mode) that the
// distilled spec only gestures at in passing.
type Statistics struct {
	TotalAllocated  uint64
	TotalFree       uint64
	AllocationCount uint64
	RegionCount     int
	BrkFailures     uint64
	MmapFailures    uint64
	EmergencyMode   bool

	// FreeSizeHistogram buckets free-list entries by mathutil.BitLen of
	// their payload size, a cheap stand-in for the size-class distribution
	// a real allocator would report.
	FreeSizeHistogram map[int]int
}

// Stats returns a snapshot of the counters backing Statistics. Cheap enough
// to call frequently: the free-list walk is the only O(n) part, and it is
// bounded by however many free blocks currently exist.
func (a *Allocator) Stats() Statistics {
	a.heapLock.Lock()
	s := Statistics{
		TotalAllocated:  uint64(a.totalAllocated),
		TotalFree:       uint64(a.totalFree),
		AllocationCount: uint64(a.allocationCount),
	}
	hist := make(map[int]int)
	for b := a.freeHead; b != nil; b = freeLinksOf(b).next {
		hist[mathutil.BitLen(int(b.size))]++
	}
	a.heapLock.Unlock()

	s.FreeSizeHistogram = hist
	s.RegionCount = len(a.regions.snapshot())
	s.BrkFailures = a.brkFailures.Load()
	s.MmapFailures = a.mmapFailures.Load()
	s.EmergencyMode = a.emergencyMode.Load()
	return s
}

// walk implements ConsistencyWalk: a sequential pass over every region,
// re-deriving the three counters and free-list membership from the raw
// block chain and comparing them against the bookkeeping fields, after
// checking that every free-list prev link points back at its predecessor. Any
// mismatch is reported as ErrCorruption; a block that fails its own header
// check is reported with the more specific code its status maps to.
//
// Each region is scanned from its base only up to its used high-water mark,
// never to its full length: a bump-pool region can have un-carved bytes
// trailing the last real block, and those bytes were never initialized as
// a header.
func (a *Allocator) walk() error {
	a.heapLock.Lock()
	freeSet := make(map[*blockHeader]bool, a.allocationCount)
	var linkErr error
	var prev *blockHeader
	for b := a.freeHead; b != nil; b = freeLinksOf(b).next {
		if linkErr == nil && freeLinksOf(b).prev != prev {
			linkErr = newAllocError(ErrCorruption,
				fmt.Sprintf("free block at %#x has a prev link that does not match its predecessor", uintptr(unsafe.Pointer(b))))
		}
		freeSet[b] = true
		prev = b
	}
	wantAllocated := a.totalAllocated
	wantFree := a.totalFree
	wantCount := a.allocationCount
	a.heapLock.Unlock()
	if linkErr != nil {
		return linkErr
	}

	var sumAllocated, sumFree, countAllocated uintptr
	for _, r := range a.regions.snapshot() {
		limit := r.base + r.used
		addr := r.base
		for addr < limit {
			h := (*blockHeader)(unsafe.Pointer(addr))
			status := verifyBlockIntegrity(h)
			if status != statusValid {
				return newAllocError(mapStatusToErrCode(status),
					fmt.Sprintf("corrupt block at %#x: %s", addr, status))
			}
			next := blockEnd(h)
			if next > limit {
				return newAllocError(ErrCorruption,
					fmt.Sprintf("block at %#x overruns its region", addr))
			}
			if h.isFree == blockFree {
				if !freeSet[h] {
					return newAllocError(ErrCorruption,
						fmt.Sprintf("free block at %#x is not linked into the free list", addr))
				}
				delete(freeSet, h)
				sumFree += h.size
			} else {
				sumAllocated += h.size
				countAllocated++
			}
			addr = next
		}
	}

	if len(freeSet) != 0 {
		return newAllocError(ErrCorruption,
			fmt.Sprintf("%d free-list entries do not correspond to any scanned block", len(freeSet)))
	}
	if sumAllocated != wantAllocated || sumFree != wantFree || countAllocated != wantCount {
		return newAllocError(ErrCorruption, "accounting counters do not match the block scan")
	}
	return nil
}
