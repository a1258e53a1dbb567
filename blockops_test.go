// Copyright 2026 The Heapalloc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package heapalloc

import (
	"testing"
	"unsafe"
)

// threeBlockFixture lays down three contiguous 64-byte-payload blocks
// inside one region, named left/mid/right in address order, so
// coalesce/prevBlock/adjacentNeighbour can be exercised directly without
// going through the OS sourcing path.
func threeBlockFixture(t *testing.T) (a *Allocator, r *region, left, mid, right *blockHeader) {
	t.Helper()
	const payload = 64
	blockLen := headerSize + payload
	total := 3*blockLen + alignment
	buf := make([]byte, total)
	base := roundUpUintptr(uintptrOf(buf), uintptr(alignment))

	var err error
	a, err = New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	r = a.regions.register(base, uintptr(3*blockLen), originBrk)
	a.regions.bumpUsed(r, uintptr(3*blockLen))

	left = (*blockHeader)(uintptrToPointer(base))
	mid = (*blockHeader)(uintptrToPointer(base + uintptr(blockLen)))
	right = (*blockHeader)(uintptrToPointer(base + uintptr(2*blockLen)))

	initializeAllocatedBlock(left, payload)
	initializeAllocatedBlock(mid, payload)
	initializeAllocatedBlock(right, payload)
	return a, r, left, mid, right
}

func TestAdjacentNeighbour(t *testing.T) {
	a, r, left, mid, right := threeBlockFixture(t)

	if got := a.adjacentNeighbour(left, r); got != mid {
		t.Fatalf("adjacentNeighbour(left) = %p, want %p", got, mid)
	}
	if got := a.adjacentNeighbour(mid, r); got != right {
		t.Fatalf("adjacentNeighbour(mid) = %p, want %p", got, right)
	}
	if got := a.adjacentNeighbour(right, r); got != nil {
		t.Fatalf("adjacentNeighbour(right) = %p, want nil at region boundary", got)
	}
}

func TestPrevBlock(t *testing.T) {
	a, r, left, mid, right := threeBlockFixture(t)

	if got := a.prevBlock(left, r); got != nil {
		t.Fatalf("prevBlock(left) = %p, want nil at region base", got)
	}
	if got := a.prevBlock(mid, r); got != left {
		t.Fatalf("prevBlock(mid) = %p, want %p", got, left)
	}
	if got := a.prevBlock(right, r); got != mid {
		t.Fatalf("prevBlock(right) = %p, want %p", got, mid)
	}
}

func TestCoalesceForwardAndBackward(t *testing.T) {
	a, _, left, mid, right := threeBlockFixture(t)

	left.isFree = blockFree
	right.isFree = blockFree
	a.addToFreeList(left)
	a.addToFreeList(right)

	mid.isFree = blockFree
	merged := a.coalesce(mid)

	if uintptr(unsafe.Pointer(merged)) != uintptr(unsafe.Pointer(left)) {
		t.Fatalf("coalesce should absorb into the leftmost block, got %p want %p", merged, left)
	}
	// Each of the three original blocks had a 64-byte payload; once merged,
	// the two swallowed headers become part of the payload too.
	wantSize := uintptr(3*64 + 2*headerSize)
	if merged.size != wantSize {
		t.Fatalf("merged.size = %d, want %d", merged.size, wantSize)
	}
	if a.freeHead != nil {
		t.Fatalf("both absorbed neighbours should have been unlinked from the free list, freeHead = %p", a.freeHead)
	}
}

func TestCoalesceNoNeighboursIsNoop(t *testing.T) {
	a, _, _, mid, _ := threeBlockFixture(t)
	mid.isFree = blockFree
	merged := a.coalesce(mid)
	if merged != mid {
		t.Fatalf("coalesce with allocated neighbours should return the same block, got %p want %p", merged, mid)
	}
	if merged.size != 64 {
		t.Fatalf("merged.size = %d, want 64 (unchanged)", merged.size)
	}
}
