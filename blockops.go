// Copyright 2026 The Heapalloc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package heapalloc

import "unsafe"

// canSplit reports whether carving an allocation of n payload bytes out of
// b would leave a remainder big enough to host its own header and the
// minimum free-list payload.
func canSplit(b *blockHeader, n uintptr) bool {
	return b.size >= n+uintptr(minBlockLen)
}

// split carves a new free block out of the tail of b, sized n bytes after
// this call, and returns the carved-out remainder as a free block. The
// caller is responsible for inserting the remainder into the free list;
// split itself only shrinks b and installs the remainder's header.
func split(b *blockHeader, n uintptr) *blockHeader {
	remainderLen := b.size - n - uintptr(headerSize)
	remainderAddr := uintptr(unsafe.Pointer(b)) + uintptr(headerSize) + n
	remainder := (*blockHeader)(unsafe.Pointer(remainderAddr))
	initializeFreeBlock(remainder, remainderLen)
	b.size = n
	return remainder
}

// adjacentNeighbour returns the block physically following b within the
// same region, or nil if b ends at or past the region's carved boundary.
// The boundary is r.used, not r.length: a bump-pool region can trail off
// into un-carved program-break bytes past its last real block, and those
// bytes must never be read as a header. r.used is read through usedOf,
// never as a bare field: a concurrent carve from the same region advances
// it under region_lock while this call may run concurrently under heapLock
// from a different goroutine's release.
func (a *Allocator) adjacentNeighbour(b *blockHeader, r *region) *blockHeader {
	end := blockEnd(b)
	if end >= r.base+a.regions.usedOf(r) {
		return nil
	}
	return (*blockHeader)(unsafe.Pointer(end))
}

// prevBlock returns the block physically preceding b within region r, found
// by walking forward from the region base. original_source/include/allocator.h
// declares get_prev_block but src/allocator.c never implements it (§9, open
// question); a region's blocks are contiguous and region-relative, so a scan
// from the region base is the natural way to recover it without maintaining
// a second, backward linked list through every block.
func (a *Allocator) prevBlock(b *blockHeader, r *region) *blockHeader {
	addr := r.base
	target := uintptr(unsafe.Pointer(b))
	for addr < target {
		cur := (*blockHeader)(unsafe.Pointer(addr))
		if verifyBlockIntegrity(cur) != statusValid {
			return nil
		}
		end := blockEnd(cur)
		if end == target {
			return cur
		}
		addr = end
	}
	return nil
}

// coalesce merges b with any physically adjacent free neighbour(s) inside
// the same region, never crossing a region boundary. Each absorbed
// neighbour is first removed from the free list; b itself must not be a
// member of the free list when this is called, and is not added to it by
// this function. Returns the merged block: if b's left neighbour absorbs
// it, the returned header is the neighbour's, not b's, so callers must use
// the return value rather than continue to reference b.
func (a *Allocator) coalesce(b *blockHeader) *blockHeader {
	r := a.regions.find(uintptr(unsafe.Pointer(b)))
	if r == nil {
		return b
	}

	for {
		next := a.adjacentNeighbour(b, r)
		if next == nil || next.isFree != blockFree || verifyBlockIntegrity(next) != statusValid {
			break
		}
		a.removeFromFreeList(next)
		b.size += uintptr(headerSize) + next.size
	}

	for {
		prev := a.prevBlock(b, r)
		if prev == nil || prev.isFree != blockFree || verifyBlockIntegrity(prev) != statusValid {
			break
		}
		a.removeFromFreeList(prev)
		prev.size += uintptr(headerSize) + b.size
		b = prev
	}

	return b
}
