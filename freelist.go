// Copyright 2026 The Heapalloc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package heapalloc

// findFreeBlock performs an unordered first-fit search starting at
// a.freeHead, returning the first block whose payload is at least n bytes,
// or nil. It does not unlink the block. Caller must hold heapLock.
func (a *Allocator) findFreeBlock(n uintptr) *blockHeader {
	for b := a.freeHead; b != nil; b = freeLinksOf(b).next {
		if b.size >= n {
			return b
		}
	}
	return nil
}

// addToFreeList inserts b at the head of the free list and accounts its
// size into total_free. Precondition: b.isFree == blockFree. Caller must
// hold heapLock.
func (a *Allocator) addToFreeList(b *blockHeader) {
	links := freeLinksOf(b)
	links.prev = nil
	links.next = a.freeHead
	if a.freeHead != nil {
		freeLinksOf(a.freeHead).prev = b
	}
	a.freeHead = b
	a.totalFree += b.size
}

// removeFromFreeList splices b out of the free list and subtracts its size
// from total_free. Precondition: b.isFree == blockFree and b is currently a
// member of the list. Caller must hold heapLock.
func (a *Allocator) removeFromFreeList(b *blockHeader) {
	links := freeLinksOf(b)
	switch {
	case links.prev == nil && links.next == nil:
		a.freeHead = nil
	case links.prev == nil:
		a.freeHead = links.next
		freeLinksOf(links.next).prev = nil
	case links.next == nil:
		freeLinksOf(links.prev).next = nil
	default:
		freeLinksOf(links.prev).next = links.next
		freeLinksOf(links.next).prev = links.prev
	}
	a.totalFree -= b.size
	links.prev = nil
	links.next = nil
}
