// Copyright 2026 The Heapalloc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package heapalloc

import "unsafe"

const (
	// magic is the sentinel written into every block header; used to
	// detect heap corruption on release and during the consistency walk.
	magic uint32 = 0xDEADBEEF

	blockAllocated uint32 = 0
	blockFree      uint32 = 1
)

// blockHeader is the fixed-size metadata prefix of every block. Its layout
// is intentionally free of prev/next fields: those are only meaningful while
// the block is free, and are instead overlaid onto the block's own payload
// bytes by freeLinksOf (see Design Note 9 in SPEC_FULL.md: no auxiliary
// allocation backs the free list).
type blockHeader struct {
	size   uintptr // payload length in bytes, a multiple of alignment
	magic  uint32
	isFree uint32
}

// freeLinks overlays the first 2*pointer-size bytes of a free block's
// payload. It must never be read or written while the block is allocated.
type freeLinks struct {
	prev *blockHeader
	next *blockHeader
}

var (
	headerSize  = roundUp(int(unsafe.Sizeof(blockHeader{})), alignment)
	minPayload  = 2 * int(unsafe.Sizeof(uintptr(0)))
	minBlockLen = headerSize + minPayload
)

// roundUp returns the smallest multiple of m that is >= n. m must be a power
// of two.
func roundUp(n, m int) int { return (n + m - 1) &^ (m - 1) }

// blockStatus is the result of verifyBlockIntegrity.
type blockStatus int

const (
	statusValid blockStatus = iota
	statusCorruptMagic
	statusInvalidSize
	statusMisaligned
	statusInvalidFreeState
	statusOutOfBounds
)

func (s blockStatus) String() string {
	switch s {
	case statusValid:
		return "valid"
	case statusCorruptMagic:
		return "corrupt magic"
	case statusInvalidSize:
		return "invalid size"
	case statusMisaligned:
		return "misaligned"
	case statusInvalidFreeState:
		return "invalid free state"
	case statusOutOfBounds:
		return "out of bounds"
	default:
		return "unknown block status"
	}
}

// headerFromPointer recovers the header of the block whose user-visible
// address is p.
func headerFromPointer(p unsafe.Pointer) *blockHeader {
	return (*blockHeader)(unsafe.Pointer(uintptr(p) - uintptr(headerSize)))
}

// pointerFromHeader returns the user-visible address of the block h.
func pointerFromHeader(h *blockHeader) unsafe.Pointer {
	return unsafe.Pointer(uintptr(unsafe.Pointer(h)) + uintptr(headerSize))
}

// blockEnd returns the address one past the last byte of h's payload, i.e.
// the address a physically adjacent next block would begin at.
func blockEnd(h *blockHeader) uintptr {
	return uintptr(unsafe.Pointer(h)) + uintptr(headerSize) + h.size
}

// freeLinksOf returns the free-list link view of h's payload. Only valid
// while h.isFree == blockFree.
func freeLinksOf(h *blockHeader) *freeLinks {
	return (*freeLinks)(pointerFromHeader(h))
}

func initializeAllocatedBlock(h *blockHeader, size uintptr) {
	h.size = size
	h.magic = magic
	h.isFree = blockAllocated
}

func initializeFreeBlock(h *blockHeader, size uintptr) {
	h.size = size
	h.magic = magic
	h.isFree = blockFree
	links := freeLinksOf(h)
	links.prev = nil
	links.next = nil
}

// verifyBlockIntegrity is read-only and may be called from any context,
// including while other blocks are mid-mutation: it only ever looks at h.
func verifyBlockIntegrity(h *blockHeader) blockStatus {
	if h == nil {
		return statusOutOfBounds
	}
	if uintptr(unsafe.Pointer(h))&uintptr(alignment-1) != 0 {
		return statusMisaligned
	}
	if h.magic != magic {
		return statusCorruptMagic
	}
	if h.size%uintptr(alignment) != 0 {
		return statusInvalidSize
	}
	if h.isFree != blockAllocated && h.isFree != blockFree {
		return statusInvalidFreeState
	}
	return statusValid
}
