// Copyright 2026 The Heapalloc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package heapalloc

import (
	"unsafe"
)

// bumpPool is the cursor into the most recent program-break extension,
// used to satisfy a handful of small requests without re-entering the
// kernel each time. Guarded by poolLock, which nests outside both heapLock
// and region_lock (poolLock > heapLock > region_lock, §5): acquireBrk calls
// updateRangeBounds (heapLock) and regions.register (region_lock) while
// still holding poolLock.
type bumpPool struct {
	cursor    uintptr
	remaining int
	region    *region // region the cursor currently carves from, if any
}

// fragmentation returns total_free / (total_free + total_allocated), the
// ratio the mapping-vs-brk policy (§4.3) is keyed on.
func (a *Allocator) fragmentation() float64 {
	a.heapLock.Lock()
	free, allocated := a.totalFree, a.totalAllocated
	a.heapLock.Unlock()
	denom := free + allocated
	if denom == 0 {
		return 0
	}
	return float64(free) / float64(denom)
}

// chooseOrigin implements the selection policy in §4.3.
func (a *Allocator) chooseOrigin(alignedTotal int) regionOrigin {
	if !brkSupported {
		return originMmap
	}
	if alignedTotal >= a.cfg.MmapThreshold {
		return originMmap
	}
	if a.fragmentation() > a.cfg.FragmentationThreshold {
		return originMmap
	}
	return originBrk
}

// acquire sources at least totalLen bytes (header + payload) of raw memory,
// registers the backing region, and returns the base address of a fresh,
// unheadered span the caller must install a header into, along with the
// span's actual length and the region it was carved from. The actual length
// is exactly totalLen for program-break memory, but can exceed it for a
// mapping, which is always rounded up to a whole number of pages; callers
// that want to avoid stranding the rounding slack as unreachable bytes
// (AlignedAllocate, the direct-mmap path in Allocate) size their block(s) to
// the actual length, not just totalLen.
//
// For a program-break span, the caller must publish it into r's used
// watermark itself (via regions.bumpUsed), under heapLock, only once the
// header has actually been written — never here. A concurrent coalesce of a
// neighbouring block in the same region reads both the header and r.used,
// one under heapLock and the other through usedOf's region_lock; advancing
// r.used before the header exists would let that coalesce treat unwritten
// bytes as a block.
func (a *Allocator) acquire(totalLen int) (uintptr, int, *region, error) {
	origin := a.chooseOrigin(totalLen)
	if origin == originMmap {
		return a.acquireMmap(totalLen)
	}
	base, actual, r, err := a.acquireBrk(totalLen)
	if err != nil {
		// brk failed outright (rather than just running low on pool);
		// mapping is always the fallback.
		return a.acquireMmap(totalLen)
	}
	return base, actual, r, nil
}

// acquireBrk satisfies totalLen bytes from the bump pool, extending the
// program break through the kernel only when the pool runs dry. It never
// advances the returned region's used watermark itself; see acquire's doc
// comment for why that is the caller's responsibility.
func (a *Allocator) acquireBrk(totalLen int) (uintptr, int, *region, error) {
	a.poolLock.Lock()
	defer a.poolLock.Unlock()

	if a.pool.remaining >= totalLen {
		base := a.pool.cursor
		a.pool.cursor += uintptr(totalLen)
		a.pool.remaining -= totalLen
		return base, totalLen, a.pool.region, nil
	}

	extend := totalLen
	if extend < a.cfg.MinBrkExtension {
		extend = a.cfg.MinBrkExtension
	}

	base, err := brkExtend(extend)
	if err != nil {
		a.recordBrkFailure()
		return 0, 0, nil, a.noteFailure(newAllocError(ErrOutOfMemory, "brk: "+err.Error()))
	}

	r := a.regions.register(base, uintptr(extend), originBrk)
	a.updateRangeBounds(base, base+uintptr(extend))

	a.pool.cursor = base + uintptr(totalLen)
	a.pool.remaining = extend - totalLen
	a.pool.region = r
	return base, totalLen, r, nil
}

// acquireMmap asks the kernel for a private anonymous mapping of at least
// totalLen bytes, rounded up to the page size, and registers it. A mapped
// region is always carved in full the instant it is registered (register
// sets its used watermark to the whole length), since the block(s) written
// at acquisition cover the whole mapping and a later split only subdivides
// them; the caller does not need to, and must not, bump it again.
func (a *Allocator) acquireMmap(totalLen int) (uintptr, int, *region, error) {
	mapped := roundUp(totalLen, osPageSize)
	b, err := mmapAnonymous(mapped)
	if err != nil {
		a.recordMmapFailure()
		return 0, 0, nil, a.noteFailure(err)
	}

	base := uintptr(unsafe.Pointer(&b[0]))
	r := a.regions.register(base, uintptr(len(b)), originMmap)
	return base, len(b), r, nil
}

func (a *Allocator) updateRangeBounds(lo, hi uintptr) {
	a.heapLock.Lock()
	defer a.heapLock.Unlock()
	if a.rangeLo == 0 || lo < a.rangeLo {
		a.rangeLo = lo
	}
	if hi > a.rangeHi {
		a.rangeHi = hi
	}
}

func (a *Allocator) recordBrkFailure() {
	a.brkFailures.Add(1)
	a.maybeEnterEmergencyMode()
}

func (a *Allocator) recordMmapFailure() {
	a.mmapFailures.Add(1)
	a.maybeEnterEmergencyMode()
}

func (a *Allocator) maybeEnterEmergencyMode() {
	if int(a.brkFailures.Load()+a.mmapFailures.Load()) > a.cfg.EmergencyFailureThreshold {
		a.emergencyMode.Store(true)
	}
}

// releaseMappedRegion unmaps a mapped region and unregisters it. It refuses
// regions that are absent from the registry or that originated from
// program-break extension, per §4.3's "Mapped region release".
func (a *Allocator) releaseMappedRegion(base uintptr) error {
	r := a.regions.find(base)
	if r == nil || r.base != base {
		return a.noteFailure(newAllocError(ErrInvalidPointer, "not a registered region base"))
	}
	if r.origin != originMmap {
		return a.noteFailure(newAllocError(ErrInvalidPointer, "region is program-break-originated, not mapped"))
	}
	if err := munmapRegion(r.base, r.length); err != nil {
		return err
	}
	a.regions.unregister(r.base)
	return nil
}
