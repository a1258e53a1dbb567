// Copyright 2026 The Heapalloc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package heapalloc

import (
	"os"
	"reflect"
	"sync"
	"sync/atomic"
	"unsafe"
)

// Allocator allocates and frees memory sourced from the OS. Its zero value
// is not ready for use: construct one with New, or go through the
// package-level functions, which lazily initialize a process-wide instance
// the way Design Note 9 of SPEC_FULL.md describes ("a context holds the
// three locks and all state; the public functions are thin wrappers").
type Allocator struct {
	cfg Config

	// heapLock protects freeHead, the three counters, and the
	// informational program-break range bounds (§5).
	heapLock         sync.Mutex
	freeHead         *blockHeader
	totalAllocated   uintptr
	totalFree        uintptr
	allocationCount  uintptr
	rangeLo, rangeHi uintptr

	// poolLock protects the bump pool and the program-break critical
	// section. The three locks nest in one fixed order, poolLock >
	// heapLock > region_lock (§5): acquireBrk takes heapLock and
	// region_lock while holding poolLock, and coalesce/adjacentNeighbour
	// take region_lock while holding heapLock. No lock is ever acquired
	// while a lock below it in that order is held, so the nesting is
	// acyclic; a lock is never held across a call back up the order.
	poolLock sync.Mutex
	pool     bumpPool

	// regions has its own lock, region_lock, which nests inside both
	// poolLock and heapLock; see poolLock's comment above.
	regions regionRegistry

	brkFailures   atomic.Uint64
	mmapFailures  atomic.Uint64
	emergencyMode atomic.Bool

	lastErr lastErrorSlot
	handler atomic.Value // holds ErrorHandler

	// abortFunc is invoked instead of os.Exit on a fatal error. Overridden
	// only by tests (see the unexported setter in allocator_internal_test.go);
	// production callers always get the real termination behavior §7 calls
	// for.
	abortFunc atomic.Value // holds func(ErrCode, string)
}

// New constructs a ready-to-use Allocator. Its zero value is inert; this is
// the constructor the package-level singleton wrappers call lazily.
func New(opts ...Option) (*Allocator, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	a := &Allocator{cfg: *cfg}
	a.abortFunc.Store(defaultAbort)
	return a, nil
}

func defaultAbort(code ErrCode, msg string) {
	os.Exit(2)
}

// SetErrorHandler registers a callback invoked with the classified error
// code and a message immediately before a recoverable call returns its
// error, or immediately before a fatal call aborts. Restores the
// original_source/include/allocator.h declaration of set_error_handler that
// the distilled spec only gestures at in §7.
func (a *Allocator) SetErrorHandler(h ErrorHandler) {
	if h == nil {
		a.handler.Store(ErrorHandler(nil))
		return
	}
	a.handler.Store(h)
}

func (a *Allocator) invokeHandler(code ErrCode, msg string) {
	v := a.handler.Load()
	if v == nil {
		return
	}
	if h, ok := v.(ErrorHandler); ok && h != nil {
		h(code, msg)
	}
}

// LastError returns the most recently classified failure. It is a
// process-global-style slot, not a queue: it overwrites on every failure.
func (a *Allocator) LastError() ErrCode { return a.lastErr.get() }

// fail records code as the last error, invokes the registered error handler
// if any, and returns the *AllocError a recoverable call should return. Every
// recoverable failure in this file goes through here, per §7's "An optional
// error handler callback may be registered" paired with SetErrorHandler's
// doc comment, except a failed unmap in Close, whose OS error is returned as
// is without setting the last error or invoking the handler.
func (a *Allocator) fail(code ErrCode, msg string) error {
	a.lastErr.set(code)
	a.invokeHandler(code, msg)
	return newAllocError(code, msg)
}

// noteFailure is fail's counterpart for call sites (OS sourcing) that
// already have a concrete error to report rather than building one from a
// code and message. Returns err unchanged so it can be used in a return
// statement.
func (a *Allocator) noteFailure(err error) error {
	if ae, ok := err.(*AllocError); ok {
		a.lastErr.set(ae.Code)
		a.invokeHandler(ae.Code, ae.Msg)
		return err
	}
	a.lastErr.set(ErrOutOfMemory)
	a.invokeHandler(ErrOutOfMemory, err.Error())
	return err
}

func align16(n int) int { return roundUp(n, alignment) }

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// headerSlice builds the []byte view of h's payload with the caller's
// requested length and the block's actual size as capacity, mirroring the
// teacher's own distinction between the bytes a caller asked for and the
// usable bytes backing them (UsableSize can legitimately report more than
// was requested).
func headerSlice(h *blockHeader, length int) []byte {
	var b []byte
	sh := (*reflect.SliceHeader)(unsafe.Pointer(&b))
	sh.Data = uintptr(pointerFromHeader(h))
	sh.Len = length
	sh.Cap = int(h.size)
	return b
}

func sliceAt(addr uintptr, length int) []byte {
	var b []byte
	sh := (*reflect.SliceHeader)(unsafe.Pointer(&b))
	sh.Data = addr
	sh.Len = length
	sh.Cap = length
	return b
}

// Allocate returns a 16-byte-aligned slice of at least n writable bytes, or
// nil with no error for a zero-length request (§4.6 step 2, §8 boundary
// behavior).
func (a *Allocator) Allocate(n int) (r []byte, err error) {
	if DBGon() {
		defer func() {
			var p unsafe.Pointer
			if len(r) != 0 {
				p = unsafe.Pointer(&r[0])
			}
			DBG("Allocate(%#x) %p, %v", n, p, err)
		}()
	}
	if n < 0 {
		panic("heapalloc: invalid allocation size")
	}
	if n == 0 {
		return nil, nil
	}
	want := align16(maxInt(n, minPayload))
	if want < n {
		return nil, a.fail(ErrInvalidSize, "size overflows after alignment")
	}

	if h := a.tryAllocateFromFreeList(uintptr(want)); h != nil {
		return headerSlice(h, n), nil
	}

	total := headerSize + want
	if total < want {
		return nil, a.fail(ErrInvalidSize, "size overflows header accounting")
	}

	base, actual, reg, err := a.acquire(total)
	if err != nil {
		return nil, err
	}
	h := (*blockHeader)(unsafe.Pointer(base))
	// actual can exceed total when the span came from a page-rounded
	// mapping; folding the rounding slack into the block's own size keeps
	// the whole span covered by exactly one header, so the direct-unmap
	// check in releaseHeader and the sequential scan in walk both see a
	// block that spans the entire region, not a block followed by a gap
	// of un-headered bytes.
	//
	// The header is written, and (for a program-break region) the
	// region's used watermark is advanced, in the same heapLock critical
	// section: a concurrent coalesce of this block's left neighbour in
	// the same region takes heapLock before it can see the new watermark
	// (via adjacentNeighbour/usedOf), so it never observes the watermark
	// advanced past a header that isn't there yet.
	a.heapLock.Lock()
	initializeAllocatedBlock(h, uintptr(actual-headerSize))
	if reg.origin == originBrk {
		a.regions.bumpUsed(reg, uintptr(actual))
	}
	a.totalAllocated += h.size
	a.allocationCount++
	a.heapLock.Unlock()

	return headerSlice(h, n), nil
}

// tryAllocateFromFreeList implements the find/unlink/split half of §4.6
// step 4.
func (a *Allocator) tryAllocateFromFreeList(want uintptr) *blockHeader {
	a.heapLock.Lock()
	defer a.heapLock.Unlock()

	b := a.findFreeBlock(want)
	if b == nil {
		return nil
	}
	a.removeFromFreeList(b)
	if canSplit(b, want) {
		remainder := split(b, want)
		a.addToFreeList(remainder)
	}
	b.isFree = blockAllocated
	a.totalAllocated += b.size
	a.allocationCount++
	return b
}

// AllocateZeroed allocates count*elemSize zero-filled bytes, detecting
// overflow in the multiplication before ever calling into Allocate.
func (a *Allocator) AllocateZeroed(count, elemSize int) ([]byte, error) {
	if count < 0 || elemSize < 0 {
		return nil, a.fail(ErrInvalidSize, "negative count or element size")
	}
	if count == 0 || elemSize == 0 {
		return nil, nil
	}
	total, overflow := mulOverflows(count, elemSize)
	if overflow {
		return nil, a.fail(ErrInvalidSize, "count*elemSize overflows")
	}
	b, err := a.Allocate(total)
	if err != nil {
		return nil, err
	}
	for i := range b {
		b[i] = 0
	}
	return b, nil
}

func mulOverflows(a, b int) (int, bool) {
	if a == 0 || b == 0 {
		return 0, false
	}
	p := a * b
	if p/a != b {
		return 0, true
	}
	return p, false
}

// Release frees memory previously returned by Allocate, AllocateZeroed or
// Reallocate. A nil or empty slice is a no-op (§4.6 step 1).
func (a *Allocator) Release(b []byte) (err error) {
	if DBGon() {
		var p unsafe.Pointer
		if len(b) != 0 {
			p = unsafe.Pointer(&b[0])
		}
		defer func() { DBG("Release(%p) %v", p, err) }()
	}
	if len(b) == 0 {
		return nil
	}
	full := b[:cap(b)]
	h := headerFromPointer(unsafe.Pointer(&full[0]))
	return a.releaseHeader(h)
}

// releaseHeader implements §4.6's Release operation and §7's three-tier
// error handling.
func (a *Allocator) releaseHeader(h *blockHeader) error {
	userAddr := uintptr(pointerFromHeader(h))
	status := verifyBlockIntegrity(h)
	switch status {
	case statusValid:
		// fall through
	case statusCorruptMagic:
		a.fatal(ErrCorruption, userAddr, "heap corruption detected: invalid magic number")
		return nil
	case statusInvalidFreeState:
		a.fatal(ErrCorruption, userAddr, "heap corruption detected: invalid free-state tag")
		return nil
	default:
		return a.fail(mapStatusToErrCode(status), status.String())
	}

	if h.isFree == blockFree {
		a.fatal(ErrDoubleFree, userAddr, "double free detected")
		return nil
	}

	a.heapLock.Lock()
	a.totalAllocated -= h.size
	a.allocationCount--
	h.isFree = blockFree

	if r := a.regions.find(uintptr(unsafe.Pointer(h))); r != nil && r.origin == originMmap {
		if uintptr(unsafe.Pointer(h)) == r.base && blockEnd(h) == r.base+r.length {
			a.heapLock.Unlock()
			if err := a.releaseMappedRegion(r.base); err != nil {
				return err
			}
			return nil
		}
	}

	merged := a.coalesce(h)
	a.addToFreeList(merged)
	a.heapLock.Unlock()
	return nil
}

func mapStatusToErrCode(s blockStatus) ErrCode {
	switch s {
	case statusInvalidSize:
		return ErrInvalidSize
	case statusMisaligned:
		return ErrMisaligned
	case statusOutOfBounds:
		return ErrInvalidPointer
	default:
		return ErrInvalidPointer
	}
}

// fatal prints a one-line diagnostic naming the offending user address and
// terminates the process, per §6/§7 tier 3. Test builds may swap abortFunc
// for a non-terminating hook (Design Note, §9).
func (a *Allocator) fatal(code ErrCode, userAddr uintptr, msg string) {
	a.lastErr.set(code)
	text := msg
	BUG("%s at %#x", msg, userAddr)
	a.invokeHandler(code, text)
	abort := a.abortFunc.Load().(func(ErrCode, string))
	abort(code, text)
}

// Reallocate resizes b to n bytes, per §4.6.
func (a *Allocator) Reallocate(b []byte, n int) ([]byte, error) {
	switch {
	case cap(b) == 0:
		return a.Allocate(n)
	case n == 0:
		return nil, a.Release(b)
	}

	full := b[:cap(b)]
	h := headerFromPointer(unsafe.Pointer(&full[0]))
	status := verifyBlockIntegrity(h)
	if status != statusValid {
		return nil, a.fail(mapStatusToErrCode(status), status.String())
	}

	want := align16(maxInt(n, minPayload))
	if uintptr(want) <= h.size {
		return full[:n], nil
	}

	newB, err := a.Allocate(n)
	if err != nil {
		return nil, err
	}
	copy(newB, full)
	if err := a.Release(full); err != nil {
		return nil, err
	}
	return newB, nil
}

// AlignedAllocate returns a slice of size bytes whose address is a multiple
// of alignTo, which must be a power of two and a multiple of Alignment.
// Restores the original_source declared-but-unimplemented aligned_alloc
// (§9, open question 4).
func (a *Allocator) AlignedAllocate(alignTo, size int) ([]byte, error) {
	if size == 0 {
		return nil, nil
	}
	if alignTo <= 0 || alignTo&(alignTo-1) != 0 || alignTo%alignment != 0 {
		return nil, a.fail(ErrInvalidSize, "alignment must be a power of two multiple of 16")
	}
	if alignTo <= alignment {
		return a.Allocate(size)
	}

	n := align16(maxInt(size, minPayload))
	span := 2*headerSize + alignTo + n
	if span <= 0 {
		return nil, a.fail(ErrInvalidSize, "aligned request overflows")
	}

	base, actual, r, err := a.acquire(span)
	if err != nil {
		return nil, err
	}
	// Use the actual span, not the requested one: a mapped span can be
	// larger after page rounding, and folding that slack into the real
	// block (rather than leaving it stranded past the block's end) keeps
	// the whole region covered by the phantom+real pair with no gap for
	// walk's sequential scan to trip over.
	end := base + uintptr(actual)

	phantom := (*blockHeader)(unsafe.Pointer(base))
	phantomPayloadStart := base + uintptr(headerSize)
	alignedUserAddr := roundUpUintptr(phantomPayloadStart+uintptr(headerSize), uintptr(alignTo))
	realHeaderAddr := alignedUserAddr - uintptr(headerSize)
	real := (*blockHeader)(unsafe.Pointer(realHeaderAddr))

	phantomLen := realHeaderAddr - phantomPayloadStart
	realLen := end - alignedUserAddr

	// Both headers are written, and the region's used watermark advanced,
	// under heapLock together — the same publishing order Allocate uses
	// and for the same reason: a concurrent coalesce of the phantom
	// block's left neighbour must never see the watermark move past
	// either header before it is written.
	a.heapLock.Lock()
	initializeAllocatedBlock(phantom, phantomLen)
	initializeAllocatedBlock(real, realLen)
	if r.origin == originBrk {
		a.regions.bumpUsed(r, uintptr(actual))
	}
	a.totalAllocated += phantomLen + realLen
	a.allocationCount += 2
	a.heapLock.Unlock()

	return sliceAt(alignedUserAddr, size), nil
}

func roundUpUintptr(n, m uintptr) uintptr { return (n + m - 1) &^ (m - 1) }

// UsableSize reports the header's size field for a valid allocated pointer,
// or zero otherwise. The usable size can exceed the size originally
// requested.
func (a *Allocator) UsableSize(b []byte) int {
	if len(b) == 0 {
		return 0
	}
	h := headerFromPointer(unsafe.Pointer(&b[0]))
	if verifyBlockIntegrity(h) != statusValid || h.isFree == blockFree {
		return 0
	}
	return int(h.size)
}

// ConsistencyWalk verifies every invariant in spec §3. Safe to call only
// when no mutating operation is in flight (it does not itself take any of
// the three locks for its whole duration, matching §4.8's "safe to call
// when no mutating operation is in flight").
func (a *Allocator) ConsistencyWalk() error {
	return a.walk()
}

// --- unsafe.Pointer mirror API -------------------------------------------

// UnsafeAllocate is like Allocate except it returns an unsafe.Pointer.
func (a *Allocator) UnsafeAllocate(n int) (unsafe.Pointer, error) {
	b, err := a.Allocate(n)
	if err != nil || len(b) == 0 {
		return nil, err
	}
	return unsafe.Pointer(&b[0]), nil
}

// UnsafeAllocateZeroed is like AllocateZeroed except it returns an
// unsafe.Pointer.
func (a *Allocator) UnsafeAllocateZeroed(count, elemSize int) (unsafe.Pointer, error) {
	b, err := a.AllocateZeroed(count, elemSize)
	if err != nil || len(b) == 0 {
		return nil, err
	}
	return unsafe.Pointer(&b[0]), nil
}

// UnsafeRelease is like Release except its argument is an unsafe.Pointer,
// which must have been acquired from one of the Unsafe allocation
// functions.
func (a *Allocator) UnsafeRelease(p unsafe.Pointer) error {
	if p == nil {
		return nil
	}
	h := headerFromPointer(p)
	return a.releaseHeader(h)
}

// UnsafeReallocate is like Reallocate except its first argument and its
// result are unsafe.Pointer.
func (a *Allocator) UnsafeReallocate(p unsafe.Pointer, n int) (unsafe.Pointer, error) {
	if p == nil {
		return a.UnsafeAllocate(n)
	}
	if n == 0 {
		return nil, a.UnsafeRelease(p)
	}
	us := a.UnsafeUsableSize(p)
	full := sliceAt(uintptr(p), us)
	r, err := a.Reallocate(full, n)
	if err != nil || len(r) == 0 {
		return nil, err
	}
	return unsafe.Pointer(&r[0]), nil
}

// UnsafeAlignedAllocate is like AlignedAllocate except it returns an
// unsafe.Pointer.
func (a *Allocator) UnsafeAlignedAllocate(alignTo, size int) (unsafe.Pointer, error) {
	b, err := a.AlignedAllocate(alignTo, size)
	if err != nil || len(b) == 0 {
		return nil, err
	}
	return unsafe.Pointer(&b[0]), nil
}

// UnsafeUsableSize is like UsableSize except its argument is an
// unsafe.Pointer.
func (a *Allocator) UnsafeUsableSize(p unsafe.Pointer) int {
	if p == nil {
		return 0
	}
	h := headerFromPointer(p)
	if verifyBlockIntegrity(h) != statusValid || h.isFree == blockFree {
		return 0
	}
	return int(h.size)
}

// Close releases every mapped region the Allocator still owns and resets it
// to its zero-ish state. Program-break memory is never returned to the OS
// (§1 Non-goals), so this only unmaps; it's not necessary to Close before
// exiting a process, matching the teacher's own doc comment.
func (a *Allocator) Close() error {
	var first error
	for _, r := range a.regions.snapshot() {
		if r.origin != originMmap {
			continue
		}
		if err := munmapRegion(r.base, r.length); err != nil {
			if first == nil {
				first = err
			}
			continue
		}
		a.regions.unregister(r.base)
	}
	a.heapLock.Lock()
	a.freeHead = nil
	a.totalAllocated = 0
	a.totalFree = 0
	a.allocationCount = 0
	a.heapLock.Unlock()
	return first
}
