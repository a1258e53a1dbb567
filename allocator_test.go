// Copyright 2026 The Heapalloc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package heapalloc

import (
	"errors"
	"testing"
)

func newTestAllocator(t *testing.T) *Allocator {
	t.Helper()
	a, err := New(WithMinBrkExtension(4096))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return a
}

func fill(b []byte, pattern byte) {
	for i := range b {
		b[i] = pattern
	}
}

func verifyFill(t *testing.T, b []byte, pattern byte) {
	t.Helper()
	for i, v := range b {
		if v != pattern {
			t.Fatalf("byte %d = %#x, want %#x", i, v, pattern)
		}
	}
}

// AlignmentSweep covers spec scenario 1.
func TestAllocateAlignmentSweep(t *testing.T) {
	a := newTestAllocator(t)
	sizes := []int{1, 7, 8, 15, 16, 17, 31, 32, 33, 63, 64, 65, 127, 128, 129}
	for _, s := range sizes {
		p, err := a.Allocate(s)
		if err != nil {
			t.Fatalf("Allocate(%d): %v", s, err)
		}
		if len(p) != s {
			t.Fatalf("Allocate(%d) returned len %d", s, len(p))
		}
		addr := uintptrOf(p)
		if addr%alignment != 0 {
			t.Fatalf("Allocate(%d) returned unaligned address %#x", s, addr)
		}
		fill(p, 0xCC)
		verifyFill(t, p, 0xCC)
		if err := a.Release(p); err != nil {
			t.Fatalf("Release: %v", err)
		}
	}
}

// AllocateZeroed zeroing, spec scenario 2.
func TestAllocateZeroedZeroesPayload(t *testing.T) {
	a := newTestAllocator(t)
	p, err := a.AllocateZeroed(10, 64)
	if err != nil {
		t.Fatalf("AllocateZeroed: %v", err)
	}
	if len(p) != 640 {
		t.Fatalf("len = %d, want 640", len(p))
	}
	for i, v := range p {
		if v != 0 {
			t.Fatalf("byte %d = %#x, want 0", i, v)
		}
	}
	if err := a.Release(p); err != nil {
		t.Fatalf("Release: %v", err)
	}
}

// Reallocate preserves data, spec scenario 3.
func TestReallocatePreservesData(t *testing.T) {
	a := newTestAllocator(t)
	p, err := a.Allocate(64)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	fill(p, 0xDD)

	q, err := a.Reallocate(p, 128)
	if err != nil {
		t.Fatalf("Reallocate grow: %v", err)
	}
	if len(q) != 128 {
		t.Fatalf("len(q) = %d, want 128", len(q))
	}
	verifyFill(t, q[:64], 0xDD)

	r, err := a.Reallocate(q, 32)
	if err != nil {
		t.Fatalf("Reallocate shrink: %v", err)
	}
	if len(r) != 32 {
		t.Fatalf("len(r) = %d, want 32", len(r))
	}
	verifyFill(t, r, 0xDD)

	r2, err := a.Reallocate(r, 0)
	if err != nil {
		t.Fatalf("Reallocate to zero: %v", err)
	}
	if r2 != nil {
		t.Fatalf("Reallocate(_, 0) = %v, want nil", r2)
	}
}

// Large request crosses the mmap threshold, spec scenario 4.
func TestAllocateCrossesMmapThreshold(t *testing.T) {
	a := newTestAllocator(t)
	p, err := a.Allocate(262144)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if len(p) != 262144 {
		t.Fatalf("len = %d, want 262144", len(p))
	}
	fill(p, 0xAB)
	verifyFill(t, p, 0xAB)
	if err := a.Release(p); err != nil {
		t.Fatalf("Release: %v", err)
	}
}

// Fragmentation then reuse, spec scenario 5.
func TestFragmentationThenReuse(t *testing.T) {
	a := newTestAllocator(t)
	var ps [10][]byte
	for i := range ps {
		p, err := a.Allocate(64)
		if err != nil {
			t.Fatalf("Allocate %d: %v", i, err)
		}
		ps[i] = p
	}
	for i := 0; i < len(ps); i += 2 {
		if err := a.Release(ps[i]); err != nil {
			t.Fatalf("Release %d: %v", i, err)
		}
	}
	for i := 0; i < 5; i++ {
		p, err := a.Allocate(64)
		if err != nil {
			t.Fatalf("reuse Allocate %d: %v", i, err)
		}
		ps[2*i] = p
	}
	for _, p := range ps {
		if err := a.Release(p); err != nil {
			t.Fatalf("final Release: %v", err)
		}
	}
	if err := a.ConsistencyWalk(); err != nil {
		t.Fatalf("ConsistencyWalk: %v", err)
	}
}

// Corruption detection, spec scenario 6.
func TestVerifyBlockIntegrityDetectsCorruptMagic(t *testing.T) {
	a := newTestAllocator(t)
	p, err := a.Allocate(64)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	h := headerFromPointer(uintptrToPointer(uintptrOf(p)))
	h.magic = 0xBAD
	if status := verifyBlockIntegrity(h); status != statusCorruptMagic {
		t.Fatalf("verifyBlockIntegrity = %v, want corrupt magic", status)
	}

	var aborted ErrCode
	var abortMsg string
	interceptAbort(t, a, func(code ErrCode, msg string) {
		aborted = code
		abortMsg = msg
		panic("test abort")
	})
	func() {
		defer func() {
			if r := recover(); r == nil {
				t.Fatal("expected Release to invoke the abort hook")
			}
		}()
		a.Release(p)
	}()
	if aborted != ErrCorruption {
		t.Fatalf("aborted code = %v, want ErrCorruption (%s)", aborted, abortMsg)
	}
}

func TestReleaseDoubleFreeIsFatal(t *testing.T) {
	a := newTestAllocator(t)
	p, err := a.Allocate(32)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if err := a.Release(p); err != nil {
		t.Fatalf("first Release: %v", err)
	}

	var aborted ErrCode
	interceptAbort(t, a, func(code ErrCode, msg string) {
		aborted = code
		panic("test abort")
	})
	func() {
		defer func() { recover() }()
		a.Release(p)
	}()
	if aborted != ErrDoubleFree {
		t.Fatalf("aborted code = %v, want ErrDoubleFree", aborted)
	}
	if !errors.Is(newAllocError(ErrDoubleFree, "x"), ErrDoubleFree) {
		t.Fatal("errors.Is should match a bare ErrCode target")
	}
}

func TestReleaseNilIsNoOp(t *testing.T) {
	a := newTestAllocator(t)
	if err := a.Release(nil); err != nil {
		t.Fatalf("Release(nil) = %v, want nil", err)
	}
}

func TestAllocateZeroReturnsNil(t *testing.T) {
	a := newTestAllocator(t)
	p, err := a.Allocate(0)
	if err != nil || p != nil {
		t.Fatalf("Allocate(0) = (%v, %v), want (nil, nil)", p, err)
	}
}

func TestAllocateNegativePanics(t *testing.T) {
	a := newTestAllocator(t)
	defer func() {
		if recover() == nil {
			t.Fatal("Allocate(-1) should panic")
		}
	}()
	a.Allocate(-1)
}

func TestAllocateZeroedOverflowDetected(t *testing.T) {
	a := newTestAllocator(t)
	const big = int(^uint(0) >> 1) // max int, stands in for SIZE_MAX/2
	p, err := a.AllocateZeroed(big, 2)
	if p != nil || err == nil {
		t.Fatalf("AllocateZeroed(overflowing) = (%v, %v), want (nil, non-nil)", p, err)
	}
	if !errors.Is(err, ErrInvalidSize) {
		t.Fatalf("err = %v, want ErrInvalidSize", err)
	}
}

func TestAlignedAllocateRejectsNonPowerOfTwo(t *testing.T) {
	a := newTestAllocator(t)
	p, err := a.AlignedAllocate(48, 64)
	if p != nil || err == nil {
		t.Fatalf("AlignedAllocate(48, ...) = (%v, %v), want (nil, non-nil)", p, err)
	}
}

func TestAlignedAllocateSatisfiesAlignment(t *testing.T) {
	a := newTestAllocator(t)
	for _, align := range []int{32, 64, 256, 4096} {
		p, err := a.AlignedAllocate(align, 100)
		if err != nil {
			t.Fatalf("AlignedAllocate(%d, 100): %v", align, err)
		}
		if uintptrOf(p)%uintptr(align) != 0 {
			t.Fatalf("AlignedAllocate(%d, ...) address %#x not aligned", align, uintptrOf(p))
		}
		fill(p, 0xEE)
		verifyFill(t, p, 0xEE)
		if err := a.Release(p); err != nil {
			t.Fatalf("Release aligned block: %v", err)
		}
	}
}

func TestUsableSizeCanExceedRequest(t *testing.T) {
	a := newTestAllocator(t)
	p, err := a.Allocate(1)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if got := a.UsableSize(p); got <= 1 {
		t.Fatalf("UsableSize = %d, want > 1 (rounded up to the minimum payload)", got)
	}
}

func TestConsistencyWalkCleanAfterMixedUse(t *testing.T) {
	a := newTestAllocator(t)
	var ps [][]byte
	for i := 0; i < 20; i++ {
		p, err := a.Allocate(16 + i*8)
		if err != nil {
			t.Fatalf("Allocate: %v", err)
		}
		ps = append(ps, p)
	}
	for i := 0; i < len(ps); i += 3 {
		if err := a.Release(ps[i]); err != nil {
			t.Fatalf("Release: %v", err)
		}
		ps[i] = nil
	}
	if err := a.ConsistencyWalk(); err != nil {
		t.Fatalf("ConsistencyWalk: %v", err)
	}
	for _, p := range ps {
		if p != nil {
			a.Release(p)
		}
	}
	if err := a.ConsistencyWalk(); err != nil {
		t.Fatalf("ConsistencyWalk after full release: %v", err)
	}
}

func TestSizeClassAndClassSize(t *testing.T) {
	cases := []struct {
		n    int
		want int
	}{
		{1, 0}, {16, 0}, {17, 1}, {1024, 6}, {1025, 7},
	}
	for _, c := range cases {
		if got := SizeClass(c.n); got != c.want {
			t.Errorf("SizeClass(%d) = %d, want %d", c.n, got, c.want)
		}
	}
	if got := ClassSize(0); got != 16 {
		t.Errorf("ClassSize(0) = %d, want 16", got)
	}
	if got := ClassSize(-1); got != 0 {
		t.Errorf("ClassSize(-1) = %d, want 0", got)
	}
	if got := ClassSize(len(sizeClasses)); got != 0 {
		t.Errorf("ClassSize(out of range) = %d, want 0", got)
	}
}
