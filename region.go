// Copyright 2026 The Heapalloc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package heapalloc

import "sync"

// regionOrigin tags how a region was acquired from the OS.
type regionOrigin int

const (
	originBrk regionOrigin = iota
	originMmap
)

func (o regionOrigin) String() string {
	if o == originMmap {
		return "mmap"
	}
	return "brk"
}

// region records one span of memory acquired from the OS. Regions never
// overlap and every block lies wholly within exactly one of them.
type region struct {
	base   uintptr
	length uintptr
	origin regionOrigin

	// used is how much of length has actually been carved into blocks so
	// far. A bump-pool region can trail off into un-carved bytes while it
	// is still the active pool; a mapped region is always carved in full
	// the moment it is registered. ConsistencyWalk's sequential scan stops
	// at used, never at length, so it never reads an un-initialized header.
	used uintptr
}

func (r *region) contains(p uintptr) bool {
	return p >= r.base && p < r.base+r.length
}

// regionRegistry is the unordered collection of regions the allocator has
// acquired from the OS. It is guarded by its own lock, region_lock, which
// nests inside both poolLock and heapLock (poolLock > heapLock > region_lock,
// §5) — callers holding either of those locks may call into the registry,
// but the registry itself must never call back out to them.
type regionRegistry struct {
	mu      sync.Mutex
	regions []*region
}

// register adds a freshly acquired span to the registry and returns it.
// Mapped regions start out fully used, since a mapping is always carved
// into blocks in full the moment it is acquired; program-break regions
// start at zero and grow via bumpUsed as the pool carves them.
func (rr *regionRegistry) register(base, length uintptr, origin regionOrigin) *region {
	rr.mu.Lock()
	defer rr.mu.Unlock()
	r := &region{base: base, length: length, origin: origin}
	if origin == originMmap {
		r.used = length
	}
	rr.regions = append(rr.regions, r)
	return r
}

// bumpUsed grows r's carved-byte count. Mutating the region's used field
// always goes through the registry lock, even though heapLock/poolLock may
// also be held by the caller, so that find/snapshot/walk never observe a
// torn write.
func (rr *regionRegistry) bumpUsed(r *region, n uintptr) {
	rr.mu.Lock()
	defer rr.mu.Unlock()
	r.used += n
}

// usedOf returns r's current carved-byte count under region_lock,
// synchronizing with bumpUsed's writer. r.used must never be read directly:
// it is mutated concurrently by a carve from the same region (acquireBrk's
// existing-pool path, published under heapLock from Allocate/AlignedAllocate)
// while a physically adjacent block in that region is being coalesced on
// release, and a bare field read would race with that write.
func (rr *regionRegistry) usedOf(r *region) uintptr {
	rr.mu.Lock()
	defer rr.mu.Unlock()
	return r.used
}

// find returns the region whose interval contains ptr, if any. A linear
// scan, as the spec mandates: the registry is never expected to hold more
// than a few thousand entries for a single process.
func (rr *regionRegistry) find(ptr uintptr) *region {
	rr.mu.Lock()
	defer rr.mu.Unlock()
	for _, r := range rr.regions {
		if r.contains(ptr) {
			return r
		}
	}
	return nil
}

func (rr *regionRegistry) unregister(base uintptr) bool {
	rr.mu.Lock()
	defer rr.mu.Unlock()
	for i, r := range rr.regions {
		if r.base == base {
			rr.regions = append(rr.regions[:i], rr.regions[i+1:]...)
			return true
		}
	}
	return false
}

func (rr *regionRegistry) snapshot() []region {
	rr.mu.Lock()
	defer rr.mu.Unlock()
	out := make([]region, len(rr.regions))
	for i, r := range rr.regions {
		out[i] = *r
	}
	return out
}
