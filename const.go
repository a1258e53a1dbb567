// Copyright 2026 The Heapalloc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package heapalloc

// Public constants from spec §6.
const (
	// Alignment every user-visible address satisfies.
	Alignment = alignment
	// MmapThreshold is the default aligned-request size at or above which
	// anonymous mapping is preferred over program-break extension.
	MmapThreshold = mmapThreshold
	// Magic is the block header sentinel used to detect corruption.
	Magic = magic
)

const (
	alignment     = 16
	mmapThreshold = 131072 // 128 KiB
)
