// Copyright 2026 The Heapalloc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package heapalloc

import "testing"

// interceptAbort swaps a's fatal-path hook for f so a test can observe a
// double-free or corruption report without the process exiting, restoring
// the original hook when the test completes. f must not return normally if
// it wants to emulate the real abort behavior; the production path never
// returns from abortFunc either.
func interceptAbort(t testing.TB, a *Allocator, f func(ErrCode, string)) {
	t.Helper()
	prev := a.abortFunc.Load()
	a.abortFunc.Store(f)
	t.Cleanup(func() { a.abortFunc.Store(prev) })
}
