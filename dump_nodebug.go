// Copyright 2026 The Heapalloc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build nodebug

package heapalloc

import "io"

// DumpLayout is a no-op under the nodebug build tag.
func (a *Allocator) DumpLayout(w io.Writer) error { return nil }

// DumpFreeList is a no-op under the nodebug build tag.
func (a *Allocator) DumpFreeList(w io.Writer) error { return nil }
