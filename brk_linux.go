// Copyright 2026 The Heapalloc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build linux

package heapalloc

import "syscall"

// brkSupported is true on platforms where program-break extension is
// available. Linux exposes the brk(2) syscall directly; the teacher
// (cznic/memory) never needed this path since it is mmap-only, so this is
// grounded directly on original_source/src/allocator.c's acquire_memory_sbrk
// and reimplemented with the same raw-syscall style the teacher uses for
// munmap (cznic-memory/mmap_unix.go).
const brkSupported = true

// currentBreak returns the process's current program break.
func currentBreak() (uintptr, error) {
	addr, _, errno := syscall.RawSyscall(syscall.SYS_BRK, 0, 0, 0)
	if errno != 0 {
		return 0, errno
	}
	return addr, nil
}

// brkExtend moves the program break forward by size bytes and returns the
// base address of the newly extended span. It never shrinks the break: the
// spec's non-goal is explicit that program-break memory is never returned
// to the OS.
func brkExtend(size int) (uintptr, error) {
	cur, err := currentBreak()
	if err != nil {
		return 0, err
	}

	want := cur + uintptr(size)
	got, _, errno := syscall.RawSyscall(syscall.SYS_BRK, want, 0, 0)
	if errno != 0 {
		return 0, errno
	}
	if got < want {
		// The kernel refused to grow the break as far as requested.
		return 0, syscall.ENOMEM
	}
	return cur, nil
}
