// Copyright 2026 The Heapalloc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build darwin || dragonfly || freebsd || linux || openbsd || netbsd || solaris

package heapalloc

import (
	"os"
	"reflect"
	"unsafe"

	"golang.org/x/sys/unix"
)

var osPageSize = os.Getpagesize()

// mmapAnonymous asks the kernel for a private, anonymous, read/write
// mapping of at least size bytes, rounded up to the page size.
func mmapAnonymous(size int) ([]byte, error) {
	b, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, classifyMmapErrno(err)
	}
	if uintptr(unsafe.Pointer(&b[0]))&uintptr(osPageSize-1) != 0 {
		panic("heapalloc: kernel returned a misaligned mapping")
	}
	return b, nil
}

func munmapRegion(base uintptr, length uintptr) error {
	var b []byte
	sh := (*reflect.SliceHeader)(unsafe.Pointer(&b))
	sh.Data = base
	sh.Len = int(length)
	sh.Cap = int(length)
	return unix.Munmap(b)
}

// classifyMmapErrno maps a mapping failure into the out-of-memory /
// invalid-size buckets §4.3 asks for.
func classifyMmapErrno(err error) error {
	if errno, ok := err.(unix.Errno); ok {
		switch errno {
		case unix.ENOMEM:
			return newAllocError(ErrOutOfMemory, "mmap: "+err.Error())
		case unix.EINVAL:
			return newAllocError(ErrInvalidSize, "mmap: "+err.Error())
		}
	}
	return newAllocError(ErrOutOfMemory, "mmap: "+err.Error())
}
