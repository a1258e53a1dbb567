// Copyright 2011 Evan Shaw. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE-MMAP-GO file.
//
// Modifications (c) 2026 The Heapalloc Authors.

//go:build windows

package heapalloc

import (
	"errors"
	"os"
	"reflect"
	"sync"
	"syscall"
	"unsafe"
)

var osPageSize = os.Getpagesize()

// handleMu guards handleMap: once a view is unmapped the OS may hand the
// same address back to a new mapping, so lookup and deletion must be
// atomic with respect to each other.
var handleMu sync.Mutex
var handleMap = map[uintptr]syscall.Handle{}

// mmapAnonymous is a two-step process on Windows: CreateFileMapping gets a
// handle, MapViewOfFile gets an actual pointer into memory.
func mmapAnonymous(size int) ([]byte, error) {
	flProtect := uint32(syscall.PAGE_READWRITE)
	dwDesiredAccess := uint32(syscall.FILE_MAP_WRITE)

	maxSizeHigh := uint32(int64(size) >> 32)
	maxSizeLow := uint32(int64(size) & 0xFFFFFFFF)
	h, errno := syscall.CreateFileMapping(syscall.Handle(^uintptr(0)), nil, flProtect, maxSizeHigh, maxSizeLow, nil)
	if h == 0 {
		return nil, newAllocError(ErrOutOfMemory, os.NewSyscallError("CreateFileMapping", errno).Error())
	}

	addr, errno := syscall.MapViewOfFile(h, dwDesiredAccess, 0, 0, uintptr(size))
	if addr == 0 {
		return nil, newAllocError(ErrOutOfMemory, os.NewSyscallError("MapViewOfFile", errno).Error())
	}
	if addr&uintptr(osPageSize-1) != 0 {
		panic("heapalloc: kernel returned a misaligned mapping")
	}

	handleMu.Lock()
	handleMap[addr] = h
	handleMu.Unlock()

	var b []byte
	sh := (*reflect.SliceHeader)(unsafe.Pointer(&b))
	sh.Data = addr
	sh.Len = size
	sh.Cap = size
	return b, nil
}

func munmapRegion(base uintptr, length uintptr) error {
	err := syscall.UnmapViewOfFile(base)
	if err != nil {
		return err
	}

	handleMu.Lock()
	handle, ok := handleMap[base]
	if ok {
		delete(handleMap, base)
	}
	handleMu.Unlock()
	if !ok {
		return errors.New("heapalloc: unknown mapping base address")
	}

	e := syscall.CloseHandle(handle)
	return os.NewSyscallError("CloseHandle", e)
}
