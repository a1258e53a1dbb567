// Copyright 2026 The Heapalloc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package heapalloc

import (
	"fmt"
	"sync/atomic"
)

// ErrCode classifies an allocator failure. Values mirror
// original_source/include/allocator.h's alloc_error_t.
type ErrCode int

const (
	ErrSuccess ErrCode = iota
	ErrOutOfMemory
	ErrInvalidSize
	ErrDoubleFree
	ErrCorruption
	ErrMisaligned
	ErrInvalidPointer
)

// Error lets a bare ErrCode be used as the target of errors.Is(err, code)
// directly, without wrapping it in an *AllocError first.
func (e ErrCode) Error() string { return e.String() }

func (e ErrCode) String() string {
	switch e {
	case ErrSuccess:
		return "success"
	case ErrOutOfMemory:
		return "out of memory"
	case ErrInvalidSize:
		return "invalid size"
	case ErrDoubleFree:
		return "double free"
	case ErrCorruption:
		return "heap corruption"
	case ErrMisaligned:
		return "misaligned pointer"
	case ErrInvalidPointer:
		return "invalid pointer"
	default:
		return "unknown allocator error"
	}
}

// AllocError is the error type returned by recoverable allocator failures.
// It satisfies errors.Is against the bare ErrCode values.
type AllocError struct {
	Code ErrCode
	Msg  string
}

func (e *AllocError) Error() string {
	if e.Msg == "" {
		return e.Code.String()
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

// Is lets errors.Is(err, heapalloc.ErrDoubleFree) work directly against the
// ErrCode constants, without callers needing to unwrap *AllocError by hand.
func (e *AllocError) Is(target error) bool {
	code, ok := target.(interface{ allocErrCode() ErrCode })
	if !ok {
		return false
	}
	return e.Code == code.allocErrCode()
}

func (c ErrCode) allocErrCode() ErrCode { return c }

func newAllocError(code ErrCode, msg string) *AllocError {
	return &AllocError{Code: code, Msg: msg}
}

// ErrorHandler is invoked, if registered, with the classified error code and
// a human-readable message immediately before a recoverable call returns its
// error, or immediately before a fatal call aborts the process.
type ErrorHandler func(code ErrCode, msg string)

// lastErrorSlot is the last-error slot described in §4.8; each Allocator
// holds one, so the package-level LastError reads the process-wide
// instance's. It is not a queue: each failure overwrites the previous value.
type lastErrorSlot struct {
	v atomic.Value // holds ErrCode
}

func (s *lastErrorSlot) set(code ErrCode) {
	s.v.Store(code)
}

func (s *lastErrorSlot) get() ErrCode {
	v := s.v.Load()
	if v == nil {
		return ErrSuccess
	}
	return v.(ErrCode)
}
