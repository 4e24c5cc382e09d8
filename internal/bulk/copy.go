// Package bulk implements the out-of-line bulk transfer protocol served by
// the root pager: AcceptBulk/DoBulk/VerifyBulk move large payloads
// directly between two tasks' address spaces, bypassing the inline
// Message slot entirely. This package supplies the page-walking copy;
// internal/kern's bulk.go supplies the rendezvous bookkeeping (acceptance
// state, sender queue) that needs the kernel's lock and TCB fields.
package bulk

import (
	"github.com/gokern/gokern/internal/constants"
	"github.com/gokern/gokern/internal/vm"
)

// CopyPages moves length bytes from srcAddr in src to dstAddr in dst, one
// page-crossing run at a time, resolving each page to a paddr through src
// and dst and reaching the frames' bytes through the supplied arena, then
// memcpy-ing each run through a scratch window.
//
// On a resolve failure CopyPages stops immediately and reports which side
// faulted; bytes already copied in prior iterations stay copied rather than
// being unwound.
func CopyPages(arena *vm.Arena, src, dst *vm.AddressSpace, srcAddr, dstAddr uintptr, length uint32) (copied uint32, srcFault, dstFault bool) {
	remaining := length
	pool := bufferFor(length)
	defer putBuffer(pool)

	for remaining > 0 {
		srcOff := uint32(srcAddr % constants.PageSize)
		dstOff := uint32(dstAddr % constants.PageSize)
		runLen := min3(remaining, constants.PageSize-srcOff, constants.PageSize-dstOff)

		srcPage, _, ok := src.Resolve(srcAddr)
		if !ok {
			return copied, true, false
		}
		dstPage, dstAttrs, ok := dst.Resolve(dstAddr)
		if !ok {
			return copied, false, true
		}
		if !dstAttrs.Writable {
			return copied, false, true
		}

		srcBytes := arena.Bytes(srcPage)
		dstBytes := arena.Bytes(dstPage)
		staged := pool[:runLen]
		copy(staged, srcBytes[srcOff:srcOff+runLen])
		copy(dstBytes[dstOff:dstOff+runLen], staged)

		copied += runLen
		remaining -= runLen
		srcAddr += uintptr(runLen)
		dstAddr += uintptr(runLen)
	}

	return copied, false, false
}

func min3(a, b, c uint32) uint32 {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}
