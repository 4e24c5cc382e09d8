package kern

import (
	"github.com/gokern/gokern/internal/abi"
	"github.com/gokern/gokern/internal/constants"
	"github.com/gokern/gokern/internal/vm"
)

// LoadSegment maps numPages frames at vaddr in t's address space. This is
// the kernel-side half of boot image loading: package bootimage only
// decodes the wire format, and the boot loader (cmd/kerndemo, or a test)
// hands each decoded segment to this method one at a time. Pages
// are backed by fresh frames from the kernel's own arena rather than frames
// the caller already owns, since there is no task executing yet to play the
// pager role the ordinary Map syscall assumes. Non-zeroed segments are
// populated from data, truncated or zero-padded to the segment's page
// count; zeroed segments start as all-zero frames, matching fresh
// arena.Alloc output.
func (k *Kernel) LoadSegment(t *TCB, vaddr uintptr, numPages int, data []byte, zeroed bool, attrs vm.Attrs) abi.Code {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.arena == nil {
		return abi.NoMemory
	}

	for i := 0; i < numPages; i++ {
		frame, ok := k.arena.Alloc()
		if !ok {
			return abi.NoMemory
		}

		if !zeroed {
			dst := k.arena.Bytes(frame)
			start := i * constants.PageSize
			if start < len(data) {
				end := start + constants.PageSize
				if end > len(data) {
					end = len(data)
				}
				copy(dst, data[start:end])
			}
		}

		pageVaddr := vaddr + uintptr(i*constants.PageSize)
		code := t.Vm.Link(pageVaddr, frame, attrs, 0)
		if code == abi.TryAgain {
			kpage, ok := k.arena.Alloc()
			if !ok {
				return abi.NoMemory
			}
			code = t.Vm.Link(pageVaddr, frame, attrs, kpage)
		}
		if code != abi.OK {
			return code
		}
	}

	return abi.OK
}
