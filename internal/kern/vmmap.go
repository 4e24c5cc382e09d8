package kern

import (
	"github.com/gokern/gokern/internal/abi"
	"github.com/gokern/gokern/internal/constants"
	"github.com/gokern/gokern/internal/vm"
)

// Map installs or removes a mapping in dst's address space:
// map(tid, vaddr, src_vaddr, kpage_vaddr, flags). srcVaddr names a page
// in caller's own address space whose backing frame is mapped into dst at
// vaddr; kpage names an auxiliary page donated as page-table backing if a
// new leaf table is needed. When caller is the initial task, srcVaddr and
// kpage are taken to already be physical frame addresses (vm.Paddr) rather than
// addresses resolved through a page table — the root pager is the one task
// that deals in frames directly.
func (k *Kernel) Map(caller *TCB, dstTid abi.Tid, vaddr, srcVaddr, kpage uintptr, flags uint32) abi.Code {
	if !pageAligned(vaddr) || !pageAligned(srcVaddr) || !pageAligned(kpage) {
		return abi.InvalidArg
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	dst, code := k.lookupLocked(dstTid)
	if code != abi.OK {
		return code
	}

	if flags&abi.MapDelete != 0 {
		dst.Vm.Unlink(vaddr)
		if flags&abi.MapUpdate == 0 {
			return abi.OK
		}
	}
	if flags&abi.MapUpdate == 0 {
		return abi.OK
	}

	if k.arena == nil {
		return abi.NoMemory
	}

	srcPaddr, ok := k.resolveCallerFrameLocked(caller, srcVaddr)
	if !ok {
		return abi.NotFound
	}

	var kpagePaddr vm.Paddr
	if kpage != 0 {
		kpagePaddr, ok = k.resolveCallerFrameLocked(caller, kpage)
		if !ok {
			return abi.NotFound
		}
	}

	attrs := vm.Attrs{
		Writable:   flags&abi.MapWritable != 0,
		User:       flags&abi.MapUser != 0,
		Executable: flags&abi.MapExecutable != 0,
	}
	if code := dst.Vm.Link(vaddr, srcPaddr, attrs, kpagePaddr); code != abi.OK {
		return code
	}
	if err := k.arena.Protect(srcPaddr, attrs); err != nil {
		return abi.NoMemory
	}
	return abi.OK
}

// resolveCallerFrameLocked translates a caller-relative address into a
// physical frame: when the caller is the initial task, addresses are
// taken to be already physical.
func (k *Kernel) resolveCallerFrameLocked(caller *TCB, addr uintptr) (vm.Paddr, bool) {
	if caller.Tid == abi.InitTid {
		return vm.Paddr(addr), true
	}
	paddr, _, ok := caller.Vm.Resolve(addr)
	return paddr, ok
}

func pageAligned(addr uintptr) bool {
	return addr%constants.PageSize == 0
}
