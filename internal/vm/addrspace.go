package vm

import (
	"sync"

	"github.com/gokern/gokern/internal/abi"
)

// Attrs are the permission bits a mapping carries, the Go mirror of the
// MapWritable/MapUser/MapExecutable bits in package abi.
type Attrs struct {
	Writable   bool
	User       bool
	Executable bool
}

func attrsFromFlags(flags uint32) Attrs {
	return Attrs{
		Writable:   flags&abi.MapWritable != 0,
		User:       flags&abi.MapUser != 0,
		Executable: flags&abi.MapExecutable != 0,
	}
}

const (
	pageShift = 12        // constants.PageSize == 1<<pageShift
	leafBits  = 10        // entries per leaf table
	leafSize  = 1 << leafBits
	leafShift = pageShift + leafBits // bits covered by one leaf table
	leafMask  = leafSize - 1
)

type pte struct {
	paddr Paddr
	attrs Attrs
	valid bool
}

type leaf struct {
	kpage   Paddr // the backing frame the caller supplied to create this leaf
	entries [leafSize]pte
}

// AddressSpace is one task's page-granular vaddr -> paddr mapping: a
// two-level radix scheme in which a leaf table's first creation consumes
// a caller-supplied backing frame.
// There is no implicit kernel memory allocation for page-table structure —
// every leaf is paid for by the kpage argument to Link, matching the "no
// dynamic kernel memory allocation" Non-goal.
type AddressSpace struct {
	mu   sync.Mutex
	dirs map[uintptr]*leaf
}

// NewAddressSpace returns an empty address space (vm_create).
func NewAddressSpace() *AddressSpace {
	return &AddressSpace{dirs: make(map[uintptr]*leaf)}
}

// Link installs vaddr -> paddr with the given attrs (vm_link / MapUpdate).
// If the leaf table covering vaddr does not exist yet, kpage must be a
// frame the caller owns and is donating as page-table backing; passing 0
// when one is needed returns TryAgain so the caller can allocate a frame
// and retry.
func (as *AddressSpace) Link(vaddr uintptr, paddr Paddr, attrs Attrs, kpage Paddr) abi.Code {
	as.mu.Lock()
	defer as.mu.Unlock()

	dirIdx := vaddr >> leafShift
	lf, ok := as.dirs[dirIdx]
	if !ok {
		if kpage == 0 {
			return abi.TryAgain
		}
		lf = &leaf{kpage: kpage}
		as.dirs[dirIdx] = lf
	}

	idx := (vaddr >> pageShift) & leafMask
	lf.entries[idx] = pte{paddr: paddr, attrs: attrs, valid: true}
	return abi.OK
}

// Unlink removes any mapping at vaddr (vm_link / MapDelete). Unmapping an
// unmapped address is a no-op and simply leaves the entry absent.
func (as *AddressSpace) Unlink(vaddr uintptr) {
	as.mu.Lock()
	defer as.mu.Unlock()

	dirIdx := vaddr >> leafShift
	lf, ok := as.dirs[dirIdx]
	if !ok {
		return
	}
	idx := (vaddr >> pageShift) & leafMask
	lf.entries[idx] = pte{}
}

// Resolve translates vaddr to its backing paddr (resolve_paddr). ok is
// false if vaddr is unmapped.
func (as *AddressSpace) Resolve(vaddr uintptr) (Paddr, Attrs, bool) {
	as.mu.Lock()
	defer as.mu.Unlock()

	dirIdx := vaddr >> leafShift
	lf, ok := as.dirs[dirIdx]
	if !ok {
		return 0, Attrs{}, false
	}
	idx := (vaddr >> pageShift) & leafMask
	e := lf.entries[idx]
	if !e.valid {
		return 0, Attrs{}, false
	}
	return e.paddr, e.attrs, true
}

// Destroy tears down every leaf table, returning the kpage frames that were
// donated to back them so the caller (the kernel, freeing a destroyed
// task's resources) can return them to its arena. Leaf-mapped data frames
// are the caller's own responsibility to free; Destroy only reclaims
// page-table structure.
func (as *AddressSpace) Destroy() []Paddr {
	as.mu.Lock()
	defer as.mu.Unlock()

	kpages := make([]Paddr, 0, len(as.dirs))
	for dirIdx, lf := range as.dirs {
		kpages = append(kpages, lf.kpage)
		delete(as.dirs, dirIdx)
	}
	return kpages
}
