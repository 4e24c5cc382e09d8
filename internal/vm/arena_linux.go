//go:build linux

package vm

import (
	"fmt"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/gokern/gokern/internal/constants"
)

// mmapArena backs every frame with a slice of one real anonymous mmap'd
// mapping, so permission changes (Protect) and bulk-copy reads/writes
// touch genuine memory rather than a simulated buffer.
type mmapArena struct {
	mu       sync.Mutex
	region   []byte
	numPages int
	freeList []int // free page indices
	inUse    map[int]bool
}

func newArenaBackend(numPages int) (arenaBackend, error) {
	if numPages <= 0 {
		return nil, fmt.Errorf("vm: arena size must be positive")
	}
	size := numPages * constants.PageSize
	region, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return nil, fmt.Errorf("vm: mmap arena: %w", err)
	}

	freeList := make([]int, numPages)
	for i := range freeList {
		freeList[i] = numPages - 1 - i // pop from the tail, allocate in ascending order
	}

	return &mmapArena{
		region:   region,
		numPages: numPages,
		freeList: freeList,
		inUse:    make(map[int]bool, numPages),
	}, nil
}

func (a *mmapArena) alloc() (Paddr, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(a.freeList) == 0 {
		return 0, fmt.Errorf("vm: arena exhausted")
	}

	idx := a.freeList[len(a.freeList)-1]
	a.freeList = a.freeList[:len(a.freeList)-1]
	a.inUse[idx] = true
	return a.pageAddr(idx), nil
}

func (a *mmapArena) releaseLocked(idx int) {
	delete(a.inUse, idx)
	a.freeList = append(a.freeList, idx)
}

func (a *mmapArena) free(p Paddr) {
	a.mu.Lock()
	defer a.mu.Unlock()

	idx, ok := a.indexOf(p)
	if !ok || !a.inUse[idx] {
		return
	}
	a.releaseLocked(idx)
}

func (a *mmapArena) bytes(p Paddr) []byte {
	a.mu.Lock()
	defer a.mu.Unlock()

	idx, ok := a.indexOf(p)
	if !ok {
		return nil
	}
	start := idx * constants.PageSize
	return a.region[start : start+constants.PageSize]
}

func (a *mmapArena) protect(p Paddr, attrs Attrs) error {
	a.mu.Lock()
	idx, ok := a.indexOf(p)
	a.mu.Unlock()
	if !ok {
		return fmt.Errorf("vm: protect: unknown frame")
	}

	start := idx * constants.PageSize
	page := a.region[start : start+constants.PageSize]

	prot := unix.PROT_READ
	if attrs.Writable {
		prot |= unix.PROT_WRITE
	}
	if attrs.Executable {
		prot |= unix.PROT_EXEC
	}
	return unix.Mprotect(page, prot)
}

func (a *mmapArena) close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.region != nil {
		_ = unix.Munmap(a.region)
		a.region = nil
	}
}

func (a *mmapArena) pageAddr(idx int) Paddr {
	return Paddr(uintptr(idx+1) * constants.PageSize) // idx+1: never return the zero Paddr
}

func (a *mmapArena) indexOf(p Paddr) (int, bool) {
	if p == 0 || uintptr(p)%constants.PageSize != 0 {
		return 0, false
	}
	idx := int(uintptr(p)/constants.PageSize) - 1
	if idx < 0 || idx >= a.numPages {
		return 0, false
	}
	return idx, true
}
