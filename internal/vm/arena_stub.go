//go:build !linux

package vm

import (
	"fmt"
	"sync"

	"github.com/gokern/gokern/internal/constants"
)

// heapArena backs every frame with a slice of a plain Go byte slice. It
// gives the same allocate/free/bytes contract as mmapArena without relying
// on platform mmap support; Protect is a bookkeeping no-op since the Go
// heap has no page permission bits to flip.
type heapArena struct {
	mu       sync.Mutex
	region   []byte
	numPages int
	freeList []int
	inUse    map[int]bool
}

func newArenaBackend(numPages int) (arenaBackend, error) {
	if numPages <= 0 {
		return nil, fmt.Errorf("vm: arena size must be positive")
	}

	freeList := make([]int, numPages)
	for i := range freeList {
		freeList[i] = numPages - 1 - i
	}

	return &heapArena{
		region:   make([]byte, numPages*constants.PageSize),
		numPages: numPages,
		freeList: freeList,
		inUse:    make(map[int]bool, numPages),
	}, nil
}

func (a *heapArena) alloc() (Paddr, error) {
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

func (a *heapArena) free(p Paddr) {
	a.mu.Lock()
	defer a.mu.Unlock()

	idx, ok := a.indexOf(p)
	if !ok || !a.inUse[idx] {
		return
	}
	delete(a.inUse, idx)
	a.freeList = append(a.freeList, idx)
}

func (a *heapArena) bytes(p Paddr) []byte {
	a.mu.Lock()
	defer a.mu.Unlock()

	idx, ok := a.indexOf(p)
	if !ok {
		return nil
	}
	start := idx * constants.PageSize
	return a.region[start : start+constants.PageSize]
}

// protect is a no-op: the Go heap offers no page-protection primitive. The
// mmap-backed Linux arena is the one that gives Writable/Executable real
// teeth; this fallback only needs to preserve the interface.
func (a *heapArena) protect(Paddr, Attrs) error { return nil }

func (a *heapArena) close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.region = nil
}

func (a *heapArena) pageAddr(idx int) Paddr {
	return Paddr(uintptr(idx+1) * constants.PageSize)
}

func (a *heapArena) indexOf(p Paddr) (int, bool) {
	if p == 0 || uintptr(p)%constants.PageSize != 0 {
		return 0, false
	}
	idx := int(uintptr(p)/constants.PageSize) - 1
	if idx < 0 || idx >= a.numPages {
		return 0, false
	}
	return idx, true
}
