// Package vm implements the per-task address-space map façade:
// link/unlink/resolve over a page-granular mapping, backed by a pool of
// real physical-style page frames.
//
// Physical frames are real memory: on Linux, Arena hands out anonymous
// mmap'd pages (internal/vm/arena_linux.go) so that Arena.Protect, which the
// kernel's Map calls on a frame after linking it, applies genuine mprotect
// permissions (Link and Unlink themselves change no protection), and the bulk-copy protocol
// (internal/bulk) can read and write actual bytes through a resolved
// paddr. Non-Linux builds fall back to a plain Go-heap arena
// (internal/vm/arena_stub.go) with the same allocate/free/bytes contract.
package vm

// Paddr is an opaque physical frame address. The only operations defined
// on it are Arena.Alloc (produces one), Arena.Free (consumes one), and
// Arena.Bytes (maps one to its backing storage) — exactly the "black box"
// contract assigned to page-table primitives.
type Paddr uintptr

// arenaBackend is implemented once per build (arena_linux.go, arena_stub.go).
type arenaBackend interface {
	alloc() (Paddr, error)
	free(Paddr)
	bytes(Paddr) []byte
	protect(Paddr, Attrs) error
	close()
}

// Arena is a fixed-size pool of page frames, standing in for the
// kernel-owned physical memory that backs address-space mappings and
// intermediate page tables. It does not grow: callers that exhaust it get
// NoMemory, matching the "no dynamic kernel memory allocation"
// Non-goal.
type Arena struct {
	backend arenaBackend
}

// NewArena creates a pool of numPages page frames.
func NewArena(numPages int) (*Arena, error) {
	backend, err := newArenaBackend(numPages)
	if err != nil {
		return nil, err
	}
	return &Arena{backend: backend}, nil
}

// Alloc reserves one frame, or returns ok=false if the arena is exhausted.
func (a *Arena) Alloc() (Paddr, bool) {
	p, err := a.backend.alloc()
	if err != nil {
		return 0, false
	}
	return p, true
}

// Free returns a frame to the pool.
func (a *Arena) Free(p Paddr) {
	a.backend.free(p)
}

// Bytes returns the page-sized byte window backing p. The returned slice
// aliases real memory; callers must not retain it past a Free.
func (a *Arena) Bytes(p Paddr) []byte {
	return a.backend.bytes(p)
}

// Protect applies permission attrs to the frame backing p.
func (a *Arena) Protect(p Paddr, attrs Attrs) error {
	return a.backend.protect(p, attrs)
}

// Close releases the whole arena.
func (a *Arena) Close() {
	a.backend.close()
}
