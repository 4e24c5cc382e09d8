package kern

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gokern/gokern/internal/abi"
	"github.com/gokern/gokern/internal/vm"
)

func TestMapRejectsMisalignedAddresses(t *testing.T) {
	k, _, a, _ := newTestKernel(t)
	init, _ := k.Lookup(abi.InitTid)

	code := k.Map(init, a.Tid, 0x1001, 0x1000, 0, abi.MapUpdate|abi.MapWritable)
	require.Equal(t, abi.InvalidArg, code)
}

func TestMapFromInitTaskTreatsAddressesAsPhysical(t *testing.T) {
	k, _, a, _ := newTestKernel(t)
	init, _ := k.Lookup(abi.InitTid)

	frame, ok := k.arena.Alloc()
	require.True(t, ok)
	kpage, ok := k.arena.Alloc()
	require.True(t, ok)

	copy(k.arena.Bytes(frame), []byte("init-owned frame"))

	code := k.Map(init, a.Tid, 0x3000, uintptr(frame), uintptr(kpage), abi.MapUpdate|abi.MapWritable|abi.MapUser)
	require.Equal(t, abi.OK, code)

	paddr, attrs, ok := a.Vm.Resolve(0x3000)
	require.True(t, ok)
	require.Equal(t, frame, paddr)
	require.True(t, attrs.Writable)
	require.Equal(t, "init-owned frame", string(k.arena.Bytes(paddr)[:16]))
}

func TestMapFromOrdinaryTaskResolvesThroughItsOwnAddressSpace(t *testing.T) {
	k, _, a, b := newTestKernel4(t)

	kpage, ok := k.arena.Alloc()
	require.True(t, ok)
	data, ok := k.arena.Alloc()
	require.True(t, ok)
	require.Equal(t, abi.OK, a.Vm.Link(0x5000, data, vm.Attrs{Writable: false, User: true}, kpage))

	kpage2, ok := k.arena.Alloc()
	require.True(t, ok)
	require.Equal(t, abi.OK, a.Vm.Link(0x7000, kpage2, vm.Attrs{Writable: true, User: true}, 0))

	code := k.Map(a, b.Tid, 0x6000, 0x5000, 0x7000, abi.MapUpdate|abi.MapUser)
	require.Equal(t, abi.OK, code)

	paddr, _, ok := b.Vm.Resolve(0x6000)
	require.True(t, ok)
	require.Equal(t, data, paddr)
}

func TestMapSourceUnresolvedReturnsNotFound(t *testing.T) {
	k, _, a, b := newTestKernel4(t)
	code := k.Map(a, b.Tid, 0x6000, 0x9000, 0, abi.MapUpdate)
	require.Equal(t, abi.NotFound, code)
}

func TestMapDeleteUnlinksWithoutUpdate(t *testing.T) {
	k, _, a, _ := newTestKernel(t)
	init, _ := k.Lookup(abi.InitTid)

	frame, _ := k.arena.Alloc()
	kpage, _ := k.arena.Alloc()
	require.Equal(t, abi.OK, k.Map(init, a.Tid, 0x3000, uintptr(frame), uintptr(kpage), abi.MapUpdate|abi.MapWritable))

	require.Equal(t, abi.OK, k.Map(init, a.Tid, 0x3000, 0, 0, abi.MapDelete))

	_, _, ok := a.Vm.Resolve(0x3000)
	require.False(t, ok)
}

// newTestKernel4 builds the initial task plus A(2) and B(3), pagered by the
// initial task, and returns the initial task alongside the a/b pair.
func newTestKernel4(t *testing.T) (k *Kernel, init, a, b *TCB) {
	t.Helper()
	k = NewKernel(nil)
	i, code := k.Create(abi.InitTid, "init", 0, 0, 0)
	require.Equal(t, abi.OK, code)
	a, code = k.Create(2, "a", 0, abi.InitTid, 0)
	require.Equal(t, abi.OK, code)
	b, code = k.Create(3, "b", 0, abi.InitTid, 0)
	require.Equal(t, abi.OK, code)
	return k, i, a, b
}
