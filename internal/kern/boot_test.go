package kern

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gokern/gokern/internal/abi"
	"github.com/gokern/gokern/internal/vm"
)

func TestLoadSegmentPopulatesDataPages(t *testing.T) {
	k := NewKernel(nil)
	init, code := k.Create(abi.InitTid, "init", 0, 0, 0)
	require.Equal(t, abi.OK, code)

	payload := make([]byte, 8192)
	copy(payload, []byte("hello from segment zero"))

	code = k.LoadSegment(init, 0x200000, 2, payload, false, vm.Attrs{Writable: false, User: true, Executable: true})
	require.Equal(t, abi.OK, code)

	paddr, attrs, ok := init.Vm.Resolve(0x200000)
	require.True(t, ok)
	require.True(t, attrs.Executable)
	require.Equal(t, "hello from segment zero", string(k.arena.Bytes(paddr)[:23]))

	_, _, ok = init.Vm.Resolve(0x201000)
	require.True(t, ok)
}

func TestLoadSegmentZeroedFillsWithZeroPages(t *testing.T) {
	k := NewKernel(nil)
	init, _ := k.Create(abi.InitTid, "init", 0, 0, 0)

	code := k.LoadSegment(init, 0x300000, 1, nil, true, vm.Attrs{Writable: true, User: true})
	require.Equal(t, abi.OK, code)

	paddr, _, ok := init.Vm.Resolve(0x300000)
	require.True(t, ok)
	for _, b := range k.arena.Bytes(paddr) {
		require.Equal(t, byte(0), b)
	}
}

func TestLoadSegmentExhaustedArenaReturnsNoMemory(t *testing.T) {
	k := NewKernel(&Config{ArenaPages: 2})
	init, _ := k.Create(abi.InitTid, "init", 0, 0, 0)

	code := k.LoadSegment(init, 0x400000, 4, nil, true, vm.Attrs{Writable: true, User: true})
	require.Equal(t, abi.NoMemory, code)
}
