package vm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gokern/gokern/internal/abi"
)

func TestLinkRequiresKpageForNewLeaf(t *testing.T) {
	as := NewAddressSpace()

	code := as.Link(0x1000, 0x2000, Attrs{Writable: true}, 0)
	assert.Equal(t, abi.TryAgain, code)

	_, _, ok := as.Resolve(0x1000)
	assert.False(t, ok, "failed link must not leave a mapping behind")

	code = as.Link(0x1000, 0x2000, Attrs{Writable: true}, 0xf000)
	require.Equal(t, abi.OK, code)

	paddr, attrs, ok := as.Resolve(0x1000)
	require.True(t, ok)
	assert.EqualValues(t, 0x2000, paddr)
	assert.True(t, attrs.Writable)
}

func TestLinkReusesLeafWithoutKpage(t *testing.T) {
	as := NewAddressSpace()
	require.Equal(t, abi.OK, as.Link(0x1000, 0x2000, Attrs{}, 0xf000))

	// A second page within the same leaf table needs no further kpage.
	code := as.Link(0x2000, 0x3000, Attrs{}, 0)
	assert.Equal(t, abi.OK, code)

	paddr, _, ok := as.Resolve(0x2000)
	require.True(t, ok)
	assert.EqualValues(t, 0x3000, paddr)
}

func TestUnlinkClearsMapping(t *testing.T) {
	as := NewAddressSpace()
	require.Equal(t, abi.OK, as.Link(0x1000, 0x2000, Attrs{}, 0xf000))

	as.Unlink(0x1000)

	_, _, ok := as.Resolve(0x1000)
	assert.False(t, ok)
}

func TestUnlinkUnmappedIsNoop(t *testing.T) {
	as := NewAddressSpace()
	assert.NotPanics(t, func() { as.Unlink(0x5000) })
}

func TestResolveUnmappedFails(t *testing.T) {
	as := NewAddressSpace()
	_, _, ok := as.Resolve(0xdeadb000)
	assert.False(t, ok)
}

func TestDestroyReturnsDonatedKpages(t *testing.T) {
	as := NewAddressSpace()
	require.Equal(t, abi.OK, as.Link(0x1000, 0x2000, Attrs{}, 0xf000))
	require.Equal(t, abi.OK, as.Link(1<<uint(leafShift+1), 0x4000, Attrs{}, 0xf001))

	kpages := as.Destroy()
	assert.ElementsMatch(t, []Paddr{0xf000, 0xf001}, kpages)

	_, _, ok := as.Resolve(0x1000)
	assert.False(t, ok)
}
