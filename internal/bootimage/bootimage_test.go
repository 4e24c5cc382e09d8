package bootimage

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	img := &Image{
		EntryPoint: 0x200000,
		Segments: []Segment{
			{Vaddr: 0x200000, Offset: 0, NumPages: 4, Zeroed: false},
			{Vaddr: 0x400000, Offset: 0x4000, NumPages: 1, Zeroed: true},
		},
	}

	got, err := Decode(img.Encode())
	require.NoError(t, err)
	require.Equal(t, img.EntryPoint, got.EntryPoint)
	require.Equal(t, img.Segments, got.Segments)
}

func TestDecodeRejectsBadMagic(t *testing.T) {
	buf := (&Image{}).Encode()
	buf[0] ^= 0xff
	_, err := Decode(buf)
	require.Error(t, err)
}

func TestDecodeRejectsTruncatedHeader(t *testing.T) {
	_, err := Decode([]byte{1, 2, 3})
	require.Error(t, err)
}

func TestDecodeRejectsTruncatedSegmentTable(t *testing.T) {
	img := &Image{Segments: []Segment{{Vaddr: 1, Offset: 2, NumPages: 3}}}
	buf := img.Encode()
	_, err := Decode(buf[:len(buf)-4])
	require.Error(t, err)
}

func TestDecodeEmptyImage(t *testing.T) {
	img := &Image{EntryPoint: 0x1000}
	got, err := Decode(img.Encode())
	require.NoError(t, err)
	require.Empty(t, got.Segments)
	require.Equal(t, uint64(0x1000), got.EntryPoint)
}
