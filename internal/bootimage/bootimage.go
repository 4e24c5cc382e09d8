// Package bootimage decodes the embedded boot image header and segment
// table: a fixed header (magic, entry point, segment count) followed by a
// segment table, each entry naming a vaddr, a file offset, a page count,
// and whether the segment is zero-filled rather than backed by file data.
//
// Decoding only. Relocating the segments into the initial task's address
// space, and the hardware bootstrap that gets this image into memory in
// the first place, are out of scope — this package gives cmd/kerndemo
// and tests a typed view of the wire format, using the same fixed-offset
// encoding/binary convention internal/kern/message.go uses.
package bootimage

import (
	"encoding/binary"
	"fmt"
)

// Magic identifies a valid boot image header.
const Magic uint32 = 0x4b45524e // "KERN"

// headerLen is the fixed-size portion preceding the segment table.
const headerLen = 16

// segmentLen is the size of one encoded Segment record.
const segmentLen = 24

// Segment describes one region of the image to be mapped into the initial
// task before it runs: vaddr, offset, num_pages, zeroed.
type Segment struct {
	Vaddr    uint64
	Offset   uint64
	NumPages uint32
	Zeroed   bool
}

// Image is a decoded boot image header plus its segment table.
type Image struct {
	EntryPoint uint64
	Segments   []Segment
}

// Decode parses buf as a boot image. It fails if the magic doesn't match
// or the buffer is too short to hold the declared segment table.
func Decode(buf []byte) (*Image, error) {
	if len(buf) < headerLen {
		return nil, fmt.Errorf("bootimage: header truncated: %d bytes", len(buf))
	}

	magic := binary.LittleEndian.Uint32(buf[0:4])
	if magic != Magic {
		return nil, fmt.Errorf("bootimage: bad magic %#x", magic)
	}
	numSegments := binary.LittleEndian.Uint32(buf[4:8])
	entryPoint := binary.LittleEndian.Uint64(buf[8:16])

	want := headerLen + int(numSegments)*segmentLen
	if len(buf) < want {
		return nil, fmt.Errorf("bootimage: segment table truncated: have %d bytes, need %d", len(buf), want)
	}

	segments := make([]Segment, numSegments)
	for i := range segments {
		off := headerLen + i*segmentLen
		rec := buf[off : off+segmentLen]
		segments[i] = Segment{
			Vaddr:    binary.LittleEndian.Uint64(rec[0:8]),
			Offset:   binary.LittleEndian.Uint64(rec[8:16]),
			NumPages: binary.LittleEndian.Uint32(rec[16:20]),
			Zeroed:   rec[20] != 0,
		}
	}

	return &Image{EntryPoint: entryPoint, Segments: segments}, nil
}

// Encode is Decode's inverse, used by tests and cmd/kerndemo's demo image
// builder.
func (img *Image) Encode() []byte {
	buf := make([]byte, headerLen+len(img.Segments)*segmentLen)

	binary.LittleEndian.PutUint32(buf[0:4], Magic)
	binary.LittleEndian.PutUint32(buf[4:8], uint32(len(img.Segments)))
	binary.LittleEndian.PutUint64(buf[8:16], img.EntryPoint)

	for i, seg := range img.Segments {
		off := headerLen + i*segmentLen
		rec := buf[off : off+segmentLen]
		binary.LittleEndian.PutUint64(rec[0:8], seg.Vaddr)
		binary.LittleEndian.PutUint64(rec[8:16], seg.Offset)
		binary.LittleEndian.PutUint32(rec[16:20], seg.NumPages)
		if seg.Zeroed {
			rec[20] = 1
		}
	}

	return buf
}
