package bulk

import "sync"

// Staging buffer pool for CopyPages: size-bucketed sync.Pool using the
// *[]byte pattern to avoid the interface-boxing allocation a bare []byte
// would cost on every Get/Put. Buckets run 4k/16k/64k/256k, matching
// constants.BulkBufferLen as the smallest realistic transfer.
const (
	size4k   = 4 * 1024
	size16k  = 16 * 1024
	size64k  = 64 * 1024
	size256k = 256 * 1024
)

var bufferPool = struct {
	p4k   sync.Pool
	p16k  sync.Pool
	p64k  sync.Pool
	p256k sync.Pool
}{
	p4k:   sync.Pool{New: func() any { b := make([]byte, size4k); return &b }},
	p16k:  sync.Pool{New: func() any { b := make([]byte, size16k); return &b }},
	p64k:  sync.Pool{New: func() any { b := make([]byte, size64k); return &b }},
	p256k: sync.Pool{New: func() any { b := make([]byte, size256k); return &b }},
}

// bufferFor returns a pooled buffer of at least size bytes, falling back to
// a one-off allocation for transfers larger than the largest bucket.
func bufferFor(size uint32) []byte {
	switch {
	case size <= size4k:
		return (*bufferPool.p4k.Get().(*[]byte))[:size]
	case size <= size16k:
		return (*bufferPool.p16k.Get().(*[]byte))[:size]
	case size <= size64k:
		return (*bufferPool.p64k.Get().(*[]byte))[:size]
	case size <= size256k:
		return (*bufferPool.p256k.Get().(*[]byte))[:size]
	default:
		return make([]byte, size)
	}
}

// putBuffer returns buf to the bucket matching its capacity. A buffer from
// the oversized fallback path has no matching bucket and is simply
// dropped.
func putBuffer(buf []byte) {
	c := cap(buf)
	buf = buf[:c]
	switch c {
	case size4k:
		bufferPool.p4k.Put(&buf)
	case size16k:
		bufferPool.p16k.Put(&buf)
	case size64k:
		bufferPool.p64k.Put(&buf)
	case size256k:
		bufferPool.p256k.Put(&buf)
	}
}
