package engine

import "sync"

// Transmit buffers are bucketed by capacity and pooled so that a shard
// acknowledging many small upserts per tick doesn't allocate on every
// aggregated write, adapted from the teacher's size-bucketed BufferPool
// for its I/O-path allocations.
const (
	xmitBucket4k  = 4 * 1024
	xmitBucket16k = 16 * 1024
	xmitBucket64k = 64 * 1024
)

var xmitPool = struct {
	p4k, p16k, p64k sync.Pool
}{
	p4k:  sync.Pool{New: func() any { b := make([]byte, 0, xmitBucket4k); return &b }},
	p16k: sync.Pool{New: func() any { b := make([]byte, 0, xmitBucket16k); return &b }},
	p64k: sync.Pool{New: func() any { b := make([]byte, 0, xmitBucket64k); return &b }},
}

// acquireXmitBuffer returns a zero-length buffer from the smallest bucket
// pool, ready to be grown with append.
func acquireXmitBuffer() []byte {
	return (*xmitPool.p4k.Get().(*[]byte))[:0]
}

// releaseXmitBuffer returns buf to the pool matching its capacity. Buffers
// that outgrew every bucket (via append) are simply dropped and left to
// the garbage collector.
func releaseXmitBuffer(buf []byte) {
	switch cap(buf) {
	case xmitBucket4k:
		b := buf[:0]
		xmitPool.p4k.Put(&b)
	case xmitBucket16k:
		b := buf[:0]
		xmitPool.p16k.Put(&b)
	case xmitBucket64k:
		b := buf[:0]
		xmitPool.p64k.Put(&b)
	}
}
