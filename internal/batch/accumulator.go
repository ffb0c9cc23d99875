// Package batch implements the per-shard batch accumulator that coalesces
// upsert records into sector-aligned pages for group-commit WAL writes.
package batch

import (
	"golang.org/x/sys/unix"
)

// SectorSize is the alignment unit batches are rounded up to before being
// handed to the WAL appender.
const SectorSize = 4096

// DefaultCapacity is the default staging buffer size (256 KiB), matching
// the Rust original's BatchAccumulator.
const DefaultCapacity = 256 * 1024

// Accumulator stages raw upsert records in a page-aligned buffer until a
// group-commit flush, tracking which connection-tag each staged record
// belongs to so completions can be routed back after the flush lands.
//
// Not safe for concurrent use; one Accumulator lives on one shard's
// reactor goroutine.
type Accumulator struct {
	buf    []byte
	cursor int
	tags   []uint64
}

// New allocates an Accumulator backed by an mmap'd, page-aligned buffer of
// the given capacity (rounded up to a multiple of SectorSize).
func New(capacity int) (*Accumulator, error) {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	capacity = alignUp(capacity, SectorSize)

	buf, err := unix.Mmap(-1, 0, capacity, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return nil, err
	}
	return &Accumulator{buf: buf}, nil
}

// Close releases the mmap'd buffer.
func (a *Accumulator) Close() error {
	if a.buf == nil {
		return nil
	}
	err := unix.Munmap(a.buf)
	a.buf = nil
	return err
}

// TryAdd copies record into the accumulator tagged with tag, returning
// false without mutating state if there isn't room.
func (a *Accumulator) TryAdd(tag uint64, record []byte) bool {
	if a.cursor+len(record) > len(a.buf) {
		return false
	}
	copy(a.buf[a.cursor:], record)
	a.cursor += len(record)
	a.tags = append(a.tags, tag)
	return true
}

// IsDirty reports whether any record has been staged since the last reset.
func (a *Accumulator) IsDirty() bool {
	return a.cursor > 0
}

// HasTags reports whether any connection tags are pending acknowledgement.
func (a *Accumulator) HasTags() bool {
	return len(a.tags) > 0
}

// PrepareFlush zero-pads the tail of the staged region up to the next
// sector boundary and returns the full aligned slice ready for a WAL
// write. The cursor is reset to zero but tags are retained until TakeTags
// is called, so callers can write the flush before acknowledging
// completions.
func (a *Accumulator) PrepareFlush() []byte {
	aligned := alignUp(a.cursor, SectorSize)
	if aligned > len(a.buf) {
		aligned = len(a.buf)
	}
	for i := a.cursor; i < aligned; i++ {
		a.buf[i] = 0
	}
	out := a.buf[:aligned]
	a.cursor = 0
	return out
}

// TakeTags returns the connection tags accumulated since the last flush
// and clears them.
func (a *Accumulator) TakeTags() []uint64 {
	tags := a.tags
	a.tags = nil
	return tags
}

// Reset discards any staged, unflushed data and pending tags.
func (a *Accumulator) Reset() {
	a.cursor = 0
	a.tags = nil
}

// Len returns the number of bytes currently staged (pre-alignment).
func (a *Accumulator) Len() int {
	return a.cursor
}

// Cap returns the accumulator's total capacity in bytes.
func (a *Accumulator) Cap() int {
	return len(a.buf)
}

func alignUp(n, align int) int {
	return (n + align - 1) &^ (align - 1)
}
