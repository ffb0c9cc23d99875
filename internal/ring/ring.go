// Package ring wraps github.com/pawelgaczynski/giouring to provide the
// tagged submission/completion interface the shard reactor needs: accept,
// socket-read, socket-write, and WAL file-write, all correlated by a
// single 64-bit tag per spec's "high 16 bits identify the operation
// class; low 16 bits carry the connection slot index" convention.
package ring

import (
	"fmt"

	"github.com/pawelgaczynski/giouring"
)

// Operation classes occupy the high 16 bits of a completion tag.
const (
	OpAccept uint64 = iota
	OpSocketRead
	OpSocketWrite
	OpWALWrite
	OpBatchWALWrite
)

const classShift = 48

// MakeTag packs an operation class and a connection slot index into one
// 64-bit completion tag. slot is ignored (zero) for batch-WAL tags.
func MakeTag(class uint64, slot uint16) uint64 {
	if class == OpBatchWALWrite {
		slot = 0
	}
	return (class << classShift) | uint64(slot)
}

// SplitTag reverses MakeTag.
func SplitTag(tag uint64) (class uint64, slot uint16) {
	return tag >> classShift, uint16(tag & 0xffff)
}

// Completion is one harvested completion-queue entry.
type Completion struct {
	Tag    uint64
	Result int32
}

// Ring owns one shard's io_uring submission/completion queue.
type Ring struct {
	ring *giouring.Ring
}

// New creates a ring with the given submission queue depth.
func New(entries uint32) (*Ring, error) {
	r, err := giouring.CreateRing(entries)
	if err != nil {
		return nil, fmt.Errorf("ring: create: %w", err)
	}
	return &Ring{ring: r}, nil
}

// Close tears down the ring.
func (r *Ring) Close() error {
	if r.ring == nil {
		return nil
	}
	r.ring.QueueExit()
	r.ring = nil
	return nil
}

// nextSQE fetches a free submission queue entry, forcing a synchronous
// submit-and-retry if the queue is momentarily full rather than dropping
// the operation (per the spec's "never drop" backpressure policy).
func (r *Ring) nextSQE() (*giouring.SubmissionQueueEntry, error) {
	sqe := r.ring.GetSQE()
	if sqe != nil {
		return sqe, nil
	}
	if _, err := r.ring.Submit(); err != nil {
		return nil, fmt.Errorf("ring: submit to drain full queue: %w", err)
	}
	sqe = r.ring.GetSQE()
	if sqe == nil {
		return nil, fmt.Errorf("ring: submission queue still full after drain")
	}
	return sqe, nil
}

// SubmitAccept prepares an accept on listenFD tagged for the accept
// completion class.
func (r *Ring) SubmitAccept(listenFD int) error {
	sqe, err := r.nextSQE()
	if err != nil {
		return err
	}
	sqe.PrepareAccept(listenFD, 0, 0, 0)
	sqe.UserData = MakeTag(OpAccept, 0)
	return nil
}

// SubmitRead prepares a socket read into buf for connection slot.
func (r *Ring) SubmitRead(fd int, buf []byte, slot uint16) error {
	sqe, err := r.nextSQE()
	if err != nil {
		return err
	}
	sqe.PrepareRead(fd, uintptr(bufAddr(buf)), uint32(len(buf)), 0)
	sqe.UserData = MakeTag(OpSocketRead, slot)
	return nil
}

// SubmitWrite prepares a socket write of buf for connection slot.
func (r *Ring) SubmitWrite(fd int, buf []byte, slot uint16) error {
	sqe, err := r.nextSQE()
	if err != nil {
		return err
	}
	sqe.PrepareWrite(fd, uintptr(bufAddr(buf)), uint32(len(buf)), 0)
	sqe.UserData = MakeTag(OpSocketWrite, slot)
	return nil
}

// SubmitWALWrite prepares a direct-I/O file write of buf at offset,
// tagged for either the single-request WAL class or the batched one.
func (r *Ring) SubmitWALWrite(fd int, buf []byte, offset int64, class uint64, slot uint16) error {
	sqe, err := r.nextSQE()
	if err != nil {
		return err
	}
	sqe.PrepareWrite(fd, uintptr(bufAddr(buf)), uint32(len(buf)), uint64(offset))
	sqe.UserData = MakeTag(class, slot)
	return nil
}

// Flush submits all prepared SQEs with a single io_uring_enter syscall.
func (r *Ring) Flush() (uint32, error) {
	n, err := r.ring.Submit()
	return uint32(n), err
}

// WaitCompletions blocks, with no timeout, until at least one completion
// is available, and returns every completion currently queued.
func (r *Ring) WaitCompletions() ([]Completion, error) {
	cqe, err := r.ring.WaitCQE()
	if err != nil {
		return nil, err
	}
	out := []Completion{{Tag: cqe.UserData, Result: cqe.Res}}
	r.ring.CQESeen(cqe)

	for {
		next, err := r.ring.PeekCQE()
		if err != nil || next == nil {
			break
		}
		out = append(out, Completion{Tag: next.UserData, Result: next.Res})
		r.ring.CQESeen(next)
	}
	return out, nil
}
