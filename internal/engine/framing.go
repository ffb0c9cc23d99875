package engine

import (
	"time"

	"github.com/vortexdb/vortex/internal/wire"
)

// runFramingLoop consumes as many complete frames as are available in
// conn's receive window, per spec §4.2. It stops when fewer than 16
// bytes remain (header incomplete), when the connection's pending-op cap
// has been reached, or when a protocol violation closes the connection.
// Leftover partial data is compacted to the front of the buffer and a new
// read is submitted.
func (s *Shard) runFramingLoop(slot uint16) {
	conn := s.conns[slot]
	if conn == nil || !conn.inUse || conn.closed {
		return
	}

	for {
		if conn.pendingOps >= maxPendingOps {
			break
		}
		if conn.available() < wire.HeaderSize {
			break
		}

		header := conn.recv[conn.consumed : conn.consumed+wire.HeaderSize]
		h := wire.ParseHeader(header)
		if h.Magic != wire.Magic {
			s.releaseSlot(slot)
			return
		}

		frameLen := wire.HeaderSize + int(h.PayloadLen)
		if conn.available() < frameLen {
			break // wait for more bytes
		}

		payload := conn.recv[conn.consumed+wire.HeaderSize : conn.consumed+frameLen]
		s.handleFrame(slot, h, payload)
		conn.consumed += frameLen
	}

	if conn.closed {
		return
	}

	// A read submitted before this loop last ran is still outstanding
	// (e.g. the loop broke on the maxPendingOps cap mid-frame and is now
	// re-entered from a write completion). Its SQE was prepared against
	// the receive buffer's current byte offsets; compacting now would
	// invalidate those offsets out from under the in-flight read. Leave
	// the window alone and let the read's own completion drive the next
	// compact+resubmit.
	if conn.readInFlight {
		return
	}

	conn.compact()
	if err := s.ring.SubmitRead(conn.fd, conn.recv[conn.accumulated:], slot); err == nil {
		conn.readInFlight = true
	}
}

// handleFrame dispatches one fully-buffered frame by opcode.
func (s *Shard) handleFrame(slot uint16, h wire.Header, payload []byte) {
	conn := s.conns[slot]

	switch h.Opcode {
	case wire.OpUpsert:
		s.handleUpsertFrame(slot, h, payload)

	case wire.OpSearch:
		s.handleSearchFrame(slot, h, payload)

	default:
		conn.pendingOps++
		s.enqueueAck(slot, wire.StatusErr, h.Opcode, h.RequestID)
	}
}

// handleUpsertFrame stages the record in the batch accumulator. If the
// accumulator is full it flushes eagerly and retries once; a record that
// still doesn't fit after a flush (larger than the accumulator's total
// capacity) is rejected with an error status rather than wedging the
// connection.
func (s *Shard) handleUpsertFrame(slot uint16, h wire.Header, payload []byte) {
	conn := s.conns[slot]
	conn.pendingOps++

	record := make([]byte, wire.HeaderSize+len(payload))
	wire.PutRequestHeader(record, h.Opcode, h.PayloadLen, h.RequestID)
	copy(record[wire.HeaderSize:], payload)

	if s.acc.TryAdd(uint64(slot), record) {
		return
	}

	if err := s.flushBatch(); err != nil {
		return // fatal; shard is shutting down
	}

	if !s.acc.TryAdd(uint64(slot), record) {
		conn.pendingOps--
		s.enqueueAck(slot, wire.StatusErr, h.Opcode, h.RequestID)
	}
}

// handleSearchFrame executes a query synchronously against the current
// index state and emits a status-only response header per spec §6 (no
// result payload in this protocol version). Searches never wait on the
// WAL: they observe whatever has already been applied, which may lag
// slightly behind records still sitting in the batch accumulator.
func (s *Shard) handleSearchFrame(slot uint16, h wire.Header, payload []byte) {
	conn := s.conns[slot]
	conn.pendingOps++

	query := make([]float32, s.dim)
	status := wire.StatusOK
	var latency uint64

	if err := wire.ParseSearchPayload(payload, query); err != nil {
		status = wire.StatusErr
	} else {
		k := 10
		start := time.Now()
		_, err := s.idx.Search(query, k)
		latency = uint64(time.Since(start).Nanoseconds())
		if err != nil {
			status = wire.StatusErr
		}
	}

	s.observer.ObserveSearch(latency, status == wire.StatusOK)

	header := make([]byte, wire.HeaderSize)
	wire.PutResponseHeader(header, status, h.Opcode, h.RequestID)
	if conn.xmit == nil {
		conn.xmit = acquireXmitBuffer()
	}
	conn.xmit = append(conn.xmit, header...)
	conn.pendingOps--
	s.trySubmitWrite(slot)
}
