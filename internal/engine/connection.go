package engine

import "github.com/google/uuid"

// Connection is one shard's view of an accepted socket: a sliding receive
// window, a transmit buffer pre-formatted as a sequence of response
// headers, and the in-flight/pending-op bookkeeping the reactor's framing
// loop and completion dispatch rely on.
type Connection struct {
	fd     int
	inUse  bool
	closed bool

	// traceID identifies this connection's lifetime across log lines; a
	// slot is reused across many accepted sockets, so the slot index alone
	// can't correlate one connection's accept and close events.
	traceID uuid.UUID

	recv        []byte
	accumulated int
	consumed    int

	xmit     []byte
	writeBuf []byte // buffer currently submitted for write, held for pool release on completion

	readInFlight  bool
	writeInFlight bool

	// pendingOps counts frame-level operations that have been parsed but
	// not yet acknowledged; the framing loop stops accepting new frames
	// once this reaches maxPendingOps so a single connection cannot
	// starve the shard's batch accumulator or transmit path.
	pendingOps int
}

// maxPendingOps is the per-connection cap on unacknowledged frame-level
// operations before the framing loop pauses to await drain.
const maxPendingOps = 64

func newConnection(fd int, recvBufSize int) *Connection {
	return &Connection{
		fd:      fd,
		inUse:   true,
		traceID: uuid.New(),
		recv:    make([]byte, recvBufSize),
	}
}

// available returns the number of unconsumed bytes in the receive window.
func (c *Connection) available() int {
	return c.accumulated - c.consumed
}

// compact slides any unconsumed bytes to the start of the receive buffer
// and resets the window counters, making room for the next read.
func (c *Connection) compact() {
	avail := c.available()
	if avail > 0 && c.consumed > 0 {
		copy(c.recv[0:avail], c.recv[c.consumed:c.accumulated])
	}
	c.consumed = 0
	c.accumulated = avail
}

// reset clears a connection slot for reuse after close.
func (c *Connection) reset() {
	c.inUse = false
	c.closed = false
	c.accumulated = 0
	c.consumed = 0
	if c.xmit != nil {
		releaseXmitBuffer(c.xmit)
		c.xmit = nil
	}
	if c.writeBuf != nil {
		releaseXmitBuffer(c.writeBuf)
		c.writeBuf = nil
	}
	c.readInFlight = false
	c.writeInFlight = false
	c.pendingOps = 0
}

// idle reports whether the connection has no operations in flight and can
// be safely released.
func (c *Connection) idle() bool {
	return !c.readInFlight && !c.writeInFlight && c.pendingOps == 0
}
