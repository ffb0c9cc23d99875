// Package wal implements the per-shard write-ahead log: a direct,
// synchronous appender plus the crash-recovery replay that rebuilds a
// shard's index from the log on startup.
package wal

import (
	"encoding/binary"
	"os"

	"github.com/vortexdb/vortex/internal/logging"
	"github.com/vortexdb/vortex/internal/wire"
)

// SectorSize is the alignment unit for WAL offsets and write lengths.
const SectorSize = 4096

// Appender owns one shard's WAL file handle and tracks the current append
// offset. Writes are issued with O_DIRECT|O_DSYNC semantics so a
// completion means the batch has reached media.
type Appender struct {
	file   *os.File
	offset int64
}

// Open opens (creating if necessary) the WAL file at path for direct,
// synchronous append, and returns an Appender positioned at the file's
// current size.
func Open(path string) (*Appender, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|directFlags(), 0o644)
	if err != nil {
		// O_DIRECT is not honored on every filesystem (e.g. tmpfs);
		// fall back to O_DSYNC only rather than failing startup.
		f, err = os.OpenFile(path, os.O_RDWR|os.O_CREATE|osDsync(), 0o644)
		if err != nil {
			return nil, err
		}
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	return &Appender{file: f, offset: info.Size()}, nil
}

// Close closes the underlying file.
func (a *Appender) Close() error {
	return a.file.Close()
}

// Offset returns the current append offset.
func (a *Appender) Offset() int64 {
	return a.offset
}

// Append writes buf (which must already be sector-aligned in length) at
// the current offset and advances the offset. The caller must not begin
// another Append until this one returns, per the single-flush-in-flight
// invariant enforced by the reactor.
func (a *Appender) Append(buf []byte) error {
	if len(buf)%SectorSize != 0 {
		return errShortAlignedWrite
	}
	n, err := a.file.WriteAt(buf, a.offset)
	if err != nil {
		return err
	}
	a.offset += int64(n)
	return nil
}

type walError string

func (e walError) Error() string { return string(e) }

const errShortAlignedWrite = walError("wal: append buffer is not sector-aligned")

// Record is one decoded WAL frame surfaced during recovery.
type Record struct {
	Opcode  uint8
	ID      uint64
	Vector  []float32
	Payload []byte
}

// Replay reads the WAL file from offset 0, calling apply for every valid
// upsert frame it decodes. It stops at clean end-of-file or at the first
// sign of corruption (bad magic or a short read after at least one valid
// record), truncating the file to the last known-good offset in the
// corruption case. It returns the offset an Appender should resume
// writing from.
func Replay(path string, dim int, apply func(Record) error) (int64, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	var goodOffset int64
	header := make([]byte, wire.HeaderSize)

	for {
		n, err := f.ReadAt(header, goodOffset)
		if n < wire.HeaderSize || err != nil {
			break
		}

		h := wire.ParseHeader(header)
		if h.Magic != wire.Magic {
			break
		}

		payload := make([]byte, h.PayloadLen)
		pn, perr := f.ReadAt(payload, goodOffset+wire.HeaderSize)
		if pn < int(h.PayloadLen) || (perr != nil && uint32(pn) < h.PayloadLen) {
			break
		}

		if h.Opcode == wire.OpUpsert {
			vec := make([]float32, dim)
			id, uerr := wire.ParseUpsertPayload(payload, vec)
			if uerr == nil {
				if aerr := apply(Record{Opcode: h.Opcode, ID: id, Vector: vec, Payload: payload}); aerr != nil {
					return 0, aerr
				}
			}
		}

		goodOffset += int64(wire.HeaderSize) + int64(h.PayloadLen)
	}

	if info, serr := f.Stat(); serr == nil && info.Size() != goodOffset {
		logging.Default().Info("wal truncated to last good offset",
			"path", path, "offset", goodOffset, "dropped_bytes", info.Size()-goodOffset)
		if terr := f.Truncate(goodOffset); terr != nil {
			return 0, terr
		}
	}

	return goodOffset, nil
}

// EncodeUpsertFrame renders one fully framed upsert request (16-byte
// header plus identifier and vector payload) the way both the WAL and
// the wire protocol expect it.
func EncodeUpsertFrame(requestID, id uint64, vector []float32) []byte {
	payloadLen := wire.UpsertPayloadSize(len(vector))
	frame := make([]byte, wire.HeaderSize+payloadLen)
	wire.PutRequestHeader(frame, wire.OpUpsert, uint32(payloadLen), requestID)
	binary.LittleEndian.PutUint64(frame[wire.HeaderSize:wire.HeaderSize+8], id)
	wire.EncodeFloats(frame[wire.HeaderSize+8:], vector)
	return frame
}
