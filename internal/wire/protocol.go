// Package wire implements the VBP (Vortex Binary Protocol) framing used
// between clients and shards: fixed 16-byte request/response headers plus
// opcode-specific payloads, all little-endian.
package wire

import (
	"encoding/binary"
	"math"
)

// Magic identifies a VBP frame header. Any other value is a protocol
// violation and the connection is closed.
const Magic uint16 = 0x5658

// Version is the only wire version this engine speaks.
const Version uint8 = 1

// Opcodes.
const (
	OpUpsert uint8 = 1
	OpSearch uint8 = 5
)

// Response status codes.
const (
	StatusOK  uint8 = 0
	StatusErr uint8 = 1
)

// HeaderSize is the size in bytes of both the request and response headers.
const HeaderSize = 16

// Header is the 16-byte frame header shared by requests and responses.
//
//	0      2  magic
//	2      1  version (request) / status (response)
//	3      1  opcode
//	4      4  payload_len
//	8      8  request_id
type Header struct {
	Magic      uint16
	VersionOrStatus uint8
	Opcode     uint8
	PayloadLen uint32
	RequestID  uint64
}

// PutRequestHeader writes a 16-byte request header into buf[0:16].
func PutRequestHeader(buf []byte, opcode uint8, payloadLen uint32, requestID uint64) {
	_ = buf[15]
	binary.LittleEndian.PutUint16(buf[0:2], Magic)
	buf[2] = Version
	buf[3] = opcode
	binary.LittleEndian.PutUint32(buf[4:8], payloadLen)
	binary.LittleEndian.PutUint64(buf[8:16], requestID)
}

// PutResponseHeader writes a 16-byte response header into buf[0:16].
func PutResponseHeader(buf []byte, status, opcode uint8, requestID uint64) {
	_ = buf[15]
	binary.LittleEndian.PutUint16(buf[0:2], Magic)
	buf[2] = status
	buf[3] = opcode
	binary.LittleEndian.PutUint32(buf[4:8], 0)
	binary.LittleEndian.PutUint64(buf[8:16], requestID)
}

// ParseHeader reads a 16-byte header from data[0:16]. The caller must ensure
// len(data) >= HeaderSize.
func ParseHeader(data []byte) Header {
	_ = data[15]
	return Header{
		Magic:           binary.LittleEndian.Uint16(data[0:2]),
		VersionOrStatus: data[2],
		Opcode:          data[3],
		PayloadLen:      binary.LittleEndian.Uint32(data[4:8]),
		RequestID:       binary.LittleEndian.Uint64(data[8:16]),
	}
}

// UpsertPayloadSize returns the byte size of an upsert payload (8-byte
// identifier followed by dim float32s) for the given vector dimension.
func UpsertPayloadSize(dim int) int {
	return 8 + dim*4
}

// SearchPayloadSize returns the byte size of a search payload (dim float32s).
func SearchPayloadSize(dim int) int {
	return dim * 4
}

// ParseUpsertPayload extracts the identifier and vector from an upsert
// payload. vec must have length dim; it is overwritten in place.
func ParseUpsertPayload(payload []byte, vec []float32) (id uint64, err error) {
	dim := len(vec)
	if len(payload) < UpsertPayloadSize(dim) {
		return 0, ErrShortPayload
	}
	id = binary.LittleEndian.Uint64(payload[0:8])
	DecodeFloats(payload[8:8+dim*4], vec)
	return id, nil
}

// ParseSearchPayload extracts the query vector from a search payload. vec
// must have length dim; it is overwritten in place.
func ParseSearchPayload(payload []byte, vec []float32) error {
	dim := len(vec)
	if len(payload) < SearchPayloadSize(dim) {
		return ErrShortPayload
	}
	DecodeFloats(payload[:dim*4], vec)
	return nil
}

// EncodeFloats writes n little-endian float32s from src into dst, which
// must have length len(src)*4.
func EncodeFloats(dst []byte, src []float32) {
	for i, f := range src {
		binary.LittleEndian.PutUint32(dst[i*4:i*4+4], math.Float32bits(f))
	}
}

// DecodeFloats reads len(dst) little-endian float32s from src into dst.
func DecodeFloats(src []byte, dst []float32) {
	for i := range dst {
		dst[i] = math.Float32frombits(binary.LittleEndian.Uint32(src[i*4 : i*4+4]))
	}
}

// ProtocolError is a plain string error for wire-level violations, matching
// the teacher's lightweight string-error convention (see uapi.MarshalError).
type ProtocolError string

func (e ProtocolError) Error() string { return string(e) }

const (
	ErrBadMagic     ProtocolError = "wire: bad magic"
	ErrShortPayload ProtocolError = "wire: short payload"
	ErrUnknownOp    ProtocolError = "wire: unknown opcode"
)
