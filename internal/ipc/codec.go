// Package ipc provides the length-prefixed local IPC framing shared by the
// daemon and its clients, the socket server that turns frames into queued
// Requests, and the single-in-flight request queue that serializes them
// against the modem.
package ipc

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// MsgType is the IPC frame type field.
type MsgType uint32

// Frame types.
const (
	TypeUnknown MsgType = iota
	TypeRequest
	TypeResponse
)

// Status is the IPC frame status field on responses.
type Status uint32

// Wire status codes (spec.md §6.1).
const (
	StatusOK Status = iota
	StatusUnknown
	StatusInvalidRequest
	StatusUnknownCommand
	StatusNoModem
	StatusPinRequired
	StatusPukRequired
	StatusSimError
	StatusInvalidPin
	StatusInvalidState
	StatusInvalidInput
	StatusNotSupported
)

// qmiStatusBase is added to a raw QMI error code to produce its wire status.
const qmiStatusBase = 100

// QMIStatus maps a raw QMI protocol error code onto its wire status.
func QMIStatus(qmiErrorCode uint32) Status {
	return Status(qmiStatusBase + qmiErrorCode)
}

const (
	headerSize = 24
	maxFrame   = 4096
)

// ErrMalformedFrame indicates a frame failed a structural invariant.
var ErrMalformedFrame = errors.New("malformed frame")

// Builder accumulates fixed-area and variable-area bytes for one message
// and serializes them into one contiguous buffer.
type Builder struct {
	msgType MsgType
	command uint32
	status  Status
	fixed   []byte
	varbuf  []byte
}

// NewBuilder creates a builder with a pre-populated header; sizes start at
// zero.
func NewBuilder(msgType MsgType, command uint32, status Status) *Builder {
	return &Builder{msgType: msgType, command: command, status: status}
}

// AddU32 appends a little-endian uint32 to the fixed area.
func (b *Builder) AddU32(v uint32) *Builder {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	b.fixed = append(b.fixed, buf[:]...)
	return b
}

// AddI32 appends a little-endian int32 to the fixed area. LE encoding is
// authoritative for signed values.
func (b *Builder) AddI32(v int32) *Builder {
	return b.AddU32(uint32(v))
}

// AddU64 appends a little-endian uint64 to the fixed area.
func (b *Builder) AddU64(v uint64) *Builder {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	b.fixed = append(b.fixed, buf[:]...)
	return b
}

// AddString appends a string descriptor (offset, length-with-NUL) to the
// fixed area and the NUL-terminated, zero-padded bytes to the variable area.
// A missing string is treated as empty.
func (b *Builder) AddString(s string) *Builder {
	offset := uint32(len(b.varbuf))
	raw := append([]byte(s), 0)
	lengthWithNul := uint32(len(raw))
	for len(raw)%4 != 0 {
		raw = append(raw, 0)
	}
	b.varbuf = append(b.varbuf, raw...)
	return b.AddU32(offset).AddU32(lengthWithNul)
}

// Serialize concatenates header, fixed area and variable area into one
// buffer, asserting the frame's length invariants.
func (b *Builder) Serialize() []byte {
	fixedSize := uint32(len(b.fixed))
	varSize := uint32(len(b.varbuf))
	length := headerSize + fixedSize + varSize
	if fixedSize%4 != 0 || varSize%4 != 0 || length%4 != 0 {
		panic("ipc: builder produced a non-4-byte-aligned frame")
	}
	if length > maxFrame {
		panic("ipc: builder produced an oversized frame")
	}
	buf := make([]byte, length)
	binary.LittleEndian.PutUint32(buf[0:4], length)
	binary.LittleEndian.PutUint32(buf[4:8], uint32(b.msgType))
	binary.LittleEndian.PutUint32(buf[8:12], b.command)
	binary.LittleEndian.PutUint32(buf[12:16], uint32(b.status))
	binary.LittleEndian.PutUint32(buf[16:20], fixedSize)
	binary.LittleEndian.PutUint32(buf[20:24], varSize)
	copy(buf[headerSize:], b.fixed)
	copy(buf[headerSize+fixedSize:], b.varbuf)
	return buf
}

// Header is the decoded 24-byte IPC frame header.
type Header struct {
	Length       uint32
	Type         MsgType
	Command      uint32
	Status       Status
	FixedSize    uint32
	VariableSize uint32
}

// ParseHeader validates and decodes the header of a frame, checking the
// structural invariants from spec.md §3/§6.1.
func ParseHeader(buf []byte) (Header, error) {
	if len(buf) < headerSize {
		return Header{}, ErrMalformedFrame
	}
	h := Header{
		Length:       binary.LittleEndian.Uint32(buf[0:4]),
		Type:         MsgType(binary.LittleEndian.Uint32(buf[4:8])),
		Command:      binary.LittleEndian.Uint32(buf[8:12]),
		Status:       Status(binary.LittleEndian.Uint32(buf[12:16])),
		FixedSize:    binary.LittleEndian.Uint32(buf[16:20]),
		VariableSize: binary.LittleEndian.Uint32(buf[20:24]),
	}
	if uint32(len(buf)) != h.Length {
		return Header{}, ErrMalformedFrame
	}
	if h.Length%4 != 0 || h.FixedSize%4 != 0 || h.VariableSize%4 != 0 {
		return Header{}, ErrMalformedFrame
	}
	if h.Length != headerSize+h.FixedSize+h.VariableSize {
		return Header{}, ErrMalformedFrame
	}
	if h.Length > maxFrame {
		return Header{}, ErrMalformedFrame
	}
	return h, nil
}

// GetStatus decodes the status field directly from a serialized frame.
func GetStatus(buf []byte) (Status, error) {
	h, err := ParseHeader(buf)
	if err != nil {
		return 0, err
	}
	return h.Status, nil
}

// Reader decodes the fixed/variable areas of an already-framed buffer,
// driven by a caller-owned walking offset into the fixed area.
type Reader struct {
	buf    []byte
	hdr    Header
	offset uint32
}

// NewReader validates buf's header and returns a Reader positioned at the
// start of the fixed area.
func NewReader(buf []byte) (*Reader, error) {
	h, err := ParseHeader(buf)
	if err != nil {
		return nil, err
	}
	return &Reader{buf: buf, hdr: h}, nil
}

// Header returns the frame's decoded header.
func (r *Reader) Header() Header {
	return r.hdr
}

func (r *Reader) fixedAt(n uint32) ([]byte, error) {
	start := headerSize + r.offset
	if r.offset+n > r.hdr.FixedSize {
		return nil, ErrMalformedFrame
	}
	return r.buf[start : start+n], nil
}

// ReadU32 decodes a little-endian uint32 at the current offset and advances
// it by 4.
func (r *Reader) ReadU32() (uint32, error) {
	b, err := r.fixedAt(4)
	if err != nil {
		return 0, err
	}
	r.offset += 4
	return binary.LittleEndian.Uint32(b), nil
}

// ReadI32 decodes a little-endian int32 at the current offset and advances
// it by 4.
func (r *Reader) ReadI32() (int32, error) {
	v, err := r.ReadU32()
	return int32(v), err
}

// ReadU64 decodes a little-endian uint64 at the current offset and advances
// it by 8.
func (r *Reader) ReadU64() (uint64, error) {
	b, err := r.fixedAt(8)
	if err != nil {
		return 0, err
	}
	r.offset += 8
	return binary.LittleEndian.Uint64(b), nil
}

// ReadString decodes a string descriptor at the current offset, advances it
// by 8, and returns the NUL-terminated string from the variable area. The
// returned string's length is determined by the NUL terminator, not by the
// encoded length; the encoded length bounds the region searched for the NUL,
// and a descriptor with no NUL inside that region is rejected.
func (r *Reader) ReadString() (string, error) {
	varOffset, err := r.ReadU32()
	if err != nil {
		return "", err
	}
	declaredLen, err := r.ReadU32()
	if err != nil {
		return "", err
	}
	if uint64(varOffset)+uint64(declaredLen) > uint64(r.hdr.VariableSize) {
		return "", ErrMalformedFrame
	}
	start := headerSize + r.hdr.FixedSize + varOffset
	region := r.buf[start : start+declaredLen]
	nul := indexByte(region, 0)
	if nul < 0 {
		return "", ErrMalformedFrame
	}
	return string(region[:nul]), nil
}

func indexByte(b []byte, c byte) int {
	for i, v := range b {
		if v == c {
			return i
		}
	}
	return -1
}

// Matches reports whether a response frame matches a request frame per
// spec.md §3: same command, request is Request-typed, response is
// Response-typed.
func Matches(request, response Header) bool {
	return request.Type == TypeRequest && response.Type == TypeResponse && request.Command == response.Command
}
