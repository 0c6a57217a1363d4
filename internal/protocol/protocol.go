package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// OpCode identifies the packet type. It is the first field of every datagram.
type OpCode int32

// Opcodes shared by client and server.
const (
	OpConnectionState OpCode = 0
	OpChat            OpCode = 1
	OpGameStart       OpCode = 2
	OpGameData        OpCode = 3
	OpGameResult      OpCode = 4
	OpPlayerList      OpCode = 6
	OpPing            OpCode = 7 // the server answers with a Ping as pong
	OpPlayerState     OpCode = 8
	OpGameEnd         OpCode = 9
)

// Packet structure sizes
const (
	OpCodeSize     = 4
	StringLenSize  = 2
	MaxStringLen   = math.MaxUint16
	MinPacketSize  = OpCodeSize
	MaxDatagramLen = 65507
)

var (
	// ErrDecode is wrapped by every error caused by a truncated or malformed payload.
	ErrDecode = errors.New("decode error")

	// ErrStringTooLong is returned when a string does not fit the 2-byte length prefix.
	ErrStringTooLong = errors.New("string too long")

	// ErrUnknownOpCode is returned by Decode for opcodes without a packet type.
	ErrUnknownOpCode = errors.New("unknown opcode")
)

// String returns a human-readable opcode name
func (op OpCode) String() string {
	switch op {
	case OpConnectionState:
		return "ConnectionState"
	case OpChat:
		return "Chat"
	case OpGameStart:
		return "GameStart"
	case OpGameData:
		return "GameData"
	case OpGameResult:
		return "GameResult"
	case OpPlayerList:
		return "PlayerList"
	case OpPing:
		return "Ping"
	case OpPlayerState:
		return "PlayerState"
	case OpGameEnd:
		return "GameEnd"
	default:
		return fmt.Sprintf("Unknown(%d)", int32(op))
	}
}

// Writer appends encoded fields to a growing buffer.
// The first error sticks; later writes are ignored.
type Writer struct {
	buf []byte
	err error
}

// NewWriter creates a writer that starts with the given opcode.
func NewWriter(op OpCode) *Writer {
	w := &Writer{buf: make([]byte, 0, 64)}
	w.WriteInt32(int32(op))
	return w
}

// WriteInt32 appends a big-endian 32-bit integer.
func (w *Writer) WriteInt32(v int32) {
	w.buf = binary.BigEndian.AppendUint32(w.buf, uint32(v))
}

// WriteUint8 appends a single byte.
func (w *Writer) WriteUint8(v uint8) {
	w.buf = append(w.buf, v)
}

// WriteBool appends a boolean as one byte (0 or 1).
func (w *Writer) WriteBool(v bool) {
	if v {
		w.WriteUint8(1)
		return
	}
	w.WriteUint8(0)
}

// WriteString appends a length-prefixed string.
func (w *Writer) WriteString(s string) {
	if w.err != nil {
		return
	}
	if len(s) > MaxStringLen {
		w.err = fmt.Errorf("%w: %d bytes (max %d)", ErrStringTooLong, len(s), MaxStringLen)
		return
	}
	w.buf = binary.BigEndian.AppendUint16(w.buf, uint16(len(s)))
	w.buf = append(w.buf, s...)
}

// Bytes returns the encoded datagram or the first write error.
func (w *Writer) Bytes() ([]byte, error) {
	if w.err != nil {
		return nil, w.err
	}
	return w.buf, nil
}

// Reader consumes fields from a received payload.
type Reader struct {
	data []byte
	off  int
}

// NewReader wraps a payload (without the opcode).
func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// Open splits a datagram into its opcode and a reader positioned on the payload.
func Open(data []byte) (OpCode, *Reader, error) {
	if len(data) < MinPacketSize {
		return 0, nil, fmt.Errorf("%w: packet too short: expected at least %d bytes, got %d",
			ErrDecode, MinPacketSize, len(data))
	}
	op := OpCode(int32(binary.BigEndian.Uint32(data[:OpCodeSize])))
	return op, NewReader(data[OpCodeSize:]), nil
}

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int {
	return len(r.data) - r.off
}

func (r *Reader) take(n int, field string) ([]byte, error) {
	if r.Remaining() < n {
		return nil, fmt.Errorf("%w: %s needs %d bytes, %d left", ErrDecode, field, n, r.Remaining())
	}
	b := r.data[r.off : r.off+n]
	r.off += n
	return b, nil
}

// ReadInt32 reads a big-endian 32-bit integer.
func (r *Reader) ReadInt32() (int32, error) {
	b, err := r.take(4, "int32")
	if err != nil {
		return 0, err
	}
	return int32(binary.BigEndian.Uint32(b)), nil
}

// ReadUint8 reads a single byte.
func (r *Reader) ReadUint8() (uint8, error) {
	b, err := r.take(1, "uint8")
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// ReadBool reads a one-byte boolean; any non-zero value is true.
func (r *Reader) ReadBool() (bool, error) {
	v, err := r.ReadUint8()
	return v != 0, err
}

// ReadString reads a length-prefixed string.
func (r *Reader) ReadString() (string, error) {
	lb, err := r.take(StringLenSize, "string length")
	if err != nil {
		return "", err
	}
	n := int(binary.BigEndian.Uint16(lb))
	b, err := r.take(n, "string body")
	if err != nil {
		return "", err
	}
	return string(b), nil
}
