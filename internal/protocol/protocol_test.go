package protocol

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestOpen(t *testing.T) {
	tests := []struct {
		name        string
		data        []byte
		expected    OpCode
		remaining   int
		expectError bool
		errorMsg    string
	}{
		{
			name:      "chat opcode with payload",
			data:      []byte{0x00, 0x00, 0x00, 0x01, 0xAA, 0xBB},
			expected:  OpChat,
			remaining: 2,
		},
		{
			name:      "ping without payload",
			data:      []byte{0x00, 0x00, 0x00, 0x07},
			expected:  OpPing,
			remaining: 0,
		},
		{
			name:        "opcode truncated",
			data:        []byte{0x00, 0x00, 0x01},
			expectError: true,
			errorMsg:    "packet too short",
		},
		{
			name:        "empty data",
			data:        []byte{},
			expectError: true,
			errorMsg:    "packet too short",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			op, r, err := Open(tt.data)

			if tt.expectError {
				if err == nil {
					t.Fatalf("Expected error but got none")
				}
				if !errors.Is(err, ErrDecode) {
					t.Errorf("Expected ErrDecode, got %v", err)
				}
				if !strings.Contains(err.Error(), tt.errorMsg) {
					t.Errorf("Expected error to contain '%s', got '%s'", tt.errorMsg, err.Error())
				}
				return
			}
			if err != nil {
				t.Fatalf("Expected no error but got: %v", err)
			}
			if op != tt.expected {
				t.Errorf("Expected opcode %s, got %s", tt.expected, op)
			}
			if r.Remaining() != tt.remaining {
				t.Errorf("Expected %d remaining bytes, got %d", tt.remaining, r.Remaining())
			}
		})
	}
}

func TestWriterByteOrder(t *testing.T) {
	w := NewWriter(OpGameData)
	w.WriteInt32(73)
	w.WriteBool(true)
	w.WriteUint8(5)
	w.WriteString("hi")

	data, err := w.Bytes()
	if err != nil {
		t.Fatalf("Expected no error but got: %v", err)
	}

	expected := []byte{
		0x00, 0x00, 0x00, 0x03, // opcode GameData
		0x00, 0x00, 0x00, 0x49, // 73
		0x01,       // true
		0x05,       // uint8
		0x00, 0x02, // string length
		'h', 'i',
	}
	if !bytes.Equal(data, expected) {
		t.Errorf("Expected % x, got % x", expected, data)
	}
}

func TestWriterStringTooLong(t *testing.T) {
	w := NewWriter(OpChat)
	w.WriteString(strings.Repeat("x", MaxStringLen+1))
	w.WriteString("ignored")

	if _, err := w.Bytes(); !errors.Is(err, ErrStringTooLong) {
		t.Errorf("Expected ErrStringTooLong, got %v", err)
	}
}

func TestReaderTruncated(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		read     func(r *Reader) error
		errorMsg string
	}{
		{
			name:     "int32 short",
			data:     []byte{0x00, 0x01},
			read:     func(r *Reader) error { _, err := r.ReadInt32(); return err },
			errorMsg: "int32 needs 4 bytes, 2 left",
		},
		{
			name:     "bool empty",
			data:     nil,
			read:     func(r *Reader) error { _, err := r.ReadBool(); return err },
			errorMsg: "uint8 needs 1 bytes, 0 left",
		},
		{
			name:     "string length short",
			data:     []byte{0x00},
			read:     func(r *Reader) error { _, err := r.ReadString(); return err },
			errorMsg: "string length",
		},
		{
			name:     "string body past end",
			data:     []byte{0x00, 0x05, 'a', 'b'},
			read:     func(r *Reader) error { _, err := r.ReadString(); return err },
			errorMsg: "string body needs 5 bytes, 2 left",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.read(NewReader(tt.data))
			if err == nil {
				t.Fatalf("Expected error but got none")
			}
			if !errors.Is(err, ErrDecode) {
				t.Errorf("Expected ErrDecode, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.errorMsg) {
				t.Errorf("Expected error to contain '%s', got '%s'", tt.errorMsg, err.Error())
			}
		})
	}
}

func TestReadBoolNonZero(t *testing.T) {
	v, err := NewReader([]byte{0x7F}).ReadBool()
	if err != nil {
		t.Fatalf("Expected no error but got: %v", err)
	}
	if !v {
		t.Errorf("Expected any non-zero byte to decode as true")
	}
}

func TestDecodePackets(t *testing.T) {
	tests := []struct {
		name     string
		packet   Packet
		validate func(Packet) bool
	}{
		{
			name:   "connection state",
			packet: &ConnectionState{Connected: true, Name: "alice", ColorID: 3},
			validate: func(p Packet) bool {
				cs, ok := p.(*ConnectionState)
				return ok && cs.Connected && cs.Name == "alice" && cs.ColorID == 3
			},
		},
		{
			name:   "whisper chat",
			packet: &Chat{Sender: "alice", Message: "psst", Channel: "Global", Target: "bob"},
			validate: func(p Packet) bool {
				c, ok := p.(*Chat)
				return ok && c.Sender == "alice" && c.Message == "psst" && c.Channel == "Global" && c.Target == "bob"
			},
		},
		{
			name:   "negative guess",
			packet: &GameData{Value: -4},
			validate: func(p Packet) bool {
				g, ok := p.(*GameData)
				return ok && g.Value == -4
			},
		},
		{
			name:   "player list entry",
			packet: &PlayerList{Name: "carol", ColorID: 7},
			validate: func(p Packet) bool {
				pl, ok := p.(*PlayerList)
				return ok && pl.Name == "carol" && pl.ColorID == 7
			},
		},
		{
			name:   "game end has no payload",
			packet: &GameEnd{},
			validate: func(p Packet) bool {
				_, ok := p.(*GameEnd)
				return ok
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := Encode(tt.packet)
			if err != nil {
				t.Fatalf("Encode failed: %v", err)
			}
			decoded, err := Decode(data)
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			if decoded.OpCode() != tt.packet.OpCode() {
				t.Errorf("Expected opcode %s, got %s", tt.packet.OpCode(), decoded.OpCode())
			}
			if !tt.validate(decoded) {
				t.Errorf("Validation failed for result: %+v", decoded)
			}
		})
	}
}

func TestDecodeErrors(t *testing.T) {
	chat, err := Encode(&Chat{Sender: "alice", Message: "hello", Channel: "Global"})
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	tests := []struct {
		name    string
		data    []byte
		wantErr error
	}{
		{name: "unknown opcode", data: []byte{0x00, 0x00, 0x00, 0x05}, wantErr: ErrUnknownOpCode},
		{name: "truncated chat", data: chat[:len(chat)-3], wantErr: ErrDecode},
		{name: "guess without value", data: []byte{0x00, 0x00, 0x00, 0x03, 0x01}, wantErr: ErrDecode},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Decode(tt.data); !errors.Is(err, tt.wantErr) {
				t.Errorf("Expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestOpCodeString(t *testing.T) {
	if OpPlayerState.String() != "PlayerState" {
		t.Errorf("Expected PlayerState, got %s", OpPlayerState.String())
	}
	if !strings.Contains(OpCode(42).String(), "42") {
		t.Errorf("Expected unknown opcode to include its value, got %s", OpCode(42).String())
	}
}
