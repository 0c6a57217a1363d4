package protocol

import "fmt"

// Packet is a flat payload that knows its opcode.
type Packet interface {
	OpCode() OpCode
	WritePayload(w *Writer)
	ReadPayload(r *Reader) error
}

// Hint values carried by GameData replies.
const (
	HintHigher int32 = 1 // the secret is above the guess
	HintLower  int32 = 2 // the secret is below the guess
)

// ConnectionState is a login (Connected=true) or logout notice.
// Layout: [Connected:1][Name:str][ColorID:1]
type ConnectionState struct {
	Connected bool
	Name      string
	ColorID   uint8
}

// Chat carries a broadcast message, or a whisper when Target is set.
// Layout: [Sender:str][Message:str][Channel:str][Target:str]
type Chat struct {
	Sender  string
	Message string
	Channel string
	Target  string
}

// GameStart requests (client) or announces (server) a new round.
type GameStart struct{}

// GameData is a guess from a client or a hint from the server.
// Layout: [Value:4]
type GameData struct {
	Value int32
}

// GameResult announces the winner of a round.
// Layout: [WinnerName:str]
type GameResult struct {
	WinnerName string
}

// GameEnd announces a round that ended without a winner.
type GameEnd struct{}

// Ping is the keep-alive sent by clients; the server echoes it back as pong.
type Ping struct{}

// PlayerList is one roster entry sent to a newly joined session.
// Layout: [Name:str][ColorID:1]
type PlayerList struct {
	Name    string
	ColorID uint8
}

// PlayerState toggles spectator mode.
// Layout: [Spectator:1]
type PlayerState struct {
	Spectator bool
}

func (*ConnectionState) OpCode() OpCode { return OpConnectionState }
func (*Chat) OpCode() OpCode            { return OpChat }
func (*GameStart) OpCode() OpCode       { return OpGameStart }
func (*GameData) OpCode() OpCode        { return OpGameData }
func (*GameResult) OpCode() OpCode      { return OpGameResult }
func (*GameEnd) OpCode() OpCode         { return OpGameEnd }
func (*Ping) OpCode() OpCode            { return OpPing }
func (*PlayerList) OpCode() OpCode      { return OpPlayerList }
func (*PlayerState) OpCode() OpCode     { return OpPlayerState }

func (p *ConnectionState) WritePayload(w *Writer) {
	w.WriteBool(p.Connected)
	w.WriteString(p.Name)
	w.WriteUint8(p.ColorID)
}

func (p *ConnectionState) ReadPayload(r *Reader) error {
	var err error
	if p.Connected, err = r.ReadBool(); err != nil {
		return fmt.Errorf("connection state connected: %w", err)
	}
	if p.Name, err = r.ReadString(); err != nil {
		return fmt.Errorf("connection state name: %w", err)
	}
	if p.ColorID, err = r.ReadUint8(); err != nil {
		return fmt.Errorf("connection state color: %w", err)
	}
	return nil
}

func (p *Chat) WritePayload(w *Writer) {
	w.WriteString(p.Sender)
	w.WriteString(p.Message)
	w.WriteString(p.Channel)
	w.WriteString(p.Target)
}

func (p *Chat) ReadPayload(r *Reader) error {
	var err error
	if p.Sender, err = r.ReadString(); err != nil {
		return fmt.Errorf("chat sender: %w", err)
	}
	if p.Message, err = r.ReadString(); err != nil {
		return fmt.Errorf("chat message: %w", err)
	}
	if p.Channel, err = r.ReadString(); err != nil {
		return fmt.Errorf("chat channel: %w", err)
	}
	if p.Target, err = r.ReadString(); err != nil {
		return fmt.Errorf("chat target: %w", err)
	}
	return nil
}

func (*GameStart) WritePayload(*Writer)      {}
func (*GameStart) ReadPayload(*Reader) error { return nil }

func (p *GameData) WritePayload(w *Writer) {
	w.WriteInt32(p.Value)
}

func (p *GameData) ReadPayload(r *Reader) error {
	var err error
	if p.Value, err = r.ReadInt32(); err != nil {
		return fmt.Errorf("game data value: %w", err)
	}
	return nil
}

func (p *GameResult) WritePayload(w *Writer) {
	w.WriteString(p.WinnerName)
}

func (p *GameResult) ReadPayload(r *Reader) error {
	var err error
	if p.WinnerName, err = r.ReadString(); err != nil {
		return fmt.Errorf("game result winner: %w", err)
	}
	return nil
}

func (*GameEnd) WritePayload(*Writer)      {}
func (*GameEnd) ReadPayload(*Reader) error { return nil }

func (*Ping) WritePayload(*Writer)      {}
func (*Ping) ReadPayload(*Reader) error { return nil }

func (p *PlayerList) WritePayload(w *Writer) {
	w.WriteString(p.Name)
	w.WriteUint8(p.ColorID)
}

func (p *PlayerList) ReadPayload(r *Reader) error {
	var err error
	if p.Name, err = r.ReadString(); err != nil {
		return fmt.Errorf("player list name: %w", err)
	}
	if p.ColorID, err = r.ReadUint8(); err != nil {
		return fmt.Errorf("player list color: %w", err)
	}
	return nil
}

func (p *PlayerState) WritePayload(w *Writer) {
	w.WriteBool(p.Spectator)
}

func (p *PlayerState) ReadPayload(r *Reader) error {
	var err error
	if p.Spectator, err = r.ReadBool(); err != nil {
		return fmt.Errorf("player state spectator: %w", err)
	}
	return nil
}

// New returns an empty packet for the opcode, or nil if the opcode is unknown.
func New(op OpCode) Packet {
	switch op {
	case OpConnectionState:
		return &ConnectionState{}
	case OpChat:
		return &Chat{}
	case OpGameStart:
		return &GameStart{}
	case OpGameData:
		return &GameData{}
	case OpGameResult:
		return &GameResult{}
	case OpGameEnd:
		return &GameEnd{}
	case OpPing:
		return &Ping{}
	case OpPlayerList:
		return &PlayerList{}
	case OpPlayerState:
		return &PlayerState{}
	default:
		return nil
	}
}

// Encode serializes a packet into a datagram.
func Encode(p Packet) ([]byte, error) {
	w := NewWriter(p.OpCode())
	p.WritePayload(w)
	data, err := w.Bytes()
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", p.OpCode(), err)
	}
	return data, nil
}

// Decode parses a complete datagram into a typed packet.
func Decode(data []byte) (Packet, error) {
	op, r, err := Open(data)
	if err != nil {
		return nil, err
	}
	p := New(op)
	if p == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownOpCode, op)
	}
	if err := p.ReadPayload(r); err != nil {
		return nil, fmt.Errorf("decode %s: %w", op, err)
	}
	return p, nil
}
