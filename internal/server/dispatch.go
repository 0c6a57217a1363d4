package server

import (
	"context"
	"errors"
	"log/slog"
	"net/netip"

	"github.com/bixboy/NetLessons/internal/metrics"
	"github.com/bixboy/NetLessons/internal/protocol"
)

// HandlerFunc handles the payload of one packet. Returning an error marks the
// packet as corrupt.
type HandlerFunc func(r *protocol.Reader, from netip.AddrPort) error

// FilterFunc runs on every successfully decoded packet before its handler;
// returning false drops the packet.
type FilterFunc func(pkt protocol.Packet, from netip.AddrPort) bool

// errFiltered marks a packet the filter refused. It is not a decode error.
var errFiltered = errors.New("packet filtered")

// Dispatcher routes decoded packets to the handler registered for their opcode.
// Handlers are registered at startup and invoked only from the goroutine that
// calls Dispatch.
type Dispatcher struct {
	handlers map[protocol.OpCode]HandlerFunc
	filter   FilterFunc
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// NewDispatcher creates an empty dispatcher
func NewDispatcher(logger *slog.Logger, m *metrics.Metrics) *Dispatcher {
	return &Dispatcher{
		handlers: make(map[protocol.OpCode]HandlerFunc),
		logger:   logger,
		metrics:  m,
	}
}

// Handle registers fn for op, replacing any previous handler. Raw handlers
// decode their own payload and are not passed through the filter.
func (d *Dispatcher) Handle(op protocol.OpCode, fn HandlerFunc) {
	d.handlers[op] = fn
}

// SetFilter installs a function consulted after decoding and before the
// handler of every packet registered with Register.
func (d *Dispatcher) SetFilter(fn FilterFunc) {
	d.filter = fn
}

// Register decodes packets of type P and passes them to fn. fn is not called
// when the payload fails to decode or the filter refuses the packet.
func Register[P any, PP interface {
	*P
	protocol.Packet
}](d *Dispatcher, fn func(pkt PP, from netip.AddrPort)) {
	op := PP(new(P)).OpCode()
	d.Handle(op, func(r *protocol.Reader, from netip.AddrPort) error {
		pkt := PP(new(P))
		if err := pkt.ReadPayload(r); err != nil {
			return err
		}
		if d.filter != nil && !d.filter(pkt, from) {
			return errFiltered
		}
		fn(pkt, from)
		return nil
	})
}

// Dispatch decodes the opcode of one datagram and runs its handler.
func (d *Dispatcher) Dispatch(data []byte, from netip.AddrPort) {
	op, r, err := protocol.Open(data)
	if err != nil {
		d.metrics.RecordDecodeError()
		d.logger.Debug("Dropping malformed packet",
			slog.String("remote_addr", from.String()),
			slog.Int("packet_size", len(data)),
			slog.String("error", err.Error()),
		)
		return
	}

	handler, ok := d.handlers[op]
	if !ok {
		d.metrics.RecordUnknownOpCode()
		d.logger.Debug("No handler for opcode",
			slog.String("remote_addr", from.String()),
			slog.String("opcode", op.String()),
		)
		return
	}

	if err := handler(r, from); err != nil {
		if errors.Is(err, errFiltered) {
			return
		}
		d.metrics.RecordDecodeError()
		level := slog.LevelWarn
		if errors.Is(err, protocol.ErrDecode) {
			level = slog.LevelDebug
		}
		d.logger.Log(context.Background(), level, "Dropping corrupt packet",
			slog.String("remote_addr", from.String()),
			slog.String("opcode", op.String()),
			slog.String("error", err.Error()),
		)
		return
	}

	d.metrics.RecordPacketDispatched()
}
