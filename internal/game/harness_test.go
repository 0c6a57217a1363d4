package game

import (
	"io"
	"log/slog"
	"net/netip"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/bixboy/NetLessons/internal/config"
	"github.com/bixboy/NetLessons/internal/metrics"
	"github.com/bixboy/NetLessons/internal/protocol"
	"github.com/bixboy/NetLessons/internal/server"
)

// fixedRand always draws the same value, so a fixedRand(73) lobby has secret 73.
type fixedRand int

func (f fixedRand) IntN(n int) int { return int(f) % n }

type datagram struct {
	addr netip.AddrPort
	data []byte
}

// fakeTransport queues inbound datagrams until PollEvents and records every send.
type fakeTransport struct {
	dispatcher *server.Dispatcher
	inbound    []datagram
	sent       []datagram
}

func (f *fakeTransport) SendTo(addr netip.AddrPort, data []byte) error {
	f.sent = append(f.sent, datagram{addr: addr, data: data})
	return nil
}

func (f *fakeTransport) PollEvents() int {
	pending := f.inbound
	f.inbound = nil
	for _, d := range pending {
		f.dispatcher.Dispatch(d.data, d.addr)
	}
	return len(pending)
}

type harness struct {
	t       *testing.T
	srv     *Server
	tr      *fakeTransport
	metrics *metrics.Metrics
	now     time.Time
}

func newHarness(t *testing.T, tweak ...func(*config.GameConfig)) *harness {
	t.Helper()

	cfg := config.Default().Game
	cfg.RateLimit = 0
	for _, fn := range tweak {
		fn(&cfg)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := metrics.NewMetrics(prometheus.NewRegistry())
	d := server.NewDispatcher(logger, m)
	tr := &fakeTransport{dispatcher: d}

	h := &harness{t: t, tr: tr, metrics: m, now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	h.srv = NewServer(&cfg, logger, tr, d, m,
		WithRand(fixedRand(73)),
		WithClock(func() time.Time { return h.now }),
	)
	return h
}

func addr(port uint16) netip.AddrPort {
	return netip.AddrPortFrom(netip.MustParseAddr("127.0.0.1"), port)
}

// queue adds a packet from port to the next tick.
func (h *harness) queue(port uint16, pkt protocol.Packet) {
	h.t.Helper()
	data, err := protocol.Encode(pkt)
	require.NoError(h.t, err)
	h.tr.inbound = append(h.tr.inbound, datagram{addr: addr(port), data: data})
}

// send queues one packet and runs a tick.
func (h *harness) send(port uint16, pkt protocol.Packet) {
	h.t.Helper()
	h.queue(port, pkt)
	h.srv.Tick()
}

func (h *harness) join(port uint16, name string) {
	h.t.Helper()
	h.send(port, &protocol.ConnectionState{Connected: true, Name: name})
}

func (h *harness) say(port uint16, text string) {
	h.t.Helper()
	h.send(port, &protocol.Chat{Message: text})
}

func (h *harness) advance(d time.Duration) {
	h.now = h.now.Add(d)
}

func (h *harness) clear() {
	h.tr.sent = nil
}

// inbox decodes everything sent to port since the last clear.
func (h *harness) inbox(port uint16) []protocol.Packet {
	h.t.Helper()
	var out []protocol.Packet
	for _, d := range h.tr.sent {
		if d.addr != addr(port) {
			continue
		}
		pkt, err := protocol.Decode(d.data)
		require.NoError(h.t, err)
		out = append(out, pkt)
	}
	return out
}

func (h *harness) chats(port uint16) []*protocol.Chat {
	var out []*protocol.Chat
	for _, pkt := range h.inbox(port) {
		if c, ok := pkt.(*protocol.Chat); ok {
			out = append(out, c)
		}
	}
	return out
}

func count[T protocol.Packet](pkts []protocol.Packet) int {
	n := 0
	for _, pkt := range pkts {
		if _, ok := pkt.(T); ok {
			n++
		}
	}
	return n
}

func (h *harness) admins() []string {
	var names []string
	for _, p := range h.srv.GetPlayers() {
		if p.Admin {
			names = append(names, p.Name)
		}
	}
	return names
}

// lobbyOf joins the named players on ports 1..n and clears their inboxes.
func (h *harness) lobbyOf(names ...string) {
	h.t.Helper()
	for i, name := range names {
		h.join(uint16(i+1), name)
	}
	h.clear()
}
