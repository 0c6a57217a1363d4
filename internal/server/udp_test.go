package server

import (
	"net"
	"net/netip"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/bixboy/NetLessons/internal/config"
	"github.com/bixboy/NetLessons/internal/protocol"
)

func testServerConfig() *config.ServerConfig {
	cfg := config.Default().Server
	cfg.UDPPort = 0
	cfg.BindAddress = "127.0.0.1"
	cfg.QueueSize = 8
	return &cfg
}

func startTestServer(t *testing.T, cfg *config.ServerConfig, d *Dispatcher) *UDPServer {
	t.Helper()
	s := NewUDPServer(cfg, d.logger, d, d.metrics)
	require.NoError(t, s.Start())
	t.Cleanup(func() { _ = s.Stop() })
	return s
}

func dialServer(t *testing.T, s *UDPServer) *net.UDPConn {
	t.Helper()
	conn, err := net.DialUDP("udp", nil, s.LocalAddr().(*net.UDPAddr))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// pollUntil drains the server until cond holds or the deadline passes.
func pollUntil(t *testing.T, s *UDPServer, cond func() bool) {
	t.Helper()
	require.Eventually(t, func() bool {
		s.PollEvents()
		return cond()
	}, 2*time.Second, time.Millisecond)
}

func TestUDPServerPollDispatchesOnCaller(t *testing.T) {
	d, _ := newTestDispatcher()

	var messages []string
	var sender netip.AddrPort
	Register(d, func(pkt *protocol.Chat, from netip.AddrPort) {
		messages = append(messages, pkt.Message)
		sender = from
	})

	s := startTestServer(t, testServerConfig(), d)
	conn := dialServer(t, s)

	for _, msg := range []string{"one", "two", "three"} {
		_, err := conn.Write(encode(t, &protocol.Chat{Sender: "x", Message: msg}))
		require.NoError(t, err)
	}

	pollUntil(t, s, func() bool { return len(messages) == 3 })
	require.Equal(t, []string{"one", "two", "three"}, messages)
	require.True(t, sender.Addr().Is4())
	require.Equal(t, uint16(conn.LocalAddr().(*net.UDPAddr).Port), sender.Port())

	stats := s.GetStatistics()
	require.Equal(t, uint64(3), stats.PacketsReceived)
	require.Equal(t, uint64(3), stats.PacketsPolled)
}

func TestUDPServerQueueGaugeTracksBacklog(t *testing.T) {
	d, m := newTestDispatcher()
	pings := 0
	Register(d, func(*protocol.Ping, netip.AddrPort) { pings++ })

	cfg := testServerConfig()
	cfg.QueueSize = 3
	s := NewUDPServer(cfg, d.logger, d, m)

	for i := 0; i < 4; i++ {
		s.enqueue(&incomingPacket{data: encode(t, &protocol.Ping{}), remoteAddr: peer})
	}
	require.Equal(t, 3.0, testutil.ToFloat64(m.QueueSize))
	require.Equal(t, uint64(3), s.GetStatistics().QueueSize)

	require.Equal(t, 3, s.PollEvents())
	require.Equal(t, 3, pings)
	require.Equal(t, 0.0, testutil.ToFloat64(m.QueueSize))

	s.enqueue(&incomingPacket{data: encode(t, &protocol.Ping{}), remoteAddr: peer})
	require.Equal(t, 1.0, testutil.ToFloat64(m.QueueSize))
}

func TestUDPServerSendTo(t *testing.T) {
	d, _ := newTestDispatcher()

	var from netip.AddrPort
	Register(d, func(_ *protocol.Ping, addr netip.AddrPort) { from = addr })

	s := startTestServer(t, testServerConfig(), d)
	conn := dialServer(t, s)

	_, err := conn.Write(encode(t, &protocol.Ping{}))
	require.NoError(t, err)
	pollUntil(t, s, func() bool { return from.IsValid() })

	require.NoError(t, s.SendTo(from, encode(t, &protocol.Ping{})))

	buf := make([]byte, 64)
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	n, err := conn.Read(buf)
	require.NoError(t, err)

	pkt, err := protocol.Decode(buf[:n])
	require.NoError(t, err)
	require.IsType(t, &protocol.Ping{}, pkt)
	require.Equal(t, uint64(1), s.GetStatistics().PacketsSent)
}

func TestUDPServerDropsOversizedDatagrams(t *testing.T) {
	d, _ := newTestDispatcher()
	pings := 0
	Register(d, func(*protocol.Ping, netip.AddrPort) { pings++ })

	cfg := testServerConfig()
	cfg.MaxDatagramSize = 16
	s := startTestServer(t, cfg, d)
	conn := dialServer(t, s)

	_, err := conn.Write(make([]byte, 64))
	require.NoError(t, err)
	_, err = conn.Write(encode(t, &protocol.Ping{}))
	require.NoError(t, err)

	pollUntil(t, s, func() bool { return pings == 1 })
	require.Equal(t, uint64(1), s.GetStatistics().PacketsDropped)
}

func TestUDPServerStopUnblocksReceiveLoop(t *testing.T) {
	d, _ := newTestDispatcher()
	s := startTestServer(t, testServerConfig(), d)

	done := make(chan error, 1)
	go func() { done <- s.Stop() }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return")
	}

	require.ErrorIs(t, s.SendTo(netip.MustParseAddrPort("127.0.0.1:9"), []byte{0, 0, 0, 7}), ErrNotStarted)
	require.NoError(t, s.Stop())
}

func TestUDPServerBindFailure(t *testing.T) {
	d, _ := newTestDispatcher()
	first := startTestServer(t, testServerConfig(), d)

	cfg := testServerConfig()
	cfg.UDPPort = first.LocalAddr().(*net.UDPAddr).Port
	second := NewUDPServer(cfg, d.logger, d, d.metrics)
	require.Error(t, second.Start())
}
