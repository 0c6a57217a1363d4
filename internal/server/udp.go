package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/netip"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bixboy/NetLessons/internal/config"
	"github.com/bixboy/NetLessons/internal/metrics"
)

// ErrNotStarted is returned by SendTo before Start succeeded or after Stop.
var ErrNotStarted = errors.New("udp server not started")

// UDPServer owns the lobby socket. A background goroutine reads datagrams into
// a queue; PollEvents drains that queue on the caller's goroutine.
type UDPServer struct {
	conn       *net.UDPConn
	config     *config.ServerConfig
	logger     *slog.Logger
	dispatcher *Dispatcher
	metrics    *metrics.Metrics

	// Concurrency management
	stopping atomic.Bool
	wg       sync.WaitGroup

	// Packet queue, the only state shared with the receive loop
	mu    sync.Mutex
	queue []*incomingPacket

	// Basic counters
	packetsReceived uint64
	packetsDropped  uint64
	packetsPolled   uint64
	packetsSent     uint64
	sendErrors      uint64
}

// incomingPacket represents a received UDP datagram with metadata
type incomingPacket struct {
	data       []byte
	remoteAddr netip.AddrPort
	timestamp  time.Time
}

// NewUDPServer creates a new UDP server instance
func NewUDPServer(cfg *config.ServerConfig, logger *slog.Logger, dispatcher *Dispatcher, m *metrics.Metrics) *UDPServer {
	return &UDPServer{
		config:     cfg,
		logger:     logger,
		dispatcher: dispatcher,
		metrics:    m,
		queue:      make([]*incomingPacket, 0, 64),
	}
}

// Start binds the socket and starts the receive loop. A bind failure is returned
// to the caller and is fatal at startup.
func (s *UDPServer) Start() error {
	addr, err := net.ResolveUDPAddr("udp", fmt.Sprintf("%s:%d", s.config.BindAddress, s.config.UDPPort))
	if err != nil {
		return fmt.Errorf("failed to resolve UDP address: %w", err)
	}

	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on UDP: %w", err)
	}

	s.conn = conn

	if err := s.conn.SetReadBuffer(s.config.BufferSize); err != nil {
		s.logger.Warn("Failed to set UDP read buffer size",
			slog.Int("buffer_size", s.config.BufferSize),
			slog.String("error", err.Error()),
		)
	}

	s.logger.Info("UDP server started",
		slog.String("address", s.conn.LocalAddr().String()),
		slog.Int("buffer_size", s.config.BufferSize),
		slog.Int("max_datagram_size", s.config.MaxDatagramSize),
	)

	s.wg.Add(1)
	go s.receiveLoop()

	return nil
}

// Stop closes the socket, which unblocks the receive loop, and waits for it to exit.
func (s *UDPServer) Stop() error {
	if s.conn == nil || !s.stopping.CompareAndSwap(false, true) {
		return nil
	}

	s.logger.Info("Stopping UDP server...")

	var closeErr error
	if err := s.conn.Close(); err != nil {
		closeErr = fmt.Errorf("failed to close UDP connection: %w", err)
	}

	s.wg.Wait()

	stats := s.GetStatistics()
	s.logger.Info("UDP server stopped",
		slog.Uint64("packets_received", stats.PacketsReceived),
		slog.Uint64("packets_polled", stats.PacketsPolled),
		slog.Uint64("packets_dropped", stats.PacketsDropped),
		slog.Uint64("packets_sent", stats.PacketsSent),
	)

	return closeErr
}

// LocalAddr returns the bound address, or nil before Start.
func (s *UDPServer) LocalAddr() net.Addr {
	if s.conn == nil {
		return nil
	}
	return s.conn.LocalAddr()
}

// receiveLoop is the main packet receiving loop
func (s *UDPServer) receiveLoop() {
	defer s.wg.Done()

	// one spare byte detects datagrams larger than the configured maximum
	buffer := make([]byte, s.config.MaxDatagramSize+1)

	for {
		n, remoteAddr, err := s.conn.ReadFromUDPAddrPort(buffer)
		if err != nil {
			if s.stopping.Load() || errors.Is(err, net.ErrClosed) {
				s.logger.Debug("Receive loop stopping")
				return
			}
			s.logger.Error("Failed to read UDP packet", slog.String("error", err.Error()))
			continue
		}

		atomic.AddUint64(&s.packetsReceived, 1)
		s.metrics.RecordPacketReceived()

		if n > s.config.MaxDatagramSize {
			s.logger.Warn("Dropping oversized datagram",
				slog.String("remote_addr", remoteAddr.String()),
				slog.Int("max_datagram_size", s.config.MaxDatagramSize),
			)
			s.drop(metrics.DropOversized)
			continue
		}

		// Create packet data copy (buffer will be reused)
		packetData := make([]byte, n)
		copy(packetData, buffer[:n])

		packet := &incomingPacket{
			data:       packetData,
			remoteAddr: normalize(remoteAddr),
			timestamp:  time.Now(),
		}

		if !s.enqueue(packet) {
			s.logger.Warn("Packet queue full, dropping packet",
				slog.String("remote_addr", remoteAddr.String()),
				slog.Int("packet_size", n),
			)
			s.drop(metrics.DropQueueFull)
		}
	}
}

func (s *UDPServer) enqueue(packet *incomingPacket) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) >= s.config.QueueSize {
		return false
	}
	s.queue = append(s.queue, packet)
	s.metrics.SetQueueSize(len(s.queue))
	return true
}

func (s *UDPServer) drop(reason string) {
	atomic.AddUint64(&s.packetsDropped, 1)
	s.metrics.RecordPacketDropped(reason)
}

// PollEvents swaps out the queued packets and dispatches each of them on the
// calling goroutine, in arrival order. It returns the number of packets drained.
func (s *UDPServer) PollEvents() int {
	s.mu.Lock()
	pending := s.queue
	s.queue = make([]*incomingPacket, 0, cap(pending))
	s.metrics.SetQueueSize(0)
	s.mu.Unlock()

	for _, packet := range pending {
		s.dispatcher.Dispatch(packet.data, packet.remoteAddr)
	}
	atomic.AddUint64(&s.packetsPolled, uint64(len(pending)))

	return len(pending)
}

// SendTo writes one datagram. Delivery is fire-and-forget.
func (s *UDPServer) SendTo(addr netip.AddrPort, data []byte) error {
	if s.conn == nil || s.stopping.Load() {
		return ErrNotStarted
	}

	_, err := s.conn.WriteToUDPAddrPort(data, addr)
	s.metrics.RecordPacketSent(err)
	if err != nil {
		atomic.AddUint64(&s.sendErrors, 1)
		return fmt.Errorf("send to %s: %w", addr, err)
	}
	atomic.AddUint64(&s.packetsSent, 1)
	return nil
}

// GetStatistics returns current server statistics
func (s *UDPServer) GetStatistics() ServerStatistics {
	s.mu.Lock()
	queued := len(s.queue)
	s.mu.Unlock()

	return ServerStatistics{
		PacketsReceived: atomic.LoadUint64(&s.packetsReceived),
		PacketsPolled:   atomic.LoadUint64(&s.packetsPolled),
		PacketsDropped:  atomic.LoadUint64(&s.packetsDropped),
		PacketsSent:     atomic.LoadUint64(&s.packetsSent),
		SendErrors:      atomic.LoadUint64(&s.sendErrors),
		QueueSize:       uint64(queued),
		QueueCapacity:   uint64(s.config.QueueSize),
	}
}

// ServerStatistics represents transport counters
type ServerStatistics struct {
	PacketsReceived uint64 `json:"packets_received"`
	PacketsPolled   uint64 `json:"packets_polled"`
	PacketsDropped  uint64 `json:"packets_dropped"`
	PacketsSent     uint64 `json:"packets_sent"`
	SendErrors      uint64 `json:"send_errors"`
	QueueSize       uint64 `json:"queue_size"`
	QueueCapacity   uint64 `json:"queue_capacity"`
}

// normalize strips the IPv4-in-IPv6 mapping so the same peer always yields the same key.
func normalize(addr netip.AddrPort) netip.AddrPort {
	return netip.AddrPortFrom(addr.Addr().Unmap(), addr.Port())
}
