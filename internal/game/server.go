package game

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/netip"
	"sync/atomic"
	"time"

	"github.com/bixboy/NetLessons/internal/command"
	"github.com/bixboy/NetLessons/internal/config"
	"github.com/bixboy/NetLessons/internal/metrics"
	"github.com/bixboy/NetLessons/internal/protocol"
	"github.com/bixboy/NetLessons/internal/server"
	"github.com/bixboy/NetLessons/internal/session"
)

const (
	// SystemSender is the sender name of server-generated chat messages.
	SystemSender = "SYSTEM"
	// DefaultChannel is used when a chat packet carries no channel.
	DefaultChannel = "Global"
)

// Transport is the part of the UDP server the lobby drives.
type Transport interface {
	SendTo(addr netip.AddrPort, data []byte) error
	PollEvents() int
}

// Rand is the random source for colors and secrets.
type Rand interface {
	IntN(n int) int
}

type globalRand struct{}

func (globalRand) IntN(n int) int { return rand.IntN(n) }

// Lobby is the capability set handed to the feature systems.
type Lobby interface {
	SendTo(addr netip.AddrPort, pkt protocol.Packet)
	Broadcast(pkt protocol.Packet, except ...netip.AddrPort)
	GetPlayerByAddr(addr netip.AddrPort) (*session.Player, bool)
	GetPlayers() []*session.Player
	FindPlayerByName(name string) (*session.Player, bool)
	RegisterCommand(cmd command.Command)
	RemovePlayer(addr netip.AddrPort, reason string) bool
	Now() time.Time
}

// Server is the lobby. All exported methods except Status must be called from
// the tick goroutine.
type Server struct {
	cfg        *config.GameConfig
	logger     *slog.Logger
	transport  Transport
	dispatcher *server.Dispatcher
	metrics    *metrics.Metrics

	registry *session.Registry
	router   *command.Router

	// Feature systems, driven in this order
	auth *authSystem
	chat *chatSystem
	game *miniGame

	rng   Rand
	clock func() time.Time

	tick   uint64
	status atomic.Pointer[server.LobbyStatus]
}

// Option configures a Server.
type Option func(*Server)

// WithRand sets the random source for colors and secrets.
func WithRand(rng Rand) Option {
	return func(s *Server) {
		s.rng = rng
	}
}

// WithClock replaces time.Now.
func WithClock(clock func() time.Time) Option {
	return func(s *Server) {
		s.clock = clock
	}
}

// NewServer builds the lobby and registers every packet handler and command
// on dispatcher.
func NewServer(cfg *config.GameConfig, logger *slog.Logger, transport Transport,
	dispatcher *server.Dispatcher, m *metrics.Metrics, opts ...Option) *Server {

	s := &Server{
		cfg:        cfg,
		logger:     logger,
		transport:  transport,
		dispatcher: dispatcher,
		metrics:    m,
		rng:        globalRand{},
		clock:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.registry = session.NewRegistry(
		session.WithRand(s.rng),
		session.WithRateLimit(cfg.RateLimit, cfg.RateBurst),
	)
	s.router = command.NewRouter(s.denyCommand)

	s.auth = newAuthSystem(s, s.registry, logger, m, cfg)
	s.chat = newChatSystem(s, s.router, logger, m)
	s.game = newMiniGame(s, s.rng, logger, m)

	s.auth.register(dispatcher)
	s.chat.register(dispatcher)
	s.game.register(dispatcher)
	dispatcher.SetFilter(s.admit)

	s.publishStatus(s.clock())
	return s
}

// Run ticks until ctx is cancelled.
func (s *Server) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.GetTickInterval())
	defer ticker.Stop()

	s.logger.Info("Lobby running",
		slog.Duration("tick_interval", s.cfg.GetTickInterval()),
		slog.Duration("session_timeout", s.cfg.GetSessionTimeout()),
	)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Lobby stopped", slog.Uint64("ticks", s.tick))
			return
		case <-ticker.C:
			s.Tick()
		}
	}
}

// Tick drains pending packets, sweeps idle sessions and publishes the status.
func (s *Server) Tick() {
	start := time.Now()

	s.transport.PollEvents()

	now := s.clock()
	s.auth.sweep(now)

	s.tick++
	s.publishStatus(now)
	s.metrics.SetPlayers(s.registry.Len(), s.registry.Len()-s.registry.ActiveCount())
	s.metrics.RecordTick(time.Since(start).Seconds())
}

// Status returns the snapshot published by the last tick. Safe for concurrent use.
func (s *Server) Status() server.LobbyStatus {
	return *s.status.Load()
}

func (s *Server) publishStatus(now time.Time) {
	s.status.Store(&server.LobbyStatus{
		Players:   s.registry.Snapshot(),
		Round:     s.game.status(),
		Tick:      s.tick,
		UpdatedAt: now,
	})
}

// admit runs on every decoded packet before its handler. Packets from known
// sessions are subject to the per-session rate limit, except logouts; only
// admitted packets refresh liveness.
func (s *Server) admit(pkt protocol.Packet, from netip.AddrPort) bool {
	p, ok := s.registry.Get(from)
	if !ok {
		return true
	}
	now := s.clock()
	if !isLogout(pkt) && !p.Allow(now) {
		s.metrics.RecordPacketDropped(metrics.DropRateLimited)
		s.logger.Debug("Rate limited packet",
			slog.String("player", p.Name),
			slog.String("opcode", pkt.OpCode().String()),
		)
		return false
	}
	p.LastActivity = now
	return true
}

func isLogout(pkt protocol.Packet) bool {
	cs, ok := pkt.(*protocol.ConnectionState)
	return ok && !cs.Connected
}

func (s *Server) denyCommand(p *session.Player, cmd command.Command) {
	s.SendTo(p.Addr, systemChat(fmt.Sprintf("You must be admin to use %s%s.", command.Prefix, cmd.Name)))
}

// SendTo encodes pkt and sends it to addr. Delivery is best effort.
func (s *Server) SendTo(addr netip.AddrPort, pkt protocol.Packet) {
	data, err := protocol.Encode(pkt)
	if err != nil {
		s.logger.Error("Failed to encode packet",
			slog.String("opcode", pkt.OpCode().String()),
			slog.String("error", err.Error()),
		)
		return
	}
	s.send(addr, data)
}

// Broadcast sends pkt to every session except the listed addresses.
func (s *Server) Broadcast(pkt protocol.Packet, except ...netip.AddrPort) {
	data, err := protocol.Encode(pkt)
	if err != nil {
		s.logger.Error("Failed to encode packet",
			slog.String("opcode", pkt.OpCode().String()),
			slog.String("error", err.Error()),
		)
		return
	}

next:
	for _, p := range s.registry.All() {
		for _, skip := range except {
			if p.Addr == skip {
				continue next
			}
		}
		s.send(p.Addr, data)
	}
}

func (s *Server) send(addr netip.AddrPort, data []byte) {
	if err := s.transport.SendTo(addr, data); err != nil {
		s.logger.Debug("Failed to send packet",
			slog.String("remote_addr", addr.String()),
			slog.String("error", err.Error()),
		)
	}
}

// GetPlayerByAddr returns the session for addr.
func (s *Server) GetPlayerByAddr(addr netip.AddrPort) (*session.Player, bool) {
	return s.registry.Get(addr)
}

// GetPlayers returns every session in join order.
func (s *Server) GetPlayers() []*session.Player {
	return s.registry.All()
}

// FindPlayerByName returns the first session with exactly that name.
func (s *Server) FindPlayerByName(name string) (*session.Player, bool) {
	return s.registry.FindByName(name)
}

// RegisterCommand adds a slash command.
func (s *Server) RegisterCommand(cmd command.Command) {
	s.router.Register(cmd)
}

// RemovePlayer removes the session at addr through the standard leave path.
// It reports whether a session was removed.
func (s *Server) RemovePlayer(addr netip.AddrPort, reason string) bool {
	if !s.auth.remove(addr, reason) {
		return false
	}
	s.game.playerLeft()
	return true
}

// Now returns the lobby clock.
func (s *Server) Now() time.Time {
	return s.clock()
}

func systemChat(text string) *protocol.Chat {
	return &protocol.Chat{
		Sender:  SystemSender,
		Message: text,
		Channel: DefaultChannel,
	}
}
