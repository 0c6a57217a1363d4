package game

import (
	"fmt"
	"log/slog"
	"net/netip"
	"strings"
	"time"
	"unicode"

	"github.com/bixboy/NetLessons/internal/config"
	"github.com/bixboy/NetLessons/internal/metrics"
	"github.com/bixboy/NetLessons/internal/protocol"
	"github.com/bixboy/NetLessons/internal/server"
	"github.com/bixboy/NetLessons/internal/session"
)

// DefaultPlayerName replaces names that are empty after cleaning.
const DefaultPlayerName = "Player"

// authSystem handles login, logout, keep-alives and the liveness sweep.
type authSystem struct {
	lobby    Lobby
	registry *session.Registry
	logger   *slog.Logger
	metrics  *metrics.Metrics

	timeout       time.Duration
	maxNameLength int
}

func newAuthSystem(lobby Lobby, registry *session.Registry, logger *slog.Logger,
	m *metrics.Metrics, cfg *config.GameConfig) *authSystem {
	return &authSystem{
		lobby:         lobby,
		registry:      registry,
		logger:        logger,
		metrics:       m,
		timeout:       cfg.GetSessionTimeout(),
		maxNameLength: cfg.MaxNameLength,
	}
}

func (a *authSystem) register(d *server.Dispatcher) {
	server.Register(d, a.handleConnectionState)
	server.Register(d, a.handlePing)
}

func (a *authSystem) handleConnectionState(pkt *protocol.ConnectionState, from netip.AddrPort) {
	if !pkt.Connected {
		a.lobby.RemovePlayer(from, metrics.ReasonLogout)
		return
	}

	name := cleanName(pkt.Name, a.maxNameLength)

	if p, ok := a.registry.Get(from); ok {
		if p.Name != name {
			a.logger.Info("Player renamed",
				slog.String("player_id", p.ID.String()),
				slog.String("old_name", p.Name),
				slog.String("new_name", name),
			)
			p.Name = name
		}
		return
	}

	// roster first, so the newcomer never sees itself in it
	for _, existing := range a.registry.All() {
		a.lobby.SendTo(from, &protocol.PlayerList{Name: existing.Name, ColorID: existing.ColorID})
	}

	p, err := a.registry.Add(from, name, a.lobby.Now())
	if err != nil {
		a.logger.Error("Failed to add player",
			slog.String("remote_addr", from.String()),
			slog.String("error", err.Error()),
		)
		return
	}

	a.lobby.Broadcast(&protocol.ConnectionState{Connected: true, Name: p.Name, ColorID: p.ColorID}, from)
	a.metrics.RecordPlayerJoined()

	a.logger.Info("Player joined",
		slog.String("player_id", p.ID.String()),
		slog.String("name", p.Name),
		slog.String("remote_addr", from.String()),
		slog.String("color", session.Palette[p.ColorID]),
		slog.Bool("admin", p.Admin),
	)

	if p.Admin {
		a.lobby.SendTo(from, systemChat("You are the admin. Type /help for commands."))
	}
}

// handlePing answers every ping, including those sent before login.
func (a *authSystem) handlePing(_ *protocol.Ping, from netip.AddrPort) {
	a.registry.Touch(from, a.lobby.Now())
	a.lobby.SendTo(from, &protocol.Ping{})
}

// remove broadcasts the leave notice to every session, the departing one
// included, then drops the session and announces any admin promotion.
func (a *authSystem) remove(addr netip.AddrPort, reason string) bool {
	p, ok := a.registry.Get(addr)
	if !ok {
		return false
	}

	a.lobby.Broadcast(&protocol.ConnectionState{Connected: false, Name: p.Name, ColorID: p.ColorID})

	_, promoted, err := a.registry.Remove(addr)
	if err != nil {
		return false
	}
	a.metrics.RecordPlayerLeft(reason)

	a.logger.Info("Player left",
		slog.String("player_id", p.ID.String()),
		slog.String("name", p.Name),
		slog.String("reason", reason),
	)

	if promoted != nil {
		a.metrics.RecordAdminPromotion()
		a.logger.Info("Admin transferred",
			slog.String("player_id", promoted.ID.String()),
			slog.String("name", promoted.Name),
		)
		a.lobby.Broadcast(systemChat(fmt.Sprintf("%s is now the admin.", promoted.Name)))
	}
	return true
}

// sweep removes every session idle for longer than the timeout.
func (a *authSystem) sweep(now time.Time) {
	for _, p := range a.registry.Expired(now, a.timeout) {
		a.logger.Info("Session timed out",
			slog.String("name", p.Name),
			slog.Duration("idle", now.Sub(p.LastActivity)),
		)
		a.lobby.RemovePlayer(p.Addr, metrics.ReasonTimeout)
	}
}

// cleanName drops control characters, trims spaces and caps the length in runes.
func cleanName(name string, maxLen int) string {
	name = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, name)
	name = strings.TrimSpace(name)

	if maxLen > 0 {
		if runes := []rune(name); len(runes) > maxLen {
			name = strings.TrimSpace(string(runes[:maxLen]))
		}
	}
	if name == "" {
		return DefaultPlayerName
	}
	return name
}
