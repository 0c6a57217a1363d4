package game

import (
	"fmt"
	"log/slog"
	"net/netip"
	"time"

	"github.com/bixboy/NetLessons/internal/command"
	"github.com/bixboy/NetLessons/internal/metrics"
	"github.com/bixboy/NetLessons/internal/protocol"
	"github.com/bixboy/NetLessons/internal/server"
	"github.com/bixboy/NetLessons/internal/session"
)

// SecretRange bounds the secret: it is drawn uniformly from [0, SecretRange).
const SecretRange = 100

// RoundState is the state of the guessing game.
type RoundState int

const (
	Idle RoundState = iota
	Running
)

func (s RoundState) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	default:
		return fmt.Sprintf("RoundState(%d)", int(s))
	}
}

// miniGame is the number guessing round. At most one round exists at a time.
type miniGame struct {
	lobby   Lobby
	rng     Rand
	logger  *slog.Logger
	metrics *metrics.Metrics

	state     RoundState
	secret    int32
	round     int
	startedAt time.Time
	guesses   int
	winner    string
}

func newMiniGame(lobby Lobby, rng Rand, logger *slog.Logger, m *metrics.Metrics) *miniGame {
	return &miniGame{
		lobby:   lobby,
		rng:     rng,
		logger:  logger,
		metrics: m,
	}
}

func (g *miniGame) register(d *server.Dispatcher) {
	server.Register(d, g.handleGameStart)
	server.Register(d, g.handleGuess)
	server.Register(d, g.handlePlayerState)

	g.lobby.RegisterCommand(command.Command{
		Name:      "start",
		Usage:     "/start",
		AdminOnly: true,
		Run:       g.startCommand,
	})
	g.lobby.RegisterCommand(command.Command{
		Name:      "stop",
		Usage:     "/stop",
		AdminOnly: true,
		Run:       g.stop,
	})
}

func (g *miniGame) handleGameStart(_ *protocol.GameStart, from netip.AddrPort) {
	p, ok := g.lobby.GetPlayerByAddr(from)
	if !ok {
		return
	}
	g.start(p.Name)
}

func (g *miniGame) startCommand(p *session.Player, _ []string) {
	if g.state != Running && !g.start(p.Name) {
		g.lobby.SendTo(p.Addr, systemChat("Nobody can guess: every player is spectating."))
	}
}

// start opens a round and reports whether it did. It is a no-op while a round
// is running or when every player is spectating.
func (g *miniGame) start(by string) bool {
	if g.state == Running || !g.hasGuessers() {
		return false
	}

	g.state = Running
	g.secret = int32(g.rng.IntN(SecretRange))
	g.round++
	g.guesses = 0
	g.startedAt = g.lobby.Now()

	g.lobby.Broadcast(&protocol.GameStart{})
	g.metrics.RecordRoundStarted()

	g.logger.Info("Round started",
		slog.Int("round", g.round),
		slog.String("by", by),
	)
	g.logger.Debug("Round secret", slog.Int("round", g.round), slog.Int("secret", int(g.secret)))
	return true
}

func (g *miniGame) handleGuess(pkt *protocol.GameData, from netip.AddrPort) {
	if g.state != Running {
		return
	}
	p, ok := g.lobby.GetPlayerByAddr(from)
	if !ok || p.Spectator {
		return
	}

	g.guesses++
	g.metrics.RecordGuess()

	switch {
	case pkt.Value < g.secret:
		g.lobby.SendTo(from, &protocol.GameData{Value: protocol.HintHigher})
	case pkt.Value > g.secret:
		g.lobby.SendTo(from, &protocol.GameData{Value: protocol.HintLower})
	default:
		g.winner = p.Name
		g.end(metrics.OutcomeWon)
		g.lobby.Broadcast(&protocol.GameResult{WinnerName: p.Name})
		g.logger.Info("Round won",
			slog.Int("round", g.round),
			slog.String("winner", p.Name),
			slog.Int("guesses", g.guesses),
		)
	}
}

func (g *miniGame) stop(p *session.Player, _ []string) {
	if g.state != Running {
		g.lobby.SendTo(p.Addr, systemChat("No round is running."))
		return
	}

	g.end(metrics.OutcomeStopped)
	g.lobby.Broadcast(&protocol.GameEnd{})
	g.lobby.Broadcast(systemChat(fmt.Sprintf("%s stopped the round.", p.Name)))
	g.logger.Info("Round stopped", slog.Int("round", g.round), slog.String("by", p.Name))
}

func (g *miniGame) handlePlayerState(pkt *protocol.PlayerState, from netip.AddrPort) {
	p, ok := g.lobby.GetPlayerByAddr(from)
	if !ok || p.Spectator == pkt.Spectator {
		return
	}

	p.Spectator = pkt.Spectator
	g.logger.Info("Spectator mode changed",
		slog.String("name", p.Name),
		slog.Bool("spectator", p.Spectator),
	)
	g.abandonIfEmpty()
}

func (g *miniGame) playerLeft() {
	g.abandonIfEmpty()
}

// abandonIfEmpty ends a running round once nobody is left who may guess.
func (g *miniGame) abandonIfEmpty() {
	if g.state != Running || g.hasGuessers() {
		return
	}

	g.end(metrics.OutcomeAbandoned)
	g.lobby.Broadcast(&protocol.GameEnd{})
	g.lobby.Broadcast(systemChat("Round ended: no players left to guess."))
	g.logger.Info("Round abandoned", slog.Int("round", g.round))
}

func (g *miniGame) hasGuessers() bool {
	for _, p := range g.lobby.GetPlayers() {
		if !p.Spectator {
			return true
		}
	}
	return false
}

func (g *miniGame) end(outcome string) {
	g.state = Idle
	g.metrics.RecordRoundEnded(outcome)
}

func (g *miniGame) status() server.RoundStatus {
	st := server.RoundStatus{
		State:      g.state.String(),
		Round:      g.round,
		Guesses:    g.guesses,
		LastWinner: g.winner,
	}
	if g.state == Running {
		st.StartedAt = g.startedAt
	}
	return st
}
