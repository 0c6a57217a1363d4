package game

import (
	"fmt"
	"log/slog"
	"net/netip"
	"strings"

	"github.com/bixboy/NetLessons/internal/command"
	"github.com/bixboy/NetLessons/internal/metrics"
	"github.com/bixboy/NetLessons/internal/protocol"
	"github.com/bixboy/NetLessons/internal/server"
	"github.com/bixboy/NetLessons/internal/session"
)

// chatSystem relays chat and whispers and owns the help and kick commands.
type chatSystem struct {
	lobby   Lobby
	router  *command.Router
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func newChatSystem(lobby Lobby, router *command.Router, logger *slog.Logger, m *metrics.Metrics) *chatSystem {
	return &chatSystem{
		lobby:   lobby,
		router:  router,
		logger:  logger,
		metrics: m,
	}
}

func (c *chatSystem) register(d *server.Dispatcher) {
	server.Register(d, c.handleChat)

	c.lobby.RegisterCommand(command.Command{
		Name:  "help",
		Usage: "/help",
		Run:   c.help,
	})
	c.lobby.RegisterCommand(command.Command{
		Name:      "kick",
		Usage:     "/kick <name>",
		AdminOnly: true,
		Run:       c.kick,
	})
}

func (c *chatSystem) handleChat(pkt *protocol.Chat, from netip.AddrPort) {
	p, ok := c.lobby.GetPlayerByAddr(from)
	if !ok {
		return
	}

	if c.router.Dispatch(p, pkt.Message) {
		c.metrics.RecordChat(metrics.ChatCommand)
		c.logger.Debug("Command",
			slog.String("player", p.Name),
			slog.String("text", pkt.Message),
		)
		return
	}

	channel := pkt.Channel
	if channel == "" {
		channel = DefaultChannel
	}
	out := &protocol.Chat{
		Sender:  p.Name,
		Message: pkt.Message,
		Channel: channel,
		Target:  pkt.Target,
	}

	if pkt.Target == "" {
		c.lobby.Broadcast(out)
		c.metrics.RecordChat(metrics.ChatBroadcast)
		return
	}

	target, ok := c.lobby.FindPlayerByName(pkt.Target)
	if !ok {
		c.lobby.SendTo(from, systemChat(fmt.Sprintf("Player %s not found.", pkt.Target)))
		return
	}

	c.lobby.SendTo(target.Addr, out)
	if target.Addr != from {
		c.lobby.SendTo(from, out)
	}
	c.metrics.RecordChat(metrics.ChatWhisper)
}

func (c *chatSystem) help(p *session.Player, _ []string) {
	var usages []string
	for _, cmd := range c.router.Commands() {
		if cmd.AdminOnly && !p.Admin {
			continue
		}
		usages = append(usages, cmd.Usage)
	}
	c.lobby.SendTo(p.Addr, systemChat("Commands: "+strings.Join(usages, ", ")))
}

func (c *chatSystem) kick(p *session.Player, args []string) {
	if len(args) == 0 {
		c.lobby.SendTo(p.Addr, systemChat("Usage: /kick <name>"))
		return
	}

	name := strings.Join(args, " ")
	target, ok := c.lobby.FindPlayerByName(name)
	if !ok {
		c.lobby.SendTo(p.Addr, systemChat(fmt.Sprintf("Player %s not found.", name)))
		return
	}

	c.logger.Info("Player kicked",
		slog.String("by", p.Name),
		slog.String("name", target.Name),
	)
	c.lobby.Broadcast(systemChat(fmt.Sprintf("Goodbye %s!", target.Name)))
	c.lobby.RemovePlayer(target.Addr, metrics.ReasonKick)
}
