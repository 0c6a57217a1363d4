package game

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/bixboy/NetLessons/internal/metrics"
	"github.com/bixboy/NetLessons/internal/protocol"
)

func TestBroadcastChat(t *testing.T) {
	h := newHarness(t)
	h.lobbyOf("alice", "bob")

	h.say(1, "hello")

	want := &protocol.Chat{Sender: "alice", Message: "hello", Channel: DefaultChannel}
	require.Equal(t, []*protocol.Chat{want}, h.chats(1))
	require.Equal(t, []*protocol.Chat{want}, h.chats(2))
}

func TestBroadcastChatKeepsChannel(t *testing.T) {
	h := newHarness(t)
	h.lobbyOf("alice", "bob")

	h.send(2, &protocol.Chat{Sender: "spoofed", Message: "gg", Channel: "Team"})

	require.Equal(t, []*protocol.Chat{{Sender: "bob", Message: "gg", Channel: "Team"}}, h.chats(1))
}

func TestChatFromUnknownSenderIgnored(t *testing.T) {
	h := newHarness(t)
	h.lobbyOf("alice")

	h.say(9, "let me in")
	require.Empty(t, h.tr.sent)
}

func TestWhisper(t *testing.T) {
	h := newHarness(t)
	h.lobbyOf("alice", "bob", "carol")

	h.send(1, &protocol.Chat{Message: "psst", Target: "bob"})

	want := &protocol.Chat{Sender: "alice", Message: "psst", Channel: DefaultChannel, Target: "bob"}
	require.Equal(t, []*protocol.Chat{want}, h.chats(2))
	require.Equal(t, []*protocol.Chat{want}, h.chats(1))
	require.Empty(t, h.inbox(3))
}

func TestWhisperToSelfDeliveredOnce(t *testing.T) {
	h := newHarness(t)
	h.lobbyOf("alice", "bob")

	h.send(1, &protocol.Chat{Message: "note to self", Target: "alice"})

	require.Len(t, h.chats(1), 1)
	require.Empty(t, h.inbox(2))
}

func TestWhisperToMissingTarget(t *testing.T) {
	h := newHarness(t)
	h.lobbyOf("alice", "bob", "carol")

	h.send(1, &protocol.Chat{Message: "hello?", Target: "dave"})

	chats := h.chats(1)
	require.Len(t, chats, 1)
	require.Equal(t, SystemSender, chats[0].Sender)
	require.Contains(t, chats[0].Message, "dave")
	require.Len(t, h.tr.sent, 1)
}

func TestWhisperTargetIsCaseSensitive(t *testing.T) {
	h := newHarness(t)
	h.lobbyOf("alice", "bob")

	h.send(1, &protocol.Chat{Message: "hi", Target: "Bob"})

	require.Empty(t, h.inbox(2))
	require.Len(t, h.chats(1), 1)
}

func TestUnknownCommandFallsThroughToChat(t *testing.T) {
	h := newHarness(t)
	h.lobbyOf("alice", "bob")

	h.say(2, "/dance wildly")

	want := &protocol.Chat{Sender: "bob", Message: "/dance wildly", Channel: DefaultChannel}
	require.Equal(t, []*protocol.Chat{want}, h.chats(1))
	require.Equal(t, 1.0, testutil.ToFloat64(h.metrics.ChatMessages.WithLabelValues(metrics.ChatBroadcast)))
}

func TestCommandsAreNotRelayed(t *testing.T) {
	h := newHarness(t)
	h.lobbyOf("alice", "bob")

	h.say(2, "/HELP")

	require.Empty(t, h.inbox(1))
	chats := h.chats(2)
	require.Len(t, chats, 1)
	require.Equal(t, SystemSender, chats[0].Sender)
	require.Equal(t, "Commands: /help", chats[0].Message)
}

func TestHelpListsAdminCommandsForAdmin(t *testing.T) {
	h := newHarness(t)
	h.lobbyOf("alice")

	h.say(1, "/help")

	chats := h.chats(1)
	require.Len(t, chats, 1)
	require.Equal(t, "Commands: /help, /kick <name>, /start, /stop", chats[0].Message)
}

func TestAdminOnlyCommandsRejected(t *testing.T) {
	for _, text := range []string{"/kick alice", "/start", "/stop"} {
		t.Run(text, func(t *testing.T) {
			h := newHarness(t)
			h.lobbyOf("alice", "bob")

			h.say(2, text)

			require.Empty(t, h.inbox(1))
			chats := h.chats(2)
			require.Len(t, chats, 1)
			require.Equal(t, SystemSender, chats[0].Sender)
			require.Contains(t, chats[0].Message, "must be admin")
			require.Len(t, h.srv.GetPlayers(), 2)
			require.Equal(t, Idle, h.srv.game.state)
		})
	}
}

func TestKick(t *testing.T) {
	h := newHarness(t)
	h.lobbyOf("alice", "bob", "carol")

	h.say(1, "/kick bob")

	_, ok := h.srv.GetPlayerByAddr(addr(2))
	require.False(t, ok)

	for _, port := range []uint16{1, 3} {
		pkts := h.inbox(port)
		require.Equal(t, &protocol.Chat{Sender: SystemSender, Message: "Goodbye bob!", Channel: DefaultChannel}, pkts[0])
		require.Equal(t, &protocol.ConnectionState{Connected: false, Name: "bob", ColorID: 73 % 8}, pkts[1])
	}
	require.Equal(t, 1.0, testutil.ToFloat64(h.metrics.PlayersLeft.WithLabelValues(metrics.ReasonKick)))
}

func TestKickUsageAndMissingTarget(t *testing.T) {
	h := newHarness(t)
	h.lobbyOf("alice", "bob")

	h.say(1, "/kick")
	h.say(1, "/kick zed")

	chats := h.chats(1)
	require.Len(t, chats, 2)
	require.Equal(t, "Usage: /kick <name>", chats[0].Message)
	require.Equal(t, "Player zed not found.", chats[1].Message)
	require.Empty(t, h.inbox(2))
	require.Len(t, h.srv.GetPlayers(), 2)
}

func TestKickSelfPromotesNext(t *testing.T) {
	h := newHarness(t)
	h.lobbyOf("alice", "bob")

	h.say(1, "/kick alice")
	require.Equal(t, []string{"bob"}, h.admins())
}
