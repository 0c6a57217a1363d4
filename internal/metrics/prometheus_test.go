package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestMetricsRegisterOnFreshRegistry(t *testing.T) {
	// two instances must not collide when each has its own registry
	m1 := NewMetrics(prometheus.NewRegistry())
	m2 := NewMetrics(prometheus.NewRegistry())

	m1.RecordPacketReceived()
	require.Equal(t, 1.0, testutil.ToFloat64(m1.PacketsReceived))
	require.Equal(t, 0.0, testutil.ToFloat64(m2.PacketsReceived))
}

func TestRecordPacketSent(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordPacketSent(nil)
	m.RecordPacketSent(nil)
	m.RecordPacketSent(errors.New("boom"))

	require.Equal(t, 2.0, testutil.ToFloat64(m.PacketsSent))
	require.Equal(t, 1.0, testutil.ToFloat64(m.SendErrors))
}

func TestLabelledCounters(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordPlayerLeft(ReasonTimeout)
	m.RecordPlayerLeft(ReasonKick)
	m.RecordPlayerLeft(ReasonTimeout)
	m.RecordRoundEnded(OutcomeWon)
	m.RecordChat(ChatWhisper)
	m.SetPlayers(3, 1)

	require.Equal(t, 2.0, testutil.ToFloat64(m.PlayersLeft.WithLabelValues(ReasonTimeout)))
	require.Equal(t, 1.0, testutil.ToFloat64(m.PlayersLeft.WithLabelValues(ReasonKick)))
	require.Equal(t, 1.0, testutil.ToFloat64(m.RoundsEnded.WithLabelValues(OutcomeWon)))
	require.Equal(t, 1.0, testutil.ToFloat64(m.ChatMessages.WithLabelValues(ChatWhisper)))
	require.Equal(t, 3.0, testutil.ToFloat64(m.ActivePlayers))
	require.Equal(t, 1.0, testutil.ToFloat64(m.SpectatorPlayers))
}
