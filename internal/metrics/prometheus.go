package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Leave reasons, round outcomes and chat kinds used as label values.
const (
	ReasonLogout  = "logout"
	ReasonTimeout = "timeout"
	ReasonKick    = "kick"

	OutcomeWon       = "won"
	OutcomeStopped   = "stopped"
	OutcomeAbandoned = "abandoned"

	ChatBroadcast = "broadcast"
	ChatWhisper   = "whisper"
	ChatCommand   = "command"

	DropQueueFull   = "queue_full"
	DropRateLimited = "rate_limited"
	DropOversized   = "oversized"
)

// Metrics contains all Prometheus metrics for the lobby server
type Metrics struct {
	// UDP packet metrics
	PacketsReceived   prometheus.Counter
	PacketsDispatched prometheus.Counter
	DecodeErrors      prometheus.Counter
	UnknownOpCodes    prometheus.Counter
	PacketsDropped    *prometheus.CounterVec
	PacketsSent       prometheus.Counter
	SendErrors        prometheus.Counter
	QueueSize         prometheus.Gauge

	// Session metrics
	ActivePlayers    prometheus.Gauge
	SpectatorPlayers prometheus.Gauge
	PlayersJoined    prometheus.Counter
	PlayersLeft      *prometheus.CounterVec
	AdminPromotions  prometheus.Counter

	// Mini-game metrics
	RoundsStarted prometheus.Counter
	RoundsEnded   *prometheus.CounterVec
	Guesses       prometheus.Counter

	// Chat metrics
	ChatMessages *prometheus.CounterVec

	// Tick loop
	TickDuration prometheus.Histogram

	// HTTP API metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPErrors          *prometheus.CounterVec
}

// NewMetrics creates all metrics and registers them with reg.
// Pass prometheus.DefaultRegisterer in production and a fresh registry in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		// UDP packet metrics
		PacketsReceived: factory.NewCounter(prometheus.CounterOpts{
			Name: "lobby_packets_received_total",
			Help: "Total number of UDP datagrams received",
		}),
		PacketsDispatched: factory.NewCounter(prometheus.CounterOpts{
			Name: "lobby_packets_dispatched_total",
			Help: "Total number of packets handed to a handler",
		}),
		DecodeErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "lobby_decode_errors_total",
			Help: "Total number of malformed or truncated packets dropped",
		}),
		UnknownOpCodes: factory.NewCounter(prometheus.CounterOpts{
			Name: "lobby_unknown_opcodes_total",
			Help: "Total number of packets with an unregistered opcode",
		}),
		PacketsDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "lobby_packets_dropped_total",
			Help: "Total number of packets dropped before dispatch",
		}, []string{"reason"}),
		PacketsSent: factory.NewCounter(prometheus.CounterOpts{
			Name: "lobby_packets_sent_total",
			Help: "Total number of UDP datagrams sent",
		}),
		SendErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "lobby_send_errors_total",
			Help: "Total number of failed sends",
		}),
		QueueSize: factory.NewGauge(prometheus.GaugeOpts{
			Name: "lobby_packet_queue_size",
			Help: "Number of packets waiting in the inbound queue",
		}),

		// Session metrics
		ActivePlayers: factory.NewGauge(prometheus.GaugeOpts{
			Name: "lobby_active_players",
			Help: "Current number of connected sessions",
		}),
		SpectatorPlayers: factory.NewGauge(prometheus.GaugeOpts{
			Name: "lobby_spectator_players",
			Help: "Current number of sessions in spectator mode",
		}),
		PlayersJoined: factory.NewCounter(prometheus.CounterOpts{
			Name: "lobby_players_joined_total",
			Help: "Total number of sessions created",
		}),
		PlayersLeft: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "lobby_players_left_total",
			Help: "Total number of sessions removed",
		}, []string{"reason"}),
		AdminPromotions: factory.NewCounter(prometheus.CounterOpts{
			Name: "lobby_admin_promotions_total",
			Help: "Total number of admin transfers after the admin left",
		}),

		// Mini-game metrics
		RoundsStarted: factory.NewCounter(prometheus.CounterOpts{
			Name: "lobby_rounds_started_total",
			Help: "Total number of guessing rounds started",
		}),
		RoundsEnded: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "lobby_rounds_ended_total",
			Help: "Total number of guessing rounds ended",
		}, []string{"outcome"}),
		Guesses: factory.NewCounter(prometheus.CounterOpts{
			Name: "lobby_guesses_total",
			Help: "Total number of guesses evaluated",
		}),

		// Chat metrics
		ChatMessages: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "lobby_chat_messages_total",
			Help: "Total number of chat packets handled",
		}, []string{"kind"}),

		TickDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "lobby_tick_duration_seconds",
			Help:    "Time spent draining the queue and sweeping sessions per tick",
			Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10), // 10us to ~2.6s
		}),

		// HTTP API metrics
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "lobby_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "endpoint", "status_code"}),
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "lobby_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
		HTTPErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "lobby_http_errors_total",
			Help: "Total number of HTTP errors",
		}, []string{"method", "endpoint", "error_type"}),
	}
}

// RecordPacketReceived increments the packets received counter
func (m *Metrics) RecordPacketReceived() {
	m.PacketsReceived.Inc()
}

// RecordPacketDispatched increments the dispatched counter
func (m *Metrics) RecordPacketDispatched() {
	m.PacketsDispatched.Inc()
}

// RecordDecodeError increments the decode errors counter
func (m *Metrics) RecordDecodeError() {
	m.DecodeErrors.Inc()
}

// RecordUnknownOpCode increments the unknown opcode counter
func (m *Metrics) RecordUnknownOpCode() {
	m.UnknownOpCodes.Inc()
}

// RecordPacketDropped increments the dropped counter for a reason
func (m *Metrics) RecordPacketDropped(reason string) {
	m.PacketsDropped.WithLabelValues(reason).Inc()
}

// RecordPacketSent records the outcome of a send
func (m *Metrics) RecordPacketSent(err error) {
	if err != nil {
		m.SendErrors.Inc()
		return
	}
	m.PacketsSent.Inc()
}

// SetQueueSize sets the number of packets waiting in the inbound queue
func (m *Metrics) SetQueueSize(size int) {
	m.QueueSize.Set(float64(size))
}

// SetPlayers sets the connected and spectator gauges
func (m *Metrics) SetPlayers(total, spectators int) {
	m.ActivePlayers.Set(float64(total))
	m.SpectatorPlayers.Set(float64(spectators))
}

// RecordPlayerJoined increments the joined counter
func (m *Metrics) RecordPlayerJoined() {
	m.PlayersJoined.Inc()
}

// RecordPlayerLeft increments the left counter for a reason
func (m *Metrics) RecordPlayerLeft(reason string) {
	m.PlayersLeft.WithLabelValues(reason).Inc()
}

// RecordAdminPromotion increments the admin promotions counter
func (m *Metrics) RecordAdminPromotion() {
	m.AdminPromotions.Inc()
}

// RecordRoundStarted increments the rounds started counter
func (m *Metrics) RecordRoundStarted() {
	m.RoundsStarted.Inc()
}

// RecordRoundEnded increments the rounds ended counter for an outcome
func (m *Metrics) RecordRoundEnded(outcome string) {
	m.RoundsEnded.WithLabelValues(outcome).Inc()
}

// RecordGuess increments the guesses counter
func (m *Metrics) RecordGuess() {
	m.Guesses.Inc()
}

// RecordChat increments the chat counter for a kind
func (m *Metrics) RecordChat(kind string) {
	m.ChatMessages.WithLabelValues(kind).Inc()
}

// RecordTick observes the duration of one tick
func (m *Metrics) RecordTick(durationSeconds float64) {
	m.TickDuration.Observe(durationSeconds)
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, durationSeconds float64) {
	m.HTTPRequests.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(durationSeconds)
}

// RecordHTTPError records an HTTP error
func (m *Metrics) RecordHTTPError(method, endpoint, errorType string) {
	m.HTTPErrors.WithLabelValues(method, endpoint, errorType).Inc()
}
