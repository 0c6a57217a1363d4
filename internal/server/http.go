package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bixboy/NetLessons/internal/config"
	"github.com/bixboy/NetLessons/internal/metrics"
)

// StatisticsSource reports transport counters.
type StatisticsSource interface {
	GetStatistics() ServerStatistics
}

// HTTPServer provides HTTP API endpoints for monitoring the lobby
type HTTPServer struct {
	server   *http.Server
	logger   *slog.Logger
	config   *config.Config
	status   StatusProvider
	stats    StatisticsSource
	metrics  *metrics.Metrics
	gatherer prometheus.Gatherer

	startTime time.Time
}

// NewHTTPServer creates a new HTTP API server. Handlers only read from status
// and stats, both of which are safe for concurrent use.
func NewHTTPServer(appConfig *config.Config, logger *slog.Logger, status StatusProvider,
	stats StatisticsSource, m *metrics.Metrics, gatherer prometheus.Gatherer) *HTTPServer {

	h := &HTTPServer{
		logger:    logger,
		config:    appConfig,
		status:    status,
		stats:     stats,
		metrics:   m,
		gatherer:  gatherer,
		startTime: time.Now(),
	}

	mux := http.NewServeMux()
	h.setupRoutes(mux)

	h.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", appConfig.HTTP.Address, appConfig.HTTP.Port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return h
}

// setupRoutes configures HTTP API routes
func (h *HTTPServer) setupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.withMetrics("/health", h.handleHealth))

	// Roster
	mux.HandleFunc("GET /players", h.withMetrics("/players", h.handlePlayers))
	mux.HandleFunc("GET /players/{id}", h.withMetrics("/players/{id}", h.handlePlayerDetail))

	mux.HandleFunc("GET /game", h.withMetrics("/game", h.handleGame))
	mux.HandleFunc("GET /stats", h.withMetrics("/stats", h.handleStats))
	mux.HandleFunc("GET /config", h.withMetrics("/config", h.handleConfig))

	// Prometheus metrics endpoint (not instrumented itself)
	mux.Handle("GET /metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))

	mux.HandleFunc("GET /", h.withMetrics("/", h.handleRoot))
}

// Handler returns the routed handler, for embedding or tests.
func (h *HTTPServer) Handler() http.Handler {
	return h.server.Handler
}

// withMetrics wraps an HTTP handler with metrics collection
func (h *HTTPServer) withMetrics(endpoint string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		startTime := time.Now()

		ww := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		handler(ww, r)

		duration := time.Since(startTime).Seconds()
		h.metrics.RecordHTTPRequest(r.Method, endpoint, fmt.Sprintf("%d", ww.statusCode), duration)

		if ww.statusCode >= 400 {
			errorType := "client_error"
			if ww.statusCode >= 500 {
				errorType = "server_error"
			}
			h.metrics.RecordHTTPError(r.Method, endpoint, errorType)
		}
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Start binds the listener and serves in the background. A bind failure is returned.
func (h *HTTPServer) Start() error {
	ln, err := net.Listen("tcp", h.server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", h.server.Addr, err)
	}

	h.logger.Info("Starting HTTP API server", slog.String("address", ln.Addr().String()))

	go func() {
		if err := h.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			h.logger.Error("HTTP server error", slog.String("error", err.Error()))
		}
	}()

	return nil
}

// Stop gracefully stops the HTTP server
func (h *HTTPServer) Stop(ctx context.Context) error {
	h.logger.Info("Stopping HTTP API server...")
	return h.server.Shutdown(ctx)
}

func (h *HTTPServer) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Warn("Failed to encode HTTP response", slog.String("error", err.Error()))
	}
}

// handleHealth implements the /health endpoint
func (h *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := h.status.Status()
	udpStats := h.stats.GetStatistics()

	h.writeJSON(w, map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"uptime":    time.Since(h.startTime).String(),
		"service": map[string]any{
			"name":    "netlessons-lobby",
			"version": "1.0.0",
		},
		"components": map[string]any{
			"udp_server": map[string]any{
				"status":           "running",
				"packets_received": udpStats.PacketsReceived,
				"packets_polled":   udpStats.PacketsPolled,
				"queue_size":       udpStats.QueueSize,
			},
			"lobby": map[string]any{
				"status":      "running",
				"players":     len(status.Players),
				"round_state": status.Round.State,
				"tick":        status.Tick,
				"updated_at":  status.UpdatedAt,
			},
		},
	})
}

// handlePlayers implements the /players endpoint
func (h *HTTPServer) handlePlayers(w http.ResponseWriter, r *http.Request) {
	players := h.status.Status().Players

	h.writeJSON(w, map[string]any{
		"total_players": len(players),
		"timestamp":     time.Now().UTC(),
		"players":       players,
	})
}

// handlePlayerDetail implements the /players/{id} endpoint
func (h *HTTPServer) handlePlayerDetail(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, "Invalid player ID", http.StatusBadRequest)
		return
	}

	for _, p := range h.status.Status().Players {
		if p.ID == id.String() {
			h.writeJSON(w, p)
			return
		}
	}
	http.Error(w, "Player not found", http.StatusNotFound)
}

// handleGame implements the /game endpoint
func (h *HTTPServer) handleGame(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, h.status.Status().Round)
}

// handleConfig implements the /config endpoint
func (h *HTTPServer) handleConfig(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, map[string]any{
		"server": map[string]any{
			"udp_port":          h.config.Server.UDPPort,
			"bind_address":      h.config.Server.BindAddress,
			"buffer_size":       h.config.Server.BufferSize,
			"max_datagram_size": h.config.Server.MaxDatagramSize,
			"queue_size":        h.config.Server.QueueSize,
		},
		"game": map[string]any{
			"tick_interval_ms": h.config.Game.TickInterval,
			"session_timeout":  h.config.Game.SessionTimeout,
			"ping_interval":    h.config.Game.PingInterval,
			"max_name_length":  h.config.Game.MaxNameLength,
			"rate_limit":       h.config.Game.RateLimit,
			"rate_burst":       h.config.Game.RateBurst,
		},
		"logging": map[string]any{
			"level":  h.config.Logging.Level,
			"format": h.config.Logging.Format,
			"output": h.config.Logging.Output,
		},
	})
}

// handleStats implements the /stats endpoint
func (h *HTTPServer) handleStats(w http.ResponseWriter, r *http.Request) {
	status := h.status.Status()

	spectators := 0
	for _, p := range status.Players {
		if p.Spectator {
			spectators++
		}
	}

	h.writeJSON(w, map[string]any{
		"uptime":    time.Since(h.startTime).String(),
		"timestamp": time.Now().UTC(),
		"udp":       h.stats.GetStatistics(),
		"lobby": map[string]any{
			"players":    len(status.Players),
			"spectators": spectators,
			"tick":       status.Tick,
		},
		"round": status.Round,
	})
}

// handleRoot implements the / endpoint with API documentation
func (h *HTTPServer) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	h.writeJSON(w, map[string]any{
		"service": "NetLessons lobby server",
		"version": "1.0.0",
		"endpoints": map[string]any{
			"GET /":             "API documentation",
			"GET /health":       "Service health check",
			"GET /players":      "List connected players",
			"GET /players/{id}": "Get a single player",
			"GET /game":         "Current guessing round",
			"GET /config":       "Get service configuration",
			"GET /stats":        "Get service statistics",
			"GET /metrics":      "Prometheus metrics",
		},
		"timestamp": time.Now().UTC(),
	})
}
