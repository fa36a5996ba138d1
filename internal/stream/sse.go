// Package stream delivers session events to browsers over Server-Sent
// Events and WebSocket.
//
// SSE: GET /api/v1/sessions/{id}/stream. Every event is one message:
//
//	data: {"type":"frame","frame":{"tick":120,"sim_days":1,...}}\n\n
//
// The first messages on every connection bring the client up to date
// (clock, orbit tracks, control, live annotations); live events follow.
// Keep-alive comments (:\n\n) are sent every KeepaliveInterval of silence.
//
// WebSocket: GET /api/v1/sessions/{id}/ws carries the same event stream
// out and accepts session commands in.
package stream

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"time"

	"github.com/varun-un/AetherConnect/internal/httputil"
	"github.com/varun-un/AetherConnect/internal/metrics"
	"github.com/varun-un/AetherConnect/internal/session"
)

// Transport labels for metrics.
const (
	transportSSE       = "sse"
	transportWebSocket = "websocket"
)

// Config holds streaming configuration.
type Config struct {
	MaxConcurrentPerIP int           `mapstructure:"max_concurrent_per_ip"` // Max concurrent streams per client, IPv6 by /64 (default: 10)
	MaxConcurrent      int           `mapstructure:"max_concurrent"`        // Max concurrent streams in total (default: 1000)
	BandwidthLimit     int           `mapstructure:"bandwidth_limit"`       // Bytes per second per stream, 0 for none (default: 1048576)
	KeepaliveInterval  time.Duration `mapstructure:"keepalive_interval"`    // Keep-alive ping interval (default: 30s)
	TrustProxy         bool          `mapstructure:"trust_proxy"`           // Take client IPs from X-Forwarded-For
	AllowAnyOrigin     bool          `mapstructure:"allow_any_origin"`      // Accept cross-origin WebSocket upgrades
}

// DefaultConfig returns the streaming defaults.
func DefaultConfig() Config {
	return Config{
		MaxConcurrentPerIP: 10,
		MaxConcurrent:      1000,
		BandwidthLimit:     1 << 20,
		KeepaliveInterval:  30 * time.Second,
	}
}

// Sessions looks up running sessions by id.
type Sessions interface {
	Get(id string) (*session.Session, bool)
}

// Handler manages streaming connections.
type Handler struct {
	sessions Sessions
	config   Config
	limiter  *streamLimiter
	logger   *slog.Logger
}

// NewHandler creates a new streaming handler.
func NewHandler(sessions Sessions, config Config, logger *slog.Logger) *Handler {
	if config.KeepaliveInterval <= 0 {
		config.KeepaliveInterval = 30 * time.Second
	}
	return &Handler{
		sessions: sessions,
		config:   config,
		limiter:  newStreamLimiter(config.MaxConcurrentPerIP, config.MaxConcurrent),
		logger:   logger,
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// open resolves the session named by the request path and takes a stream
// slot for the client, returning the limit key to release. On failure the
// response has been written.
func (h *Handler) open(w http.ResponseWriter, r *http.Request, transport string) (*session.Session, string, bool) {
	id := r.PathValue("id")
	s, ok := h.sessions.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "session not found")
		return nil, "", false
	}

	ip := httputil.ClientIP(r, h.config.TrustProxy)
	key := httputil.LimitKey(ip)
	if err := h.limiter.acquire(key); err != nil {
		reason := "rate_limit"
		if errors.Is(err, errStreamLimit) {
			reason = "capacity"
		}
		metrics.IncStreamErrors(reason)
		h.logger.Warn("stream limit exceeded",
			"remote_ip", ip,
			"limit_key", key,
			"transport", transport,
			"current_count", h.limiter.count(key),
			"error", err,
		)
		w.Header().Set("Retry-After", "30")
		writeError(w, http.StatusTooManyRequests, err.Error())
		return nil, "", false
	}
	return s, key, true
}

// track records a connected stream and returns the matching disconnect.
func (h *Handler) track(s *session.Session, key, transport string) func() {
	metrics.IncStreamConnections(transport, "connect")
	metrics.IncStreamsActive(transport)

	startTime := time.Now()
	h.logger.Info("stream connected",
		"session_id", s.ID,
		"client", key,
		"transport", transport,
	)
	return func() {
		h.limiter.release(key)
		metrics.IncStreamConnections(transport, "disconnect")
		metrics.DecStreamsActive(transport)
		h.logger.Info("stream disconnected",
			"session_id", s.ID,
			"client", key,
			"transport", transport,
			"duration_seconds", int(time.Since(startTime).Seconds()),
		)
	}
}

// HandleSSE serves a session's event stream.
// GET /api/v1/sessions/{id}/stream
func (h *Handler) HandleSSE(w http.ResponseWriter, r *http.Request) {
	s, key, ok := h.open(w, r, transportSSE)
	if !ok {
		return
	}
	defer h.track(s, key, transportSSE)()

	// Verify flusher support (required for SSE).
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	events, unsubscribe, err := s.Subscribe()
	if errors.Is(err, session.ErrStopped) {
		writeError(w, http.StatusGone, "session stopped")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer unsubscribe()

	// Set SSE response headers.
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering.
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	// Clear the server's default WriteTimeout for this long-lived connection.
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		h.logger.Debug("could not clear write deadline", "error", err)
	}

	ctx := r.Context()
	c := &client{
		ctx:     ctx,
		w:       w,
		flusher: flusher,
		rc:      rc,
		key:     key,
		limiter: newBandwidthLimiter(h.config.BandwidthLimit),
		logger:  h.logger,
	}
	defer c.logClosed(s.ID)

	// Jittered retry interval (3-7s) spreads reconnections after a restart.
	retryMs := 3000 + rand.Intn(4000)
	fmt.Fprintf(w, "retry: %d\n\n", retryMs)
	flusher.Flush()

	keepaliveTicker := time.NewTicker(h.config.KeepaliveInterval)
	defer keepaliveTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case ev, open := <-events:
			if !open {
				// Session stopped; the client reconnects and gets a 404.
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				metrics.IncStreamErrors("marshal_error")
				h.logger.Warn("stream marshal error", "client", key, "error", err)
				continue
			}
			if err := c.sendRaw(data); err != nil {
				metrics.IncStreamErrors("send_error")
				h.logger.Warn("stream send error", "client", key, "error", err)
				return
			}
			keepaliveTicker.Reset(h.config.KeepaliveInterval)

		case <-keepaliveTicker.C:
			if err := c.sendKeepalive(); err != nil {
				metrics.IncStreamErrors("send_error")
				h.logger.Warn("stream keepalive error", "client", key, "error", err)
				return
			}
		}
	}
}
