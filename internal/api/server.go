// Package api is the HTTP surface: the simulation catalog, stateless orbit
// endpoints, session control and the session event streams.
package api

import (
	"bufio"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/varun-un/AetherConnect/internal/auth"
	"github.com/varun-un/AetherConnect/internal/bodies"
	"github.com/varun-un/AetherConnect/internal/cache"
	"github.com/varun-un/AetherConnect/internal/catalog"
	"github.com/varun-un/AetherConnect/internal/health"
	"github.com/varun-un/AetherConnect/internal/metrics"
	"github.com/varun-un/AetherConnect/internal/session"
	"github.com/varun-un/AetherConnect/internal/stream"
)

// Config holds HTTP server settings.
type Config struct {
	Addr          string
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
	IdleTimeout   time.Duration
	MaxPathPoints int // Largest /orbit/path response
}

// Deps are the services the handlers use.
type Deps struct {
	Auth     auth.Config
	Bodies   *bodies.Store
	Paths    *cache.PathCache
	Sessions *session.Manager
	Catalog  *catalog.Store
	Stream   *stream.Handler
	Ready    map[string]health.Check
	Web      fs.FS // Viewer served at /; nil disables it
}

// Server holds the HTTP server and its dependencies.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates a configured HTTP server.
func NewServer(cfg Config, deps Deps, logger *slog.Logger) *Server {
	logger = logger.With("component", "api")
	h := &handlers{deps: deps, maxPathPoints: cfg.MaxPathPoints, logger: logger}
	if h.maxPathPoints <= 0 {
		h.maxPathPoints = defaultMaxPathPoints
	}

	mux := http.NewServeMux()

	// Probes and metrics.
	mux.HandleFunc("GET /healthz", health.Healthz)
	mux.HandleFunc("GET /readyz", health.Readyz(deps.Ready))
	mux.Handle("GET /metrics", metrics.Handler())

	// Catalog.
	mux.HandleFunc("GET /api/v1/simulations", h.listSimulations)
	mux.HandleFunc("POST /api/v1/simulations", h.createSimulation)
	mux.HandleFunc("GET /api/v1/simulations/{slug}", h.getSimulation)

	// Stateless orbit endpoints.
	mux.HandleFunc("GET /api/v1/bodies", h.listBodies)
	mux.HandleFunc("GET /api/v1/orbit/path", h.orbitPath)
	mux.HandleFunc("GET /api/v1/orbit/visviva", h.visViva)
	mux.HandleFunc("GET /api/v1/orbit/speed-label", h.speedLabel)
	mux.HandleFunc("GET /api/v1/cache/stats", h.cacheStats)

	// Sessions.
	mux.HandleFunc("POST /api/v1/sessions", h.createSession)
	mux.HandleFunc("GET /api/v1/sessions/{id}", h.getSession)
	mux.HandleFunc("DELETE /api/v1/sessions/{id}", h.deleteSession)
	mux.HandleFunc("POST /api/v1/sessions/{id}/commands", h.sessionCommand)
	mux.HandleFunc("GET /api/v1/sessions/{id}/stream", deps.Stream.HandleSSE)
	mux.HandleFunc("GET /api/v1/sessions/{id}/ws", deps.Stream.HandleWebSocket)

	if deps.Web != nil {
		mux.Handle("GET /", http.FileServerFS(deps.Web))
	}

	// Build middleware chain: metrics -> logging -> auth -> mux.
	var handler http.Handler = mux
	handler = auth.Middleware(deps.Auth)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = metrics.Middleware(handler)

	return &Server{
		httpServer: &http.Server{
			Addr:              cfg.Addr,
			Handler:           handler,
			ReadTimeout:       cfg.ReadTimeout,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      cfg.WriteTimeout,
			IdleTimeout:       cfg.IdleTimeout,
		},
		logger: logger,
	}
}

// Handler returns the root handler with all middleware applied.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// HTTPServer returns the underlying *http.Server for external control (e.g. shutdown).
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// probePath returns true for health/readiness probe paths that should not log at INFO.
func probePath(path string) bool {
	return path == "/healthz" || path == "/readyz" || path == "/metrics"
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.statusCode = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Unwrap() http.ResponseWriter {
	return sr.ResponseWriter
}

func (sr *statusRecorder) Flush() {
	if f, ok := sr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (sr *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	// Upgraded connections report 101.
	sr.statusCode = http.StatusSwitchingProtocols
	return http.NewResponseController(sr.ResponseWriter).Hijack()
}

func loggingMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sr := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(sr, r)

			duration := time.Since(start)
			level := slog.LevelInfo
			if probePath(r.URL.Path) {
				level = slog.LevelDebug
			}

			logger.Log(r.Context(), level, "request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", strconv.Itoa(sr.statusCode),
				"duration_ms", duration.Milliseconds(),
				"remote_ip", r.RemoteAddr,
			)
		})
	}
}
