package metrics

import (
	"bufio"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aether_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"path", "method", "code"},
	)

	httpDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "aether_http_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)

	pathComputeSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "aether_path_compute_seconds",
		Help:    "Time to sample one orbit path.",
		Buckets: prometheus.ExponentialBuckets(0.0005, 4, 10),
	})

	pathSamplesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "aether_path_samples_total",
		Help: "Total orbit path samples computed.",
	})

	pathErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "aether_path_errors_total",
		Help: "Orbit path computations that failed.",
	})

	pathWorkers = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "aether_path_workers",
		Help: "Size of the path computation worker pool.",
	})

	cacheHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "aether_cache_hits_total",
		Help: "Path cache hits.",
	})

	cacheMissesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "aether_cache_misses_total",
		Help: "Path cache misses.",
	})

	cacheEvictionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "aether_cache_evictions_total",
		Help: "Paths evicted from the cache.",
	})

	cacheEntries = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "aether_cache_entries",
		Help: "Paths currently cached.",
	})

	cacheSizeBytes = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "aether_cache_size_bytes",
		Help: "Estimated memory held by cached paths.",
	})

	cacheCutoverActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "aether_cache_cutover_active",
		Help: "1 while the path cache is rebuilding for a new body dataset.",
	})

	frameDurationSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "aether_frame_duration_seconds",
		Help:    "Time to advance and publish one animation frame.",
		Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10),
	})

	timelineTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aether_timeline_transitions_total",
			Help: "Annotation and trigger transitions made by timeline polls.",
		},
		[]string{"kind"},
	)

	timelineHookErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "aether_timeline_hook_errors_total",
		Help: "Timeline create, destroy or trigger hooks that failed.",
	})

	sessionsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "aether_sessions_active",
		Help: "Running lesson sessions.",
	})

	sessionCommandsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aether_session_commands_total",
			Help: "Session control commands by type and outcome.",
		},
		[]string{"command", "result"},
	)

	streamConnectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aether_stream_connections_total",
			Help: "Stream connects and disconnects.",
		},
		[]string{"transport", "event"},
	)

	streamsActive = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "aether_streams_active",
			Help: "Open event streams.",
		},
		[]string{"transport"},
	)

	streamMessagesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "aether_stream_messages_total",
		Help: "Event messages written to streams.",
	})

	streamBytesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "aether_stream_bytes_total",
		Help: "Bytes written to streams.",
	})

	streamErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aether_stream_errors_total",
			Help: "Stream errors by reason.",
		},
		[]string{"reason"},
	)

	bodyDatasetCount = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "aether_body_dataset_count",
		Help: "Bodies in the loaded dataset.",
	})

	bodyDatasetAge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "aether_body_dataset_age_seconds",
		Help: "Seconds since the body dataset was loaded.",
	})
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpDurationSeconds,
		pathComputeSeconds,
		pathSamplesTotal,
		pathErrorsTotal,
		pathWorkers,
		cacheHitsTotal,
		cacheMissesTotal,
		cacheEvictionsTotal,
		cacheEntries,
		cacheSizeBytes,
		cacheCutoverActive,
		frameDurationSeconds,
		timelineTransitionsTotal,
		timelineHookErrorsTotal,
		sessionsActive,
		sessionCommandsTotal,
		streamConnectionsTotal,
		streamsActive,
		streamMessagesTotal,
		streamBytesTotal,
		streamErrorsTotal,
		bodyDatasetCount,
		bodyDatasetAge,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordPathComputation records one path computation.
func RecordPathComputation(d time.Duration, samples int, err error) {
	if err != nil {
		pathErrorsTotal.Inc()
		return
	}
	pathComputeSeconds.Observe(d.Seconds())
	pathSamplesTotal.Add(float64(samples))
}

func SetPathWorkers(n int) { pathWorkers.Set(float64(n)) }

func IncCacheHits()             { cacheHitsTotal.Inc() }
func IncCacheMisses()           { cacheMissesTotal.Inc() }
func AddCacheEvictions(n int)   { cacheEvictionsTotal.Add(float64(n)) }
func SetCacheEntries(n int)     { cacheEntries.Set(float64(n)) }
func SetCacheSizeBytes(n int64) { cacheSizeBytes.Set(float64(n)) }

// SetCacheCutoverActive flags a dataset cutover in progress.
func SetCacheCutoverActive(active bool) {
	if active {
		cacheCutoverActive.Set(1)
	} else {
		cacheCutoverActive.Set(0)
	}
}

func ObserveFrameDuration(d time.Duration) { frameDurationSeconds.Observe(d.Seconds()) }

func IncTimelineTransitions(kind string) { timelineTransitionsTotal.WithLabelValues(kind).Inc() }
func IncTimelineHookErrors()             { timelineHookErrorsTotal.Inc() }

func SetSessionsActive(n int) { sessionsActive.Set(float64(n)) }

// IncSessionCommands counts a control command; result is "ok" or "error".
func IncSessionCommands(command, result string) {
	sessionCommandsTotal.WithLabelValues(command, result).Inc()
}

func IncStreamConnections(transport, event string) {
	streamConnectionsTotal.WithLabelValues(transport, event).Inc()
}
func IncStreamsActive(transport string) { streamsActive.WithLabelValues(transport).Inc() }
func DecStreamsActive(transport string) { streamsActive.WithLabelValues(transport).Dec() }
func IncStreamMessages()                { streamMessagesTotal.Inc() }
func AddStreamBytes(n int64)            { streamBytesTotal.Add(float64(n)) }
func IncStreamErrors(reason string)     { streamErrorsTotal.WithLabelValues(reason).Inc() }
func SetBodyDatasetCount(n int)         { bodyDatasetCount.Set(float64(n)) }
func SetBodyDatasetAge(seconds float64) { bodyDatasetAge.Set(seconds) }

// knownRoutes are exact paths reported under their own label.
var knownRoutes = map[string]bool{
	"/":                         true,
	"/healthz":                  true,
	"/readyz":                   true,
	"/metrics":                  true,
	"/api/v1/simulations":       true,
	"/api/v1/bodies":            true,
	"/api/v1/orbit/path":        true,
	"/api/v1/orbit/visviva":     true,
	"/api/v1/orbit/speed-label": true,
	"/api/v1/sessions":          true,
	"/api/v1/cache/stats":       true,
}

// sessionSubroutes are the suffixes allowed after /api/v1/sessions/{id}.
var sessionSubroutes = map[string]bool{
	"":         true,
	"commands": true,
	"stream":   true,
	"ws":       true,
}

// normalizeRoute maps a request path onto a bounded set of labels so that
// session ids, simulation slugs and scanner noise cannot explode the
// label cardinality.
func normalizeRoute(path string) string {
	if knownRoutes[path] {
		return path
	}

	if rest, ok := strings.CutPrefix(path, "/api/v1/sessions/"); ok && rest != "" {
		id, sub, _ := strings.Cut(rest, "/")
		if id != "" && sessionSubroutes[sub] {
			if sub == "" {
				return "/api/v1/sessions/{id}"
			}
			return "/api/v1/sessions/{id}/" + sub
		}
		return "other"
	}

	if rest, ok := strings.CutPrefix(path, "/api/v1/simulations/"); ok && rest != "" && !strings.Contains(rest, "/") {
		return "/api/v1/simulations/{slug}"
	}

	return "other"
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Unwrap lets http.ResponseController reach the underlying writer, which
// SSE and WebSocket handlers need for flushing, deadlines and hijacking.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Flush forwards to the underlying writer when it supports flushing.
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Hijack forwards to the underlying writer for WebSocket upgrades.
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	return http.NewResponseController(rw.ResponseWriter).Hijack()
}

// Middleware records request count and duration for each request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		code := strconv.Itoa(rw.statusCode)
		route := normalizeRoute(r.URL.Path)

		httpRequestsTotal.WithLabelValues(route, r.Method, code).Inc()
		httpDurationSeconds.WithLabelValues(route, r.Method).Observe(duration)
	})
}
