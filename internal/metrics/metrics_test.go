package metrics

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
)

func TestNormalizeRoute(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		// Known exact routes.
		{"/healthz", "/healthz"},
		{"/readyz", "/readyz"},
		{"/metrics", "/metrics"},
		{"/", "/"},
		{"/api/v1/simulations", "/api/v1/simulations"},
		{"/api/v1/bodies", "/api/v1/bodies"},
		{"/api/v1/orbit/path", "/api/v1/orbit/path"},
		{"/api/v1/orbit/visviva", "/api/v1/orbit/visviva"},
		{"/api/v1/sessions", "/api/v1/sessions"},
		{"/api/v1/cache/stats", "/api/v1/cache/stats"},

		// Parameterized session routes collapse to one label per shape.
		{"/api/v1/sessions/6f1c2a", "/api/v1/sessions/{id}"},
		{"/api/v1/sessions/6f1c2a/commands", "/api/v1/sessions/{id}/commands"},
		{"/api/v1/sessions/abc/stream", "/api/v1/sessions/{id}/stream"},
		{"/api/v1/sessions/abc/ws", "/api/v1/sessions/{id}/ws"},
		{"/api/v1/simulations/planetary-orbits", "/api/v1/simulations/{slug}"},

		// Unknown/bot paths collapse to "other".
		{"/wp-admin", "other"},
		{"/robots.txt", "other"},
		{"/.env", "other"},
		{"/api/v2/something", "other"},
		{"/api/v1/sessions/abc/unknown", "other"},
		{"/api/v1/sessions//stream", "other"},
		{"/api/v1/simulations/a/b", "other"},
		{"/favicon.ico", "other"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got := normalizeRoute(tt.path)
			if got != tt.want {
				t.Errorf("normalizeRoute(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

// TestMetricsCardinality verifies that 100 unique session IDs produce
// exactly 1 distinct path label, not 100.
func TestMetricsCardinality(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		label := normalizeRoute("/api/v1/sessions/" + strconv.Itoa(i*7919) + "/stream")
		seen[label] = true
	}
	if len(seen) != 1 {
		t.Errorf("expected 1 unique label for parameterized paths, got %d: %v", len(seen), seen)
	}
}

// TestMiddlewarePreservesFlusher verifies streaming handlers can still flush
// through the metrics wrapper.
func TestMiddlewarePreservesFlusher(t *testing.T) {
	var flushed bool
	h := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f, ok := w.(http.Flusher)
		if !ok {
			t.Fatal("wrapped writer does not implement http.Flusher")
		}
		w.WriteHeader(http.StatusTeapot)
		f.Flush()
		flushed = true
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/sessions/x/stream", nil))
	if !flushed || !rec.Flushed {
		t.Error("flush did not reach the recorder")
	}
	if rec.Code != http.StatusTeapot {
		t.Errorf("code = %d, want 418", rec.Code)
	}
}
