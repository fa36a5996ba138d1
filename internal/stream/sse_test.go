package stream

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	ws "github.com/gorilla/websocket"

	"github.com/varun-un/AetherConnect/internal/bodies"
	"github.com/varun-un/AetherConnect/internal/orbit"
	"github.com/varun-un/AetherConnect/internal/session"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))
}

type directPaths struct{}

func (directPaths) Get(ctx context.Context, el orbit.Elements) (orbit.Path, error) {
	path, _, err := orbit.ComputePath(ctx, el)
	return path, err
}

func testManager(t *testing.T) *session.Manager {
	t.Helper()
	store := bodies.NewStore()
	if err := store.Set(bodies.SolarSystem()); err != nil {
		t.Fatal(err)
	}
	m := session.NewManager(session.DefaultConfig(), directPaths{}, store, testLogger())
	t.Cleanup(m.StopAll)
	return m
}

func testSession(t *testing.T, m *session.Manager) *session.Session {
	t.Helper()
	s, err := m.Create()
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func testConfig() Config {
	return Config{
		MaxConcurrentPerIP: 10,
		BandwidthLimit:     1048576,
		KeepaliveInterval:  30 * time.Second,
	}
}

// streamRequest builds a request routed the way the API mux routes it.
func streamRequest(ctx context.Context, id, remoteAddr string) *http.Request {
	req := httptest.NewRequest("GET", "/api/v1/sessions/"+id+"/stream", nil).WithContext(ctx)
	req.SetPathValue("id", id)
	req.RemoteAddr = remoteAddr
	return req
}

// TestSSEMessageFormat verifies the SSE wire format: "data: {json}\n\n",
// starting with the session snapshot.
func TestSSEMessageFormat(t *testing.T) {
	m := testManager(t)
	s := testSession(t, m)
	handler := NewHandler(m, testConfig(), testLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	w := httptest.NewRecorder()
	handler.HandleSSE(w, streamRequest(ctx, s.ID, "127.0.0.1:12345"))

	resp := w.Result()
	if resp.Header.Get("Content-Type") != "text/event-stream" {
		t.Errorf("Content-Type = %q, want text/event-stream", resp.Header.Get("Content-Type"))
	}
	if resp.Header.Get("Cache-Control") != "no-cache" {
		t.Errorf("Cache-Control = %q, want no-cache", resp.Header.Get("Cache-Control"))
	}

	body := w.Body.String()
	scanner := bufio.NewScanner(strings.NewReader(body))
	scanner.Buffer(make([]byte, 0, 1<<20), 1<<20)
	var types []string
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var msg map[string]any
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &msg); err != nil {
			t.Errorf("invalid JSON in SSE data line: %v", err)
			continue
		}
		types = append(types, msg["type"].(string))
	}

	if len(types) < 2 || types[0] != "clock" || types[1] != "track" {
		t.Fatalf("first events = %v, want clock then track", types)
	}
	var frames int
	for _, typ := range types {
		if typ == "frame" {
			frames++
		}
	}
	if frames == 0 {
		t.Error("no frames streamed")
	}

	// Lines should be "data: ...", "retry: ..." or ":" (keepalive).
	for _, line := range strings.Split(body, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if !strings.HasPrefix(line, "data: ") && !strings.HasPrefix(line, "retry: ") && line != ":" {
			t.Errorf("unexpected SSE line: %q", line)
		}
	}
}

// TestSSEEndsWithSession verifies the stream closes when its session stops.
func TestSSEEndsWithSession(t *testing.T) {
	m := testManager(t)
	s := testSession(t, m)
	handler := NewHandler(m, testConfig(), testLogger())

	done := make(chan struct{})
	go func() {
		defer close(done)
		handler.HandleSSE(httptest.NewRecorder(), streamRequest(context.Background(), s.ID, "127.0.0.1:1"))
	}()

	time.Sleep(50 * time.Millisecond)
	if err := m.Remove(s.ID); err != nil {
		t.Fatal(err)
	}
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not end after session stopped")
	}
}

func TestUnknownSession(t *testing.T) {
	handler := NewHandler(testManager(t), testConfig(), testLogger())

	w := httptest.NewRecorder()
	handler.HandleSSE(w, streamRequest(context.Background(), "missing", "127.0.0.1:1"))
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

// TestRateLimiting verifies per-client concurrent stream limits.
func TestRateLimiting(t *testing.T) {
	limiter := newStreamLimiter(3, 0)

	// Acquire up to the limit.
	for i := 0; i < 3; i++ {
		if err := limiter.acquire("10.0.0.1"); err != nil {
			t.Fatalf("acquire %d: %v", i+1, err)
		}
	}

	// 4th should fail.
	if err := limiter.acquire("10.0.0.1"); !errors.Is(err, errClientLimit) {
		t.Errorf("acquire beyond limit: err = %v, want errClientLimit", err)
	}

	// Different client should still work.
	if err := limiter.acquire("10.0.0.2"); err != nil {
		t.Errorf("different client rate limited: %v", err)
	}

	// Release one and try again.
	limiter.release("10.0.0.1")
	if err := limiter.acquire("10.0.0.1"); err != nil {
		t.Errorf("acquire after release: %v", err)
	}

	if c := limiter.count("10.0.0.1"); c != 3 {
		t.Errorf("count = %d, want 3", c)
	}
	if c := limiter.count("10.0.0.2"); c != 1 {
		t.Errorf("count = %d, want 1", c)
	}
}

func TestRateLimitingCapacity(t *testing.T) {
	limiter := newStreamLimiter(10, 2)

	if err := limiter.acquire("a"); err != nil {
		t.Fatal(err)
	}
	if err := limiter.acquire("b"); err != nil {
		t.Fatal(err)
	}
	if err := limiter.acquire("c"); !errors.Is(err, errStreamLimit) {
		t.Errorf("err = %v, want errStreamLimit", err)
	}
	limiter.release("a")
	if err := limiter.acquire("c"); err != nil {
		t.Errorf("acquire after release: %v", err)
	}
}

// TestRateLimitingConcurrent verifies rate limiter thread safety.
func TestRateLimitingConcurrent(t *testing.T) {
	limiter := newStreamLimiter(100, 0)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if limiter.acquire("10.0.0.1") == nil {
				defer limiter.release("10.0.0.1")
				time.Sleep(10 * time.Millisecond)
			}
		}()
	}
	wg.Wait()

	if c := limiter.count("10.0.0.1"); c != 0 {
		t.Errorf("count after all released = %d, want 0", c)
	}
}

// TestRateLimitHTTPResponse verifies 429 response when limit exceeded.
func TestRateLimitHTTPResponse(t *testing.T) {
	m := testManager(t)
	s := testSession(t, m)
	cfg := testConfig()
	cfg.MaxConcurrentPerIP = 1
	handler := NewHandler(m, cfg, testLogger())

	// Hold the first connection open.
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		handler.HandleSSE(httptest.NewRecorder(), streamRequest(ctx, s.ID, "10.0.0.1:12345"))
	}()
	deadline := time.Now().Add(2 * time.Second)
	for handler.limiter.count("10.0.0.1") == 0 {
		if time.Now().After(deadline) {
			t.Fatal("first stream never connected")
		}
		time.Sleep(5 * time.Millisecond)
	}

	// Second connection from same IP should get 429.
	w := httptest.NewRecorder()
	handler.HandleSSE(w, streamRequest(context.Background(), s.ID, "10.0.0.1:54321"))
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want %d", w.Code, http.StatusTooManyRequests)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After header")
	}

	cancel()
	<-done
	if c := handler.limiter.count("10.0.0.1"); c != 0 {
		t.Errorf("slot not released: count = %d", c)
	}
}

// TestThrottle verifies oversized messages are paid for in installments.
func TestThrottle(t *testing.T) {
	if err := throttle(context.Background(), nil, 1<<30); err != nil {
		t.Fatalf("nil limiter: %v", err)
	}

	limiter := newBandwidthLimiter(minBurst)
	if limiter.Burst() != minBurst {
		t.Fatalf("burst = %d, want %d", limiter.Burst(), minBurst)
	}

	start := time.Now()
	// The first burst is free; the rest takes half a second.
	if err := throttle(context.Background(), limiter, minBurst+minBurst/2); err != nil {
		t.Fatal(err)
	}
	if elapsed := time.Since(start); elapsed < 400*time.Millisecond {
		t.Errorf("elapsed = %v, want about 500ms", elapsed)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := throttle(ctx, limiter, minBurst); err == nil {
		t.Error("cancelled wait should fail")
	}
}

// TestClientCounters verifies the per-connection totals match what was
// written and are reported when the client closes.
func TestClientCounters(t *testing.T) {
	var logs bytes.Buffer
	w := httptest.NewRecorder()
	c := &client{
		ctx:     context.Background(),
		w:       w,
		flusher: w,
		rc:      http.NewResponseController(w),
		key:     "127.0.0.1",
		logger:  slog.New(slog.NewJSONHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug})),
	}

	for _, msg := range []string{`{"type":"clock"}`, `{"type":"frame"}`} {
		if err := c.sendRaw([]byte(msg)); err != nil {
			t.Fatal(err)
		}
	}
	if err := c.sendKeepalive(); err != nil {
		t.Fatal(err)
	}

	if c.messagesSent != 2 {
		t.Errorf("messagesSent = %d, want 2", c.messagesSent)
	}
	if c.bytesSent != int64(w.Body.Len()) {
		t.Errorf("bytesSent = %d, want %d", c.bytesSent, w.Body.Len())
	}

	c.logClosed("s1")
	var closed map[string]any
	for _, line := range strings.Split(strings.TrimSpace(logs.String()), "\n") {
		var rec map[string]any
		if err := json.Unmarshal([]byte(line), &rec); err == nil && rec["msg"] == "stream client closed" {
			closed = rec
		}
	}
	if closed == nil {
		t.Fatalf("no close record in logs: %s", logs.String())
	}
	if closed["messages_sent"] != float64(2) || closed["bytes_sent"] != float64(w.Body.Len()) {
		t.Errorf("close record = %v", closed)
	}
}

// TestWebSocketCommands verifies events flow out and commands flow in.
func TestWebSocketCommands(t *testing.T) {
	m := testManager(t)
	s := testSession(t, m)
	handler := NewHandler(m, testConfig(), testLogger())

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/sessions/{id}/ws", handler.HandleWebSocket)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/sessions/" + s.ID + "/ws"
	conn, _, err := ws.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var first session.Event
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatal(err)
	}
	if first.Type != session.EventClock {
		t.Fatalf("first event = %q, want clock", first.Type)
	}

	// readUntil skips frames and other traffic until match accepts an event.
	readUntil := func(match func(session.Event) bool) session.Event {
		t.Helper()
		for {
			var ev session.Event
			if err := conn.ReadJSON(&ev); err != nil {
				t.Fatal(err)
			}
			if match(ev) {
				return ev
			}
		}
	}

	if err := conn.WriteJSON(session.Command{Type: session.CmdSeek, Value: 50}); err != nil {
		t.Fatal(err)
	}
	ev := readUntil(func(ev session.Event) bool { return ev.Type == session.EventAnnotation })
	if ev.Annotation.ID != "axes" || ev.Annotation.State != "present" {
		t.Errorf("annotation = %+v, want axes present", ev.Annotation)
	}

	if err := conn.WriteJSON(session.Command{Type: "warp"}); err != nil {
		t.Fatal(err)
	}
	ev = readUntil(func(ev session.Event) bool { return ev.Type == session.EventError })
	if !strings.Contains(ev.Error, "unknown command") {
		t.Errorf("error = %q", ev.Error)
	}

	if err := conn.WriteMessage(ws.TextMessage, []byte("{not json")); err != nil {
		t.Fatal(err)
	}
	ev = readUntil(func(ev session.Event) bool { return ev.Type == session.EventError })
	if !strings.Contains(ev.Error, "invalid command") {
		t.Errorf("error = %q", ev.Error)
	}

	// Stopping the session closes the socket.
	if err := m.Remove(s.ID); err != nil {
		t.Fatal(err)
	}
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if !ws.IsCloseError(err, ws.CloseGoingAway) {
				t.Errorf("close error = %v, want going away", err)
			}
			break
		}
	}
}
