package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	ws "github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/varun-un/AetherConnect/internal/metrics"
	"github.com/varun-un/AetherConnect/internal/session"
)

const (
	maxCommandBytes = 4096
	repliesChSize   = 16
)

func (h *Handler) upgrader() *ws.Upgrader {
	u := &ws.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 16 << 10,
	}
	if h.config.AllowAnyOrigin {
		u.CheckOrigin = func(*http.Request) bool { return true }
	}
	return u
}

// HandleWebSocket serves a session's event stream over WebSocket and
// applies the commands the client sends back.
// GET /api/v1/sessions/{id}/ws
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	s, key, ok := h.open(w, r, transportWebSocket)
	if !ok {
		return
	}

	events, unsubscribe, err := s.Subscribe()
	if err != nil {
		h.limiter.release(key)
		if errors.Is(err, session.ErrStopped) {
			writeError(w, http.StatusGone, "session stopped")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer unsubscribe()

	conn, err := h.upgrader().Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied with an HTTP error.
		h.limiter.release(key)
		metrics.IncStreamErrors("upgrade")
		h.logger.Debug("websocket upgrade failed", "client", key, "error", err)
		return
	}
	defer conn.Close()
	defer h.track(s, key, transportWebSocket)()

	pongWait := 2 * h.config.KeepaliveInterval
	conn.SetReadLimit(maxCommandBytes)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	replies := make(chan session.Event, repliesChSize)
	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		defer cancel()
		h.readCommands(ctx, conn, s, replies, pongWait)
	}()

	h.writeEvents(ctx, conn, events, replies, key)
	cancel()
	conn.Close()
	<-readerDone
}

// readCommands applies each command the client sends. Rejected commands
// are answered with an error event.
func (h *Handler) readCommands(ctx context.Context, conn *ws.Conn, s *session.Session, replies chan<- session.Event, pongWait time.Duration) {
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if ws.IsUnexpectedCloseError(err, ws.CloseGoingAway, ws.CloseNormalClosure) && ctx.Err() == nil {
				h.logger.Debug("websocket read error", "session_id", s.ID, "error", err)
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(pongWait))

		var cmd session.Command
		if err := json.Unmarshal(message, &cmd); err != nil {
			err = fmt.Errorf("%w: %v", session.ErrInvalidCommand, err)
			if !reply(ctx, replies, err) {
				return
			}
			continue
		}
		if err := s.Apply(cmd); err != nil {
			if !reply(ctx, replies, err) {
				return
			}
		}
	}
}

func reply(ctx context.Context, replies chan<- session.Event, err error) bool {
	select {
	case replies <- session.Event{Type: session.EventError, Error: err.Error()}:
		return true
	case <-ctx.Done():
		return false
	}
}

// writeEvents is the connection's only writer. It returns when ctx is
// cancelled, the session stops or a write fails.
func (h *Handler) writeEvents(ctx context.Context, conn *ws.Conn, events <-chan session.Event, replies <-chan session.Event, key string) {
	limiter := newBandwidthLimiter(h.config.BandwidthLimit)
	ping := time.NewTicker(h.config.KeepaliveInterval)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			closeConn(conn, ws.CloseNormalClosure, "")
			return

		case ev, open := <-events:
			if !open {
				closeConn(conn, ws.CloseGoingAway, "session stopped")
				return
			}
			if err := h.writeEvent(ctx, conn, limiter, ev); err != nil {
				metrics.IncStreamErrors("send_error")
				h.logger.Warn("websocket send error", "client", key, "error", err)
				return
			}

		case ev := <-replies:
			if err := h.writeEvent(ctx, conn, limiter, ev); err != nil {
				metrics.IncStreamErrors("send_error")
				h.logger.Warn("websocket send error", "client", key, "error", err)
				return
			}

		case <-ping.C:
			if err := conn.WriteControl(ws.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				metrics.IncStreamErrors("send_error")
				h.logger.Warn("websocket ping error", "client", key, "error", err)
				return
			}
		}
	}
}

func (h *Handler) writeEvent(ctx context.Context, conn *ws.Conn, limiter *rate.Limiter, ev session.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		metrics.IncStreamErrors("marshal_error")
		return fmt.Errorf("json marshal: %w", err)
	}
	if err := throttle(ctx, limiter, len(data)); err != nil {
		return err
	}
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return fmt.Errorf("set write deadline: %w", err)
	}
	if err := conn.WriteMessage(ws.TextMessage, data); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	metrics.IncStreamMessages()
	metrics.AddStreamBytes(int64(len(data)))
	return nil
}

func closeConn(conn *ws.Conn, code int, text string) {
	msg := ws.FormatCloseMessage(code, text)
	_ = conn.WriteControl(ws.CloseMessage, msg, time.Now().Add(time.Second))
}
