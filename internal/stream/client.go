package stream

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/varun-un/AetherConnect/internal/metrics"
)

// writeWait bounds a single write to a stream client.
const writeWait = 30 * time.Second

// minBurst keeps one track message within a single bandwidth reservation.
const minBurst = 64 << 10

// newBandwidthLimiter returns a byte-rate limiter, or nil when
// bytesPerSecond is not positive.
func newBandwidthLimiter(bytesPerSecond int) *rate.Limiter {
	if bytesPerSecond <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(bytesPerSecond), max(bytesPerSecond, minBurst))
}

// throttle waits until n bytes may be sent under limiter. Messages larger
// than the burst are paid for in burst-sized installments.
func throttle(ctx context.Context, limiter *rate.Limiter, n int) error {
	if limiter == nil {
		return nil
	}
	burst := limiter.Burst()
	for n > 0 {
		k := min(n, burst)
		if err := limiter.WaitN(ctx, k); err != nil {
			metrics.IncStreamErrors("bandwidth")
			return fmt.Errorf("bandwidth wait: %w", err)
		}
		n -= k
	}
	return nil
}

// client manages a single SSE connection's write operations.
type client struct {
	ctx     context.Context
	w       http.ResponseWriter
	flusher http.Flusher
	rc      *http.ResponseController
	key     string // limit key of the remote client
	limiter *rate.Limiter
	logger  *slog.Logger

	messagesSent int64
	bytesSent    int64
}

// logClosed records what the connection carried before it ended.
func (c *client) logClosed(sessionID string) {
	c.logger.Debug("stream client closed",
		"session_id", sessionID,
		"client", c.key,
		"messages_sent", c.messagesSent,
		"bytes_sent", c.bytesSent,
	)
}

// sendRaw sends pre-encoded JSON as an SSE "data:" message.
// SSE format: "data: {json}\n\n"
func (c *client) sendRaw(data []byte) error {
	if err := throttle(c.ctx, c.limiter, len(data)+8); err != nil {
		return err
	}

	// Extend write deadline before each write to prevent timeout on long-lived connections.
	if err := c.rc.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Debug("could not set write deadline", "error", err)
	}

	n, err := fmt.Fprintf(c.w, "data: %s\n\n", data)
	if err != nil {
		return fmt.Errorf("write: %w", err)
	}

	c.flusher.Flush()
	c.messagesSent++
	c.bytesSent += int64(n)
	metrics.IncStreamMessages()
	metrics.AddStreamBytes(int64(n))

	return nil
}

// sendKeepalive sends an SSE comment line to keep the connection alive.
// SSE comment format: ":\n\n"
func (c *client) sendKeepalive() error {
	if err := c.rc.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Debug("could not set write deadline", "error", err)
	}

	n, err := fmt.Fprint(c.w, ":\n\n")
	if err != nil {
		return fmt.Errorf("keepalive write: %w", err)
	}

	c.flusher.Flush()
	c.bytesSent += int64(n)
	metrics.AddStreamBytes(int64(n))

	return nil
}
