// Package narration tracks the lesson's narration position.
//
// The browser owns audio playback and reports its position; between
// reports the clock extrapolates with wall time while playing. The
// position is clamped to the track duration and the clock pauses itself
// when the narration ends.
package narration

import (
	"fmt"
	"math"
	"sync"
	"time"
)

// Clock is a seekable narration position. Safe for concurrent use.
type Clock struct {
	mu       sync.Mutex
	position float64 // seconds at anchor
	anchor   time.Time
	playing  bool
	duration float64 // 0 means unknown
	now      func() time.Time
}

// NewClock creates a paused clock at 0. A zero duration disables clamping.
func NewClock(duration time.Duration) *Clock {
	return &Clock{duration: duration.Seconds(), now: time.Now}
}

// Now returns the narration position in seconds.
func (c *Clock) Now() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.advance()
}

// advance extrapolates to the current wall time and re-anchors. Caller
// must hold mu.
func (c *Clock) advance() float64 {
	wall := c.now()
	if c.playing {
		c.position += wall.Sub(c.anchor).Seconds()
	}
	c.anchor = wall
	if c.duration > 0 && c.position >= c.duration {
		c.position = c.duration
		c.playing = false
	}
	return c.position
}

// Seek moves the clock to t seconds, forwards or backwards. The playing
// state is unchanged unless t is the end of the narration.
func (c *Clock) Seek(t float64) error {
	if math.IsNaN(t) || math.IsInf(t, 0) || t < 0 {
		return fmt.Errorf("invalid narration position %g", t)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.anchor = c.now()
	c.position = t
	if c.duration > 0 && c.position >= c.duration {
		c.position = c.duration
		c.playing = false
	}
	return nil
}

// Play resumes extrapolation. Playing an ended clock restarts it from 0.
func (c *Clock) Play() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.advance()
	if c.duration > 0 && c.position >= c.duration {
		c.position = 0
	}
	c.playing = true
}

// Pause freezes the clock at its current position.
func (c *Clock) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.advance()
	c.playing = false
}

// Playing reports whether the clock is advancing.
func (c *Clock) Playing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.advance()
	return c.playing
}

// Ended reports whether the clock has reached the end of a known duration.
func (c *Clock) Ended() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.duration > 0 && c.advance() >= c.duration
}

// Duration returns the track length in seconds, or 0 if unknown.
func (c *Clock) Duration() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.duration
}
