package session

import (
	"time"

	"github.com/varun-un/AetherConnect/internal/animation"
	"github.com/varun-un/AetherConnect/internal/lesson"
	"github.com/varun-un/AetherConnect/internal/timeline"
)

// Config holds session configuration.
type Config struct {
	MaxSessions       int           `mapstructure:"max_sessions"`       // Concurrent sessions (default: 100)
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"`       // Reap sessions unused this long (default: 10m)
	FrameEvery        int           `mapstructure:"frame_every"`        // Publish every Nth tick (default: 2)
	SubscriberBuffer  int           `mapstructure:"subscriber_buffer"`  // Events buffered per subscriber (default: 64)
	TrackPoints       int           `mapstructure:"track_points"`       // Max points in an orbit track event (default: 1440)
	PollInterval      time.Duration `mapstructure:"poll_interval"`      // Timeline poll (default: 1s)
	NarrationDuration time.Duration `mapstructure:"narration_duration"` // Track length; 0 disables clamping
	Epoch             time.Time     `mapstructure:"epoch"`              // Calendar date of simulated day zero

	Animation animation.Config `mapstructure:"animation"`
	Lesson    lesson.Config    `mapstructure:"lesson"`
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		MaxSessions:      100,
		IdleTimeout:      10 * time.Minute,
		FrameEvery:       2,
		SubscriberBuffer: 64,
		TrackPoints:      1440,
		PollInterval:     timeline.DefaultPollInterval,
		Animation:        animation.DefaultConfig(),
		Lesson:           lesson.DefaultConfig(),
	}
}
