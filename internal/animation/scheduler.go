package animation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/varun-un/AetherConnect/internal/bodies"
	"github.com/varun-un/AetherConnect/internal/metrics"
	"github.com/varun-un/AetherConnect/internal/orbit"
)

// Defaults for Config.
const (
	DefaultTickRate          = 60
	DefaultBaseDaysPerSecond = 0.5 // speed 1 reads "1 second = 0.5 Earth days"
	DefaultRotationSpeedCap  = 20
	DefaultMaxSpeed          = 730
)

// ErrInvalidSpeed is returned for negative, NaN or out-of-range speeds.
var ErrInvalidSpeed = errors.New("invalid speed")

// ErrUnknownBody is returned when a body name is not registered.
var ErrUnknownBody = errors.New("unknown body")

// Config holds scheduler configuration.
type Config struct {
	TickRate          int     `mapstructure:"tickRate"`          // frames per wall second
	BaseDaysPerSecond float64 `mapstructure:"baseDaysPerSecond"` // simulated days per second at speed 1
	RotationSpeedCap  float64 `mapstructure:"rotationSpeedCap"`  // rotation multiplier ceiling
	MaxSpeed          float64 `mapstructure:"maxSpeed"`          // largest accepted speed value
}

// DefaultConfig returns the lesson's timing: 60 fps, 1 second = 12 hours.
func DefaultConfig() Config {
	return Config{
		TickRate:          DefaultTickRate,
		BaseDaysPerSecond: DefaultBaseDaysPerSecond,
		RotationSpeedCap:  DefaultRotationSpeedCap,
		MaxSpeed:          DefaultMaxSpeed,
	}
}

// framesFor converts a duration in simulated days into frames at speed 1.
func (c Config) framesFor(days float64) float64 {
	return days / c.BaseDaysPerSecond * float64(c.TickRate)
}

// Frame is the state of every body after one tick.
type Frame struct {
	Tick    uint64      `json:"tick"`
	SimDays float64     `json:"sim_days"`
	Speed   float64     `json:"speed"`
	Bodies  []BodyFrame `json:"bodies"`
}

// BodyFrame is one body's contribution to a Frame.
type BodyFrame struct {
	Name          string     `json:"name"`
	Position      [3]float64 `json:"p"`
	PathIndex     int        `json:"i"`
	RotationAngle float64    `json:"rot"`
	RotationDelta float64    `json:"drot"`
	TiltDeg       float64    `json:"tilt"`
}

// Scheduler advances every body in a Registry once per tick.
type Scheduler struct {
	mu       sync.Mutex
	registry *Registry
	config   Config
	logger   *slog.Logger

	orbitSpeed    float64
	rotationSpeed float64
	tick          uint64
	simDays       float64
}

// NewScheduler creates a scheduler over reg at speed 1.
func NewScheduler(reg *Registry, config Config, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		registry:      reg,
		config:        config,
		logger:        logger,
		orbitSpeed:    1,
		rotationSpeed: 1,
	}
}

// Config returns the scheduler configuration.
func (s *Scheduler) Config() Config {
	return s.config
}

// Registry returns the scheduler's body registry.
func (s *Scheduler) Registry() *Registry {
	return s.registry
}

// AddBody creates and registers a body following path.
func (s *Scheduler) AddBody(def bodies.Body, path orbit.Path) error {
	b, err := NewBody(def, path, s.config)
	if err != nil {
		return err
	}
	return s.registry.Add(b)
}

// SetSpeed sets the user speed value. The orbit multiplier is the value
// itself; the rotation multiplier is capped at RotationSpeedCap. The change
// takes effect on the next tick without moving any body.
func (s *Scheduler) SetSpeed(value float64) error {
	if math.IsNaN(value) || value < 0 || (s.config.MaxSpeed > 0 && value > s.config.MaxSpeed) {
		return fmt.Errorf("%w: %g", ErrInvalidSpeed, value)
	}

	s.mu.Lock()
	s.orbitSpeed = value
	s.rotationSpeed = math.Min(value, s.config.RotationSpeedCap)
	s.mu.Unlock()

	s.logger.Debug("speed changed", "component", "animation", "speed", value)
	return nil
}

// Speed returns the orbit and rotation multipliers.
func (s *Scheduler) Speed() (orbitSpeed, rotationSpeed float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.orbitSpeed, s.rotationSpeed
}

// Tick advances every body by one frame and returns the resulting state.
func (s *Scheduler) Tick() Frame {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tick++
	s.simDays += s.orbitSpeed * s.config.BaseDaysPerSecond / float64(s.config.TickRate)

	frame := Frame{
		Tick:    s.tick,
		SimDays: s.simDays,
		Speed:   s.orbitSpeed,
		Bodies:  make([]BodyFrame, 0, s.registry.Len()),
	}
	s.registry.each(func(b *Body) {
		b.advance(s.orbitSpeed, s.rotationSpeed)
		frame.Bodies = append(frame.Bodies, bodyFrame(b))
	})
	return frame
}

// Snapshot returns the current state without advancing.
func (s *Scheduler) Snapshot() Frame {
	s.mu.Lock()
	defer s.mu.Unlock()

	frame := Frame{Tick: s.tick, SimDays: s.simDays, Speed: s.orbitSpeed}
	s.registry.each(func(b *Body) {
		frame.Bodies = append(frame.Bodies, bodyFrame(b))
	})
	return frame
}

func bodyFrame(b *Body) BodyFrame {
	return BodyFrame{
		Name:          b.Def.Name,
		Position:      b.Position(),
		PathIndex:     b.PathIndex(),
		RotationAngle: b.RotationAngle,
		RotationDelta: b.RotationDelta(),
		TiltDeg:       b.Def.TiltDeg,
	}
}

// ReplacePath atomically swaps the named body's path and elements. The
// body keeps its orbital phase, so the next frame reads a valid index of
// the new path.
func (s *Scheduler) ReplacePath(name string, el orbit.Elements, path orbit.Path) error {
	if len(path) == 0 {
		return fmt.Errorf("replace path of %q: empty path", name)
	}
	b, ok := s.registry.Get(name)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownBody, name)
	}

	s.mu.Lock()
	b.replacePath(el, path, s.config)
	s.mu.Unlock()
	return nil
}

// SeekOrbit moves the named body to path sample index.
func (s *Scheduler) SeekOrbit(name string, index int) error {
	b, ok := s.registry.Get(name)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownBody, name)
	}

	s.mu.Lock()
	b.seekOrbit(index)
	s.mu.Unlock()
	return nil
}

// BodyPath returns the named body's current path, elements and path index.
func (s *Scheduler) BodyPath(name string) (orbit.Path, orbit.Elements, int, error) {
	b, ok := s.registry.Get(name)
	if !ok {
		return nil, orbit.Elements{}, 0, fmt.Errorf("%w: %q", ErrUnknownBody, name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return b.path, b.Def.Elements, b.PathIndex(), nil
}

// Start ticks at TickRate and hands each frame to sink until ctx is
// cancelled. sink runs on the scheduler goroutine and must not block.
func (s *Scheduler) Start(ctx context.Context, sink func(Frame)) {
	interval := time.Second / time.Duration(s.config.TickRate)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Debug("scheduler started", "component", "animation", "tick_rate", s.config.TickRate)
	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("scheduler stopped", "component", "animation")
			return
		case <-ticker.C:
			start := time.Now()
			frame := s.Tick()
			sink(frame)
			metrics.ObserveFrameDuration(time.Since(start))
		}
	}
}
