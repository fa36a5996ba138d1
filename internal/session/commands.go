package session

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/varun-un/AetherConnect/internal/metrics"
	"github.com/varun-un/AetherConnect/internal/transform"
)

// Command types accepted by Apply.
const (
	CmdSpeed        = "speed"
	CmdEccentricity = "eccentricity"
	CmdSeek         = "seek"
	CmdPlay         = "play"
	CmdPause        = "pause"
	CmdVelocity     = "velocity"
	CmdDrag         = "drag"
)

var (
	// ErrUnknownCommand is returned for unrecognised command types.
	ErrUnknownCommand = errors.New("unknown command")

	// ErrInvalidCommand is returned when a command lacks a required field.
	ErrInvalidCommand = errors.New("invalid command")
)

// Command is a viewer control input.
type Command struct {
	Type    string      `json:"type"`
	Value   float64     `json:"value,omitempty"`   // speed, eccentricity or narration seconds
	Enabled *bool       `json:"enabled,omitempty"` // velocity
	Point   *[3]float64 `json:"point,omitempty"`   // drag: point on the orbital plane
	Body    string      `json:"body,omitempty"`    // drag: defaults to the focus body
}

// Apply executes cmd. It must not be called from a timeline hook.
func (s *Session) Apply(cmd Command) error {
	err := s.apply(cmd)
	result := "ok"
	switch {
	case errors.Is(err, ErrUnknownCommand):
		result = "unknown"
	case err != nil:
		result = "error"
	}
	metrics.IncSessionCommands(commandLabel(cmd.Type), result)
	if err != nil {
		s.logger.Debug("command rejected", "type", cmd.Type, "error", err)
	}
	return err
}

func (s *Session) apply(cmd Command) error {
	s.mu.Lock()
	stopped := s.stopped
	s.mu.Unlock()
	if stopped {
		return ErrStopped
	}
	s.touch()

	switch cmd.Type {
	case CmdSpeed:
		return s.scheduler.SetSpeed(cmd.Value)

	case CmdEccentricity:
		return s.script.SetEccentricity(cmd.Value)

	case CmdSeek:
		if err := s.clock.Seek(cmd.Value); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidCommand, err)
		}
		s.publish(Event{Type: EventClock, Clock: s.clockPayload()})
		// Bring the scene in line now rather than at the next poll.
		_, err := s.driver.Poll(s.clock.Now())
		return err

	case CmdPlay:
		s.clock.Play()
		s.publish(Event{Type: EventClock, Clock: s.clockPayload()})
		return nil

	case CmdPause:
		s.clock.Pause()
		s.publish(Event{Type: EventClock, Clock: s.clockPayload()})
		return nil

	case CmdVelocity:
		if cmd.Enabled == nil {
			return fmt.Errorf("%w: velocity requires enabled", ErrInvalidCommand)
		}
		s.mu.Lock()
		s.showVelocity = *cmd.Enabled
		s.mu.Unlock()
		return nil

	case CmdDrag:
		if cmd.Point == nil {
			return fmt.Errorf("%w: drag requires point", ErrInvalidCommand)
		}
		name := cmd.Body
		if name == "" {
			name = FocusBody
		}
		path, el, _, err := s.scheduler.BodyPath(name)
		if err != nil {
			return err
		}
		p := r3.Vec{X: cmd.Point[0], Y: cmd.Point[1], Z: cmd.Point[2]}
		if !transform.ValidScenePoint(p, 2*el.Apoapsis()) {
			return fmt.Errorf("%w: drag point %v is off %s's orbital plane or out of reach", ErrInvalidCommand, cmd.Point, name)
		}
		return s.scheduler.SeekOrbit(name, path.ClosestIndex(p))
	}
	return fmt.Errorf("%w: %q", ErrUnknownCommand, cmd.Type)
}

// commandLabel bounds metric label cardinality to the known commands.
func commandLabel(t string) string {
	switch t {
	case CmdSpeed, CmdEccentricity, CmdSeek, CmdPlay, CmdPause, CmdVelocity, CmdDrag:
		return t
	}
	return "other"
}
