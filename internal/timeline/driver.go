// Package timeline synchronises scene annotations with a narration clock.
//
// Each annotation is visible inside one or more half-open windows
// [Start, End) of narration seconds. The driver keeps an explicit
// Absent/Present state per annotation and, on every poll, creates the
// annotations whose windows contain the clock and destroys the ones whose
// windows do not. Polling is idempotent and the clock may move backwards.
package timeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/varun-un/AetherConnect/internal/metrics"
)

// DefaultPollInterval is how often Start polls the clock.
const DefaultPollInterval = time.Second

// State is an annotation's presence in the scene.
type State int

const (
	Absent State = iota
	Present
)

func (s State) String() string {
	if s == Present {
		return "present"
	}
	return "absent"
}

// Window is a half-open interval [Start, End) of narration seconds.
type Window struct {
	Start float64 `json:"start" mapstructure:"start"`
	End   float64 `json:"end" mapstructure:"end"`
}

// Contains reports whether Start ≤ t < End.
func (w Window) Contains(t float64) bool {
	return t >= w.Start && t < w.End
}

// Hook creates or destroys an annotation's scene objects.
type Hook func() error

// Annotation is a scene object tied to narration windows.
type Annotation struct {
	ID        string
	Windows   []Window
	OnCreate  Hook
	OnDestroy Hook
}

// Kind classifies a Transition.
type Kind string

const (
	Created   Kind = "created"
	Destroyed Kind = "destroyed"
	Fired     Kind = "fired"
)

// Transition records one state change made by a poll.
type Transition struct {
	ID   string  `json:"id"`
	Kind Kind    `json:"kind"`
	At   float64 `json:"at"`
}

// Clock reports the narration position in seconds.
type Clock interface {
	Now() float64
}

type annotationEntry struct {
	Annotation
	state State
}

// Driver evaluates annotations and triggers against the narration clock.
// Hooks run while the driver's lock is held and must not call back into it.
type Driver struct {
	mu          sync.Mutex
	annotations []*annotationEntry
	index       map[string]*annotationEntry
	triggers    []*triggerEntry
	logger      *slog.Logger
}

// NewDriver creates an empty driver.
func NewDriver(logger *slog.Logger) *Driver {
	return &Driver{
		index:  make(map[string]*annotationEntry),
		logger: logger,
	}
}

// Add registers an annotation. Annotations are evaluated in registration
// order. Each window must satisfy Start < End.
func (d *Driver) Add(a Annotation) error {
	if a.ID == "" {
		return errors.New("annotation id is empty")
	}
	if len(a.Windows) == 0 {
		return fmt.Errorf("annotation %q has no windows", a.ID)
	}
	for _, w := range a.Windows {
		if math.IsNaN(w.Start) || math.IsNaN(w.End) || w.Start >= w.End {
			return fmt.Errorf("annotation %q: invalid window [%g, %g)", a.ID, w.Start, w.End)
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.index[a.ID]; ok {
		return fmt.Errorf("annotation %q already registered", a.ID)
	}
	e := &annotationEntry{Annotation: a}
	d.annotations = append(d.annotations, e)
	d.index[a.ID] = e
	return nil
}

// Poll brings every annotation and trigger in line with narration time t
// and returns the transitions it made. A hook that fails leaves its
// annotation in the previous state, so the next poll retries it; hook
// errors are joined into the returned error.
func (d *Driver) Poll(t float64) ([]Transition, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var (
		transitions []Transition
		errs        []error
	)

	for _, e := range d.annotations {
		want := Absent
		for _, w := range e.Windows {
			if w.Contains(t) {
				want = Present
				break
			}
		}
		if want == e.state {
			continue
		}

		kind, hook := Created, e.OnCreate
		if want == Absent {
			kind, hook = Destroyed, e.OnDestroy
		}
		if err := call(hook); err != nil {
			errs = append(errs, fmt.Errorf("%s %q at %.2fs: %w", kind, e.ID, t, err))
			metrics.IncTimelineHookErrors()
			continue
		}
		e.state = want
		transitions = append(transitions, Transition{ID: e.ID, Kind: kind, At: t})
		metrics.IncTimelineTransitions(string(kind))
	}

	for _, tr := range d.triggers {
		fired, err := tr.evaluate(t)
		if err != nil {
			errs = append(errs, fmt.Errorf("trigger %q at %.2fs: %w", tr.ID, t, err))
			metrics.IncTimelineHookErrors()
			continue
		}
		if fired {
			transitions = append(transitions, Transition{ID: tr.ID, Kind: Fired, At: t})
			metrics.IncTimelineTransitions(string(Fired))
		}
	}

	for _, tr := range transitions {
		d.logger.Debug("timeline transition", "component", "timeline", "id", tr.ID, "kind", tr.Kind, "t", t)
	}
	return transitions, errors.Join(errs...)
}

// State returns the state of the annotation with the given id. Unknown ids
// are Absent.
func (d *Driver) State(id string) State {
	d.mu.Lock()
	defer d.mu.Unlock()
	if e, ok := d.index[id]; ok {
		return e.state
	}
	return Absent
}

// Active returns the ids of present annotations in registration order.
func (d *Driver) Active() []string {
	d.mu.Lock()
	defer d.mu.Unlock()

	var ids []string
	for _, e := range d.annotations {
		if e.state == Present {
			ids = append(ids, e.ID)
		}
	}
	return ids
}

// Refresh rebuilds a present annotation by running its destroy and create
// hooks, for geometry that depends on data that has changed. Absent or
// unknown annotations are left alone.
func (d *Driver) Refresh(id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	e, ok := d.index[id]
	if !ok || e.state != Present {
		return nil
	}
	if err := call(e.OnDestroy); err != nil {
		return fmt.Errorf("refresh %q: destroy: %w", id, err)
	}
	e.state = Absent
	if err := call(e.OnCreate); err != nil {
		return fmt.Errorf("refresh %q: create: %w", id, err)
	}
	e.state = Present
	return nil
}

// Reset destroys every present annotation and re-arms all triggers,
// returning the driver to its initial state.
func (d *Driver) Reset() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var errs []error
	for _, e := range d.annotations {
		if e.state != Present {
			continue
		}
		if err := call(e.OnDestroy); err != nil {
			errs = append(errs, fmt.Errorf("reset %q: %w", e.ID, err))
			continue
		}
		e.state = Absent
	}
	for _, tr := range d.triggers {
		tr.fired = false
		tr.armed = true
	}
	return errors.Join(errs...)
}

// Start polls clock every interval until ctx is cancelled.
func (d *Driver) Start(ctx context.Context, clock Clock, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t := clock.Now()
			if _, err := d.Poll(t); err != nil {
				d.logger.Warn("timeline poll failed", "component", "timeline", "t", t, "error", err)
			}
		}
	}
}

func call(h Hook) error {
	if h == nil {
		return nil
	}
	return h()
}
