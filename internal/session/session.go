// Package session runs one viewer's lesson: the animation scheduler, the
// narration clock and the timeline driving the lesson script, publishing
// everything that changes to subscribers.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/varun-un/AetherConnect/internal/animation"
	"github.com/varun-un/AetherConnect/internal/bodies"
	"github.com/varun-un/AetherConnect/internal/lesson"
	"github.com/varun-un/AetherConnect/internal/metrics"
	"github.com/varun-un/AetherConnect/internal/narration"
	"github.com/varun-un/AetherConnect/internal/orbit"
	"github.com/varun-un/AetherConnect/internal/timeline"
	"github.com/varun-un/AetherConnect/internal/transform"
)

// FocusBody is the body the lesson's geometry is drawn for.
const FocusBody = bodies.Earth

// ErrStopped is returned by operations on a stopped session.
var ErrStopped = errors.New("session stopped")

// PathSource computes or looks up orbit paths.
type PathSource interface {
	Get(ctx context.Context, el orbit.Elements) (orbit.Path, error)
}

// Session is one running lesson.
type Session struct {
	ID        string
	CreatedAt time.Time

	cfg       Config
	dataset   *bodies.Dataset
	paths     PathSource
	scheduler *animation.Scheduler
	driver    *timeline.Driver
	script    *lesson.Script
	clock     *narration.Clock
	calendar  transform.Calendar
	logger    *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu           sync.Mutex
	subs         map[uint64]chan Event
	nextSub      uint64
	shapes       map[string][]lesson.Shape
	control      *lesson.Control
	tracks       map[string]TrackPayload
	showVelocity bool
	lastActive   time.Time
	stopped      bool
}

// New builds a session with the focus body of ds in place. The session
// does not animate until Start.
func New(id string, ds *bodies.Dataset, paths PathSource, cfg Config, logger *slog.Logger) (*Session, error) {
	focus, ok := ds.Lookup(FocusBody)
	if !ok {
		return nil, fmt.Errorf("dataset %q has no %s", ds.Source, FocusBody)
	}

	ctx, cancel := context.WithCancel(context.Background())
	logger = logger.With("session_id", id)
	s := &Session{
		ID:         id,
		CreatedAt:  time.Now(),
		cfg:        cfg,
		dataset:    ds,
		paths:      paths,
		scheduler:  animation.NewScheduler(animation.NewRegistry(), cfg.Animation, logger),
		driver:     timeline.NewDriver(logger),
		clock:      narration.NewClock(cfg.NarrationDuration),
		calendar:   transform.NewCalendar(cfg.Epoch),
		logger:     logger.With("component", "session"),
		ctx:        ctx,
		cancel:     cancel,
		subs:       make(map[uint64]chan Event),
		shapes:     make(map[string][]lesson.Shape),
		tracks:     make(map[string]TrackPayload),
		lastActive: time.Now(),
	}

	if err := s.addBody(ctx, focus); err != nil {
		cancel()
		return nil, err
	}

	script, err := lesson.Install(ctx, s.driver, s, cfg.Lesson, logger)
	if err != nil {
		cancel()
		return nil, err
	}
	s.script = script
	return s, nil
}

// Start runs the frame loop, the timeline poll and the end-of-narration
// watch until Stop.
func (s *Session) Start() {
	started := s.Go(func() { s.scheduler.Start(s.ctx, s.publishFrame) }) &&
		s.Go(func() { s.driver.Start(s.ctx, s.clock, s.cfg.PollInterval) }) &&
		s.Go(s.watchEnd)
	if !started {
		return
	}
	s.logger.Info("session started")
}

// watchEnd publishes a clock event when the narration reaches its end. The
// clock pauses itself there, so no command announces it.
func (s *Session) watchEnd() {
	interval := s.cfg.PollInterval
	if interval <= 0 {
		interval = timeline.DefaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	ended := s.clock.Ended()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			now := s.clock.Ended()
			if now && !ended {
				s.logger.Debug("narration ended")
				s.publish(Event{Type: EventClock, Clock: s.clockPayload()})
			}
			ended = now
		}
	}
}

// Stop cancels the loops, resets the timeline and closes every subscriber.
func (s *Session) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	s.mu.Unlock()

	s.cancel()
	s.script.Stop()
	s.wg.Wait()

	if err := s.driver.Reset(); err != nil {
		s.logger.Warn("timeline reset failed", "error", err)
	}

	s.mu.Lock()
	for id, ch := range s.subs {
		close(ch)
		delete(s.subs, id)
	}
	s.mu.Unlock()
	s.logger.Info("session stopped")
}

// Subscribe registers a subscriber. The channel first receives the current
// clock, tracks, control and annotations, then live events; it is closed
// when the session stops or cancel is called. A subscriber that falls
// behind loses events rather than stalling the session.
func (s *Session) Subscribe() (<-chan Event, func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil, nil, ErrStopped
	}

	buf := max(s.cfg.SubscriberBuffer, 1)
	initial := s.snapshotLocked()
	ch := make(chan Event, buf+len(initial))
	for _, ev := range initial {
		ch <- ev
	}

	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	s.lastActive = time.Now()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if c, ok := s.subs[id]; ok {
				close(c)
				delete(s.subs, id)
			}
			s.lastActive = time.Now()
		})
	}
	return ch, cancel, nil
}

// snapshotLocked returns the events that bring a new subscriber up to date.
// Caller must hold mu.
func (s *Session) snapshotLocked() []Event {
	events := []Event{{Type: EventClock, Clock: s.clockPayload()}}
	for _, name := range s.scheduler.Registry().Names() {
		if tr, ok := s.tracks[name]; ok {
			events = append(events, Event{Type: EventTrack, Track: &tr})
		}
	}
	if s.control != nil {
		c := *s.control
		events = append(events, Event{Type: EventControl, Control: &c})
	}
	for _, id := range lesson.AnnotationIDs {
		if shapes, ok := s.shapes[id]; ok {
			events = append(events, Event{Type: EventAnnotation, Annotation: &AnnotationPayload{
				ID: id, State: timeline.Present.String(), Shapes: shapes,
			}})
		}
	}
	return events
}

// publish fans ev out to every subscriber without blocking.
func (s *Session) publish(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.publishLocked(ev)
}

func (s *Session) publishLocked(ev Event) {
	for _, ch := range s.subs {
		select {
		case ch <- ev:
		default:
			metrics.IncStreamErrors("slow_subscriber")
		}
	}
}

// publishFrame runs on the scheduler goroutine for every tick.
func (s *Session) publishFrame(f animation.Frame) {
	every := uint64(max(s.cfg.FrameEvery, 1))
	if f.Tick%every != 0 {
		return
	}

	payload := &FramePayload{
		Frame:       f,
		Date:        s.calendar.Label(f.SimDays),
		SpeedLabel:  animation.SpeedLabel(f.Speed),
		SiderealDeg: s.calendar.SiderealAngle(f.SimDays).Deg(),
	}

	s.mu.Lock()
	showVelocity := s.showVelocity
	s.mu.Unlock()
	if showVelocity {
		if path, el, idx, err := s.scheduler.BodyPath(FocusBody); err == nil {
			v := lesson.VelocityShape(path, float64(idx), el)
			payload.Velocity = &v
		}
	}
	s.publish(Event{Type: EventFrame, Frame: payload})
}

func (s *Session) clockPayload() *ClockPayload {
	return &ClockPayload{
		Position: s.clock.Now(),
		Duration: s.clock.Duration(),
		Playing:  s.clock.Playing(),
		Ended:    s.clock.Ended(),
	}
}

// addBody computes def's path and adds it to the scene.
func (s *Session) addBody(ctx context.Context, def bodies.Body) error {
	path, err := s.paths.Get(ctx, def.Elements)
	if err != nil {
		return fmt.Errorf("path for %s: %w", def.Name, err)
	}
	if err := s.scheduler.AddBody(def, path); err != nil {
		return err
	}
	s.setTrack(def, path)
	return nil
}

func (s *Session) setTrack(def bodies.Body, path orbit.Path) {
	limit := max(s.cfg.TrackPoints, 1)
	down := path.Downsample(max((len(path)+limit-1)/limit, 1))
	points := make([][3]float64, len(down))
	for i, p := range down {
		points[i] = [3]float64{p.X, p.Y, p.Z}
	}
	tr := TrackPayload{Body: def.Name, Radius: def.Radius, TiltDeg: def.TiltDeg, Points: points}

	s.mu.Lock()
	s.tracks[def.Name] = tr
	s.publishLocked(Event{Type: EventTrack, Track: &tr})
	s.mu.Unlock()
}

// Focus returns the focus body's current path and elements.
func (s *Session) Focus() (orbit.Path, orbit.Elements) {
	path, el, _, err := s.scheduler.BodyPath(FocusBody)
	if err != nil {
		return nil, orbit.Elements{}
	}
	return path, el
}

// Show publishes an annotation's shapes.
func (s *Session) Show(annotation string, shapes []lesson.Shape) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shapes[annotation] = shapes
	s.publishLocked(Event{Type: EventAnnotation, Annotation: &AnnotationPayload{
		ID: annotation, State: timeline.Present.String(), Shapes: shapes,
	}})
	return nil
}

// Hide publishes an annotation's removal.
func (s *Session) Hide(annotation string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.shapes, annotation)
	s.publishLocked(Event{Type: EventAnnotation, Annotation: &AnnotationPayload{
		ID: annotation, State: timeline.Absent.String(),
	}})
	return nil
}

// SetControl publishes the eccentricity control.
func (s *Session) SetControl(c lesson.Control) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.control = &c
	s.publishLocked(Event{Type: EventControl, Control: &c})
	return nil
}

// ReplaceFocusOrbit swaps in the path for el. The body keeps its phase.
func (s *Session) ReplaceFocusOrbit(el orbit.Elements) error {
	path, err := s.paths.Get(s.ctx, el)
	if err != nil {
		return err
	}
	if err := s.scheduler.ReplacePath(FocusBody, el, path); err != nil {
		return err
	}
	def, _ := s.dataset.Lookup(FocusBody)
	def.Elements = el
	s.setTrack(def, path)
	return nil
}

// Go runs fn on a goroutine Stop waits for. It reports false once the
// session is stopping.
func (s *Session) Go(fn func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return false
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		fn()
	}()
	return true
}

// AddDeferredBodies adds the held-back planets in the background; their
// paths can take seconds to compute.
func (s *Session) AddDeferredBodies() error {
	deferred := s.dataset.Filter(func(b bodies.Body) bool { return b.Deferred })
	started := s.Go(func() {
		for _, def := range deferred {
			if _, ok := s.scheduler.Registry().Get(def.Name); ok {
				continue
			}
			if err := s.addBody(s.ctx, def); err != nil {
				if s.ctx.Err() != nil {
					return
				}
				s.logger.Warn("deferred body failed", "body", def.Name, "error", err)
				s.publish(Event{Type: EventError, Error: err.Error()})
				continue
			}
			s.logger.Debug("deferred body added", "body", def.Name)
		}
	})
	if !started {
		s.logger.Debug("deferred bodies skipped, session stopping")
	}
	return nil
}

// Info summarises a session for the API.
type Info struct {
	ID          string       `json:"id"`
	CreatedAt   time.Time    `json:"created_at"`
	Subscribers int          `json:"subscribers"`
	Clock       ClockPayload `json:"clock"`
	Speed       float64      `json:"speed"`
	SpeedLabel  string       `json:"speed_label"`
	Date        string       `json:"date"`
	Bodies      []string     `json:"bodies"`
	Active      []string     `json:"active"`
	Velocity    bool         `json:"velocity"`
}

// Info returns the session summary.
func (s *Session) Info() Info {
	frame := s.scheduler.Snapshot()
	s.mu.Lock()
	subs, velocity := len(s.subs), s.showVelocity
	s.mu.Unlock()
	return Info{
		ID:          s.ID,
		CreatedAt:   s.CreatedAt,
		Subscribers: subs,
		Clock:       *s.clockPayload(),
		Speed:       frame.Speed,
		SpeedLabel:  animation.SpeedLabel(frame.Speed),
		Date:        s.calendar.Label(frame.SimDays),
		Bodies:      s.scheduler.Registry().Names(),
		Active:      s.driver.Active(),
		Velocity:    velocity,
	}
}

// idleSince reports when the session was last used, or the zero time while
// it has subscribers.
func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.subs) > 0 {
		return time.Time{}
	}
	return s.lastActive
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastActive = time.Now()
	s.mu.Unlock()
}
