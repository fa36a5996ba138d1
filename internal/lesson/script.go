package lesson

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/varun-un/AetherConnect/internal/orbit"
	"github.com/varun-un/AetherConnect/internal/timeline"
)

var (
	// ErrControlLocked is returned for eccentricity changes before the
	// narration has revealed the control.
	ErrControlLocked = errors.New("eccentricity control not yet available")

	// ErrEccentricityRange is returned for values outside the slider range.
	ErrEccentricityRange = errors.New("eccentricity outside slider range")
)

// Scene is the view the script draws into. Methods are called from
// timeline hooks with the driver locked, so they must not call back into
// the driver and must not block.
type Scene interface {
	// Focus returns the path and elements of the body the lesson is about.
	Focus() (orbit.Path, orbit.Elements)
	Show(annotation string, shapes []Shape) error
	Hide(annotation string) error
	SetControl(c Control) error
	// ReplaceFocusOrbit recomputes the focus body's path for el.
	ReplaceFocusOrbit(el orbit.Elements) error
	// AddDeferredBodies starts adding the bodies held back until late in
	// the narration.
	AddDeferredBodies() error
	// Go runs fn on a goroutine the scene waits for when it stops. It
	// reports false, without running fn, once the scene is stopping.
	Go(fn func()) bool
}

// Control describes the eccentricity slider.
type Control struct {
	ID    string  `json:"id"`
	Label string  `json:"label"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Value float64 `json:"value"`
}

// EccentricityLabel is the slider caption, rounded to four decimals.
func EccentricityLabel(e float64) string {
	return fmt.Sprintf("Earth's eccentricity: %g", math.Round(e*10000)/10000)
}

// Script binds the lesson to a timeline driver and a scene.
type Script struct {
	cfg    Config
	scene  Scene
	driver *timeline.Driver
	logger *slog.Logger
	ctx    context.Context

	mu          sync.Mutex
	cancelTween context.CancelFunc
}

// Install registers the lesson's annotations and triggers on d. ctx bounds
// the background work the script starts, such as the convergence tween.
func Install(ctx context.Context, d *timeline.Driver, scene Scene, cfg Config, logger *slog.Logger) (*Script, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Script{cfg: cfg, scene: scene, driver: d, logger: logger, ctx: ctx}

	for _, id := range AnnotationIDs {
		build := s.builder(id)
		err := d.Add(timeline.Annotation{
			ID:      id,
			Windows: cfg.Windows[id],
			OnCreate: func() error {
				shapes, err := build()
				if err != nil {
					return err
				}
				return scene.Show(id, shapes)
			},
			OnDestroy: func() error { return scene.Hide(id) },
		})
		if err != nil {
			return nil, err
		}
	}

	triggers := []timeline.Trigger{
		{
			ID:    EccentricityControl,
			When:  timeline.After(cfg.EccentricityControlAt),
			Fire:  s.showControl,
			Latch: true,
		},
		{
			ID:   EccentricityConverge,
			When: timeline.AtSecond(cfg.ConvergeAtSecond),
			Fire: s.startConverge,
		},
		{
			ID:    DeferredBodies,
			When:  timeline.After(cfg.DeferredBodiesAt),
			Fire:  scene.AddDeferredBodies,
			Latch: true,
		},
	}
	for _, tr := range triggers {
		if err := d.AddTrigger(tr); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// builder returns the geometry constructor for annotation id.
func (s *Script) builder(id string) func() ([]Shape, error) {
	switch id {
	case Axes:
		return func() ([]Shape, error) {
			path, el := s.scene.Focus()
			return AxesShapes(path, el)
		}
	case AxisLabels:
		return func() ([]Shape, error) { return AxisLabelShapes(), nil }
	case FocusPoint:
		return func() ([]Shape, error) {
			_, el := s.scene.Focus()
			return FocusPointShapes(el), nil
		}
	case ApsisLabels:
		return func() ([]Shape, error) { return ApsisLabelShapes(), nil }
	case AreaSectors:
		return func() ([]Shape, error) {
			path, _ := s.scene.Focus()
			return SectorShapes(path)
		}
	case CircularVelocityEq:
		return func() ([]Shape, error) { return CircularVelocityShapes(), nil }
	case VisVivaEq:
		return func() ([]Shape, error) { return VisVivaShapes(), nil }
	}
	return func() ([]Shape, error) { return nil, fmt.Errorf("unknown annotation %q", id) }
}

func (s *Script) control(e float64) Control {
	return Control{
		ID:    "eccentricity",
		Label: EccentricityLabel(e),
		Min:   s.cfg.SliderMin,
		Max:   s.cfg.SliderMax,
		Value: e,
	}
}

func (s *Script) showControl() error {
	_, el := s.scene.Focus()
	return s.scene.SetControl(s.control(el.Eccentricity))
}

// startConverge eases the focus orbit to the target eccentricity. It runs
// from a trigger hook, so the tween itself runs on a scene goroutine; a
// new convergence cancels one still in flight.
func (s *Script) startConverge() error {
	_, el := s.scene.Focus()
	tw := timeline.Tween{
		From:     el.Eccentricity,
		To:       s.cfg.ConvergeTarget,
		Steps:    s.cfg.ConvergeSteps,
		Interval: s.cfg.ConvergeInterval,
	}

	ctx, cancel := context.WithCancel(s.ctx)
	s.mu.Lock()
	if s.cancelTween != nil {
		s.cancelTween()
	}
	s.cancelTween = cancel
	s.mu.Unlock()

	started := s.scene.Go(func() {
		defer cancel()
		if err := tw.Run(ctx, s.SetEccentricity); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Warn("eccentricity convergence failed", "component", "lesson", "error", err)
		}
	})
	if !started {
		cancel()
	}
	return nil
}

// SetEccentricity moves the slider to e: the focus orbit is recomputed,
// geometry annotations that depend on it are rebuilt and the control is
// updated. Must not be called from a timeline hook.
func (s *Script) SetEccentricity(e float64) error {
	if !s.driver.Fired(EccentricityControl) {
		return ErrControlLocked
	}
	if math.IsNaN(e) || e < s.cfg.SliderMin || e > s.cfg.SliderMax {
		return fmt.Errorf("%w: %g not in [%g, %g]", ErrEccentricityRange, e, s.cfg.SliderMin, s.cfg.SliderMax)
	}
	if err := s.scene.ReplaceFocusOrbit(s.cfg.SliderElements(e)); err != nil {
		return err
	}
	if err := s.scene.SetControl(s.control(e)); err != nil {
		return err
	}
	return s.RefreshGeometry()
}

// RefreshGeometry rebuilds the present annotations drawn from the focus
// orbit.
func (s *Script) RefreshGeometry() error {
	var errs []error
	for _, id := range geometryIDs {
		if err := s.driver.Refresh(id); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Stop cancels a convergence in flight.
func (s *Script) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancelTween != nil {
		s.cancelTween()
		s.cancelTween = nil
	}
}
