// Package lesson is the planetary-orbit lesson script: which scene
// annotations appear at which narration times, the one-shot actions later
// in the narration, and the geometry each annotation draws.
package lesson

import (
	"fmt"
	"time"

	"github.com/varun-un/AetherConnect/internal/bodies"
	"github.com/varun-un/AetherConnect/internal/orbit"
	"github.com/varun-un/AetherConnect/internal/timeline"
)

// Annotation ids, in registration order. Ids double as config keys, so
// they stay lowercase.
const (
	Axes               = "axes"
	AxisLabels         = "axis_labels"
	FocusPoint         = "focus_point"
	ApsisLabels        = "apsis_labels"
	AreaSectors        = "area_sectors"
	CircularVelocityEq = "circular_velocity_eq"
	VisVivaEq          = "vis_viva_eq"
)

// Trigger ids.
const (
	EccentricityControl  = "eccentricity_control"
	EccentricityConverge = "eccentricity_converge"
	DeferredBodies       = "deferred_bodies"
)

// AnnotationIDs lists every annotation the script registers.
var AnnotationIDs = []string{
	Axes, AxisLabels, FocusPoint, ApsisLabels, AreaSectors, CircularVelocityEq, VisVivaEq,
}

// geometryIDs are the annotations drawn from the focus body's orbit.
var geometryIDs = []string{Axes, FocusPoint, AreaSectors}

// Config holds the lesson timing. Times are narration seconds.
type Config struct {
	Windows map[string][]timeline.Window `mapstructure:"windows"`

	EccentricityControlAt float64 `mapstructure:"eccentricityControlAt"` // control shown for t > this
	SliderMin             float64 `mapstructure:"sliderMin"`
	SliderMax             float64 `mapstructure:"sliderMax"`
	SliderPeriodDays      float64 `mapstructure:"sliderPeriodDays"`    // period of orbits drawn from the slider
	SliderSemiMajorAxis   float64 `mapstructure:"sliderSemiMajorAxis"` // scene units

	ConvergeAtSecond int           `mapstructure:"convergeAtSecond"` // fires while floor(t) equals this
	ConvergeTarget   float64       `mapstructure:"convergeTarget"`
	ConvergeSteps    int           `mapstructure:"convergeSteps"`
	ConvergeInterval time.Duration `mapstructure:"convergeInterval"`

	DeferredBodiesAt float64 `mapstructure:"deferredBodiesAt"` // remaining planets added for t > this
}

// DefaultConfig returns the timing of the shipped narration.
func DefaultConfig() Config {
	return Config{
		Windows: map[string][]timeline.Window{
			Axes:               {{Start: 43, End: 300}},
			AxisLabels:         {{Start: 47, End: 91}},
			FocusPoint:         {{Start: 55, End: 71}},
			ApsisLabels:        {{Start: 82, End: 226}},
			AreaSectors:        {{Start: 90, End: 226}},
			CircularVelocityEq: {{Start: 169, End: 195}},
			VisVivaEq:          {{Start: 209, End: 228}},
		},
		EccentricityControlAt: 245,
		SliderMin:             0,
		SliderMax:             0.75,
		SliderPeriodDays:      365,
		SliderSemiMajorAxis:   10,
		ConvergeAtSecond:      299,
		ConvergeTarget:        bodies.RealEarthEccentricity,
		ConvergeSteps:         timeline.DefaultTweenSteps,
		ConvergeInterval:      timeline.DefaultTweenInterval,
		DeferredBodiesAt:      305,
	}
}

// Validate checks that every annotation has windows and the slider range
// admits valid orbits.
func (c Config) Validate() error {
	for _, id := range AnnotationIDs {
		if len(c.Windows[id]) == 0 {
			return fmt.Errorf("lesson: annotation %q has no windows", id)
		}
	}
	if c.SliderMin < 0 || c.SliderMax >= 1 || c.SliderMin > c.SliderMax {
		return fmt.Errorf("lesson: slider range [%g, %g] outside [0, 1)", c.SliderMin, c.SliderMax)
	}
	if c.ConvergeTarget < c.SliderMin || c.ConvergeTarget > c.SliderMax {
		return fmt.Errorf("lesson: converge target %g outside slider range", c.ConvergeTarget)
	}
	return c.SliderElements(c.SliderMin).Validate()
}

// SliderElements returns the orbit drawn for slider eccentricity e.
func (c Config) SliderElements(e float64) orbit.Elements {
	return orbit.Elements{
		Eccentricity:  e,
		PeriodDays:    c.SliderPeriodDays,
		SemiMajorAxis: c.SliderSemiMajorAxis,
	}
}
