// Package orbit solves Kepler's equation and discretises heliocentric
// elliptical orbits into sampled paths.
//
// Paths lie in the y = 0 plane with the attracting body at the origin and
// perihelion on the +Z axis. Sample i is the position 6·i minutes after
// perihelion passage, so a path of one orbital period holds periodDays·240
// samples.
package orbit

import (
	"errors"
	"fmt"
	"math"
)

// Sampling constants.
const (
	MinutesPerDay    = 24 * 60
	StepMinutes      = 6
	SamplesPerDay    = MinutesPerDay / StepMinutes
	MaxIterations    = 100
	Tolerance        = 1e-7
	sampleRoundSlack = 1e-9

	// MaxSamples bounds a single path: a little over Neptune's
	// 60,190-day period.
	MaxSamples = 16 << 20
)

var (
	// ErrInvalidElements is returned when orbital elements are out of range.
	ErrInvalidElements = errors.New("invalid orbital elements")

	// ErrNoConvergence is returned when Newton iteration exceeds MaxIterations.
	ErrNoConvergence = errors.New("kepler solver did not converge")

	// ErrTooManySamples is returned when a period would need more than
	// MaxSamples samples. It wraps ErrInvalidElements.
	ErrTooManySamples = fmt.Errorf("%w: too many samples", ErrInvalidElements)
)

// Elements are the three parameters that fully determine a sampled path.
type Elements struct {
	Eccentricity  float64 `json:"eccentricity" mapstructure:"eccentricity"`
	PeriodDays    float64 `json:"period_days" mapstructure:"periodDays"`
	SemiMajorAxis float64 `json:"semi_major_axis" mapstructure:"semiMajorAxis"`
}

// Validate checks 0 ≤ e < 1, period > 0 and a > 0, and that the period
// fits in MaxSamples samples.
func (el Elements) Validate() error {
	switch {
	case math.IsNaN(el.Eccentricity) || el.Eccentricity < 0 || el.Eccentricity >= 1:
		return fmt.Errorf("%w: eccentricity %g not in [0, 1)", ErrInvalidElements, el.Eccentricity)
	case math.IsNaN(el.PeriodDays) || math.IsInf(el.PeriodDays, 0) || el.PeriodDays <= 0:
		return fmt.Errorf("%w: period %g days must be positive", ErrInvalidElements, el.PeriodDays)
	case el.PeriodDays*SamplesPerDay > MaxSamples:
		return fmt.Errorf("%w: period %g days exceeds %d samples", ErrTooManySamples, el.PeriodDays, MaxSamples)
	case math.IsNaN(el.SemiMajorAxis) || math.IsInf(el.SemiMajorAxis, 0) || el.SemiMajorAxis <= 0:
		return fmt.Errorf("%w: semi-major axis %g must be positive", ErrInvalidElements, el.SemiMajorAxis)
	}
	return nil
}

// Samples returns the path length for the period. A fractional sample count
// rounds up, matching a loop of the form i < period·240.
func (el Elements) Samples() int {
	return Samples(el.PeriodDays)
}

// Samples returns the number of 6-minute samples in periodDays.
func Samples(periodDays float64) int {
	n := periodDays * SamplesPerDay
	if r := math.Round(n); math.Abs(n-r) < sampleRoundSlack {
		return int(r)
	}
	return int(math.Ceil(n))
}

// FocalDistance is c = a·e, the distance from the ellipse centre to either focus.
func (el Elements) FocalDistance() float64 {
	return el.SemiMajorAxis * el.Eccentricity
}

// SemiMinorAxis is b = a·sqrt(1 − e²).
func (el Elements) SemiMinorAxis() float64 {
	return el.SemiMajorAxis * math.Sqrt(1-el.Eccentricity*el.Eccentricity)
}

// Periapsis is the closest distance to the focus, a(1 − e).
func (el Elements) Periapsis() float64 {
	return el.SemiMajorAxis * (1 - el.Eccentricity)
}

// Apoapsis is the farthest distance from the focus, a(1 + e).
func (el Elements) Apoapsis() float64 {
	return el.SemiMajorAxis * (1 + el.Eccentricity)
}

func (el Elements) String() string {
	return fmt.Sprintf("e=%g P=%gd a=%g", el.Eccentricity, el.PeriodDays, el.SemiMajorAxis)
}
