// Package animation advances per-body rotation and orbit ramps once per
// frame under a user speed multiplier.
//
// A ramp maps a frame counter linearly onto [0, Span) and wraps at Frames.
// Rotation ramps span 2π radians over one planetary day; orbit ramps span
// the path length over one orbital period. Frame counts are derived from
// the base rate of BaseDaysPerSecond simulated days per wall second at
// speed 1.
package animation

import "math"

// Ramp is a looping linear interpolation from 0 to Span over Frames frames.
// The zero value is not usable; construct with NewRamp.
type Ramp struct {
	Span   float64
	Frames float64
	frame  float64
}

// NewRamp creates a ramp at frame 0.
func NewRamp(span, frames float64) *Ramp {
	return &Ramp{Span: span, Frames: frames}
}

// Advance moves the ramp speed frames forward, wrapping at Frames, and
// returns the new value. Speed 0 leaves the ramp where it is.
func (r *Ramp) Advance(speed float64) float64 {
	if speed != 0 {
		r.frame = wrap(r.frame+speed, r.Frames)
	}
	return r.Value()
}

// Value returns Span·frame/Frames, always in [0, Span).
func (r *Ramp) Value() float64 {
	v := r.Span * r.frame / r.Frames
	if v >= r.Span {
		return 0
	}
	return v
}

// Phase returns the fraction of the loop completed, in [0, 1).
func (r *Ramp) Phase() float64 {
	return r.frame / r.Frames
}

// SetPhase jumps to the given fraction of the loop.
func (r *Ramp) SetPhase(phase float64) {
	r.frame = wrap(phase*r.Frames, r.Frames)
}

// Seek jumps to the frame whose value is v.
func (r *Ramp) Seek(v float64) {
	r.SetPhase(v / r.Span)
}

func wrap(x, n float64) float64 {
	x = math.Mod(x, n)
	if x < 0 {
		x += n
	}
	return x
}
