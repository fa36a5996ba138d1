package animation

import (
	"fmt"
	"math"

	"github.com/varun-un/AetherConnect/internal/bodies"
	"github.com/varun-un/AetherConnect/internal/orbit"
)

// Body is the animation state of one planet.
type Body struct {
	Def  bodies.Body
	path orbit.Path

	rotation *Ramp
	orbit    *Ramp

	RotationAngle         float64
	PreviousRotationAngle float64
	OrbitIndex            float64
}

// NewBody creates the animation state for def travelling along path.
func NewBody(def bodies.Body, path orbit.Path, cfg Config) (*Body, error) {
	if len(path) == 0 {
		return nil, fmt.Errorf("body %q: empty orbit path", def.Name)
	}
	if def.DayLength <= 0 {
		return nil, fmt.Errorf("body %q: day length %g must be positive", def.Name, def.DayLength)
	}
	return &Body{
		Def:      def,
		path:     path,
		rotation: NewRamp(2*math.Pi, cfg.framesFor(def.DayLength)),
		orbit:    NewRamp(float64(len(path)), cfg.framesFor(def.Elements.PeriodDays)),
	}, nil
}

// Path returns the orbit path the body currently follows.
func (b *Body) Path() orbit.Path {
	return b.path
}

// Position returns the point on the path at the current orbit index.
func (b *Body) Position() [3]float64 {
	p := b.path.At(b.OrbitIndex)
	return [3]float64{p.X, p.Y, p.Z}
}

// PathIndex returns floor(OrbitIndex).
func (b *Body) PathIndex() int {
	return int(math.Floor(b.OrbitIndex))
}

// RotationDelta is the rotation applied since the previous frame, normalised
// into [0, 2π) so the wrap from 2π back to 0 stays a small forward step.
func (b *Body) RotationDelta() float64 {
	d := b.RotationAngle - b.PreviousRotationAngle
	if d < 0 {
		d += 2 * math.Pi
	}
	return d
}

func (b *Body) advance(orbitSpeed, rotationSpeed float64) {
	b.PreviousRotationAngle = b.RotationAngle
	b.RotationAngle = b.rotation.Advance(rotationSpeed)
	b.OrbitIndex = b.orbit.Advance(orbitSpeed)
}

// replacePath swaps in a new path and period, keeping the orbital phase so
// the index stays in range and the body does not jump around the orbit.
func (b *Body) replacePath(el orbit.Elements, path orbit.Path, cfg Config) {
	phase := b.orbit.Phase()
	b.path = path
	b.Def.Elements = el
	b.orbit = NewRamp(float64(len(path)), cfg.framesFor(el.PeriodDays))
	b.orbit.SetPhase(phase)
	b.OrbitIndex = b.orbit.Value()
}

func (b *Body) seekOrbit(index int) {
	n := len(b.path)
	index = ((index % n) + n) % n
	b.orbit.Seek(float64(index))
	b.OrbitIndex = float64(index)
}
