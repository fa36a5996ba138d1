package orbit

import (
	"context"
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/spatial/r3"
)

// cancelCheckEvery bounds how many samples are computed between context checks.
const cancelCheckEvery = 1 << 14

// Path is a sampled orbit. Index 0 is perihelion; consecutive samples are
// StepMinutes apart. A Path is never mutated after ComputePath returns it.
type Path []r3.Vec

// Stats describes a path computation.
type Stats struct {
	Samples       int
	MaxIterations int
	Duration      time.Duration
}

// ComputePath validates el and samples one full period of the orbit.
func ComputePath(ctx context.Context, el Elements) (Path, Stats, error) {
	if err := el.Validate(); err != nil {
		return nil, Stats{}, err
	}

	start := time.Now()
	n := el.Samples()
	e, a := el.Eccentricity, el.SemiMajorAxis
	path := make(Path, n)
	stats := Stats{Samples: n}

	for i := 0; i < n; i++ {
		if i%cancelCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, stats, err
			}
		}

		m := MeanAnomaly(float64(i*StepMinutes), el.PeriodDays)
		E, iters, err := solveKepler(e, m)
		if err != nil {
			return nil, stats, fmt.Errorf("sample %d of %s: %w", i, el, err)
		}
		if iters > stats.MaxIterations {
			stats.MaxIterations = iters
		}

		r := Radius(E, e, a)
		theta := TrueAnomaly(E, e)
		path[i] = r3.Vec{X: -r * math.Sin(theta), Y: 0, Z: r * math.Cos(theta)}
	}

	stats.Duration = time.Since(start)
	return path, stats, nil
}

// At returns the sample at floor(index), wrapped into range. It never reads
// out of bounds, so callers holding an index from a previous path are safe.
func (p Path) At(index float64) r3.Vec {
	n := len(p)
	if n == 0 {
		return r3.Vec{}
	}
	i := int(math.Floor(index)) % n
	if i < 0 {
		i += n
	}
	return p[i]
}

// Perihelion is the first sample.
func (p Path) Perihelion() r3.Vec {
	return p.At(0)
}

// Aphelion is the sample half a period after perihelion.
func (p Path) Aphelion() r3.Vec {
	return p.At(float64(len(p) / 2))
}

// MajorAxis returns the perihelion and aphelion endpoints.
func (p Path) MajorAxis() [2]r3.Vec {
	return [2]r3.Vec{p.Perihelion(), p.Aphelion()}
}

// Distance returns |p[floor(index)]|, the distance from the focus.
func (p Path) Distance(index float64) float64 {
	return r3.Norm(p.At(index))
}

// Radii returns the focal distance of every stride-th sample.
func (p Path) Radii(stride int) []float64 {
	if stride < 1 {
		stride = 1
	}
	out := make([]float64, 0, len(p)/stride+1)
	for i := 0; i < len(p); i += stride {
		out = append(out, r3.Norm(p[i]))
	}
	return out
}

// Downsample returns every stride-th sample. The result shares no memory with p.
func (p Path) Downsample(stride int) Path {
	if stride < 1 {
		stride = 1
	}
	out := make(Path, 0, len(p)/stride+1)
	for i := 0; i < len(p); i += stride {
		out = append(out, p[i])
	}
	return out
}
