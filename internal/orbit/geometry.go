package orbit

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
)

// MinorAxis returns the endpoints (±b, 0, −c) of the minor axis. The ellipse
// centre sits at (0, 0, −c) because the path puts the focus at the origin.
func (el Elements) MinorAxis() [2]r3.Vec {
	half := r3.Vec{X: el.SemiMinorAxis()}
	centre := el.Centre()
	return [2]r3.Vec{r3.Add(centre, half), r3.Sub(centre, half)}
}

// Centre is the centre of the ellipse.
func (el Elements) Centre() r3.Vec {
	return r3.Vec{Z: -el.FocalDistance()}
}

// EmptyFocus is the focus not occupied by the attracting body.
func (el Elements) EmptyFocus() r3.Vec {
	return r3.Vec{Z: -2 * el.FocalDistance()}
}

// Sector is a closed polygon swept by the radius vector: focus, the arc
// samples in time order, focus again.
type Sector []r3.Vec

// Sectors returns two sectors spanning the same time: one centred on
// perihelion and one centred on aphelion. Their areas are equal (Kepler's
// second law) up to discretisation error.
func (p Path) Sectors() (perihelion, aphelion Sector) {
	n := len(p)
	if n == 0 {
		return nil, nil
	}
	w := n / 24
	var origin r3.Vec

	perihelion = append(perihelion, origin)
	perihelion = append(perihelion, p[n-w:]...)
	perihelion = append(perihelion, p[:w+1]...)
	perihelion = append(perihelion, origin)

	lo, hi := 11*n/24, 13*n/24
	aphelion = append(aphelion, origin)
	aphelion = append(aphelion, p[lo:hi+1]...)
	aphelion = append(aphelion, origin)

	return perihelion, aphelion
}

// Area returns the area of the sector projected onto the orbital (x, z) plane.
func (s Sector) Area() float64 {
	if len(s) < 3 {
		return 0
	}
	var sum float64
	for i := range s {
		a := r2.Vec{X: s[i].X, Y: s[i].Z}
		j := (i + 1) % len(s)
		b := r2.Vec{X: s[j].X, Y: s[j].Z}
		sum += r2.Cross(a, b)
	}
	return math.Abs(sum) / 2
}

// Direction returns the unit direction of travel at floor(index).
func (p Path) Direction(index float64) r3.Vec {
	n := len(p)
	if n == 0 {
		return r3.Vec{}
	}
	i := int(math.Floor(index)) % n
	if i < 0 {
		i += n
	}
	if i == 0 {
		return r3.Vec{X: -1}
	}
	d := r3.Sub(p[i], p[i-1])
	if r3.Norm(d) == 0 {
		return r3.Vec{X: -1}
	}
	return r3.Unit(d)
}

// ClosestIndex returns the index of the sample nearest to pt, searching only
// samples in the same (x, z) quadrant as pt. If that quadrant holds no
// samples the whole path is searched. Ties resolve to the later index.
func (p Path) ClosestIndex(pt r3.Vec) int {
	if len(p) == 0 {
		return 0
	}
	q := quadrant(pt)
	best, bestDist := -1, math.Inf(1)
	for i, s := range p {
		if quadrant(s) != q {
			continue
		}
		if d := r3.Norm(r3.Sub(pt, s)); d <= bestDist {
			best, bestDist = i, d
		}
	}
	if best >= 0 {
		return best
	}
	for i, s := range p {
		if d := r3.Norm(r3.Sub(pt, s)); d <= bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

// quadrant numbers the (x, z) quadrants in the order the orbit sweeps them.
func quadrant(v r3.Vec) int {
	switch {
	case v.X <= 0 && v.Z >= 0:
		return 0
	case v.X <= 0:
		return 1
	case v.Z <= 0:
		return 2
	default:
		return 3
	}
}
