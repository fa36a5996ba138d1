package orbit

import (
	"fmt"
	"math"
)

// MeanAnomaly returns M = 2π/(period·1440)·t for t minutes since perihelion,
// reduced into [0, 2π).
func MeanAnomaly(minutesSincePerihelion, periodDays float64) float64 {
	m := 2 * math.Pi / (periodDays * MinutesPerDay) * minutesSincePerihelion
	m = math.Mod(m, 2*math.Pi)
	if m < 0 {
		m += 2 * math.Pi
	}
	return m
}

// SolveKepler returns the eccentric anomaly E for a body t minutes past
// perihelion. Mean anomalies past π are reflected to 2π − M and the result
// negated, so E lies in (−π, π].
//
// The eccentricity is not validated here; callers validate Elements.
func SolveKepler(e, minutesSincePerihelion, periodDays float64) (float64, error) {
	E, _, err := solveKepler(e, MeanAnomaly(minutesSincePerihelion, periodDays))
	return E, err
}

// solveKepler runs Newton–Raphson on E − e·sin E = M and also reports the
// iteration count.
func solveKepler(e, m float64) (float64, int, error) {
	sign := 1.0
	if m > math.Pi {
		m = 2*math.Pi - m
		sign = -1
	}

	E := m + e/2
	for i := 1; i <= MaxIterations; i++ {
		delta := (E - e*math.Sin(E) - m) / (1 - e*math.Cos(E))
		E -= delta
		if math.Abs(delta) < Tolerance {
			return sign * E, i, nil
		}
	}
	return 0, MaxIterations, fmt.Errorf("%w: e=%g M=%g after %d iterations", ErrNoConvergence, e, m, MaxIterations)
}

// TrueAnomaly converts an eccentric anomaly into the true anomaly
// θ = 2·atan(sqrt((1+e)/(1−e))·tan(E/2)).
func TrueAnomaly(E, e float64) float64 {
	return 2 * math.Atan(math.Sqrt((1+e)/(1-e))*math.Tan(E/2))
}

// Radius is the focal distance r = a(1 − e·cos E).
func Radius(E, e, a float64) float64 {
	return a * (1 - e*math.Cos(E))
}
