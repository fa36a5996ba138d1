package orbit

import "math"

// GMSun is the heliocentric gravitational parameter in km³/s².
const GMSun = 1.32712440018e11

// KmPerSceneUnit converts scene units to kilometres: 1 AU (149,600,000 km)
// is drawn as 10 units.
const KmPerSceneUnit = 14_960_000.0

// VisViva returns the orbital speed in km/s at distance rKm from the Sun on
// an orbit of semi-major axis aKm: v = sqrt((2/r − 1/a)·GM). The bracket is
// not guarded, so r > 2a yields NaN.
func VisViva(aKm, rKm float64) float64 {
	return math.Sqrt((2/rKm - 1/aKm) * GMSun)
}

// CircularVelocity is the vis-viva speed on a circular orbit of radius rKm.
func CircularVelocity(rKm float64) float64 {
	return math.Sqrt(GMSun / rKm)
}
