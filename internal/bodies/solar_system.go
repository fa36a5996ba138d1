// Package bodies holds the planet definitions animated by the lesson.
package bodies

import (
	"time"

	"github.com/varun-un/AetherConnect/internal/orbit"
)

// Names of the bodies in the shipped dataset.
const (
	Earth   = "earth"
	Mercury = "mercury"
	Venus   = "venus"
	Mars    = "mars"
	Jupiter = "jupiter"
	Saturn  = "saturn"
	Uranus  = "uranus"
	Neptune = "neptune"
)

// RealEarthEccentricity is the eccentricity Earth converges to at the end of
// the lesson.
const RealEarthEccentricity = 0.0167

// SolarSystem returns the lesson's bodies. Earth starts with an exaggerated
// eccentricity so the ellipse is visible; semi-major axes are in scene units
// (10 units = 1 AU).
func SolarSystem() *Dataset {
	return &Dataset{
		Source:   "builtin",
		LoadedAt: time.Now(),
		Bodies: []Body{
			{Name: Earth, TiltDeg: 22.5, DayLength: 1, Radius: 1,
				Elements: elements(0.41671, 365.25, 10)},
			{Name: Mercury, TiltDeg: 2, DayLength: 58.64583, Radius: 0.38, Deferred: true,
				Elements: elements(0.2056, 87.97, 3.9)},
			{Name: Venus, TiltDeg: 177, DayLength: 243.69, Radius: 0.95, Deferred: true,
				Elements: elements(0.0068, 224.7, 7.2)},
			{Name: Mars, TiltDeg: 25.2, DayLength: 1.0288, Radius: 0.53, Deferred: true,
				Elements: elements(0.0934, 686.98, 15.24)},
			{Name: Jupiter, TiltDeg: 3.13, DayLength: 0.4135, Radius: 2.5, Deferred: true,
				Elements: elements(0.0484, 4332.59, 52.03)},
			{Name: Saturn, TiltDeg: 26.73, DayLength: 0.444, Radius: 2.1, Deferred: true,
				Elements: elements(0.0542, 10759.22, 95.37)},
			{Name: Uranus, TiltDeg: 97.77, DayLength: 0.7183, Radius: 1.6, Deferred: true,
				Elements: elements(0.0472, 30685.16, 191.9)},
			{Name: Neptune, TiltDeg: 28.32, DayLength: 0.67125, Radius: 1.55, Deferred: true,
				Elements: elements(0.0086, 60190.08, 300.69)},
		},
	}
}

func elements(e, periodDays, a float64) orbit.Elements {
	return orbit.Elements{Eccentricity: e, PeriodDays: periodDays, SemiMajorAxis: a}
}
