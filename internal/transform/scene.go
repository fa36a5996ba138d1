// Package transform converts between scene coordinates and physical units,
// and maps simulated elapsed days onto a calendar.
//
// One scene unit is 14,960,000 km, a tenth of an astronomical unit rounded
// so Earth's orbit spans ten units. Scene space is y-up with orbits in the
// x-z plane and the Sun at the origin.
package transform

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/varun-un/AetherConnect/internal/orbit"
)

const (
	// KmPerAU is the IAU 2012 astronomical unit in kilometres.
	KmPerAU = 149_597_870.7

	// PlaneTolerance is how far off the orbital plane a picked point may
	// lie, in scene units.
	PlaneTolerance = 1e-6
)

// SceneToKm converts a scene distance to kilometres.
func SceneToKm(d float64) float64 {
	return d * orbit.KmPerSceneUnit
}

// KmToScene converts kilometres to a scene distance.
func KmToScene(km float64) float64 {
	return km / orbit.KmPerSceneUnit
}

// SceneToAU converts a scene distance to astronomical units.
func SceneToAU(d float64) float64 {
	return SceneToKm(d) / KmPerAU
}

// DistanceKm returns a scene position's heliocentric distance in kilometres.
func DistanceKm(p r3.Vec) float64 {
	return SceneToKm(r3.Norm(p))
}

// ValidScenePoint performs sanity checks on a scene position.
// Returns false for NaN and Inf coordinates, for points more than
// PlaneTolerance off the orbital plane and for points farther than
// maxDistance scene units from the Sun.
func ValidScenePoint(p r3.Vec, maxDistance float64) bool {
	// Check for NaN/Inf.
	if math.IsNaN(p.X) || math.IsNaN(p.Y) || math.IsNaN(p.Z) {
		return false
	}
	if math.IsInf(p.X, 0) || math.IsInf(p.Y, 0) || math.IsInf(p.Z, 0) {
		return false
	}

	// Orbits lie in the x-z plane.
	if math.Abs(p.Y) > PlaneTolerance {
		return false
	}

	return r3.Norm(p) <= maxDistance
}
