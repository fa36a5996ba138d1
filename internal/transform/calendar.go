package transform

import (
	"time"

	"github.com/soniakeys/meeus/v3/julian"
	"github.com/soniakeys/meeus/v3/sidereal"
	"github.com/soniakeys/unit"
)

// DefaultEpoch is the calendar instant of simulated day zero: Earth's
// perihelion passage of January 2025, matching path index 0.
var DefaultEpoch = time.Date(2025, time.January, 4, 13, 28, 0, 0, time.UTC)

// Calendar maps simulated elapsed days onto calendar dates.
//
// Arithmetic is done in Julian days so long sessions at high speed do not
// overflow time.Duration.
type Calendar struct {
	epochJD float64
}

// NewCalendar creates a calendar whose day zero is epoch.
// A zero epoch selects DefaultEpoch.
func NewCalendar(epoch time.Time) Calendar {
	if epoch.IsZero() {
		epoch = DefaultEpoch
	}
	return Calendar{epochJD: julian.TimeToJD(epoch.UTC())}
}

// Epoch returns the instant of simulated day zero.
func (c Calendar) Epoch() time.Time {
	return julian.JDToTime(c.epochJD)
}

// JulianDay returns the Julian day simDays after the epoch.
func (c Calendar) JulianDay(simDays float64) float64 {
	return c.epochJD + simDays
}

// Date returns the UTC calendar instant simDays after the epoch.
func (c Calendar) Date(simDays float64) time.Time {
	return julian.JDToTime(c.JulianDay(simDays)).UTC()
}

// Label formats the simulated date for the lesson HUD.
func (c Calendar) Label(simDays float64) string {
	return c.Date(simDays).Format("Jan 2, 2006")
}

// SiderealAngle returns the mean sidereal angle at Greenwich simDays after
// the epoch, normalised to [0, 2π).
func (c Calendar) SiderealAngle(simDays float64) unit.Angle {
	return sidereal.Mean(c.JulianDay(simDays)).Angle().Mod1()
}
