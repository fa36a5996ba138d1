package transform

import (
	"math"
	"testing"
	"time"

	"gonum.org/v1/gonum/spatial/r3"
)

// TestJulianDay verifies Julian day conversion against known values.
func TestJulianDay(t *testing.T) {
	tests := []struct {
		name     string
		epoch    time.Time
		simDays  float64
		expected float64
	}{
		{
			name:     "J2000.0 epoch",
			epoch:    time.Date(2000, 1, 1, 12, 0, 0, 0, time.UTC),
			expected: 2451545.0,
		},
		{
			name:     "Unix epoch",
			epoch:    time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC),
			expected: 2440587.5,
		},
		{
			// Vallado Example 3-15: April 6, 2004, 07:51:28.386 UTC
			name:     "Vallado example date",
			epoch:    time.Date(2004, 4, 6, 7, 51, 28, 386009000, time.UTC),
			expected: 2453101.827411875,
		},
		{
			name:     "one Julian year after J2000.0",
			epoch:    time.Date(2000, 1, 1, 12, 0, 0, 0, time.UTC),
			simDays:  365.25,
			expected: 2451910.25,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewCalendar(tt.epoch).JulianDay(tt.simDays)
			diff := math.Abs(got - tt.expected)
			if diff > 1e-6 {
				t.Errorf("JulianDay = %.10f, want %.10f (diff=%.2e)", got, tt.expected, diff)
			}
		})
	}
}

func TestCalendarDate(t *testing.T) {
	c := NewCalendar(time.Time{})
	if !c.Epoch().Equal(DefaultEpoch) {
		t.Errorf("epoch = %v, want %v", c.Epoch(), DefaultEpoch)
	}

	got := c.Date(10.5)
	want := DefaultEpoch.Add(252 * time.Hour)
	if d := got.Sub(want); d < -time.Millisecond || d > time.Millisecond {
		t.Errorf("Date(10.5) = %v, want %v", got, want)
	}

	if label := c.Label(0); label != "Jan 4, 2025" {
		t.Errorf("Label(0) = %q", label)
	}
	if label := c.Label(365); label != "Jan 4, 2026" {
		t.Errorf("Label(365) = %q", label)
	}
}

// TestCalendarFarFuture verifies dates beyond the time.Duration range.
func TestCalendarFarFuture(t *testing.T) {
	c := NewCalendar(time.Time{})
	// 500 years of simulated time.
	got := c.Date(500 * 365.25)
	if got.Year() != 2525 {
		t.Errorf("year = %d, want 2525", got.Year())
	}
}

// TestSiderealAngle validates mean sidereal time against Vallado Example 3-5.
func TestSiderealAngle(t *testing.T) {
	epoch := time.Date(2004, 4, 6, 7, 51, 28, 386009000, time.UTC)
	got := NewCalendar(epoch).SiderealAngle(0).Deg()

	// Vallado uses UT1; the UTC input differs by 0.44 s (about 0.002 deg).
	const want = 312.8098943
	if math.Abs(got-want) > 0.01 {
		t.Errorf("sidereal angle = %.7f deg, want %.7f", got, want)
	}

	// A mean solar day later the sidereal angle has advanced by about 0.9856 deg.
	next := NewCalendar(epoch).SiderealAngle(1).Deg()
	advance := math.Mod(next-got+360, 360)
	if math.Abs(advance-0.9856) > 0.001 {
		t.Errorf("daily advance = %.5f deg, want 0.9856", advance)
	}
}

func TestSceneConversions(t *testing.T) {
	if got := SceneToKm(10); got != 149_600_000 {
		t.Errorf("SceneToKm(10) = %g", got)
	}
	if got := KmToScene(149_600_000); got != 10 {
		t.Errorf("KmToScene = %g", got)
	}
	if got := SceneToAU(10); math.Abs(got-1) > 0.001 {
		t.Errorf("SceneToAU(10) = %g, want about 1", got)
	}

	p := r3.Vec{X: 3, Z: 4}
	if got := DistanceKm(p); got != 5*14_960_000 {
		t.Errorf("DistanceKm = %g", got)
	}
}

func TestValidScenePoint(t *testing.T) {
	tests := []struct {
		name string
		p    r3.Vec
		want bool
	}{
		{"on plane", r3.Vec{X: -5, Z: 8}, true},
		{"origin", r3.Vec{}, true},
		{"NaN", r3.Vec{X: math.NaN()}, false},
		{"Inf", r3.Vec{Z: math.Inf(1)}, false},
		{"off plane", r3.Vec{X: 1, Y: 0.1}, false},
		{"within plane tolerance", r3.Vec{X: 1, Y: 1e-9}, true},
		{"too far", r3.Vec{X: 400}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidScenePoint(tt.p, 350); got != tt.want {
				t.Errorf("ValidScenePoint(%v) = %v, want %v", tt.p, got, tt.want)
			}
		})
	}
}
