package bodies

import (
	"time"

	"github.com/varun-un/AetherConnect/internal/orbit"
)

// Body describes one animated planet: how it orbits and how it spins.
type Body struct {
	Name      string         `json:"name" mapstructure:"name"`
	Elements  orbit.Elements `json:"elements" mapstructure:"elements"`
	TiltDeg   float64        `json:"tilt_deg" mapstructure:"tiltDeg"`
	DayLength float64        `json:"day_length" mapstructure:"dayLength"` // rotation period in Earth days
	Radius    float64        `json:"radius" mapstructure:"radius"`        // display radius in scene units
	Deferred  bool           `json:"deferred" mapstructure:"deferred"`    // added to the scene late in the lesson
}

// Dataset is a complete set of body definitions from one source.
type Dataset struct {
	Source   string
	LoadedAt time.Time
	Bodies   []Body
}

// Lookup returns the body with the given name.
func (ds *Dataset) Lookup(name string) (Body, bool) {
	for _, b := range ds.Bodies {
		if b.Name == name {
			return b, true
		}
	}
	return Body{}, false
}

// Filter returns the bodies for which keep returns true, in dataset order.
func (ds *Dataset) Filter(keep func(Body) bool) []Body {
	var out []Body
	for _, b := range ds.Bodies {
		if keep(b) {
			out = append(out, b)
		}
	}
	return out
}
