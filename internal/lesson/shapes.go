package lesson

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/varun-un/AetherConnect/internal/orbit"
	"github.com/varun-un/AetherConnect/internal/transform"
)

// ShapeKind tells the client how to draw a Shape.
type ShapeKind string

const (
	Line     ShapeKind = "line"
	Label    ShapeKind = "label"
	Sphere   ShapeKind = "sphere"
	Polygon  ShapeKind = "polygon"
	Equation ShapeKind = "equation"
	Arrow    ShapeKind = "arrow"
)

// Shape is one drawable scene object. Points are scene coordinates; a label
// or sphere is placed at Points[0].
type Shape struct {
	ID     string       `json:"id"`
	Kind   ShapeKind    `json:"kind"`
	Color  string       `json:"color,omitempty"`
	Text   string       `json:"text,omitempty"`
	Points [][3]float64 `json:"points,omitempty"`
	Size   float64      `json:"size,omitempty"`
	Value  float64      `json:"value,omitempty"` // sector area or speed in km/s
}

func pt(v r3.Vec) [3]float64 {
	return [3]float64{v.X, v.Y, v.Z}
}

func pts(vs ...r3.Vec) [][3]float64 {
	out := make([][3]float64, len(vs))
	for i, v := range vs {
		out[i] = pt(v)
	}
	return out
}

// AxesShapes draws the major axis through both apsides of path and the
// minor axis through the centre of the ellipse.
func AxesShapes(path orbit.Path, el orbit.Elements) ([]Shape, error) {
	if len(path) == 0 {
		return nil, fmt.Errorf("axes: empty path")
	}
	major := path.MajorAxis()
	minor := el.MinorAxis()
	return []Shape{
		{ID: "majorAxis", Kind: Line, Color: "blue", Points: pts(major[0], major[1])},
		{ID: "minorAxis", Kind: Line, Color: "green", Points: pts(minor[0], minor[1])},
	}, nil
}

// AxisLabelShapes names the two axes. Positions suit the initial orbit.
func AxisLabelShapes() []Shape {
	return []Shape{
		{ID: "majorAxisLabel", Kind: Label, Color: "blue", Text: "major axis", Size: 2,
			Points: [][3]float64{{-0.3, 0, -12.5}}},
		{ID: "minorAxisLabel", Kind: Label, Color: "green", Text: "minor axis", Size: 2,
			Points: [][3]float64{{-7.4, 0, -3.85}}},
	}
}

// FocusPointShapes marks the empty focus; the Sun sits at the other.
func FocusPointShapes(el orbit.Elements) []Shape {
	return []Shape{
		{ID: "emptyFocus", Kind: Sphere, Color: "#b3b3b3", Size: 0.4, Points: pts(el.EmptyFocus())},
	}
}

// ApsisLabelShapes names perihelion and aphelion.
func ApsisLabelShapes() []Shape {
	return []Shape{
		{ID: "perihelionLabel", Kind: Label, Color: "white", Text: "Perihelion", Size: 2,
			Points: [][3]float64{{0, 0, 7}}},
		{ID: "aphelionLabel", Kind: Label, Color: "white", Text: "Aphelion", Size: 2,
			Points: [][3]float64{{-0.025, 0, -15.2}}},
	}
}

// SectorShapes shades the areas swept in equal time around perihelion and
// aphelion. Each carries its area in Value.
func SectorShapes(path orbit.Path) ([]Shape, error) {
	if len(path) < 24 {
		return nil, fmt.Errorf("sectors: path of %d samples is too short", len(path))
	}
	right, left := path.Sectors()
	return []Shape{
		{ID: "rightSector", Kind: Polygon, Color: "red", Points: pts(right...), Value: right.Area()},
		{ID: "leftSector", Kind: Polygon, Color: "red", Points: pts(left...), Value: left.Area()},
	}, nil
}

// CircularVelocityShapes is the circular orbit speed equation.
func CircularVelocityShapes() []Shape {
	return []Shape{{ID: "circularVelocity", Kind: Equation, Text: `v = \sqrt{\frac{GM}{r}}`}}
}

// VisVivaShapes is the vis-viva equation.
func VisVivaShapes() []Shape {
	return []Shape{{ID: "visViva", Kind: Equation, Text: `v = \sqrt{GM\left(\frac{2}{r} - \frac{1}{a}\right)}`}}
}

// Arrow dimensions in scene units.
const (
	arrowScalePerKmS = 3.0 / 30 // 30 km/s draws a 3 unit arrow
	arrowHeadLength  = 0.15
)

// VelocityShape draws the velocity arrow of a body at path index. The
// speed comes from vis-viva with the body's distance from the Sun.
func VelocityShape(path orbit.Path, index float64, el orbit.Elements) Shape {
	pos := path.At(index)
	speed := orbit.VisViva(transform.SceneToKm(el.SemiMajorAxis), transform.DistanceKm(pos))
	length := speed * arrowScalePerKmS
	if math.IsNaN(length) {
		length = 0
	}
	dir := path.Direction(index)
	body := r3.Add(pos, r3.Scale(math.Max(length-arrowHeadLength, 0), dir))
	head := r3.Add(pos, r3.Scale(length, dir))
	return Shape{
		ID:     "velocityVector",
		Kind:   Arrow,
		Color:  "#00ff00",
		Points: pts(pos, body, head),
		Size:   length,
		Value:  speed,
	}
}
