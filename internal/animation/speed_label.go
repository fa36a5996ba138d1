package animation

import (
	"fmt"
	"math"
	"strconv"
)

// SpeedLabel renders a speed value the way the lesson's speed control
// captions it, for example
//
//	Speed: 43200x   |   1 second = 0.5 Earth days
//
// Values are in units of the base rate (half an Earth day per second).
func SpeedLabel(value float64) string {
	if value == 0 {
		return "Paused"
	}

	var conversion string
	switch {
	case value == 730:
		conversion = "1 Earth year"
	case value > 60:
		conversion = roundTo(value/2/30, 100) + " Earth months"
	case value == 60:
		conversion = "1 Earth month"
	case value > 14:
		conversion = roundTo(value/2/7, 10) + " Earth weeks"
	case value == 14:
		conversion = "1 Earth week"
	case value == 2:
		conversion = "1 Earth day"
	default:
		conversion = roundTo(value/2, 10) + " Earth days"
	}
	return fmt.Sprintf("Speed: %dx   |   1 second = %s", int64(math.Round(value*43200)), conversion)
}

func roundTo(v, scale float64) string {
	return strconv.FormatFloat(math.Round(v*scale)/scale, 'f', -1, 64)
}
