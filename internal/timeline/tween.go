package timeline

import (
	"context"
	"time"
)

// Default tween timing: 20 steps 75 ms apart.
const (
	DefaultTweenSteps    = 20
	DefaultTweenInterval = 75 * time.Millisecond
)

// Tween moves a value from From to To in Steps equal increments, one every
// Interval, independently of the poll loop.
type Tween struct {
	From     float64
	To       float64
	Steps    int
	Interval time.Duration
}

// NewTween returns a tween with the default timing.
func NewTween(from, to float64) Tween {
	return Tween{From: from, To: to, Steps: DefaultTweenSteps, Interval: DefaultTweenInterval}
}

// Value returns the value after step steps. The final step is exactly To.
func (tw Tween) Value(step int) float64 {
	switch {
	case tw.Steps <= 0 || step >= tw.Steps:
		return tw.To
	case step <= 0:
		return tw.From
	}
	return tw.From + (tw.To-tw.From)*float64(step)/float64(tw.Steps)
}

// Run calls set with each intermediate value and finally with To. It stops
// early and returns the error if set fails or ctx is cancelled.
func (tw Tween) Run(ctx context.Context, set func(float64) error) error {
	steps := tw.Steps
	if steps <= 0 {
		return set(tw.To)
	}

	var tick <-chan time.Time
	if tw.Interval > 0 {
		ticker := time.NewTicker(tw.Interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for step := 1; step <= steps; step++ {
		if tick != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-tick:
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}
		if err := set(tw.Value(step)); err != nil {
			return err
		}
	}
	return nil
}
