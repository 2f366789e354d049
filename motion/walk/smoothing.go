package walk

import "math"

// parabolicStep maps linear phase progress t∈[0,1] onto a smooth S
// curve: 0 at t=0, 1 at t=1, zero slope at both ends. Used to
// interpolate the swing foot's forward/left/turn offsets so the step
// starts and ends without a velocity discontinuity.
func parabolicStep(t float64) float64 {
	t = clamp01(t)
	if t < 0.5 {
		return 2 * t * t
	}
	return 1 - 2*(1-t)*(1-t)
}

// parabolicReturn maps t∈[0,1] onto a hump peaking at t=0.5 and
// returning to 0 at both ends, scaled for the swing foot's lift height.
func parabolicReturn(t float64) float64 {
	t = clamp01(t)
	switch {
	case t < 0.25:
		return 8 * t * t
	case t < 0.75:
		x := t - 0.5
		return 1 - 8*x*x
	default:
		x := 1 - t
		return 8 * x * x
	}
}

func clamp01(t float64) float64 {
	return math.Max(0, math.Min(1, t))
}
