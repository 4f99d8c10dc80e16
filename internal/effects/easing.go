package effects

import "math"

// EasingFunc maps linear progress in [0,1] to eased progress.
type EasingFunc func(t float64) float64

var easings = map[string]EasingFunc{
	"linear":         linear,
	"easeIn":         easeInQuad,
	"easeOut":        easeOutQuad,
	"easeInOut":      easeInOutQuad,
	"easeInCubic":    easeInCubic,
	"easeOutCubic":   easeOutCubic,
	"easeInOutCubic": easeInOutCubic,
}

// Easing returns the named easing function, linear for unknown names.
func Easing(name string) EasingFunc {
	if f, ok := easings[name]; ok {
		return f
	}
	return linear
}

func linear(t float64) float64 { return t }

func easeInQuad(t float64) float64 { return t * t }

func easeOutQuad(t float64) float64 { return 1 - (1-t)*(1-t) }

func easeInOutQuad(t float64) float64 {
	if t < 0.5 {
		return 2 * t * t
	}
	return 1 - math.Pow(-2*t+2, 2)/2
}

func easeInCubic(t float64) float64 { return t * t * t }

func easeOutCubic(t float64) float64 { return 1 - math.Pow(1-t, 3) }

func easeInOutCubic(t float64) float64 {
	if t < 0.5 {
		return 4 * t * t * t
	}
	return 1 - math.Pow(-2*t+2, 3)/2
}

// lerp performs linear interpolation between a and b
func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
