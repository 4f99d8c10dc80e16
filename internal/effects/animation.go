package effects

import (
	"github.com/ivlev/timeline2video/internal/timeline"
)

// State is the animated part of an element at one instant. Opacity
// multiplies the element's base opacity; the transform fields combine with
// the element's own transform.
type State struct {
	Opacity  float64
	Scale    float64
	Rotation float64
	OffsetX  float64
	OffsetY  float64
}

// Identity is the state of an element without animation.
var Identity = State{Opacity: 1, Scale: 1}

// AnimationOpacity evaluates a fade preset at element-local time t for an
// element lasting duration seconds.
func AnimationOpacity(anim *timeline.Animation, t, duration float64) float64 {
	if anim == nil {
		return 1
	}

	in := 1.0
	if anim.FadeInDuration > 0 {
		in = clamp01(t / anim.FadeInDuration)
	}
	out := 1.0
	if anim.FadeOutDuration > 0 {
		out = clamp01((duration - t) / anim.FadeOutDuration)
	}

	switch anim.Type {
	case timeline.AnimationFadeIn:
		return in
	case timeline.AnimationFadeOut:
		return out
	case timeline.AnimationFadeInOut:
		// Both ramps overlap on elements shorter than the two fades.
		return clamp01(in * out)
	}
	return 1
}

// Evaluate returns the animated state of an element at element-local time t.
// Keyframes, when present, override the fade preset.
func Evaluate(el *timeline.Element, t float64) State {
	if len(el.Keyframes) > 0 {
		return Interpolate(el.Keyframes, t)
	}
	s := Identity
	s.Opacity = AnimationOpacity(el.Animation, t, el.Duration)
	return s
}
