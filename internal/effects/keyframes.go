package effects

import (
	"github.com/ivlev/timeline2video/internal/timeline"
)

// Interpolate calculates the element state at time t by interpolating
// between the surrounding keyframes. The segment uses the easing named by
// its later keyframe. Keyframes must be sorted by time.
func Interpolate(keyframes []timeline.Keyframe, t float64) State {
	if len(keyframes) == 0 {
		return Identity
	}

	// Hold the first keyframe before the range
	if t <= keyframes[0].Time {
		return stateOf(keyframes[0])
	}

	// and the last one after it
	last := keyframes[len(keyframes)-1]
	if t >= last.Time {
		return stateOf(last)
	}

	var prev, next timeline.Keyframe
	for i := 0; i < len(keyframes)-1; i++ {
		if t >= keyframes[i].Time && t < keyframes[i+1].Time {
			prev = keyframes[i]
			next = keyframes[i+1]
			break
		}
	}

	span := next.Time - prev.Time
	if span <= 0 {
		return stateOf(next)
	}
	p := Easing(next.Easing)((t - prev.Time) / span)

	return State{
		Opacity:  clamp01(lerp(prev.Opacity, next.Opacity, p)),
		Scale:    lerp(prev.Scale, next.Scale, p),
		Rotation: lerp(prev.Rotation, next.Rotation, p),
		OffsetX:  lerp(prev.OffsetX, next.OffsetX, p),
		OffsetY:  lerp(prev.OffsetY, next.OffsetY, p),
	}
}

func stateOf(kf timeline.Keyframe) State {
	return State{
		Opacity:  kf.Opacity,
		Scale:    kf.Scale,
		Rotation: kf.Rotation,
		OffsetX:  kf.OffsetX,
		OffsetY:  kf.OffsetY,
	}
}
