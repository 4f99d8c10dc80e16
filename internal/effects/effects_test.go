package effects

import (
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/ivlev/timeline2video/internal/timeline"
)

func TestAnimationOpacity(t *testing.T) {
	fadeIn := &timeline.Animation{Type: timeline.AnimationFadeIn, FadeInDuration: 1, FadeOutDuration: 1}
	fadeOut := &timeline.Animation{Type: timeline.AnimationFadeOut, FadeInDuration: 1, FadeOutDuration: 1}
	fadeInOut := &timeline.Animation{Type: timeline.AnimationFadeInOut, FadeInDuration: 1, FadeOutDuration: 1}

	tests := []struct {
		name     string
		anim     *timeline.Animation
		t        float64
		duration float64
		want     float64
	}{
		{"none", nil, 0.3, 4, 1},
		{"fade in start", fadeIn, 0, 4, 0},
		{"fade in middle", fadeIn, 0.5, 4, 0.5},
		{"fade in done", fadeIn, 2, 4, 1},
		{"fade out before", fadeOut, 1, 4, 1},
		{"fade out middle", fadeOut, 3.5, 4, 0.5},
		{"fade out end", fadeOut, 4, 4, 0},
		{"fade in out plateau", fadeInOut, 2, 4, 1},
		{"fade in out short element", fadeInOut, 0.5, 1, 0.25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AnimationOpacity(tt.anim, tt.t, tt.duration)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Expected %.3f, got %.3f", tt.want, got)
			}
			if got < 0 || got > 1 {
				t.Errorf("Opacity out of range: %f", got)
			}
		})
	}
}

func TestInterpolateKeyframes(t *testing.T) {
	keyframes := []timeline.Keyframe{
		{Time: 0.0, Opacity: 0, Scale: 1.0},
		{Time: 2.0, Opacity: 1, Scale: 1.5, OffsetX: 100},
		{Time: 4.0, Opacity: 1, Scale: 2.0, OffsetX: 200, Easing: "easeInOutCubic"},
	}

	tests := []struct {
		time          float64
		expectedScale float64
	}{
		{-1.0, 1.0}, // Before first keyframe
		{0.0, 1.0},  // First keyframe
		{1.0, 1.25}, // Linear segment midpoint
		{2.0, 1.5},  // Second keyframe
		{3.0, 1.75}, // easeInOutCubic is symmetric around the midpoint
		{4.0, 2.0},  // Third keyframe
		{5.0, 2.0},  // After last keyframe
	}

	for _, tt := range tests {
		state := Interpolate(keyframes, tt.time)
		if math.Abs(state.Scale-tt.expectedScale) > 1e-9 {
			t.Errorf("At time %.1f: expected scale %.2f, got %.4f", tt.time, tt.expectedScale, state.Scale)
		}
	}

	// Eased segment lags behind linear progress in its first half
	s := Interpolate(keyframes, 2.5)
	if s.Scale >= 1.625 {
		t.Errorf("Expected eased scale below linear 1.625, got %.4f", s.Scale)
	}
	if s := Interpolate(keyframes, 1.0); math.Abs(s.Opacity-0.5) > 1e-9 || math.Abs(s.OffsetX-50) > 1e-9 {
		t.Errorf("Unexpected state at 1s: %+v", s)
	}
}

func TestEvaluateKeyframesOverridePreset(t *testing.T) {
	el := &timeline.Element{
		Duration:  2,
		Animation: &timeline.Animation{Type: timeline.AnimationFadeIn, FadeInDuration: 1},
		Keyframes: []timeline.Keyframe{{Time: 0, Opacity: 0.4, Scale: 1}},
	}
	if s := Evaluate(el, 0); s.Opacity != 0.4 {
		t.Errorf("Expected keyframe opacity 0.4, got %f", s.Opacity)
	}

	el.Keyframes = nil
	if s := Evaluate(el, 0); s.Opacity != 0 || s.Scale != 1 {
		t.Errorf("Expected preset opacity 0 with identity transform, got %+v", s)
	}
}

func solid(c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 10, 10))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return img
}

func TestCrossfade(t *testing.T) {
	from := solid(color.RGBA{R: 255, A: 255})
	to := solid(color.RGBA{B: 255, A: 255})
	dst := image.NewRGBA(from.Bounds())

	NewTransition(timeline.TransitionFade).Blend(dst, from, to, 0.5)

	got := dst.RGBAAt(5, 5)
	if got.R < 126 || got.R > 129 || got.B < 126 || got.B > 129 || got.A != 255 {
		t.Errorf("Expected half red/half blue, got %v", got)
	}

	NewTransition(timeline.TransitionFade).Blend(dst, from, to, 0)
	if got := dst.RGBAAt(0, 0); got != (color.RGBA{R: 255, A: 255}) {
		t.Errorf("Expected pure outgoing layer at progress 0, got %v", got)
	}
}

func TestWipeAndSlide(t *testing.T) {
	red := color.RGBA{R: 255, A: 255}
	blue := color.RGBA{B: 255, A: 255}
	from, to := solid(red), solid(blue)
	dst := image.NewRGBA(from.Bounds())

	NewTransition(timeline.TransitionWipeLeft).Blend(dst, from, to, 0.3)
	if dst.RGBAAt(0, 5) != red || dst.RGBAAt(9, 5) != blue {
		t.Errorf("wipeleft: expected red left edge and blue right edge")
	}

	NewTransition(timeline.TransitionSlideUp).Blend(dst, from, to, 0.5)
	if dst.RGBAAt(5, 0) != red || dst.RGBAAt(5, 9) != blue {
		t.Errorf("slideup: expected outgoing on top and incoming below")
	}

	NewTransition(timeline.TransitionSlideRight).Blend(dst, from, to, 1)
	if dst.RGBAAt(0, 0) != blue || dst.RGBAAt(9, 9) != blue {
		t.Errorf("slideright: expected incoming layer to cover the canvas at progress 1")
	}
}
