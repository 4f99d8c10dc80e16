package effects

import (
	"image"
	"math"

	"golang.org/x/image/draw"

	"github.com/ivlev/timeline2video/internal/timeline"
)

// Transition blends the outgoing and incoming scene layers into dst.
// All three images share the canvas bounds; progress runs from 0 (only
// from visible) to 1 (only to visible).
type Transition interface {
	Blend(dst, from, to *image.RGBA, progress float64)
}

// NewTransition returns the blend rule for a transition kind. Unknown kinds
// fall back to a crossfade.
func NewTransition(kind string) Transition {
	switch kind {
	case timeline.TransitionWipeLeft:
		return wipe{dx: -1}
	case timeline.TransitionWipeRight:
		return wipe{dx: 1}
	case timeline.TransitionWipeUp:
		return wipe{dy: -1}
	case timeline.TransitionWipeDown:
		return wipe{dy: 1}
	case timeline.TransitionSlideLeft:
		return slide{dx: -1}
	case timeline.TransitionSlideRight:
		return slide{dx: 1}
	case timeline.TransitionSlideUp:
		return slide{dy: -1}
	case timeline.TransitionSlideDown:
		return slide{dy: 1}
	default:
		return crossfade{}
	}
}

// crossfade mixes the layers linearly. Pixels are premultiplied, so a
// per-channel lerp is a valid alpha blend.
type crossfade struct{}

func (crossfade) Blend(dst, from, to *image.RGBA, progress float64) {
	a := uint32(math.Round(clamp01(progress) * 255))
	ia := 255 - a
	n := len(dst.Pix)
	if len(from.Pix) < n || len(to.Pix) < n {
		return
	}
	for i := 0; i < n; i++ {
		dst.Pix[i] = uint8((uint32(from.Pix[i])*ia + uint32(to.Pix[i])*a + 127) / 255)
	}
}

// wipe reveals the incoming layer behind an edge moving in direction
// (dx, dy); wipeleft moves the edge from the right border to the left.
type wipe struct {
	dx, dy int
}

func (w wipe) Blend(dst, from, to *image.RGBA, progress float64) {
	p := clamp01(progress)
	b := dst.Bounds()
	draw.Draw(dst, b, from, b.Min, draw.Src)

	r := b
	width := int(math.Round(float64(b.Dx()) * p))
	height := int(math.Round(float64(b.Dy()) * p))
	switch {
	case w.dx < 0:
		r.Min.X = b.Max.X - width
	case w.dx > 0:
		r.Max.X = b.Min.X + width
	case w.dy < 0:
		r.Min.Y = b.Max.Y - height
	default:
		r.Max.Y = b.Min.Y + height
	}
	if !r.Empty() {
		draw.Draw(dst, r, to, r.Min, draw.Src)
	}
}

// slide pushes the outgoing layer out while the incoming one follows it in
// from the opposite border.
type slide struct {
	dx, dy int
}

func (s slide) Blend(dst, from, to *image.RGBA, progress float64) {
	p := clamp01(progress)
	b := dst.Bounds()
	clear(dst.Pix)

	// offset of the incoming layer; the outgoing one sits one canvas away
	ox := int(math.Round(float64(-s.dx*b.Dx()) * (1 - p)))
	oy := int(math.Round(float64(-s.dy*b.Dy()) * (1 - p)))
	fx := ox + s.dx*b.Dx()
	fy := oy + s.dy*b.Dy()

	shift(dst, from, fx, fy)
	shift(dst, to, ox, oy)
}

// shift draws src into dst translated by (x, y), clipped to dst.
func shift(dst, src *image.RGBA, x, y int) {
	r := dst.Bounds().Intersect(src.Bounds().Add(image.Pt(x, y)))
	if r.Empty() {
		return
	}
	draw.Draw(dst, r, src, r.Min.Sub(image.Pt(x, y)), draw.Src)
}
