package director

import (
	"image"
	"math"

	"github.com/ivlev/timeline2video/internal/timeline"
)

const (
	introDuration = 1.0
	outroDuration = 1.0
	cameraEasing  = "easeInOutCubic"
)

// camera returns element keyframes that start on the full slide, visit each
// region in turn and return to the full slide. The slide is stretched when
// the tour needs more time than slideDuration.
func (d *Director) camera(rects []image.Rectangle, box image.Rectangle, slideDuration float64) ([]timeline.KeyframeDoc, float64) {
	dwell := d.dwellTime(slideDuration, len(rects))
	move := math.Min(0.6, dwell/2)

	kfs := []timeline.KeyframeDoc{
		keyframe(0, 1, 0, 0),
		keyframe(introDuration, 1, 0, 0),
	}
	t := introDuration
	for _, r := range rects {
		z := d.zoom(r)
		ox, oy := d.offset(r, box, z)
		kfs = append(kfs, keyframe(t+move, z, ox, oy), keyframe(t+dwell, z, ox, oy))
		t += dwell
	}
	kfs = append(kfs, keyframe(t+move, 1, 0, 0))

	return kfs, math.Max(slideDuration, t+move+outroDuration)
}

func keyframe(t, scale, ox, oy float64) timeline.KeyframeDoc {
	return timeline.KeyframeDoc{
		Time:    timeline.N(t),
		Scale:   timeline.N(scale),
		OffsetX: timeline.N(ox),
		OffsetY: timeline.N(oy),
		Easing:  cameraEasing,
	}
}

// dwellTime splits what is left after intro and outro between the regions.
func (d *Director) dwellTime(total float64, regions int) float64 {
	available := total - introDuration - outroDuration
	if available <= 0 {
		available = total
	}
	dwell := available / float64(regions)
	return math.Max(d.opts.MinDwell, math.Min(d.opts.MaxDwell, dwell))
}

// zoom fits the region into 90% of the canvas, between 1x and 3x.
func (d *Director) zoom(r image.Rectangle) float64 {
	if r.Dx() == 0 || r.Dy() == 0 {
		return 1
	}
	zx := float64(d.opts.Width) * 0.9 / float64(r.Dx())
	zy := float64(d.opts.Height) * 0.9 / float64(r.Dy())
	return math.Max(1, math.Min(3, math.Min(zx, zy)))
}

// offset moves the region centre to the canvas centre once the slide is
// scaled by z about its own centre, without exposing the background on an
// axis where the scaled slide covers the canvas.
func (d *Director) offset(r, box image.Rectangle, z float64) (float64, float64) {
	return axisOffset(r.Min.X, r.Max.X, box.Min.X, box.Max.X, d.opts.Width, z),
		axisOffset(r.Min.Y, r.Max.Y, box.Min.Y, box.Max.Y, d.opts.Height, z)
}

func axisOffset(rMin, rMax, bMin, bMax, canvas int, z float64) float64 {
	c := float64(bMin+bMax) / 2
	p := float64(rMin+rMax) / 2
	half := z * float64(bMax-bMin) / 2
	view := float64(canvas)

	if 2*half < view {
		return view/2 - c
	}
	o := view/2 - c - z*(p-c)
	lo := view - c - half
	hi := half - c
	return math.Max(lo, math.Min(hi, o))
}
