package paint

import (
	"image"
	"image/color"
	"math"

	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

// composite draws src over dst so that it fills box, then applies the
// element transform and animation state. key, when set, lets the scaled
// copy of an untransformed src be reused across frames.
func (s *Session) composite(dst *image.RGBA, src image.Image, key string, box image.Rectangle, r *Request) {
	el := r.Element
	opacity := math.Max(0, math.Min(1, r.Opacity))
	scale := el.Transform.Scale * r.State.Scale
	if opacity <= 0 || scale <= 0 || box.Empty() {
		return
	}
	if scale != 1 {
		key = ""
	}
	rotation := el.Transform.Rotation + r.State.Rotation
	ox := el.Transform.OffsetX + r.State.OffsetX
	oy := el.Transform.OffsetY + r.State.OffsetY

	var mask image.Image
	if opacity < 1 {
		mask = image.NewUniform(color.Alpha{A: uint8(math.Round(opacity * 255))})
	}

	cx := float64(box.Min.X) + float64(box.Dx())/2 + ox
	cy := float64(box.Min.Y) + float64(box.Dy())/2 + oy
	bw := float64(box.Dx()) * scale
	bh := float64(box.Dy()) * scale
	sb := src.Bounds()

	if math.Mod(rotation, 360) == 0 {
		dr := image.Rect(
			int(math.Round(cx-bw/2)), int(math.Round(cy-bh/2)),
			int(math.Round(cx+bw/2)), int(math.Round(cy+bh/2)),
		)
		if dr.Intersect(dst.Bounds()).Empty() {
			return
		}
		if u, ok := src.(*uniformRect); ok {
			draw.Draw(dst, dr, image.NewUniform(withOpacity(u.C, opacity)), image.Point{}, draw.Over)
			return
		}
		scaled := s.scaledCopy(src, key, dr.Dx(), dr.Dy())
		draw.DrawMask(dst, dr, scaled, scaled.Bounds().Min, mask, image.Point{}, draw.Over)
		return
	}

	// Rotate about the box centre: translate, rotate, scale, centre the source.
	theta := rotation * math.Pi / 180
	sin, cos := math.Sincos(theta)
	sx := bw / float64(sb.Dx())
	sy := bh / float64(sb.Dy())
	hw := float64(sb.Dx()) / 2
	hh := float64(sb.Dy()) / 2
	a, b := cos*sx, -sin*sy
	d, e := sin*sx, cos*sy
	m := f64.Aff3{
		a, b, cx - a*(hw+float64(sb.Min.X)) - b*(hh+float64(sb.Min.Y)),
		d, e, cy - d*(hw+float64(sb.Min.X)) - e*(hh+float64(sb.Min.Y)),
	}

	layer := image.NewRGBA(dst.Bounds())
	draw.CatmullRom.Transform(layer, m, src, sb, draw.Over, nil)
	draw.DrawMask(dst, dst.Bounds(), layer, dst.Bounds().Min, mask, image.Point{}, draw.Over)
}

// scaledCopy returns src resized to w×h. Results for keyed sources are
// cached in the session.
func (s *Session) scaledCopy(src image.Image, key string, w, h int) image.Image {
	sb := src.Bounds()
	if sb.Dx() == w && sb.Dy() == h {
		return src
	}

	k := sizeKey{key: key, w: w, h: h}
	if key != "" {
		s.mu.Lock()
		cached, ok := s.scaled[k]
		s.mu.Unlock()
		if ok {
			return cached
		}
	}

	out := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(out, out.Bounds(), src, sb, draw.Src, nil)

	if key != "" {
		s.mu.Lock()
		s.scaled[k] = out
		s.mu.Unlock()
	}
	return out
}

func withOpacity(c color.Color, opacity float64) color.Color {
	r, g, b, a := c.RGBA()
	k := func(v uint32) uint16 { return uint16(math.Round(float64(v) * opacity)) }
	return color.RGBA64{R: k(r), G: k(g), B: k(b), A: k(a)}
}
