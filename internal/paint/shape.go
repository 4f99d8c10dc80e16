package paint

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/gogpu/gg"
	"golang.org/x/image/draw"
)

func (s *Session) paintShape(_ context.Context, r *Request) error {
	el := r.Element
	col, err := colorOr(el.Color, color.NRGBA{R: 255, G: 255, B: 255, A: 255})
	if err != nil {
		return err
	}
	box := Box(el, r.Width, r.Height)
	layer, err := s.layer(fmt.Sprintf("shape:%p", el), func() (*image.RGBA, error) {
		return rasterShape(el.Shape, box.Dx(), box.Dy(), el.Radius, col)
	})
	if err != nil {
		return err
	}
	s.composite(r.Surface, layer, "", box, r)
	return nil
}

// rasterShape fills the shape in white with gg and uses the coverage as a
// mask for col.
func rasterShape(shape string, w, h int, radius float64, col color.Color) (*image.RGBA, error) {
	dc := gg.NewContext(w, h)
	defer dc.Close()

	fw, fh := float64(w), float64(h)
	switch shape {
	case "", "rect":
		if radius > 0 {
			dc.DrawRoundedRectangle(0, 0, fw, fh, math.Min(radius, math.Min(fw, fh)/2))
		} else {
			dc.DrawRectangle(0, 0, fw, fh)
		}
	case "circle":
		rr := radius
		if rr <= 0 {
			rr = math.Min(fw, fh) / 2
		}
		dc.DrawCircle(fw/2, fh/2, rr)
	default:
		return nil, fmt.Errorf("unknown shape %q", shape)
	}
	dc.SetRGBA(1, 1, 1, 1)
	if err := dc.Fill(); err != nil {
		return nil, fmt.Errorf("fill %s: %w", shape, err)
	}

	out := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.DrawMask(out, out.Bounds(), image.NewUniform(col), image.Point{}, dc.Image(), image.Point{}, draw.Src)
	return out, nil
}
