package paint

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"strings"

	"github.com/gogpu/gg"
	"golang.org/x/image/draw"

	"github.com/ivlev/timeline2video/internal/timeline"
)

// PaintBackground draws a scene background over dst. A nil background
// leaves dst untouched. Gradient layers are cached per direction, stops
// and size.
func (s *Session) PaintBackground(dst *image.RGBA, bg *timeline.Background) error {
	if bg == nil {
		return nil
	}
	if g := bg.Gradient; g != nil && len(g.Colors) > 0 {
		b := dst.Bounds()
		key := fmt.Sprintf("gradient:%s:%s:%dx%d", g.Direction, strings.Join(g.Colors, ","), b.Dx(), b.Dy())
		layer, err := s.layer(key, func() (*image.RGBA, error) {
			return rasterGradient(g, b.Dx(), b.Dy())
		})
		if err != nil {
			return fmt.Errorf("background gradient: %w", err)
		}
		draw.Draw(dst, b, layer, image.Point{}, draw.Over)
		return nil
	}
	if bg.Color == "" {
		return nil
	}
	c, err := ParseColor(bg.Color)
	if err != nil {
		return fmt.Errorf("background: %w", err)
	}
	draw.Draw(dst, dst.Bounds(), image.NewUniform(c), image.Point{}, draw.Over)
	return nil
}

// rasterGradient fills a w x h layer with evenly spaced stops. The gradient
// line runs between pixel centers so the first and last rows or columns
// carry the end colors exactly.
func rasterGradient(g *timeline.Gradient, w, h int) (*image.RGBA, error) {
	fw, fh := float64(w), float64(h)
	var brush *gg.LinearGradientBrush
	switch g.Direction {
	case "horizontal":
		brush = gg.NewLinearGradientBrush(0.5, 0.5, fw-0.5, 0.5)
	case "diagonal":
		brush = gg.NewLinearGradientBrush(0.5, 0.5, fw-0.5, fh-0.5)
	default:
		brush = gg.NewLinearGradientBrush(0.5, 0.5, 0.5, fh-0.5)
	}
	for i, s := range g.Colors {
		c, err := ParseColor(s)
		if err != nil {
			return nil, err
		}
		offset := 0.0
		if len(g.Colors) > 1 {
			offset = float64(i) / float64(len(g.Colors)-1)
		}
		brush.AddColorStop(offset, straight(c))
	}

	dc := gg.NewContext(w, h)
	defer dc.Close()
	dc.SetFillBrush(brush)
	dc.DrawRectangle(0, 0, fw, fh)
	if err := dc.Fill(); err != nil {
		return nil, fmt.Errorf("fill gradient: %w", err)
	}

	out := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(out, out.Bounds(), dc.Image(), image.Point{}, draw.Src)
	return out, nil
}

func (s *Session) paintFill(_ context.Context, r *Request) error {
	c, err := colorOr(r.Element.Color, color.NRGBA{A: 255})
	if err != nil {
		return err
	}
	box := Box(r.Element, r.Width, r.Height)
	src := image.NewUniform(c)
	s.composite(r.Surface, &uniformRect{src, image.Rect(0, 0, box.Dx(), box.Dy())}, "", box, r)
	return nil
}

// uniformRect is a bounded solid color, so it can be scaled like any image.
type uniformRect struct {
	*image.Uniform
	rect image.Rectangle
}

func (u *uniformRect) Bounds() image.Rectangle { return u.rect }
