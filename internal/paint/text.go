package paint

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"math"
	"strings"

	"github.com/gogpu/gg/text"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

func (s *Session) paintText(ctx context.Context, r *Request) error {
	el := r.Element
	if el.Text == "" {
		return nil
	}
	col, err := colorOr(el.Color, color.NRGBA{R: 255, G: 255, B: 255, A: 255})
	if err != nil {
		return err
	}

	var face text.Face
	if el.FontURL != "" {
		src, err := s.Font(ctx, el.FontURL)
		if err != nil {
			return err
		}
		face = src.Face(el.FontSize)
	}

	box := Box(el, r.Width, r.Height)
	layer, err := s.layer(fmt.Sprintf("text:%p", el), func() (*image.RGBA, error) {
		l := image.NewRGBA(image.Rect(0, 0, box.Dx(), box.Dy()))
		drawLines(l, strings.Split(el.Text, "\n"), face, el.FontSize, el.Align, col)
		return l, nil
	})
	if err != nil {
		return err
	}
	s.composite(r.Surface, layer, "", box, r)
	return nil
}

// drawLines lays out lines top to bottom inside dst. A nil face uses the
// built-in bitmap font scaled to size.
func drawLines(dst *image.RGBA, lines []string, face text.Face, size float64, align string, col color.Color) {
	ascent, lineHeight := size*0.8, size*1.2
	if face != nil {
		m := face.Metrics()
		if m.LineHeight() > 0 {
			ascent, lineHeight = m.Ascent, m.LineHeight()
		}
	}

	width := float64(dst.Bounds().Dx())
	for i, line := range lines {
		baseline := ascent + float64(i)*lineHeight

		var advance float64
		if face != nil {
			advance, _ = text.Measure(line, face)
		} else {
			advance = fallbackAdvance(line, size)
		}

		x := 0.0
		switch align {
		case "center":
			x = (width - advance) / 2
		case "right":
			x = width - advance
		}

		if face != nil {
			text.Draw(dst, line, face, x, baseline, col)
		} else {
			drawFallback(dst, line, x, baseline, size, col)
		}
	}
}

func fallbackScale(size float64) float64 {
	return size / float64(basicfont.Face7x13.Height)
}

func fallbackAdvance(line string, size float64) float64 {
	return float64(font.MeasureString(basicfont.Face7x13, line).Ceil()) * fallbackScale(size)
}

// drawFallback renders with basicfont at its native 13px and scales the
// result up to size.
func drawFallback(dst *image.RGBA, line string, x, baseline, size float64, col color.Color) {
	face := basicfont.Face7x13
	adv := font.MeasureString(face, line).Ceil()
	if adv == 0 {
		return
	}
	tmp := image.NewRGBA(image.Rect(0, 0, adv, face.Height))
	d := font.Drawer{
		Dst:  tmp,
		Src:  image.NewUniform(col),
		Face: face,
		Dot:  fixed.P(0, face.Ascent),
	}
	d.DrawString(line)

	k := fallbackScale(size)
	top := baseline - float64(face.Ascent)*k
	dr := image.Rect(
		int(math.Round(x)), int(math.Round(top)),
		int(math.Round(x+float64(adv)*k)), int(math.Round(top+float64(face.Height)*k)),
	)
	draw.ApproxBiLinear.Scale(dst, dr, tmp, tmp.Bounds(), draw.Over, nil)
}
