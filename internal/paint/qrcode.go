package paint

import (
	"context"
	"fmt"
	"image"
	"image/color"

	"github.com/skip2/go-qrcode"
	"golang.org/x/image/draw"
)

func (s *Session) paintQRCode(_ context.Context, r *Request) error {
	el := r.Element
	if el.Content == "" {
		return fmt.Errorf("qrcode element without content")
	}
	fg, err := colorOr(el.Color, color.NRGBA{A: 255})
	if err != nil {
		return err
	}

	box := Box(el, r.Width, r.Height)
	size := min(box.Dx(), box.Dy())
	layer, err := s.layer(fmt.Sprintf("qrcode:%s:%d:%v", el.Content, size, fg), func() (*image.RGBA, error) {
		q, err := qrcode.New(el.Content, qrcode.Medium)
		if err != nil {
			return nil, fmt.Errorf("encode qrcode: %w", err)
		}
		q.ForegroundColor = fg
		q.BackgroundColor = color.White
		img := q.Image(size)
		out := image.NewRGBA(img.Bounds())
		draw.Draw(out, out.Bounds(), img, img.Bounds().Min, draw.Src)
		return out, nil
	})
	if err != nil {
		return err
	}

	// Keep the code square and centred in its box.
	sq := image.Rect(0, 0, size, size).Add(box.Min).Add(image.Pt((box.Dx()-size)/2, (box.Dy()-size)/2))
	s.composite(r.Surface, layer, "", sq, r)
	return nil
}
