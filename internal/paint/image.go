package paint

import (
	"context"
	"fmt"
)

func (s *Session) paintImage(ctx context.Context, r *Request) error {
	el := r.Element
	if el.Src == "" {
		return fmt.Errorf("image element without src")
	}
	img, err := s.Image(ctx, el.Src)
	if err != nil {
		return err
	}
	s.composite(r.Surface, img, "image:"+el.Src, Box(el, r.Width, r.Height), r)
	return nil
}

func (s *Session) paintPDF(ctx context.Context, r *Request) error {
	el := r.Element
	if el.Src == "" {
		return fmt.Errorf("pdf element without src")
	}
	box := Box(el, r.Width, r.Height)
	page, err := s.PDFPage(ctx, el.Src, el.Page, box.Dy())
	if err != nil {
		return err
	}
	s.composite(r.Surface, page, fmt.Sprintf("pdf:%s#%d", el.Src, el.Page), box, r)
	return nil
}
