// Package paint draws timeline elements onto RGBA surfaces. Painters are
// looked up by element type in a Registry; decoded assets live in a Session
// owned by a single render.
package paint

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math"
	"sort"

	"github.com/ivlev/timeline2video/internal/effects"
	"github.com/ivlev/timeline2video/internal/timeline"
)

// ErrNoPainter is returned for element types without a registered painter.
var ErrNoPainter = errors.New("no painter registered")

// Request describes one element draw. Surface has the canvas bounds.
type Request struct {
	Surface       *image.RGBA
	Element       *timeline.Element
	Width         int
	Height        int
	LocalTime     float64 // seconds since the element started
	SceneDuration float64
	Opacity       float64 // base opacity times animation opacity
	State         effects.State
}

type Painter interface {
	Paint(ctx context.Context, r *Request) error
}

// PainterFunc adapts a function to the Painter interface.
type PainterFunc func(ctx context.Context, r *Request) error

func (f PainterFunc) Paint(ctx context.Context, r *Request) error { return f(ctx, r) }

type Registry struct {
	painters map[string]Painter
}

func NewRegistry() *Registry {
	return &Registry{painters: make(map[string]Painter)}
}

// Register binds a painter to an element type, replacing any previous one.
func (r *Registry) Register(elementType string, p Painter) {
	r.painters[elementType] = p
}

func (r *Registry) Lookup(elementType string) (Painter, error) {
	p, ok := r.painters[elementType]
	if !ok {
		return nil, fmt.Errorf("%w for element type %q", ErrNoPainter, elementType)
	}
	return p, nil
}

// Types lists the registered element types in sorted order.
func (r *Registry) Types() []string {
	types := make([]string, 0, len(r.painters))
	for t := range r.painters {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// DefaultRegistry registers the built-in painters backed by s.
func DefaultRegistry(s *Session) *Registry {
	r := NewRegistry()
	r.Register("fill", PainterFunc(s.paintFill))
	r.Register("image", PainterFunc(s.paintImage))
	r.Register("text", PainterFunc(s.paintText))
	r.Register("shape", PainterFunc(s.paintShape))
	r.Register("qrcode", PainterFunc(s.paintQRCode))
	r.Register("pdf", PainterFunc(s.paintPDF))
	return r
}

// Box is the element's layout rectangle on the canvas. A zero width or
// height spans the whole canvas in that direction.
func Box(el *timeline.Element, canvasW, canvasH int) image.Rectangle {
	w, h := el.Width, el.Height
	if w <= 0 {
		w = float64(canvasW)
	}
	if h <= 0 {
		h = float64(canvasH)
	}
	return image.Rect(
		int(math.Round(el.X)), int(math.Round(el.Y)),
		int(math.Round(el.X+w)), int(math.Round(el.Y+h)),
	)
}
