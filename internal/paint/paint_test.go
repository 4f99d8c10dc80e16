package paint

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/ivlev/timeline2video/internal/assets"
	"github.com/ivlev/timeline2video/internal/effects"
	"github.com/ivlev/timeline2video/internal/timeline"
)

func newRequest(el *timeline.Element, w, h int) *Request {
	surface := image.NewRGBA(image.Rect(0, 0, w, h))
	return &Request{
		Surface: surface,
		Element: el,
		Width:   w,
		Height:  h,
		Opacity: el.Opacity,
		State:   effects.Identity,
	}
}

func newSession(t *testing.T) *Session {
	t.Helper()
	l, err := assets.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { l.Cleanup() })
	s := NewSession(l)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestParseColor(t *testing.T) {
	tests := []struct {
		in      string
		want    color.NRGBA
		wantErr bool
	}{
		{"#ff0000", color.NRGBA{255, 0, 0, 255}, false},
		{"#0F0", color.NRGBA{0, 255, 0, 255}, false},
		{"#00000080", color.NRGBA{0, 0, 0, 128}, false},
		{"#f008", color.NRGBA{255, 0, 0, 136}, false},
		{" #1A2b3C ", color.NRGBA{0x1a, 0x2b, 0x3c, 255}, false},
		{"White", color.NRGBA{255, 255, 255, 255}, false},
		{"transparent", color.NRGBA{}, false},
		{"#12345", color.NRGBA{}, true},
		{"#gggggg", color.NRGBA{}, true},
		{"#12345g", color.NRGBA{}, true},
		{"#", color.NRGBA{}, true},
		{"chartreuse-ish", color.NRGBA{}, true},
	}
	for _, tt := range tests {
		got, err := ParseColor(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseColor(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("ParseColor(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestRegistry(t *testing.T) {
	r := DefaultRegistry(NewSession(nil))
	if _, err := r.Lookup("video"); !errors.Is(err, ErrNoPainter) {
		t.Errorf("Expected ErrNoPainter for video, got %v", err)
	}
	if _, err := r.Lookup("text"); err != nil {
		t.Errorf("Expected text painter, got %v", err)
	}
	want := []string{"fill", "image", "pdf", "qrcode", "shape", "text"}
	got := r.Types()
	if len(got) != len(want) {
		t.Fatalf("Types() = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Types()[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestFillOpacityOverBlack(t *testing.T) {
	s := newSession(t)
	el := &timeline.Element{Type: "fill", Color: "#ff0000", Opacity: 0.5, Transform: timeline.Transform{Scale: 1}}
	req := newRequest(el, 8, 8)
	for i := 0; i < len(req.Surface.Pix); i += 4 {
		req.Surface.Pix[i+3] = 255
	}

	if err := s.paintFill(context.Background(), req); err != nil {
		t.Fatal(err)
	}
	got := req.Surface.RGBAAt(4, 4)
	if got.R < 126 || got.R > 129 || got.G != 0 || got.A != 255 {
		t.Errorf("Expected half-strength red over black, got %v", got)
	}
}

func TestCompositeOffset(t *testing.T) {
	s := newSession(t)
	el := &timeline.Element{
		Type: "fill", Color: "#00ff00", Opacity: 1,
		Width: 10, Height: 10,
		Transform: timeline.Transform{Scale: 1, OffsetX: 20},
	}
	req := newRequest(el, 40, 20)
	if err := s.paintFill(context.Background(), req); err != nil {
		t.Fatal(err)
	}
	if got := req.Surface.RGBAAt(25, 5); got.G != 255 {
		t.Errorf("Expected offset fill at (25,5), got %v", got)
	}
	if got := req.Surface.RGBAAt(5, 5); got.A != 0 {
		t.Errorf("Expected original position to stay empty, got %v", got)
	}
}

func TestPaintBackground(t *testing.T) {
	s := NewSession(nil)
	dst := image.NewRGBA(image.Rect(0, 0, 4, 11))
	bg := &timeline.Background{Gradient: &timeline.Gradient{Colors: []string{"#000000", "#ffffff"}}}
	if err := s.PaintBackground(dst, bg); err != nil {
		t.Fatal(err)
	}
	if got := dst.RGBAAt(0, 0); got.R > 1 || got.A != 255 {
		t.Errorf("Expected black top row, got %v", got)
	}
	if got := dst.RGBAAt(0, 5); got.R < 125 || got.R > 130 {
		t.Errorf("Expected mid gray, got %v", got)
	}
	if got := dst.RGBAAt(3, 10); got.R < 254 {
		t.Errorf("Expected white bottom row, got %v", got)
	}

	if err := s.PaintBackground(dst, nil); err != nil {
		t.Errorf("nil background: %v", err)
	}
	if err := s.PaintBackground(dst, &timeline.Background{Color: "nope"}); err == nil {
		t.Error("Expected error for invalid color")
	}
	bad := &timeline.Background{Gradient: &timeline.Gradient{Colors: []string{"#000", "#xyz"}}}
	if err := s.PaintBackground(dst, bad); err == nil {
		t.Error("Expected error for invalid gradient stop")
	}
}

func TestPaintBackgroundHorizontalGradient(t *testing.T) {
	s := NewSession(nil)
	dst := image.NewRGBA(image.Rect(0, 0, 9, 3))
	bg := &timeline.Background{Gradient: &timeline.Gradient{
		Colors:    []string{"#ff0000", "#0000ff"},
		Direction: "horizontal",
	}}
	if err := s.PaintBackground(dst, bg); err != nil {
		t.Fatal(err)
	}
	left, right := dst.RGBAAt(0, 1), dst.RGBAAt(8, 1)
	if left.R < 254 || left.B > 1 {
		t.Errorf("Expected red left column, got %v", left)
	}
	if right.B < 254 || right.R > 1 {
		t.Errorf("Expected blue right column, got %v", right)
	}
	if top, bottom := dst.RGBAAt(4, 0), dst.RGBAAt(4, 2); top != bottom {
		t.Errorf("Expected constant columns, got %v and %v", top, bottom)
	}
}

func TestGradientLayerIsCached(t *testing.T) {
	s := NewSession(nil)
	bg := &timeline.Background{Gradient: &timeline.Gradient{Colors: []string{"#000000", "#ffffff"}}}
	for i := 0; i < 3; i++ {
		if err := s.PaintBackground(image.NewRGBA(image.Rect(0, 0, 8, 8)), bg); err != nil {
			t.Fatal(err)
		}
	}
	if len(s.layers) != 1 {
		t.Fatalf("Expected one cached gradient layer, got %d", len(s.layers))
	}

	if err := s.PaintBackground(image.NewRGBA(image.Rect(0, 0, 16, 8)), bg); err != nil {
		t.Fatal(err)
	}
	flipped := &timeline.Background{Gradient: &timeline.Gradient{Colors: []string{"#ffffff", "#000000"}}}
	if err := s.PaintBackground(image.NewRGBA(image.Rect(0, 0, 8, 8)), flipped); err != nil {
		t.Fatal(err)
	}
	if len(s.layers) != 3 {
		t.Errorf("Expected a layer per size and stop list, got %d", len(s.layers))
	}
}

func TestPaintImage(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 2, 2))
	for i := 0; i < len(src.Pix); i += 4 {
		src.Pix[i], src.Pix[i+3] = 255, 255
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, src); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "red.png")
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}

	s := newSession(t)
	el := &timeline.Element{Type: "image", Src: path, Opacity: 1, X: 10, Y: 10, Width: 20, Height: 20, Transform: timeline.Transform{Scale: 1}}
	req := newRequest(el, 40, 40)
	if err := s.paintImage(context.Background(), req); err != nil {
		t.Fatal(err)
	}
	if got := req.Surface.RGBAAt(20, 20); got.R < 250 || got.A < 250 {
		t.Errorf("Expected red inside the box, got %v", got)
	}
	if got := req.Surface.RGBAAt(5, 5); got.A != 0 {
		t.Errorf("Expected transparent outside the box, got %v", got)
	}

	el.Src = filepath.Join(t.TempDir(), "missing.png")
	var nf *assets.NotFoundError
	if err := s.paintImage(context.Background(), req); !errors.As(err, &nf) {
		t.Errorf("Expected *assets.NotFoundError, got %v", err)
	}
}

func TestPaintTextFallbackFont(t *testing.T) {
	s := newSession(t)
	el := &timeline.Element{Type: "text", Text: "Hi", FontSize: 26, Color: "#ffffff", Opacity: 1, Transform: timeline.Transform{Scale: 1}}
	req := newRequest(el, 64, 32)
	if err := s.paintText(context.Background(), req); err != nil {
		t.Fatal(err)
	}
	if countOpaque(req.Surface) == 0 {
		t.Error("Expected text pixels on the surface")
	}
}

func TestPaintShape(t *testing.T) {
	s := newSession(t)

	rect := &timeline.Element{Type: "shape", Shape: "rect", Color: "#0000ff", Opacity: 1, Transform: timeline.Transform{Scale: 1}}
	req := newRequest(rect, 20, 20)
	if err := s.paintShape(context.Background(), req); err != nil {
		t.Fatal(err)
	}
	if got := req.Surface.RGBAAt(10, 10); got.B < 250 || got.A < 250 {
		t.Errorf("Expected blue rect centre, got %v", got)
	}

	circle := &timeline.Element{Type: "shape", Shape: "circle", Color: "#0000ff", Opacity: 1, Transform: timeline.Transform{Scale: 1}}
	req = newRequest(circle, 40, 40)
	if err := s.paintShape(context.Background(), req); err != nil {
		t.Fatal(err)
	}
	if got := req.Surface.RGBAAt(0, 0); got.A != 0 {
		t.Errorf("Expected transparent corner outside the circle, got %v", got)
	}
	if got := req.Surface.RGBAAt(20, 20); got.B < 250 {
		t.Errorf("Expected filled circle centre, got %v", got)
	}

	bad := &timeline.Element{Type: "shape", Shape: "hexagon", Opacity: 1}
	if err := s.paintShape(context.Background(), newRequest(bad, 10, 10)); err == nil {
		t.Error("Expected error for unknown shape")
	}
}

func TestPaintQRCode(t *testing.T) {
	s := newSession(t)
	el := &timeline.Element{Type: "qrcode", Content: "https://example.com", Opacity: 1, Width: 120, Height: 100, Transform: timeline.Transform{Scale: 1}}
	req := newRequest(el, 200, 200)
	if err := s.paintQRCode(context.Background(), req); err != nil {
		t.Fatal(err)
	}

	dark, light := 0, 0
	for y := 0; y < 100; y++ {
		for x := 0; x < 120; x++ {
			c := req.Surface.RGBAAt(x, y)
			if c.A < 255 {
				continue
			}
			if c.R < 64 {
				dark++
			} else if c.R > 192 {
				light++
			}
		}
	}
	if dark == 0 || light == 0 {
		t.Errorf("Expected dark and light modules, got dark=%d light=%d", dark, light)
	}
	if got := req.Surface.RGBAAt(5, 50); got.A != 0 {
		t.Errorf("Expected the square code to be centred horizontally, got %v at (5,50)", got)
	}
}

func TestSessionClose(t *testing.T) {
	s := NewSession(nil)
	s.layers["x"] = image.NewRGBA(image.Rect(0, 0, 1, 1))
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if len(s.layers) != 0 {
		t.Error("Expected caches to be cleared")
	}
	if _, err := s.Image(context.Background(), "a.png"); err == nil {
		t.Error("Expected error without a fetcher")
	}
}

func countOpaque(img *image.RGBA) int {
	n := 0
	for i := 3; i < len(img.Pix); i += 4 {
		if img.Pix[i] > 0 {
			n++
		}
	}
	return n
}
