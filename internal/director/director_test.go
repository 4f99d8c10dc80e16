package director

import (
	"errors"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/ivlev/timeline2video/internal/analyzer"
	"github.com/ivlev/timeline2video/internal/timeline"
)

func slideImage(w, h int, blocks ...image.Rectangle) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	for _, b := range blocks {
		draw.Draw(img, b, image.NewUniform(color.Black), image.Point{}, draw.Src)
	}
	return img
}

type fixedDetector []analyzer.Region

func (f fixedDetector) Detect(image.Image) ([]analyzer.Region, error) { return f, nil }

func near(a, b, tol float64) bool { return math.Abs(a-b) <= tol }

func TestFit(t *testing.T) {
	tests := []struct {
		name string
		w, h float64
		want image.Rectangle
	}{
		{"same aspect", 640, 360, image.Rect(0, 0, 1280, 720)},
		{"portrait page", 612, 792, image.Rect(362, 0, 918, 720)},
		{"wide banner", 1000, 100, image.Rect(0, 296, 1280, 424)},
		{"unknown size", 0, 0, image.Rect(0, 0, 1280, 720)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := fit(tt.w, tt.h, 1280, 720); got != tt.want {
				t.Errorf("fit() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestReadingOrder(t *testing.T) {
	rects := []image.Rectangle{
		image.Rect(300, 210, 400, 260),
		image.Rect(400, 12, 500, 60),
		image.Rect(10, 200, 100, 250),
		image.Rect(20, 0, 120, 50),
	}
	readingOrder(rects)

	want := []image.Point{{20, 0}, {400, 12}, {10, 200}, {300, 210}}
	for i, r := range rects {
		if r.Min != want[i] {
			t.Errorf("Position %d = %v, want %v", i, r.Min, want[i])
		}
	}
}

func TestReadingOrderStaggeredRow(t *testing.T) {
	a := image.Rect(300, 0, 380, 40)
	b := image.Rect(200, 15, 280, 55)
	c := image.Rect(100, 30, 180, 70)
	want := []image.Rectangle{b, a, c}

	inputs := [][]image.Rectangle{
		{a, b, c}, {a, c, b}, {b, a, c}, {b, c, a}, {c, a, b}, {c, b, a},
	}
	for _, in := range inputs {
		rects := append([]image.Rectangle(nil), in...)
		readingOrder(rects)
		for i := range want {
			if rects[i] != want[i] {
				t.Errorf("readingOrder(%v) = %v, want %v", in, rects, want)
				break
			}
		}
	}
}

func TestDwellTime(t *testing.T) {
	d := New(Options{}, nil, zerolog.Nop())
	tests := []struct {
		total   float64
		regions int
		want    float64
	}{
		{10, 4, 2},
		{3, 1, 1},
		{30, 2, 3},    // capped
		{1.5, 3, 1},   // floored
		{1.5, 1, 1.5}, // short slide keeps its full length
	}
	for _, tt := range tests {
		if got := d.dwellTime(tt.total, tt.regions); !near(got, tt.want, 1e-9) {
			t.Errorf("dwellTime(%v, %d) = %v, want %v", tt.total, tt.regions, got, tt.want)
		}
	}
}

func TestZoomAndOffset(t *testing.T) {
	d := New(Options{Width: 800, Height: 600}, nil, zerolog.Nop())
	box := image.Rect(0, 0, 800, 600)

	r := image.Rect(90, 70, 310, 210)
	z := d.zoom(r)
	if z != 3 {
		t.Fatalf("Expected zoom clamped to 3, got %v", z)
	}
	ox, oy := d.offset(r, box, z)
	if !near(ox, 600, 1e-9) || !near(oy, 480, 1e-9) {
		t.Errorf("offset = (%v, %v), want (600, 480)", ox, oy)
	}

	// a corner region would pull the slide edge into view
	corner := image.Rect(0, 0, 100, 100)
	ox, oy = d.offset(corner, box, 3)
	if ox != 800 || oy != 600 {
		t.Errorf("Expected offsets clamped to (800, 600), got (%v, %v)", ox, oy)
	}

	if z := d.zoom(image.Rect(0, 0, 800, 600)); z != 1 {
		t.Errorf("Full-slide region should not zoom, got %v", z)
	}

	// a narrow slide that stays narrower than the canvas is kept centred
	narrow := image.Rect(300, 0, 500, 600)
	ox, _ = d.offset(image.Rect(300, 0, 350, 50), narrow, 1.5)
	if ox != 0 {
		t.Errorf("Expected a centred narrow slide, got offset %v", ox)
	}
}

func TestBuildPlainSlides(t *testing.T) {
	d := New(Options{Width: 1280, Height: 720, SlideDuration: 2, Audio: "music.mp3"}, nil, zerolog.Nop())
	doc, err := d.Build([]Slide{
		{Type: "pdf", Src: "deck.pdf", Page: 1, Width: 612, Height: 792},
		{Type: "pdf", Src: "deck.pdf", Page: 2, Width: 792, Height: 612},
	})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	tl, err := timeline.Normalize(doc)
	if err != nil {
		t.Fatalf("Generated document does not normalise: %v", err)
	}
	if tl.Width != 1280 || tl.Height != 720 || len(tl.Tracks) != 1 {
		t.Fatalf("Unexpected timeline %dx%d with %d tracks", tl.Width, tl.Height, len(tl.Tracks))
	}
	scenes := tl.Tracks[0].Scenes
	if len(scenes) != 2 || tl.Duration() != 4 {
		t.Fatalf("Expected two 2s scenes, got %d scenes lasting %v", len(scenes), tl.Duration())
	}
	el := scenes[1].Elements[0]
	if el.Type != "pdf" || el.Page != 1 || el.X != 174 || el.Width != 932 {
		t.Errorf("Unexpected second page element: %+v", el)
	}
	if scenes[1].Transition == nil || scenes[1].Transition.Kind != timeline.TransitionFade {
		t.Errorf("Expected the default fade transition, got %+v", scenes[1].Transition)
	}
	if len(tl.Audio) != 1 || tl.Audio[0].URL != "music.mp3" {
		t.Errorf("Expected the soundtrack, got %+v", tl.Audio)
	}

	if _, err := d.Build(nil); err == nil {
		t.Error("Expected an error for an empty deck")
	}
}

func TestBuildSmartZoom(t *testing.T) {
	det, _ := analyzer.NewDetector("edges")
	d := New(Options{Width: 800, Height: 600, SlideDuration: 3, SmartZoom: true, Transition: "none"}, det, zerolog.Nop())

	doc, err := d.Build([]Slide{{
		Type: "image", Src: "slide.png", Width: 400, Height: 300,
		Render: func(int) (image.Image, error) {
			return slideImage(400, 300, image.Rect(50, 40, 150, 100)), nil
		},
	}})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if doc.Defaults != nil {
		t.Error("Transition none should not set defaults")
	}

	tl, err := timeline.Normalize(doc)
	if err != nil {
		t.Fatal(err)
	}
	sc := tl.Tracks[0].Scenes[0]
	if !near(sc.Duration, 3.5, 1e-9) {
		t.Errorf("Expected the slide stretched to 3.5s, got %v", sc.Duration)
	}
	kfs := sc.Elements[0].Keyframes
	if len(kfs) != 5 {
		t.Fatalf("Expected 5 keyframes, got %d", len(kfs))
	}
	focus := kfs[2]
	if focus.Time != 1.5 || focus.Scale != 3 || !near(focus.OffsetX, 600, 15) || !near(focus.OffsetY, 480, 15) {
		t.Errorf("Unexpected focus keyframe %+v", focus)
	}
	if last := kfs[4]; last.Scale != 1 || last.OffsetX != 0 || last.Time != 2.5 {
		t.Errorf("Expected the camera to return to the full slide, got %+v", last)
	}
}

func TestBuildKeepsLargestRegions(t *testing.T) {
	det := fixedDetector{
		{Rect: image.Rect(0, 0, 10, 10)},
		{Rect: image.Rect(0, 100, 200, 200)},
		{Rect: image.Rect(0, 300, 100, 350)},
	}
	d := New(Options{Width: 400, Height: 400, MaxRegions: 2, SmartZoom: true}, det, zerolog.Nop())
	focus := d.focus(det, image.Rect(0, 0, 400, 400), image.Rect(0, 0, 400, 400))
	if len(focus) != 2 || focus[0] != image.Rect(0, 100, 200, 200) || focus[1] != image.Rect(0, 300, 100, 350) {
		t.Errorf("Unexpected focus regions %v", focus)
	}
}

func TestBuildRenderError(t *testing.T) {
	boom := errors.New("broken page")
	det, _ := analyzer.NewDetector("")
	d := New(Options{SmartZoom: true}, det, zerolog.Nop())
	_, err := d.Build([]Slide{{Type: "image", Src: "x.png", Width: 10, Height: 10,
		Render: func(int) (image.Image, error) { return nil, boom }}})
	if !errors.Is(err, boom) {
		t.Errorf("Expected the render error, got %v", err)
	}
}

func TestFromImages(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.png", "a.png"} {
		f, err := os.Create(filepath.Join(dir, name))
		if err != nil {
			t.Fatal(err)
		}
		png.Encode(f, slideImage(64, 48))
		f.Close()
	}
	os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("skip"), 0644)

	paths, err := ListImages(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(paths) != 2 || filepath.Base(paths[0]) != "a.png" {
		t.Fatalf("Expected sorted images, got %v", paths)
	}

	doc, err := New(Options{Width: 640, Height: 480}, nil, zerolog.Nop()).FromImages(paths)
	if err != nil {
		t.Fatalf("FromImages failed: %v", err)
	}
	el := doc.Tracks[0].Scenes[0].Elements[0]
	if el.Type != "image" || el.Src != paths[0] || el.Width.Value != 640 || el.Height.Value != 480 {
		t.Errorf("Unexpected image element %+v", el)
	}

	if _, err := ListImages(t.TempDir()); err == nil {
		t.Error("Expected an error for a folder without images")
	}
}
