// Package director turns slide decks (PDF pages or image folders) into
// timeline documents, optionally with a camera path that zooms into the
// regions the analyzer finds on each slide.
package director

import (
	"fmt"
	"image"
	"math"
	"sort"

	"github.com/rs/zerolog"

	"github.com/ivlev/timeline2video/internal/analyzer"
	"github.com/ivlev/timeline2video/internal/timeline"
)

type Options struct {
	Width  int
	Height int
	FPS    float64

	SlideDuration      float64
	Transition         string // "none" disables transitions
	TransitionDuration float64
	Background         string
	Audio              string // optional soundtrack URL or path

	SmartZoom  bool
	MaxRegions int
	MinDwell   float64 // seconds per region
	MaxDwell   float64
}

func DefaultOptions() Options {
	return Options{
		Width:              1280,
		Height:             720,
		FPS:                timeline.DefaultFPS,
		SlideDuration:      3,
		Transition:         timeline.TransitionFade,
		TransitionDuration: 0.5,
		Background:         "#000000",
		MaxRegions:         4,
		MinDwell:           1,
		MaxDwell:           3,
	}
}

// Slide is one page of the deck.
type Slide struct {
	Type string // "pdf" or "image"
	Src  string
	Page int // 1-based, pdf only
	// Natural size: points for PDF pages, pixels for images.
	Width, Height float64
	// Render rasterises the slide at about heightPx pixels high. Only used
	// for smart zoom.
	Render func(heightPx int) (image.Image, error)
}

type Director struct {
	opts     Options
	detector analyzer.Detector
	log      zerolog.Logger
}

// New fills unset options from DefaultOptions. detector may be nil when
// smart zoom is off.
func New(opts Options, detector analyzer.Detector, log zerolog.Logger) *Director {
	def := DefaultOptions()
	if opts.Width <= 0 || opts.Height <= 0 {
		opts.Width, opts.Height = def.Width, def.Height
	}
	if opts.FPS <= 0 {
		opts.FPS = def.FPS
	}
	if opts.SlideDuration <= 0 {
		opts.SlideDuration = def.SlideDuration
	}
	if opts.Transition == "" {
		opts.Transition = def.Transition
	}
	if opts.TransitionDuration <= 0 {
		opts.TransitionDuration = def.TransitionDuration
	}
	if opts.Background == "" {
		opts.Background = def.Background
	}
	if opts.MaxRegions <= 0 {
		opts.MaxRegions = def.MaxRegions
	}
	if opts.MinDwell <= 0 {
		opts.MinDwell = def.MinDwell
	}
	if opts.MaxDwell < opts.MinDwell {
		opts.MaxDwell = math.Max(def.MaxDwell, opts.MinDwell)
	}
	return &Director{opts: opts, detector: detector, log: log}
}

// Build creates a single-track document with one scene per slide.
func (d *Director) Build(slides []Slide) (*timeline.Document, error) {
	if len(slides) == 0 {
		return nil, fmt.Errorf("no slides")
	}

	scenes := make([]timeline.SceneDoc, 0, len(slides))
	for i, s := range slides {
		sc, err := d.scene(s)
		if err != nil {
			return nil, fmt.Errorf("slide %d: %w", i+1, err)
		}
		scenes = append(scenes, sc)
	}

	doc := &timeline.Document{
		Width:  timeline.N(float64(d.opts.Width)),
		Height: timeline.N(float64(d.opts.Height)),
		FPS:    timeline.N(d.opts.FPS),
		Tracks: []timeline.TrackDoc{{Kind: string(timeline.KindVisual), Scenes: scenes}},
	}
	if d.opts.Transition != "none" {
		doc.Defaults = &timeline.DefaultsDoc{Transition: &timeline.TransitionDoc{
			Kind:     d.opts.Transition,
			Duration: timeline.N(d.opts.TransitionDuration),
		}}
	}
	if d.opts.Audio != "" {
		doc.Audio = []timeline.AudioDoc{{URL: d.opts.Audio, FadeOut: timeline.N(1)}}
	}
	return doc, nil
}

func (d *Director) scene(s Slide) (timeline.SceneDoc, error) {
	box := fit(s.Width, s.Height, d.opts.Width, d.opts.Height)
	el := timeline.ElementDoc{
		Type:   s.Type,
		Src:    s.Src,
		X:      timeline.N(float64(box.Min.X)),
		Y:      timeline.N(float64(box.Min.Y)),
		Width:  timeline.N(float64(box.Dx())),
		Height: timeline.N(float64(box.Dy())),
	}
	if s.Type == "pdf" {
		el.Page = timeline.N(float64(s.Page))
	}

	duration := d.opts.SlideDuration
	if d.opts.SmartZoom && d.detector != nil && s.Render != nil {
		img, err := s.Render(box.Dy())
		if err != nil {
			return timeline.SceneDoc{}, err
		}
		regions, err := d.detector.Detect(img)
		if err != nil {
			return timeline.SceneDoc{}, err
		}
		focus := d.focus(regions, img.Bounds(), box)
		d.log.Debug().Str("src", s.Src).Int("page", s.Page).Int("regions", len(regions)).Int("focus", len(focus)).Msg("slide analysed")
		if len(focus) > 0 {
			el.Keyframes, duration = d.camera(focus, box, duration)
		}
	}

	return timeline.SceneDoc{
		Duration: timeline.N(duration),
		BgColor:  d.opts.Background,
		Elements: []timeline.ElementDoc{el},
	}, nil
}

// fit centres a w×h slide in the canvas keeping its aspect ratio.
func fit(w, h float64, canvasW, canvasH int) image.Rectangle {
	if w <= 0 || h <= 0 {
		return image.Rect(0, 0, canvasW, canvasH)
	}
	s := math.Min(float64(canvasW)/w, float64(canvasH)/h)
	bw := int(math.Round(w * s))
	bh := int(math.Round(h * s))
	x := (canvasW - bw) / 2
	y := (canvasH - bh) / 2
	return image.Rect(x, y, x+bw, y+bh)
}

// focus keeps the largest regions, maps them from image to canvas
// coordinates and puts them in reading order.
func (d *Director) focus(regions []analyzer.Region, bounds, box image.Rectangle) []image.Rectangle {
	if len(regions) == 0 || bounds.Empty() {
		return nil
	}
	byArea := make([]analyzer.Region, len(regions))
	copy(byArea, regions)
	sort.SliceStable(byArea, func(i, j int) bool {
		return area(byArea[i].Rect) > area(byArea[j].Rect)
	})
	if len(byArea) > d.opts.MaxRegions {
		byArea = byArea[:d.opts.MaxRegions]
	}

	sx := float64(box.Dx()) / float64(bounds.Dx())
	sy := float64(box.Dy()) / float64(bounds.Dy())
	rects := make([]image.Rectangle, len(byArea))
	for i, r := range byArea {
		rel := r.Rect.Sub(bounds.Min)
		rects[i] = image.Rect(
			box.Min.X+int(math.Round(float64(rel.Min.X)*sx)),
			box.Min.Y+int(math.Round(float64(rel.Min.Y)*sy)),
			box.Min.X+int(math.Round(float64(rel.Max.X)*sx)),
			box.Min.Y+int(math.Round(float64(rel.Max.Y)*sy)),
		)
	}
	readingOrder(rects)
	return rects
}

func area(r image.Rectangle) int { return r.Dx() * r.Dy() }

// readingOrder sorts top-to-bottom, then left-to-right within a row. A row
// takes every rect whose top is within sameRow pixels of the row's first
// top, so the order does not depend on the input order.
func readingOrder(rects []image.Rectangle) {
	const sameRow = 20
	sort.Slice(rects, func(i, j int) bool {
		if rects[i].Min.Y != rects[j].Min.Y {
			return rects[i].Min.Y < rects[j].Min.Y
		}
		return rects[i].Min.X < rects[j].Min.X
	})
	for start := 0; start < len(rects); {
		end := start + 1
		for end < len(rects) && rects[end].Min.Y-rects[start].Min.Y <= sameRow {
			end++
		}
		row := rects[start:end]
		sort.Slice(row, func(i, j int) bool {
			if row[i].Min.X != row[j].Min.X {
				return row[i].Min.X < row[j].Min.X
			}
			return row[i].Min.Y < row[j].Min.Y
		})
		start = end
	}
}
