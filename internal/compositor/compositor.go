// Package compositor turns a timeline into raw RGBA frames.
package compositor

import (
	"context"
	"fmt"
	"image"
	"math"
	"runtime"
	"sort"

	"github.com/rs/zerolog"
	"golang.org/x/image/draw"
	"golang.org/x/sync/errgroup"

	"github.com/ivlev/timeline2video/internal/assets"
	"github.com/ivlev/timeline2video/internal/effects"
	"github.com/ivlev/timeline2video/internal/paint"
	"github.com/ivlev/timeline2video/internal/system"
	"github.com/ivlev/timeline2video/internal/timeline"
)

type Options struct {
	// Workers bounds concurrent fetches in PreloadAssets.
	Workers int
	Logger  zerolog.Logger
}

// Compositor renders frames of one timeline. It owns a paint session and a
// scratch image pool; Close releases both.
type Compositor struct {
	tl       *timeline.Timeline
	registry *paint.Registry
	loader   paint.Fetcher
	session  *paint.Session
	pool     *system.ImagePool
	log      zerolog.Logger
	workers  int

	bounds image.Rectangle
	total  int

	// trackOrder lists track indices by ascending zIndex; elemOrder[t][s]
	// lists element indices of scene s of track t the same way.
	trackOrder []int
	elemOrder  [][][]int
	painters   map[string]paint.Painter
}

// New prepares a compositor. Backgrounds always paint through a session
// over loader; a nil registry uses the built-in painters on that session.
// Every visual element type must have a painter.
func New(tl *timeline.Timeline, registry *paint.Registry, loader paint.Fetcher, opts Options) (*Compositor, error) {
	if tl == nil || tl.Width <= 0 || tl.Height <= 0 || tl.FPS <= 0 {
		return nil, fmt.Errorf("compositor: invalid timeline")
	}

	c := &Compositor{
		tl:       tl,
		registry: registry,
		loader:   loader,
		pool:     system.NewImagePool(),
		log:      opts.Logger,
		workers:  opts.Workers,
		bounds:   image.Rect(0, 0, tl.Width, tl.Height),
		total:    timeline.FrameCount(tl.Duration(), tl.FPS),
		session:  paint.NewSession(loader),
		painters: make(map[string]paint.Painter),
	}
	if c.workers <= 0 {
		c.workers = runtime.NumCPU()
	}
	if c.registry == nil {
		c.registry = paint.DefaultRegistry(c.session)
	}

	c.trackOrder = make([]int, len(tl.Tracks))
	for i := range c.trackOrder {
		c.trackOrder[i] = i
	}
	sort.SliceStable(c.trackOrder, func(a, b int) bool {
		return tl.Tracks[c.trackOrder[a]].ZIndex < tl.Tracks[c.trackOrder[b]].ZIndex
	})

	c.elemOrder = make([][][]int, len(tl.Tracks))
	for ti := range tl.Tracks {
		tr := &tl.Tracks[ti]
		c.elemOrder[ti] = make([][]int, len(tr.Scenes))
		for si := range tr.Scenes {
			els := tr.Scenes[si].Elements
			order := make([]int, 0, len(els))
			for ei := range els {
				el := &els[ei]
				if isAudio(el) {
					continue
				}
				if _, ok := c.painters[el.Type]; !ok {
					p, err := c.registry.Lookup(el.Type)
					if err != nil {
						return nil, fmt.Errorf("tracks[%d].scenes[%d].elements[%d]: %w", ti, si, ei, err)
					}
					c.painters[el.Type] = p
				}
				order = append(order, ei)
			}
			sort.SliceStable(order, func(a, b int) bool {
				return els[order[a]].ZIndex < els[order[b]].ZIndex
			})
			c.elemOrder[ti][si] = order
		}
	}

	return c, nil
}

func isAudio(el *timeline.Element) bool {
	return el.Audio != nil || el.Type == "audio"
}

// TotalFrames is the number of frames covering the whole timeline.
func (c *Compositor) TotalFrames() int { return c.total }

// FrameSize is the byte length of every frame.
func (c *Compositor) FrameSize() int { return c.tl.Width * c.tl.Height * 4 }

// RenderFrame returns frame i as tightly packed RGBA bytes in a new slice.
// Indices outside [0, TotalFrames) yield an opaque black frame.
func (c *Compositor) RenderFrame(ctx context.Context, i int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	canvas := image.NewRGBA(c.bounds)
	for p := 3; p < len(canvas.Pix); p += 4 {
		canvas.Pix[p] = 255
	}
	if i < 0 || i >= c.total {
		return canvas.Pix, nil
	}

	t := float64(i) / c.tl.FPS
	for _, ti := range c.trackOrder {
		tr := &c.tl.Tracks[ti]
		if tr.Kind == timeline.KindAudio {
			continue
		}
		si, local, ok := tr.SceneAt(t - tr.Start)
		if !ok {
			continue
		}
		if err := c.renderTrackScene(ctx, canvas, ti, si, local); err != nil {
			return nil, fmt.Errorf("frame %d: %w", i, err)
		}
	}
	return canvas.Pix, nil
}

func (c *Compositor) renderTrackScene(ctx context.Context, canvas *image.RGBA, ti, si int, local float64) error {
	tr := &c.tl.Tracks[ti]
	sc := &tr.Scenes[si]

	tx := sc.Transition
	if tx == nil || tx.Duration <= 0 || local >= tx.Duration {
		return c.renderScene(ctx, canvas, ti, si, local)
	}

	to := c.pool.Get(c.bounds)
	from := c.pool.Get(c.bounds)
	out := c.pool.Get(c.bounds)
	defer func() {
		c.pool.Put(to)
		c.pool.Put(from)
		c.pool.Put(out)
	}()

	if err := c.renderScene(ctx, to, ti, si, local); err != nil {
		return err
	}
	if si > 0 {
		prev := &tr.Scenes[si-1]
		if err := c.renderScene(ctx, from, ti, si-1, math.Max(0, prev.Duration-1/c.tl.FPS)); err != nil {
			return err
		}
	}

	effects.NewTransition(tx.Kind).Blend(out, from, to, local/tx.Duration)
	draw.Draw(canvas, c.bounds, out, image.Point{}, draw.Over)
	return nil
}

// renderScene paints the background and active elements of a scene over
// dst at scene-local time local.
func (c *Compositor) renderScene(ctx context.Context, dst *image.RGBA, ti, si int, local float64) error {
	sc := &c.tl.Tracks[ti].Scenes[si]
	if err := c.session.PaintBackground(dst, sc.Background); err != nil {
		return fmt.Errorf("track %d scene %d: %w", ti, si, err)
	}

	for _, ei := range c.elemOrder[ti][si] {
		el := &sc.Elements[ei]
		if !el.ActiveAt(local) {
			continue
		}
		elLocal := math.Max(0, local-el.Start)
		state := effects.Evaluate(el, elLocal)
		opacity := el.Opacity * state.Opacity
		if opacity <= 0 {
			continue
		}

		req := &paint.Request{
			Surface:       dst,
			Element:       el,
			Width:         c.tl.Width,
			Height:        c.tl.Height,
			LocalTime:     elLocal,
			SceneDuration: sc.Duration,
			Opacity:       opacity,
			State:         state,
		}
		if err := c.painters[el.Type].Paint(ctx, req); err != nil {
			return fmt.Errorf("track %d scene %d element %d (%s): %w", ti, si, ei, el.Type, err)
		}
	}
	return nil
}

// PreloadAssets fetches every asset the timeline references before the
// first frame is rendered and returns the timeline's audio sources with
// their local paths filled in.
func (c *Compositor) PreloadAssets(ctx context.Context) ([]timeline.AudioSource, error) {
	sources := c.tl.AudioSources()
	if c.loader == nil {
		if refs := c.tl.VisualAssets(); len(refs) > 0 || len(sources) > 0 {
			return nil, fmt.Errorf("preload: no asset loader configured")
		}
		return sources, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)

	for _, ref := range c.tl.VisualAssets() {
		g.Go(func() error {
			if _, err := c.loader.Fetch(gctx, ref.URL, ref.Kind); err != nil {
				return fmt.Errorf("preload %s: %w", ref.URL, err)
			}
			return nil
		})
	}
	for i := range sources {
		g.Go(func() error {
			a, err := c.loader.Fetch(gctx, sources[i].URL, assets.KindAudio)
			if err != nil {
				return fmt.Errorf("preload %s: %w", sources[i].URL, err)
			}
			sources[i].LocalPath = a.LocalPath
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	c.log.Debug().Int("audio", len(sources)).Msg("assets preloaded")
	return sources, nil
}

// Close releases the paint session and the scratch buffers.
func (c *Compositor) Close() error {
	c.pool.Reset()
	return c.session.Close()
}
