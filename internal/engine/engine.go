package engine

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ivlev/timeline2video/internal/assets"
	"github.com/ivlev/timeline2video/internal/compositor"
	"github.com/ivlev/timeline2video/internal/config"
	"github.com/ivlev/timeline2video/internal/paint"
	"github.com/ivlev/timeline2video/internal/system"
	"github.com/ivlev/timeline2video/internal/timeline"
	"github.com/ivlev/timeline2video/internal/video"
)

// ProgressFunc receives the overall progress in percent. Returning an error
// aborts the render.
type ProgressFunc func(percent int, stage string) error

type VideoProject struct {
	Config *config.Config

	runner   video.Runner
	registry *paint.Registry
	client   *http.Client
	progress ProgressFunc
	log      zerolog.Logger
	out      io.Writer
	baseDir  string
	detect   func(ctx context.Context) string
	probe    func(ctx context.Context, path string) (float64, error)
}

type Option func(*VideoProject)

// WithRunner replaces the process runner used for ffmpeg.
func WithRunner(r video.Runner) Option {
	return func(p *VideoProject) { p.runner = r }
}

// WithRegistry replaces the built-in painters.
func WithRegistry(r *paint.Registry) Option {
	return func(p *VideoProject) { p.registry = r }
}

func WithHTTPClient(c *http.Client) Option {
	return func(p *VideoProject) { p.client = c }
}

func WithProgress(f ProgressFunc) Option {
	return func(p *VideoProject) { p.progress = f }
}

func WithLogger(l zerolog.Logger) Option {
	return func(p *VideoProject) { p.log = l }
}

// WithOutput sets where the performance report is printed.
func WithOutput(w io.Writer) Option {
	return func(p *VideoProject) { p.out = w }
}

// WithBaseDir resolves relative asset paths against dir, usually the
// directory of the timeline file.
func WithBaseDir(dir string) Option {
	return func(p *VideoProject) { p.baseDir = dir }
}

// WithEncoderDetector replaces ffmpeg encoder detection.
func WithEncoderDetector(f func(ctx context.Context) string) Option {
	return func(p *VideoProject) { p.detect = f }
}

// WithDurationProbe replaces ffprobe for measuring audio files.
func WithDurationProbe(f func(ctx context.Context, path string) (float64, error)) Option {
	return func(p *VideoProject) { p.probe = f }
}

func NewVideoProject(cfg *config.Config, opts ...Option) *VideoProject {
	if cfg == nil {
		cfg = config.Default()
	}
	p := &VideoProject{
		Config: cfg,
		log:    zerolog.Nop(),
		out:    os.Stdout,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.detect == nil {
		p.detect = func(ctx context.Context) string {
			return system.DetectEncoder(ctx, cfg.FFmpegPath, runtime.GOOS)
		}
	}
	if p.probe == nil {
		p.probe = func(ctx context.Context, path string) (float64, error) {
			return system.MediaDuration(ctx, cfg.FFprobePath, path)
		}
	}
	return p
}

// Result describes a finished render.
type Result struct {
	OutputPath string
	SessionID  string
	Frames     int
	Duration   float64
	Elapsed    time.Duration
}

type timings struct {
	preload time.Duration
	render  time.Duration
	encode  time.Duration
	mix     time.Duration
}

// Run renders doc into Config.OutputVideo. On failure no file is left at the
// output path and the error is a *RenderError.
func (p *VideoProject) Run(ctx context.Context, doc *timeline.Document) (res *Result, err error) {
	startTime := time.Now()
	sessionID := uuid.NewString()
	log := p.log.With().Str("session", sessionID[:8]).Logger()
	cfg := p.Config

	tl, err := timeline.Normalize(doc)
	if err != nil {
		return nil, stageErr(StageValidate, err)
	}
	p.applyOverrides(tl)
	if cfg.OutputVideo == "" {
		return nil, stageErr(StageValidate, fmt.Errorf("no output path"))
	}
	p.checkMemory(log, tl)

	tempDir, err := os.MkdirTemp(cfg.TempDir, "timeline2video_"+sessionID[:8]+"_")
	if err != nil {
		return nil, stageErr(StageLoad, err)
	}
	defer os.RemoveAll(tempDir)

	loaderOpts := []assets.Option{assets.WithLogger(log), assets.WithBaseDir(p.baseDir)}
	if p.client != nil {
		loaderOpts = append(loaderOpts, assets.WithHTTPClient(p.client))
	}
	loader, err := assets.New(cfg.CacheDir, loaderOpts...)
	if err != nil {
		return nil, stageErr(StageLoad, err)
	}
	defer func() {
		if cerr := loader.Cleanup(); cerr != nil {
			log.Warn().Err(cerr).Msg("asset cleanup failed")
		}
	}()

	comp, err := compositor.New(tl, p.registry, loader, compositor.Options{Workers: cfg.Workers, Logger: log})
	if err != nil {
		return nil, stageErr(StageLoad, err)
	}
	defer comp.Close()

	total := comp.TotalFrames()
	log.Info().
		Str("size", fmt.Sprintf("%dx%d", tl.Width, tl.Height)).
		Float64("fps", tl.FPS).
		Int("tracks", len(tl.Tracks)).
		Int("frames", total).
		Msg("rendering timeline")

	var tm timings
	t0 := time.Now()
	sources, err := comp.PreloadAssets(ctx)
	if err != nil {
		return nil, stageErr(StagePreload, err)
	}
	p.measureAudio(ctx, log, sources)
	tm.preload = time.Since(t0)
	if err := p.report(5, StagePreload); err != nil {
		return nil, err
	}

	detected := ""
	if cfg.VideoEncoder == "" || cfg.VideoEncoder == "auto" {
		detected = p.detect(ctx)
	}
	params := cfg.Encoder(detected)
	if params.Name != "libx264" {
		log.Info().Str("encoder", params.Name).Msg("hardware acceleration detected")
	}

	enc := video.NewEncoder(video.Options{
		Width:   tl.Width,
		Height:  tl.Height,
		FPS:     tl.FPS,
		Encoder: params,
		FFmpeg:  cfg.FFmpegPath,
		Logger:  log,
	}, p.runner)
	videoOnly := filepath.Join(tempDir, "video_only.mp4")
	if err := enc.Start(ctx, videoOnly); err != nil {
		return nil, stageErr(StageEncode, err)
	}
	defer enc.Abort()

	if err := p.report(10, StageRender); err != nil {
		return nil, err
	}
	if err := p.encodeFrames(ctx, comp, enc, &tm); err != nil {
		return nil, err
	}

	t0 = time.Now()
	if err := enc.Finish(ctx); err != nil {
		return nil, stageErr(StageFinish, err)
	}
	tm.encode += time.Since(t0)
	if err := p.report(85, StageFinish); err != nil {
		return nil, err
	}

	if dir := filepath.Dir(cfg.OutputVideo); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, stageErr(StageMix, err)
		}
	}
	t0 = time.Now()
	mixer := &video.Mixer{FFmpeg: cfg.FFmpegPath, Runner: p.runner, Logger: log}
	if err := mixer.MixAudio(ctx, videoOnly, cfg.OutputVideo, sources, tl.Duration()); err != nil {
		return nil, stageErr(StageMix, err)
	}
	tm.mix = time.Since(t0)
	defer func() {
		if err != nil {
			os.Remove(cfg.OutputVideo)
		}
	}()
	if err := p.report(95, StageMix); err != nil {
		return nil, err
	}

	res = &Result{
		OutputPath: cfg.OutputVideo,
		SessionID:  sessionID,
		Frames:     total,
		Duration:   tl.Duration(),
		Elapsed:    time.Since(startTime),
	}
	if cfg.ShowStats {
		p.showStats(log, res, tm, loader.Stats())
	}
	if err := p.report(100, "done"); err != nil {
		return nil, err
	}
	return res, nil
}

// encodeFrames renders every frame while the previous one drains into
// ffmpeg. Only one write is ever outstanding.
func (p *VideoProject) encodeFrames(ctx context.Context, comp *compositor.Compositor, enc *video.Encoder, tm *timings) error {
	total := comp.TotalFrames()
	var pending <-chan error
	wait := func() error {
		if pending == nil {
			return nil
		}
		t0 := time.Now()
		err := <-pending
		tm.encode += time.Since(t0)
		pending = nil
		return err
	}

	lastPct := 10
	for i := 0; i < total; i++ {
		t0 := time.Now()
		frame, err := comp.RenderFrame(ctx, i)
		tm.render += time.Since(t0)
		if err != nil {
			wait()
			return stageErr(StageRender, err)
		}

		if err := wait(); err != nil {
			return stageErr(StageEncode, err)
		}
		pending = enc.Write(frame)

		if pct := 10 + 70*(i+1)/total; pct > lastPct {
			lastPct = pct
			if err := p.report(pct, StageRender); err != nil {
				wait()
				return err
			}
		}
	}
	if err := wait(); err != nil {
		return stageErr(StageEncode, err)
	}
	return nil
}

func (p *VideoProject) report(pct int, stage string) error {
	if p.progress == nil {
		return nil
	}
	if err := p.progress(pct, stage); err != nil {
		return stageErr(StageProgress, err)
	}
	return nil
}

// applyOverrides lets render settings replace the document's frame size
// and rate.
func (p *VideoProject) applyOverrides(tl *timeline.Timeline) {
	cfg := p.Config
	if w, h, ok := config.PresetSize(cfg.Preset); ok {
		tl.Width, tl.Height = w, h
	} else {
		if cfg.Width > 0 {
			tl.Width = cfg.Width
		}
		if cfg.Height > 0 {
			tl.Height = cfg.Height
		}
	}
	if cfg.FPS > 0 {
		tl.FPS = cfg.FPS
	}
}

// measureAudio bounds sources that fade out but have no known end, so the
// fade lands where the file actually stops.
func (p *VideoProject) measureAudio(ctx context.Context, log zerolog.Logger, sources []timeline.AudioSource) {
	for i := range sources {
		src := &sources[i]
		if src.FadeOut <= 0 || src.Loop || src.Limit > 0 || src.TrimEnd > 0 {
			continue
		}
		d, err := p.probe(ctx, src.LocalPath)
		if err != nil {
			log.Warn().Err(err).Str("url", src.URL).Msg("could not measure audio, fade-out placed at the timeline end")
			continue
		}
		if l := d - src.TrimStart; l > 0 {
			src.Limit = l
		}
	}
}

func (p *VideoProject) checkMemory(log zerolog.Logger, tl *timeline.Timeline) {
	m, err := system.MemoryReport()
	if err != nil {
		log.Debug().Err(err).Msg("memory report unavailable")
		return
	}
	// canvas plus three transition scratch layers and the frame in flight
	need := system.FrameBytes(tl.Width, tl.Height) * 5
	if m.Available > 0 && need > m.Available {
		log.Warn().Str("need", system.MB(need)).Str("available", system.MB(m.Available)).Msg("frame buffers may not fit in memory")
	}
}

func (p *VideoProject) showStats(log zerolog.Logger, res *Result, tm timings, st assets.Stats) {
	cfg := p.Config
	fps := float64(res.Frames) / res.Elapsed.Seconds()
	rss := "n/a"
	if m, err := system.MemoryReport(); err == nil {
		rss = system.MB(m.ProcessRSS)
	}

	report := fmt.Sprintf(
		"--- [PERFORMANCE REPORT] ---\n"+
			"Build: %s\n"+
			"Total Time: %.2fs\n"+
			"Preload: %.2fs (%d downloads, %d cache hits)\n"+
			"Rendering (CPU): %.2fs\n"+
			"Encoding wait: %.2fs\n"+
			"Audio mix: %.2fs\n"+
			"Effective FPS: %.2f\n"+
			"Process RSS: %s\n"+
			"----------------------------\n",
		cfg.BuildVersion, res.Elapsed.Seconds(), tm.preload.Seconds(), st.Downloads, st.Hits,
		tm.render.Seconds(), tm.encode.Seconds(), tm.mix.Seconds(), fps, rss,
	)
	fmt.Fprint(p.out, report)

	if cfg.BenchmarkLog == "" {
		return
	}
	logEntry := fmt.Sprintf("[%s] Build: %s | Input: %s | Frames: %d | Total: %.2fs | Render: %.2fs | Encode: %.2fs | FPS: %.2f\n",
		time.Now().Format("2006-01-02 15:04:05"),
		cfg.BuildVersion,
		filepath.Base(cfg.InputPath),
		res.Frames,
		res.Elapsed.Seconds(),
		tm.render.Seconds(),
		tm.encode.Seconds(),
		fps,
	)
	f, err := os.OpenFile(cfg.BenchmarkLog, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		log.Warn().Err(err).Msg("could not write benchmark log")
		return
	}
	defer f.Close()
	f.WriteString(logEntry)
}
