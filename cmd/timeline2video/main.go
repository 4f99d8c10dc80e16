package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/ivlev/timeline2video/internal/analyzer"
	"github.com/ivlev/timeline2video/internal/config"
	"github.com/ivlev/timeline2video/internal/director"
	"github.com/ivlev/timeline2video/internal/engine"
	"github.com/ivlev/timeline2video/internal/logging"
	"github.com/ivlev/timeline2video/internal/system"
	"github.com/ivlev/timeline2video/internal/timeline"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	// .env is optional
	_ = godotenv.Load()

	system.InitResourceLimits()

	for _, d := range []string{"input", "input/audio", "output"} {
		os.MkdirAll(d, 0755)
	}

	configPtr := flag.String("config", "", "Settings file (default: render.yaml or ~/.timeline2video/config.yaml)")
	inputPtr := flag.String("input", "", "Timeline document (YAML/JSON), PDF or image folder (default: newest file in input/)")
	outputPtr := flag.String("output", "", "Output video (default: generated in output/)")
	presetPtr := flag.String("preset", "", "Frame size preset: 16:9, 9:16 (Shorts/TikTok), 4:5 (Instagram)")
	widthPtr := flag.Int("width", 0, "Override the document width")
	heightPtr := flag.Int("height", 0, "Override the document height")
	fpsPtr := flag.Float64("fps", 0, "Override the document FPS")
	workersPtr := flag.Int("workers", 0, "Concurrent asset downloads (0: from settings)")
	encoderPtr := flag.String("encoder", "", "H.264 encoder: auto, libx264, h264_videotoolbox, h264_nvenc")
	qualityPtr := flag.Int("quality", 0, "Video quality (0 - auto, x264: CRF 1-51, VideoToolbox: bitrate = Q*100kbit/s)")
	cachePtr := flag.String("cache-dir", "", "Asset cache directory (default: private temp dir)")
	statsPtr := flag.Bool("stats", false, "Print the performance report and append to benchmark.log")
	checkPtr := flag.Bool("check", false, "Validate the timeline and exit")
	upgradePtr := flag.String("upgrade-to", "", "Write the timeline in the tracks form to this path and exit")
	slideDurationPtr := flag.Float64("slide-duration", 3, "Seconds per page or image when rendering a PDF or image folder")
	smartZoomPtr := flag.Bool("smart-zoom", false, "Zoom into detected text blocks of each page")
	detectorPtr := flag.String("detector", "edges", "Region detector for -smart-zoom: edges, none")
	audioPtr := flag.String("audio", "", "Soundtrack for a PDF or image folder (default: newest file in input/audio/)")
	saveTimelinePtr := flag.String("save-timeline", "", "Save the timeline generated from a PDF or image folder")
	saveConfigPtr := flag.String("save-config", "", "Write the effective settings to this YAML file and exit")
	verbosePtr := flag.Bool("verbose", false, "Debug logging")

	flag.Parse()

	logging.Init(*verbosePtr)
	log := logging.WithComponent("cli")

	cfg, err := config.Load(*configPtr)
	if err != nil {
		fatalf("[-] Settings error: %v", err)
	}
	cfg.BuildVersion = version
	applyFlags(cfg, *presetPtr, *widthPtr, *heightPtr, *fpsPtr, *workersPtr, *encoderPtr, *qualityPtr, *cachePtr, *statsPtr)
	if *saveConfigPtr != "" {
		if err := cfg.Save(*saveConfigPtr); err != nil {
			fatalf("[-] Settings error: %v", err)
		}
		fmt.Printf("[+++] Settings written: %s\n", *saveConfigPtr)
		return
	}

	inputPath := *inputPtr
	if inputPath == "" {
		latest, err := system.FindLatest("input", ".yaml", ".yml", ".json", ".pdf")
		if err != nil {
			fatalf("[-] Error: %v. Put a timeline document into input/", err)
		}
		inputPath = latest
		fmt.Printf("[*] Selected timeline: %s\n", inputPath)
	}
	cfg.InputPath = inputPath

	var doc *timeline.Document
	if isDeck(inputPath) {
		audioPath := *audioPtr
		if audioPath == "" {
			if latest, err := system.FindLatest("input/audio", ".mp3", ".wav", ".m4a", ".aac", ".ogg"); err == nil {
				audioPath = latest
				fmt.Printf("[*] Selected audio: %s\n", audioPath)
			}
		}
		doc, err = buildDeck(inputPath, cfg, director.Options{
			SlideDuration: *slideDurationPtr,
			SmartZoom:     *smartZoomPtr,
			Audio:         audioPath,
		}, *detectorPtr)
		if err != nil {
			fatalf("[-] Slide deck error: %v", err)
		}
		if *saveTimelinePtr != "" {
			if err := timeline.WriteDocument(doc, *saveTimelinePtr); err != nil {
				fatalf("[-] %v", err)
			}
			fmt.Printf("[*] Timeline saved: %s\n", *saveTimelinePtr)
		}
	} else {
		doc, err = timeline.ReadDocument(inputPath)
		if err != nil {
			fatalf("[-] %v", err)
		}
	}

	if *upgradePtr != "" {
		doc.Upgrade()
		if err := timeline.WriteDocument(doc, *upgradePtr); err != nil {
			fatalf("[-] %v", err)
		}
		fmt.Printf("[+++] Timeline written: %s\n", *upgradePtr)
		return
	}
	if *checkPtr {
		tl, err := timeline.Normalize(doc)
		if err != nil {
			fatalf("[-] %v", err)
		}
		fmt.Printf("[+++] Timeline OK: %dx%d @ %.2f fps, %d tracks, %.2fs\n",
			tl.Width, tl.Height, tl.FPS, len(tl.Tracks), tl.Duration())
		return
	}

	cfg.OutputVideo = *outputPtr
	if cfg.OutputVideo == "" {
		cfg.OutputVideo = outputName(inputPath, time.Now())
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	project := engine.NewVideoProject(cfg,
		engine.WithLogger(logging.WithComponent("engine")),
		engine.WithBaseDir(filepath.Dir(inputPath)),
		engine.WithProgress(func(pct int, stage string) error {
			fmt.Printf("\r[*] %-8s %3d%%", stage, pct)
			if pct == 100 {
				fmt.Println()
			}
			return nil
		}),
	)

	res, err := project.Run(ctx, doc)
	if err != nil {
		fmt.Println()
		log.Error().Err(err).Msg("render failed")
		fatalf("[-] Project error: %v", err)
	}

	fmt.Printf("[+++] Success! %d frames, %.2fs of video in %s: %s\n",
		res.Frames, res.Duration, res.Elapsed.Round(time.Millisecond), res.OutputPath)
}

// isDeck reports whether path is a PDF or a folder of slides rather than a
// timeline document.
func isDeck(path string) bool {
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		return true
	}
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// buildDeck generates a timeline from a PDF or image folder, sized by the
// render settings.
func buildDeck(path string, cfg *config.Config, opts director.Options, variant string) (*timeline.Document, error) {
	// asset paths resolve against the input's directory when rendering
	path = absPath(path)
	if opts.Audio != "" && !strings.Contains(opts.Audio, "://") {
		opts.Audio = absPath(opts.Audio)
	}
	opts.Width, opts.Height = cfg.Width, cfg.Height
	if w, h, ok := config.PresetSize(cfg.Preset); ok {
		opts.Width, opts.Height = w, h
	}
	opts.FPS = cfg.FPS

	var detector analyzer.Detector
	if opts.SmartZoom {
		var err error
		if detector, err = analyzer.NewDetector(variant); err != nil {
			return nil, err
		}
	}
	d := director.New(opts, detector, logging.WithComponent("director"))

	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		return d.FromPDF(path)
	}
	images, err := director.ListImages(path)
	if err != nil {
		return nil, err
	}
	return d.FromImages(images)
}

func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}

// applyFlags lets command-line values win over the settings file.
func applyFlags(cfg *config.Config, preset string, width, height int, fps float64, workers int, encoder string, quality int, cacheDir string, stats bool) {
	if preset != "" {
		cfg.Preset = preset
	}
	if width > 0 {
		cfg.Width = width
	}
	if height > 0 {
		cfg.Height = height
	}
	if fps > 0 {
		cfg.FPS = fps
	}
	if workers > 0 {
		cfg.Workers = workers
	}
	if encoder != "" {
		cfg.VideoEncoder = encoder
	}
	if quality > 0 {
		cfg.Quality = quality
	}
	if cacheDir != "" {
		cfg.CacheDir = cacheDir
	}
	if stats {
		cfg.ShowStats = true
	}
}

// outputName derives output/<input>_<timestamp>.mp4.
func outputName(inputPath string, now time.Time) string {
	baseName := filepath.Base(inputPath)
	nameOnly := strings.TrimSuffix(baseName, filepath.Ext(baseName))
	cleanName := strings.ReplaceAll(nameOnly, " ", "_")
	timestamp := now.Format("2006-01-02_15-04-05")
	return filepath.Join("output", fmt.Sprintf("%s_%s.mp4", cleanName, timestamp))
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
