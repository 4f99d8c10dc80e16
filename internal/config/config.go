package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds render settings. Zero Width/Height/FPS keep the values from
// the timeline document.
type Config struct {
	InputPath   string  `yaml:"input"`
	OutputVideo string  `yaml:"output"`
	Preset      string  `yaml:"preset"`
	Width       int     `yaml:"width"`
	Height      int     `yaml:"height"`
	FPS         float64 `yaml:"fps"`

	// Workers bounds concurrent asset downloads during preload.
	Workers int `yaml:"workers"`

	VideoEncoder string `yaml:"encoder"` // "" or "auto" detects the best H.264 encoder
	Quality      int    `yaml:"quality"` // 0 picks a default for the encoder
	X264Preset   string `yaml:"x264_preset"`

	FFmpegPath  string `yaml:"ffmpeg_path"`
	FFprobePath string `yaml:"ffprobe_path"`
	CacheDir    string `yaml:"cache_dir"`
	TempDir     string `yaml:"temp_dir"`

	ShowStats    bool   `yaml:"show_stats"`
	BenchmarkLog string `yaml:"benchmark_log"`
	BuildVersion string `yaml:"-"`
}

func Default() *Config {
	return &Config{
		Workers:      runtime.NumCPU(),
		VideoEncoder: "auto",
		X264Preset:   "medium",
		FFmpegPath:   "ffmpeg",
		FFprobePath:  "ffprobe",
		BenchmarkLog: "benchmark.log",
	}
}

// Load reads a YAML settings file over the defaults. An empty path searches
// the usual locations; no file at all is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = findConfigFile()
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, err
		}
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("%s: %w", path, err)
			}
		}
	}

	cfg.ApplyEnv()
	return cfg, nil
}

func findConfigFile() string {
	candidates := []string{
		"./render.yaml",
		"./render.yml",
		filepath.Join(os.Getenv("HOME"), ".timeline2video", "config.yaml"),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// ApplyEnv overrides settings from FFMPEG_PATH, FFPROBE_PATH, T2V_CACHE_DIR
// and T2V_WORKERS.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("FFMPEG_PATH"); v != "" {
		c.FFmpegPath = v
	}
	if v := os.Getenv("FFPROBE_PATH"); v != "" {
		c.FFprobePath = v
	}
	if v := os.Getenv("T2V_CACHE_DIR"); v != "" {
		c.CacheDir = v
	}
	if v := os.Getenv("T2V_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Workers = n
		}
	}
}

// Save writes the settings as YAML.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// PresetSize maps a format preset to its frame size.
func PresetSize(preset string) (width, height int, ok bool) {
	switch preset {
	case "16:9":
		return 1280, 720, true
	case "9:16":
		return 720, 1280, true
	case "4:5":
		return 1080, 1350, true
	}
	return 0, 0, false
}

// DefaultQuality returns the quality used when none is configured.
func DefaultQuality(encoder string) int {
	switch encoder {
	case "h264_videotoolbox":
		return 75 // bitrate = Q*100 kbit/s
	case "h264_nvenc":
		return 28 // CRF equivalent for NVENC
	default:
		return 23 // standard x264 CRF
	}
}

// EncoderParams holds the resolved encoder choice passed to ffmpeg.
type EncoderParams struct {
	Name    string
	Quality int
	Preset  string
}

// Encoder resolves the configured encoder. detected is used when the
// setting is empty or "auto".
func (c *Config) Encoder(detected string) EncoderParams {
	name := c.VideoEncoder
	if name == "" || name == "auto" {
		name = detected
	}
	if name == "" {
		name = "libx264"
	}
	q := c.Quality
	if q <= 0 {
		q = DefaultQuality(name)
	}
	preset := c.X264Preset
	if preset == "" {
		preset = "medium"
	}
	return EncoderParams{Name: name, Quality: q, Preset: preset}
}

// Args returns the ffmpeg quality flags for the encoder.
func (p EncoderParams) Args() []string {
	args := []string{"-c:v", p.Name}
	switch p.Name {
	case "h264_videotoolbox":
		// VideoToolbox does not accept -q:v on every version, so use a bitrate.
		args = append(args, "-b:v", fmt.Sprintf("%dk", p.Quality*100))
	case "h264_nvenc":
		args = append(args, "-cq", strconv.Itoa(p.Quality), "-preset", "p4")
	default: // libx264
		args = append(args, "-crf", strconv.Itoa(p.Quality), "-preset", p.Preset)
	}
	return args
}
