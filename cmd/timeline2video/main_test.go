package main

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/ivlev/timeline2video/internal/config"
)

func TestOutputName(t *testing.T) {
	now := time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC)
	got := outputName(filepath.Join("input", "my promo.yaml"), now)
	want := filepath.Join("output", "my_promo_2024-03-09_14-05-07.mp4")
	if got != want {
		t.Errorf("outputName() = %q, want %q", got, want)
	}
}

func TestApplyFlags(t *testing.T) {
	cfg := config.Default()
	cfg.Workers = 3
	cfg.VideoEncoder = "auto"

	applyFlags(cfg, "9:16", 0, 0, 25, 0, "libx264", 20, "/tmp/cache", true)

	if cfg.Preset != "9:16" || cfg.FPS != 25 || cfg.Quality != 20 {
		t.Errorf("Flags not applied: %+v", cfg)
	}
	if cfg.Workers != 3 {
		t.Errorf("Zero workers flag should keep settings value, got %d", cfg.Workers)
	}
	if cfg.VideoEncoder != "libx264" || cfg.CacheDir != "/tmp/cache" || !cfg.ShowStats {
		t.Errorf("Flags not applied: %+v", cfg)
	}
}

func TestIsDeck(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		path string
		want bool
	}{
		{filepath.Join(dir, "slides.PDF"), true},
		{dir, true},
		{filepath.Join(dir, "promo.yaml"), false},
		{filepath.Join(dir, "missing"), false},
	}
	for _, tt := range tests {
		if got := isDeck(tt.path); got != tt.want {
			t.Errorf("isDeck(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}
