package timeline

import (
	"errors"
	"math"
	"path/filepath"
	"testing"
)

func mustNormalize(t *testing.T, src string) *Timeline {
	t.Helper()
	doc, err := Decode([]byte(src))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	tl, err := Normalize(doc)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	return tl
}

func TestNormalizeCoercesNumbers(t *testing.T) {
	tl := mustNormalize(t, `{"width": "1080", "height": 1920, "fps": "25", "tracks": [{"scenes": [{"duration": "1.5"}]}]}`)

	if tl.Width != 1080 || tl.Height != 1920 {
		t.Errorf("Expected 1080x1920, got %dx%d", tl.Width, tl.Height)
	}
	if tl.FPS != 25 {
		t.Errorf("Expected fps 25, got %f", tl.FPS)
	}
	if d := tl.Tracks[0].Scenes[0].Duration; d != 1.5 {
		t.Errorf("Expected scene duration 1.5, got %f", d)
	}
}

func TestNormalizeFPSFallback(t *testing.T) {
	tests := []struct {
		name string
		fps  string
	}{
		{"missing", ""},
		{"nan", `"fps": "NaN",`},
		{"inf", `"fps": ".inf",`},
		{"zero", `"fps": 0,`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tl := mustNormalize(t, `{"width": 10, "height": 10, `+tt.fps+` "scenes": [{"duration": 1}]}`)
			if tl.FPS != DefaultFPS {
				t.Errorf("Expected fps %v, got %v", DefaultFPS, tl.FPS)
			}
		})
	}
}

func TestNormalizeLegacyScenes(t *testing.T) {
	tl := mustNormalize(t, `
width: 640
height: 360
scenes:
  - duration: 2
    bgColor: "#ff0000"
  - duration: 3
`)
	if len(tl.Tracks) != 1 {
		t.Fatalf("Expected 1 track, got %d", len(tl.Tracks))
	}
	tr := tl.Tracks[0]
	if tr.Kind != KindVisual || tr.Start != 0 || tr.ZIndex != 0 {
		t.Errorf("Unexpected wrapped track: %+v", tr)
	}
	if len(tr.Scenes) != 2 || tr.Scenes[0].Background == nil || tr.Scenes[0].Background.Color != "#ff0000" {
		t.Errorf("Scenes not carried over: %+v", tr.Scenes)
	}
}

func TestNormalizeValidation(t *testing.T) {
	tests := []struct {
		name  string
		doc   string
		field string
	}{
		{"missing width", `{"height": 10, "scenes": [{"duration": 1}]}`, "width"},
		{"negative height", `{"width": 10, "height": -1, "scenes": [{"duration": 1}]}`, "height"},
		{"no tracks", `{"width": 10, "height": 10}`, "tracks"},
		{"missing duration", `{"width": 10, "height": 10, "scenes": [{}]}`, "tracks[0].scenes[0].duration"},
		{"zero duration", `{"width": 10, "height": 10, "tracks": [{"scenes": [{"duration": 0}]}]}`, "tracks[0].scenes[0].duration"},
		{"bad transition", `{"width": 10, "height": 10, "scenes": [{"duration": 1, "transition": {"kind": "spin"}}]}`, "tracks[0].scenes[0].transition.kind"},
		{"element without type", `{"width": 10, "height": 10, "scenes": [{"duration": 1, "elements": [{}]}]}`, "tracks[0].scenes[0].elements[0].type"},
		{"audio without url", `{"width": 10, "height": 10, "scenes": [{"duration": 1}], "audio": [{"volume": 1}]}`, "audio[0].url"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := Decode([]byte(tt.doc))
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			_, err = Normalize(doc)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Expected ValidationError, got %v", err)
			}
			if verr.Field != tt.field {
				t.Errorf("Expected field %q, got %q (%v)", tt.field, verr.Field, err)
			}
		})
	}
}

func TestDecodeRejectsNonNumeric(t *testing.T) {
	_, err := Decode([]byte(`{"width": "wide", "height": 10}`))
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Expected ValidationError, got %v", err)
	}
}

func TestElementDefaultsAndOrder(t *testing.T) {
	tl := mustNormalize(t, `
width: 100
height: 100
scenes:
  - duration: 4
    elements:
      - {type: text, text: a, zIndex: 2}
      - {type: text, text: b, start: 1}
      - {type: text, text: c, zIndex: 2, duration: 1}
`)
	els := tl.Tracks[0].Scenes[0].Elements
	got := []string{els[0].Text, els[1].Text, els[2].Text}
	want := []string{"b", "a", "c"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Expected paint order %v, got %v", want, got)
		}
	}
	if els[0].Duration != 3 {
		t.Errorf("Expected rest-of-scene duration 3, got %f", els[0].Duration)
	}
	if els[0].Opacity != 1 || els[0].Transform.Scale != 1 {
		t.Errorf("Expected opacity 1 and scale 1, got %+v", els[0])
	}
}

func TestExplicitZeroScaleIsKept(t *testing.T) {
	tl := mustNormalize(t, `
width: 100
height: 100
scenes:
  - duration: 2
    elements:
      - type: fill
        transform: {scale: 0}
        keyframes:
          - {time: 0}
          - {time: 1, scale: 0}
`)
	el := tl.Tracks[0].Scenes[0].Elements[0]
	if el.Transform.Scale != 0 {
		t.Errorf("Expected transform scale 0, got %v", el.Transform.Scale)
	}
	if el.Keyframes[0].Scale != 1 || el.Keyframes[1].Scale != 0 {
		t.Errorf("Expected keyframe scales 1 and 0, got %+v", el.Keyframes)
	}
}

func TestTrackSceneAt(t *testing.T) {
	tr := Track{Scenes: []Scene{{Duration: 0.1}, {Duration: 0.2}, {Duration: 1}}}

	tests := []struct {
		time  float64
		scene int
		ok    bool
	}{
		{-0.5, 0, false},
		{0, 0, true},
		{0.05, 0, true},
		{0.1, 1, true},
		{3.0 / 10.0, 2, true},
		{1.29, 2, true},
		{1.3, 0, false},
		{5, 0, false},
	}

	for _, tt := range tests {
		idx, _, ok := tr.SceneAt(tt.time)
		if ok != tt.ok || (ok && idx != tt.scene) {
			t.Errorf("SceneAt(%v) = (%d, %v), want (%d, %v)", tt.time, idx, ok, tt.scene, tt.ok)
		}
	}
}

func TestFrameCount(t *testing.T) {
	tests := []struct {
		seconds, fps float64
		want         int
	}{
		{6, 10, 60},
		{0.1, 10, 1},
		{0.01, 10, 1},
		{1, 30, 30},
		{0, 30, 0},
	}
	for _, tt := range tests {
		if got := FrameCount(tt.seconds, tt.fps); got != tt.want {
			t.Errorf("FrameCount(%v, %v) = %d, want %d", tt.seconds, tt.fps, got, tt.want)
		}
	}
}

func TestAudioSourcesPlacement(t *testing.T) {
	tl := mustNormalize(t, `
width: 100
height: 100
audio:
  - {url: "music.mp3", loop: true, volume: 0.3}
tracks:
  - startOffset: 2
    scenes:
      - duration: 1.5
        audio:
          - {url: "a.mp3", startOffset: 0.25}
      - duration: 2
        elements:
          - {type: audio, src: "b.mp3", start: 0.5, duration: 1}
`)
	srcs := tl.AudioSources()
	if len(srcs) != 3 {
		t.Fatalf("Expected 3 audio sources, got %d", len(srcs))
	}

	want := map[string]float64{"music.mp3": 0, "a.mp3": 2.25, "b.mp3": 4}
	for _, s := range srcs {
		if math.Abs(s.Start-want[s.URL]) > 1e-9 {
			t.Errorf("%s: expected start %v, got %v", s.URL, want[s.URL], s.Start)
		}
	}
	if srcs[2].Limit != 1 {
		t.Errorf("Expected audio element limited to its duration, got %v", srcs[2].Limit)
	}
}

func TestDocumentWriteRead(t *testing.T) {
	doc, err := Decode([]byte(`{"width": 320, "height": 240, "scenes": [{"duration": 2, "bgColor": "#000"}]}`))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	doc.Upgrade()

	path := filepath.Join(t.TempDir(), "timeline.yaml")
	if err := WriteDocument(doc, path); err != nil {
		t.Fatalf("WriteDocument failed: %v", err)
	}

	read, err := ReadDocument(path)
	if err != nil {
		t.Fatalf("ReadDocument failed: %v", err)
	}
	if len(read.Tracks) != 1 || len(read.Scenes) != 0 {
		t.Fatalf("Expected upgraded document with one track, got %+v", read)
	}
	if read.Width.Value != 320 || read.Tracks[0].Scenes[0].Duration.Value != 2 {
		t.Errorf("Values lost in round trip: %+v", read)
	}
}
