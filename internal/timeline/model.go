package timeline

import "math"

// boundaryEpsilon absorbs float noise when a frame time lands on a boundary,
// so 3/10 is treated as 0.1+0.2 and belongs to the following interval.
const boundaryEpsilon = 1e-9

const DefaultFPS = 30.0

type Kind string

const (
	KindVisual Kind = "visual"
	KindAudio  Kind = "audio"
)

// Timeline is the normalised render input. It is built once by Normalize and
// must not be mutated while a render is running.
type Timeline struct {
	Width  int
	Height int
	FPS    float64
	Tracks []Track
	Audio  []AudioSource
}

type Track struct {
	Kind   Kind
	ZIndex int
	Start  float64
	Scenes []Scene
	Index  int
}

type Scene struct {
	Duration   float64
	Background *Background
	Elements   []Element
	Audio      []AudioSource
	Transition *Transition
}

type Background struct {
	Color    string
	Gradient *Gradient
}

type Gradient struct {
	Colors    []string
	Direction string
}

type Transition struct {
	Kind     string
	Duration float64
}

type Transform struct {
	OffsetX  float64
	OffsetY  float64
	Scale    float64
	Rotation float64
}

type Animation struct {
	Type            string
	FadeInDuration  float64
	FadeOutDuration float64
}

type Keyframe struct {
	Time     float64
	Opacity  float64
	Scale    float64
	Rotation float64
	OffsetX  float64
	OffsetY  float64
	Easing   string
}

type Element struct {
	Type      string
	ZIndex    int
	Start     float64
	Duration  float64
	Opacity   float64
	X, Y      float64
	Width     float64
	Height    float64
	Transform Transform
	Animation *Animation
	Keyframes []Keyframe

	Src      string
	Page     int // zero-based; documents number pages from 1
	Text     string
	FontURL  string
	FontSize float64
	Color    string
	Align    string
	Shape    string
	Radius   float64
	Content  string

	// Audio is set for elements of type "audio"; its Start is relative to
	// the element.
	Audio *AudioSource

	// Index is the declaration order inside the scene, used to break zIndex ties.
	Index int
}

type AudioSource struct {
	URL       string
	Start     float64
	Volume    float64
	Loop      bool
	TrimStart float64
	TrimEnd   float64
	FadeIn    float64
	FadeOut   float64
	// Limit caps how long the source plays; 0 means until the timeline ends.
	Limit float64
	// LocalPath is filled in once the asset has been fetched.
	LocalPath string
}

// Duration is the end of the last track on the global timeline.
func (t *Timeline) Duration() float64 {
	end := 0.0
	for i := range t.Tracks {
		end = math.Max(end, t.Tracks[i].End())
	}
	return end
}

// FrameCount converts a duration to frames, rounding up so that any
// positive duration yields at least one frame.
func FrameCount(seconds, fps float64) int {
	if seconds <= 0 || fps <= 0 {
		return 0
	}
	return int(math.Ceil(seconds*fps - boundaryEpsilon))
}

// Duration is the sum of the track's scene durations.
func (t *Track) Duration() float64 {
	d := 0.0
	for i := range t.Scenes {
		d += t.Scenes[i].Duration
	}
	return d
}

func (t *Track) End() float64 {
	return t.Start + t.Duration()
}

// SceneAt resolves a track-relative time to the active scene and the local
// time inside it. Scene intervals are half-open, so a time exactly on a
// boundary belongs to the later scene. ok is false before the first scene
// and once the last one has finished.
func (t *Track) SceneAt(trackTime float64) (index int, local float64, ok bool) {
	if trackTime < -boundaryEpsilon {
		return 0, 0, false
	}
	start := 0.0
	for i := range t.Scenes {
		end := start + t.Scenes[i].Duration
		if trackTime+boundaryEpsilon < end {
			return i, math.Max(0, trackTime-start), true
		}
		start = end
	}
	return 0, 0, false
}

func (e *Element) End() float64 {
	return e.Start + e.Duration
}

// ActiveAt reports whether scene-local time falls in [Start, Start+Duration).
func (e *Element) ActiveAt(local float64) bool {
	return local+boundaryEpsilon >= e.Start && local+boundaryEpsilon < e.End()
}
