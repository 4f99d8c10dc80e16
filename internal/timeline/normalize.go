package timeline

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// ValidationError reports a document that cannot be rendered. It is raised
// before any asset is fetched or process started.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid timeline: %s: %s", e.Field, e.Reason)
}

func invalid(field, format string, args ...interface{}) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// Transition kinds understood by the compositor.
const (
	TransitionFade       = "fade"
	TransitionCrossfade  = "crossfade"
	TransitionWipeLeft   = "wipeleft"
	TransitionWipeRight  = "wiperight"
	TransitionWipeUp     = "wipeup"
	TransitionWipeDown   = "wipedown"
	TransitionSlideLeft  = "slideleft"
	TransitionSlideRight = "slideright"
	TransitionSlideUp    = "slideup"
	TransitionSlideDown  = "slidedown"
)

var transitionKinds = map[string]bool{
	TransitionFade: true, TransitionCrossfade: true,
	TransitionWipeLeft: true, TransitionWipeRight: true, TransitionWipeUp: true, TransitionWipeDown: true,
	TransitionSlideLeft: true, TransitionSlideRight: true, TransitionSlideUp: true, TransitionSlideDown: true,
}

// Animation presets.
const (
	AnimationFadeIn    = "fadeIn"
	AnimationFadeOut   = "fadeOut"
	AnimationFadeInOut = "fadeInOut"
)

const (
	defaultFadeDuration       = 0.5
	defaultTransitionDuration = 0.5
)

// Normalize applies defaults, coerces numbers and validates the document.
func Normalize(doc *Document) (*Timeline, error) {
	if doc == nil {
		return nil, invalid("document", "empty")
	}

	tl := &Timeline{}

	w, err := dimension("width", doc.Width)
	if err != nil {
		return nil, err
	}
	h, err := dimension("height", doc.Height)
	if err != nil {
		return nil, err
	}
	tl.Width, tl.Height = w, h

	tl.FPS = doc.FPS.Or(DefaultFPS)
	if tl.FPS <= 0 {
		tl.FPS = DefaultFPS
	}

	tracks := doc.Tracks
	if len(tracks) == 0 && len(doc.Scenes) > 0 {
		tracks = []TrackDoc{{Kind: string(KindVisual), Scenes: doc.Scenes}}
	}
	if len(tracks) == 0 {
		return nil, invalid("tracks", "at least one track is required")
	}

	defaults := doc.Defaults
	if defaults == nil {
		defaults = &DefaultsDoc{}
	}

	for i, td := range tracks {
		tr, err := normalizeTrack(fmt.Sprintf("tracks[%d]", i), td, defaults)
		if err != nil {
			return nil, err
		}
		tr.Index = i
		tl.Tracks = append(tl.Tracks, tr)
	}

	for i, ad := range doc.Audio {
		src, err := normalizeAudio(fmt.Sprintf("audio[%d]", i), ad.URL, ad.StartOffset, audioFields{
			Volume: ad.Volume, Loop: ad.Loop, TrimStart: ad.TrimStart, TrimEnd: ad.TrimEnd,
			FadeIn: ad.FadeIn, FadeOut: ad.FadeOut,
		})
		if err != nil {
			return nil, err
		}
		tl.Audio = append(tl.Audio, src)
	}

	return tl, nil
}

func dimension(field string, n Number) (int, error) {
	if !n.Set {
		return 0, invalid(field, "required")
	}
	if !n.Finite() || n.Value <= 0 {
		return 0, invalid(field, "must be a positive number, got %v", n.Value)
	}
	return int(math.Round(n.Value)), nil
}

func normalizeTrack(field string, td TrackDoc, defaults *DefaultsDoc) (Track, error) {
	tr := Track{ZIndex: int(td.ZIndex.Or(0))}

	switch strings.ToLower(td.Kind) {
	case "", string(KindVisual):
		tr.Kind = KindVisual
	case string(KindAudio), "audio-only":
		tr.Kind = KindAudio
	default:
		return tr, invalid(field+".kind", "unknown kind %q", td.Kind)
	}

	tr.Start = td.StartOffset.Or(0)
	if tr.Start < 0 {
		return tr, invalid(field+".startOffset", "must be >= 0")
	}
	if len(td.Scenes) == 0 {
		return tr, invalid(field+".scenes", "at least one scene is required")
	}

	for i, sd := range td.Scenes {
		sc, err := normalizeScene(fmt.Sprintf("%s.scenes[%d]", field, i), sd, defaults)
		if err != nil {
			return tr, err
		}
		tr.Scenes = append(tr.Scenes, sc)
	}
	return tr, nil
}

func normalizeScene(field string, sd SceneDoc, defaults *DefaultsDoc) (Scene, error) {
	var sc Scene

	dur := sd.Duration
	if !dur.Set {
		dur = defaults.Duration
	}
	if !dur.Set {
		return sc, invalid(field+".duration", "required")
	}
	if !dur.Finite() || dur.Value <= 0 {
		return sc, invalid(field+".duration", "must be a positive number, got %v", dur.Value)
	}
	sc.Duration = dur.Value

	switch {
	case sd.Background != nil:
		bg := &Background{Color: sd.Background.Color}
		if g := sd.Background.Gradient; g != nil {
			if len(g.Colors) < 2 {
				return sc, invalid(field+".background.gradient", "needs at least two colors")
			}
			bg.Gradient = &Gradient{Colors: g.Colors, Direction: g.Direction}
		}
		if bg.Color != "" || bg.Gradient != nil {
			sc.Background = bg
		}
	case sd.BgColor != "":
		sc.Background = &Background{Color: sd.BgColor}
	}

	td := sd.Transition
	if td == nil {
		td = defaults.Transition
	}
	if td != nil && td.Kind != "none" {
		kind := strings.ToLower(td.Kind)
		if kind == "" {
			kind = TransitionFade
		}
		if !transitionKinds[kind] {
			return sc, invalid(field+".transition.kind", "unknown transition %q", td.Kind)
		}
		d := td.Duration.Or(defaultTransitionDuration)
		if d < 0 {
			return sc, invalid(field+".transition.duration", "must be >= 0")
		}
		if d > 0 {
			sc.Transition = &Transition{Kind: kind, Duration: math.Min(d, sc.Duration)}
		}
	}

	for i, ed := range sd.Elements {
		el, err := normalizeElement(fmt.Sprintf("%s.elements[%d]", field, i), ed, sc.Duration)
		if err != nil {
			return sc, err
		}
		el.Index = i
		sc.Elements = append(sc.Elements, el)
	}
	// Paint order: ascending zIndex, declaration order on ties.
	sort.SliceStable(sc.Elements, func(i, j int) bool {
		return sc.Elements[i].ZIndex < sc.Elements[j].ZIndex
	})

	for i, ad := range sd.Audio {
		src, err := normalizeAudio(fmt.Sprintf("%s.audio[%d]", field, i), ad.URL, ad.StartOffset, audioFields{
			Volume: ad.Volume, Loop: ad.Loop, TrimStart: ad.TrimStart, TrimEnd: ad.TrimEnd,
			FadeIn: ad.FadeIn, FadeOut: ad.FadeOut,
		})
		if err != nil {
			return sc, err
		}
		sc.Audio = append(sc.Audio, src)
	}

	return sc, nil
}

func normalizeElement(field string, ed ElementDoc, sceneDuration float64) (Element, error) {
	el := Element{
		Type:     strings.ToLower(strings.TrimSpace(ed.Type)),
		ZIndex:   int(ed.ZIndex.Or(0)),
		Start:    ed.Start.Or(0),
		X:        ed.X.Or(0),
		Y:        ed.Y.Or(0),
		Width:    ed.Width.Or(0),
		Height:   ed.Height.Or(0),
		Src:      ed.Src,
		Page:     int(ed.Page.Or(1)) - 1,
		Text:     ed.Text,
		FontURL:  ed.FontURL,
		FontSize: ed.FontSize.Or(48),
		Color:    ed.Color,
		Align:    ed.Align,
		Shape:    ed.Shape,
		Radius:   ed.Radius.Or(0),
		Content:  ed.Content,
	}
	if el.Type == "" {
		return el, invalid(field+".type", "required")
	}
	if el.Start < 0 {
		return el, invalid(field+".start", "must be >= 0")
	}
	if el.Page < 0 {
		return el, invalid(field+".page", "pages are numbered from 1")
	}

	if ed.Duration.Set {
		if !ed.Duration.Finite() || ed.Duration.Value <= 0 {
			return el, invalid(field+".duration", "must be a positive number")
		}
		el.Duration = ed.Duration.Value
	} else {
		el.Duration = math.Max(0, sceneDuration-el.Start)
	}

	el.Opacity = clamp01(ed.Opacity.Or(1))

	el.Transform = Transform{Scale: 1}
	if t := ed.Transform; t != nil {
		el.Transform = Transform{
			OffsetX:  t.OffsetX.Or(0),
			OffsetY:  t.OffsetY.Or(0),
			Scale:    t.Scale.Or(1),
			Rotation: t.Rotation.Or(0),
		}
	}

	if a := ed.Animation; a != nil && a.Type != "" {
		switch a.Type {
		case AnimationFadeIn, AnimationFadeOut, AnimationFadeInOut:
		default:
			return el, invalid(field+".animation.type", "unknown animation %q", a.Type)
		}
		el.Animation = &Animation{
			Type:            a.Type,
			FadeInDuration:  math.Max(0, a.FadeInDuration.Or(defaultFadeDuration)),
			FadeOutDuration: math.Max(0, a.FadeOutDuration.Or(defaultFadeDuration)),
		}
	}

	for i, kd := range ed.Keyframes {
		if !kd.Time.Finite() {
			return el, invalid(fmt.Sprintf("%s.keyframes[%d].time", field, i), "required")
		}
		el.Keyframes = append(el.Keyframes, Keyframe{
			Time:     kd.Time.Value,
			Opacity:  clamp01(kd.Opacity.Or(1)),
			Scale:    kd.Scale.Or(1),
			Rotation: kd.Rotation.Or(0),
			OffsetX:  kd.OffsetX.Or(0),
			OffsetY:  kd.OffsetY.Or(0),
			Easing:   kd.Easing,
		})
	}
	sort.SliceStable(el.Keyframes, func(i, j int) bool {
		return el.Keyframes[i].Time < el.Keyframes[j].Time
	})

	if el.Type == "audio" {
		src, err := normalizeAudio(field, ed.Src, Number{}, audioFields{
			Volume: ed.Volume, Loop: ed.Loop, TrimStart: ed.TrimStart, TrimEnd: ed.TrimEnd,
			FadeIn: ed.FadeIn, FadeOut: ed.FadeOut,
		})
		if err != nil {
			return el, err
		}
		if ed.Duration.Set {
			src.Limit = el.Duration
		}
		el.Audio = &src
	}

	return el, nil
}

type audioFields struct {
	Volume    Number
	Loop      bool
	TrimStart Number
	TrimEnd   Number
	FadeIn    Number
	FadeOut   Number
}

func normalizeAudio(field, url string, start Number, f audioFields) (AudioSource, error) {
	src := AudioSource{
		URL:       strings.TrimSpace(url),
		Start:     start.Or(0),
		Volume:    f.Volume.Or(1),
		Loop:      f.Loop,
		TrimStart: f.TrimStart.Or(0),
		TrimEnd:   f.TrimEnd.Or(0),
		FadeIn:    math.Max(0, f.FadeIn.Or(0)),
		FadeOut:   math.Max(0, f.FadeOut.Or(0)),
	}
	switch {
	case src.URL == "":
		return src, invalid(field+".url", "required")
	case src.Start < 0:
		return src, invalid(field+".startOffset", "must be >= 0")
	case src.Volume < 0:
		return src, invalid(field+".volume", "must be >= 0")
	case src.TrimStart < 0:
		return src, invalid(field+".trimStart", "must be >= 0")
	case src.TrimEnd > 0 && src.TrimEnd <= src.TrimStart:
		return src, invalid(field+".trimEnd", "must be greater than trimStart")
	}
	return src, nil
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
