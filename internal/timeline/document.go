package timeline

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Document is the declarative timeline as written by users. JSON documents
// decode through the same tags since JSON is valid YAML.
type Document struct {
	Width    Number       `yaml:"width,omitempty"`
	Height   Number       `yaml:"height,omitempty"`
	FPS      Number       `yaml:"fps,omitempty"`
	Defaults *DefaultsDoc `yaml:"defaults,omitempty"`
	Tracks   []TrackDoc   `yaml:"tracks,omitempty"`
	Scenes   []SceneDoc   `yaml:"scenes,omitempty"` // legacy single-track form
	Audio    []AudioDoc   `yaml:"audio,omitempty"`
}

type DefaultsDoc struct {
	Duration   Number         `yaml:"duration,omitempty"`
	Transition *TransitionDoc `yaml:"transition,omitempty"`
}

type TrackDoc struct {
	Kind        string     `yaml:"kind,omitempty"`
	ZIndex      Number     `yaml:"zIndex,omitempty"`
	StartOffset Number     `yaml:"startOffset,omitempty"`
	Scenes      []SceneDoc `yaml:"scenes"`
}

type SceneDoc struct {
	Duration   Number         `yaml:"duration,omitempty"`
	BgColor    string         `yaml:"bgColor,omitempty"`
	Background *BackgroundDoc `yaml:"background,omitempty"`
	Elements   []ElementDoc   `yaml:"elements,omitempty"`
	Audio      []AudioDoc     `yaml:"audio,omitempty"`
	Transition *TransitionDoc `yaml:"transition,omitempty"`
}

type BackgroundDoc struct {
	Color    string       `yaml:"color,omitempty"`
	Gradient *GradientDoc `yaml:"gradient,omitempty"`
}

type GradientDoc struct {
	Colors    []string `yaml:"colors"`
	Direction string   `yaml:"direction,omitempty"`
}

type TransitionDoc struct {
	Kind     string `yaml:"kind"`
	Duration Number `yaml:"duration,omitempty"`
}

type TransformDoc struct {
	OffsetX  Number `yaml:"offsetX,omitempty"`
	OffsetY  Number `yaml:"offsetY,omitempty"`
	Scale    Number `yaml:"scale,omitempty"`
	Rotation Number `yaml:"rotation,omitempty"`
}

type AnimationDoc struct {
	Type            string `yaml:"type"`
	FadeInDuration  Number `yaml:"fadeInDuration,omitempty"`
	FadeOutDuration Number `yaml:"fadeOutDuration,omitempty"`
}

type KeyframeDoc struct {
	Time     Number `yaml:"time,omitempty"`
	Opacity  Number `yaml:"opacity,omitempty"`
	Scale    Number `yaml:"scale,omitempty"`
	Rotation Number `yaml:"rotation,omitempty"`
	OffsetX  Number `yaml:"offsetX,omitempty"`
	OffsetY  Number `yaml:"offsetY,omitempty"`
	Easing   string `yaml:"easing,omitempty"`
}

// ElementDoc is flattened over all element types; Type selects which of the
// type-specific fields are meaningful.
type ElementDoc struct {
	Type      string        `yaml:"type"`
	ZIndex    Number        `yaml:"zIndex,omitempty"`
	Start     Number        `yaml:"start,omitempty"`
	Duration  Number        `yaml:"duration,omitempty"`
	Opacity   Number        `yaml:"opacity,omitempty"`
	X         Number        `yaml:"x,omitempty"`
	Y         Number        `yaml:"y,omitempty"`
	Width     Number        `yaml:"width,omitempty"`
	Height    Number        `yaml:"height,omitempty"`
	Transform *TransformDoc `yaml:"transform,omitempty"`
	Animation *AnimationDoc `yaml:"animation,omitempty"`
	Keyframes []KeyframeDoc `yaml:"keyframes,omitempty"`

	Src      string `yaml:"src,omitempty"`
	Page     Number `yaml:"page,omitempty"`
	Text     string `yaml:"text,omitempty"`
	FontURL  string `yaml:"fontUrl,omitempty"`
	FontSize Number `yaml:"fontSize,omitempty"`
	Color    string `yaml:"color,omitempty"`
	Align    string `yaml:"align,omitempty"`
	Shape    string `yaml:"shape,omitempty"`
	Radius   Number `yaml:"radius,omitempty"`
	Content  string `yaml:"content,omitempty"`

	Volume    Number `yaml:"volume,omitempty"`
	Loop      bool   `yaml:"loop,omitempty"`
	TrimStart Number `yaml:"trimStart,omitempty"`
	TrimEnd   Number `yaml:"trimEnd,omitempty"`
	FadeIn    Number `yaml:"fadeIn,omitempty"`
	FadeOut   Number `yaml:"fadeOut,omitempty"`
}

type AudioDoc struct {
	URL         string `yaml:"url"`
	StartOffset Number `yaml:"startOffset,omitempty"`
	Volume      Number `yaml:"volume,omitempty"`
	Loop        bool   `yaml:"loop,omitempty"`
	TrimStart   Number `yaml:"trimStart,omitempty"`
	TrimEnd     Number `yaml:"trimEnd,omitempty"`
	FadeIn      Number `yaml:"fadeIn,omitempty"`
	FadeOut     Number `yaml:"fadeOut,omitempty"`
}

// Decode parses a YAML or JSON timeline document.
func Decode(data []byte) (*Document, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &ValidationError{Field: "document", Reason: err.Error()}
	}
	return &doc, nil
}

// ReadDocument reads a timeline document from disk.
func ReadDocument(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read timeline: %w", err)
	}
	return Decode(data)
}

// WriteDocument writes a document as YAML.
func WriteDocument(doc *Document, path string) error {
	data, err := yaml.Marshal(doc)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Upgrade rewrites the legacy single-track form into the tracks form.
func (d *Document) Upgrade() {
	if len(d.Tracks) > 0 || len(d.Scenes) == 0 {
		return
	}
	d.Tracks = []TrackDoc{{Kind: string(KindVisual), Scenes: d.Scenes}}
	d.Scenes = nil
}
