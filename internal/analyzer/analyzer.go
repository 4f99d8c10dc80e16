// Package analyzer finds regions of interest on rendered pages, such as
// text blocks or figures, so a camera path can visit them.
package analyzer

import (
	"fmt"
	"image"
)

// Region is an area of the page worth zooming into.
type Region struct {
	Rect image.Rectangle
	// Density is the share of edge pixels inside Rect.
	Density float64
}

type Detector interface {
	Detect(img image.Image) ([]Region, error)
}

// NewDetector returns the detector registered under variant. An empty
// variant selects edge detection.
func NewDetector(variant string) (Detector, error) {
	switch variant {
	case "edges", "contrast", "":
		return NewEdgeDetector(), nil
	case "none":
		return noRegions{}, nil
	default:
		return nil, fmt.Errorf("unknown detector variant: %s", variant)
	}
}

type noRegions struct{}

func (noRegions) Detect(image.Image) ([]Region, error) { return nil, nil }
