package director

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ivlev/timeline2video/internal/source"
	"github.com/ivlev/timeline2video/internal/timeline"
)

var imageExts = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".webp": true, ".bmp": true, ".gif": true,
}

// FromPDF builds a document with one scene per page of the PDF at path.
func (d *Director) FromPDF(path string) (*timeline.Document, error) {
	pdf, err := source.OpenPDF(path)
	if err != nil {
		return nil, err
	}
	defer pdf.Close()

	n := pdf.PageCount()
	slides := make([]Slide, 0, n)
	for i := 0; i < n; i++ {
		w, h, err := pdf.PageSize(i)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i+1, err)
		}
		slides = append(slides, Slide{
			Type:   "pdf",
			Src:    path,
			Page:   i + 1,
			Width:  w,
			Height: h,
			Render: func(heightPx int) (image.Image, error) {
				return pdf.RenderPage(i, source.DPIForHeight(h, heightPx))
			},
		})
	}
	return d.Build(slides)
}

// FromImages builds a document with one scene per image.
func (d *Director) FromImages(paths []string) (*timeline.Document, error) {
	slides := make([]Slide, 0, len(paths))
	for _, p := range paths {
		w, h, err := source.ImageSize(p)
		if err != nil {
			return nil, err
		}
		slides = append(slides, Slide{
			Type:   "image",
			Src:    p,
			Width:  float64(w),
			Height: float64(h),
			Render: func(int) (image.Image, error) { return source.OpenImage(p) },
		})
	}
	return d.Build(slides)
}

// ListImages returns the images in dir sorted by name.
func ListImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, e := range entries {
		if !e.IsDir() && imageExts[strings.ToLower(filepath.Ext(e.Name()))] {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no images found in %s", dir)
	}
	sort.Strings(paths)
	return paths, nil
}
