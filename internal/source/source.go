package source

import (
	"fmt"
	"image"
	"sync"

	"github.com/gen2brain/go-fitz"
)

// PDFDocument renders pages of a PDF file. MuPDF contexts are not safe for
// concurrent use, so rendering is serialised.
type PDFDocument struct {
	mu   sync.Mutex
	doc  *fitz.Document
	path string
}

func OpenPDF(path string) (*PDFDocument, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf %s: %w", path, err)
	}
	return &PDFDocument{doc: doc, path: path}, nil
}

func (d *PDFDocument) PageCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.doc.NumPage()
}

// PageSize returns the page bounds in points.
func (d *PDFDocument) PageSize(index int) (float64, float64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	rect, err := d.doc.Bound(index)
	if err != nil {
		return 0, 0, err
	}
	return float64(rect.Dx()), float64(rect.Dy()), nil
}

// RenderPage rasterises a zero-based page at the given DPI.
func (d *PDFDocument) RenderPage(index int, dpi float64) (image.Image, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if index < 0 || index >= d.doc.NumPage() {
		return nil, fmt.Errorf("%s: page %d out of range (%d pages)", d.path, index+1, d.doc.NumPage())
	}
	return d.doc.ImageDPI(index, dpi)
}

// DPIForHeight picks the DPI at which a page of heightPt points rasterises
// to roughly targetPx pixels.
func DPIForHeight(heightPt float64, targetPx int) float64 {
	if heightPt <= 0 || targetPx <= 0 {
		return 72
	}
	return float64(targetPx) / heightPt * 72
}

func (d *PDFDocument) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.doc.Close()
}
