package paint

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/gogpu/gg/text"

	"github.com/ivlev/timeline2video/internal/assets"
	"github.com/ivlev/timeline2video/internal/source"
)

// Fetcher resolves asset URLs to local files. *assets.Loader implements it.
type Fetcher interface {
	Fetch(ctx context.Context, url, kind string) (*assets.CachedAsset, error)
}

type pageKey struct {
	url    string
	page   int
	height int
}

type sizeKey struct {
	key  string
	w, h int
}

// Session owns every decode cache of one render. Nothing is shared between
// sessions; Close drops all of it.
type Session struct {
	fetcher Fetcher

	mu     sync.Mutex
	images map[string]image.Image
	fonts  map[string]*text.FontSource
	pdfs   map[string]*source.PDFDocument
	pages  map[pageKey]image.Image
	layers map[string]*image.RGBA
	scaled map[sizeKey]*image.RGBA
}

func NewSession(f Fetcher) *Session {
	s := &Session{fetcher: f}
	s.reset()
	return s
}

func (s *Session) reset() {
	s.images = make(map[string]image.Image)
	s.fonts = make(map[string]*text.FontSource)
	s.pdfs = make(map[string]*source.PDFDocument)
	s.pages = make(map[pageKey]image.Image)
	s.layers = make(map[string]*image.RGBA)
	s.scaled = make(map[sizeKey]*image.RGBA)
}

// Image returns the decoded image at url.
func (s *Session) Image(ctx context.Context, url string) (image.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if img, ok := s.images[url]; ok {
		return img, nil
	}

	a, err := s.fetch(ctx, url, assets.KindImage)
	if err != nil {
		return nil, err
	}
	data, err := a.Bytes()
	if err != nil {
		return nil, err
	}
	img, err := source.DecodeImage(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", url, err)
	}
	s.images[url] = img
	return img, nil
}

// Font returns the parsed font at url.
func (s *Session) Font(ctx context.Context, url string) (*text.FontSource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f, ok := s.fonts[url]; ok {
		return f, nil
	}

	a, err := s.fetch(ctx, url, assets.KindFont)
	if err != nil {
		return nil, err
	}
	data, err := a.Bytes()
	if err != nil {
		return nil, err
	}
	f, err := text.NewFontSource(data)
	if err != nil {
		return nil, fmt.Errorf("parse font %s: %w", url, err)
	}
	s.fonts[url] = f
	return f, nil
}

// PDFPage rasterises a zero-based page of the PDF at url so that it is about
// heightPx pixels tall.
func (s *Session) PDFPage(ctx context.Context, url string, page, heightPx int) (image.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := pageKey{url: url, page: page, height: heightPx}
	if img, ok := s.pages[key]; ok {
		return img, nil
	}

	doc, ok := s.pdfs[url]
	if !ok {
		a, err := s.fetch(ctx, url, assets.KindDocument)
		if err != nil {
			return nil, err
		}
		doc, err = source.OpenPDF(a.LocalPath)
		if err != nil {
			return nil, err
		}
		s.pdfs[url] = doc
	}

	_, h, err := doc.PageSize(page)
	if err != nil {
		return nil, fmt.Errorf("%s page %d: %w", url, page+1, err)
	}
	img, err := doc.RenderPage(page, source.DPIForHeight(h, heightPx))
	if err != nil {
		return nil, err
	}
	s.pages[key] = img
	return img, nil
}

func (s *Session) fetch(ctx context.Context, url, kind string) (*assets.CachedAsset, error) {
	if s.fetcher == nil {
		return nil, fmt.Errorf("no asset loader for %s", url)
	}
	return s.fetcher.Fetch(ctx, url, kind)
}

// layer returns the cached static layer stored under key, building it on
// first use.
func (s *Session) layer(key string, build func() (*image.RGBA, error)) (*image.RGBA, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l, ok := s.layers[key]; ok {
		return l, nil
	}
	l, err := build()
	if err != nil {
		return nil, err
	}
	s.layers[key] = l
	return l, nil
}

// Close releases fonts and PDF documents and drops every cache.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	for _, f := range s.fonts {
		if err := f.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	for _, d := range s.pdfs {
		if err := d.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	s.reset()
	return errors.Join(errs...)
}
