package assets

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// Asset kinds.
const (
	KindImage    = "image"
	KindVideo    = "video"
	KindAudio    = "audio"
	KindFont     = "font"
	KindDocument = "document"
)

// CachedAsset is a fetched asset stored on local disk.
type CachedAsset struct {
	URL       string
	LocalPath string
	Kind      string

	mu  sync.Mutex
	buf []byte
}

// Bytes returns the asset content. Downloaded content is kept in memory only
// until the first call; later calls read the file.
func (a *CachedAsset) Bytes() ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.buf != nil {
		b := a.buf
		a.buf = nil
		return b, nil
	}
	return os.ReadFile(a.LocalPath)
}

// Stats counts loader activity for the performance report.
type Stats struct {
	Hits      int
	Misses    int
	Downloads int
	Bytes     int64
}

// Loader fetches assets once per URL and keeps them in a disk cache for the
// lifetime of one render.
type Loader struct {
	dir     string
	ownsDir bool
	baseDir string
	client  *http.Client
	log     zerolog.Logger

	group singleflight.Group

	mu      sync.Mutex
	assets  map[string]*CachedAsset
	written []string
	stats   Stats
}

type Option func(*Loader)

// WithHTTPClient replaces http.DefaultClient.
func WithHTTPClient(c *http.Client) Option {
	return func(l *Loader) { l.client = c }
}

// WithBaseDir resolves relative local paths against dir instead of the
// working directory.
func WithBaseDir(dir string) Option {
	return func(l *Loader) { l.baseDir = dir }
}

func WithLogger(log zerolog.Logger) Option {
	return func(l *Loader) { l.log = log }
}

// New creates a loader caching into dir. An empty dir gives the loader a
// private temporary directory that Cleanup removes.
func New(dir string, opts ...Option) (*Loader, error) {
	l := &Loader{
		dir:    dir,
		client: http.DefaultClient,
		log:    zerolog.Nop(),
		assets: make(map[string]*CachedAsset),
	}
	for _, opt := range opts {
		opt(l)
	}

	if l.dir == "" {
		d, err := os.MkdirTemp("", "timeline2video-assets-*")
		if err != nil {
			return nil, fmt.Errorf("create asset cache: %w", err)
		}
		l.dir = d
		l.ownsDir = true
	} else if err := os.MkdirAll(l.dir, 0755); err != nil {
		return nil, fmt.Errorf("create asset cache: %w", err)
	}
	return l, nil
}

// Dir is the cache directory.
func (l *Loader) Dir() string { return l.dir }

// Fetch returns the cached asset for rawURL, fetching it on first use.
// Concurrent calls for the same URL share one fetch and receive the same
// *CachedAsset. Failures are not cached.
func (l *Loader) Fetch(ctx context.Context, rawURL, kind string) (*CachedAsset, error) {
	l.mu.Lock()
	if a, ok := l.assets[rawURL]; ok {
		l.stats.Hits++
		l.mu.Unlock()
		return a, nil
	}
	l.mu.Unlock()

	v, err, shared := l.group.Do(rawURL, func() (any, error) {
		l.mu.Lock()
		if a, ok := l.assets[rawURL]; ok {
			l.mu.Unlock()
			return a, nil
		}
		l.stats.Misses++
		l.mu.Unlock()

		a, err := l.load(ctx, rawURL, kind)
		if err != nil {
			return nil, err
		}

		l.mu.Lock()
		l.assets[rawURL] = a
		l.mu.Unlock()
		return a, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		l.mu.Lock()
		l.stats.Hits++
		l.mu.Unlock()
	}
	return v.(*CachedAsset), nil
}

func (l *Loader) load(ctx context.Context, rawURL, kind string) (*CachedAsset, error) {
	if p, ok := l.localPath(rawURL); ok {
		if _, err := os.Stat(p); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, &NotFoundError{URL: rawURL}
			}
			return nil, fmt.Errorf("stat %s: %w", p, err)
		}
		return &CachedAsset{URL: rawURL, LocalPath: p, Kind: kind}, nil
	}
	return l.download(ctx, rawURL, kind)
}

// localPath maps file:// URLs and plain paths to a filesystem path.
func (l *Loader) localPath(rawURL string) (string, bool) {
	if strings.HasPrefix(rawURL, "http://") || strings.HasPrefix(rawURL, "https://") {
		return "", false
	}
	p := rawURL
	if strings.HasPrefix(rawURL, "file://") {
		u, err := url.Parse(rawURL)
		switch {
		case err != nil:
			p = strings.TrimPrefix(rawURL, "file://")
		case u.Host != "" && u.Host != "localhost":
			p = u.Host + u.Path
		default:
			p = u.Path
		}
	}
	if !filepath.IsAbs(p) && l.baseDir != "" {
		p = filepath.Join(l.baseDir, p)
	}
	return p, true
}

func (l *Loader) download(ctx context.Context, rawURL, kind string) (*CachedAsset, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &FetchError{URL: rawURL, Err: err}
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, &FetchError{URL: rawURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FetchError{URL: rawURL, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{URL: rawURL, Err: err}
	}

	dst := filepath.Join(l.dir, cacheName(rawURL))
	tmp, err := os.CreateTemp(l.dir, ".fetch-*")
	if err != nil {
		return nil, fmt.Errorf("cache %s: %w", rawURL, err)
	}
	if _, err := tmp.Write(body); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return nil, fmt.Errorf("cache %s: %w", rawURL, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return nil, fmt.Errorf("cache %s: %w", rawURL, err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		os.Remove(tmp.Name())
		return nil, fmt.Errorf("cache %s: %w", rawURL, err)
	}

	l.mu.Lock()
	l.written = append(l.written, dst)
	l.stats.Downloads++
	l.stats.Bytes += int64(len(body))
	l.mu.Unlock()

	l.log.Debug().Str("url", rawURL).Str("kind", kind).Int("bytes", len(body)).Msg("asset downloaded")
	return &CachedAsset{URL: rawURL, LocalPath: dst, Kind: kind, buf: body}, nil
}

// cacheName is the content-addressed file name for a URL: the hex sha256 of
// the URL plus the extension of its path, if it looks like one.
func cacheName(rawURL string) string {
	sum := sha256.Sum256([]byte(rawURL))
	name := hex.EncodeToString(sum[:])

	ext := ""
	if u, err := url.Parse(rawURL); err == nil {
		ext = strings.ToLower(path.Ext(u.Path))
	}
	if len(ext) > 1 && len(ext) <= 6 && isAlnum(ext[1:]) {
		name += ext
	}
	return name
}

func isAlnum(s string) bool {
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}

// Stats returns a snapshot of the loader counters.
func (l *Loader) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stats
}

// Cleanup removes the files this loader downloaded, and its directory when
// the loader created it. Caller-owned local files are never touched. Safe to
// call more than once.
func (l *Loader) Cleanup() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var errs []error
	for _, p := range l.written {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	l.written = nil
	l.assets = make(map[string]*CachedAsset)

	if l.ownsDir {
		if err := os.RemoveAll(l.dir); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
