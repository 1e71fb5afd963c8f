// Package imageload fetches images for the content view and reports their intrinsic size.
//
// Loads run on a bounded pool of goroutines. Only the image header is decoded, which is all
// the layout needs.
package imageload

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	_ "golang.org/x/image/webp"
)

var (
	ErrUnsupportedScheme = errors.New("unsupported image scheme")
	ErrEmptyData         = errors.New("empty data uri")
	ErrTooLarge          = errors.New("image exceeds size limit")
	ErrClosed            = errors.New("image loader closed")
)

// Config controls fetching
type Config struct {
	Workers   int           `json:"workers"`
	Timeout   time.Duration `json:"timeout"`
	MaxBytes  int64         `json:"max_bytes"`
	UserAgent string        `json:"user_agent"`
}

// DefaultConfig returns conservative fetch settings
func DefaultConfig() *Config {
	return &Config{
		Workers:   4,
		Timeout:   10 * time.Second,
		MaxBytes:  8 * 1024 * 1024,
		UserAgent: "convview/1",
	}
}

// Opener reads the bytes behind a URL for a scheme the loader does not fetch itself
type Opener func(ctx context.Context, u *url.URL) (io.ReadCloser, error)

// SizeCache remembers the size of remote images across runs
type SizeCache interface {
	LoadImageSize(ctx context.Context, url string) (int, int, bool, error)
	SaveImageSize(ctx context.Context, url string, width, height int) error
}

// Loader fetches http(s) and data: images and any scheme with a registered Opener
type Loader struct {
	client *http.Client
	config *Config
	logger *log.Logger
	cache  SizeCache

	workerPool chan struct{}
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc

	mu      sync.RWMutex
	openers map[string]Opener
	closed  bool
}

// New creates a loader. A nil config uses DefaultConfig.
func New(config *Config, logger *log.Logger) *Loader {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Workers <= 0 {
		config.Workers = DefaultConfig().Workers
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultConfig().Timeout
	}
	if config.MaxBytes <= 0 {
		config.MaxBytes = DefaultConfig().MaxBytes
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Loader{
		client:     &http.Client{Timeout: config.Timeout},
		config:     config,
		logger:     logger,
		workerPool: make(chan struct{}, config.Workers),
		ctx:        ctx,
		cancel:     cancel,
		openers:    make(map[string]Opener),
	}
}

// Register installs an opener for scheme, replacing any previous one
func (l *Loader) Register(scheme string, open Opener) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.openers[strings.ToLower(scheme)] = open
}

// SetCache installs a size cache consulted for http(s) images
func (l *Loader) SetCache(c SizeCache) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cache = c
}

// Load fetches src in the background and calls done with its size.
// done runs on a loader goroutine, or inline when the loader is closed.
func (l *Loader) Load(src string, done func(width, height int, err error)) {
	l.mu.RLock()
	if l.closed {
		l.mu.RUnlock()
		done(0, 0, ErrClosed)
		return
	}
	l.wg.Add(1)
	l.mu.RUnlock()

	go func() {
		defer l.wg.Done()
		select {
		case l.workerPool <- struct{}{}:
		case <-l.ctx.Done():
			done(0, 0, ErrClosed)
			return
		}
		defer func() { <-l.workerPool }()

		start := time.Now()
		w, h, err := l.Size(l.ctx, src)
		if l.logger != nil {
			if err != nil {
				l.logger.Printf("imageload: %s: %v", truncate(src), err)
			} else {
				l.logger.Printf("imageload: %s %dx%d in %v", truncate(src), w, h, time.Since(start))
			}
		}
		done(w, h, err)
	}()
}

// Size fetches src and decodes its dimensions synchronously
func (l *Loader) Size(ctx context.Context, src string) (int, int, error) {
	l.mu.RLock()
	cache := l.cache
	l.mu.RUnlock()
	remote := isRemote(src)
	if cache != nil && remote {
		if w, h, ok, err := cache.LoadImageSize(ctx, src); err == nil && ok {
			return w, h, nil
		}
	}

	rc, err := l.open(ctx, src)
	if err != nil {
		return 0, 0, err
	}
	defer rc.Close()
	w, h, err := l.decode(rc)
	if err != nil {
		return 0, 0, err
	}
	if cache != nil && remote {
		if err := cache.SaveImageSize(ctx, src, w, h); err != nil && l.logger != nil {
			l.logger.Printf("imageload: cache %s: %v", truncate(src), err)
		}
	}
	return w, h, nil
}

func isRemote(src string) bool {
	lower := strings.ToLower(src)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

func (l *Loader) open(ctx context.Context, src string) (io.ReadCloser, error) {
	if strings.HasPrefix(strings.ToLower(src), "data:") {
		data, err := DecodeDataURI(src)
		if err != nil {
			return nil, err
		}
		return io.NopCloser(bytes.NewReader(data)), nil
	}
	u, err := url.Parse(src)
	if err != nil {
		return nil, fmt.Errorf("parse image url: %w", err)
	}
	scheme := strings.ToLower(u.Scheme)
	l.mu.RLock()
	opener, ok := l.openers[scheme]
	l.mu.RUnlock()
	if ok {
		return opener(ctx, u)
	}
	if scheme != "http" && scheme != "https" {
		return nil, fmt.Errorf("%s: %w", scheme, ErrUnsupportedScheme)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create image request: %w", err)
	}
	if l.config.UserAgent != "" {
		req.Header.Set("User-Agent", l.config.UserAgent)
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch image: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("fetch image: status %d", resp.StatusCode)
	}
	if resp.ContentLength > l.config.MaxBytes {
		resp.Body.Close()
		return nil, ErrTooLarge
	}
	return resp.Body, nil
}

func (l *Loader) decode(r io.Reader) (int, int, error) {
	limited := &io.LimitedReader{R: r, N: l.config.MaxBytes + 1}
	cfg, _, err := image.DecodeConfig(limited)
	if err != nil {
		if limited.N <= 0 {
			return 0, 0, ErrTooLarge
		}
		return 0, 0, fmt.Errorf("decode image: %w", err)
	}
	return cfg.Width, cfg.Height, nil
}

// DecodeDataURI returns the payload of a data: URI
func DecodeDataURI(src string) ([]byte, error) {
	rest := src[len("data:"):]
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok || payload == "" {
		return nil, ErrEmptyData
	}
	if strings.HasSuffix(strings.ToLower(meta), ";base64") {
		data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(payload))
		if err != nil {
			return nil, fmt.Errorf("decode data uri: %w", err)
		}
		return data, nil
	}
	unescaped, err := url.PathUnescape(payload)
	if err != nil {
		return nil, fmt.Errorf("decode data uri: %w", err)
	}
	return []byte(unescaped), nil
}

// Wait blocks until every load issued so far has called back
func (l *Loader) Wait() {
	l.wg.Wait()
}

// Close cancels in-flight fetches and waits for their callbacks. Later loads fail with ErrClosed.
func (l *Loader) Close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	l.mu.Unlock()
	l.cancel()
	l.wg.Wait()
}

func truncate(src string) string {
	if len(src) > 80 {
		return src[:77] + "..."
	}
	return src
}
