// Package fetch is the HTTP layer under every feed: conditional GETs keyed by
// URL, transparent gzip, brotli and zstd bodies, a response size cap and a
// status classification the poll loop understands.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"live-scoreboard/poll"
)

// Config configures a Client.
type Config struct {
	Timeout   time.Duration // per request. Default: 10s.
	MaxBytes  int64         // decoded body cap. Default: 10MB.
	UserAgent string
	// HTTPClient overrides the transport, mainly for tests.
	HTTPClient *http.Client
	Logger     *slog.Logger
}

func (c *Config) defaults() {
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	if c.MaxBytes <= 0 {
		c.MaxBytes = 10 * 1024 * 1024
	}
	if c.UserAgent == "" {
		c.UserAgent = "live-scoreboard/1.0"
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: http %d", e.URL, e.Code)
}

// ErrTooLarge is returned when a decoded body exceeds Config.MaxBytes.
var ErrTooLarge = errors.New("fetch: response body too large")

type validators struct {
	etag    string
	lastMod string
}

// Client performs GET requests. Poll remembers ETag and Last-Modified per URL
// and turns a 304 into poll.ErrNotModified.
type Client struct {
	http *http.Client
	cfg  Config

	mu    sync.Mutex
	cache map[string]validators
}

func New(cfg Config) *Client {
	cfg.defaults()
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{
		http:  hc,
		cfg:   cfg,
		cache: make(map[string]validators),
	}
}

// Get fetches url unconditionally.
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	return c.do(ctx, url, false)
}

// Poll fetches url, sending the validators of the previous response.
func (c *Client) Poll(ctx context.Context, url string) ([]byte, error) {
	return c.do(ctx, url, true)
}

// Forget drops the validators stored for url.
func (c *Client) Forget(url string) {
	c.mu.Lock()
	delete(c.cache, url)
	c.mu.Unlock()
}

func (c *Client) do(ctx context.Context, url string, conditional bool) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, poll.Fatal(fmt.Errorf("new request: %w", err))
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Encoding", "gzip, br, zstd")

	if conditional {
		c.mu.Lock()
		v := c.cache[url]
		c.mu.Unlock()
		if v.etag != "" {
			req.Header.Set("If-None-Match", v.etag)
		}
		if v.lastMod != "" {
			req.Header.Set("If-Modified-Since", v.lastMod)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified {
		return nil, poll.ErrNotModified
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Drain a little so the connection can be reused.
		_, _ = io.CopyN(io.Discard, resp.Body, 4096)
		return nil, classify(&StatusError{URL: url, Code: resp.StatusCode})
	}

	body, err := c.readBody(resp)
	if err != nil {
		return nil, err
	}

	if conditional {
		v := validators{
			etag:    resp.Header.Get("ETag"),
			lastMod: resp.Header.Get("Last-Modified"),
		}
		c.mu.Lock()
		if v.etag != "" || v.lastMod != "" {
			c.cache[url] = v
		} else {
			delete(c.cache, url)
		}
		c.mu.Unlock()
	}

	c.cfg.Logger.Debug("fetch: ok", "url", url, "bytes", len(body), "encoding", resp.Header.Get("Content-Encoding"))
	return body, nil
}

// classify marks responses that will not improve by retrying as fatal.
func classify(err *StatusError) error {
	switch err.Code {
	case http.StatusNotFound, http.StatusGone, http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden:
		return poll.Fatal(err)
	}
	return err
}

func (c *Client) readBody(resp *http.Response) ([]byte, error) {
	r, closeFn, err := decoder(resp.Header.Get("Content-Encoding"), resp.Body)
	if err != nil {
		return nil, err
	}
	defer closeFn()

	body, err := io.ReadAll(io.LimitReader(r, c.cfg.MaxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(body)) > c.cfg.MaxBytes {
		return nil, ErrTooLarge
	}
	return body, nil
}

func decoder(encoding string, body io.Reader) (io.Reader, func(), error) {
	enc := strings.ToLower(strings.TrimSpace(encoding))
	switch enc {
	case "", "identity":
		return body, func() {}, nil
	case "br":
		return brotli.NewReader(body), func() {}, nil
	case "zstd":
		r, err := zstd.NewReader(body)
		if err != nil {
			return nil, nil, fmt.Errorf("zstd reader: %w", err)
		}
		return r, r.Close, nil
	case "gzip", "x-gzip":
		r, err := gzip.NewReader(body)
		if err != nil {
			return nil, nil, fmt.Errorf("gzip reader: %w", err)
		}
		return r, func() { _ = r.Close() }, nil
	}
	return nil, nil, fmt.Errorf("unsupported content encoding %q", encoding)
}
