// Package httpcache performs GET requests with ETag/Last-Modified
// revalidation and a per-URL disk cache that is served when the upstream
// is unreachable.
package httpcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"

	appLog "sadlamp/internal/log"
)

const maxBody = 8 << 20

// StatusError is returned for a non-OK response when no cached body exists.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP error! status: %d", e.Code)
}

// Result is the outcome of one Get.
type Result struct {
	Body      []byte
	FromCache bool
	// UpdatedAt is when the body was last confirmed with the upstream.
	UpdatedAt time.Time
}

// Options configures a Client. Zero values are usable.
type Options struct {
	// Name prefixes log messages ("weather", "ics").
	Name string
	// Dir is the cache root. Empty disables the disk cache.
	Dir string
	// TTL skips the network while a cached body is younger than it.
	// Zero always revalidates.
	TTL     time.Duration
	Timeout time.Duration
	// Limiter throttles outbound requests. Cache hits are not throttled.
	Limiter *rate.Limiter
	// Redact rewrites URLs for logs and metadata. Defaults to RedactHost.
	Redact func(string) string
	Now    func() time.Time
}

type meta struct {
	URL          string    `json:"url"`
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type Client struct {
	name    string
	dir     string
	ttl     time.Duration
	http    *http.Client
	limiter *rate.Limiter
	redact  func(string) string
	now     func() time.Time
}

func New(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.Redact == nil {
		opts.Redact = RedactHost
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Name == "" {
		opts.Name = "http"
	}
	return &Client{
		name: opts.Name,
		dir:  opts.Dir,
		ttl:  opts.TTL,
		http: &http.Client{
			Timeout:   opts.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		limiter: opts.Limiter,
		redact:  opts.Redact,
		now:     opts.Now,
	}
}

// Get fetches rawURL. A fresh cached body is returned without touching the
// network; a stale one is revalidated and used as fallback on any failure.
func (c *Client) Get(ctx context.Context, rawURL string, header http.Header) (Result, error) {
	if rawURL == "" {
		return Result{}, errors.New("source URL is empty")
	}
	logURL := c.redact(rawURL)
	dir := c.pathFor(rawURL)

	m, cached := c.load(dir)
	if len(cached) > 0 && c.ttl > 0 && c.now().Sub(m.UpdatedAt) < c.ttl {
		appLog.Debug(c.name+" cache hit", "url", logURL)
		return Result{Body: cached, FromCache: true, UpdatedAt: m.UpdatedAt}, nil
	}
	stale := func(cause error, msg string) (Result, error) {
		if len(cached) == 0 {
			return Result{}, cause
		}
		appLog.Error(c.name+" "+msg+", using cached body", cause, "url", logURL)
		return Result{Body: cached, FromCache: true, UpdatedAt: m.UpdatedAt}, nil
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return stale(err, "rate limit wait failed")
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return Result{}, err
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if len(cached) > 0 {
		if m.ETag != "" {
			req.Header.Set("If-None-Match", m.ETag)
		}
		if m.LastModified != "" {
			req.Header.Set("If-Modified-Since", m.LastModified)
		}
	}

	appLog.Info(c.name+" fetch start", "url", logURL)

	resp, err := c.http.Do(req)
	if err != nil {
		return stale(err, "fetch network error")
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
		if err != nil {
			return stale(err, "read body failed")
		}
		nm := meta{
			URL:          logURL,
			ETag:         resp.Header.Get("ETag"),
			LastModified: resp.Header.Get("Last-Modified"),
			UpdatedAt:    c.now().UTC(),
		}
		if err := c.save(dir, nm, body); err != nil {
			// Log but still return the freshly fetched body.
			appLog.Error(c.name+" cache save failed", err, "url", logURL)
		}
		appLog.Info(c.name+" fetch success", "url", logURL, "status", resp.StatusCode, "bytes", len(body))
		return Result{Body: body, UpdatedAt: nm.UpdatedAt}, nil

	case http.StatusNotModified:
		if len(cached) == 0 {
			return Result{}, errors.New("received 304 Not Modified but no cached body available")
		}
		m.UpdatedAt = c.now().UTC()
		if err := c.writeMeta(dir, m); err != nil {
			appLog.Error(c.name+" cache touch failed", err, "url", logURL)
		}
		appLog.Info(c.name+" not modified; using cache", "url", logURL)
		return Result{Body: cached, FromCache: true, UpdatedAt: m.UpdatedAt}, nil

	default:
		return stale(&StatusError{Code: resp.StatusCode}, "fetch non-OK")
	}
}

func (c *Client) pathFor(rawURL string) string {
	if c.dir == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(rawURL))
	return filepath.Join(c.dir, hex.EncodeToString(sum[:8]))
}

func (c *Client) load(dir string) (meta, []byte) {
	var m meta
	if dir == "" {
		return m, nil
	}
	if data, err := os.ReadFile(filepath.Join(dir, "meta.json")); err == nil {
		if json.Unmarshal(data, &m) != nil {
			m = meta{}
		}
	}
	body, _ := os.ReadFile(filepath.Join(dir, "body"))
	return m, body
}

func (c *Client) save(dir string, m meta, body []byte) error {
	if dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	// Body first so meta never points at a missing body.
	if err := os.WriteFile(filepath.Join(dir, "body"), body, 0o600); err != nil {
		return err
	}
	return c.writeMeta(dir, m)
}

func (c *Client) writeMeta(dir string, m meta) error {
	if dir == "" {
		return nil
	}
	data, err := json.MarshalIndent(&m, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "meta.json"), data, 0o600)
}

// RedactHost keeps only scheme and host, for URLs that embed secrets in the
// path (private calendar feeds).
func RedactHost(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "url://...(redacted)"
	}
	return u.Scheme + "://" + u.Host + "/...(redacted)"
}

// RedactQuery masks the named query parameters.
func RedactQuery(params ...string) func(string) string {
	return func(raw string) string {
		u, err := url.Parse(raw)
		if err != nil {
			return "url://...(redacted)"
		}
		q := u.Query()
		changed := false
		for _, p := range params {
			if q.Has(p) {
				q.Set(p, "REDACTED")
				changed = true
			}
		}
		if changed {
			u.RawQuery = q.Encode()
		}
		return u.String()
	}
}
