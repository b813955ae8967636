package fetch

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/gocolly/colly"
	"github.com/gocolly/colly/extensions"
	"github.com/pkg/errors"
)

// CollyOptions configures the colly transport.
type CollyOptions struct {
	Timeout     time.Duration
	RandomDelay time.Duration
	CacheDir    string
}

// CollyGetter issues requests through a colly collector so response caching,
// user agent rotation and per-domain delays come from one place.
type CollyGetter struct {
	base     *colly.Collector
	cacheDir string
}

// NewCollyGetter builds the base collector every request is cloned from.
func NewCollyGetter(opts CollyOptions) (*CollyGetter, error) {
	c := colly.NewCollector(
		colly.AllowURLRevisit(),
		colly.MaxBodySize(0),
	)
	c.ParseHTTPErrorResponse = true

	if opts.CacheDir != "" {
		c.CacheDir = opts.CacheDir
	}

	if opts.Timeout > 0 {
		c.SetRequestTimeout(opts.Timeout)
	}

	if opts.RandomDelay > 0 {
		if err := c.Limit(&colly.LimitRule{
			DomainGlob:  "*",
			RandomDelay: opts.RandomDelay,
		}); err != nil {
			return nil, errors.Wrap(err, "failed to set limit rule")
		}
	}

	return &CollyGetter{base: c, cacheDir: opts.CacheDir}, nil
}

// Get visits rawURL once. Every status code is returned as a Response; only
// transport failures are errors.
func (g *CollyGetter) Get(ctx context.Context, rawURL string) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c := g.base.Clone()
	c.AllowURLRevisit = true
	c.ParseHTTPErrorResponse = true
	c.MaxBodySize = 0
	c.CacheDir = g.cacheDir
	extensions.RandomUserAgent(c)

	var resp *Response
	c.OnResponse(func(r *colly.Response) {
		resp = &Response{
			URL:        r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Body:       r.Body,
		}
		if r.Headers != nil {
			resp.Header = *r.Headers
		}
	})

	if err := c.Visit(rawURL); err != nil {
		return nil, errors.Wrapf(err, "failed to visit %s", rawURL)
	}

	if resp == nil {
		return nil, errors.Errorf("no response from %s", rawURL)
	}

	if !resp.OK() {
		if err := g.evict(rawURL); err != nil {
			return nil, err
		}
	}

	return resp, nil
}

// evict removes the cached copy of url so the next attempt reaches the
// server. colly caches every response below 500.
func (g *CollyGetter) evict(rawURL string) error {
	if g.cacheDir == "" {
		return nil
	}

	path := g.cachePath(rawURL)
	if path == "" {
		return nil
	}

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "failed to evict cached %s", rawURL)
	}
	return nil
}

// cachePath mirrors colly's cache layout: <dir>/<sha1[:2]>/<sha1> of the
// request url.
func (g *CollyGetter) cachePath(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	if u.Scheme == "" {
		u.Scheme = "http"
	}

	sum := sha1.Sum([]byte(u.String()))
	hash := hex.EncodeToString(sum[:])
	return filepath.Join(g.cacheDir, hash[:2], hash)
}
