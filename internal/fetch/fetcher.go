package fetch

import (
	"context"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// ErrRetriesExhausted is returned once every attempt for a URL has failed.
// Callers treat it as "no data available" and move on to the next item.
var ErrRetriesExhausted = errors.New("retries exhausted")

// Response is a fetched page or file.
type Response struct {
	URL        string
	StatusCode int
	Header     http.Header
	Body       []byte
}

// OK reports whether the status code is below 400.
func (r *Response) OK() bool {
	return r != nil && r.StatusCode > 0 && r.StatusCode < http.StatusBadRequest
}

// Getter performs a single GET request.
type Getter interface {
	Get(ctx context.Context, url string) (*Response, error)
}

// Options tunes a Fetcher.
type Options struct {
	MaxRetries        int
	WaitTime          time.Duration
	RequestsPerSecond float64
}

// Fetcher wraps a Getter with bounded retries. A non-OK status waits
// WaitTime*attempt before the next attempt; a transport error retries
// immediately.
type Fetcher struct {
	log        zerolog.Logger
	getter     Getter
	maxRetries int
	waitTime   time.Duration
	limiter    *rate.Limiter
	sleep      func(ctx context.Context, d time.Duration) error
}

// New creates a Fetcher. The limiter is shared by every caller of the Fetcher.
func New(log zerolog.Logger, getter Getter, opts Options) *Fetcher {
	maxRetries := opts.MaxRetries
	if maxRetries < 1 {
		maxRetries = 1
	}

	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}

	return &Fetcher{
		log:        log.With().Str("module", "fetch").Logger(),
		getter:     getter,
		maxRetries: maxRetries,
		waitTime:   opts.WaitTime,
		limiter:    rate.NewLimiter(limit, 1),
		sleep:      sleepContext,
	}
}

// Fetch requests url until an OK response arrives or the attempt budget is
// spent. Exhaustion returns an error wrapping ErrRetriesExhausted.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*Response, error) {
	for attempt := 1; attempt <= f.maxRetries; attempt++ {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, errors.Wrap(err, "rate limiter")
		}

		resp, err := f.getter.Get(ctx, url)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			f.log.Warn().Err(err).Str("url", url).Int("attempt", attempt).Msg("request failed")
			continue
		}

		if resp.OK() {
			return resp, nil
		}

		if attempt == f.maxRetries {
			break
		}

		wait := f.waitTime * time.Duration(attempt)
		f.log.Info().
			Str("url", url).
			Int("status", resp.StatusCode).
			Dur("wait", wait).
			Msg("unexpected status, trying again")

		if err := f.sleep(ctx, wait); err != nil {
			return nil, err
		}
	}

	f.log.Warn().Str("url", url).Int("attempts", f.maxRetries).Msg("failed to get response")
	return nil, errors.Wrapf(ErrRetriesExhausted, "%s after %d attempts", url, f.maxRetries)
}

// Source is anything that resolves a URL to a successful response.
type Source interface {
	Fetch(ctx context.Context, url string) (*Response, error)
}

// Process fetches url and hands the successful response to fn.
func Process[T any](ctx context.Context, f Source, url string, fn func(*Response) (T, error)) (T, error) {
	var zero T
	resp, err := f.Fetch(ctx, url)
	if err != nil {
		return zero, err
	}
	return fn(resp)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
