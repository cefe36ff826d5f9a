package fetcher

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// HTTPFetcher downloads via net/http with per-host rate limiting and a
// per-request timeout.
type HTTPFetcher struct {
	client    *http.Client
	timeout   time.Duration
	userAgent string
	logger    *zap.Logger

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	// defaultRate applies to hosts without an explicit limit.
	defaultRate rate.Limit
}

// Option configures an HTTPFetcher.
type Option func(*HTTPFetcher)

// WithTimeout sets the per-request deadline.
func WithTimeout(d time.Duration) Option {
	return func(f *HTTPFetcher) {
		if d > 0 {
			f.timeout = d
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(f *HTTPFetcher) { f.userAgent = ua }
}

// WithHostRate sets a requests-per-second cap for one host.
func WithHostRate(host string, rps float64) Option {
	return func(f *HTTPFetcher) {
		f.limiters[host] = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

// WithDefaultRate sets the requests-per-second cap for hosts without an
// explicit limit.
func WithDefaultRate(rps float64) Option {
	return func(f *HTTPFetcher) {
		if rps > 0 {
			f.defaultRate = rate.Limit(rps)
		}
	}
}

// WithClient replaces the underlying HTTP client.
func WithClient(c *http.Client) Option {
	return func(f *HTTPFetcher) { f.client = c }
}

// NewHTTPFetcher builds a fetcher with a 120s default timeout and a default
// per-host budget of 2 req/s.
func NewHTTPFetcher(opts ...Option) *HTTPFetcher {
	f := &HTTPFetcher{
		client:      &http.Client{},
		timeout:     120 * time.Second,
		logger:      zap.L().With(zap.String("component", "fetcher")),
		limiters:    make(map[string]*rate.Limiter),
		defaultRate: 2,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *HTTPFetcher) limiter(host string) *rate.Limiter {
	f.mu.Lock()
	defer f.mu.Unlock()
	lim, ok := f.limiters[host]
	if !ok {
		lim = rate.NewLimiter(f.defaultRate, 1)
		f.limiters[host] = lim
	}
	return lim
}

// Fetch performs a single GET. Non-2xx responses return ErrFetch; hitting
// the per-request deadline returns ErrTimeout. No retries at this layer.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, eris.Wrapf(err, "fetch: parse url %q", rawURL)
	}
	if err := f.limiter(u.Host).Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "fetch: rate wait")
	}

	reqCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "fetch: build request")
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, eris.Wrapf(ErrTimeout, "after %s: %s", f.timeout, rawURL)
		}
		return nil, eris.Wrapf(err, "fetch: %s", rawURL)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, eris.Wrapf(ErrFetch, "status %d: %s", resp.StatusCode, rawURL)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, eris.Wrapf(ErrTimeout, "reading body after %s: %s", f.timeout, rawURL)
		}
		return nil, eris.Wrapf(err, "fetch: read body %s", rawURL)
	}

	f.logger.Debug("downloaded",
		zap.String("url", rawURL),
		zap.Int("bytes", len(body)),
		zap.Duration("elapsed", time.Since(start)))
	return body, nil
}
