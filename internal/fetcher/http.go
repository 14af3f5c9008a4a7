package fetcher

import (
	"context"
	"io"
	"math"
	"math/rand/v2"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// HTTPOptions configures the HTTP fetcher.
type HTTPOptions struct {
	UserAgent    string
	Timeout      time.Duration
	MaxRetries   int
	RateLimiters map[string]*rate.Limiter
}

// DefaultRateLimiters returns per-host limiters for the public data hosts
// the loaders pull from.
func DefaultRateLimiters() map[string]*rate.Limiter {
	return map[string]*rate.Limiter{
		"www2.census.gov": rate.NewLimiter(5, 5),
		"www.huduser.gov": rate.NewLimiter(2, 2),
	}
}

// HTTPFetcher implements Fetcher over net/http with retry and per-host rate
// limiting.
type HTTPFetcher struct {
	client *http.Client
	opts   HTTPOptions
}

// NewHTTPFetcher creates an HTTPFetcher.
func NewHTTPFetcher(opts HTTPOptions) *HTTPFetcher {
	if opts.Timeout == 0 {
		opts.Timeout = 2 * time.Minute
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = 3
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "sitescore/1.0"
	}
	if opts.RateLimiters == nil {
		opts.RateLimiters = DefaultRateLimiters()
	}
	return &HTTPFetcher{
		client: &http.Client{Timeout: opts.Timeout},
		opts:   opts,
	}
}

// Download implements Fetcher.
func (f *HTTPFetcher) Download(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	if err := f.wait(ctx, rawURL); err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 0; attempt <= f.opts.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, eris.Wrap(ctx.Err(), "fetcher: download cancelled")
			case <-time.After(backoff(attempt)):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, eris.Wrapf(err, "fetcher: build request for %s", rawURL)
		}
		req.Header.Set("User-Agent", f.opts.UserAgent)

		resp, err := f.client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		switch {
		case resp.StatusCode == http.StatusOK:
			return resp.Body, nil
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			resp.Body.Close()
			lastErr = eris.Errorf("fetcher: %s returned status %d", rawURL, resp.StatusCode)
			zap.L().Debug("fetcher: retrying download",
				zap.String("url", rawURL),
				zap.Int("status", resp.StatusCode),
				zap.Int("attempt", attempt+1),
			)
			continue
		default:
			resp.Body.Close()
			return nil, eris.Errorf("fetcher: %s returned status %d", rawURL, resp.StatusCode)
		}
	}

	return nil, eris.Wrapf(lastErr, "fetcher: download %s failed after %d attempts", rawURL, f.opts.MaxRetries+1)
}

// DownloadToFile implements Fetcher.
func (f *HTTPFetcher) DownloadToFile(ctx context.Context, rawURL, path string) (int64, error) {
	body, err := f.Download(ctx, rawURL)
	if err != nil {
		return 0, err
	}
	defer body.Close() //nolint:errcheck

	out, err := os.Create(path)
	if err != nil {
		return 0, eris.Wrapf(err, "fetcher: create %s", path)
	}
	defer out.Close() //nolint:errcheck

	n, err := io.Copy(out, body)
	if err != nil {
		return n, eris.Wrapf(err, "fetcher: write %s", path)
	}
	return n, nil
}

func (f *HTTPFetcher) wait(ctx context.Context, rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return eris.Wrapf(err, "fetcher: parse url %s", rawURL)
	}
	limiter, ok := f.opts.RateLimiters[u.Host]
	if !ok {
		return nil
	}
	if err := limiter.Wait(ctx); err != nil {
		return eris.Wrapf(err, "fetcher: rate limit wait for %s", u.Host)
	}
	return nil
}

// backoff returns an exponential delay with jitter.
func backoff(attempt int) time.Duration {
	base := time.Duration(math.Pow(2, float64(attempt-1))) * time.Second
	jitter := time.Duration(rand.Int64N(int64(base / 2)))
	return base + jitter
}
