package fetcher

import (
	"context"
	"io"
	"math"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/haven-collective/careatlas/internal/resilience"
)

// userAgents is the identity pool rotated across requests so repeated
// pulls don't present a single fingerprint to directory hosts.
var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:89.0) Gecko/20100101 Firefox/89.0",
}

// HTTPOptions configures the HTTP fetcher.
type HTTPOptions struct {
	Timeout      time.Duration // per-request timeout, default 10s
	MaxRetries   int           // retries after the first attempt, default 2
	RetryDelay   time.Duration // base inter-retry delay, default 2s
	RequestsPerS float64       // shared outbound rate, default 1 req/s
	MaxRedirects int           // redirect-follow bound, default 5
}

// HTTPFetcher implements Fetcher using net/http with a shared rate limiter,
// identity rotation, and retry with exponential backoff.
type HTTPFetcher struct {
	client  *http.Client
	opts    HTTPOptions
	limiter *rate.Limiter
}

// NewHTTPFetcher creates an HTTPFetcher with the given options.
func NewHTTPFetcher(opts HTTPOptions) *HTTPFetcher {
	if opts.Timeout == 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = 2
	}
	if opts.RetryDelay == 0 {
		opts.RetryDelay = 2 * time.Second
	}
	if opts.RequestsPerS == 0 {
		opts.RequestsPerS = 1
	}
	if opts.MaxRedirects == 0 {
		opts.MaxRedirects = 5
	}

	maxRedirects := opts.MaxRedirects
	return &HTTPFetcher{
		client: &http.Client{
			Timeout: opts.Timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return eris.Errorf("stopped after %d redirects", maxRedirects)
				}
				return nil
			},
		},
		opts:    opts,
		limiter: rate.NewLimiter(rate.Limit(opts.RequestsPerS), 1),
	}
}

// Fetch retrieves the URL, retrying transient failures up to the
// configured cap. It never panics past its own boundary; exhaustion
// returns a wrapped error for the caller to treat as an empty source.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= f.opts.MaxRetries; attempt++ {
		if attempt > 0 {
			zap.L().Warn("retrying request",
				zap.String("url", url),
				zap.Int("attempt", attempt),
				zap.Int("max_retries", f.opts.MaxRetries),
				zap.Error(lastErr),
			)
			if err := f.sleep(ctx, attempt); err != nil {
				return nil, err
			}
		}

		if err := f.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "fetch: rate limiter wait")
		}

		body, err := f.do(ctx, url)
		if err == nil {
			return body, nil
		}
		lastErr = err

		if !resilience.IsTransient(err) {
			break
		}
	}

	zap.L().Warn("request failed after all attempts",
		zap.String("url", url),
		zap.Error(lastErr),
	)
	return nil, eris.Wrapf(lastErr, "fetch %s: all attempts exhausted", url)
}

func (f *HTTPFetcher) do(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, eris.Wrap(err, "fetch: create request")
	}
	req.Header.Set("User-Agent", userAgents[rand.IntN(len(userAgents))])
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "fetch: request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("fetch: http %d from %s", resp.StatusCode, url)
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(err, resp.StatusCode)
		}
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "fetch: read body")
	}
	return body, nil
}

// sleep waits the inter-retry delay, grown exponentially by attempt with
// jitter, or returns early if the context is done.
func (f *HTTPFetcher) sleep(ctx context.Context, attempt int) error {
	d := time.Duration(float64(f.opts.RetryDelay) * math.Pow(2, float64(attempt-1)))
	if d > 30*time.Second {
		d = 30 * time.Second
	}
	d += time.Duration(rand.Int64N(int64(d) / 2))

	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return eris.Wrap(ctx.Err(), "fetch: canceled during backoff")
	case <-t.C:
		return nil
	}
}
