package scraper

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/maltedev/catalog-scraper/internal/models"
	"github.com/maltedev/catalog-scraper/internal/observability"
	"github.com/maltedev/catalog-scraper/internal/ratelimit"
	"golang.org/x/sync/errgroup"
)

// HTTPFetcher fetches pages over plain HTTP with at most ConcurrentLimit
// requests in flight. A fetch that finds the gate saturated waits
// ContentionDelay before its status is checked.
type HTTPFetcher struct {
	client    *http.Client
	gate      *ratelimit.Gate
	backoff   ratelimit.RateLimiter
	userAgent string
	headers   map[string]string
	logger    *slog.Logger
	metrics   *observability.Metrics
}

func NewHTTPFetcher(opts Options, logger *slog.Logger, metrics *observability.Metrics) *HTTPFetcher {
	defaults := DefaultOptions()
	if opts.ConcurrentLimit < 1 {
		opts.ConcurrentLimit = defaults.ConcurrentLimit
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaults.Timeout
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaults.UserAgent
	}

	return &HTTPFetcher{
		// the default CheckRedirect follows up to 10 redirects
		client:    &http.Client{Timeout: opts.Timeout},
		gate:      ratelimit.NewGate(opts.ConcurrentLimit),
		backoff:   ratelimit.NewFixedBackoff(opts.ContentionDelay),
		userAgent: opts.UserAgent,
		headers:   opts.ExtraHeaders,
		logger:    logger.With("component", "fetcher"),
		metrics:   metrics,
	}
}

// FetchAll returns one result per URL in completion order. The first failure
// cancels the remaining requests and no results are returned.
func (f *HTTPFetcher) FetchAll(ctx context.Context, urls []string) ([]models.FetchResult, error) {
	results := make([]models.FetchResult, 0, len(urls))
	if len(urls) == 0 {
		return results, nil
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for _, u := range urls {
		u := u
		g.Go(func() error {
			res, err := f.fetch(gctx, u)
			if err != nil {
				return err
			}
			mu.Lock()
			results = append(results, res)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		f.logger.Error("batch fetch aborted", "error", err)
		return nil, err
	}

	f.logger.Info("batch fetched", "pages", len(results))
	return results, nil
}

func (f *HTTPFetcher) fetch(ctx context.Context, rawURL string) (models.FetchResult, error) {
	if err := validateURL(rawURL); err != nil {
		return models.FetchResult{}, &models.NetworkError{URL: rawURL, Err: err}
	}

	f.logger.Debug("fetching page", "url", rawURL)

	if err := f.gate.Acquire(ctx); err != nil {
		return models.FetchResult{}, &models.NetworkError{URL: rawURL, Err: err}
	}
	defer f.gate.Release()

	start := time.Now()
	body, err := f.get(ctx, rawURL)
	f.metrics.ObserveFetch(time.Since(start), err)
	if err != nil {
		return models.FetchResult{}, err
	}

	f.logger.Info("page fetched", "url", rawURL, "bytes", len(body), "duration", time.Since(start))
	return models.FetchResult{URL: rawURL, HTML: body}, nil
}

func (f *HTTPFetcher) get(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &models.NetworkError{URL: rawURL, Err: err}
	}
	for k, v := range f.headers {
		req.Header.Set(k, v)
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &models.NetworkError{URL: rawURL, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &models.NetworkError{URL: rawURL, Err: fmt.Errorf("failed to read body: %w", err)}
	}

	if f.gate.Saturated() {
		f.metrics.ObserveBackoff()
		f.logger.Debug("gate saturated, backing off", "url", rawURL)
		if err := f.backoff.Wait(ctx); err != nil {
			return nil, &models.NetworkError{URL: rawURL, Err: err}
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &models.NetworkError{URL: rawURL, StatusCode: resp.StatusCode}
	}

	return body, nil
}

func validateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if !u.IsAbs() || u.Host == "" {
		return fmt.Errorf("%w: %q is not absolute", ErrInvalidURL, rawURL)
	}
	return nil
}
