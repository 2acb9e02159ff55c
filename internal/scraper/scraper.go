package scraper

import (
	"context"
	"errors"
	"time"

	"github.com/maltedev/catalog-scraper/internal/models"
)

var ErrInvalidURL = errors.New("invalid product URL")

// DefaultUserAgent is sent with every request.
const DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64)"

// Fetcher retrieves the raw markup of a batch of product pages. Any error it
// returns is fatal to the batch.
type Fetcher interface {
	FetchAll(ctx context.Context, urls []string) ([]models.FetchResult, error)
}

type Options struct {
	ConcurrentLimit int
	Timeout         time.Duration
	ContentionDelay time.Duration
	UserAgent       string
	ExtraHeaders    map[string]string
}

func DefaultOptions() Options {
	return Options{
		ConcurrentLimit: 4,
		Timeout:         120 * time.Second,
		ContentionDelay: 1 * time.Second,
		UserAgent:       DefaultUserAgent,
		ExtraHeaders: map[string]string{
			"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
			"Accept-Language": "en-US,en;q=0.9",
		},
	}
}
