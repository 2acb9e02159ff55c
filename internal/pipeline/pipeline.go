package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/maltedev/catalog-scraper/internal/assembler"
	"github.com/maltedev/catalog-scraper/internal/models"
	"github.com/maltedev/catalog-scraper/internal/observability"
	"github.com/maltedev/catalog-scraper/internal/parser"
	"github.com/maltedev/catalog-scraper/internal/scraper"
	"github.com/maltedev/catalog-scraper/internal/storage"
)

// Run outcomes as reported to metrics.
const (
	OutcomeCompleted   = "completed"
	OutcomeFetchFailed = "fetch_failed"
	OutcomeStoreFailed = "store_failed"
	OutcomeCancelled   = "cancelled"
)

// Runner drives one batch: fetch every URL, replace the raw store with the
// pages, then extract and assemble a record per stored page. Runs are
// serialised because each one replaces the raw store wholesale.
type Runner struct {
	mu          sync.Mutex
	fetcher     scraper.Fetcher
	store       storage.RawStore
	parser      parser.Parser
	customLabel string
	logger      *slog.Logger
	metrics     *observability.Metrics
	now         func() time.Time
}

type Options struct {
	CustomLabel string
	Metrics     *observability.Metrics
}

func NewRunner(f scraper.Fetcher, store storage.RawStore, p parser.Parser, opts Options, logger *slog.Logger) *Runner {
	if opts.CustomLabel == "" {
		opts.CustomLabel = assembler.DefaultCustomLabel
	}
	return &Runner{
		fetcher:     f,
		store:       store,
		parser:      p,
		customLabel: opts.CustomLabel,
		logger:      logger.With("component", "pipeline"),
		metrics:     opts.Metrics,
		now:         time.Now,
	}
}

// Run returns either a report or a fatal error, never both. Network and
// store failures are fatal; a page that cannot be extracted is recorded in
// Report.Failures and the batch continues.
func (r *Runner) Run(ctx context.Context, urls []string) (*models.Report, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	report := &models.Report{
		RunID:     uuid.New().String(),
		Records:   []*models.Record{},
		Failures:  []*models.ExtractionError{},
		StartedAt: r.now(),
	}
	logger := r.logger.With("run_id", report.RunID)
	logger.Info("starting run", "urls", len(urls))

	pages, err := r.fetcher.FetchAll(ctx, urls)
	if err != nil {
		logger.Error("fetch failed", "error", err)
		r.metrics.ObserveRun(OutcomeFetchFailed)
		return nil, err
	}

	if err := r.store.Replace(ctx, pages); err != nil {
		logger.Error("failed to persist raw pages", "error", err)
		r.metrics.ObserveRun(OutcomeStoreFailed)
		return nil, err
	}

	stored, err := r.store.List(ctx)
	if err != nil {
		logger.Error("failed to read raw pages", "error", err)
		r.metrics.ObserveRun(OutcomeStoreFailed)
		return nil, err
	}
	report.Fetched = len(stored)

	for _, page := range stored {
		if err := ctx.Err(); err != nil {
			r.metrics.ObserveRun(OutcomeCancelled)
			return nil, err
		}

		rec, err := r.extract(page)
		r.metrics.ObserveExtraction(err)
		if err != nil {
			var extErr *models.ExtractionError
			if !errors.As(err, &extErr) {
				extErr = &models.ExtractionError{URL: page.URL, Err: err}
			}
			logger.Warn("extraction failed", "url", page.URL, "error", extErr.Err)
			report.Failures = append(report.Failures, extErr)
			continue
		}
		report.Records = append(report.Records, rec)
	}

	report.FinishedAt = r.now()
	r.metrics.ObserveRun(OutcomeCompleted)
	logger.Info("run completed",
		"fetched", report.Fetched,
		"records", len(report.Records),
		"failures", len(report.Failures),
		"duration", report.FinishedAt.Sub(report.StartedAt))

	return report, nil
}

func (r *Runner) extract(page models.FetchResult) (*models.Record, error) {
	product, err := r.parser.ParseProductPage(page.URL, page.HTML)
	if err != nil {
		return nil, err
	}

	fields := assembler.Assemble(product.Payload, product.OptionNames)
	if err := fields.Apply(product.Record, r.customLabel); err != nil {
		return nil, &models.ExtractionError{URL: page.URL, Err: fmt.Errorf("failed to assemble variants: %w", err)}
	}
	return product.Record, nil
}
