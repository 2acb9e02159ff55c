package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/maltedev/catalog-scraper/internal/catalog"
	"github.com/maltedev/catalog-scraper/internal/config"
	"github.com/maltedev/catalog-scraper/internal/database"
	"github.com/maltedev/catalog-scraper/internal/events"
	"github.com/maltedev/catalog-scraper/internal/export"
	"github.com/maltedev/catalog-scraper/internal/observability"
	"github.com/maltedev/catalog-scraper/internal/parser"
	"github.com/maltedev/catalog-scraper/internal/pipeline"
	"github.com/maltedev/catalog-scraper/internal/scraper"
	"github.com/maltedev/catalog-scraper/internal/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
)

// app holds everything a command needs, built once from config.
type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	registry  *prometheus.Registry
	template  *catalog.Template
	store     storage.RawStore
	runner    *pipeline.Runner
	redis     *redis.Client
	publisher *events.Publisher
}

func newLogger(cfg config.LoggingConfig, w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.ToLower(cfg.Format) == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	a := &app{
		cfg:      cfg,
		logger:   logger,
		registry: prometheus.NewRegistry(),
	}
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(a.registry)

	tmpl := catalog.Default()
	if cfg.Catalog.TemplatePath != "" {
		t, err := catalog.LoadFile(cfg.Catalog.TemplatePath)
		if err != nil {
			return nil, fmt.Errorf("failed to load catalog template: %w", err)
		}
		tmpl = t
	}
	a.template = tmpl

	if cfg.Storage.Backend == config.StoreRedis || cfg.Output.Publish {
		a.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := a.redis.Ping(ctx).Err(); err != nil {
			a.close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
	}

	store, err := a.openRawStore(ctx)
	if err != nil {
		a.close()
		return nil, err
	}
	a.store = store

	if cfg.Output.Publish {
		a.publisher = events.NewPublisher(a.redis, events.Config{
			Stream: cfg.Redis.Stream,
			MaxLen: cfg.Redis.StreamMaxLen,
		}, logger)
	}

	fetcher := scraper.NewHTTPFetcher(scraper.Options{
		ConcurrentLimit: cfg.Scraper.ConcurrentLimit,
		Timeout:         cfg.Scraper.Timeout,
		ContentionDelay: cfg.Scraper.ContentionDelay,
		UserAgent:       cfg.Scraper.UserAgent,
		ExtraHeaders:    scraper.DefaultOptions().ExtraHeaders,
	}, logger, metrics)

	p := parser.NewShopifyParser(tmpl, parser.Options{
		Vendor:          cfg.Catalog.Vendor,
		AttributePrefix: cfg.Catalog.AttributePrefix,
	}, logger)

	a.runner = pipeline.NewRunner(fetcher, store, p, pipeline.Options{
		CustomLabel: cfg.Catalog.CustomLabel,
		Metrics:     metrics,
	}, logger)

	return a, nil
}

func (a *app) openRawStore(ctx context.Context) (storage.RawStore, error) {
	s := a.cfg.Storage
	a.logger.Info("opening raw store", "backend", s.Backend)

	switch s.Backend {
	case config.StoreMemory:
		return storage.NewMemoryStore(), nil
	case config.StoreFile:
		return storage.NewFileStore(s.FilePath), nil
	case config.StoreSQLite:
		return storage.NewSQLiteStore(ctx, s.SQLitePath, s.Table)
	case config.StoreRedis:
		// the client is shared with the publisher and closed by the app
		return storage.NewRedisStore(nopCloser{a.redis}, s.RedisKey), nil
	case config.StorePostgres:
		if err := storage.ValidateTable(s.Table); err != nil {
			return nil, err
		}
		db, err := database.New(ctx, database.Config{
			Host:     a.cfg.Database.Host,
			Port:     a.cfg.Database.Port,
			User:     a.cfg.Database.User,
			Password: a.cfg.Database.Password,
			Database: a.cfg.Database.DBName,
			SSLMode:  a.cfg.Database.SSLMode,
			MaxConns: a.cfg.Database.MaxConns,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		store, err := database.NewRawStore(ctx, db, s.Table)
		if err != nil {
			db.Close()
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown raw store backend %q", s.Backend)
	}
}

// sinks returns the file sink for w plus the stream publisher when enabled.
func (a *app) sinks(format export.Format, w io.Writer) (export.Sink, error) {
	fileSink, err := export.New(format, w, a.template.Fields())
	if err != nil {
		return nil, err
	}
	if a.publisher == nil {
		return fileSink, nil
	}
	return export.Multi{fileSink, a.publisher}, nil
}

func (a *app) close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Error("failed to close raw store", "error", err)
		}
	}
	if a.redis != nil {
		a.redis.Close()
	}
}

type nopCloser struct {
	*redis.Client
}

func (nopCloser) Close() error { return nil }

// readURLs collects URLs from args and an optional file with one URL per
// line. Blank lines and lines starting with # are skipped.
func readURLs(args []string, file string) ([]string, error) {
	urls := append([]string(nil), args...)
	if file == "" {
		return urls, nil
	}

	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read urls file: %w", err)
	}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	return urls, nil
}
