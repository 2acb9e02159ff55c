package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/maltedev/catalog-scraper/internal/models"
	"github.com/redis/go-redis/v9"
)

// DefaultStream receives one entry per extracted record.
const DefaultStream = "stream:catalog_records"

// EventType represents the type of event
type EventType string

const (
	EventTypeRecordExtracted EventType = "CATALOG_RECORD_EXTRACTED"
	EventTypeRunCompleted    EventType = "CATALOG_RUN_COMPLETED"
)

const source = "catalog-scraper"

// RedisClient interface for Redis operations (for testing)
type RedisClient interface {
	XAdd(ctx context.Context, args *redis.XAddArgs) *redis.StringCmd
	Close() error
}

// Publisher writes a finished run to a Redis stream: every record, then a
// completion event carrying the run summary.
type Publisher struct {
	redis  RedisClient
	stream string
	maxLen int64
	logger *slog.Logger
	now    func() time.Time
}

type Config struct {
	Stream string
	// MaxLen approximately caps the stream; 0 leaves it unbounded.
	MaxLen int64
}

func NewPublisher(client RedisClient, cfg Config, logger *slog.Logger) *Publisher {
	if cfg.Stream == "" {
		cfg.Stream = DefaultStream
	}
	return &Publisher{
		redis:  client,
		stream: cfg.Stream,
		maxLen: cfg.MaxLen,
		logger: logger.With("component", "event_publisher"),
		now:    time.Now,
	}
}

type runSummary struct {
	Fetched  int                       `json:"fetched"`
	Records  int                       `json:"records"`
	Failures []*models.ExtractionError `json:"failures"`
}

func (p *Publisher) Write(ctx context.Context, report *models.Report) error {
	for _, rec := range report.Records {
		if err := p.publish(ctx, EventTypeRecordExtracted, report.RunID, rec.Handle(), rec); err != nil {
			return err
		}
	}

	summary := runSummary{
		Fetched:  report.Fetched,
		Records:  len(report.Records),
		Failures: report.Failures,
	}
	if summary.Failures == nil {
		summary.Failures = []*models.ExtractionError{}
	}
	if err := p.publish(ctx, EventTypeRunCompleted, report.RunID, report.RunID, summary); err != nil {
		return err
	}

	p.logger.Info("published run to stream",
		"stream", p.stream,
		"run_id", report.RunID,
		"records", len(report.Records))
	return nil
}

// publish adds one stream entry. The envelope mirrors what stream consumers
// expect: id, type, aggregate id, timestamp, payload and metadata.
func (p *Publisher) publish(ctx context.Context, eventType EventType, runID, aggregateID string, payload interface{}) error {
	eventID := uuid.New().String()
	ts := p.now().UTC()

	streamData := map[string]interface{}{
		"id":           eventID,
		"type":         string(eventType),
		"aggregate_id": aggregateID,
		"timestamp":    ts.Format(time.RFC3339),
		"payload":      payload,
		"metadata": map[string]interface{}{
			"source": source,
			"run_id": runID,
		},
	}

	dataJSON, err := json.Marshal(streamData)
	if err != nil {
		return fmt.Errorf("failed to marshal stream data: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]interface{}{
			"data":         string(dataJSON),
			"type":         string(eventType),
			"timestamp":    fmt.Sprintf("%d", ts.UnixNano()),
			"event_id":     eventID,
			"run_id":       runID,
			"aggregate_id": aggregateID,
		},
	}
	if p.maxLen > 0 {
		args.MaxLen = p.maxLen
		args.Approx = true
	}

	if _, err := p.redis.XAdd(ctx, args).Result(); err != nil {
		return fmt.Errorf("failed to publish to redis: %w", err)
	}

	p.logger.Debug("event published",
		"event_id", eventID,
		"type", eventType,
		"aggregate_id", aggregateID)
	return nil
}

func (p *Publisher) Close() error {
	return p.redis.Close()
}
