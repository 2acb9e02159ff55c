package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/maltedev/catalog-scraper/internal/models"
	"github.com/redis/go-redis/v9"
)

// DefaultRedisKey holds the raw pages as a list of JSON entries.
const DefaultRedisKey = "catalog:raw_pages"

// RedisClient is the subset of the go-redis client the store uses.
type RedisClient interface {
	TxPipelined(ctx context.Context, fn func(redis.Pipeliner) error) ([]redis.Cmder, error)
	LRange(ctx context.Context, key string, start, stop int64) *redis.StringSliceCmd
	Close() error
}

type RedisStore struct {
	client RedisClient
	key    string
}

func NewRedisStore(client RedisClient, key string) *RedisStore {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisStore{client: client, key: key}
}

// Replace swaps the list contents inside MULTI/EXEC so readers never see a
// partial batch.
func (s *RedisStore) Replace(ctx context.Context, pages []models.FetchResult) error {
	entries, err := encodePages(pages)
	if err != nil {
		return &models.StoreError{Op: "replace", Err: err}
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.key)
		if len(entries) > 0 {
			pipe.RPush(ctx, s.key, entries...)
		}
		return nil
	})
	if err != nil {
		return &models.StoreError{Op: "replace", Err: fmt.Errorf("failed to write pages to redis: %w", err)}
	}
	return nil
}

func (s *RedisStore) List(ctx context.Context) ([]models.FetchResult, error) {
	raw, err := s.client.LRange(ctx, s.key, 0, -1).Result()
	if err != nil {
		return nil, &models.StoreError{Op: "list", Err: fmt.Errorf("failed to read pages from redis: %w", err)}
	}

	pages, err := decodePages(raw)
	if err != nil {
		return nil, &models.StoreError{Op: "list", Err: err}
	}
	return pages, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func encodePages(pages []models.FetchResult) ([]interface{}, error) {
	entries := make([]interface{}, len(pages))
	for i, p := range pages {
		data, err := json.Marshal(filePage{URL: p.URL, HTML: p.HTML})
		if err != nil {
			return nil, fmt.Errorf("failed to encode page %s: %w", p.URL, err)
		}
		entries[i] = string(data)
	}
	return entries, nil
}

func decodePages(raw []string) ([]models.FetchResult, error) {
	pages := make([]models.FetchResult, 0, len(raw))
	for _, entry := range raw {
		var p filePage
		if err := json.Unmarshal([]byte(entry), &p); err != nil {
			return nil, fmt.Errorf("failed to decode page: %w", err)
		}
		pages = append(pages, models.FetchResult{URL: p.URL, HTML: p.HTML})
	}
	return pages, nil
}
