package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"regexp"
	"sync"

	"github.com/maltedev/catalog-scraper/internal/models"
)

// DefaultTable is the raw page table of the SQL backends.
const DefaultTable = "products_src"

var ErrInvalidTable = errors.New("invalid table name")

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// RawStore persists the raw markup of a run keyed by URL. Replace discards
// everything previously stored and writes the batch as a whole.
type RawStore interface {
	Replace(ctx context.Context, pages []models.FetchResult) error
	List(ctx context.Context) ([]models.FetchResult, error)
	Close() error
}

func ValidateTable(name string) error {
	if !tableName.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidTable, name)
	}
	return nil
}

type MemoryStore struct {
	mu    sync.RWMutex
	pages []models.FetchResult
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Replace(ctx context.Context, pages []models.FetchResult) error {
	if err := ctx.Err(); err != nil {
		return &models.StoreError{Op: "replace", Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.pages = copyPages(pages)
	return nil
}

func (s *MemoryStore) List(ctx context.Context) ([]models.FetchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, &models.StoreError{Op: "list", Err: err}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return copyPages(s.pages), nil
}

func (s *MemoryStore) Close() error {
	return nil
}

// FileStore keeps the raw pages in one JSON file, rewritten atomically on
// every Replace.
type FileStore struct {
	mu       sync.Mutex
	filename string
}

type filePage struct {
	URL  string `json:"url"`
	HTML []byte `json:"html"`
}

func NewFileStore(filename string) *FileStore {
	return &FileStore{filename: filename}
}

func (s *FileStore) Replace(ctx context.Context, pages []models.FetchResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := make([]filePage, len(pages))
	for i, p := range pages {
		entries[i] = filePage{URL: p.URL, HTML: p.HTML}
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return &models.StoreError{Op: "replace", Err: err}
	}

	// Write to temp file first for atomicity
	tmpFile := s.filename + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0644); err != nil {
		return &models.StoreError{Op: "replace", Err: err}
	}
	if err := os.Rename(tmpFile, s.filename); err != nil {
		return &models.StoreError{Op: "replace", Err: err}
	}
	return nil
}

func (s *FileStore) List(ctx context.Context) ([]models.FetchResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.filename)
	if errors.Is(err, os.ErrNotExist) {
		return []models.FetchResult{}, nil
	}
	if err != nil {
		return nil, &models.StoreError{Op: "list", Err: err}
	}

	var entries []filePage
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, &models.StoreError{Op: "list", Err: err}
	}

	pages := make([]models.FetchResult, len(entries))
	for i, e := range entries {
		pages[i] = models.FetchResult{URL: e.URL, HTML: e.HTML}
	}
	return pages, nil
}

func (s *FileStore) Close() error {
	return nil
}

func copyPages(pages []models.FetchResult) []models.FetchResult {
	out := make([]models.FetchResult, len(pages))
	for i, p := range pages {
		html := make([]byte, len(p.HTML))
		copy(html, p.HTML)
		out[i] = models.FetchResult{URL: p.URL, HTML: html}
	}
	return out
}
