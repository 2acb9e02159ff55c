package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/maltedev/catalog-scraper/internal/models"
)

// RawStore keeps the raw pages of the latest run in Postgres. Every Replace
// truncates the table and bulk-loads the batch with COPY in one transaction.
type RawStore struct {
	db    *DB
	table string
}

// NewRawStore creates the table when missing. The name must already be a
// plain SQL identifier.
func NewRawStore(ctx context.Context, db *DB, table string) (*RawStore, error) {
	s := &RawStore{db: db, table: table}

	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id BIGSERIAL PRIMARY KEY,
			url TEXT NOT NULL,
			html BYTEA NOT NULL
		)`, pgx.Identifier{table}.Sanitize())

	if _, err := db.Exec(ctx, query); err != nil {
		return nil, &models.StoreError{Op: "open", Err: fmt.Errorf("failed to create table: %w", err)}
	}
	return s, nil
}

func (s *RawStore) Replace(ctx context.Context, pages []models.FetchResult) error {
	err := s.db.Transaction(ctx, func(tx pgx.Tx) error {
		truncate := fmt.Sprintf("TRUNCATE %s RESTART IDENTITY", pgx.Identifier{s.table}.Sanitize())
		if _, err := tx.Exec(ctx, truncate); err != nil {
			return fmt.Errorf("failed to truncate: %w", err)
		}
		if len(pages) == 0 {
			return nil
		}

		rows := make([][]interface{}, len(pages))
		for i, p := range pages {
			rows[i] = []interface{}{p.URL, p.HTML}
		}

		n, err := tx.CopyFrom(ctx, pgx.Identifier{s.table}, []string{"url", "html"}, pgx.CopyFromRows(rows))
		if err != nil {
			return fmt.Errorf("failed to copy pages: %w", err)
		}
		if int(n) != len(pages) {
			return fmt.Errorf("copied %d of %d pages", n, len(pages))
		}
		return nil
	})
	if err != nil {
		return &models.StoreError{Op: "replace", Err: err}
	}
	return nil
}

func (s *RawStore) List(ctx context.Context) ([]models.FetchResult, error) {
	query := fmt.Sprintf("SELECT url, html FROM %s ORDER BY id", pgx.Identifier{s.table}.Sanitize())

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, &models.StoreError{Op: "list", Err: err}
	}
	defer rows.Close()

	pages := []models.FetchResult{}
	for rows.Next() {
		var p models.FetchResult
		if err := rows.Scan(&p.URL, &p.HTML); err != nil {
			return nil, &models.StoreError{Op: "list", Err: fmt.Errorf("failed to scan page: %w", err)}
		}
		pages = append(pages, p)
	}
	if err := rows.Err(); err != nil {
		return nil, &models.StoreError{Op: "list", Err: err}
	}
	return pages, nil
}

// Close releases the pool.
func (s *RawStore) Close() error {
	s.db.Close()
	return nil
}
