package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/maltedev/catalog-scraper/internal/models"
	_ "modernc.org/sqlite"
)

// SQLiteStore keeps raw pages in a local database file, table (url, html).
type SQLiteStore struct {
	db    *sql.DB
	table string
}

func NewSQLiteStore(ctx context.Context, path, table string) (*SQLiteStore, error) {
	if table == "" {
		table = DefaultTable
	}
	if err := ValidateTable(table); err != nil {
		return nil, &models.StoreError{Op: "open", Err: err}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, &models.StoreError{Op: "open", Err: err}
	}
	// one writer at a time; sqlite serialises anyway
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, &models.StoreError{Op: "open", Err: fmt.Errorf("failed to ping database: %w", err)}
	}

	s := &SQLiteStore{db: db, table: table}
	if _, err := db.ExecContext(ctx, s.schema()); err != nil {
		db.Close()
		return nil, &models.StoreError{Op: "open", Err: fmt.Errorf("failed to create table: %w", err)}
	}
	return s, nil
}

func (s *SQLiteStore) schema() string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		url TEXT NOT NULL,
		html BLOB NOT NULL
	)`, s.table)
}

func (s *SQLiteStore) Replace(ctx context.Context, pages []models.FetchResult) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &models.StoreError{Op: "replace", Err: fmt.Errorf("failed to begin transaction: %w", err)}
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s", s.table)); err != nil {
		return &models.StoreError{Op: "replace", Err: fmt.Errorf("failed to clear table: %w", err)}
	}

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s (url, html) VALUES (?, ?)", s.table))
	if err != nil {
		return &models.StoreError{Op: "replace", Err: err}
	}
	defer stmt.Close()

	for _, p := range pages {
		if _, err = stmt.ExecContext(ctx, p.URL, p.HTML); err != nil {
			return &models.StoreError{Op: "replace", URL: p.URL, Err: err}
		}
	}

	if err = tx.Commit(); err != nil {
		return &models.StoreError{Op: "replace", Err: fmt.Errorf("failed to commit transaction: %w", err)}
	}
	return nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]models.FetchResult, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("SELECT url, html FROM %s ORDER BY rowid", s.table))
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

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
