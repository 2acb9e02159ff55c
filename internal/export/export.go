package export

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/maltedev/catalog-scraper/internal/models"
)

var ErrUnknownFormat = errors.New("unknown output format")

type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatCSV, FormatJSON:
		return f, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
}

// Sink receives the report of a finished run.
type Sink interface {
	Write(ctx context.Context, report *models.Report) error
}

// New returns the file sink for format. The CSV header is fields, in order.
func New(format Format, w io.Writer, fields []string) (Sink, error) {
	switch format {
	case FormatCSV:
		return NewCSVSink(w, fields), nil
	case FormatJSON:
		return NewJSONSink(w), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// CSVSink writes records in catalog import layout: one row per variant.
// List fields contribute their i-th item to row i; scalar fields appear on
// the first row of a product only.
type CSVSink struct {
	w      io.Writer
	fields []string
}

func NewCSVSink(w io.Writer, fields []string) *CSVSink {
	return &CSVSink{w: w, fields: fields}
}

func (s *CSVSink) Write(ctx context.Context, report *models.Report) error {
	cw := csv.NewWriter(s.w)

	if err := cw.Write(s.fields); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for _, rec := range report.Records {
		if err := ctx.Err(); err != nil {
			return err
		}
		for _, row := range Rows(rec, s.fields) {
			if err := cw.Write(row); err != nil {
				return fmt.Errorf("failed to write record %s: %w", rec.Handle(), err)
			}
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to flush csv: %w", err)
	}
	return nil
}

// Rows expands rec into export rows over the given columns.
func Rows(rec *models.Record, fields []string) [][]string {
	n := rec.Rows()
	rows := make([][]string, n)
	for i := 0; i < n; i++ {
		row := make([]string, len(fields))
		for j, f := range fields {
			row[j] = rec.Get(f).At(i)
		}
		rows[i] = row
	}
	return rows
}

type JSONSink struct {
	w io.Writer
}

func NewJSONSink(w io.Writer) *JSONSink {
	return &JSONSink{w: w}
}

func (s *JSONSink) Write(ctx context.Context, report *models.Report) error {
	enc := json.NewEncoder(s.w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	return nil
}

// Multi fans a report out to every sink in order, stopping at the first error.
type Multi []Sink

func (m Multi) Write(ctx context.Context, report *models.Report) error {
	for _, s := range m {
		if err := s.Write(ctx, report); err != nil {
			return err
		}
	}
	return nil
}
