package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/maltedev/catalog-scraper/internal/export"
	"github.com/maltedev/catalog-scraper/internal/models"
)

// maxURLsPerRun bounds a single request; larger batches go through the CLI.
const maxURLsPerRun = 500

type Runner interface {
	Run(ctx context.Context, urls []string) (*models.Report, error)
}

type Handlers struct {
	runner  Runner
	fields  []string
	publish export.Sink
	logger  *slog.Logger
	started time.Time
}

// NewHandlers wires the run endpoint. fields is the CSV column order;
// publish may be nil.
func NewHandlers(runner Runner, fields []string, publish export.Sink, logger *slog.Logger) *Handlers {
	return &Handlers{
		runner:  runner,
		fields:  fields,
		publish: publish,
		logger:  logger.With("component", "api"),
		started: time.Now(),
	}
}

// CreateRunRequest represents a batch of product pages to scrape
type CreateRunRequest struct {
	URLs []string `json:"urls"`
}

// CreateRun runs a batch synchronously and returns the report, or the
// records as CSV when format=csv.
func (h *Handlers) CreateRun(w http.ResponseWriter, r *http.Request) {
	var req CreateRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if len(req.URLs) == 0 {
		h.respondError(w, http.StatusBadRequest, "urls is required")
		return
	}
	if len(req.URLs) > maxURLsPerRun {
		h.respondError(w, http.StatusBadRequest, "too many urls")
		return
	}

	format := export.FormatJSON
	if q := r.URL.Query().Get("format"); q != "" {
		f, err := export.ParseFormat(q)
		if err != nil {
			h.respondError(w, http.StatusBadRequest, "unsupported format")
			return
		}
		format = f
	}

	report, err := h.runner.Run(r.Context(), req.URLs)
	if err != nil {
		h.logger.Error("run failed", "error", err, "urls", len(req.URLs))
		h.respondError(w, statusFor(err), err.Error())
		return
	}

	if h.publish != nil {
		if err := h.publish.Write(r.Context(), report); err != nil {
			h.logger.Error("failed to publish run", "run_id", report.RunID, "error", err)
		}
	}

	if format == export.FormatCSV {
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("X-Run-ID", report.RunID)
		w.WriteHeader(http.StatusOK)
		if err := export.NewCSVSink(w, h.fields).Write(r.Context(), report); err != nil {
			h.logger.Error("failed to write csv", "error", err)
		}
		return
	}

	h.respondJSON(w, http.StatusOK, report)
}

// Health reports liveness and uptime.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"uptime": time.Since(h.started).Round(time.Second).String(),
	})
}

func statusFor(err error) int {
	var netErr *models.NetworkError
	var storeErr *models.StoreError
	switch {
	case errors.As(err, &netErr):
		return http.StatusBadGateway
	case errors.As(err, &storeErr):
		return http.StatusInternalServerError
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// Helper methods
func (h *Handlers) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handlers) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
