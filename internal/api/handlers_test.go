package api

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/maltedev/catalog-scraper/internal/export"
	"github.com/maltedev/catalog-scraper/internal/models"
	"github.com/maltedev/catalog-scraper/internal/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockRunner struct {
	mock.Mock
}

func (m *MockRunner) Run(ctx context.Context, urls []string) (*models.Report, error) {
	args := m.Called(ctx, urls)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Report), args.Error(1)
}

type MockSink struct {
	mock.Mock
}

func (m *MockSink) Write(ctx context.Context, report *models.Report) error {
	return m.Called(ctx, report).Error(0)
}

var testFields = []string{models.FieldHandle, models.FieldVariantSKU}

func sampleReport() *models.Report {
	rec := models.NewRecord(testFields, nil)
	rec.SetText(models.FieldHandle, "999")
	rec.Set(models.FieldVariantSKU, models.List([]string{"A", "B"}))
	return &models.Report{RunID: "run-1", Fetched: 1, Records: []*models.Record{rec}, Failures: []*models.ExtractionError{}}
}

func newTestServer(t *testing.T, runner Runner, sink *MockSink) http.Handler {
	t.Helper()
	reg := prometheus.NewRegistry()
	observability.NewMetrics(reg)

	var publish export.Sink
	if sink != nil {
		publish = sink
	}
	h := NewHandlers(runner, testFields, publish, slog.Default())
	return NewRouter(h, reg, []string{"*"})
}

func post(t *testing.T, handler http.Handler, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestCreateRun(t *testing.T) {
	urls := []string{"https://www.redcatracing.com/products/valkyrie-mt"}

	t.Run("returns the report", func(t *testing.T) {
		runner := new(MockRunner)
		runner.On("Run", mock.Anything, urls).Return(sampleReport(), nil)
		sink := new(MockSink)
		sink.On("Write", mock.Anything, mock.Anything).Return(nil)

		rec := post(t, newTestServer(t, runner, sink), "/api/v1/runs", `{"urls":["https://www.redcatracing.com/products/valkyrie-mt"]}`)

		require.Equal(t, http.StatusOK, rec.Code)
		var body map[string]interface{}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "run-1", body["run_id"])
		assert.Len(t, body["records"], 1)
		runner.AssertExpectations(t)
		sink.AssertExpectations(t)
	})

	t.Run("csv format", func(t *testing.T) {
		runner := new(MockRunner)
		runner.On("Run", mock.Anything, urls).Return(sampleReport(), nil)

		rec := post(t, newTestServer(t, runner, nil), "/api/v1/runs?format=csv", `{"urls":["https://www.redcatracing.com/products/valkyrie-mt"]}`)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "run-1", rec.Header().Get("X-Run-ID"))
		rows, err := csv.NewReader(rec.Body).ReadAll()
		require.NoError(t, err)
		assert.Equal(t, [][]string{{"Handle", "Variant SKU"}, {"999", "A"}, {"", "B"}}, rows)
	})

	t.Run("publish failure does not fail the request", func(t *testing.T) {
		runner := new(MockRunner)
		runner.On("Run", mock.Anything, urls).Return(sampleReport(), nil)
		sink := new(MockSink)
		sink.On("Write", mock.Anything, mock.Anything).Return(errors.New("redis down"))

		rec := post(t, newTestServer(t, runner, sink), "/api/v1/runs", `{"urls":["https://www.redcatracing.com/products/valkyrie-mt"]}`)

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("network error maps to bad gateway", func(t *testing.T) {
		runner := new(MockRunner)
		runner.On("Run", mock.Anything, urls).Return(nil, &models.NetworkError{URL: urls[0], StatusCode: 503})

		rec := post(t, newTestServer(t, runner, nil), "/api/v1/runs", `{"urls":["https://www.redcatracing.com/products/valkyrie-mt"]}`)

		assert.Equal(t, http.StatusBadGateway, rec.Code)
		assert.Contains(t, rec.Body.String(), "unexpected status 503")
	})

	t.Run("store error maps to internal error", func(t *testing.T) {
		runner := new(MockRunner)
		runner.On("Run", mock.Anything, urls).Return(nil, &models.StoreError{Op: "replace", Err: errors.New("disk full")})

		rec := post(t, newTestServer(t, runner, nil), "/api/v1/runs", `{"urls":["https://www.redcatracing.com/products/valkyrie-mt"]}`)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})

	t.Run("validation", func(t *testing.T) {
		tests := []struct {
			name   string
			target string
			body   string
		}{
			{"invalid body", "/api/v1/runs", `{`},
			{"missing urls", "/api/v1/runs", `{"urls":[]}`},
			{"unknown format", "/api/v1/runs?format=xml", `{"urls":["https://example.com/products/a"]}`},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				runner := new(MockRunner)

				rec := post(t, newTestServer(t, runner, nil), tt.target, tt.body)

				assert.Equal(t, http.StatusBadRequest, rec.Code)
				runner.AssertNotCalled(t, "Run", mock.Anything, mock.Anything)
			})
		}
	})
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"network", &models.NetworkError{URL: "https://example.com", StatusCode: 429}, http.StatusBadGateway},
		{"store", &models.StoreError{Op: "list", Err: errors.New("closed")}, http.StatusInternalServerError},
		{"cancelled", context.Canceled, http.StatusGatewayTimeout},
		{"deadline", fmt.Errorf("run: %w", context.DeadlineExceeded), http.StatusGatewayTimeout},
		{"unclassified", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, statusFor(tt.err))
		})
	}
}

func TestHealth(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestServer(t, new(MockRunner), nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestMetricsEndpoint(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestServer(t, new(MockRunner), nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "catalog_scraper_")
}

func TestCORSPreflight(t *testing.T) {
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/runs", nil)
	req.Header.Set("Origin", "https://dashboard.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()

	newTestServer(t, new(MockRunner), nil).ServeHTTP(rec, req)

	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
