package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "catalog_scraper"

// Metrics groups the pipeline's Prometheus collectors. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	PagesFetched       prometheus.Counter
	FetchErrors        prometheus.Counter
	FetchDuration      prometheus.Histogram
	ContentionBackoffs prometheus.Counter
	RecordsExtracted   prometheus.Counter
	ExtractionFailures prometheus.Counter
	Runs               *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		PagesFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pages_fetched_total",
			Help:      "Pages retrieved with a success status",
		}),
		FetchErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_errors_total",
			Help:      "Fatal fetch errors",
		}),
		FetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Time spent retrieving one page",
			Buckets:   prometheus.DefBuckets,
		}),
		ContentionBackoffs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "contention_backoffs_total",
			Help:      "Fetches that waited because the gate was saturated",
		}),
		RecordsExtracted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_extracted_total",
			Help:      "Product records produced",
		}),
		ExtractionFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extraction_failures_total",
			Help:      "Pages that failed extraction",
		}),
		Runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Batch runs by outcome",
		}, []string{"outcome"}),
	}

	reg.MustRegister(
		m.PagesFetched,
		m.FetchErrors,
		m.FetchDuration,
		m.ContentionBackoffs,
		m.RecordsExtracted,
		m.ExtractionFailures,
		m.Runs,
	)
	return m
}

func (m *Metrics) ObserveFetch(d time.Duration, err error) {
	if m == nil {
		return
	}
	m.FetchDuration.Observe(d.Seconds())
	if err != nil {
		m.FetchErrors.Inc()
		return
	}
	m.PagesFetched.Inc()
}

func (m *Metrics) ObserveBackoff() {
	if m == nil {
		return
	}
	m.ContentionBackoffs.Inc()
}

func (m *Metrics) ObserveExtraction(err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.ExtractionFailures.Inc()
		return
	}
	m.RecordsExtracted.Inc()
}

func (m *Metrics) ObserveRun(outcome string) {
	if m == nil {
		return
	}
	m.Runs.WithLabelValues(outcome).Inc()
}

func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
