package scraper

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the scraping core. All methods
// are nil-safe so components can run without metrics wired.
type Metrics struct {
	Registry       *prometheus.Registry
	FetchesTotal   *prometheus.CounterVec
	FetchDuration  prometheus.Histogram
	QuotesTotal    *prometheus.CounterVec
	JobsTotal      *prometheus.CounterVec
	TokenExchanges *prometheus.CounterVec
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	fetches := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cardwatch_fetches_total",
			Help: "Document fetches issued, by retailer and outcome.",
		},
		[]string{"retailer", "outcome"},
	)
	fetchDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cardwatch_fetch_duration_seconds",
			Help:    "Latency of retailer document fetches.",
			Buckets: prometheus.DefBuckets,
		},
	)
	quotes := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cardwatch_quotes_total",
			Help: "Price quotes extracted, by retailer and scrape mode.",
		},
		[]string{"retailer", "mode"},
	)
	jobs := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cardwatch_jobs_total",
			Help: "Scrape jobs finished, by retailer and final status.",
		},
		[]string{"retailer", "status"},
	)
	tokens := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cardwatch_token_exchanges_total",
			Help: "Credential exchanges performed, by outcome.",
		},
		[]string{"outcome"},
	)

	registry.MustRegister(fetches, fetchDuration, quotes, jobs, tokens)

	return &Metrics{
		Registry:       registry,
		FetchesTotal:   fetches,
		FetchDuration:  fetchDuration,
		QuotesTotal:    quotes,
		JobsTotal:      jobs,
		TokenExchanges: tokens,
	}
}

// ObserveFetch records one fetch attempt with its outcome label.
func (m *Metrics) ObserveFetch(retailer, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.FetchesTotal.WithLabelValues(retailer, outcome).Inc()
	m.FetchDuration.Observe(d.Seconds())
}

// IncQuote counts one extracted quote for a scrape mode (api, html, catalog).
func (m *Metrics) IncQuote(retailer, mode string) {
	if m == nil {
		return
	}
	m.QuotesTotal.WithLabelValues(retailer, mode).Inc()
}

// IncJob counts a finished job by status.
func (m *Metrics) IncJob(retailer, status string) {
	if m == nil {
		return
	}
	m.JobsTotal.WithLabelValues(retailer, status).Inc()
}

// IncTokenExchange counts a credential exchange attempt.
func (m *Metrics) IncTokenExchange(outcome string) {
	if m == nil {
		return
	}
	m.TokenExchanges.WithLabelValues(outcome).Inc()
}
