// Package metrics registers the Prometheus instruments for the lookup
// pipeline. PageChanged is the operational-alert signal: it fires when the
// scraper's selectors stop matching and the engine needs maintenance.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all lookup pipeline instruments.
type Metrics struct {
	Lookups        *prometheus.CounterVec
	SourceRequests *prometheus.CounterVec
	ScraperOutcome *prometheus.CounterVec
	PageChanged    prometheus.Counter
	CacheHits      prometheus.Counter
	RateLimited    prometheus.Counter
	Duration       prometheus.Histogram
}

// New creates and registers all lookup metrics on the default registry.
func New() *Metrics {
	return &Metrics{
		Lookups: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "afmcheck_lookups_total",
			Help: "Lookups by terminal verification status.",
		}, []string{"status"}),
		SourceRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "afmcheck_source_requests_total",
			Help: "Per-source requests by outcome status.",
		}, []string{"source", "status"}),
		ScraperOutcome: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "afmcheck_scraper_outcomes_total",
			Help: "Fallback engine attempts by typed outcome.",
		}, []string{"outcome"}),
		PageChanged: promauto.NewCounter(prometheus.CounterOpts{
			Name: "afmcheck_scraper_page_changed_total",
			Help: "Structure-drift detections; alert when this moves.",
		}),
		CacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "afmcheck_cache_hits_total",
			Help: "Lookups served from the freshness window.",
		}),
		RateLimited: promauto.NewCounter(prometheus.CounterOpts{
			Name: "afmcheck_rate_limited_total",
			Help: "Lookups denied by the sliding-window limit.",
		}),
		Duration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "afmcheck_lookup_duration_seconds",
			Help:    "End-to-end lookup latency.",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}),
	}
}
