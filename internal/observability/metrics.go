// Package observability holds the Prometheus metrics of both binaries.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "flood_watch"

// Metrics holds the Prometheus counters and histograms for reports and risk scoring.
type Metrics struct {
	ReportsSubmitted prometheus.Counter
	ReportsRejected  *prometheus.CounterVec // labels: reason={validation,quota,photo_format,storage}
	MirrorWrites     *prometheus.CounterVec // labels: outcome={mirrored,failed,skipped}

	Assessments *prometheus.CounterVec // labels: method={ann,gumbel}, status={HIGH,MEDIUM,LOW,ERROR}

	FeedRefreshes       *prometheus.CounterVec // labels: outcome={live,fallback,error}
	FeedRefreshDuration prometheus.Histogram
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.ReportsSubmitted,
		m.ReportsRejected,
		m.MirrorWrites,
		m.Assessments,
		m.FeedRefreshes,
		m.FeedRefreshDuration,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics so tests can build many.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		ReportsSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reports_submitted_total",
			Help:      "Flood reports persisted.",
		}),
		ReportsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reports_rejected_total",
			Help:      "Flood report submissions rejected, by reason.",
		}, []string{"reason"}),
		MirrorWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sheets_mirror_total",
			Help:      "Spreadsheet mirror attempts by outcome.",
		}, []string{"outcome"}),
		Assessments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "risk_assessments_total",
			Help:      "Risk assessments computed, by method and status.",
		}, []string{"method", "status"}),
		FeedRefreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_refresh_total",
			Help:      "Station feed refreshes by outcome.",
		}, []string{"outcome"}),
		FeedRefreshDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "feed_refresh_duration_seconds",
			Help:      "Duration of a station feed refresh including scoring and storage.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30},
		}),
	}
}
