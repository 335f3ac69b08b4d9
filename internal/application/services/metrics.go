package services

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	enrichmentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "enrichments_total",
			Help: "Total number of enrichment runs by outcome",
		},
		[]string{"status"},
	)

	enrichmentDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "enrichment_duration_seconds",
			Help:    "Enrichment run duration in seconds",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"status"},
	)
)

// observeEnrichment records the outcome and duration of one enrichment run
func observeEnrichment(status string, elapsed time.Duration) {
	enrichmentsTotal.WithLabelValues(status).Inc()
	enrichmentDuration.WithLabelValues(status).Observe(elapsed.Seconds())
}
