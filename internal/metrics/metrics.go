// Package metrics exposes prometheus instrumentation for the engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	LinksCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "shortener_links_created_total",
			Help: "Total number of shortened URLs created",
		},
	)

	ClicksRecorded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "shortener_clicks_recorded_total",
			Help: "Total number of click events recorded",
		},
	)

	RecordsPurged = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "shortener_records_purged_total",
			Help: "Total number of expired URL records purged",
		},
	)

	LogEntriesEvicted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "shortener_log_entries_evicted_total",
			Help: "Total number of activity log entries evicted by rotation",
		},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shortener_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "status"},
	)

	RequestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shortener_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "status"},
	)
)
