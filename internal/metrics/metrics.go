// Package metrics holds the Prometheus collectors shared by the hub client
// and the bulk engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "hub_transfers"

var (
	HubRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "hub_requests_total",
		Help:      "Transfer requests issued to the hub, by mode and result.",
	}, []string{"mode", "result"})

	HubAttempts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "hub_http_attempts_total",
		Help:      "HTTP attempts made against the hub, retries included.",
	})

	HubRequestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "hub_request_duration_seconds",
		Help:      "Wall time of one transfer request, retries and backoff included.",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	})

	BulkRows = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "bulk_rows_total",
		Help:      "Bulk rows processed, by outcome (succeeded, failed, skipped).",
	}, []string{"outcome"})

	BulkJobs = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "bulk_jobs_total",
		Help:      "Bulk jobs that reached a terminal status.",
	}, []string{"status"})

	BulkJobsRecovered = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "bulk_jobs_recovered_total",
		Help:      "Stale bulk jobs acted on by the sweeper, by action (redispatched, failed).",
	}, []string{"action"})

	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests served, by method, route pattern and status.",
	}, []string{"method", "route", "status"})

	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by route pattern.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})

	HTTPPanics = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_panics_total",
		Help:      "Handler panics caught by the recovery middleware.",
	})
)
