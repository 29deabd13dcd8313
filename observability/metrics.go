// Package observability holds the prometheus collectors shared across the service and the CLIs.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequests counts handled requests by method, route and status.
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "grokshare_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "route", "status"})

	// HTTPDuration observes request latency by method and route.
	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "grokshare_http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	// MediaProbes counts single candidate probes by form kind and result (ok, miss, timeout).
	MediaProbes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "grokshare_media_probes_total",
		Help: "Media existence probes by candidate kind and result",
	}, []string{"kind", "result"})

	// MediaResolutions counts whole resolutions by result (resolved, memo, unavailable).
	MediaResolutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "grokshare_media_resolutions_total",
		Help: "Media resolutions by result",
	}, []string{"result"})

	// MigrationRecords counts re-keyed records by outcome and the phase they stopped in.
	MigrationRecords = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "grokshare_migration_records_total",
		Help: "Post re-keying results by outcome and phase",
	}, []string{"outcome", "phase"})
)
