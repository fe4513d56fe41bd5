// Package metrics exposes Prometheus collectors for the gateway.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the gateway's Prometheus collectors. Constructing against
// an injected registerer keeps parallel tests from fighting over the
// default registry.
type Metrics struct {
	JobsAccepted     *prometheus.CounterVec
	JobsRejected     prometheus.Counter
	EnqueueFailures  prometheus.Counter
	DownloadsServed  prometheus.Counter
	SweepRequeues    prometheus.Counter
	WatchdogTimeouts prometheus.Counter
	HTTPDuration     *prometheus.HistogramVec
}

// New registers the gateway collectors with reg. Pass
// prometheus.DefaultRegisterer in production.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		JobsAccepted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_jobs_accepted_total",
				Help: "Total crawl jobs accepted, labeled by source type.",
			},
			[]string{"source_type"},
		),
		JobsRejected: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "gateway_jobs_rejected_total",
				Help: "Total crawl requests rejected at validation.",
			},
		),
		EnqueueFailures: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "gateway_enqueue_failures_total",
				Help: "Total enqueues that failed after the job was persisted.",
			},
		),
		DownloadsServed: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "gateway_downloads_served_total",
				Help: "Total completed artifacts streamed to clients.",
			},
		),
		SweepRequeues: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "gateway_sweep_requeues_total",
				Help: "Total stale queued jobs re-enqueued by the sweeper.",
			},
		),
		WatchdogTimeouts: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "gateway_watchdog_timeouts_total",
				Help: "Total processing jobs failed by the watchdog.",
			},
		),
		HTTPDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gateway_http_request_duration_seconds",
				Help:    "HTTP request latency by method, route pattern and status.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route", "status"},
		),
	}
}

// ObserveHTTPRequest records one served request.
func (m *Metrics) ObserveHTTPRequest(method, route string, status int, duration time.Duration) {
	m.HTTPDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(duration.Seconds())
}
