package observability

import (
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registerOnce           sync.Once
	httpRequestsTotal      *prometheus.CounterVec
	httpLatencySeconds     *prometheus.HistogramVec
	httpErrorsTotal        *prometheus.CounterVec
	hostEventsTotal        *prometheus.CounterVec
	hostEventFailures      *prometheus.CounterVec
	reviewsProcessedTotal  *prometheus.CounterVec
	reviewDecisionsTotal   *prometheus.CounterVec
	reviewQueueUnprocessed prometheus.Gauge
)

// RegisterMetrics initialises the Prometheus collectors for the review API.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "assignai",
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "assignai",
			Name:      "http_latency_seconds",
			Help:      "Latency distribution for HTTP requests.",
			Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		httpErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "assignai",
			Name:      "http_errors_total",
			Help:      "Total number of HTTP error responses.",
		}, []string{"method", "route", "status"})

		hostEventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "assignai",
			Name:      "host_events_received_total",
			Help:      "Total number of LMS lifecycle events consumed per subject.",
		}, []string{"subject"})

		hostEventFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "assignai",
			Name:      "host_event_failures_total",
			Help:      "Total number of host events whose handler returned an error.",
		}, []string{"subject"})

		reviewsProcessedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "assignai",
			Name:      "reviews_processed_total",
			Help:      "Total number of queue items processed per outcome.",
		}, []string{"outcome"})

		reviewDecisionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "assignai",
			Name:      "review_decisions_total",
			Help:      "Total number of human review decisions per action.",
		}, []string{"action"})

		reviewQueueUnprocessed = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "assignai",
			Name:      "review_queue_unprocessed",
			Help:      "Current number of unprocessed review queue items.",
		})

		prometheus.MustRegister(
			httpRequestsTotal,
			httpLatencySeconds,
			httpErrorsTotal,
			hostEventsTotal,
			hostEventFailures,
			reviewsProcessedTotal,
			reviewDecisionsTotal,
			reviewQueueUnprocessed,
		)
	})
}

// HTTPRequests exposes the counter for served requests.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPLatency exposes the latency histogram for served requests.
func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}

// HTTPErrors exposes the counter for error responses.
func HTTPErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return httpErrorsTotal
}

// HostEventsReceivedTotal exposes the counter for consumed host events.
func HostEventsReceivedTotal() *prometheus.CounterVec {
	RegisterMetrics()
	return hostEventsTotal
}

// HostEventFailuresTotal exposes the counter for failed host event handlers.
func HostEventFailuresTotal() *prometheus.CounterVec {
	RegisterMetrics()
	return hostEventFailures
}

// ReviewsProcessedTotal exposes the counter for queue sweep outcomes.
func ReviewsProcessedTotal() *prometheus.CounterVec {
	RegisterMetrics()
	return reviewsProcessedTotal
}

// ReviewDecisionsTotal exposes the counter for human decisions.
func ReviewDecisionsTotal() *prometheus.CounterVec {
	RegisterMetrics()
	return reviewDecisionsTotal
}

// ReviewQueueUnprocessed exposes the gauge of pending queue items.
func ReviewQueueUnprocessed() prometheus.Gauge {
	RegisterMetrics()
	return reviewQueueUnprocessed
}

// MetricsHandler exposes the Prometheus scrape endpoint via Fiber.
func MetricsHandler() fiber.Handler {
	RegisterMetrics()
	return adaptor.HTTPHandler(promhttp.Handler())
}
