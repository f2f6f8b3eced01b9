// Package metrics exposes Prometheus collectors for the deflection service.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	jobsTotal                  *prometheus.CounterVec
	itemsTotal                 *prometheus.CounterVec
	callbackDeliveriesTotal    *prometheus.CounterVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec
	busyWorkers                prometheus.Gauge

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		jobsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "deflection_jobs_total",
				Help: "Total number of deflection jobs processed, labeled by status.",
			},
			[]string{"status"},
		)

		itemsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "deflection_items_total",
				Help: "Total number of batch items evaluated, labeled by result.",
			},
			[]string{"result"},
		)

		callbackDeliveriesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "deflection_callback_deliveries_total",
				Help: "Total number of callback delivery attempts, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)

		busyWorkers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "deflection_busy_workers",
				Help: "Number of workers currently executing a job.",
			},
		)
	})
}

// Handler returns the Prometheus exposition handler.
func Handler() http.Handler {
	Init()
	return promhttp.Handler()
}

// ObserveJob records a processed job by final status.
func ObserveJob(status string) {
	Init()
	jobsTotal.WithLabelValues(status).Inc()
}

// ObserveItems records per-item outcomes for one batch.
func ObserveItems(ok, invalid int) {
	Init()
	itemsTotal.WithLabelValues("ok").Add(float64(ok))
	itemsTotal.WithLabelValues("invalid").Add(float64(invalid))
}

// ObserveCallback records one delivery attempt outcome.
func ObserveCallback(outcome string) {
	Init()
	callbackDeliveriesTotal.WithLabelValues(outcome).Inc()
}

// ObserveHTTPRequest records one served HTTP request.
func ObserveHTTPRequest(method, route string, status int, elapsed time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(status)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// WorkerBusy adjusts the busy-worker gauge around a job execution.
func WorkerBusy(delta float64) {
	Init()
	busyWorkers.Add(delta)
}
