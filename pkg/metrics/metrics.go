package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// DispatchTotal counts dispatch outcomes by outcome label: cache_hit,
	// route_miss, worker_unready, transport_error, timeout, cancelled, ok.
	DispatchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "localproxy_dispatch_total",
			Help: "Total number of dispatched requests by outcome",
		},
		[]string{"outcome"},
	)

	// DispatchDuration tracks end-to-end dispatch latency by outcome.
	DispatchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "localproxy_dispatch_duration_seconds",
			Help:    "Dispatch latency in seconds by outcome",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"outcome"},
	)

	// WorkerState reports the current lifecycle state of each worker
	// (0=starting, 1=ready, 2=stopped, 3=failed).
	WorkerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "localproxy_worker_state",
			Help: "Current worker lifecycle state by worker id",
		},
		[]string{"worker_id"},
	)

	// CacheEntries reports the current number of entries held by the
	// response cache.
	CacheEntries = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "localproxy_cache_entries",
			Help: "Current number of entries in the response cache",
		},
	)
)

func init() {
	prometheus.MustRegister(DispatchTotal)
	prometheus.MustRegister(DispatchDuration)
	prometheus.MustRegister(WorkerState)
	prometheus.MustRegister(CacheEntries)
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	duration := time.Since(t.start).Seconds()
	histogram.Observe(duration)
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	duration := time.Since(t.start).Seconds()
	histogram.WithLabelValues(labels...).Observe(duration)
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
