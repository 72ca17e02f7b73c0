// Package metrics exposes Prometheus metrics for the dispatch protocol.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics wraps the Prometheus collectors for dispatch activity.
type Metrics struct {
	registry *prometheus.Registry

	dispatchesTotal  *prometheus.CounterVec
	dispatchDuration *prometheus.HistogramVec
	pollCyclesTotal  prometheus.Counter
	storeRetries     prometheus.Counter
	bothKeysAnomaly  prometheus.Counter
	payloadBytes     prometheus.Histogram
	inFlight         prometheus.Gauge
}

// Dispatch duration buckets in seconds. Remote executions span seconds to
// the Lambda ceiling of 15 minutes.
var durationBuckets = []float64{1, 2.5, 5, 10, 30, 60, 120, 300, 600, 900}

var global = newMetrics("quasar")

func newMetrics(namespace string) *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.dispatchesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "dispatches_total",
		Help:      "Completed dispatches by terminal outcome",
	}, []string{"outcome"})

	m.dispatchDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "dispatch_duration_seconds",
		Help:      "Wall time from submit to terminal outcome",
		Buckets:   durationBuckets,
	}, []string{"outcome"})

	m.pollCyclesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "poll_cycles_total",
		Help:      "Object store poll cycles across all dispatches",
	})

	m.storeRetries = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "store_poll_errors_total",
		Help:      "Transient store errors absorbed by the poll cadence",
	})

	m.bothKeysAnomaly = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "both_keys_anomalies_total",
		Help:      "Invocations observed with both result and exception keys",
	})

	m.payloadBytes = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "payload_bytes",
		Help:      "Encoded task payload size",
		Buckets:   prometheus.ExponentialBuckets(256, 4, 10),
	})

	m.inFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "dispatches_in_flight",
		Help:      "Dispatches currently between submit and terminal outcome",
	})

	m.registry.MustRegister(
		m.dispatchesTotal,
		m.dispatchDuration,
		m.pollCyclesTotal,
		m.storeRetries,
		m.bothKeysAnomaly,
		m.payloadBytes,
		m.inFlight,
	)
	return m
}

// DispatchStarted records a dispatch entering flight.
func DispatchStarted(payloadSize int) {
	global.inFlight.Inc()
	global.payloadBytes.Observe(float64(payloadSize))
}

// DispatchFinished records a terminal outcome and its duration.
func DispatchFinished(outcome string, elapsed time.Duration) {
	global.inFlight.Dec()
	global.dispatchesTotal.WithLabelValues(outcome).Inc()
	global.dispatchDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

// PollCycle counts one store poll cycle.
func PollCycle() {
	global.pollCyclesTotal.Inc()
}

// StorePollError counts a transient store failure absorbed during polling.
func StorePollError() {
	global.storeRetries.Inc()
}

// BothKeysAnomaly counts a result+exception contract violation.
func BothKeysAnomaly() {
	global.bothKeysAnomaly.Inc()
}

// Handler returns an HTTP handler exposing the metrics registry.
func Handler() http.Handler {
	return promhttp.HandlerFor(global.registry, promhttp.HandlerOpts{})
}
