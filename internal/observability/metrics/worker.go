package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// WorkerMetrics covers lifecycle messages consumed by the worker.
type WorkerMetrics struct {
	registry *prometheus.Registry

	messages *prometheus.CounterVec
	duration *prometheus.HistogramVec
	inFlight prometheus.Gauge
	lag      prometheus.Histogram
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()
	labels := prometheus.Labels{"service": service}

	m := &WorkerMetrics{
		registry: registry,
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "worker",
			Name:        "lifecycle_messages_total",
			Help:        "Lifecycle messages handled, by entity type and outcome.",
			ConstLabels: labels,
		}, []string{"entity_type", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   "worker",
			Name:        "lifecycle_message_duration_seconds",
			Help:        "Time spent handling one lifecycle message.",
			ConstLabels: labels,
			Buckets:     []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60, 300},
		}, []string{"entity_type"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "worker",
			Name:        "lifecycle_messages_in_flight",
			Help:        "Lifecycle messages being handled.",
			ConstLabels: labels,
		}),
		lag: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   "worker",
			Name:        "lifecycle_lag_seconds",
			Help:        "Delay between the committed change and its handling.",
			ConstLabels: labels,
			Buckets:     []float64{0.1, 0.5, 1, 5, 30, 120, 600},
		}),
	}
	registry.MustRegister(m.messages, m.duration, m.inFlight, m.lag)
	return m
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) Registerer() prometheus.Registerer {
	return m.registry
}

// Track runs fn as the handling of one message about entityType that was
// emitted at occurredAt.
func (m *WorkerMetrics) Track(entityType string, occurredAt time.Time, fn func() error) error {
	m.inFlight.Inc()
	defer m.inFlight.Dec()

	if !occurredAt.IsZero() {
		if lag := time.Since(occurredAt); lag >= 0 {
			m.lag.Observe(lag.Seconds())
		}
	}

	start := time.Now()
	err := fn()
	m.duration.WithLabelValues(entityType).Observe(time.Since(start).Seconds())

	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.messages.WithLabelValues(entityType, outcome).Inc()
	return err
}
