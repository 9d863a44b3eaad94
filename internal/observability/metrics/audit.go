package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kirillkom/compliance-auditor/internal/core/domain"
)

// AuditMetrics tracks audit-check outcomes, activity write failures and
// retried calls to external dependencies.
type AuditMetrics struct {
	service string

	checksTotal           *prometheus.CounterVec
	checkDuration         *prometheus.HistogramVec
	findingsCreated       *prometheus.CounterVec
	activityWriteFailures *prometheus.CounterVec
	retriesTotal          *prometheus.CounterVec
}

func NewAuditMetrics(service string, registerer prometheus.Registerer) *AuditMetrics {
	checksTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "audit",
			Name:      "checks_total",
			Help:      "Total audit checks by final state.",
		},
		[]string{"service", "state"},
	)
	checkDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "audit",
			Name:      "check_duration_seconds",
			Help:      "Audit check duration in seconds by final state.",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"service", "state"},
	)
	findingsCreated := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "audit",
			Name:      "findings_created_total",
			Help:      "Total findings created by audit checks.",
		},
		[]string{"service"},
	)
	activityWriteFailures := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "activity",
			Name:      "write_failures_total",
			Help:      "Activity log entries that could not be written.",
		},
		[]string{"service", "activity_type"},
	)
	retriesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "external",
			Name:      "retries_total",
			Help:      "Retried calls to external dependencies by operation.",
		},
		[]string{"service", "operation"},
	)

	registerer.MustRegister(checksTotal, checkDuration, findingsCreated, activityWriteFailures, retriesTotal)

	return &AuditMetrics{
		service:               service,
		checksTotal:           checksTotal,
		checkDuration:         checkDuration,
		findingsCreated:       findingsCreated,
		activityWriteFailures: activityWriteFailures,
		retriesTotal:          retriesTotal,
	}
}

func (m *AuditMetrics) ObserveCheck(state domain.CheckState, duration time.Duration, findingsCreated int) {
	m.checksTotal.WithLabelValues(m.service, string(state)).Inc()
	m.checkDuration.WithLabelValues(m.service, string(state)).Observe(duration.Seconds())
	if findingsCreated > 0 {
		m.findingsCreated.WithLabelValues(m.service).Add(float64(findingsCreated))
	}
}

func (m *AuditMetrics) IncActivityWriteFailure(activityType domain.ActivityType) {
	m.activityWriteFailures.WithLabelValues(m.service, string(activityType)).Inc()
}

// ObserveRetry matches resilience.RetryObserver.
func (m *AuditMetrics) ObserveRetry(operation string, _ int, _ error) {
	m.retriesTotal.WithLabelValues(m.service, operation).Inc()
}
