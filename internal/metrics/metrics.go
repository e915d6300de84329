package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the engine's Prometheus collectors. Construct one per
// process with New and share it; the collectors are safe for concurrent use.
type Metrics struct {
	enqueuedTotal          *prometheus.CounterVec
	completedTotal         *prometheus.CounterVec
	latencySeconds         *prometheus.HistogramVec
	deadLetterRecorded     *prometheus.CounterVec
	deadLetterRequeued     *prometheus.CounterVec
	deadLetterAutoRequeued *prometheus.CounterVec
	deadLetterPurged       *prometheus.CounterVec
	deadLetterActive       *prometheus.GaugeVec
	deadLetterAlerts       *prometheus.CounterVec
}

// New creates the collector set and registers it on reg. A nil reg skips
// registration, which keeps tests free of duplicate-registration panics.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		enqueuedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "task_queue_enqueued_total",
			Help: "Tasks enqueued to background queue",
		}, []string{"queue"}),
		completedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "task_queue_completed_total",
			Help: "Tasks completed grouped by status",
		}, []string{"queue", "status"}),
		latencySeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "task_queue_latency_seconds",
			Help:    "Task execution latency in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"queue"}),
		deadLetterRecorded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "task_dead_letter_recorded_total",
			Help: "Dead-letter entries recorded",
		}, []string{"queue", "error_type"}),
		deadLetterRequeued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "task_dead_letter_requeued_total",
			Help: "Dead-letter entries requeued",
		}, []string{"queue", "error_type"}),
		deadLetterAutoRequeued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "task_dead_letter_auto_requeue_total",
			Help: "Dead-letter entries automatically requeued",
		}, []string{"queue", "error_type"}),
		deadLetterPurged: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "task_dead_letter_purged_total",
			Help: "Dead-letter entries purged",
		}, []string{"queue", "mode"}),
		deadLetterActive: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "task_dead_letter_active",
			Help: "Current count of dead-letter entries",
		}, []string{"queue"}),
		deadLetterAlerts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "task_dead_letter_alert_total",
			Help: "Dead-letter alert notifications",
		}, []string{"queue", "error_type"}),
	}

	if reg != nil {
		reg.MustRegister(
			m.enqueuedTotal,
			m.completedTotal,
			m.latencySeconds,
			m.deadLetterRecorded,
			m.deadLetterRequeued,
			m.deadLetterAutoRequeued,
			m.deadLetterPurged,
			m.deadLetterActive,
			m.deadLetterAlerts,
		)
	}

	return m
}

// TaskEnqueued counts a task entering the queue.
func (m *Metrics) TaskEnqueued(queue string) {
	m.enqueuedTotal.WithLabelValues(queue).Inc()
}

// TaskCompleted counts a terminal task outcome ("completed" or "failed").
// Retries are not terminal and are not counted.
func (m *Metrics) TaskCompleted(queue, status string) {
	m.completedTotal.WithLabelValues(queue, status).Inc()
}

// TaskLatency observes the execution duration of a task's final attempt.
func (m *Metrics) TaskLatency(queue string, seconds float64) {
	m.latencySeconds.WithLabelValues(queue).Observe(seconds)
}

// DeadLetterRecorded counts a task entering the dead-letter store.
func (m *Metrics) DeadLetterRecorded(queue, errorType string) {
	m.deadLetterRecorded.WithLabelValues(queue, errorType).Inc()
}

// DeadLetterRequeued counts a dead letter re-entering the queue, split
// between triage-driven and operator-driven requeues.
func (m *Metrics) DeadLetterRequeued(queue, errorType string, automatic bool) {
	if automatic {
		m.deadLetterAutoRequeued.WithLabelValues(queue, errorType).Inc()
		return
	}
	m.deadLetterRequeued.WithLabelValues(queue, errorType).Inc()
}

// DeadLetterPurged counts purged records under the given mode.
func (m *Metrics) DeadLetterPurged(queue, mode string, count int) {
	if count <= 0 {
		return
	}
	m.deadLetterPurged.WithLabelValues(queue, mode).Add(float64(count))
}

// DeadLettersActive sets the current dead-letter population.
func (m *Metrics) DeadLettersActive(queue string, count int) {
	m.deadLetterActive.WithLabelValues(queue).Set(float64(count))
}

// AlertSent counts a dead-letter alert dispatch.
func (m *Metrics) AlertSent(queue, errorType string) {
	m.deadLetterAlerts.WithLabelValues(queue, errorType).Inc()
}
