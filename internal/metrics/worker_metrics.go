package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// OutboxMetrics описывает публикацию transactional outbox.
type OutboxMetrics struct {
	attempts     *prometheus.CounterVec
	pending      prometheus.Gauge
	failed       prometheus.Gauge
	oldestAgeSec prometheus.Gauge
}

// NewOutboxMetrics регистрирует метрики outbox worker.
func NewOutboxMetrics(r prometheus.Registerer) *OutboxMetrics {
	return &OutboxMetrics{
		attempts: counterVec(r, "backoffice_outbox_publish_attempts_total",
			"Outbox publish attempts grouped by result.", "result"),
		pending: gauge(r, "backoffice_outbox_pending_records",
			"Current number of pending records in transactional outbox."),
		failed: gauge(r, "backoffice_outbox_failed_records",
			"Outbox records that exhausted publish attempts."),
		oldestAgeSec: gauge(r, "backoffice_outbox_oldest_pending_age_seconds",
			"Age in seconds of the oldest pending outbox record."),
	}
}

// RecordAttempt учитывает попытку публикации: sent, retry_error, failed, dlq_failed.
func (m *OutboxMetrics) RecordAttempt(result string) {
	if m != nil {
		m.attempts.WithLabelValues(result).Inc()
	}
}

// SetBacklog обновляет размер очереди и возраст самой старой записи.
func (m *OutboxMetrics) SetBacklog(pending int, oldest time.Time, now time.Time) {
	if m == nil {
		return
	}
	m.pending.Set(float64(pending))
	if pending == 0 || oldest.IsZero() {
		m.oldestAgeSec.Set(0)
		return
	}
	m.oldestAgeSec.Set(max(now.Sub(oldest).Seconds(), 0))
}

// SetFailed обновляет число сообщений, не доставленных после всех попыток.
func (m *OutboxMetrics) SetFailed(n int) {
	if m != nil {
		m.failed.Set(float64(n))
	}
}

// CleanupMetrics описывает очистку просроченных idempotency ключей.
type CleanupMetrics struct {
	runs        *prometheus.CounterVec
	deleted     prometheus.Counter
	lastDeleted prometheus.Gauge
}

// NewCleanupMetrics регистрирует метрики cleanup worker.
func NewCleanupMetrics(r prometheus.Registerer) *CleanupMetrics {
	return &CleanupMetrics{
		runs: counterVec(r, "backoffice_idempotency_cleanup_runs_total",
			"Idempotency cleanup runs grouped by result.", "result"),
		deleted: counter(r, "backoffice_idempotency_cleanup_deleted_total",
			"Total number of deleted expired idempotency records."),
		lastDeleted: gauge(r, "backoffice_idempotency_cleanup_last_deleted",
			"Number of deleted records during the last cleanup run."),
	}
}

func (m *CleanupMetrics) RecordRun(err error, deleted int) {
	if m == nil {
		return
	}
	if err != nil {
		m.runs.WithLabelValues("error").Inc()
		return
	}
	m.runs.WithLabelValues("ok").Inc()
	m.lastDeleted.Set(float64(deleted))
}

func (m *CleanupMetrics) AddDeleted(n int) {
	if m != nil && n > 0 {
		m.deleted.Add(float64(n))
	}
}
