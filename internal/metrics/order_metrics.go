package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Причины неудачного создания заказа (label reason).
const (
	ReasonValidation        = "validation"
	ReasonCustomerNotFound  = "customer_not_found"
	ReasonProductNotFound   = "product_not_found"
	ReasonInsufficientStock = "insufficient_stock"
	ReasonPersistence       = "persistence"
	ReasonCanceled          = "canceled"
)

var operationBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0}

// OrderMetrics содержит метрики сборщика заказов.
type OrderMetrics struct {
	ordersCreated  prometheus.Counter
	ordersDeleted  prometheus.Counter
	createFailures *prometheus.CounterVec
	reservations   *prometheus.CounterVec
	compensations  *prometheus.CounterVec
	duration       *prometheus.HistogramVec
	inFlight       prometheus.Gauge
}

// NewOrderMetrics регистрирует метрики в prometheus.DefaultRegisterer.
func NewOrderMetrics() *OrderMetrics {
	return NewOrderMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewOrderMetricsWithRegisterer регистрирует метрики в заданном registerer.
func NewOrderMetricsWithRegisterer(r prometheus.Registerer) *OrderMetrics {
	return &OrderMetrics{
		ordersCreated: counter(r, "backoffice_orders_created_total",
			"Total number of committed orders."),
		ordersDeleted: counter(r, "backoffice_orders_deleted_total",
			"Total number of deleted orders with stock restored."),
		createFailures: counterVec(r, "backoffice_order_create_failures_total",
			"Order creation failures grouped by reason.", "reason"),
		reservations: counterVec(r, "backoffice_stock_reservations_total",
			"Stock reservation attempts grouped by result.", "result"),
		compensations: counterVec(r, "backoffice_stock_compensations_total",
			"Released reservations after a failed order creation grouped by result.", "result"),
		duration: histogramVec(r, "backoffice_order_operation_duration_seconds",
			"Duration of order operations in seconds.", operationBuckets, "operation"),
		inFlight: gauge(r, "backoffice_order_operations_in_flight",
			"Number of order operations currently running."),
	}
}

// Track отмечает начало операции; возвращённая функция фиксирует длительность.
func (m *OrderMetrics) Track(operation string) func() {
	if m == nil {
		return func() {}
	}
	started := time.Now()
	m.inFlight.Inc()
	return func() {
		m.inFlight.Dec()
		m.duration.WithLabelValues(operation).Observe(time.Since(started).Seconds())
	}
}

func (m *OrderMetrics) RecordCreated() {
	if m != nil {
		m.ordersCreated.Inc()
	}
}

func (m *OrderMetrics) RecordDeleted() {
	if m != nil {
		m.ordersDeleted.Inc()
	}
}

// RecordCreateFailure увеличивает счётчик неудач с указанной причиной.
func (m *OrderMetrics) RecordCreateFailure(reason string) {
	if m != nil {
		m.createFailures.WithLabelValues(reason).Inc()
	}
}

// RecordReservation учитывает результат резервирования: ok или rejected.
func (m *OrderMetrics) RecordReservation(ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "rejected"
	}
	m.reservations.WithLabelValues(result).Inc()
}

// RecordCompensation учитывает результат отката одного резерва.
func (m *OrderMetrics) RecordCompensation(err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.compensations.WithLabelValues(result).Inc()
}
