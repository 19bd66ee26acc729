package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// HTTPMetrics измеряет HTTP запросы API.
type HTTPMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewHTTPMetrics регистрирует метрики HTTP API в заданном registerer.
func NewHTTPMetrics(r prometheus.Registerer) *HTTPMetrics {
	return &HTTPMetrics{
		requests: counterVec(r, "backoffice_http_requests_total",
			"Total number of HTTP requests.", "method", "route", "status"),
		duration: histogramVec(r, "backoffice_http_request_duration_seconds",
			"HTTP request latency in seconds.", prometheus.DefBuckets, "method", "route"),
	}
}

// Observe фиксирует завершённый запрос. route — шаблон маршрута, а не путь.
func (m *HTTPMetrics) Observe(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.duration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}
