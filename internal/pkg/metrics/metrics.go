// Package metrics defines the Prometheus instruments of the service.
// Registration happens at construction via promauto; scraping is
// exposed by the HTTP layer on /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTPMetrics counts and times inbound HTTP requests.
type HTTPMetrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

func NewHTTPMetrics(serviceName string) *HTTPMetrics {
	return &HTTPMetrics{
		RequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: serviceName + "_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    serviceName + "_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
	}
}

func (m *HTTPMetrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// WorkflowMetrics tracks outcomes of the composite order-creation
// workflow.
type WorkflowMetrics struct {
	OrdersCreated    prometheus.Counter
	CompensationsRun prometheus.Counter
}

func NewWorkflowMetrics(serviceName string) *WorkflowMetrics {
	return &WorkflowMetrics{
		OrdersCreated: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: serviceName + "_orders_created_total",
				Help: "Total number of composite orders created successfully",
			},
		),
		CompensationsRun: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: serviceName + "_order_compensations_total",
				Help: "Total number of order creations rolled back after an item failure",
			},
		),
	}
}
