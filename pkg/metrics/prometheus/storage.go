package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/chunkvault/chunkvault/pkg/metrics"
)

func init() {
	metrics.RegisterStorageMetricsConstructor(newStorageMetrics)
}

// storageMetrics is the Prometheus implementation of metrics.StorageMetrics.
type storageMetrics struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	bytes      *prometheus.CounterVec
	retries    *prometheus.CounterVec
}

func newStorageMetrics() metrics.StorageMetrics {
	reg := metrics.GetRegistry()
	if reg == nil {
		return nil
	}

	return &storageMetrics{
		operations: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "chunkvault_storage_operations_total",
				Help: "Total number of provider operations by provider, op, and status",
			},
			[]string{"provider", "op", "status"}, // status: "ok", "error"
		),
		duration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "chunkvault_storage_operation_duration_seconds",
				Help:    "Duration of provider operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"provider", "op"},
		),
		bytes: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "chunkvault_storage_bytes_total",
				Help: "Total bytes moved through providers by op",
			},
			[]string{"provider", "op"},
		),
		retries: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "chunkvault_storage_retries_total",
				Help: "Total number of retried provider operations",
			},
			[]string{"provider", "op"},
		),
	}
}

func (m *storageMetrics) RecordOperation(providerID, op string, bytes int64, duration time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.operations.WithLabelValues(providerID, op, status).Inc()
	m.duration.WithLabelValues(providerID, op).Observe(duration.Seconds())
	if bytes > 0 {
		m.bytes.WithLabelValues(providerID, op).Add(float64(bytes))
	}
}

func (m *storageMetrics) RecordRetry(providerID, op string) {
	m.retries.WithLabelValues(providerID, op).Inc()
}
