package metrics

import "time"

// StorageMetrics provides observability for storage provider operations.
//
// This interface is optional: pass nil to disable collection with zero
// overhead.
type StorageMetrics interface {
	// RecordOperation records a provider call with its outcome.
	// op is one of "put", "get", "delete", "exists".
	RecordOperation(providerID, op string, bytes int64, duration time.Duration, err error)

	// RecordRetry records a transient failure that triggered a retry.
	RecordRetry(providerID, op string)
}

// NewStorageMetrics creates a Prometheus-backed StorageMetrics instance.
// Returns nil if metrics are not enabled.
func NewStorageMetrics() StorageMetrics {
	if !IsEnabled() || newPrometheusStorageMetrics == nil {
		return nil
	}
	return newPrometheusStorageMetrics()
}

var newPrometheusStorageMetrics func() StorageMetrics

// RegisterStorageMetricsConstructor registers the Prometheus constructor.
func RegisterStorageMetricsConstructor(constructor func() StorageMetrics) {
	newPrometheusStorageMetrics = constructor
}
