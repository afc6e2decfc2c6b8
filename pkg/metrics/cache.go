package metrics

import "time"

// CacheMetrics provides observability for the metadata cache.
//
// This interface is optional: pass nil to disable collection with zero
// overhead.
type CacheMetrics interface {
	// RecordGet records a cache lookup with its outcome.
	RecordGet(keyKind string, hit bool, duration time.Duration)

	// RecordSet records a cache write.
	RecordSet(keyKind string, duration time.Duration)

	// RecordDeleteBatch records a flushed delete batch and its size.
	RecordDeleteBatch(opType string, size int)

	// RecordEntries records the current number of live entries.
	RecordEntries(count int)
}

// NewCacheMetrics creates a Prometheus-backed CacheMetrics instance.
// Returns nil if metrics are not enabled (InitRegistry not called).
func NewCacheMetrics() CacheMetrics {
	if !IsEnabled() || newPrometheusCacheMetrics == nil {
		return nil
	}
	return newPrometheusCacheMetrics()
}

// newPrometheusCacheMetrics is implemented in pkg/metrics/prometheus.
// The indirection avoids an import cycle between the two packages.
var newPrometheusCacheMetrics func() CacheMetrics

// RegisterCacheMetricsConstructor registers the Prometheus constructor.
// Called by pkg/metrics/prometheus during package initialization.
func RegisterCacheMetricsConstructor(constructor func() CacheMetrics) {
	newPrometheusCacheMetrics = constructor
}
