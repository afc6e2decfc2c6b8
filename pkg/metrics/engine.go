package metrics

import "time"

// EngineMetrics provides observability for the chunk engine.
//
// This interface is optional: pass nil to disable collection with zero
// overhead.
type EngineMetrics interface {
	// RecordSplit records a completed split: chunk count, original bytes,
	// stored (possibly compressed) bytes, and wall time.
	RecordSplit(chunks int, originalBytes, storedBytes int64, duration time.Duration)

	// RecordMerge records a completed merge and whether it verified.
	RecordMerge(chunks int, bytes int64, duration time.Duration, verified bool)

	// RecordDelete records a file deletion and how many chunks went with it.
	RecordDelete(chunks int)

	// RecordChunkError records a per-chunk failure during split or merge.
	RecordChunkError(stage string)
}

// NewEngineMetrics creates a Prometheus-backed EngineMetrics instance.
// Returns nil if metrics are not enabled.
func NewEngineMetrics() EngineMetrics {
	if !IsEnabled() || newPrometheusEngineMetrics == nil {
		return nil
	}
	return newPrometheusEngineMetrics()
}

var newPrometheusEngineMetrics func() EngineMetrics

// RegisterEngineMetricsConstructor registers the Prometheus constructor.
func RegisterEngineMetricsConstructor(constructor func() EngineMetrics) {
	newPrometheusEngineMetrics = constructor
}
