package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/chunkvault/chunkvault/pkg/metrics"
)

func init() {
	metrics.RegisterEngineMetricsConstructor(newEngineMetrics)
}

// engineMetrics is the Prometheus implementation of metrics.EngineMetrics.
type engineMetrics struct {
	splits        prometheus.Counter
	splitDuration prometheus.Histogram
	splitChunks   prometheus.Histogram
	originalBytes prometheus.Counter
	storedBytes   prometheus.Counter
	merges        *prometheus.CounterVec
	mergeDuration prometheus.Histogram
	deletes       prometheus.Counter
	deletedChunks prometheus.Counter
	chunkErrors   *prometheus.CounterVec
}

func newEngineMetrics() metrics.EngineMetrics {
	reg := metrics.GetRegistry()
	if reg == nil {
		return nil
	}

	return &engineMetrics{
		splits: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "chunkvault_engine_splits_total",
				Help: "Total number of completed split operations",
			},
		),
		splitDuration: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Name:    "chunkvault_engine_split_duration_seconds",
				Help:    "Wall time of split operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),
		splitChunks: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Name:    "chunkvault_engine_split_chunks",
				Help:    "Distribution of chunk counts per split",
				Buckets: []float64{1, 2, 5, 10, 25, 50, 100, 250, 1000},
			},
		),
		originalBytes: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "chunkvault_engine_original_bytes_total",
				Help: "Total uncompressed bytes ingested by split",
			},
		),
		storedBytes: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "chunkvault_engine_stored_bytes_total",
				Help: "Total bytes written to providers after compression",
			},
		),
		merges: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "chunkvault_engine_merges_total",
				Help: "Total number of completed merge operations by outcome",
			},
			[]string{"verified"}, // "true", "false"
		),
		mergeDuration: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Name:    "chunkvault_engine_merge_duration_seconds",
				Help:    "Wall time of merge operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),
		deletes: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "chunkvault_engine_deletes_total",
				Help: "Total number of file deletions",
			},
		),
		deletedChunks: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "chunkvault_engine_deleted_chunks_total",
				Help: "Total number of chunks removed by deletions",
			},
		),
		chunkErrors: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "chunkvault_engine_chunk_errors_total",
				Help: "Total number of per-chunk failures by pipeline stage",
			},
			[]string{"stage"},
		),
	}
}

func (m *engineMetrics) RecordSplit(chunks int, originalBytes, storedBytes int64, duration time.Duration) {
	m.splits.Inc()
	m.splitDuration.Observe(duration.Seconds())
	m.splitChunks.Observe(float64(chunks))
	m.originalBytes.Add(float64(originalBytes))
	m.storedBytes.Add(float64(storedBytes))
}

func (m *engineMetrics) RecordMerge(chunks int, bytes int64, duration time.Duration, verified bool) {
	label := "false"
	if verified {
		label = "true"
	}
	m.merges.WithLabelValues(label).Inc()
	m.mergeDuration.Observe(duration.Seconds())
}

func (m *engineMetrics) RecordDelete(chunks int) {
	m.deletes.Inc()
	m.deletedChunks.Add(float64(chunks))
}

func (m *engineMetrics) RecordChunkError(stage string) {
	m.chunkErrors.WithLabelValues(stage).Inc()
}
