// Package prometheus provides Prometheus-backed implementations of the
// chunkvault metrics interfaces.
//
// Constructors are registered with pkg/metrics during package init, so
// importing this package (typically with a blank import from the command
// wiring) is enough to make metrics.New*Metrics return live collectors
// once the registry is initialized.
package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/chunkvault/chunkvault/pkg/metrics"
)

func init() {
	metrics.RegisterCacheMetricsConstructor(newCacheMetrics)
}

// cacheMetrics is the Prometheus implementation of metrics.CacheMetrics.
type cacheMetrics struct {
	gets        *prometheus.CounterVec
	getDuration *prometheus.HistogramVec
	sets        *prometheus.CounterVec
	setDuration *prometheus.HistogramVec
	deleteBatch *prometheus.HistogramVec
	entries     prometheus.Gauge
}

func newCacheMetrics() metrics.CacheMetrics {
	reg := metrics.GetRegistry()
	if reg == nil {
		return nil
	}

	return &cacheMetrics{
		gets: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "chunkvault_cache_get_total",
				Help: "Total number of cache lookups by key kind and outcome",
			},
			[]string{"key_kind", "status"}, // status: "hit", "miss"
		),
		getDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "chunkvault_cache_get_duration_milliseconds",
				Help:    "Duration of cache lookups in milliseconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10},
			},
			[]string{"key_kind"},
		),
		sets: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "chunkvault_cache_set_total",
				Help: "Total number of cache writes by key kind",
			},
			[]string{"key_kind"},
		),
		setDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "chunkvault_cache_set_duration_milliseconds",
				Help:    "Duration of cache writes in milliseconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10},
			},
			[]string{"key_kind"},
		),
		deleteBatch: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "chunkvault_cache_delete_batch_size",
				Help:    "Distribution of coalesced delete batch sizes",
				Buckets: []float64{1, 2, 5, 10, 25, 50, 100},
			},
			[]string{"op_type"},
		),
		entries: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "chunkvault_cache_entries",
				Help: "Current number of live cache entries",
			},
		),
	}
}

func (m *cacheMetrics) RecordGet(keyKind string, hit bool, duration time.Duration) {
	status := "miss"
	if hit {
		status = "hit"
	}
	m.gets.WithLabelValues(keyKind, status).Inc()
	m.getDuration.WithLabelValues(keyKind).Observe(float64(duration.Microseconds()) / 1000.0)
}

func (m *cacheMetrics) RecordSet(keyKind string, duration time.Duration) {
	m.sets.WithLabelValues(keyKind).Inc()
	m.setDuration.WithLabelValues(keyKind).Observe(float64(duration.Microseconds()) / 1000.0)
}

func (m *cacheMetrics) RecordDeleteBatch(opType string, size int) {
	m.deleteBatch.WithLabelValues(opType).Observe(float64(size))
}

func (m *cacheMetrics) RecordEntries(count int) {
	m.entries.Set(float64(count))
}
