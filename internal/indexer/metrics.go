package indexer

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// Metrics holds Prometheus metrics for the sync engine.
type Metrics struct {
	SyncCyclesTotal     prometheus.Counter
	FilesUploadedTotal  prometheus.Counter
	UploadFailuresTotal prometheus.Counter
	FilesDroppedTotal   prometheus.Counter
	DivergingFiles      prometheus.Gauge
	DirCacheHits        prometheus.Gauge
	DirCacheMisses      prometheus.Gauge
}

// NewMetrics creates and registers the sync metrics.
//
// sync.Once guards registration so repeated construction (tests, lazy
// recovery paths) cannot panic with a duplicate collector.
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = &Metrics{
			SyncCyclesTotal: promauto.NewCounter(prometheus.CounterOpts{
				Name: "codesync_sync_cycles_total",
				Help: "Total number of sync cycles run",
			}),
			FilesUploadedTotal: promauto.NewCounter(prometheus.CounterOpts{
				Name: "codesync_files_uploaded_total",
				Help: "Total number of file artifacts uploaded",
			}),
			UploadFailuresTotal: promauto.NewCounter(prometheus.CounterOpts{
				Name: "codesync_upload_failures_total",
				Help: "Total number of failed upload attempts",
			}),
			FilesDroppedTotal: promauto.NewCounter(prometheus.CounterOpts{
				Name: "codesync_files_dropped_total",
				Help: "Files abandoned after exhausting upload attempts",
			}),
			DivergingFiles: promauto.NewGauge(prometheus.GaugeOpts{
				Name: "codesync_diverging_files",
				Help: "Diverging files found by the most recent sync cycle",
			}),
			DirCacheHits: promauto.NewGauge(prometheus.GaugeOpts{
				Name: "codesync_dir_cache_hits",
				Help: "Cumulative directory cache hits",
			}),
			DirCacheMisses: promauto.NewGauge(prometheus.GaugeOpts{
				Name: "codesync_dir_cache_misses",
				Help: "Cumulative directory cache misses",
			}),
		}
	})
	return globalMetrics
}
