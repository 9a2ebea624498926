package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// ImageStoreMetrics contains Prometheus metrics for uploaded image files
type ImageStoreMetrics struct {
	operationsTotal *prometheus.CounterVec
	uploadSize      prometheus.Histogram
	rejectedTotal   *prometheus.CounterVec

	collectors []prometheus.Collector
}

// NewImageStoreMetrics creates and registers new image store metrics
func NewImageStoreMetrics(registry *prometheus.Registry) (*ImageStoreMetrics, error) {
	m := &ImageStoreMetrics{}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *ImageStoreMetrics) initMetrics() {
	m.operationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "imagestore_operations_total",
			Help: "Total number of image file operations",
		},
		[]string{"operation", "status"},
	)

	m.uploadSize = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "imagestore_upload_size_bytes",
		Help:    "Size of accepted uploads",
		Buckets: prometheus.ExponentialBuckets(BucketStart1KB, BucketFactor4, BucketCount10),
	})

	m.rejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "imagestore_rejected_uploads_total",
			Help: "Total number of rejected uploads by reason",
		},
		[]string{"reason"},
	)

	m.collectors = []prometheus.Collector{m.operationsTotal, m.uploadSize, m.rejectedTotal}
}

// Describe implements the prometheus.Collector interface
func (m *ImageStoreMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, c := range m.collectors {
		c.Describe(ch)
	}
}

// Collect implements the prometheus.Collector interface
func (m *ImageStoreMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, c := range m.collectors {
		c.Collect(ch)
	}
}

// RecordOperation records a save, copy or delete
func (m *ImageStoreMetrics) RecordOperation(operation, status string) {
	m.operationsTotal.WithLabelValues(operation, status).Inc()
}

// RecordUpload records the size of an accepted upload
func (m *ImageStoreMetrics) RecordUpload(sizeBytes int64) {
	m.uploadSize.Observe(float64(sizeBytes))
}

// RecordRejected records an upload refused for reason
func (m *ImageStoreMetrics) RecordRejected(reason string) {
	m.rejectedTotal.WithLabelValues(reason).Inc()
}
