package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// OCR pipeline stages used as label values
const (
	StageOCR        = "ocr"
	StageExtraction = "extraction"
)

// OCRMetrics contains Prometheus metrics for the OCR extraction flow
type OCRMetrics struct {
	requestsTotal     *prometheus.CounterVec
	stageDuration     *prometheus.HistogramVec
	fallbacksTotal    prometheus.Counter
	degenerateResults prometheus.Counter
	extractedFields   prometheus.Histogram

	collectors []prometheus.Collector
}

// NewOCRMetrics creates and registers new OCR metrics
func NewOCRMetrics(registry *prometheus.Registry) (*OCRMetrics, error) {
	m := &OCRMetrics{}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *OCRMetrics) initMetrics() {
	m.requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ocr_requests_total",
			Help: "Total number of remote OCR and extraction calls",
		},
		[]string{"stage", "model", "status"},
	)

	m.stageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ocr_stage_duration_seconds",
			Help:    "Time taken by each remote call",
			Buckets: prometheus.ExponentialBuckets(BucketStart10ms, BucketFactor2, BucketCount15),
		},
		[]string{"stage"},
	)

	m.fallbacksTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ocr_extraction_fallbacks_total",
		Help: "Number of extractions retried with the fallback model",
	})

	m.degenerateResults = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ocr_degenerate_results_total",
		Help: "Number of OCR results that contained no usable text",
	})

	m.extractedFields = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "ocr_extracted_fields",
		Help:    "Number of non-null fields in each structured extraction",
		Buckets: prometheus.LinearBuckets(0, 2, 7),
	})

	m.collectors = []prometheus.Collector{
		m.requestsTotal,
		m.stageDuration,
		m.fallbacksTotal,
		m.degenerateResults,
		m.extractedFields,
	}
}

// Describe implements the prometheus.Collector interface
func (m *OCRMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, c := range m.collectors {
		c.Describe(ch)
	}
}

// Collect implements the prometheus.Collector interface
func (m *OCRMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, c := range m.collectors {
		c.Collect(ch)
	}
}

// RecordRequest records one remote call
func (m *OCRMetrics) RecordRequest(stage, model, status string, duration float64) {
	m.requestsTotal.WithLabelValues(stage, model, status).Inc()
	m.stageDuration.WithLabelValues(stage).Observe(duration)
}

// RecordFallback records a retry with the fallback model
func (m *OCRMetrics) RecordFallback() {
	m.fallbacksTotal.Inc()
}

// RecordDegenerate records an OCR result without usable text
func (m *OCRMetrics) RecordDegenerate() {
	m.degenerateResults.Inc()
}

// RecordExtractedFields records how many fields an extraction filled
func (m *OCRMetrics) RecordExtractedFields(n int) {
	m.extractedFields.Observe(float64(n))
}
