// Package metrics holds the Prometheus collectors of the garden tracker,
// one type per component, all registered on the registry owned by the
// observability package.
package metrics

// Outcome label values
const (
	StatusSuccess = "success"
	StatusError   = "error"
	StatusWarning = "warning"
)

// Histogram layouts. Latency buckets start at the fastest expected call
// and double; image sizes start at 1 KiB and quadruple up to the upload cap.
const (
	BucketStart1ms   = 0.001
	BucketStart10ms  = 0.01
	BucketStart100ms = 0.1
	BucketStart1KB   = 1024.0

	BucketFactor2 = 2
	BucketFactor4 = 4

	BucketCount8  = 8
	BucketCount10 = 10
	BucketCount15 = 15
)
