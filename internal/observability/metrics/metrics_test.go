package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewHTTPMetrics(reg)
	require.NoError(t, err)

	m.RecordHTTPRequest("GET", "/plants/:id", 404, 0.002)
	m.RecordHTTPRequestError("GET", "/plants/:id", "RESOURCE_NOT_FOUND")

	assert.InDelta(t, 1, testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues("GET", "/plants/:id", "404")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.httpRequestErrors.WithLabelValues("GET", "/plants/:id", "RESOURCE_NOT_FOUND")), 0)

	_, err = NewHTTPMetrics(reg)
	assert.Error(t, err, "duplicate registration must fail")
}

func TestDatastoreMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewDatastoreMetrics(reg)
	require.NoError(t, err)

	m.RecordDbOperation("create", "plants", StatusSuccess, 0.01)
	m.RecordDbOperation("create", "plants", StatusError, 0.01)
	m.RecordDbOperationError("create", "plants", "database")
	m.RecordCacheOperation("years", "hit")
	m.UpdateConnectionMetrics(3, 1)

	assert.InDelta(t, 1, testutil.ToFloat64(m.dbOperationsTotal.WithLabelValues("create", "plants", StatusError)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.cacheOperationsTotal.WithLabelValues("years", "hit")), 0)
	assert.InDelta(t, 3, testutil.ToFloat64(m.dbConnectionsOpen), 0)

	m.RecordSlowStatement(300 * time.Millisecond)
	var pb dto.Metric
	require.NoError(t, m.slowStatements.Write(&pb))
	assert.Equal(t, uint64(1), pb.GetHistogram().GetSampleCount())
	assert.InDelta(t, 0.3, pb.GetHistogram().GetSampleSum(), 1e-9)
}

func TestOCRMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewOCRMetrics(reg)
	require.NoError(t, err)

	m.RecordRequest(StageOCR, "mistral-ocr-latest", StatusSuccess, 1.2)
	m.RecordFallback()
	m.RecordDegenerate()
	m.RecordExtractedFields(5)

	assert.InDelta(t, 1, testutil.ToFloat64(m.fallbacksTotal), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.degenerateResults), 0)
	assert.Equal(t, 5, testutil.CollectAndCount(m))
}

func TestImageStoreMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewImageStoreMetrics(reg)
	require.NoError(t, err)

	m.RecordOperation("save", StatusSuccess)
	m.RecordUpload(2048)
	m.RecordRejected("content_type")

	assert.InDelta(t, 1, testutil.ToFloat64(m.rejectedTotal.WithLabelValues("content_type")), 0)
}
