package metrics

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	m, err := New()
	require.NoError(t, err)

	m.VariantRequest(ResultHit)
	m.VariantRequest(ResultHit)
	m.VariantRequest(ResultMiss)
	m.MediaIngested(true)
	m.MediaIngested(false)
	m.MediaIngested(false)
	m.ReaperDeleted("media", 3)
	m.ReaperDeleted("album", 0)
	m.IngestFailed("")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.variantRequests.WithLabelValues(ResultHit)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.variantRequests.WithLabelValues(ResultMiss)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.mediaIngested.WithLabelValues("autosave")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.mediaIngested.WithLabelValues("staged")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.reaperDeleted.WithLabelValues("media")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ingestFailures.WithLabelValues("internal")))
}

func TestMetrics_Handler(t *testing.T) {
	m, err := New()
	require.NoError(t, err)
	m.ObserveHTTP("POST", "/api/media/upload", 200, 15*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), `media_album_http_requests_total{method="POST",route="/api/media/upload",status="200"} 1`)
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.VariantRequest(ResultError)
		m.VariantGenerated("crop", "imaging", time.Second)
		m.MediaIngested(true)
		m.ReaperDeleted("dir", 1)
		m.ReaperFailed(1)
		m.ObserveHTTP("GET", "/", 200, 0)
	})
	assert.Nil(t, m.Registry())
}
