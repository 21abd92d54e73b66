package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRelayMetrics(t *testing.T) {
	m := New()

	m.StreamStarted()
	m.ChunkPublished()
	m.ChunkPublished()
	m.StreamFinished("complete", 2*time.Second)
	m.StreamFinished("error", time.Second)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RelayStarted))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.RelayChunks))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RelayOutcomes.WithLabelValues("complete")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RelayOutcomes.WithLabelValues("error")))
}

func TestObserveRequest(t *testing.T) {
	m := New()

	m.ObserveRequest("/api/ai/stream", http.StatusOK, 50*time.Millisecond)
	m.ObserveRequest("/api/ai/stream", http.StatusUnauthorized, time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("/api/ai/stream", "OK")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("/api/ai/stream", "Unauthorized")))
}

func TestInstancesDoNotCollide(t *testing.T) {
	a, b := New(), New()
	a.StreamStarted()

	assert.Equal(t, 1.0, testutil.ToFloat64(a.RelayStarted))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.RelayStarted))
}

func TestHandler(t *testing.T) {
	m := New()
	m.ChunkPublished()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "zenix_relay_chunks_total 1")
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
