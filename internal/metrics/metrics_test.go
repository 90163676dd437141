package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fingerprintdoorbell/doorbell-server-go/internal/model"
)

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.SetMode(model.ModeScan)
		m.ObserveScan(model.ScanMatchFound)
		m.DoorOpened()
		m.BellRung()
		m.SecurityViolation()
		m.Enrollment(true)
		m.MaintenanceAcquired(time.Second)
		m.MaintenanceTimedOut()
		m.SetSensorConnected(true)
		m.CacheHit()
		m.CacheMiss()
	})
}

func TestMetrics_SetMode(t *testing.T) {
	m := New()
	m.SetMode(model.ModeMaintenance)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.mode.WithLabelValues("maintenance")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.mode.WithLabelValues("scan")))

	m.SetMode(model.ModeScan)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.mode.WithLabelValues("maintenance")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.mode.WithLabelValues("scan")))
}

func TestMetrics_Counters(t *testing.T) {
	m := New()
	m.ObserveScan(model.ScanNoMatchFound)
	m.ObserveScan(model.ScanNoMatchFound)
	m.DoorOpened()
	m.Enrollment(false)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.scans.WithLabelValues("no_match_found")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.doorOpens))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.enrollments.WithLabelValues("failure")))
}

func TestMetrics_HandlerAndMiddleware(t *testing.T) {
	m := New()

	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/api/fingerprints/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	r.Get("/metrics", m.Handler().ServeHTTP)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/fingerprints/3", nil))
	require.Equal(t, http.StatusNoContent, rec.Code)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues("/api/fingerprints/{id}", "204")))

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	assert.Contains(t, string(body), "http_requests_total")
}
