package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fingerprintdoorbell/doorbell-server-go/internal/model"
)

var modes = []model.OperatingMode{model.ModeScan, model.ModeEnroll, model.ModeWifiConfig, model.ModeMaintenance}

// Metrics methods are safe to call on a nil receiver so components can run
// without instrumentation in tests.
type Metrics struct {
	registry *prometheus.Registry

	mode               *prometheus.GaugeVec
	scans              *prometheus.CounterVec
	doorOpens          prometheus.Counter
	rings              prometheus.Counter
	securityViolations prometheus.Counter
	enrollments        *prometheus.CounterVec
	maintenanceWait    prometheus.Histogram
	maintenanceTimeout prometheus.Counter
	sensorConnected    prometheus.Gauge
	httpRequestsTotal  *prometheus.CounterVec
	httpDuration       *prometheus.HistogramVec
	cacheHits          prometheus.Counter
	cacheMisses        prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		mode: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "doorbell_mode",
			Help: "Current operating mode (1 for the active mode).",
		}, []string{"mode"}),
		scans: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "doorbell_scans_total",
			Help: "Scan outcomes by tag.",
		}, []string{"tag"}),
		doorOpens: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "doorbell_door_opens_total",
			Help: "Matched fingers published to the automation bus.",
		}),
		rings: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "doorbell_rings_total",
			Help: "Doorbell rings triggered by unknown fingers.",
		}),
		securityViolations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "doorbell_security_violations_total",
			Help: "Matches suppressed because the sensor pairing was invalid.",
		}),
		enrollments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "doorbell_enrollments_total",
			Help: "Enrollment attempts by result.",
		}, []string{"result"}),
		maintenanceWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "doorbell_maintenance_wait_seconds",
			Help:    "Time spent waiting for exclusive sensor access.",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5},
		}),
		maintenanceTimeout: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "doorbell_maintenance_timeouts_total",
			Help: "Maintenance requests that timed out.",
		}),
		sensorConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "doorbell_sensor_connected",
			Help: "1 when the sensor link is up.",
		}),
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total count of HTTP requests processed by route and status.",
		}, []string{"route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request durations by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "doorbell_fingerlist_cache_hits_total",
			Help: "Fingerprint list cache hits.",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "doorbell_fingerlist_cache_misses_total",
			Help: "Fingerprint list cache misses.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.mode,
		m.scans,
		m.doorOpens,
		m.rings,
		m.securityViolations,
		m.enrollments,
		m.maintenanceWait,
		m.maintenanceTimeout,
		m.sensorConnected,
		m.httpRequestsTotal,
		m.httpDuration,
		m.cacheHits,
		m.cacheMisses,
	)

	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware records request counts and durations by chi route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m == nil {
			next.ServeHTTP(w, r)
			return
		}
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.httpRequestsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
		m.httpDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

func (m *Metrics) SetMode(mode model.OperatingMode) {
	if m == nil {
		return
	}
	for _, candidate := range modes {
		value := 0.0
		if candidate == mode {
			value = 1
		}
		m.mode.WithLabelValues(candidate.String()).Set(value)
	}
}

func (m *Metrics) ObserveScan(tag model.ScanTag) {
	if m == nil {
		return
	}
	m.scans.WithLabelValues(tag.String()).Inc()
}

func (m *Metrics) DoorOpened() {
	if m == nil {
		return
	}
	m.doorOpens.Inc()
}

func (m *Metrics) BellRung() {
	if m == nil {
		return
	}
	m.rings.Inc()
}

func (m *Metrics) SecurityViolation() {
	if m == nil {
		return
	}
	m.securityViolations.Inc()
}

func (m *Metrics) Enrollment(ok bool) {
	if m == nil {
		return
	}
	result := "failure"
	if ok {
		result = "success"
	}
	m.enrollments.WithLabelValues(result).Inc()
}

func (m *Metrics) MaintenanceAcquired(wait time.Duration) {
	if m == nil {
		return
	}
	m.maintenanceWait.Observe(wait.Seconds())
}

func (m *Metrics) MaintenanceTimedOut() {
	if m == nil {
		return
	}
	m.maintenanceTimeout.Inc()
}

func (m *Metrics) SetSensorConnected(connected bool) {
	if m == nil {
		return
	}
	if connected {
		m.sensorConnected.Set(1)
	} else {
		m.sensorConnected.Set(0)
	}
}

func (m *Metrics) CacheHit() {
	if m == nil {
		return
	}
	m.cacheHits.Inc()
}

func (m *Metrics) CacheMiss() {
	if m == nil {
		return
	}
	m.cacheMisses.Inc()
}
