package monitoring

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// Metrics holds all the monitoring components
type Metrics struct {
	registry *prometheus.Registry
	logger   *logrus.Logger

	httpRequestsTotal      *prometheus.CounterVec
	httpRequestDuration    *prometheus.HistogramVec
	webfingerRequestsTotal *prometheus.CounterVec
	storeLookupDuration    *prometheus.HistogramVec
}

// NewMetrics creates a new metrics instance with its own registry and a JSON logger.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests",
				Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"method", "endpoint", "status_code"},
		),
		webfingerRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "webfinger_requests_total",
				Help: "Total number of WebFinger requests",
			},
			[]string{"status"},
		),
		storeLookupDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "webfinger_store_lookup_duration_seconds",
				Help:    "Duration of JRD store lookups",
				Buckets: []float64{0.0001, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
			},
			[]string{"driver"},
		),
	}

	m.registry.MustRegister(
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.webfingerRequestsTotal,
		m.storeLookupDuration,
	)

	m.logger = logrus.New()
	m.logger.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: time.RFC3339,
	})

	return m
}

// HTTPMetricsMiddleware adds Prometheus metrics to HTTP requests
func (m *Metrics) HTTPMetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := &ResponseWriter{ResponseWriter: w, StatusCode: http.StatusOK}
		next.ServeHTTP(ww, r)

		duration := time.Since(start).Seconds()
		statusCode := strconv.Itoa(ww.StatusCode)

		m.httpRequestsTotal.WithLabelValues(r.Method, r.URL.Path, statusCode).Inc()
		m.httpRequestDuration.WithLabelValues(r.Method, r.URL.Path, statusCode).Observe(duration)
	})
}

// RecordWebFingerRequest records the outcome of a WebFinger query: found, not_found,
// bad_request or error.
func (m *Metrics) RecordWebFingerRequest(status string) {
	m.webfingerRequestsTotal.WithLabelValues(status).Inc()
}

// ObserveStoreLookup records how long a store lookup took.
func (m *Metrics) ObserveStoreLookup(driver string, d time.Duration) {
	m.storeLookupDuration.WithLabelValues(driver).Observe(d.Seconds())
}

// Handler returns the Prometheus metrics handler
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Registry exposes the registry so other components can add collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Logger returns the structured logger
func (m *Metrics) Logger() *logrus.Logger {
	return m.logger
}

// HealthCheckHandler reports healthy unless check fails. A nil check always passes.
func (m *Metrics) HealthCheckHandler(version string, check func(context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, code := "healthy", http.StatusOK
		body := map[string]any{
			"timestamp": time.Now().Unix(),
			"version":   version,
		}
		if check != nil {
			if err := check(r.Context()); err != nil {
				status, code = "unhealthy", http.StatusServiceUnavailable
				body["error"] = err.Error()
				m.logger.WithError(err).WithField("component", "healthcheck").Warn("Health check failed")
			}
		}
		body["status"] = status

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(body)

		m.logger.WithField("component", "healthcheck").Debug("Health check requested")
	}
}

// SetLogLevel sets the logging level
func (m *Metrics) SetLogLevel(level string) error {
	parsedLevel, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}
	m.logger.SetLevel(parsedLevel)
	return nil
}

// SetLogFormat switches between the json and text formatters.
func (m *Metrics) SetLogFormat(format string) {
	if format == "text" {
		m.logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.RFC3339,
		})
		return
	}
	m.logger.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: time.RFC3339,
	})
}

// ResponseWriter wraps http.ResponseWriter to capture status code
type ResponseWriter struct {
	http.ResponseWriter
	StatusCode int
	Bytes      int
}

func (rw *ResponseWriter) WriteHeader(code int) {
	rw.StatusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *ResponseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.Bytes += n
	return n, err
}

func (rw *ResponseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// ClientIP extracts client IP from request. Of a forwarded chain only the first, originating
// address is kept.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}
	return r.RemoteAddr
}
