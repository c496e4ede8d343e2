package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "fda"

// HTTPServerMetrics owns the API registry. Pipeline and resilience collectors
// register into the same registry so one /metrics endpoint exposes all of them.
type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requests      *prometheus.CounterVec
	latency       *prometheus.HistogramVec
	responseBytes *prometheus.HistogramVec
	inFlight      prometheus.Gauge
	rejected      *prometheus.CounterVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	m := &HTTPServerMetrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests served, by route and status.",
		}, []string{"service", "method", "path", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency. Zip batches dominate the upper buckets.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"service", "method", "path"}),
		responseBytes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "response_size_bytes",
			Help:      "Response body size. CSV and XLSX exports land in the large buckets.",
			Buckets:   prometheus.ExponentialBuckets(256, 4, 9),
		}, []string{"service", "path"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "http",
			Name:        "in_flight_requests",
			Help:        "Requests currently being served.",
			ConstLabels: prometheus.Labels{"service": service},
		}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "rejected_total",
			Help:      "Requests rejected by traffic control, by reason.",
		}, []string{"service", "reason"}),
	}
	m.registry.MustRegister(m.requests, m.latency, m.responseBytes, m.inFlight, m.rejected)
	return m
}

func (m *HTTPServerMetrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		route := routeLabel(r.URL.Path)
		cw := &countingWriter{ResponseWriter: w, status: http.StatusOK}

		m.inFlight.Inc()
		defer m.inFlight.Dec()
		next.ServeHTTP(cw, r)

		m.requests.WithLabelValues(service, r.Method, route, strconv.Itoa(cw.status)).Inc()
		m.latency.WithLabelValues(service, r.Method, route).Observe(time.Since(started).Seconds())
		m.responseBytes.WithLabelValues(service, route).Observe(float64(cw.written))
	})
}

func (m *HTTPServerMetrics) RecordRejected(service, reason string) {
	m.rejected.WithLabelValues(service, reason).Inc()
}

// routeLabel collapses job ids so the path label stays bounded.
func routeLabel(path string) string {
	rest, ok := strings.CutPrefix(path, "/v1/batch-jobs/")
	if !ok || rest == "" {
		return path
	}
	if strings.HasSuffix(rest, "/result") {
		return "/v1/batch-jobs/{job_id}/result"
	}
	return "/v1/batch-jobs/{job_id}"
}

type countingWriter struct {
	http.ResponseWriter
	status  int
	written int
}

func (w *countingWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (w *countingWriter) Write(b []byte) (int, error) {
	n, err := w.ResponseWriter.Write(b)
	w.written += n
	return n, err
}

func (w *countingWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
