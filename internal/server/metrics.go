package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"example.com/autellog/internal/autelfr"
)

const (
	statusSuccess  = "success"
	statusError    = "error"
	statusCanceled = "canceled"
)

// Metrics holds the daemon's Prometheus collectors.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	parsesTotal   *prometheus.CounterVec
	parseDuration prometheus.Histogram
	parseBytes    prometheus.Counter
	recordsTotal  *prometheus.CounterVec
}

// NewMetrics registers all collectors with reg. active reports the number
// of busy parse workers.
func NewMetrics(reg *prometheus.Registry, active func() float64) *Metrics {
	f := promauto.With(reg)
	m := &Metrics{
		registry: reg,
		httpRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "autellog_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),
		httpRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "autellog_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),
		parsesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "autellog_parses_total",
				Help: "Flight logs parsed, by outcome",
			},
			[]string{"status"},
		),
		parseDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "autellog_parse_duration_seconds",
				Help:    "Time spent parsing one flight log, including the wait for a worker",
				Buckets: prometheus.DefBuckets,
			},
		),
		parseBytes: f.NewCounter(
			prometheus.CounterOpts{
				Name: "autellog_parse_bytes_total",
				Help: "Bytes of flight log input parsed successfully",
			},
		),
		recordsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "autellog_records_total",
				Help: "Decoded records, by kind",
			},
			[]string{"kind"},
		),
	}
	if active != nil {
		f.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name: "autellog_parse_workers_busy",
				Help: "Parse workers currently running",
			},
			active,
		)
	}
	return m
}

// RecordParse records the outcome of one parse request.
func (m *Metrics) RecordParse(res *autelfr.ParseResult, size int, duration time.Duration, err error) {
	status := statusSuccess
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status = statusCanceled
	case err != nil:
		status = statusError
	}
	m.parsesTotal.WithLabelValues(status).Inc()
	m.parseDuration.Observe(duration.Seconds())
	if err != nil || res == nil {
		return
	}
	m.parseBytes.Add(float64(size))
	for _, kind := range autelfr.BodyKinds {
		if n := len(res.Records[kind]); n > 0 {
			m.recordsTotal.WithLabelValues(string(kind)).Add(float64(n))
		}
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// InstrumentHandler instruments an HTTP handler with metrics
func (m *Metrics) InstrumentHandler(endpoint string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		handler(rw, r)
		m.httpRequestsTotal.WithLabelValues(r.Method, endpoint, strconv.Itoa(rw.statusCode)).Inc()
		m.httpRequestDuration.WithLabelValues(r.Method, endpoint).Observe(time.Since(start).Seconds())
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Flush keeps streaming responses working through the wrapper.
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
