package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the Prometheus collectors of the inventory service
type Metrics struct {
	requestCounter *prometheus.CounterVec
	requestLatency *prometheus.HistogramVec
	requestSummary *prometheus.SummaryVec
	countsSaved    *prometheus.CounterVec
	confirmations  prometheus.Counter
	lostFound      prometheus.Histogram
}

// NewMetrics creates the collectors and registers them with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requestCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "inventory_service_requests_total",
				Help: "Total number of requests to inventory service",
			},
			[]string{"method", "endpoint", "status"},
		),
		requestLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "inventory_service_request_duration_seconds",
				Help:    "Duration of inventory service requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),
		// p50, p90, p95, p99
		requestSummary: prometheus.NewSummaryVec(
			prometheus.SummaryOpts{
				Name: "inventory_service_request_duration_summary",
				Help: "Summary of request durations with percentiles (client-side quantiles)",
				Objectives: map[float64]float64{
					0.5:  0.05,
					0.9:  0.01,
					0.95: 0.01,
					0.99: 0.001,
				},
				MaxAge: 10 * time.Minute,
			},
			[]string{"method", "endpoint"},
		),
		countsSaved: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "inventory_counts_saved_total",
				Help: "Manual counts saved, by resulting status",
			},
			[]string{"status"},
		),
		confirmations: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "inventory_discrepancies_confirmed_total",
				Help: "Discrepancies confirmed and committed to book stock",
			},
		),
		lostFound: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "inventory_confirmed_discrepancy_units",
				Help:    "Absolute size of confirmed discrepancies in units",
				Buckets: []float64{1, 2, 5, 10, 20, 50, 100},
			},
		),
	}

	reg.MustRegister(
		m.requestCounter,
		m.requestLatency,
		m.requestSummary,
		m.countsSaved,
		m.confirmations,
		m.lostFound,
	)
	return m
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

// middleware wraps handlers with request metrics
func (m *Metrics) middleware(endpoint string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		m.requestCounter.WithLabelValues(r.Method, endpoint, strconv.Itoa(rw.statusCode)).Inc()
		m.requestLatency.WithLabelValues(r.Method, endpoint).Observe(duration)
		m.requestSummary.WithLabelValues(r.Method, endpoint).Observe(duration)
	}
}

func (m *Metrics) countSaved(status string) {
	m.countsSaved.WithLabelValues(status).Inc()
}

func (m *Metrics) discrepancyConfirmed(discrepancy int) {
	m.confirmations.Inc()
	if discrepancy < 0 {
		discrepancy = -discrepancy
	}
	m.lostFound.Observe(float64(discrepancy))
}
