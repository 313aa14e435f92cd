package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the gateway and
// the attendance domain.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	sessionsOpen    prometheus.Gauge
	confirmations   prometheus.Counter
	scanDuration    prometheus.Histogram
	mealsVerified   *prometheus.CounterVec
}

// NewMetricsService registers the collectors on a private registry.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	sessionsOpen := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "attendance_sessions_open",
		Help: "Number of attendance sessions currently open",
	})

	confirmations := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "attendance_confirmations_total",
		Help: "Total confirmed attendance batches",
	})

	scanDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "recognition_scan_duration_seconds",
		Help:    "Duration of face recognition scans",
		Buckets: prometheus.DefBuckets,
	})

	mealsVerified := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "meal_verifications_total",
		Help: "Total meal verifications by source",
	}, []string{"source"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, sessionsOpen, confirmations, scanDuration, mealsVerified, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		sessionsOpen:    sessionsOpen,
		confirmations:   confirmations,
		scanDuration:    scanDuration,
		mealsVerified:   mealsVerified,
	}
}

// Handler exposes the Prometheus scrape endpoint.
func (s *MetricsService) Handler() http.Handler {
	return s.handler
}

// ObserveHTTPRequest records one handled request.
func (s *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	labels := []string{method, path, fmt.Sprintf("%d", status)}
	s.requestDuration.WithLabelValues(labels...).Observe(duration.Seconds())
	s.requestTotal.WithLabelValues(labels...).Inc()
}

// SessionOpened and SessionClosed track the open session gauge.
func (s *MetricsService) SessionOpened() { s.sessionsOpen.Inc() }

func (s *MetricsService) SessionClosed() { s.sessionsOpen.Dec() }

// ObserveConfirmation counts a persisted attendance batch.
func (s *MetricsService) ObserveConfirmation() { s.confirmations.Inc() }

// ObserveScan records the latency of a recognition round trip.
func (s *MetricsService) ObserveScan(duration time.Duration) {
	s.scanDuration.Observe(duration.Seconds())
}

// ObserveMealVerification counts one verification by source.
func (s *MetricsService) ObserveMealVerification(source string) {
	s.mealsVerified.WithLabelValues(source).Inc()
}
