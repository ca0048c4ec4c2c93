package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service collectors on their own registry.
type Metrics struct {
	registry *prometheus.Registry

	requestCount    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	predictions     *prometheus.CounterVec
	failures        *prometheus.CounterVec
	modelLoads      *prometheus.CounterVec
	modelLoadTime   prometheus.Histogram
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requestCount: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			}, []string{"path", "method", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			}, []string{"path"},
		),
		predictions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "predictions_total",
				Help: "Successful predictions by category and label",
			}, []string{"category", "label"},
		),
		failures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "analyze_failures_total",
				Help: "Failed analyze requests by error kind",
			}, []string{"kind"},
		),
		modelLoads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "model_loads_total",
				Help: "Model load attempts by result",
			}, []string{"result"},
		),
		modelLoadTime: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "model_load_duration_seconds",
				Help:    "Duration of model load attempts in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),
	}
	m.registry.MustRegister(
		m.requestCount, m.requestDuration, m.predictions, m.failures, m.modelLoads, m.modelLoadTime,
		collectors.NewGoCollector(),
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveRequest(path, method string, status int, elapsed time.Duration) {
	m.requestCount.WithLabelValues(path, method, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(path).Observe(elapsed.Seconds())
}

func (m *Metrics) ObservePrediction(category, label string) {
	m.predictions.WithLabelValues(category, label).Inc()
}

func (m *Metrics) ObserveFailure(kind string) {
	m.failures.WithLabelValues(kind).Inc()
}

// ObserveModelLoad matches model.LoadObserver.
func (m *Metrics) ObserveModelLoad(elapsed time.Duration, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	m.modelLoads.WithLabelValues(result).Inc()
	m.modelLoadTime.Observe(elapsed.Seconds())
}
