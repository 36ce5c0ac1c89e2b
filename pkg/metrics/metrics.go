package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus collectors for the ingest service.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	requestsTotal    *prometheus.CounterVec
	pipelinesTotal   *prometheus.CounterVec
	pipelineDuration prometheus.Histogram
	partUploadsTotal *prometheus.CounterVec
	uploadRetries    prometheus.Counter
	reconcileTotal   *prometheus.CounterVec
	activePipelines  prometheus.Gauge
}

// New creates and registers the collectors on a private registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ingest_http_requests_total",
			Help: "HTTP requests by method and status code",
		}, []string{"method", "code"}),
		pipelinesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ingest_pipelines_total",
			Help: "Finished ingest pipelines by result (complete / failed) and mode (direct / multipart)",
		}, []string{"result", "mode"}),
		pipelineDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ingest_pipeline_duration_seconds",
			Help:    "Wall time of an ingest pipeline",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 12),
		}),
		partUploadsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ingest_part_uploads_total",
			Help: "Part uploads by outcome",
		}, []string{"outcome"}),
		uploadRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ingest_upload_retries_total",
			Help: "Retry attempts issued after a retryable store failure",
		}),
		reconcileTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ingest_reconcile_total",
			Help: "Deletion reconciliations by outcome",
		}, []string{"outcome"}),
		activePipelines: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ingest_active_pipelines",
			Help: "Pipelines currently running",
		}),
	}

	registry.MustRegister(
		m.requestsTotal,
		m.pipelinesTotal,
		m.pipelineDuration,
		m.partUploadsTotal,
		m.uploadRetries,
		m.reconcileTotal,
		m.activePipelines,
	)
	return m
}

// PipelineStarted marks a pipeline as running
func (m *Metrics) PipelineStarted() {
	if m == nil {
		return
	}
	m.activePipelines.Inc()
}

// PipelineFinished records the outcome of one pipeline run.
func (m *Metrics) PipelineFinished(success, multipart bool, elapsed time.Duration) {
	if m == nil {
		return
	}
	result := "failed"
	if success {
		result = "complete"
	}
	mode := "direct"
	if multipart {
		mode = "multipart"
	}
	m.activePipelines.Dec()
	m.pipelinesTotal.WithLabelValues(result, mode).Inc()
	m.pipelineDuration.Observe(elapsed.Seconds())
}

// PartUploaded counts one finished part upload ("ok", "failed", "adopted")
func (m *Metrics) PartUploaded(outcome string) {
	if m == nil {
		return
	}
	m.partUploadsTotal.WithLabelValues(outcome).Inc()
}

// IncUploadRetries .
func (m *Metrics) IncUploadRetries() {
	if m == nil {
		return
	}
	m.uploadRetries.Inc()
}

// Reconciled counts a deletion reconciliation ("deleted" / "partial")
func (m *Metrics) Reconciled(outcome string) {
	if m == nil {
		return
	}
	m.reconcileTotal.WithLabelValues(outcome).Inc()
}

// Middleware counts every HTTP response.
func (m *Metrics) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()
		if m == nil {
			return err
		}
		code := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				code = fe.Code
			} else {
				code = fiber.StatusInternalServerError
			}
		}
		m.requestsTotal.WithLabelValues(c.Method(), strconv.Itoa(code)).Inc()
		return err
	}
}

// Handler returns an http.Handler that serves Prometheus metrics.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.HandlerFor(prometheus.NewRegistry(), promhttp.HandlerOpts{})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
