package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sony/gobreaker/v2"

	"github.com/kirillkom/intellidocs/internal/core/domain"
)

// PipelineMetrics records document pipeline outcomes for both the API (sync
// ingestion) and the worker (async ingestion).
type PipelineMetrics struct {
	service  string
	registry *prometheus.Registry

	processTotal    *prometheus.CounterVec
	processDuration *prometheus.HistogramVec
	processInFlight prometheus.Gauge
	classifications *prometheus.CounterVec
	queueLag        *prometheus.HistogramVec
	breakerState    *prometheus.GaugeVec
}

// NewPipelineMetrics registers on registry, or on a fresh one when nil.
func NewPipelineMetrics(service string, registry *prometheus.Registry) *PipelineMetrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	processTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "intellidocs",
			Subsystem: "pipeline",
			Name:      "document_process_total",
			Help:      "Total processed documents by final status and error kind.",
		},
		[]string{"service", "status", "error_kind"},
	)
	processDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "intellidocs",
			Subsystem: "pipeline",
			Name:      "document_process_duration_seconds",
			Help:      "Document processing duration in seconds by status.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"service", "status"},
	)
	processInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "intellidocs",
			Subsystem: "pipeline",
			Name:      "document_process_in_flight",
			Help:      "Number of in-flight document processing runs.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	classifications := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "intellidocs",
			Subsystem: "classifier",
			Name:      "classifications_total",
			Help:      "Classifications by source (model or filename fallback).",
		},
		[]string{"service", "source"},
	)
	queueLag := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "intellidocs",
			Subsystem: "worker",
			Name:      "queue_lag_seconds",
			Help:      "Delay between document creation and processing start.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"service"},
	)
	breakerState := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "intellidocs",
			Subsystem: "resilience",
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state per operation (0 closed, 1 half-open, 2 open).",
		},
		[]string{"service", "operation"},
	)

	registry.MustRegister(processTotal, processDuration, processInFlight, classifications, queueLag, breakerState)

	return &PipelineMetrics{
		service:         service,
		registry:        registry,
		processTotal:    processTotal,
		processDuration: processDuration,
		processInFlight: processInFlight,
		classifications: classifications,
		queueLag:        queueLag,
		breakerState:    breakerState,
	}
}

func (m *PipelineMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *PipelineMetrics) StartDocument() {
	m.processInFlight.Inc()
}

func (m *PipelineMetrics) FinishDocument(status domain.DocumentStatus, kind domain.ErrorKind, seconds float64) {
	m.processInFlight.Dec()

	label := string(kind)
	if label == "" {
		label = "none"
	}
	m.processTotal.WithLabelValues(m.service, string(status), label).Inc()
	m.processDuration.WithLabelValues(m.service, string(status)).Observe(seconds)
}

func (m *PipelineMetrics) ObserveClassification(fallback bool) {
	source := "model"
	if fallback {
		source = "fallback"
	}
	m.classifications.WithLabelValues(m.service, source).Inc()
}

func (m *PipelineMetrics) ObserveQueueLag(lag time.Duration) {
	if lag < 0 {
		return
	}
	m.queueLag.WithLabelValues(m.service).Observe(lag.Seconds())
}

// ObserveBreakerState matches resilience.StateObserver.
func (m *PipelineMetrics) ObserveBreakerState(operation string, _ gobreaker.State, to gobreaker.State) {
	var value float64
	switch to {
	case gobreaker.StateHalfOpen:
		value = 1
	case gobreaker.StateOpen:
		value = 2
	}
	m.breakerState.WithLabelValues(m.service, operation).Set(value)
}
