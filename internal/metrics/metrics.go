package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "taxdocs"

// PipelineMetrics tracks document runs and model calls. It satisfies
// llm.Observer so the gateway decorators can report into it.
type PipelineMetrics struct {
	registry *prometheus.Registry

	runsTotal     *prometheus.CounterVec
	runDuration   *prometheus.HistogramVec
	runsInFlight  prometheus.Gauge
	classified    *prometheus.CounterVec
	modelCalls    *prometheus.CounterVec
	modelDuration *prometheus.HistogramVec
	queueDepth    prometheus.Gauge
}

func New() *PipelineMetrics {
	registry := prometheus.NewRegistry()

	runsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "runs_total",
			Help:      "Document pipeline runs by outcome.",
		},
		[]string{"outcome"},
	)
	runDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "run_duration_seconds",
			Help:      "Document pipeline run duration in seconds by outcome.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"outcome"},
	)
	runsInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "runs_in_flight",
			Help:      "Number of documents currently being processed.",
		},
	)
	classified := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "classified_total",
			Help:      "Classified documents by form type and method.",
		},
		[]string{"doc_type", "method"},
	)
	modelCalls := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "model",
			Name:      "calls_total",
			Help:      "Model gateway calls by backend and outcome.",
		},
		[]string{"backend", "outcome"},
	)
	modelDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "model",
			Name:      "call_duration_seconds",
			Help:      "Model gateway call latency in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"backend"},
	)
	queueDepth := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "depth",
			Help:      "Jobs waiting in the ingest queue.",
		},
	)

	registry.MustRegister(runsTotal, runDuration, runsInFlight, classified, modelCalls, modelDuration, queueDepth)

	return &PipelineMetrics{
		registry:      registry,
		runsTotal:     runsTotal,
		runDuration:   runDuration,
		runsInFlight:  runsInFlight,
		classified:    classified,
		modelCalls:    modelCalls,
		modelDuration: modelDuration,
		queueDepth:    queueDepth,
	}
}

func (m *PipelineMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *PipelineMetrics) StartRun() {
	m.runsInFlight.Inc()
}

// FinishRun records a run. outcome is processed, needs_review, deduplicated or failed.
func (m *PipelineMetrics) FinishRun(outcome string, duration time.Duration) {
	m.runsInFlight.Dec()
	m.runsTotal.WithLabelValues(outcome).Inc()
	m.runDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

func (m *PipelineMetrics) ObserveClassification(docType, method string) {
	m.classified.WithLabelValues(docType, method).Inc()
}

func (m *PipelineMetrics) ObserveModelCall(backend, outcome string, elapsed time.Duration) {
	m.modelCalls.WithLabelValues(backend, outcome).Inc()
	m.modelDuration.WithLabelValues(backend).Observe(elapsed.Seconds())
}

func (m *PipelineMetrics) SetQueueDepth(n int) {
	m.queueDepth.Set(float64(n))
}
