package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "data_ngin"

// Dataset labels for RecordsProcessed.
const (
	DatasetRaw     = "raw"
	DatasetCleaned = "cleaned"
)

// Sink records pipeline metrics for one pipeline name. All methods are safe
// for concurrent use.
type Sink struct {
	pipeline string
	registry *prometheus.Registry

	runs         *prometheus.CounterVec
	stageSeconds *prometheus.HistogramVec
	stageErrors  *prometheus.CounterVec
	records      *prometheus.CounterVec
	completeness *prometheus.GaugeVec
	lastSuccess  *prometheus.GaugeVec
	reconnects   *prometheus.CounterVec
}

// NewSink creates a sink with its own registry, including Go runtime and
// process collectors.
func NewSink(pipeline string) *Sink {
	s := &Sink{
		pipeline: pipeline,
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Name: "pipeline_runs_total", Help: "Pipeline runs started"},
			[]string{"pipeline"},
		),
		stageSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "stage_execution_seconds",
				Help:      "Time spent in each pipeline stage",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 14),
			},
			[]string{"stage"},
		),
		stageErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Name: "stage_errors_total", Help: "Stage failures by error kind"},
			[]string{"stage", "pipeline", "kind"},
		),
		records: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Name: "records_processed_total", Help: "Rows processed per dataset"},
			[]string{"dataset", "pipeline"},
		),
		completeness: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{Namespace: namespace, Name: "data_completeness_ratio", Help: "Cleaned rows over expected rows per symbol"},
			[]string{"symbol", "pipeline"},
		),
		lastSuccess: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{Namespace: namespace, Name: "last_successful_run_timestamp", Help: "Unix time of the last completed run"},
			[]string{"pipeline"},
		),
		reconnects: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Name: "stream_reconnects_total", Help: "Streaming reconnect attempts"},
			[]string{"pipeline"},
		),
	}

	s.registry.MustRegister(
		s.runs,
		s.stageSeconds,
		s.stageErrors,
		s.records,
		s.completeness,
		s.lastSuccess,
		s.reconnects,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return s
}

// Pipeline returns the pipeline label value.
func (s *Sink) Pipeline() string {
	return s.pipeline
}

// Registry exposes the underlying registry for gathering.
func (s *Sink) Registry() *prometheus.Registry {
	return s.registry
}

// Handler serves the sink's metrics in Prometheus text format.
func (s *Sink) Handler() http.Handler {
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})
}

// RunStarted increments the run counter.
func (s *Sink) RunStarted() {
	s.runs.WithLabelValues(s.pipeline).Inc()
}

// ObserveStage records time spent in a stage.
func (s *Sink) ObserveStage(stage string, d time.Duration) {
	s.stageSeconds.WithLabelValues(stage).Observe(d.Seconds())
}

// StageError counts a stage failure of the given kind.
func (s *Sink) StageError(stage, kind string) {
	s.stageErrors.WithLabelValues(stage, s.pipeline, kind).Inc()
}

// RecordsProcessed adds n rows to a dataset counter.
func (s *Sink) RecordsProcessed(dataset string, n int) {
	s.records.WithLabelValues(dataset, s.pipeline).Add(float64(n))
}

// Completeness sets the completeness ratio for a symbol.
func (s *Sink) Completeness(symbol string, ratio float64) {
	s.completeness.WithLabelValues(symbol, s.pipeline).Set(ratio)
}

// RunSucceeded records the completion time of a run.
func (s *Sink) RunSucceeded(at time.Time) {
	s.lastSuccess.WithLabelValues(s.pipeline).Set(float64(at.Unix()))
}

// StreamReconnect counts one streaming reconnect attempt.
func (s *Sink) StreamReconnect() {
	s.reconnects.WithLabelValues(s.pipeline).Inc()
}
