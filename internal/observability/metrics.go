// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Pipeline metrics
	PipelineRunsTotal *prometheus.CounterVec
	PipelineDuration  *prometheus.HistogramVec
	ReportsGenerated  prometheus.Counter

	// Engine metrics
	ScenariosEvaluated   *prometheus.CounterVec
	WaterfallPeriods     prometheus.Counter
	UnrecoupedTranches   *prometheus.CounterVec
	StrategicScore       *prometheus.GaugeVec
	SimulationIterations prometheus.Histogram
	ConvergenceWarnings  *prometheus.CounterVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health metrics
	LastSuccessfulPipeline prometheus.Gauge
}

// NewMetrics creates a new Metrics instance registered on reg.
// A nil reg registers on the default Prometheus registry.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "capital_stack_lab"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Metrics{
		// Pipeline metrics
		PipelineRunsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "runs_total",
			Help:      "Total number of pipeline runs by status",
		}, []string{"status"}),
		PipelineDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "duration_seconds",
			Help:      "Pipeline phase duration in seconds",
			Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
		}, []string{"phase"}),
		ReportsGenerated: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "reports_generated_total",
			Help:      "Total number of reports generated",
		}),

		// Engine metrics
		ScenariosEvaluated: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scenario",
			Name:      "evaluated_total",
			Help:      "Total number of scenarios evaluated by template",
		}, []string{"template"}),
		WaterfallPeriods: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "waterfall",
			Name:      "periods_processed_total",
			Help:      "Total number of waterfall periods processed",
		}),
		UnrecoupedTranches: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "waterfall",
			Name:      "unrecouped_tranches_total",
			Help:      "Fixed tranches left unrecouped at termination by template",
		}, []string{"template"}),
		StrategicScore: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "scoring",
			Name:      "strategic_score",
			Help:      "Strategic score of the latest run by template",
		}, []string{"template"}),
		SimulationIterations: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "iterations",
			Help:      "Monte Carlo iterations used per recoupment estimate",
			Buckets:   []float64{100, 250, 500, 1000, 2500, 5000, 10000},
		}),
		ConvergenceWarnings: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "convergence_warnings_total",
			Help:      "Recoupment estimates that did not converge, by reason",
		}, []string{"reason"}),

		// Database metrics
		DBQueryDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		// Health metrics
		LastSuccessfulPipeline: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_pipeline_timestamp",
			Help:      "Unix timestamp of last successful pipeline run",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint of the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// HandlerFor returns an HTTP handler exposing g.
func HandlerFor(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// RecordPipelineRun records a finished pipeline run.
func (m *Metrics) RecordPipelineRun(status string, durationSeconds float64) {
	m.PipelineRunsTotal.WithLabelValues(status).Inc()
	m.PipelineDuration.WithLabelValues("total").Observe(durationSeconds)
}

// RecordPhase records the duration of one pipeline phase.
func (m *Metrics) RecordPhase(phase string, durationSeconds float64) {
	m.PipelineDuration.WithLabelValues(phase).Observe(durationSeconds)
}

// RecordScenario records one evaluated scenario.
func (m *Metrics) RecordScenario(template string, periods, unrecouped int, strategic float64) {
	m.ScenariosEvaluated.WithLabelValues(template).Inc()
	m.WaterfallPeriods.Add(float64(periods))
	m.UnrecoupedTranches.WithLabelValues(template).Add(float64(unrecouped))
	m.StrategicScore.WithLabelValues(template).Set(strategic)
}

// RecordSimulation records one recoupment estimate.
func (m *Metrics) RecordSimulation(iterations int, converged, cancelled bool) {
	m.SimulationIterations.Observe(float64(iterations))
	switch {
	case cancelled:
		m.ConvergenceWarnings.WithLabelValues("cancelled").Inc()
	case !converged:
		m.ConvergenceWarnings.WithLabelValues("budget_exhausted").Inc()
	}
}

// RecordDBQuery records database query metrics.
func (m *Metrics) RecordDBQuery(database, operation string, seconds float64, err error) {
	m.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		m.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}
