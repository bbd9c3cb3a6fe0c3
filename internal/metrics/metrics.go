// Package metrics exposes Prometheus collectors for test runs.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cgast/promptreg/pkg/suite"
)

const namespace = "promptreg"

// Recorder counts runs and their outcomes. It satisfies runner.Recorder.
type Recorder struct {
	registry *prometheus.Registry

	runs         *prometheus.CounterVec
	runErrors    *prometheus.CounterVec
	runDuration  *prometheus.HistogramVec
	expectations *prometheus.CounterVec
}

// New creates a recorder with its own registry, including Go runtime and
// process collectors.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		runs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Test runs by provider and status.",
		}, []string{"provider", "status"}),
		runErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "run_errors_total",
			Help:      "Test runs that ended with a provider error.",
		}, []string{"provider"}),
		runDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Provider generation time per run.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"provider"}),
		expectations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "expectations_total",
			Help:      "Evaluated expectations by kind and outcome.",
		}, []string{"kind", "status"}),
	}
}

// ObserveRun records one finished run.
func (r *Recorder) ObserveRun(res suite.TestResult) {
	r.runs.WithLabelValues(res.Provider, res.Status()).Inc()
	r.runDuration.WithLabelValues(res.Provider).Observe(res.ExecutionTime)
	if res.Error != "" {
		r.runErrors.WithLabelValues(res.Provider).Inc()
	}
	for _, d := range res.EvaluationResults {
		r.expectations.WithLabelValues(string(d.Kind), d.Passed.String()).Inc()
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}
