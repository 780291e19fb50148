// Package metrics exposes posture results as Prometheus metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder tracks integrity evaluations. Each Recorder owns its registry so
// several can coexist (tests, embedded use).
type Recorder struct {
	registry *prometheus.Registry

	verdict       *prometheus.GaugeVec
	evaluations   *prometheus.CounterVec
	probeRuns     *prometheus.CounterVec
	probeDuration *prometheus.HistogramVec
	displayToggle *prometheus.CounterVec
}

// NewRecorder creates a recorder with all collectors registered.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		verdict: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "hostguard_check_positive",
				Help: "Last result of each integrity check (1 = condition detected, 0 = not detected, -1 = undetermined)",
			},
			[]string{"check"},
		),
		evaluations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hostguard_evaluations_total",
				Help: "Integrity check evaluations by check and outcome",
			},
			[]string{"check", "outcome"},
		),
		probeRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hostguard_root_probe_runs_total",
				Help: "Root probe invocations by probe and outcome (detected, clean, error)",
			},
			[]string{"probe", "outcome"},
		),
		probeDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "hostguard_root_probe_duration_seconds",
				Help:    "Root probe latency",
				Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
			},
			[]string{"probe"},
		),
		displayToggle: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hostguard_secure_display_toggles_total",
				Help: "Capture-suppression toggles by requested state and outcome (applied, noop, error)",
			},
			[]string{"enabled", "outcome"},
		),
	}

	r.registry.MustRegister(r.verdict, r.evaluations, r.probeRuns, r.probeDuration, r.displayToggle)
	return r
}

// Check records the outcome of a boolean check. err marks it undetermined.
func (r *Recorder) Check(check string, positive bool, err error) {
	switch {
	case err != nil:
		r.verdict.WithLabelValues(check).Set(-1)
		r.evaluations.WithLabelValues(check, "error").Inc()
	case positive:
		r.verdict.WithLabelValues(check).Set(1)
		r.evaluations.WithLabelValues(check, "positive").Inc()
	default:
		r.verdict.WithLabelValues(check).Set(0)
		r.evaluations.WithLabelValues(check, "negative").Inc()
	}
}

// Probe records one root probe invocation.
func (r *Recorder) Probe(name string, detected bool, err error, d time.Duration) {
	outcome := "clean"
	switch {
	case err != nil:
		outcome = "error"
	case detected:
		outcome = "detected"
	}
	r.probeRuns.WithLabelValues(name, outcome).Inc()
	r.probeDuration.WithLabelValues(name).Observe(d.Seconds())
}

// DisplayToggle records a capture-suppression toggle.
func (r *Recorder) DisplayToggle(enabled, applied bool, err error) {
	outcome := "noop"
	switch {
	case err != nil:
		outcome = "error"
	case applied:
		outcome = "applied"
	}
	state := "false"
	if enabled {
		state = "true"
	}
	r.displayToggle.WithLabelValues(state, outcome).Inc()
}

// Registry returns the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// Handler serves the recorder's metrics in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
