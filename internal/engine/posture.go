package engine

import (
	"time"

	"github.com/gzhole/hostguard/internal/guard"
	"github.com/gzhole/hostguard/internal/logger"
	"github.com/gzhole/hostguard/internal/platform"
	"github.com/gzhole/hostguard/internal/rootcheck"
)

// Verdict summarizes a posture.
type Verdict string

const (
	VerdictTrusted      Verdict = "trusted"
	VerdictUntrusted    Verdict = "untrusted"
	VerdictUndetermined Verdict = "undetermined"
)

// Posture is a point-in-time evaluation of every check. Unlike IsRooted it
// runs all root probes so the report names each one that fired.
type Posture struct {
	ID        string                  `json:"id" yaml:"id"`
	Timestamp time.Time               `json:"timestamp" yaml:"timestamp"`
	Host      platform.HostFacts      `json:"host" yaml:"host"`
	Verdict   Verdict                 `json:"verdict" yaml:"verdict"`
	Rooted    bool                    `json:"rooted" yaml:"rooted"`
	RootError string                  `json:"root_error,omitempty" yaml:"root_error,omitempty"`
	Probes    []rootcheck.ProbeResult `json:"probes" yaml:"probes"`
	Debugged  bool                    `json:"debugged" yaml:"debugged"`
	Capture   guard.CaptureState      `json:"capture" yaml:"capture"`
}

// Snapshot evaluates every check once and returns the combined posture.
func (e *Engine) Snapshot() Posture {
	p := Posture{
		ID:        e.newID(),
		Timestamp: e.now().UTC(),
		Host:      e.host(),
	}

	var outcomes []logger.ProbeOutcome
	agg := rootcheck.NewAggregator(e.probes, func(r rootcheck.ProbeResult) {
		outcomes = append(outcomes, outcome(r))
		e.recordProbe(r)
	})
	report, err := agg.Explain()
	p.Rooted = report.Rooted
	p.Probes = report.Probes
	if err != nil {
		p.RootError = err.Error()
	}
	if e.metrics != nil {
		e.metrics.Check("rooted", p.Rooted, err)
	}

	p.Debugged = e.guard.IsDebugged()
	if e.metrics != nil {
		e.metrics.Check("debugged", p.Debugged, nil)
	}
	p.Capture = e.guard.CaptureState()

	switch {
	case p.Rooted || p.Debugged:
		p.Verdict = VerdictUntrusted
	case err != nil:
		p.Verdict = VerdictUndetermined
	default:
		p.Verdict = VerdictTrusted
	}

	e.log(p.ID, OpSnapshot, string(p.Verdict), outcomes, err)
	return p
}
