package rootcheck

import (
	"errors"
	"fmt"
	"time"
)

// IntegrityCheckError reports that no root probe could be evaluated at all.
// Callers must treat it as "unable to determine", never as "trusted".
type IntegrityCheckError struct {
	// Attempted is the number of probes that were invoked.
	Attempted int
	Err       error
}

func (e *IntegrityCheckError) Error() string {
	if e.Attempted == 0 {
		return "integrity check: no root probes configured"
	}
	return fmt.Sprintf("integrity check: all %d root probes failed: %v", e.Attempted, e.Err)
}

func (e *IntegrityCheckError) Unwrap() error { return e.Err }

// Observer receives every probe result as it is produced.
type Observer func(ProbeResult)

// Aggregator combines probes with short-circuit OR semantics.
type Aggregator struct {
	probes   []Probe
	observer Observer
}

// NewAggregator creates an aggregator running probes in the given order.
func NewAggregator(probes []Probe, observer Observer) *Aggregator {
	return &Aggregator{probes: probes, observer: observer}
}

// Probes returns the configured probes (for inspection/testing).
func (a *Aggregator) Probes() []Probe {
	return a.probes
}

// Evaluate returns true as soon as any probe fires; the remaining probes are
// not invoked. Probe errors and panics are contained and count as negatives.
// Only when every probe failed does Evaluate return an IntegrityCheckError.
func (a *Aggregator) Evaluate() (bool, error) {
	if len(a.probes) == 0 {
		return false, &IntegrityCheckError{}
	}

	var errs []error
	for _, p := range a.probes {
		res := a.run(p, false)
		if res.Detected {
			return true, nil
		}
		if res.Err != nil {
			errs = append(errs, res.Err)
		}
	}

	if len(errs) == len(a.probes) {
		return false, &IntegrityCheckError{Attempted: len(a.probes), Err: errors.Join(errs...)}
	}
	return false, nil
}

// Explain runs every probe without short-circuiting and returns the
// per-probe results. Report.Rooted follows the same OR law as Evaluate; the
// error mirrors Evaluate's total-failure condition.
func (a *Aggregator) Explain() (Report, error) {
	report := Report{Probes: make([]ProbeResult, 0, len(a.probes))}
	if len(a.probes) == 0 {
		return report, &IntegrityCheckError{}
	}

	var errs []error
	for _, p := range a.probes {
		res := a.run(p, true)
		report.Probes = append(report.Probes, res)
		if res.Detected {
			report.Rooted = true
		}
		if res.Err != nil {
			errs = append(errs, res.Err)
		}
	}

	if !report.Rooted && len(errs) == len(a.probes) {
		return report, &IntegrityCheckError{Attempted: len(a.probes), Err: errors.Join(errs...)}
	}
	return report, nil
}

// run invokes a single probe behind a recover boundary.
func (a *Aggregator) run(p Probe, withEvidence bool) (res ProbeResult) {
	res.Name = p.Name()
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			res.Detected = false
			res.Evidence = ""
			res.Err = fmt.Errorf("%s: panic: %v", res.Name, r)
		}
		res.Duration = time.Since(start)
		if res.Err != nil {
			res.Error = res.Err.Error()
		}
		if a.observer != nil {
			a.observer(res)
		}
	}()

	if ep, ok := p.(evidenceProbe); ok && withEvidence {
		res.Detected, res.Evidence, res.Err = ep.DetectEvidence()
	} else {
		res.Detected, res.Err = p.Detect()
	}
	if res.Err != nil {
		// A failing probe is never trusted to have fired.
		res.Detected = false
		res.Evidence = ""
	}
	return res
}
