// Package rootcheck decides whether the host looks rooted.
//
// Architecture:
//
//	Probe (interface)
//	  ├── BuildTagProbe  : build signature carries a test-signing marker
//	  ├── KnownPathProbe : a root-management binary exists at a known path
//	  └── ShellProbe     : a path-resolution command can find a root shell
//
//	Aggregator           : OR over probes, short-circuits on the first hit,
//	                       contains probe failures, fails loudly only when
//	                       no probe could run at all.
//
// Probes are cheap and independent; every evaluation re-reads device state.
// Nothing is cached between calls.
package rootcheck

import "time"

// Probe is a single, independent root heuristic.
type Probe interface {
	// Name returns a short identifier (e.g., "build_tags").
	Name() string

	// Detect reports whether the heuristic fired. On internal failure a
	// probe returns false together with the error that stopped it; the
	// boolean is always the fail-safe value.
	Detect() (bool, error)
}

// ProbeFunc adapts a function to Probe.
type ProbeFunc struct {
	ID string
	Fn func() (bool, error)
}

func (p ProbeFunc) Name() string { return p.ID }

func (p ProbeFunc) Detect() (bool, error) { return p.Fn() }

// ProbeResult is the outcome of one probe invocation.
type ProbeResult struct {
	Name     string        `json:"name" yaml:"name"`
	Detected bool          `json:"detected" yaml:"detected"`
	Err      error         `json:"-" yaml:"-"`
	Error    string        `json:"error,omitempty" yaml:"error,omitempty"`
	Duration time.Duration `json:"duration_ns" yaml:"duration_ns"`
	// Evidence is the path or output line that triggered the probe.
	Evidence string `json:"evidence,omitempty" yaml:"evidence,omitempty"`
}

// Report is the full, non-short-circuited explanation of a root verdict.
type Report struct {
	Rooted bool          `json:"rooted" yaml:"rooted"`
	Probes []ProbeResult `json:"probes" yaml:"probes"`
}

// Fired returns the names of probes that detected root.
func (r Report) Fired() []string {
	var names []string
	for _, p := range r.Probes {
		if p.Detected {
			names = append(names, p.Name)
		}
	}
	return names
}

// evidenceProbe is implemented by probes that can also say what triggered
// them (the matching path or output line).
type evidenceProbe interface {
	DetectEvidence() (bool, string, error)
}
