// Package engine exposes hostguard's integrity operations to callers:
// is_rooted, is_debugged, set_secure_display, restart_process and
// exit_process, plus a full posture snapshot.
//
// The engine reports; it never enforces. Lifecycle actions run only when a
// caller invokes them, and no result is cached between calls.
package engine

import (
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/gzhole/hostguard/internal/guard"
	"github.com/gzhole/hostguard/internal/lifecycle"
	"github.com/gzhole/hostguard/internal/logger"
	"github.com/gzhole/hostguard/internal/metrics"
	"github.com/gzhole/hostguard/internal/platform"
	"github.com/gzhole/hostguard/internal/rootcheck"
)

// Operation names, as they appear in audit events.
const (
	OpIsRooted         = "is_rooted"
	OpIsDebugged       = "is_debugged"
	OpSetSecureDisplay = "set_secure_display"
	OpRestartProcess   = "restart_process"
	OpExitProcess      = "exit_process"
	OpSnapshot         = "snapshot"
)

// Deps are the collaborators an Engine is assembled from. Audit, Metrics
// and Host are optional.
type Deps struct {
	Probes     []rootcheck.Probe
	Debugger   platform.DebuggerQuery
	Surfaces   platform.SurfaceProvider
	Executor   platform.Executor
	Resolver   platform.EntryResolver
	Scheduler  platform.Scheduler
	Terminator platform.Terminator
	Delay      time.Duration

	Audit   logger.Sink
	Metrics *metrics.Recorder
	Host    func() platform.HostFacts
}

// Engine is the integrity-check engine.
type Engine struct {
	probes  []rootcheck.Probe
	guard   *guard.Guard
	life    *lifecycle.Controller
	audit   logger.Sink
	metrics *metrics.Recorder
	host    func() platform.HostFacts

	now   func() time.Time
	newID func() string
}

// New assembles an engine from deps.
func New(deps Deps) *Engine {
	e := &Engine{
		probes:  deps.Probes,
		audit:   deps.Audit,
		metrics: deps.Metrics,
		host:    deps.Host,
		now:     time.Now,
		newID:   func() string { return uuid.New().String() },
	}
	if e.audit == nil {
		e.audit = logger.Nop{}
	}
	if e.host == nil {
		e.host = func() platform.HostFacts { return platform.HostFacts{} }
	}
	e.guard = guard.New(deps.Debugger, deps.Surfaces, deps.Executor, e.onDisplayApplied)
	e.life = lifecycle.NewController(deps.Resolver, deps.Scheduler, deps.Terminator, deps.Delay, e.onLifecycle)
	return e
}

// IsRooted re-evaluates the root heuristics. It returns an
// IntegrityCheckError only when no probe could run at all.
func (e *Engine) IsRooted() (bool, error) {
	id := e.newID()
	var outcomes []logger.ProbeOutcome
	agg := rootcheck.NewAggregator(e.probes, func(r rootcheck.ProbeResult) {
		outcomes = append(outcomes, outcome(r))
		e.recordProbe(r)
	})

	rooted, err := agg.Evaluate()
	if e.metrics != nil {
		e.metrics.Check("rooted", rooted, err)
	}
	e.log(id, OpIsRooted, boolResult(rooted, err), outcomes, err)
	return rooted, err
}

// IsDebugged reports a live debugger or a debuggable build.
func (e *Engine) IsDebugged() bool {
	debugged := e.guard.IsDebugged()
	if e.metrics != nil {
		e.metrics.Check("debugged", debugged, nil)
	}
	e.log(e.newID(), OpIsDebugged, strconv.FormatBool(debugged), nil, nil)
	return debugged
}

// SetSecureDisplay asks the designated executor to toggle capture
// suppression and returns immediately.
func (e *Engine) SetSecureDisplay(enabled bool) {
	e.guard.SetSecureDisplay(enabled)
}

// CaptureState reports the current capture-suppression mode.
func (e *Engine) CaptureState() guard.CaptureState {
	return e.guard.CaptureState()
}

// RestartProcess schedules a relaunch and terminates. It returns only when
// the relaunch could not be arranged; a missing entry point yields a
// lifecycle.RelaunchResolutionError.
func (e *Engine) RestartProcess() error {
	err := e.life.Restart()
	if err != nil {
		e.log(e.newID(), OpRestartProcess, "error", nil, err)
	}
	return err
}

// ExitProcess terminates immediately.
func (e *Engine) ExitProcess() {
	e.life.Exit()
}

// LifecycleState reports where the process is in its lifecycle.
func (e *Engine) LifecycleState() lifecycle.State {
	return e.life.State()
}

func (e *Engine) onDisplayApplied(enabled, applied bool, err error) {
	if e.metrics != nil {
		e.metrics.DisplayToggle(enabled, applied, err)
	}
	result := "noop"
	if applied {
		result = "applied"
	}
	if err != nil {
		result = "error"
	}
	e.log(e.newID(), OpSetSecureDisplay, strconv.FormatBool(enabled)+":"+result, nil, err)
}

func (e *Engine) onLifecycle(from, to lifecycle.State) {
	op := OpRestartProcess
	if from == lifecycle.StateRunning && to == lifecycle.StateTerminated {
		op = OpExitProcess
	}
	e.log(e.newID(), op, string(to), nil, nil)
}

func (e *Engine) recordProbe(r rootcheck.ProbeResult) {
	if e.metrics != nil {
		e.metrics.Probe(r.Name, r.Detected, r.Err, r.Duration)
	}
}

func (e *Engine) log(id, op, result string, probes []logger.ProbeOutcome, err error) {
	host := e.host()
	event := logger.CheckEvent{
		Timestamp:    e.now().UTC().Format(time.RFC3339Nano),
		EvaluationID: id,
		Operation:    op,
		Result:       result,
		Probes:       probes,
		Hostname:     host.Hostname,
		PID:          host.PID,
	}
	if err != nil {
		event.Error = err.Error()
	}
	// Audit failures never change a check result.
	_ = e.audit.Log(event)
}

func outcome(r rootcheck.ProbeResult) logger.ProbeOutcome {
	return logger.ProbeOutcome{
		Name:     r.Name,
		Detected: r.Detected,
		Evidence: r.Evidence,
		Error:    r.Error,
	}
}

func boolResult(v bool, err error) string {
	if err != nil {
		return "error"
	}
	return strconv.FormatBool(v)
}
