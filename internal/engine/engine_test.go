package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gzhole/hostguard/internal/guard"
	"github.com/gzhole/hostguard/internal/lifecycle"
	"github.com/gzhole/hostguard/internal/logger"
	"github.com/gzhole/hostguard/internal/metrics"
	"github.com/gzhole/hostguard/internal/platform"
	"github.com/gzhole/hostguard/internal/rootcheck"
)

type memSink struct {
	mu     sync.Mutex
	events []logger.CheckEvent
}

func (s *memSink) Log(e logger.CheckEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return nil
}

func (s *memSink) last() logger.CheckEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.events[len(s.events)-1]
}

type fakeDebugger struct{ attached, debuggable bool }

func (d fakeDebugger) DebuggerAttached() bool { return d.attached }
func (d fakeDebugger) BuildDebuggable() bool  { return d.debuggable }

type fakeSurface struct{ secure bool }

func (s *fakeSurface) SetSecure(enabled bool) error {
	s.secure = enabled
	return nil
}

func (s *fakeSurface) Secure() bool { return s.secure }

type fakeTerminator struct {
	exits []int
	kills int
}

func (t *fakeTerminator) Exit(code int) { t.exits = append(t.exits, code) }
func (t *fakeTerminator) Kill()         { t.kills++ }

func probe(name string, detected bool, err error) rootcheck.Probe {
	return rootcheck.ProbeFunc{ID: name, Fn: func() (bool, error) { return detected, err }}
}

func newTestEngine(t *testing.T, deps Deps) (*Engine, *memSink) {
	t.Helper()
	sink := &memSink{}
	deps.Audit = sink
	if deps.Host == nil {
		deps.Host = func() platform.HostFacts { return platform.HostFacts{Hostname: "testhost", PID: 42} }
	}
	e := New(deps)
	e.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	n := 0
	e.newID = func() string {
		n++
		return fmt.Sprintf("eval-%d", n)
	}
	return e, sink
}

func TestEngine_IsRooted(t *testing.T) {
	rec := metrics.NewRecorder()
	e, sink := newTestEngine(t, Deps{
		Probes:  []rootcheck.Probe{probe("a", false, nil), probe("b", true, nil), probe("c", true, nil)},
		Metrics: rec,
	})

	rooted, err := e.IsRooted()
	require.NoError(t, err)
	assert.True(t, rooted)

	ev := sink.last()
	assert.Equal(t, OpIsRooted, ev.Operation)
	assert.Equal(t, "true", ev.Result)
	assert.Equal(t, "testhost", ev.Hostname)
	assert.Equal(t, 42, ev.PID)
	assert.Equal(t, "2026-01-02T03:04:05Z", ev.Timestamp)
	// Short-circuit: "c" never ran.
	require.Len(t, ev.Probes, 2)
	assert.Equal(t, "b", ev.Probes[1].Name)
}

func TestEngine_IsRootedAllProbesFail(t *testing.T) {
	e, sink := newTestEngine(t, Deps{
		Probes: []rootcheck.Probe{probe("a", false, errors.New("boom")), probe("b", true, errors.New("denied"))},
	})

	rooted, err := e.IsRooted()
	assert.False(t, rooted)
	var ice *rootcheck.IntegrityCheckError
	require.ErrorAs(t, err, &ice)
	assert.Equal(t, 2, ice.Attempted)

	ev := sink.last()
	assert.Equal(t, "error", ev.Result)
	assert.NotEmpty(t, ev.Error)
}

func TestEngine_IsRootedReevaluates(t *testing.T) {
	calls := 0
	e, _ := newTestEngine(t, Deps{
		Probes: []rootcheck.Probe{rootcheck.ProbeFunc{ID: "flip", Fn: func() (bool, error) {
			calls++
			return calls > 1, nil
		}}},
	})

	first, _ := e.IsRooted()
	second, _ := e.IsRooted()
	assert.False(t, first)
	assert.True(t, second)
}

func TestEngine_IsDebugged(t *testing.T) {
	tests := []struct {
		name     string
		debugger fakeDebugger
		want     bool
	}{
		{"clean", fakeDebugger{}, false},
		{"attached", fakeDebugger{attached: true}, true},
		{"debuggable build", fakeDebugger{debuggable: true}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, sink := newTestEngine(t, Deps{Debugger: tt.debugger})
			assert.Equal(t, tt.want, e.IsDebugged())
			assert.Equal(t, OpIsDebugged, sink.last().Operation)
		})
	}
}

func TestEngine_SetSecureDisplay(t *testing.T) {
	surface := &fakeSurface{}
	rec := metrics.NewRecorder()
	e, sink := newTestEngine(t, Deps{
		Surfaces: platform.SurfaceProviderFunc(func() platform.Surface { return surface }),
		Metrics:  rec,
	})

	e.SetSecureDisplay(true)
	assert.True(t, surface.secure)
	assert.Equal(t, guard.CaptureSuppressed, e.CaptureState())
	assert.Equal(t, "true:applied", sink.last().Result)

	e.SetSecureDisplay(true)
	assert.Equal(t, "true:noop", sink.last().Result)

	e.SetSecureDisplay(false)
	assert.False(t, surface.secure)
	assert.Equal(t, guard.CaptureUnsuppressed, e.CaptureState())
}

type slowSurface struct {
	delay  time.Duration
	mu     sync.Mutex
	secure bool
}

func (s *slowSurface) SetSecure(enabled bool) error {
	time.Sleep(s.delay)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.secure = enabled
	return nil
}

func (s *slowSurface) Secure() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.secure
}

func TestEngine_SetSecureDisplayDoesNotBlock(t *testing.T) {
	surface := &slowSurface{delay: 300 * time.Millisecond}
	loop := platform.NewLoop(context.Background(), 4)
	e, _ := newTestEngine(t, Deps{
		Surfaces: platform.SurfaceProviderFunc(func() platform.Surface { return surface }),
		Executor: loop,
	})

	start := time.Now()
	e.SetSecureDisplay(true)
	assert.Less(t, time.Since(start), 150*time.Millisecond, "toggle must return before the surface write finishes")

	loop.Close()
	assert.True(t, surface.Secure())
	assert.Equal(t, guard.CaptureSuppressed, e.CaptureState())
}

func TestEngine_SetSecureDisplayNoSurface(t *testing.T) {
	e, sink := newTestEngine(t, Deps{})
	e.SetSecureDisplay(true)
	assert.Equal(t, guard.CaptureNoSurface, e.CaptureState())
	assert.Equal(t, "true:noop", sink.last().Result)
}

func TestEngine_RestartProcess(t *testing.T) {
	term := &fakeTerminator{}
	var scheduled platform.Entry
	var delay time.Duration
	e, sink := newTestEngine(t, Deps{
		Resolver: platform.EntryResolverFunc(func() (platform.Entry, error) {
			return platform.Entry{Path: "/opt/app/bin/app"}, nil
		}),
		Scheduler: platform.SchedulerFunc(func(entry platform.Entry, d time.Duration) error {
			scheduled, delay = entry, d
			return nil
		}),
		Terminator: term,
	})

	require.NoError(t, e.RestartProcess())
	assert.Equal(t, "/opt/app/bin/app", scheduled.Path)
	assert.Equal(t, lifecycle.DefaultRelaunchDelay, delay)
	assert.Equal(t, []int{0}, term.exits)
	assert.Equal(t, lifecycle.StateTerminated, e.LifecycleState())

	ev := sink.last()
	assert.Equal(t, OpRestartProcess, ev.Operation)
	assert.Equal(t, string(lifecycle.StateTerminated), ev.Result)
}

func TestEngine_RestartProcessUnresolvable(t *testing.T) {
	term := &fakeTerminator{}
	e, sink := newTestEngine(t, Deps{
		Resolver: platform.EntryResolverFunc(func() (platform.Entry, error) {
			return platform.Entry{}, platform.ErrNoEntryPoint
		}),
		Scheduler: platform.SchedulerFunc(func(platform.Entry, time.Duration) error {
			t.Fatal("scheduler must not run")
			return nil
		}),
		Terminator: term,
	})

	err := e.RestartProcess()
	var rre *lifecycle.RelaunchResolutionError
	require.ErrorAs(t, err, &rre)
	assert.ErrorIs(t, err, platform.ErrNoEntryPoint)
	assert.Empty(t, term.exits)
	assert.Equal(t, lifecycle.StateRunning, e.LifecycleState())
	assert.Equal(t, "error", sink.last().Result)
}

func TestEngine_ExitProcess(t *testing.T) {
	term := &fakeTerminator{}
	e, sink := newTestEngine(t, Deps{Terminator: term})

	e.ExitProcess()
	assert.Equal(t, 1, term.kills)
	assert.Equal(t, []int{1}, term.exits)
	assert.Equal(t, OpExitProcess, sink.last().Operation)
}

func TestEngine_Snapshot(t *testing.T) {
	rec := metrics.NewRecorder()
	e, sink := newTestEngine(t, Deps{
		Probes:   []rootcheck.Probe{probe("a", true, nil), probe("b", false, errors.New("denied")), probe("c", true, nil)},
		Debugger: fakeDebugger{},
		Metrics:  rec,
	})

	p := e.Snapshot()
	assert.Equal(t, VerdictUntrusted, p.Verdict)
	assert.True(t, p.Rooted)
	assert.Empty(t, p.RootError)
	require.Len(t, p.Probes, 3)
	assert.Equal(t, "denied", p.Probes[1].Error)
	assert.Equal(t, guard.CaptureNoSurface, p.Capture)
	assert.Equal(t, "testhost", p.Host.Hostname)

	ev := sink.last()
	assert.Equal(t, OpSnapshot, ev.Operation)
	assert.Equal(t, p.ID, ev.EvaluationID)
	assert.Len(t, ev.Probes, 3)
}

func TestEngine_SnapshotVerdicts(t *testing.T) {
	tests := []struct {
		name     string
		probes   []rootcheck.Probe
		debugger fakeDebugger
		want     Verdict
	}{
		{"trusted", []rootcheck.Probe{probe("a", false, nil)}, fakeDebugger{}, VerdictTrusted},
		{"debugged", []rootcheck.Probe{probe("a", false, nil)}, fakeDebugger{attached: true}, VerdictUntrusted},
		{"undetermined", []rootcheck.Probe{probe("a", false, errors.New("x"))}, fakeDebugger{}, VerdictUndetermined},
		{"no probes", nil, fakeDebugger{}, VerdictUndetermined},
		{"debugged beats undetermined", nil, fakeDebugger{debuggable: true}, VerdictUntrusted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, _ := newTestEngine(t, Deps{Probes: tt.probes, Debugger: tt.debugger})
			assert.Equal(t, tt.want, e.Snapshot().Verdict)
		})
	}
}

func TestEngine_MetricsWired(t *testing.T) {
	rec := metrics.NewRecorder()
	e, _ := newTestEngine(t, Deps{
		Probes:  []rootcheck.Probe{probe("a", false, nil)},
		Metrics: rec,
	})
	_, err := e.IsRooted()
	require.NoError(t, err)

	n, err := testutil.GatherAndCount(rec.Registry(), "hostguard_root_probe_runs_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
