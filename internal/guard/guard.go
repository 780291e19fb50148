// Package guard reports debugger attachment and toggles capture suppression
// on the active display surface.
package guard

import (
	"sync"

	"github.com/gzhole/hostguard/internal/platform"
)

// CaptureState is the capture-suppression mode of the active surface.
type CaptureState string

const (
	CaptureSuppressed   CaptureState = "suppressed"
	CaptureUnsuppressed CaptureState = "unsuppressed"
	CaptureNoSurface    CaptureState = "no-surface"
)

// ApplyFunc is notified after each capture toggle has run on the executor.
// applied is false when the toggle was a no-op.
type ApplyFunc func(enabled, applied bool, err error)

// Guard is the debug/capture guard.
type Guard struct {
	debugger platform.DebuggerQuery
	surfaces platform.SurfaceProvider
	executor platform.Executor
	onApply  ApplyFunc

	// mu serializes surface writes so a non-atomic platform primitive
	// cannot interleave two toggles.
	mu sync.Mutex
}

// New creates a guard. A nil executor runs toggles inline.
func New(debugger platform.DebuggerQuery, surfaces platform.SurfaceProvider, executor platform.Executor, onApply ApplyFunc) *Guard {
	if executor == nil {
		executor = platform.ExecutorFunc(func(fn func()) { fn() })
	}
	return &Guard{
		debugger: debugger,
		surfaces: surfaces,
		executor: executor,
		onApply:  onApply,
	}
}

// IsDebugged reports a live debugger attachment or a debuggable build. A
// live attachment answers immediately; the build flag is not consulted.
func (g *Guard) IsDebugged() bool {
	if g.debugger == nil {
		return false
	}
	if g.debugger.DebuggerAttached() {
		return true
	}
	return g.debugger.BuildDebuggable()
}

// SetSecureDisplay submits the toggle to the designated executor and
// returns without waiting. With no active surface the toggle is a no-op, as
// is requesting the state the surface already has.
func (g *Guard) SetSecureDisplay(enabled bool) {
	g.executor.Submit(func() {
		applied, err := g.apply(enabled)
		if g.onApply != nil {
			g.onApply(enabled, applied, err)
		}
	})
}

func (g *Guard) apply(enabled bool) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	surface := g.currentSurface()
	if surface == nil {
		return false, nil
	}
	if surface.Secure() == enabled {
		return false, nil
	}
	if err := surface.SetSecure(enabled); err != nil {
		return false, err
	}
	return true, nil
}

// CaptureState reports the mode of the current surface.
func (g *Guard) CaptureState() CaptureState {
	g.mu.Lock()
	defer g.mu.Unlock()

	surface := g.currentSurface()
	switch {
	case surface == nil:
		return CaptureNoSurface
	case surface.Secure():
		return CaptureSuppressed
	default:
		return CaptureUnsuppressed
	}
}

func (g *Guard) currentSurface() platform.Surface {
	if g.surfaces == nil {
		return nil
	}
	return g.surfaces.Current()
}
