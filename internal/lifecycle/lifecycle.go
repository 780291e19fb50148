// Package lifecycle performs the process-level actions a caller may take
// after deciding the host is untrusted: scheduled relaunch and hard exit.
// Nothing in hostguard invokes these automatically.
package lifecycle

import (
	"fmt"
	"sync"
	"time"

	"github.com/gzhole/hostguard/internal/platform"
)

// DefaultRelaunchDelay is how long after termination the relaunch fires.
const DefaultRelaunchDelay = 100 * time.Millisecond

const (
	exitRestart = 0
	exitHard    = 1
)

// State is the controller's position in the process lifecycle.
type State string

const (
	StateRunning           State = "running"
	StateRelaunchScheduled State = "relaunch_scheduled"
	StateTerminated        State = "terminated"
)

// RelaunchResolutionError means no launchable entry point could be found, so
// no relaunch was scheduled and the process was left running.
type RelaunchResolutionError struct {
	Err error
}

func (e *RelaunchResolutionError) Error() string {
	return fmt.Sprintf("relaunch: cannot resolve entry point: %v", e.Err)
}

func (e *RelaunchResolutionError) Unwrap() error { return e.Err }

// Transition is reported to the controller's hook on every state change.
type Transition func(from, to State)

// Controller owns the terminal process actions.
type Controller struct {
	resolver   platform.EntryResolver
	scheduler  platform.Scheduler
	terminator platform.Terminator
	delay      time.Duration
	onChange   Transition

	mu    sync.Mutex
	state State
}

// NewController builds a controller. delay <= 0 means DefaultRelaunchDelay.
func NewController(resolver platform.EntryResolver, scheduler platform.Scheduler, terminator platform.Terminator, delay time.Duration, onChange Transition) *Controller {
	if delay <= 0 {
		delay = DefaultRelaunchDelay
	}
	return &Controller{
		resolver:   resolver,
		scheduler:  scheduler,
		terminator: terminator,
		delay:      delay,
		onChange:   onChange,
		state:      StateRunning,
	}
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Delay returns the relaunch delay.
func (c *Controller) Delay() time.Duration { return c.delay }

// Restart schedules a relaunch of the main entry point and terminates the
// process. It returns only on failure: a RelaunchResolutionError when no
// entry point resolves, or the scheduler's error. In both cases the process
// is still running and nothing was scheduled.
func (c *Controller) Restart() error {
	if c.resolver == nil {
		return &RelaunchResolutionError{Err: platform.ErrNoEntryPoint}
	}
	entry, err := c.resolver.Resolve()
	if err != nil {
		return &RelaunchResolutionError{Err: err}
	}
	if entry.Path == "" {
		return &RelaunchResolutionError{Err: platform.ErrNoEntryPoint}
	}
	if c.scheduler == nil {
		return fmt.Errorf("relaunch: no scheduler configured")
	}
	if err := c.scheduler.Schedule(entry, c.delay); err != nil {
		return fmt.Errorf("relaunch: schedule %s: %w", entry.Path, err)
	}

	c.transition(StateRelaunchScheduled)
	c.transition(StateTerminated)
	c.terminator.Exit(exitRestart)
	return nil
}

// Exit terminates the process immediately, with no relaunch.
func (c *Controller) Exit() {
	c.transition(StateTerminated)
	c.terminator.Kill()
	// Kill does not return on a real host; a substituted terminator may.
	c.terminator.Exit(exitHard)
}

func (c *Controller) transition(to State) {
	c.mu.Lock()
	from := c.state
	c.state = to
	c.mu.Unlock()

	if c.onChange != nil && from != to {
		c.onChange(from, to)
	}
}
