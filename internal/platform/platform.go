// Package platform defines the narrow capability interfaces hostguard uses to
// reach the operating system, plus host implementations of each.
//
// The integrity engine never touches the OS directly. Every primitive it
// needs (file existence, subprocess execution, debugger queries, the
// display surface flag, process termination, delayed relaunch) is consumed
// through one of the interfaces below so the engine can run against fakes
// in tests and against different hosts in production.
//
// Each interface has a func adapter (BuildInfoFunc, FilesystemFunc, ...)
// so a closure can stand in for a full implementation.
package platform

import (
	"context"
	"time"
)

// BuildInfo exposes the platform build signature string.
type BuildInfo interface {
	// BuildTags returns the build signature and whether one exists at all.
	BuildTags() (string, bool)
}

// BuildInfoFunc adapts a function to BuildInfo.
type BuildInfoFunc func() (string, bool)

func (f BuildInfoFunc) BuildTags() (string, bool) { return f() }

// Filesystem answers existence queries.
type Filesystem interface {
	// Exists reports whether path exists. A non-nil error means the path
	// could not be inspected; the boolean is then always false.
	Exists(path string) (bool, error)
}

// FilesystemFunc adapts a function to Filesystem.
type FilesystemFunc func(path string) (bool, error)

func (f FilesystemFunc) Exists(path string) (bool, error) { return f(path) }

// CommandRunner executes a subprocess and reads the first line of its
// stdout. ok is true once any line was read, even an empty one.
// Implementations must terminate and reap the child on every return path.
type CommandRunner interface {
	FirstLine(ctx context.Context, name string, args ...string) (line string, ok bool, err error)
}

// CommandRunnerFunc adapts a function to CommandRunner.
type CommandRunnerFunc func(ctx context.Context, name string, args ...string) (string, bool, error)

func (f CommandRunnerFunc) FirstLine(ctx context.Context, name string, args ...string) (string, bool, error) {
	return f(ctx, name, args...)
}

// DebuggerQuery reports debugger-related process facts.
type DebuggerQuery interface {
	// DebuggerAttached reports whether a live debugger is attached right now.
	DebuggerAttached() bool
	// BuildDebuggable reports whether the binary was built debuggable.
	BuildDebuggable() bool
}

// Surface is the active display surface whose capture-suppression flag
// hostguard toggles.
type Surface interface {
	SetSecure(enabled bool) error
	Secure() bool
}

// SurfaceProvider returns the current surface, or nil when none is active.
type SurfaceProvider interface {
	Current() Surface
}

// SurfaceProviderFunc adapts a function to SurfaceProvider.
type SurfaceProviderFunc func() Surface

func (f SurfaceProviderFunc) Current() Surface { return f() }

// Executor runs work on a designated execution context. Submit never waits
// for fn to complete.
type Executor interface {
	Submit(fn func())
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(fn func())

func (f ExecutorFunc) Submit(fn func()) { f(fn) }

// Terminator ends the current process. Neither method returns on a real host.
type Terminator interface {
	// Exit terminates with the given code.
	Exit(code int)
	// Kill terminates the process immediately without running exit hooks.
	Kill()
}

// Entry is a launchable application entry point.
type Entry struct {
	Path string
	Args []string
}

// EntryResolver locates the application's main entry point.
type EntryResolver interface {
	Resolve() (Entry, error)
}

// EntryResolverFunc adapts a function to EntryResolver.
type EntryResolverFunc func() (Entry, error)

func (f EntryResolverFunc) Resolve() (Entry, error) { return f() }

// Scheduler arranges for entry to be launched after delay, independently of
// the current process.
type Scheduler interface {
	Schedule(entry Entry, delay time.Duration) error
}

// SchedulerFunc adapts a function to Scheduler.
type SchedulerFunc func(entry Entry, delay time.Duration) error

func (f SchedulerFunc) Schedule(entry Entry, delay time.Duration) error { return f(entry, delay) }
