package platform

import (
	"bufio"
	"io"
	"os"
	"runtime/debug"
	"strings"

	"github.com/shirou/gopsutil/v3/process"
)

// Debuggable marks a debuggable build at link time:
//
//	-ldflags "-X github.com/gzhole/hostguard/internal/platform.Debuggable=true"
var Debuggable string

// knownDebuggers lists parent process names that indicate the process was
// launched under a debugger or tracer.
var knownDebuggers = []string{
	"gdb",
	"lldb",
	"dlv",
	"delve",
	"strace",
	"ltrace",
	"frida",
	"frida-server",
	"r2",
	"radare2",
	"edb",
	"ida",
	"ida64",
}

// HostDebugger answers debugger queries for the running process.
type HostDebugger struct {
	// StatusPath is the proc status file holding TracerPid.
	StatusPath string
	// ParentName returns the parent process name. Defaults to a gopsutil lookup.
	ParentName func() (string, error)
	// ReadBuildInfo defaults to runtime/debug.ReadBuildInfo.
	ReadBuildInfo func() (*debug.BuildInfo, bool)
}

// NewHostDebugger returns a HostDebugger bound to the current process.
func NewHostDebugger() *HostDebugger {
	return &HostDebugger{
		StatusPath:    "/proc/self/status",
		ParentName:    parentProcessName,
		ReadBuildInfo: debug.ReadBuildInfo,
	}
}

// DebuggerAttached reports a non-zero TracerPid or a known debugger as the
// parent process. Lookup failures count as not attached.
func (d *HostDebugger) DebuggerAttached() bool {
	if f, err := os.Open(d.StatusPath); err == nil {
		traced := tracerAttached(f)
		f.Close()
		if traced {
			return true
		}
	}

	if d.ParentName == nil {
		return false
	}
	name, err := d.ParentName()
	if err != nil {
		return false
	}
	return IsKnownDebugger(name)
}

// BuildDebuggable reports the link-time flag or optimizations disabled via
// gcflags (-N / -l), which is how debugger-friendly Go builds are produced.
func (d *HostDebugger) BuildDebuggable() bool {
	if Debuggable == "true" || Debuggable == "1" {
		return true
	}
	if d.ReadBuildInfo == nil {
		return false
	}
	info, ok := d.ReadBuildInfo()
	if !ok || info == nil {
		return false
	}
	for _, s := range info.Settings {
		if s.Key != "-gcflags" {
			continue
		}
		for _, f := range strings.Fields(s.Value) {
			f = f[strings.LastIndex(f, "=")+1:]
			if f == "-N" || f == "-l" {
				return true
			}
		}
	}
	return false
}

// IsKnownDebugger reports whether a process name belongs to a debugger.
func IsKnownDebugger(name string) bool {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, d := range knownDebuggers {
		if name == d {
			return true
		}
	}
	return false
}

// tracerAttached scans a proc status stream for a non-zero TracerPid.
func tracerAttached(r io.Reader) bool {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "TracerPid:") {
			continue
		}
		fields := strings.Fields(line)
		return len(fields) >= 2 && fields[1] != "0"
	}
	return false
}

func parentProcessName() (string, error) {
	p, err := process.NewProcess(int32(os.Getppid()))
	if err != nil {
		return "", err
	}
	return p.Name()
}
