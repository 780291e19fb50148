package rootcheck

import (
	"time"

	"github.com/gzhole/hostguard/internal/platform"
)

// Options configures the standard probe set. Zero values select defaults.
type Options struct {
	BuildTagMarker string
	KnownPaths     []string
	ShellCommand   string
	ShellTimeout   time.Duration
}

// StandardProbes builds the three root heuristics in their canonical order:
// build tags, known paths, shell resolution. Cheapest first, so the
// short-circuit usually avoids spawning a subprocess.
func StandardProbes(build platform.BuildInfo, fs platform.Filesystem, runner platform.CommandRunner, opts Options) ([]Probe, error) {
	shellProbe, err := NewShellProbe(runner, opts.ShellCommand, opts.ShellTimeout)
	if err != nil {
		return nil, err
	}
	return []Probe{
		NewBuildTagProbe(build, opts.BuildTagMarker),
		NewKnownPathProbe(fs, opts.KnownPaths),
		shellProbe,
	}, nil
}
