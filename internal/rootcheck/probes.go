package rootcheck

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"mvdan.cc/sh/v3/shell"

	"github.com/gzhole/hostguard/internal/platform"
)

const (
	// DefaultBuildTagMarker marks a build signed with test keys.
	DefaultBuildTagMarker = "test-keys"

	// DefaultShellCommand resolves the root shell binary.
	DefaultShellCommand = "/system/xbin/which su"
)

// DefaultKnownPaths are locations historically used by root-management
// binaries and packages, checked in order.
var DefaultKnownPaths = []string{
	"/system/app/Superuser.apk",
	"/sbin/su",
	"/system/bin/su",
	"/system/xbin/su",
	"/data/local/xbin/su",
	"/data/local/bin/su",
	"/system/sd/xbin/su",
	"/system/bin/failsafe/su",
	"/data/local/su",
}

// ---------------------------------------------------------------------------
// Build-tag probe
// ---------------------------------------------------------------------------

// BuildTagProbe fires when the build signature contains Marker.
type BuildTagProbe struct {
	Build  platform.BuildInfo
	Marker string
}

// NewBuildTagProbe returns a build-tag probe; an empty marker means
// DefaultBuildTagMarker.
func NewBuildTagProbe(build platform.BuildInfo, marker string) *BuildTagProbe {
	if marker == "" {
		marker = DefaultBuildTagMarker
	}
	return &BuildTagProbe{Build: build, Marker: marker}
}

func (p *BuildTagProbe) Name() string { return "build_tags" }

func (p *BuildTagProbe) Detect() (bool, error) {
	ok, _, err := p.DetectEvidence()
	return ok, err
}

// DetectEvidence returns the signature itself as evidence. An absent
// signature is a plain negative, not an error.
func (p *BuildTagProbe) DetectEvidence() (bool, string, error) {
	if p.Build == nil {
		return false, "", errors.New("build_tags: no build info source")
	}
	tags, ok := p.Build.BuildTags()
	if !ok {
		return false, "", nil
	}
	if strings.Contains(tags, p.Marker) {
		return true, tags, nil
	}
	return false, "", nil
}

// ---------------------------------------------------------------------------
// Known-path probe
// ---------------------------------------------------------------------------

// KnownPathProbe fires on the first path in Paths that exists.
type KnownPathProbe struct {
	FS    platform.Filesystem
	Paths []string
}

// NewKnownPathProbe returns a known-path probe over paths. A nil slice means
// DefaultKnownPaths; an empty non-nil slice checks nothing.
func NewKnownPathProbe(fs platform.Filesystem, paths []string) *KnownPathProbe {
	if paths == nil {
		paths = DefaultKnownPaths
	}
	return &KnownPathProbe{FS: fs, Paths: paths}
}

func (p *KnownPathProbe) Name() string { return "known_paths" }

func (p *KnownPathProbe) Detect() (bool, error) {
	ok, _, err := p.DetectEvidence()
	return ok, err
}

// DetectEvidence checks paths in order. Inaccessible paths count as not
// found; the probe only reports an error when every path was inaccessible,
// so the aggregator can tell "nothing there" from "could not look".
func (p *KnownPathProbe) DetectEvidence() (bool, string, error) {
	if p.FS == nil {
		return false, "", errors.New("known_paths: no filesystem")
	}
	var errs []error
	for _, path := range p.Paths {
		exists, err := p.FS.Exists(path)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", path, err))
			continue
		}
		if exists {
			return true, path, nil
		}
	}
	if len(p.Paths) > 0 && len(errs) == len(p.Paths) {
		return false, "", fmt.Errorf("known_paths: no path accessible: %w", errors.Join(errs...))
	}
	return false, "", nil
}

// ---------------------------------------------------------------------------
// Shell-resolution probe
// ---------------------------------------------------------------------------

// ShellProbe runs a path-resolution command for the root shell and fires
// when the command prints anything.
type ShellProbe struct {
	Runner  platform.CommandRunner
	Argv    []string
	Timeout time.Duration
}

// NewShellProbe parses command with POSIX shell word-splitting rules.
// Environment references in the command are expanded.
func NewShellProbe(runner platform.CommandRunner, command string, timeout time.Duration) (*ShellProbe, error) {
	if strings.TrimSpace(command) == "" {
		command = DefaultShellCommand
	}
	argv, err := shell.Fields(command, os.Getenv)
	if err != nil {
		return nil, fmt.Errorf("shell probe: parse %q: %w", command, err)
	}
	if len(argv) == 0 {
		return nil, fmt.Errorf("shell probe: empty command %q", command)
	}
	if timeout <= 0 {
		timeout = platform.DefaultCommandTimeout
	}
	return &ShellProbe{Runner: runner, Argv: argv, Timeout: timeout}, nil
}

func (p *ShellProbe) Name() string { return "shell_resolution" }

func (p *ShellProbe) Detect() (bool, error) {
	ok, _, err := p.DetectEvidence()
	return ok, err
}

// DetectEvidence fires as soon as the command writes a first line, even an
// empty one, and returns it as evidence. Any execution failure (missing
// binary, permission denied, timeout before output) is a negative.
func (p *ShellProbe) DetectEvidence() (bool, string, error) {
	if p.Runner == nil || len(p.Argv) == 0 {
		return false, "", errors.New("shell_resolution: not configured")
	}
	ctx, cancel := context.WithTimeout(context.Background(), p.Timeout)
	defer cancel()

	line, ok, err := p.Runner.FirstLine(ctx, p.Argv[0], p.Argv[1:]...)
	if err != nil {
		return false, "", fmt.Errorf("shell_resolution: %w", err)
	}
	return ok, line, nil
}
