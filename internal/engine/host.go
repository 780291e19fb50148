package engine

import (
	"github.com/gzhole/hostguard/internal/config"
	"github.com/gzhole/hostguard/internal/logger"
	"github.com/gzhole/hostguard/internal/metrics"
	"github.com/gzhole/hostguard/internal/platform"
	"github.com/gzhole/hostguard/internal/rootcheck"
)

// HostOptions carries the pieces FromConfig cannot derive from the config
// file.
type HostOptions struct {
	Audit    logger.Sink
	Metrics  *metrics.Recorder
	Executor platform.Executor
	// Terminator defaults to platform.HostProcess.
	Terminator platform.Terminator
}

// FromConfig wires an engine to the real host: build properties, the local
// filesystem, subprocesses, /proc and the configured display flag file.
func FromConfig(cfg *config.Config, opts HostOptions) (*Engine, error) {
	probes, err := rootcheck.StandardProbes(
		platform.NewHostBuildInfo(cfg.Root.BuildPropPaths),
		platform.OSFilesystem{},
		platform.NewExecRunner(cfg.Root.ShellTimeout),
		cfg.RootOptions(),
	)
	if err != nil {
		return nil, err
	}

	terminator := opts.Terminator
	if terminator == nil {
		terminator = platform.HostProcess{}
	}

	return New(Deps{
		Probes:     probes,
		Debugger:   platform.NewHostDebugger(),
		Surfaces:   platform.NewDirSurfaceProvider(cfg.Display.FlagPath),
		Executor:   opts.Executor,
		Resolver:   &platform.ExecutableResolver{Path: cfg.Relaunch.EntryPoint, Args: cfg.Relaunch.Args},
		Scheduler:  &platform.DetachedScheduler{},
		Terminator: terminator,
		Delay:      cfg.Relaunch.Delay,
		Audit:      opts.Audit,
		Metrics:    opts.Metrics,
		Host:       platform.CollectHostFacts,
	}), nil
}
