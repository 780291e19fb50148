package cli

import (
	"fmt"
	"os"

	"github.com/gzhole/hostguard/internal/config"
	"github.com/gzhole/hostguard/internal/engine"
	"github.com/gzhole/hostguard/internal/logger"
	"github.com/gzhole/hostguard/internal/metrics"
	"github.com/gzhole/hostguard/internal/platform"
)

// session is what every engine-backed command needs.
type session struct {
	cfg    *config.Config
	engine *engine.Engine
	audit  logger.Sink
	closer func()
}

func (s *session) Close() {
	if s.closer != nil {
		s.closer()
	}
}

// openSession loads config, opens the audit log and wires an engine to the
// host. An unusable audit log is reported and replaced by a no-op sink;
// checks still run.
func openSession(rec *metrics.Recorder, executor platform.Executor) (*session, error) {
	cfg, err := config.Load(configPath, logPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	s := &session{cfg: cfg, audit: logger.Nop{}}
	if cfg.LogPath != "" {
		al, err := logger.New(cfg.LogPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "hostguard: audit log disabled: %v\n", err)
		} else {
			s.audit = al
			s.closer = func() { _ = al.Close() }
		}
	}

	eng, err := engine.FromConfig(cfg, engine.HostOptions{
		Audit:    s.audit,
		Metrics:  rec,
		Executor: executor,
	})
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to build engine: %w", err)
	}
	s.engine = eng
	return s, nil
}
