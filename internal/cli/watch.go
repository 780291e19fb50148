package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/gzhole/hostguard/internal/engine"
	"github.com/gzhole/hostguard/internal/rootcheck"
	"github.com/gzhole/hostguard/internal/watch"
)

var watchAll bool

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Re-evaluate continuously and report posture changes",
	Long: `Evaluate the posture on start, every watch.interval and whenever a known
su binary path appears or disappears. Only changes are printed unless
--all is given. Runs until interrupted.`,
	RunE: watchCommand,
}

func init() {
	watchCmd.Flags().BoolVar(&watchAll, "all", false, "Print every evaluation, not only changes")
	rootCmd.AddCommand(watchCmd)
}

func watchCommand(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := openSession(nil, nil)
	if err != nil {
		return err
	}
	defer s.Close()

	f, err := format()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	paths := s.cfg.Root.KnownPaths
	if len(paths) == 0 {
		paths = rootcheck.DefaultKnownPaths
	}
	w := watch.New(s.engine.Snapshot, func(ev watch.Event) {
		if !ev.Changed && !watchAll {
			return
		}
		printWatchEvent(out, f, ev)
	}, paths, s.cfg.Watch.Interval, s.cfg.Watch.MinInterval)

	if dirs := watch.WatchDirs(paths); len(dirs) > 0 {
		fmt.Fprintf(os.Stderr, "hostguard: watching %s\n", strings.Join(dirs, ", "))
	}
	return w.Run(ctx)
}

type watchLine struct {
	Trigger watch.Trigger  `json:"trigger" yaml:"trigger"`
	Changed bool           `json:"changed" yaml:"changed"`
	Paths   []string       `json:"paths,omitempty" yaml:"paths,omitempty"`
	Posture engine.Posture `json:"posture" yaml:"posture"`
}

func printWatchEvent(w io.Writer, f string, ev watch.Event) {
	p := ev.Posture
	if f == "table" {
		fired := rootcheck.Report{Probes: p.Probes}.Fired()
		line := fmt.Sprintf("%s  %-12s %-8s rooted=%s debugged=%s capture=%s",
			p.Timestamp.Local().Format("2006-01-02 15:04:05"), p.Verdict, ev.Trigger,
			yesNo(p.Rooted), yesNo(p.Debugged), p.Capture)
		if len(fired) > 0 {
			line += " fired=" + strings.Join(fired, ",")
		}
		if len(ev.Paths) > 0 {
			line += " paths=" + strings.Join(ev.Paths, ",")
		}
		fmt.Fprintln(w, line)
		return
	}
	// One document per evaluation so the stream can be consumed line by line.
	_ = renderAs(w, f, watchLine{Trigger: ev.Trigger, Changed: ev.Changed, Paths: ev.Paths, Posture: p})
}
