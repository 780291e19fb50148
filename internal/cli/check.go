package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gzhole/hostguard/internal/engine"
	"github.com/gzhole/hostguard/internal/rootcheck"
)

var checkExplain bool

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Evaluate the full host posture",
	Long: `Evaluate every integrity check once and print the posture.

Exit status is 0 when trusted, 2 when rooted or debugged and 3 when the
root checks could not run at all.

Examples:
  hostguard check
  hostguard check --explain      # show every root probe and what it found
  hostguard check -o json`,
	RunE: checkCommand,
}

var rootCheckCmd = &cobra.Command{
	Use:   "root",
	Short: "Report whether the host appears rooted",
	Long: `Run the root heuristics with short-circuit evaluation: build tags, known
su binary paths, then shell resolution of su. Exit status is 2 when rooted
and 3 when no heuristic could run.`,
	RunE: rootCommand,
}

var debugCmd = &cobra.Command{
	Use:   "debug",
	Short: "Report whether a debugger is attached or the build is debuggable",
	RunE:  debugCommand,
}

func init() {
	checkCmd.Flags().BoolVar(&checkExplain, "explain", false, "Show per-probe results")
	rootCmd.AddCommand(checkCmd, rootCheckCmd, debugCmd)
}

func checkCommand(cmd *cobra.Command, args []string) error {
	s, err := openSession(nil, nil)
	if err != nil {
		return err
	}
	defer s.Close()

	p := s.engine.Snapshot()
	out := cmd.OutOrStdout()
	if err := render(out, p, func(w io.Writer) { printPosture(w, p, checkExplain) }); err != nil {
		return err
	}
	return verdictExit(p.Verdict)
}

func printPosture(w io.Writer, p engine.Posture, explain bool) {
	t := newTable(w, "Check", "Result", "Detail")
	rootDetail := strings.Join(rootcheck.Report{Probes: p.Probes}.Fired(), ", ")
	rootResult := yesNo(p.Rooted)
	if p.RootError != "" {
		rootResult = "unknown"
		rootDetail = p.RootError
	}
	t.Append("rooted", rootResult, rootDetail)
	t.Append("debugged", yesNo(p.Debugged), "")
	t.Append("capture", string(p.Capture), "")
	t.Render()

	if explain {
		fmt.Fprintln(w)
		pt := newTable(w, "Probe", "Detected", "Evidence", "Error", "Duration")
		for _, r := range p.Probes {
			pt.Append(r.Name, yesNo(r.Detected), r.Evidence, r.Error, r.Duration.String())
		}
		pt.Render()
	}

	fmt.Fprintf(w, "\nVerdict: %s  (host %s, pid %d, evaluation %s)\n", p.Verdict, p.Host.Hostname, p.Host.PID, p.ID)
}

func verdictExit(v engine.Verdict) error {
	switch v {
	case engine.VerdictUntrusted:
		return &ExitError{Code: ExitUntrusted}
	case engine.VerdictUndetermined:
		return &ExitError{Code: ExitUndetermined}
	}
	return nil
}

type rootOutput struct {
	Rooted    bool   `json:"rooted" yaml:"rooted"`
	Attempted int    `json:"attempted,omitempty" yaml:"attempted,omitempty"`
	Error     string `json:"error,omitempty" yaml:"error,omitempty"`
}

func rootCommand(cmd *cobra.Command, args []string) error {
	s, err := openSession(nil, nil)
	if err != nil {
		return err
	}
	defer s.Close()

	rooted, rootErr := s.engine.IsRooted()
	res := rootOutput{Rooted: rooted}
	var ice *rootcheck.IntegrityCheckError
	if errors.As(rootErr, &ice) {
		res.Attempted = ice.Attempted
		res.Error = ice.Error()
	}

	err = render(cmd.OutOrStdout(), res, func(w io.Writer) {
		switch {
		case res.Error != "":
			fmt.Fprintf(w, "rooted: unknown (%s)\n", res.Error)
		default:
			fmt.Fprintf(w, "rooted: %s\n", yesNo(rooted))
		}
	})
	if err != nil {
		return err
	}

	switch {
	case rootErr != nil:
		return &ExitError{Code: ExitUndetermined}
	case rooted:
		return &ExitError{Code: ExitUntrusted}
	}
	return nil
}

func debugCommand(cmd *cobra.Command, args []string) error {
	s, err := openSession(nil, nil)
	if err != nil {
		return err
	}
	defer s.Close()

	debugged := s.engine.IsDebugged()
	err = render(cmd.OutOrStdout(), map[string]bool{"debugged": debugged}, func(w io.Writer) {
		fmt.Fprintf(w, "debugged: %s\n", yesNo(debugged))
	})
	if err != nil {
		return err
	}
	if debugged {
		return &ExitError{Code: ExitUntrusted}
	}
	return nil
}
