package cli

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/gzhole/hostguard/internal/approval"
	"github.com/gzhole/hostguard/internal/lifecycle"
	"github.com/gzhole/hostguard/internal/platform"
)

var (
	assumeYes     bool
	relaunchDelay time.Duration

	prompter = approval.Default
)

var restartCmd = &cobra.Command{
	Use:   "restart",
	Short: "Schedule a relaunch of the configured entry point and terminate",
	Long: `Resolve the relaunch entry point (relaunch.entry_point, default: this
binary), schedule it to start after relaunch.delay and exit with status 0.
If no entry point can be resolved nothing is scheduled and hostguard keeps
running.`,
	RunE: restartCommand,
}

var exitCmd = &cobra.Command{
	Use:   "exit",
	Short: "Terminate immediately without relaunch",
	RunE:  exitCommand,
}

var relaunchCmd = &cobra.Command{
	Use:    platform.RelaunchCommand + " -- ENTRY [ARGS...]",
	Hidden: true,
	Args:   cobra.MinimumNArgs(1),
	RunE:   relaunchCommand,
}

func init() {
	restartCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "Do not ask for confirmation")
	exitCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "Do not ask for confirmation")
	relaunchCmd.Flags().DurationVar(&relaunchDelay, "delay", lifecycle.DefaultRelaunchDelay, "Wait before launching")
	rootCmd.AddCommand(restartCmd, exitCmd, relaunchCmd)
}

func confirm(action string, details ...string) bool {
	if assumeYes {
		return true
	}
	res := prompter().Ask(approval.Prompt{Action: action, Details: details})
	if !res.Approved && res.UserAction == "auto_deny_non_interactive" {
		fmt.Fprintln(os.Stderr, "hostguard: not a terminal; pass --yes to confirm")
	}
	return res.Approved
}

func restartCommand(cmd *cobra.Command, args []string) error {
	s, err := openSession(nil, nil)
	if err != nil {
		return err
	}
	defer s.Close()

	entry := s.cfg.Relaunch.EntryPoint
	if entry == "" {
		entry = "this executable"
	}
	if !confirm("restart process", "entry point: "+entry, "delay: "+s.cfg.Relaunch.Delay.String()) {
		return errors.New("restart cancelled")
	}

	// Returns only when the relaunch could not be arranged.
	if err := s.engine.RestartProcess(); err != nil {
		var rre *lifecycle.RelaunchResolutionError
		if errors.As(err, &rre) {
			return fmt.Errorf("%w (set relaunch.entry_point in %s)", err, s.cfg.ConfigPath)
		}
		return err
	}
	return nil
}

func exitCommand(cmd *cobra.Command, args []string) error {
	s, err := openSession(nil, nil)
	if err != nil {
		return err
	}
	defer s.Close()

	if !confirm("exit process", fmt.Sprintf("pid %d will be killed", os.Getpid())) {
		return errors.New("exit cancelled")
	}
	s.engine.ExitProcess()
	return nil
}

func relaunchCommand(cmd *cobra.Command, args []string) error {
	entry := platform.Entry{Path: args[0], Args: args[1:]}
	return platform.ExecAfter(entry, relaunchDelay)
}
