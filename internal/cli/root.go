package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	configPath   string
	logPath      string
	outputFormat string
)

// Exit codes beyond the usual 0/1.
const (
	ExitUntrusted    = 2
	ExitUndetermined = 3
)

var rootCmd = &cobra.Command{
	Use:   "hostguard",
	Short: "hostguard - runtime integrity checks for the host process",
	Long: `hostguard evaluates whether the host it runs on can be trusted: root
heuristics (build tags, known su binaries, shell resolution), debugger
attachment and debuggable builds. It can also suppress display capture and
restart or terminate the process when a caller decides to.

hostguard reports; it never enforces on its own.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config YAML file (default: ~/.hostguard/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logPath, "log", "", "Path to audit log file (default: ~/.hostguard/audit.jsonl)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "auto", "Output format: auto, table, json or yaml")
}

// ExitError carries a non-zero exit status without an error message.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

// ExitCode maps an error returned by Execute to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var ee *ExitError
	if errors.As(err, &ee) {
		return ee.Code
	}
	return 1
}

func Execute() error {
	return rootCmd.Execute()
}
