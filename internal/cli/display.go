package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/gzhole/hostguard/internal/platform"
)

var secureDisplayCmd = &cobra.Command{
	Use:   "secure-display on|off|status",
	Short: "Suppress or allow screen capture of the active surface",
	Long: `Toggle capture suppression on the active display surface, or show its
current state. With no active surface the toggle is a no-op.

Examples:
  hostguard secure-display on
  hostguard secure-display status`,
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"on", "off", "status"},
	RunE:      secureDisplayCommand,
}

func init() {
	rootCmd.AddCommand(secureDisplayCmd)
}

func secureDisplayCommand(cmd *cobra.Command, args []string) error {
	loop := platform.NewLoop(context.Background(), 1)
	defer loop.Close()

	s, err := openSession(nil, loop)
	if err != nil {
		return err
	}
	defer s.Close()

	switch args[0] {
	case "on":
		s.engine.SetSecureDisplay(true)
	case "off":
		s.engine.SetSecureDisplay(false)
	}
	// The toggle runs on the loop; drain it before reporting state.
	loop.Close()

	state := s.engine.CaptureState()
	return render(cmd.OutOrStdout(), map[string]string{"capture": string(state)}, func(w io.Writer) {
		fmt.Fprintf(w, "capture: %s\n", state)
	})
}
