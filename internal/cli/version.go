package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gzhole/hostguard/internal/platform"
)

var (
	Version   = "0.1.0-dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print hostguard version",
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "hostguard %s\n", Version)
		fmt.Fprintf(out, "  Commit: %s\n", GitCommit)
		fmt.Fprintf(out, "  Built:  %s\n", BuildDate)
		if platform.BuildTags != "" {
			fmt.Fprintf(out, "  Tags:   %s\n", platform.BuildTags)
		}
		if platform.Debuggable != "" {
			fmt.Fprintf(out, "  Debuggable: %s\n", platform.Debuggable)
		}
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
