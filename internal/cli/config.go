package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gzhole/hostguard/internal/config"
)

var configForce bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the hostguard configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default configuration file",
	Long: `Write the built-in defaults to ~/.hostguard/config.yaml (or --config) so
they can be edited. Existing files are kept unless --force is given.`,
	RunE: configInitCommand,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE:  configShowCommand,
}

func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite an existing config file")
	configCmd.AddCommand(configInitCmd, configShowCmd)
	rootCmd.AddCommand(configCmd)
}

func configInitCommand(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath, logPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	path := cfg.ConfigPath
	if configPath != "" {
		path = configPath
	}
	if err := config.WriteDefault(path, configForce); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
	return nil
}

func configShowCommand(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath, logPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	// Always YAML: it is the file format.
	return renderAs(cmd.OutOrStdout(), "yaml", cfg)
}
