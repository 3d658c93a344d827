// Package config implements the 'ember-agent config' command family for
// inspecting and validating the resolved agent configuration.
package config

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/emberprof/ember/internal/config"
)

// NewConfigCmd creates the config command and its subcommands.
func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage ember-agent configuration",
		Long: `Manage ember-agent configuration.

Configuration Priority:
  1. Environment variables (EMBER_*, highest)
  2. Config file (--config flag or /etc/ember/config.yaml)
  3. Defaults

Environment Variables:
  EMBER_PROFILE_CAPACITY, EMBER_REPORT_INTERVAL, EMBER_REPORT_TOP,
  EMBER_REPORT_OUTPUT, EMBER_SERVER_LISTEN, EMBER_STORAGE_PATH,
  EMBER_LOG_LEVEL and friends; see 'ember-agent start --help'.`,
	}

	cmd.AddCommand(newViewCmd())
	cmd.AddCommand(newValidateCmd())

	return cmd
}

// newViewCmd creates the 'config view' command.
func newViewCmd() *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:   "view",
		Short: "Show the resolved configuration",
		Long: `Display the effective configuration after defaults, the config file and
EMBER_* environment variables are merged.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runView(configFile)
		},
	}

	cmd.Flags().StringVar(&configFile, "config", "", "Path to agent configuration file (default: /etc/ember/config.yaml)")

	return cmd
}

func runView(configFile string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}

	fmt.Println("# Resolved ember-agent configuration")
	fmt.Println("# Sources (priority order): EMBER_* env, config file, defaults")

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal configuration: %w", err)
	}
	fmt.Print(string(data))
	return nil
}

// newValidateCmd creates the 'config validate' command.
func newValidateCmd() *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration",
		Long: `Load and validate the configuration the agent would start with. Exits
non-zero when the resolved configuration is unusable.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(configFile)
		},
	}

	cmd.Flags().StringVar(&configFile, "config", "", "Path to agent configuration file (default: /etc/ember/config.yaml)")

	return cmd
}

func runValidate(configFile string) error {
	if _, err := config.Load(configFile); err != nil {
		return err
	}

	fmt.Println("Configuration valid.")
	return nil
}
