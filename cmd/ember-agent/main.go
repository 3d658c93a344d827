// Package main provides the ember-agent binary.
//
// ember-agent runs an in-process hot-code profiler: it samples the running
// process, keeps a bounded profile of the hottest code units, and renders a
// ranked report on a fixed interval.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/emberprof/ember/internal/cli/agent"
	"github.com/emberprof/ember/internal/cli/config"
	"github.com/emberprof/ember/pkg/version"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "ember-agent",
		Short:         "Ember - hot code profiling for running processes",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Register agent subcommands directly on root for a flat hierarchy
	// (e.g. "ember-agent start" instead of "ember-agent agent start").
	agent.RegisterCommands(rootCmd)

	rootCmd.AddCommand(config.NewConfigCmd())
	rootCmd.AddCommand(newVersionCmd())

	if err := rootCmd.Execute(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Printf("Ember agent version %s\n", version.Version)
			cmd.Printf("Git commit: %s\n", version.GitCommit)
			cmd.Printf("Build date: %s\n", version.BuildDate)
			cmd.Printf("Go version: %s\n", version.GoVersion)
		},
	}
}
