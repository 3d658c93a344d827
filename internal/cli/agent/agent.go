// Package agent implements the ember-agent command family: running the
// profiling agent and querying its stored reports.
package agent

import (
	"github.com/spf13/cobra"
)

// RegisterCommands registers the agent commands directly on root for a flat
// hierarchy (e.g. "ember-agent start" instead of "ember-agent agent start").
func RegisterCommands(root *cobra.Command) {
	root.AddCommand(NewStartCmd())
	root.AddCommand(NewReportCmd())
}
