package cli

import (
	"context"
	"io"
	"os"

	"github.com/spf13/cobra"
)

// AddDashboardCommand adds the dashboard command to the root command.
func AddDashboardCommand(parent *cobra.Command, flags *GlobalFlags) {
	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Print the dashboard data payload",
		Long: `Print the structured progress snapshot external dashboards render
from: phase progress, overall progress, and task counts.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDashboard(cmd.Context(), cmd, flags, os.Stdout)
		},
	}
	parent.AddCommand(cmd)
}

// runDashboard executes the dashboard command with production dependencies.
func runDashboard(ctx context.Context, cmd *cobra.Command, flags *GlobalFlags, w io.Writer) error {
	// Check for cancellation at entry
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	cfg, err := commandConfig(cmd, flags)
	if err != nil {
		return err
	}

	c, err := buildComponents(cfg, GetLogger(), false)
	if err != nil {
		return err
	}

	return renderResult(w, flags.Output, c.Controller.DashboardData(ctx))
}
