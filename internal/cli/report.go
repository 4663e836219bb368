package cli

import (
	"context"
	"io"
	"os"

	"github.com/spf13/cobra"
)

// AddReportCommand adds the report command to the root command.
func AddReportCommand(parent *cobra.Command, flags *GlobalFlags) {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Generate a full progress report",
		Long: `Generate a report covering per-phase progress, per-role execution
metrics, retry statistics, checkpoint statistics, and recent errors.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runReport(cmd.Context(), cmd, flags, os.Stdout)
		},
	}
	parent.AddCommand(cmd)
}

// runReport executes the report command with production dependencies.
func runReport(ctx context.Context, cmd *cobra.Command, flags *GlobalFlags, w io.Writer) error {
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

	return renderResult(w, flags.Output, c.Controller.GenerateReport(ctx))
}
