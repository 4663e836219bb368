package cli

import (
	"context"
	"io"
	"os"

	"github.com/spf13/cobra"
)

// AddStatusCommand adds the status command to the root command.
func AddStatusCommand(parent *cobra.Command, flags *GlobalFlags) {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show workflow status",
		Long: `Display the current phase, milestone statuses, task counts, and
progress percentages from the persisted state document.

Examples:
  foreman status                # human-readable status
  foreman status --output json  # machine-readable envelope`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd.Context(), cmd, flags, os.Stdout)
		},
	}
	parent.AddCommand(cmd)
}

// runStatus executes the status command with production dependencies.
func runStatus(ctx context.Context, cmd *cobra.Command, flags *GlobalFlags, w io.Writer) error {
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

	return renderResult(w, flags.Output, c.Controller.Status(ctx))
}
