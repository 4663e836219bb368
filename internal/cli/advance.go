package cli

import (
	"context"
	"io"
	"os"

	"github.com/spf13/cobra"
)

// AddAdvanceCommand adds the advance command to the root command.
func AddAdvanceCommand(parent *cobra.Command, flags *GlobalFlags) {
	cmd := &cobra.Command{
		Use:   "advance",
		Short: "Advance to the next phase",
		Long: `Attempt to move the workflow to the next phase. Advancing requires
every milestone of the current phase to be completed, the phase's exit
test to pass, and every prerequisite of the next phase to be in the
completed set; otherwise the command reports failure and the current
phase is unchanged.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runAdvance(cmd.Context(), cmd, flags, os.Stdout)
		},
	}
	parent.AddCommand(cmd)
}

// runAdvance executes the advance command with production dependencies.
func runAdvance(ctx context.Context, cmd *cobra.Command, flags *GlobalFlags, w io.Writer) error {
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

	return renderResult(w, flags.Output, c.Controller.Advance(ctx))
}
