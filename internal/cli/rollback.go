package cli

import (
	"context"
	"io"
	"os"

	"github.com/spf13/cobra"
)

// AddRollbackCommand adds the rollback command to the root command.
func AddRollbackCommand(parent *cobra.Command, flags *GlobalFlags) {
	cmd := &cobra.Command{
		Use:   "rollback",
		Short: "Roll the workflow back one phase",
		Long: `Move the workflow back to the previous phase. A timestamped full-state
backup and a restorable checkpoint are taken first. Rolling back below
phase 0 is refused and leaves state unchanged.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRollback(cmd.Context(), cmd, flags, os.Stdout)
		},
	}
	parent.AddCommand(cmd)
}

// runRollback executes the rollback command with production dependencies.
func runRollback(ctx context.Context, cmd *cobra.Command, flags *GlobalFlags, w io.Writer) error {
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

	return renderResult(w, flags.Output, c.Controller.Rollback(ctx))
}
