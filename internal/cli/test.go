package cli

import (
	"context"
	"io"
	"os"

	"github.com/spf13/cobra"
)

// AddTestCommand adds the test command to the root command.
func AddTestCommand(parent *cobra.Command, flags *GlobalFlags) {
	cmd := &cobra.Command{
		Use:   "test",
		Short: "Run the current phase's exit test",
		Long: `Run the exit-test command defined for the current phase and report
pass or fail. The exit test is an external pass/fail oracle; a phase
with no exit test passes trivially.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTest(cmd.Context(), cmd, flags, os.Stdout)
		},
	}
	parent.AddCommand(cmd)
}

// runTest executes the test command with production dependencies.
func runTest(ctx context.Context, cmd *cobra.Command, flags *GlobalFlags, w io.Writer) error {
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

	return renderResult(w, flags.Output, c.Controller.RunTests(ctx))
}
