package cli

import (
	"context"
	"io"
	"os"

	"github.com/spf13/cobra"
)

// AddBreakerCommand adds the reset-breaker command to the root command.
func AddBreakerCommand(parent *cobra.Command, flags *GlobalFlags) {
	cmd := &cobra.Command{
		Use:   "reset-breaker [key]",
		Short: "Manually reset a circuit breaker",
		Long: `Close the circuit breaker for the given key (e.g. "role:api") so the
role is dispatched again. With no key, every breaker is reset.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := ""
			if len(args) > 0 {
				key = args[0]
			}
			return runResetBreaker(cmd.Context(), cmd, flags, key, os.Stdout)
		},
	}
	parent.AddCommand(cmd)
}

// runResetBreaker executes the reset-breaker command with production
// dependencies.
func runResetBreaker(ctx context.Context, cmd *cobra.Command, flags *GlobalFlags, key string, w io.Writer) error {
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

	return renderResult(w, flags.Output, c.Controller.ResetBreaker(key))
}
