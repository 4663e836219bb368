package cli

import (
	"context"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/forgecrew/foreman/internal/domain"
)

// AddDeployCommand adds the deploy command to the root command.
func AddDeployCommand(parent *cobra.Command, flags *GlobalFlags) {
	cmd := &cobra.Command{
		Use:   "deploy <role>",
		Short: "Run one ad-hoc task for a role",
		Long: `Dispatch a one-off task to the agent serving the given role, outside
the normal milestone flow. The task goes through the same retry policy
and is recorded in the task history.

Roles: api, models, test, realtime, quality, integration, security.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDeploy(cmd.Context(), cmd, flags, args[0], os.Stdout)
		},
	}
	parent.AddCommand(cmd)
}

// runDeploy executes the deploy command with production dependencies.
func runDeploy(ctx context.Context, cmd *cobra.Command, flags *GlobalFlags, roleName string, w io.Writer) error {
	// Check for cancellation at entry
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	role, err := domain.ParseRole(roleName)
	if err != nil {
		return err
	}

	cfg, err := commandConfig(cmd, flags)
	if err != nil {
		return err
	}

	c, err := buildComponents(cfg, GetLogger(), false)
	if err != nil {
		return err
	}

	return renderResult(w, flags.Output, c.Controller.Deploy(ctx, role))
}
