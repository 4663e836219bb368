package phase

import (
	"context"
	"fmt"
	"os/exec"

	"github.com/rs/zerolog"

	"github.com/forgecrew/foreman/internal/constants"
	foremanerrors "github.com/forgecrew/foreman/internal/errors"
)

// ExitTestRunner runs a phase's exit-test command. Foreman treats the
// command as an opaque pass/fail oracle owned by an external collaborator:
// a nil return means pass.
type ExitTestRunner interface {
	Run(ctx context.Context, command string) error
}

// ShellExitRunner runs exit-test commands through the shell.
type ShellExitRunner struct {
	logger zerolog.Logger
}

// NewShellExitRunner creates the default exit-test runner.
func NewShellExitRunner(logger zerolog.Logger) *ShellExitRunner {
	return &ShellExitRunner{logger: logger.With().Str("component", "exit_test").Logger()}
}

// Run executes the command with a bounded timeout and returns
// ErrExitTestFailed (wrapped) on a non-zero exit. An empty command passes.
func (r *ShellExitRunner) Run(ctx context.Context, command string) error {
	if command == "" {
		return nil
	}

	runCtx, cancel := context.WithTimeout(ctx, constants.DefaultExitTestTimeout)
	defer cancel()

	r.logger.Info().Str("command", command).Msg("running exit test")

	cmd := exec.CommandContext(runCtx, "sh", "-c", command) //#nosec G204 -- command comes from the operator-owned phase catalog
	output, err := cmd.CombinedOutput()
	if err != nil {
		r.logger.Warn().
			Err(err).
			Str("command", command).
			Str("output", string(output)).
			Msg("exit test failed")
		return fmt.Errorf("%w: %s: %w", foremanerrors.ErrExitTestFailed, command, err)
	}

	r.logger.Info().Str("command", command).Msg("exit test passed")
	return nil
}
