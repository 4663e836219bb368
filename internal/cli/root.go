package cli

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/forgecrew/foreman/internal/config"
	"github.com/forgecrew/foreman/internal/errors"
)

// BuildInfo contains version information set at build time via ldflags.
type BuildInfo struct {
	// Version is the semantic version (e.g., "1.0.0").
	Version string
	// Commit is the git commit hash.
	Commit string
	// Date is the build date.
	Date string
}

// globalLogger stores the initialized logger for use by subcommands.
// This is set during PersistentPreRunE and should be accessed via GetLogger.
// Access is protected by globalLoggerMu for thread safety.
var (
	globalLogger   zerolog.Logger //nolint:gochecknoglobals // CLI logger requires global access
	globalLoggerMu sync.RWMutex   //nolint:gochecknoglobals // Protects globalLogger
)

// GetLogger returns the initialized logger for use by subcommands.
//
// This function MUST only be called after the root command's
// PersistentPreRunE has executed. Calling it before initialization will
// return a zero-value logger that discards all log output.
func GetLogger() zerolog.Logger {
	globalLoggerMu.RLock()
	defer globalLoggerMu.RUnlock()
	return globalLogger
}

// newRootCmd creates and returns the root command for the foreman CLI.
// This function-based approach avoids package-level globals, making the
// code more testable.
func newRootCmd(flags *GlobalFlags, info BuildInfo) *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "foreman",
		Short: "Foreman - phase-gated build orchestrator",
		Long: `Foreman drives a multi-phase build workflow: it generates tasks per
milestone and executor role, dispatches them with retry and circuit
breaking, validates milestone completion, and advances phases once their
exit tests pass.

Commands operate on the shared state document under ~/.foreman; "foreman
run" starts the control loop in the foreground while the other commands
inspect or steer the workflow.`,
		Version: formatVersion(info),
		// Run displays help when the root command is invoked without
		// subcommands. This ensures PersistentPreRunE runs for flag validation.
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := BindGlobalFlags(v, cmd); err != nil {
				return fmt.Errorf("failed to bind flags: %w", err)
			}

			if !IsValidOutputFormat(flags.Output) {
				return fmt.Errorf("%w: %q must be one of %v", errors.ErrInvalidOutputFormat, flags.Output, ValidOutputFormats())
			}

			cfg, err := config.Load(flags.ConfigPath)
			if err != nil {
				return err
			}
			if flags.Home != "" {
				cfg.Home = flags.Home
			}

			globalLoggerMu.Lock()
			globalLogger = InitLogger(flags.Verbose, flags.Quiet, cfg.Home, cfg.Log)
			globalLoggerMu.Unlock()

			setCommandConfig(cmd, cfg)
			return nil
		},
		// SilenceUsage prevents printing usage on error
		// (we handle our own error messages)
		SilenceUsage: true,
	}

	AddGlobalFlags(cmd, flags)

	AddRunCommand(cmd, flags)
	AddStatusCommand(cmd, flags)
	AddAdvanceCommand(cmd, flags)
	AddRollbackCommand(cmd, flags)
	AddTestCommand(cmd, flags)
	AddDeployCommand(cmd, flags)
	AddReportCommand(cmd, flags)
	AddDashboardCommand(cmd, flags)
	AddBreakerCommand(cmd, flags)

	return cmd
}

// Execute runs the foreman CLI.
func Execute(ctx context.Context, info BuildInfo) error {
	flags := &GlobalFlags{}
	//nolint:contextcheck // Cobra command pattern uses cmd.Context() internally
	cmd := newRootCmd(flags, info)
	defer CloseLogFile()
	return cmd.ExecuteContext(ctx)
}

// formatVersion renders the version string from build info.
func formatVersion(info BuildInfo) string {
	version := info.Version
	if version == "" {
		version = "dev"
	}
	if info.Commit != "" {
		version += " (" + info.Commit
		if info.Date != "" {
			version += ", " + info.Date
		}
		version += ")"
	}
	return version
}

// configContextKey carries the loaded configuration on the command context.
type configContextKey struct{}

// setCommandConfig stores the loaded configuration on the command context so
// subcommands share one load.
func setCommandConfig(cmd *cobra.Command, cfg *config.Config) {
	cmd.SetContext(context.WithValue(cmd.Context(), configContextKey{}, cfg))
}

// commandConfig retrieves the configuration loaded in PersistentPreRunE,
// falling back to a fresh load for direct command invocation in tests.
func commandConfig(cmd *cobra.Command, flags *GlobalFlags) (*config.Config, error) {
	if cfg, ok := cmd.Context().Value(configContextKey{}).(*config.Config); ok {
		return cfg, nil
	}
	cfg, err := config.Load(flags.ConfigPath)
	if err != nil {
		return nil, err
	}
	if flags.Home != "" {
		cfg.Home = flags.Home
	}
	return cfg, nil
}
