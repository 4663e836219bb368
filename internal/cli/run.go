package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/forgecrew/foreman/internal/engine"
	"github.com/forgecrew/foreman/internal/events"
	"github.com/forgecrew/foreman/internal/metrics"
)

// metricsShutdownTimeout bounds the metrics server drain on shutdown.
const metricsShutdownTimeout = 5 * time.Second

// AddRunCommand adds the run command to the root command.
func AddRunCommand(parent *cobra.Command, flags *GlobalFlags) {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the control loop in the foreground",
		Long: `Start the scheduler and run until interrupted. On each tick the engine
dispatches eligible waiting tasks of the current phase to their role
agents, applies results, re-evaluates milestones, and advances phases
when auto-advance is enabled.

SIGINT or SIGTERM stops the loop; already-dispatched tasks finish
before the process exits. When engine.metrics_addr is configured a
Prometheus endpoint is served at /metrics.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRun(cmd.Context(), cmd, flags, os.Stdout)
		},
	}
	parent.AddCommand(cmd)
}

// runRun executes the run command with production dependencies.
func runRun(ctx context.Context, cmd *cobra.Command, flags *GlobalFlags, w io.Writer) error {
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

	logger := GetLogger()

	var engineOpts []engine.Option
	var prom *metrics.Prometheus
	if cfg.Engine.MetricsAddr != "" {
		prom = metrics.New()
		engineOpts = append(engineOpts, engine.WithMetrics(prom))
	}

	c, err := buildComponents(cfg, logger, true, engineOpts...)
	if err != nil {
		return err
	}

	// Surface lifecycle events on the log while the loop runs.
	c.Bus.SubscribeAll(func(e events.Event) {
		logger.Debug().
			Str("event", e.Kind.String()).
			Str("task_id", e.TaskID).
			Int("phase", e.Phase).
			Msg(e.Message)
	})

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var metricsServer *http.Server
	if prom != nil {
		mux := http.NewServeMux()
		mux.Handle("/metrics", prom.Handler())
		metricsServer = &http.Server{
			Addr:              cfg.Engine.MetricsAddr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error().Err(err).Msg("metrics server failed")
			}
		}()
		logger.Info().Str("addr", cfg.Engine.MetricsAddr).Msg("metrics endpoint listening")
	}

	if err := c.Engine.Start(runCtx); err != nil {
		return fmt.Errorf("failed to start engine: %w", err)
	}
	fmt.Fprintln(w, "foreman running, press Ctrl+C to stop")

	<-runCtx.Done()
	logger.Info().Msg("shutdown signal received")
	c.Engine.Stop()

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}

	fmt.Fprintln(w, "foreman stopped")
	return nil
}
