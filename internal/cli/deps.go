package cli

import (
	"github.com/rs/zerolog"

	"github.com/forgecrew/foreman/internal/agent"
	"github.com/forgecrew/foreman/internal/config"
	"github.com/forgecrew/foreman/internal/engine"
	"github.com/forgecrew/foreman/internal/events"
	"github.com/forgecrew/foreman/internal/phase"
	"github.com/forgecrew/foreman/internal/recovery"
	"github.com/forgecrew/foreman/internal/registry"
	"github.com/forgecrew/foreman/internal/retry"
	"github.com/forgecrew/foreman/internal/store"
)

// Components bundles the constructed orchestrator component graph. The graph
// is built once per command invocation and passed by explicit reference; no
// hidden singletons.
type Components struct {
	Config     *config.Config
	Store      *store.FileStore
	Catalog    *registry.Registry
	Agents     *agent.Registry
	Phases     *phase.Manager
	Retry      *retry.Executor
	Recovery   *recovery.Manager
	Bus        *events.Bus
	Engine     *engine.Engine
	Controller *engine.Controller
}

// buildComponents wires the component graph from configuration. When
// withEngine is false the controller operates directly against the store
// (one-shot commands); otherwise a full engine is attached.
func buildComponents(cfg *config.Config, logger zerolog.Logger, withEngine bool, engineOpts ...engine.Option) (*Components, error) {
	fileStore, err := store.NewFileStore(cfg.Home)
	if err != nil {
		return nil, err
	}

	catalog := registry.Default()
	if cfg.CatalogPath != "" {
		catalog, err = registry.LoadFile(cfg.CatalogPath)
		if err != nil {
			return nil, err
		}
	}

	agents, err := agent.NewDefaultRegistry(logger, cfg.AgentCommands())
	if err != nil {
		return nil, err
	}

	recoveryMgr := recovery.NewManager(logger, recovery.WithMaxCheckpoints(cfg.Checkpoints.Max))
	validator := phase.NewValidator(logger)
	phases := phase.NewManager(catalog, fileStore, validator, logger, phase.WithCheckpointer(recoveryMgr))
	retryExec := retry.NewExecutor(logger)
	bus := events.NewBus(logger)

	c := &Components{
		Config:   cfg,
		Store:    fileStore,
		Catalog:  catalog,
		Agents:   agents,
		Phases:   phases,
		Retry:    retryExec,
		Recovery: recoveryMgr,
		Bus:      bus,
	}

	if withEngine {
		opts := append([]engine.Option{
			engine.WithTickInterval(cfg.Engine.TickInterval),
			engine.WithPolicy(cfg.Policy()),
			engine.WithErrorLogCap(cfg.Engine.ErrorLogCap),
			engine.WithAutoAdvance(cfg.Engine.AutoAdvance),
		}, engineOpts...)
		c.Engine = engine.New(fileStore, agents, phases, retryExec, recoveryMgr, bus, logger, opts...)
	}

	c.Controller = engine.NewController(c.Engine, fileStore, agents, phases, catalog, retryExec, recoveryMgr, logger)
	return c, nil
}
