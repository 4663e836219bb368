// Package agent defines the executor contract and the role-specific
// executors the engine dispatches tasks to. Agents are polymorphic over a
// small capability set: declare a name, a role, upstream-role dependencies,
// report busy or idle, and execute one task at a time.
package agent

import (
	"context"
	"fmt"
	"os/exec"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/forgecrew/foreman/internal/domain"
	foremanerrors "github.com/forgecrew/foreman/internal/errors"
)

// Agent is the executor contract. The engine is agnostic to which concrete
// variant it holds; only this contract matters.
type Agent interface {
	// Name returns the agent's human-readable name.
	Name() string

	// Role returns the functional role the agent serves.
	Role() domain.Role

	// Dependencies returns the upstream roles whose tasks in the current
	// phase must all be completed before this agent is dispatched.
	Dependencies() []domain.Role

	// Busy reports whether the agent is currently executing a task.
	Busy() bool

	// Execute runs one task to completion and returns its result. A non-nil
	// error describes an execution fault (the call itself failed); a result
	// with Success=false describes work that ran and reported failure.
	Execute(ctx context.Context, task *domain.AgentTask) (*domain.TaskResult, error)
}

// CommandExecutor runs a shell command and returns its combined output. It
// is a seam: tests and alternative transports replace it.
type CommandExecutor func(ctx context.Context, command string) (string, error)

// shellExecutor is the default CommandExecutor.
func shellExecutor(ctx context.Context, command string) (string, error) {
	cmd := exec.CommandContext(ctx, "sh", "-c", command) //#nosec G204 -- command comes from the operator-owned configuration
	output, err := cmd.CombinedOutput()
	if err != nil {
		return string(output), fmt.Errorf("%w: %s: %w", foremanerrors.ErrCommandFailed, command, err)
	}
	return string(output), nil
}

// BaseAgent carries the state and behavior shared by every role agent: the
// busy flag, the configured command, and the command executor seam.
type BaseAgent struct {
	name    string
	role    domain.Role
	deps    []domain.Role
	command string
	execute CommandExecutor
	busy    atomic.Bool
	logger  zerolog.Logger
}

// Option configures a BaseAgent.
type Option func(*BaseAgent)

// WithCommand sets the shell command the agent runs per task. An empty
// command makes Execute a no-op success (dry-run mode).
func WithCommand(command string) Option {
	return func(a *BaseAgent) { a.command = command }
}

// WithExecutor replaces the shell command executor.
func WithExecutor(fn CommandExecutor) Option {
	return func(a *BaseAgent) { a.execute = fn }
}

// WithDependencies overrides the agent's upstream-role dependencies.
func WithDependencies(deps ...domain.Role) Option {
	return func(a *BaseAgent) { a.deps = deps }
}

// newBase creates the shared agent core.
func newBase(name string, role domain.Role, deps []domain.Role, logger zerolog.Logger, opts ...Option) *BaseAgent {
	a := &BaseAgent{
		name:    name,
		role:    role,
		deps:    deps,
		execute: shellExecutor,
		logger:  logger.With().Str("component", "agent").Str("agent", name).Logger(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Name returns the agent's name.
func (a *BaseAgent) Name() string { return a.name }

// Role returns the agent's role.
func (a *BaseAgent) Role() domain.Role { return a.role }

// Dependencies returns the agent's upstream-role dependencies.
func (a *BaseAgent) Dependencies() []domain.Role {
	return append([]domain.Role(nil), a.deps...)
}

// Busy reports whether the agent is currently executing a task.
func (a *BaseAgent) Busy() bool { return a.busy.Load() }

// Execute runs the agent's configured command for the task. Exactly one task
// may execute at a time; a second concurrent call fails with ErrAgentBusy.
func (a *BaseAgent) Execute(ctx context.Context, task *domain.AgentTask) (*domain.TaskResult, error) {
	if task == nil {
		return nil, fmt.Errorf("execute: task %w", foremanerrors.ErrEmptyValue)
	}
	if !a.busy.CompareAndSwap(false, true) {
		return nil, fmt.Errorf("%w: %s", foremanerrors.ErrAgentBusy, a.name)
	}
	defer a.busy.Store(false)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	a.logger.Info().
		Str("task_id", task.ID).
		Str("milestone_id", task.MilestoneID).
		Msg("executing task")

	if a.command == "" {
		return &domain.TaskResult{
			Success: true,
			Output:  fmt.Sprintf("%s: no command configured, nothing to do", a.name),
		}, nil
	}

	output, err := a.execute(ctx, a.command)
	if err != nil {
		a.logger.Warn().Err(err).Str("task_id", task.ID).Msg("task execution failed")
		return &domain.TaskResult{Success: false, Output: output, Error: err.Error()}, err
	}

	a.logger.Info().Str("task_id", task.ID).Msg("task executed")
	return &domain.TaskResult{Success: true, Output: output}, nil
}
