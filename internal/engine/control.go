package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/forgecrew/foreman/internal/agent"
	"github.com/forgecrew/foreman/internal/clock"
	"github.com/forgecrew/foreman/internal/constants"
	"github.com/forgecrew/foreman/internal/domain"
	foremanerrors "github.com/forgecrew/foreman/internal/errors"
	"github.com/forgecrew/foreman/internal/phase"
	"github.com/forgecrew/foreman/internal/recovery"
	"github.com/forgecrew/foreman/internal/registry"
	"github.com/forgecrew/foreman/internal/retry"
	"github.com/forgecrew/foreman/internal/store"
)

// Controller is the control surface over the orchestrator. Every operation
// returns the uniform CommandResult envelope; outer transports (CLI, HTTP)
// only render it. When an engine loop is running in-process, state-mutating
// operations go through its live document so the loop sees them; otherwise
// they load a fresh document from the store.
type Controller struct {
	engine   *Engine
	store    store.Store
	agents   *agent.Registry
	phases   *phase.Manager
	catalog  *registry.Registry
	retry    *retry.Executor
	recovery *recovery.Manager
	policy   retry.Policy
	clock    clock.Clock
	logger   zerolog.Logger
}

// NewController creates the control surface.
func NewController(
	eng *Engine,
	st store.Store,
	agents *agent.Registry,
	phases *phase.Manager,
	catalog *registry.Registry,
	retryExec *retry.Executor,
	recoveryMgr *recovery.Manager,
	logger zerolog.Logger,
) *Controller {
	policy := retry.DefaultPolicy()
	if eng != nil {
		policy = eng.policy
	}
	return &Controller{
		engine:   eng,
		store:    st,
		agents:   agents,
		phases:   phases,
		catalog:  catalog,
		retry:    retryExec,
		recovery: recoveryMgr,
		policy:   policy,
		clock:    clock.RealClock{},
		logger:   logger.With().Str("component", "control").Logger(),
	}
}

// Start launches the engine control loop.
func (c *Controller) Start(ctx context.Context) domain.CommandResult {
	if c.engine == nil {
		return failure("no engine attached")
	}
	if err := c.engine.Start(ctx); err != nil {
		return errorResult("failed to start engine", err)
	}
	return success("engine started", nil)
}

// Stop halts the engine control loop. Already-dispatched tasks finish.
func (c *Controller) Stop(_ context.Context) domain.CommandResult {
	if c.engine == nil {
		return failure("no engine attached")
	}
	c.engine.Stop()
	return success("engine stopped", nil)
}

// StatusData is the payload returned by Status.
type StatusData struct {
	Phase           int                 `json:"phase"`
	PhaseName       string              `json:"phase_name"`
	CompletedPhases []int               `json:"completed_phases"`
	PhaseProgress   float64             `json:"phase_progress"`
	OverallProgress float64             `json:"overall_progress"`
	ActiveTasks     int                 `json:"active_tasks"`
	CompletedTasks  int                 `json:"completed_tasks"`
	FailedTasks     int                 `json:"failed_tasks"`
	WaitingTasks    int                 `json:"waiting_tasks"`
	Milestones      []*domain.Milestone `json:"milestones"`
	Running         bool                `json:"running"`
	Paused          bool                `json:"paused"`
	AutoAdvance     bool                `json:"auto_advance"`
	UpdatedAt       time.Time           `json:"updated_at"`
}

// Status reports the current workflow state. It always reflects the
// last-known persisted state, even mid-failure.
func (c *Controller) Status(ctx context.Context) domain.CommandResult {
	st, err := c.loadState(ctx)
	if err != nil {
		return errorResult("failed to load state", err)
	}

	def, err := c.catalog.Phase(st.CurrentPhase)
	if err != nil {
		return errorResult("unknown current phase", err)
	}

	active, completed, failed := st.TaskCounts()
	data := StatusData{
		Phase:           st.CurrentPhase,
		PhaseName:       def.Name,
		CompletedPhases: st.CompletedPhases,
		PhaseProgress:   c.phases.PhaseProgress(st, st.CurrentPhase),
		OverallProgress: c.phases.OverallProgress(st),
		ActiveTasks:     active,
		CompletedTasks:  completed,
		FailedTasks:     failed,
		WaitingTasks:    len(st.WaitingTasks(st.CurrentPhase)),
		AutoAdvance:     st.AutoAdvance,
		UpdatedAt:       st.UpdatedAt,
	}
	for _, md := range def.Milestones {
		if ms, exists := st.Milestones[md.ID]; exists {
			data.Milestones = append(data.Milestones, ms)
		}
	}
	if c.engine != nil {
		data.Running = c.engine.Running()
		data.Paused = c.engine.Paused()
	}

	return success(fmt.Sprintf("phase %d (%s), %.0f%% overall", data.Phase, data.PhaseName, data.OverallProgress*100), data)
}

// Advance attempts to move the workflow to the next phase.
func (c *Controller) Advance(ctx context.Context) domain.CommandResult {
	var (
		advanced bool
		phaseNum int
	)
	err := c.mutate(ctx, func(st *store.State) error {
		var advErr error
		advanced, advErr = c.phases.AdvancePhase(ctx, st)
		phaseNum = st.CurrentPhase
		return advErr
	})
	if err != nil {
		return errorResult("failed to advance phase", err)
	}
	if !advanced {
		return errorResult(fmt.Sprintf("phase %d not ready to advance", phaseNum),
			foremanerrors.ErrPhaseIncomplete)
	}
	return success(fmt.Sprintf("advanced to phase %d", phaseNum), nil)
}

// Rollback moves the workflow back one phase, taking a durable backup first.
func (c *Controller) Rollback(ctx context.Context) domain.CommandResult {
	var (
		rolled   bool
		phaseNum int
		backup   string
	)
	err := c.mutate(ctx, func(st *store.State) error {
		b, backupErr := c.store.Backup(ctx, st)
		if backupErr != nil {
			return fmt.Errorf("failed to back up state: %w", backupErr)
		}
		backup = b
		var rollErr error
		rolled, rollErr = c.phases.RollbackPhase(ctx, st)
		phaseNum = st.CurrentPhase
		return rollErr
	})
	if err != nil {
		return errorResult("failed to roll back phase", err)
	}
	if !rolled {
		return errorResult("already at phase 0, cannot roll back",
			foremanerrors.ErrPhaseOutOfRange)
	}
	return success(fmt.Sprintf("rolled back to phase %d (backup %s)", phaseNum, backup), nil)
}

// RunTests runs the current phase's exit test.
func (c *Controller) RunTests(ctx context.Context) domain.CommandResult {
	st, err := c.loadState(ctx)
	if err != nil {
		return errorResult("failed to load state", err)
	}

	if err := c.phases.RunExitTest(ctx, st); err != nil {
		return errorResult(fmt.Sprintf("phase %d exit test failed", st.CurrentPhase), err)
	}
	return success(fmt.Sprintf("phase %d exit test passed", st.CurrentPhase), nil)
}

// Deploy runs one ad-hoc task for the given role through the retry policy
// engine and records it in the task history.
func (c *Controller) Deploy(ctx context.Context, role domain.Role) domain.CommandResult {
	if !role.IsValid() {
		return failure(fmt.Sprintf("invalid role %d", int(role)))
	}

	ag, err := c.agents.Get(role)
	if err != nil {
		return errorResult(fmt.Sprintf("no agent for role %s", role), err)
	}

	st, err := c.loadState(ctx)
	if err != nil {
		return errorResult("failed to load state", err)
	}

	now := c.clock.Now().UTC()
	task := &domain.AgentTask{
		ID:          fmt.Sprintf("deploy-%s-%s", role, strings.SplitN(uuid.NewString(), "-", 2)[0]),
		Phase:       st.CurrentPhase,
		Role:        role,
		Description: fmt.Sprintf("ad-hoc deploy for role %s", role),
		Status:      constants.TaskStatusActive,
		CreatedAt:   now,
		StartedAt:   &now,
	}

	var result *domain.TaskResult
	execErr := c.retry.ExecuteWithRetry(ctx, "role:"+role.String(), func(ctx context.Context) error {
		res, opErr := ag.Execute(ctx, task)
		if res != nil {
			result = res
		}
		return opErr
	}, c.policy)

	done := c.clock.Now().UTC()
	task.CompletedAt = &done
	task.Result = result
	if execErr != nil {
		task.Status = constants.TaskStatusFailed
		task.Error = execErr.Error()
	} else {
		task.Status = constants.TaskStatusCompleted
	}

	if err := c.mutate(ctx, func(live *store.State) error {
		live.Tasks = append(live.Tasks, task)
		return c.store.Save(ctx, live)
	}); err != nil {
		return errorResult("failed to persist deploy result", err)
	}
	if execErr != nil {
		return errorResult(fmt.Sprintf("deploy for role %s failed", role), execErr)
	}
	return success(fmt.Sprintf("deploy for role %s completed", role), result)
}

// ReportData is the payload returned by GenerateReport.
type ReportData struct {
	GeneratedAt     time.Time                       `json:"generated_at"`
	Phase           int                             `json:"phase"`
	OverallProgress float64                         `json:"overall_progress"`
	Phases          []PhaseReport                   `json:"phases"`
	RoleMetrics     map[string]*domain.AgentMetrics `json:"role_metrics"`
	RetryStats      retry.Stats                     `json:"retry_stats"`
	CheckpointStats recovery.CheckpointStats        `json:"checkpoint_stats"`
	RecentErrors    []domain.ErrorLogEntry          `json:"recent_errors,omitempty"`
	Text            string                          `json:"text"`
}

// PhaseReport is one phase's slice of the report.
type PhaseReport struct {
	Number    int     `json:"number"`
	Name      string  `json:"name"`
	Completed bool    `json:"completed"`
	Progress  float64 `json:"progress"`
}

// GenerateReport builds a full progress report across all phases.
func (c *Controller) GenerateReport(ctx context.Context) domain.CommandResult {
	st, err := c.loadState(ctx)
	if err != nil {
		return errorResult("failed to load state", err)
	}

	report := ReportData{
		GeneratedAt:     c.clock.Now().UTC(),
		Phase:           st.CurrentPhase,
		OverallProgress: c.phases.OverallProgress(st),
		RoleMetrics:     make(map[string]*domain.AgentMetrics),
		RetryStats:      c.retry.Stats(),
		CheckpointStats: c.recovery.Stats(),
	}
	for _, p := range c.catalog.Phases() {
		report.Phases = append(report.Phases, PhaseReport{
			Number:    p.Number,
			Name:      p.Name,
			Completed: st.IsPhaseCompleted(p.Number),
			Progress:  c.phases.PhaseProgress(st, p.Number),
		})
	}
	for role, m := range st.Metrics {
		report.RoleMetrics[role.String()] = m
	}
	if n := len(st.ErrorLog); n > 0 {
		tail := 10
		if n < tail {
			tail = n
		}
		report.RecentErrors = st.ErrorLog[n-tail:]
	}
	report.Text = renderReport(report)

	return success("report generated", report)
}

// DashboardData returns the structured payload dashboards render from.
func (c *Controller) DashboardData(ctx context.Context) domain.CommandResult {
	st, err := c.loadState(ctx)
	if err != nil {
		return errorResult("failed to load state", err)
	}

	active, completed, failed := st.TaskCounts()
	snapshot := domain.ProgressSnapshot{
		Timestamp:       c.clock.Now().UTC(),
		Phase:           st.CurrentPhase,
		PhaseProgress:   c.phases.PhaseProgress(st, st.CurrentPhase),
		OverallProgress: c.phases.OverallProgress(st),
		ActiveTasks:     active,
		CompletedTasks:  completed,
		FailedTasks:     failed,
	}
	return success("dashboard data", snapshot)
}

// ResetBreaker manually closes the circuit breaker for a key. An empty key
// resets every breaker.
func (c *Controller) ResetBreaker(key string) domain.CommandResult {
	c.retry.ResetCircuitBreaker(key)
	if key == "" {
		return success("all circuit breakers reset", nil)
	}
	return success(fmt.Sprintf("circuit breaker %q reset", key), nil)
}

// Pause suspends engine dispatch.
func (c *Controller) Pause(_ context.Context) domain.CommandResult {
	if c.engine == nil {
		return failure("no engine attached")
	}
	c.engine.Pause()
	return success("workflow paused", nil)
}

// Resume re-enables engine dispatch.
func (c *Controller) Resume(_ context.Context) domain.CommandResult {
	if c.engine == nil {
		return failure("no engine attached")
	}
	c.engine.Resume()
	return success("workflow resumed", nil)
}

// loadState prefers the running engine's in-memory document and falls back
// to the store.
func (c *Controller) loadState(ctx context.Context) (*store.State, error) {
	if c.engine != nil && c.engine.Running() {
		if st, err := c.engine.Snapshot(); err == nil {
			return st, nil
		}
	}
	return c.store.Load(ctx)
}

// mutate runs fn against the running engine's live document, so the change
// is visible to subsequent ticks. With no running engine (or one that has
// not loaded state yet) fn gets a freshly loaded document instead.
func (c *Controller) mutate(ctx context.Context, fn func(*store.State) error) error {
	if c.engine != nil && c.engine.Running() {
		err := c.engine.withState(fn)
		if !errors.Is(err, foremanerrors.ErrEngineStopped) {
			return err
		}
	}
	st, err := c.store.Load(ctx)
	if err != nil {
		return err
	}
	return fn(st)
}

// renderReport formats the report as human-readable text.
func renderReport(r ReportData) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Foreman progress report (%s)\n", r.GeneratedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "Current phase: %d, overall progress %.0f%%\n\n", r.Phase, r.OverallProgress*100)
	for _, p := range r.Phases {
		mark := " "
		if p.Completed {
			mark = "x"
		}
		fmt.Fprintf(&b, "  [%s] phase %d %-24s %.0f%%\n", mark, p.Number, p.Name, p.Progress*100)
	}
	fmt.Fprintf(&b, "\nRetry: %d operations, avg %.2f retries, %d open breakers\n",
		r.RetryStats.Operations, r.RetryStats.AvgRetries, r.RetryStats.OpenBreakers)
	fmt.Fprintf(&b, "Checkpoints: %d held\n", r.CheckpointStats.Count)
	if len(r.RecentErrors) > 0 {
		fmt.Fprintf(&b, "Recent errors: %d\n", len(r.RecentErrors))
	}
	return b.String()
}

// success builds a successful CommandResult.
func success(message string, data any) domain.CommandResult {
	return domain.CommandResult{Success: true, Message: message, Data: data}
}

// failure builds an unsuccessful CommandResult without an underlying error.
func failure(message string) domain.CommandResult {
	return domain.CommandResult{Success: false, Message: message}
}

// errorResult builds an unsuccessful CommandResult from an error.
func errorResult(message string, err error) domain.CommandResult {
	return domain.CommandResult{Success: false, Message: message, Error: err.Error()}
}
