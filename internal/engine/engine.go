// Package engine implements the Foreman control loop: a single cooperative
// scheduler on a fixed timer that dispatches waiting tasks to role agents
// through the retry policy engine, applies results as they arrive, and
// re-evaluates milestone and phase completion against the persisted state.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/forgecrew/foreman/internal/agent"
	"github.com/forgecrew/foreman/internal/clock"
	"github.com/forgecrew/foreman/internal/constants"
	"github.com/forgecrew/foreman/internal/domain"
	foremanerrors "github.com/forgecrew/foreman/internal/errors"
	"github.com/forgecrew/foreman/internal/events"
	"github.com/forgecrew/foreman/internal/phase"
	"github.com/forgecrew/foreman/internal/recovery"
	"github.com/forgecrew/foreman/internal/retry"
	"github.com/forgecrew/foreman/internal/store"
)

// Engine is the top-level scheduler. One instance owns the in-memory state
// document; all mutation happens under stateMu and is persisted through the
// store before it is observable elsewhere.
type Engine struct {
	store    store.Store
	agents   *agent.Registry
	phases   *phase.Manager
	retry    *retry.Executor
	policy   retry.Policy
	recovery *recovery.Manager
	bus      *events.Bus
	metrics  Metrics
	clock    clock.Clock
	logger   zerolog.Logger

	tickInterval time.Duration
	errorLogCap  int
	autoAdvance  bool

	stateMu sync.Mutex
	state   *store.State

	running atomic.Bool
	ticking atomic.Bool
	paused  atomic.Bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock sets the engine clock.
func WithClock(c clock.Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithTickInterval sets the control-loop tick interval.
func WithTickInterval(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.tickInterval = d
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m Metrics) Option {
	return func(e *Engine) {
		if m != nil {
			e.metrics = m
		}
	}
}

// WithPolicy sets the retry policy used for agent dispatch.
func WithPolicy(p retry.Policy) Option {
	return func(e *Engine) { e.policy = p }
}

// WithErrorLogCap bounds the rolling in-state error log.
func WithErrorLogCap(n int) Option {
	return func(e *Engine) { e.errorLogCap = n }
}

// WithAutoAdvance controls whether a completed phase advances immediately.
func WithAutoAdvance(enabled bool) Option {
	return func(e *Engine) { e.autoAdvance = enabled }
}

// New creates an engine. The store, agent registry, phase manager, retry
// executor, recovery manager, and event bus are injected; there are no
// hidden globals.
func New(
	st store.Store,
	agents *agent.Registry,
	phases *phase.Manager,
	retryExec *retry.Executor,
	recoveryMgr *recovery.Manager,
	bus *events.Bus,
	logger zerolog.Logger,
	opts ...Option,
) *Engine {
	e := &Engine{
		store:        st,
		agents:       agents,
		phases:       phases,
		retry:        retryExec,
		policy:       retry.DefaultPolicy(),
		recovery:     recoveryMgr,
		bus:          bus,
		metrics:      NoopMetrics{},
		clock:        clock.RealClock{},
		logger:       logger.With().Str("component", "engine").Logger(),
		tickInterval: constants.DefaultTickInterval,
		errorLogCap:  constants.DefaultErrorLogCap,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start loads or creates the state document and launches the control loop.
// Calling Start on a running engine is a no-op.
func (e *Engine) Start(ctx context.Context) error {
	if !e.running.CompareAndSwap(false, true) {
		return nil
	}

	st, err := e.store.Load(ctx)
	switch {
	case errors.Is(err, foremanerrors.ErrStateNotFound):
		st = store.NewState(e.clock.Now())
		st.AutoAdvance = e.autoAdvance
		if err := e.phases.InitializePhase(ctx, st, 0); err != nil {
			e.running.Store(false)
			return err
		}
		e.logger.Info().Msg("no existing state, starting fresh at phase 0")
	case err != nil:
		e.running.Store(false)
		return err
	default:
		e.logger.Info().
			Int("phase", st.CurrentPhase).
			Int("tasks", len(st.Tasks)).
			Msg("resuming from persisted state")
	}

	e.stateMu.Lock()
	e.state = st
	e.stateMu.Unlock()

	runCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.done = make(chan struct{})
	go e.run(runCtx)

	e.logger.Info().Dur("tick_interval", e.tickInterval).Msg("engine started")
	return nil
}

// Stop prevents future ticks from starting new dispatches and waits for the
// control loop to exit. Already-dispatched tasks are not canceled mid-flight.
// Calling Stop on a stopped engine is a no-op.
func (e *Engine) Stop() {
	if !e.running.CompareAndSwap(true, false) {
		return
	}
	e.cancel()
	<-e.done
	e.logger.Info().Msg("engine stopped")
}

// Running reports whether the control loop is active.
func (e *Engine) Running() bool { return e.running.Load() }

// Paused reports whether dispatch is paused for human adjudication.
func (e *Engine) Paused() bool { return e.paused.Load() }

// Pause suspends dispatch without stopping the control loop.
func (e *Engine) Pause() {
	e.paused.Store(true)
	e.logger.Warn().Msg("workflow paused")
}

// Resume re-enables dispatch after a pause.
func (e *Engine) Resume() {
	e.paused.Store(false)
	e.logger.Info().Msg("workflow resumed")
}

// Snapshot returns a deep copy of the current state document.
func (e *Engine) Snapshot() (*store.State, error) {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()
	if e.state == nil {
		return nil, foremanerrors.ErrStateNotFound
	}
	return store.CloneState(e.state)
}

// withState runs fn against the live in-memory document under stateMu, so
// control-surface mutations are visible to the next tick instead of being
// overwritten by the loop's own saves. Returns ErrEngineStopped when no
// document has been loaded yet.
func (e *Engine) withState(fn func(*store.State) error) error {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()
	if e.state == nil {
		return foremanerrors.ErrEngineStopped
	}
	return fn(e.state)
}

// run is the control loop goroutine.
func (e *Engine) run(ctx context.Context) {
	defer close(e.done)

	ticker := time.NewTicker(e.tickInterval)
	defer ticker.Stop()

	e.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.tick(ctx)
		}
	}
}

// tick runs one scheduling pass. A tick that starts while the previous one
// is still running is skipped: the loop is cooperative, never re-entrant.
func (e *Engine) tick(ctx context.Context) {
	if !e.ticking.CompareAndSwap(false, true) {
		e.logger.Debug().Msg("previous tick still running, skipping")
		return
	}
	defer e.ticking.Store(false)

	if err := ctx.Err(); err != nil {
		return
	}

	e.metrics.TickStarted()
	start := e.clock.Now()
	defer func() { e.metrics.TickCompleted(e.clock.Now().Sub(start)) }()

	e.stateMu.Lock()
	e.reconcileState(ctx)
	e.stateMu.Unlock()

	if e.paused.Load() {
		e.stateMu.Lock()
		e.snapshotProgress(ctx)
		e.stateMu.Unlock()
		return
	}

	candidates := e.beginDispatch(ctx)

	if len(candidates) > 0 {
		g, gctx := errgroup.WithContext(ctx)
		for _, task := range candidates {
			g.Go(func() error {
				e.dispatch(gctx, task)
				return nil
			})
		}
		_ = g.Wait()
	}

	e.stateMu.Lock()
	e.reevaluateCurrentPhase(ctx)
	e.snapshotProgress(ctx)
	e.stateMu.Unlock()
}

// beginDispatch selects eligible tasks, checkpoints the pre-dispatch state,
// and marks the selection active.
func (e *Engine) beginDispatch(ctx context.Context) []*domain.AgentTask {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()

	st := e.state
	if st == nil {
		return nil
	}

	candidates := e.eligibleTasks(st)
	if len(candidates) == 0 {
		return nil
	}

	if encoded, err := store.EncodeState(st); err == nil {
		e.recovery.CreateCheckpoint(encoded,
			fmt.Sprintf("pre-dispatch phase %d", st.CurrentPhase), true, nil)
	} else {
		e.tickError(ctx, st, fmt.Errorf("failed to checkpoint before dispatch: %w", err))
	}

	now := e.clock.Now().UTC()
	for _, task := range candidates {
		task.Status = constants.TaskStatusActive
		task.StartedAt = &now
		if ms, exists := st.Milestones[task.MilestoneID]; exists && ms.Status == constants.MilestoneStatusPending {
			ms.Status = constants.MilestoneStatusInProgress
			ms.StartedAt = &now
		}
	}
	if err := e.store.Save(ctx, st); err != nil {
		// Undo the in-memory transition so the next tick retries the batch.
		for _, task := range candidates {
			task.Status = constants.TaskStatusWaiting
			task.StartedAt = nil
		}
		e.tickError(ctx, st, fmt.Errorf("failed to persist dispatch batch: %w", err))
		return nil
	}

	return candidates
}

// eligibleTasks returns the waiting tasks of the current phase that can be
// dispatched this tick, highest priority first. A task is skipped when its
// role has no registered agent, the agent is busy or already selected this
// tick, or any of the agent's upstream-role dependencies still has
// incomplete tasks in the phase.
func (e *Engine) eligibleTasks(st *store.State) []*domain.AgentTask {
	waiting := st.WaitingTasks(st.CurrentPhase)
	sort.SliceStable(waiting, func(i, j int) bool {
		return waiting[i].Priority > waiting[j].Priority
	})

	var selected []*domain.AgentTask
	taken := make(map[domain.Role]bool)
	for _, task := range waiting {
		if taken[task.Role] {
			continue
		}
		ag, err := e.agents.Get(task.Role)
		if err != nil {
			e.logger.Debug().Str("task_id", task.ID).Str("role", task.Role.String()).Msg("no agent registered, skipping")
			continue
		}
		if ag.Busy() {
			continue
		}
		if !e.dependenciesReady(st, ag) {
			continue
		}
		taken[task.Role] = true
		selected = append(selected, task)
	}
	return selected
}

// dependenciesReady checks the agent's upstream-role dependency gate: every
// task of each dependency role in the current phase must be completed.
func (e *Engine) dependenciesReady(st *store.State, ag agent.Agent) bool {
	for _, dep := range ag.Dependencies() {
		if !st.RoleTasksComplete(st.CurrentPhase, dep) {
			return false
		}
	}
	return true
}

// dispatch executes one task through the retry policy engine and applies the
// outcome.
func (e *Engine) dispatch(ctx context.Context, task *domain.AgentTask) {
	ag, err := e.agents.Get(task.Role)
	if err != nil {
		e.applyResult(ctx, task, nil, err, 0, 1)
		return
	}

	e.metrics.TaskDispatched(task.Role.String())
	e.bus.Publish(events.Event{
		Kind:   events.KindTaskStarted,
		TaskID: task.ID,
		Role:   &task.Role,
		Phase:  task.Phase,
	})

	key := "role:" + task.Role.String()
	var (
		result   *domain.TaskResult
		attempts int
	)
	op := func(ctx context.Context) error {
		attempts++
		res, execErr := ag.Execute(ctx, task)
		if res != nil {
			result = res
		}
		if execErr != nil {
			return execErr
		}
		if res == nil {
			return fmt.Errorf("agent %q result %w", ag.Name(), foremanerrors.ErrEmptyValue)
		}
		if res.HasConflict() {
			// Conflicts are business violations, not call failures; they are
			// handled outside the retry path.
			return nil
		}
		if !res.Success {
			return fmt.Errorf("%w: %s", foremanerrors.ErrCommandFailed, res.Error)
		}
		return nil
	}

	start := e.clock.Now()
	execErr := e.retry.ExecuteWithRetry(ctx, key, op, e.policy)
	elapsed := e.clock.Now().Sub(start)

	e.applyResult(ctx, task, result, execErr, elapsed, attempts)
}

// applyResult folds one task outcome into the state document. Results are
// applied task-by-task in arrival order; milestone re-evaluation always
// reads the state as of this application, never a stale snapshot.
func (e *Engine) applyResult(ctx context.Context, task *domain.AgentTask, result *domain.TaskResult, execErr error, elapsed time.Duration, attempts int) {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()

	st := e.state
	now := e.clock.Now().UTC()

	// The document may have been swapped since dispatch (checkpoint restore,
	// external update); fold the outcome into its current copy of the task.
	if current := st.Task(task.ID); current != nil {
		task = current
	}

	if result.HasConflict() {
		e.applyConflict(ctx, st, task, result, now)
		return
	}

	if execErr != nil {
		e.applyFailure(ctx, task, result, execErr, now, attempts)
		return
	}

	task.Status = constants.TaskStatusCompleted
	task.CompletedAt = &now
	task.Result = result
	task.Error = ""
	st.RoleMetrics(task.Role).RecordCompletion(elapsed, now)

	if err := e.store.Save(ctx, st); err != nil {
		e.tickError(ctx, st, fmt.Errorf("failed to persist task completion: %w", err))
	}

	e.metrics.TaskCompleted(task.Role.String(), elapsed)
	e.bus.Publish(events.Event{
		Kind:   events.KindTaskCompleted,
		TaskID: task.ID,
		Role:   &task.Role,
		Phase:  task.Phase,
	})
	e.logger.Info().
		Str("task_id", task.ID).
		Str("role", task.Role.String()).
		Dur("elapsed", elapsed).
		Msg("task completed")

	prevPhase := st.CurrentPhase
	if _, err := e.phases.ReevaluateMilestone(ctx, st, task.MilestoneID); err != nil {
		e.tickError(ctx, st, fmt.Errorf("failed to re-evaluate milestone %q: %w", task.MilestoneID, err))
	}
	e.notePhaseChange(st, prevPhase)
}

// applyConflict handles a result carrying a conflict marker: the task is
// marked failed, the conflict is logged, and the workflow pauses for human
// adjudication. The ordinary failure path (retry, rollback) does not apply.
func (e *Engine) applyConflict(ctx context.Context, st *store.State, task *domain.AgentTask, result *domain.TaskResult, now time.Time) {
	conflict := result.Metadata.Conflict
	task.Status = constants.TaskStatusFailed
	task.CompletedAt = &now
	task.Result = result
	task.Error = fmt.Sprintf("conflict detected: %s (%d findings)", conflict.Type, len(conflict.Findings))
	st.RoleMetrics(task.Role).RecordFailure(now)
	e.paused.Store(true)

	e.recordError(ctx, st, domain.ErrorLogEntry{
		Timestamp:   now,
		Phase:       st.CurrentPhase,
		Role:        &task.Role,
		MilestoneID: task.MilestoneID,
		Message:     task.Error,
		Severity:    conflict.Severity,
	})

	if err := e.store.Save(ctx, st); err != nil {
		e.logger.Error().Err(err).Msg("failed to persist conflict outcome")
	}

	e.metrics.TaskFailed(task.Role.String())
	e.metrics.ConflictDetected()
	e.bus.Publish(events.Event{
		Kind:    events.KindTaskFailed,
		TaskID:  task.ID,
		Role:    &task.Role,
		Phase:   task.Phase,
		Message: task.Error,
	})
	e.bus.Publish(events.Event{
		Kind:    events.KindConflictDetected,
		TaskID:  task.ID,
		Role:    &task.Role,
		Phase:   task.Phase,
		Message: task.Error,
		Payload: conflict,
	})
	e.bus.Publish(events.Event{
		Kind:    events.KindWorkflowPaused,
		TaskID:  task.ID,
		Phase:   task.Phase,
		Message: "workflow paused for conflict adjudication",
	})

	e.logger.Warn().
		Str("task_id", task.ID).
		Str("conflict_type", conflict.Type).
		Int("findings", len(conflict.Findings)).
		Msg("conflict detected, workflow paused")
}

// applyFailure classifies an exhausted or non-retryable failure and branches
// on the recovery decision.
func (e *Engine) applyFailure(ctx context.Context, task *domain.AgentTask, result *domain.TaskResult, execErr error, now time.Time, attempts int) {
	retriesUsed := attempts - 1
	if retriesUsed < 0 {
		retriesUsed = 0
	}
	decision := e.recovery.HandleError(execErr, recovery.Context{
		TaskID:      task.ID,
		Role:        &task.Role,
		RetriesUsed: retriesUsed,
	})

	st := e.state
	if decision.Action == recovery.ActionRollback {
		if restored := e.restoreLatestCheckpoint(ctx); restored != nil {
			st = restored
			// The restored snapshot holds the pre-dispatch copy of the task.
			if t := st.Task(task.ID); t != nil {
				task = t
			}
		}
	}

	task.Status = constants.TaskStatusFailed
	task.CompletedAt = &now
	task.Result = result
	task.Error = execErr.Error()
	st.RoleMetrics(task.Role).RecordFailure(now)

	e.recordError(ctx, st, domain.ErrorLogEntry{
		Timestamp:   now,
		Phase:       st.CurrentPhase,
		Role:        &task.Role,
		MilestoneID: task.MilestoneID,
		Message:     execErr.Error(),
		Severity:    constants.SeverityHigh,
	})

	if err := e.store.Save(ctx, st); err != nil {
		e.logger.Error().Err(err).Msg("failed to persist task failure")
	}

	e.metrics.TaskFailed(task.Role.String())
	e.bus.Publish(events.Event{
		Kind:    events.KindTaskFailed,
		TaskID:  task.ID,
		Role:    &task.Role,
		Phase:   task.Phase,
		Message: execErr.Error(),
	})

	switch decision.Action {
	case recovery.ActionPauseWorkflow:
		e.paused.Store(true)
		e.bus.Publish(events.Event{
			Kind:    events.KindWorkflowPaused,
			TaskID:  task.ID,
			Phase:   st.CurrentPhase,
			Message: "workflow paused",
		})
	case recovery.ActionCircuitBreak:
		key := "role:" + task.Role.String()
		e.metrics.CircuitOpened(key)
		e.bus.Publish(events.Event{
			Kind:    events.KindCircuitBreak,
			TaskID:  task.ID,
			Role:    &task.Role,
			Phase:   st.CurrentPhase,
			Message: fmt.Sprintf("circuit break on %s", key),
		})
	case recovery.ActionRollback, recovery.ActionFailImmediately:
	}

	e.logger.Error().
		Err(execErr).
		Str("task_id", task.ID).
		Str("action", decision.Action.String()).
		Int("retries_used", decision.RetriesUsed).
		Msg("task failed")
}

// reconcileState adopts the persisted document when another process saved a
// newer revision than the one in memory, so a one-shot command run beside
// the loop is picked up instead of being overwritten by the next save.
// Caller must hold stateMu.
func (e *Engine) reconcileState(ctx context.Context) {
	if e.state == nil {
		return
	}
	persisted, err := e.store.Load(ctx)
	if err != nil {
		return
	}
	if persisted.UpdatedAt.After(e.state.UpdatedAt) {
		e.logger.Info().
			Int("phase", persisted.CurrentPhase).
			Time("updated_at", persisted.UpdatedAt).
			Msg("adopting state updated outside the engine")
		e.state = persisted
	}
}

// restoreLatestCheckpoint replaces the in-memory state with the most recent
// restorable checkpoint. Caller must hold stateMu. Returns nil when no
// restorable checkpoint exists or decoding fails.
func (e *Engine) restoreLatestCheckpoint(ctx context.Context) *store.State {
	cp, err := e.recovery.LatestRestorable()
	if err != nil {
		e.logger.Warn().Err(err).Msg("rollback requested but no restorable checkpoint")
		return nil
	}
	restored, err := store.DecodeState(cp.State)
	if err != nil {
		e.logger.Error().Err(err).Str("checkpoint_id", cp.ID).Msg("failed to decode checkpoint")
		return nil
	}
	e.state = restored
	if err := e.store.Save(ctx, restored); err != nil {
		e.logger.Error().Err(err).Msg("failed to persist restored checkpoint")
	}
	e.logger.Warn().
		Str("checkpoint_id", cp.ID).
		Str("label", cp.Label).
		Msg("state restored from checkpoint")
	return restored
}

// reevaluateCurrentPhase re-checks every non-completed milestone of the
// current phase. Milestones with no required roles (and therefore no tasks)
// complete through validation alone. Caller must hold stateMu.
func (e *Engine) reevaluateCurrentPhase(ctx context.Context) {
	st := e.state
	if st == nil {
		return
	}

	prevPhase := st.CurrentPhase
	for id, ms := range st.Milestones {
		if ms.Phase != st.CurrentPhase || ms.Status == constants.MilestoneStatusCompleted {
			continue
		}
		if _, err := e.phases.ReevaluateMilestone(ctx, st, id); err != nil {
			e.tickError(ctx, st, fmt.Errorf("failed to re-evaluate milestone %q: %w", id, err))
		}
		if st.CurrentPhase != prevPhase {
			break
		}
	}
	e.notePhaseChange(st, prevPhase)
}

// snapshotProgress records a progress snapshot after a tick: the durable
// progress log gets a human-readable line and subscribers get a dashboard
// update. Caller must hold stateMu.
func (e *Engine) snapshotProgress(ctx context.Context) {
	st := e.state
	if st == nil {
		return
	}

	active, completed, failed := st.TaskCounts()
	snapshot := domain.ProgressSnapshot{
		Timestamp:       e.clock.Now().UTC(),
		Phase:           st.CurrentPhase,
		PhaseProgress:   e.phases.PhaseProgress(st, st.CurrentPhase),
		OverallProgress: e.phases.OverallProgress(st),
		ActiveTasks:     active,
		CompletedTasks:  completed,
		FailedTasks:     failed,
	}
	if eta := estimateCompletion(st.CreatedAt, snapshot.Timestamp, snapshot.OverallProgress); eta != nil {
		snapshot.EstimatedCompletion = eta
	}

	line := fmt.Sprintf("%s phase=%d phase_progress=%.2f overall=%.2f active=%d completed=%d failed=%d",
		snapshot.Timestamp.Format(time.RFC3339), snapshot.Phase, snapshot.PhaseProgress,
		snapshot.OverallProgress, active, completed, failed)
	if err := e.store.AppendProgress(ctx, line); err != nil {
		e.logger.Warn().Err(err).Msg("failed to append progress log")
	}

	e.metrics.ProgressUpdated(snapshot.OverallProgress)
	e.bus.Publish(events.Event{
		Kind:    events.KindDashboardUpdate,
		Phase:   snapshot.Phase,
		Payload: snapshot,
	})
}

// notePhaseChange emits phase-change telemetry when the current phase moved.
// Caller must hold stateMu.
func (e *Engine) notePhaseChange(st *store.State, prevPhase int) {
	if st.CurrentPhase == prevPhase {
		return
	}
	e.metrics.PhaseChanged(st.CurrentPhase)
	kind := events.KindPhaseAdvanced
	if st.CurrentPhase < prevPhase {
		kind = events.KindPhaseRolledBack
	}
	e.bus.Publish(events.Event{
		Kind:    kind,
		Phase:   st.CurrentPhase,
		Message: fmt.Sprintf("phase %d -> %d", prevPhase, st.CurrentPhase),
	})
}

// tickError records a non-fatal scheduler fault: the tick continues, the
// error goes to the rolling and durable logs, and subscribers are notified.
func (e *Engine) tickError(ctx context.Context, st *store.State, err error) {
	e.logger.Error().Err(err).Msg("tick error")
	e.recordError(ctx, st, domain.ErrorLogEntry{
		Timestamp: e.clock.Now().UTC(),
		Phase:     st.CurrentPhase,
		Message:   err.Error(),
		Severity:  constants.SeverityHigh,
	})
	e.bus.Publish(events.Event{
		Kind:    events.KindError,
		Phase:   st.CurrentPhase,
		Message: err.Error(),
	})
}

// recordError appends an entry to the rolling in-state error log and mirrors
// it to the durable JSON-lines log.
func (e *Engine) recordError(ctx context.Context, st *store.State, entry domain.ErrorLogEntry) {
	st.AppendError(entry, e.errorLogCap)
	if err := e.store.AppendErrorLog(ctx, entry); err != nil {
		e.logger.Warn().Err(err).Msg("failed to append durable error log")
	}
}

// estimateCompletion projects a finish time by linear extrapolation of
// overall progress over elapsed wall time. Returns nil when progress is too
// small to extrapolate from.
func estimateCompletion(createdAt, now time.Time, overall float64) *time.Time {
	if overall <= 0.01 || overall >= 1.0 || !createdAt.Before(now) {
		return nil
	}
	elapsed := now.Sub(createdAt)
	total := time.Duration(float64(elapsed) / overall)
	eta := createdAt.Add(total)
	return &eta
}
