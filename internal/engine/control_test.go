package engine

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgecrew/foreman/internal/agent"
	"github.com/forgecrew/foreman/internal/constants"
	"github.com/forgecrew/foreman/internal/domain"
	foremanerrors "github.com/forgecrew/foreman/internal/errors"
	"github.com/forgecrew/foreman/internal/events"
	"github.com/forgecrew/foreman/internal/phase"
	"github.com/forgecrew/foreman/internal/recovery"
	"github.com/forgecrew/foreman/internal/registry"
	"github.com/forgecrew/foreman/internal/retry"
	"github.com/forgecrew/foreman/internal/store"
	"github.com/forgecrew/foreman/internal/testutil"
)

// controllerFixture wires a Controller without a running engine, the way
// one-shot CLI commands use it.
type controllerFixture struct {
	controller *Controller
	store      *store.FileStore
	phases     *phase.Manager
	retry      *retry.Executor
	clock      *testutil.MockClock
}

func newControllerFixture(t *testing.T) *controllerFixture {
	t.Helper()

	logger := zerolog.Nop()
	fs, err := store.NewFileStore(t.TempDir())
	require.NoError(t, err)

	clk := testutil.NewMockClock(time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC))
	catalog := registry.Default()
	recoveryMgr := recovery.NewManager(logger, recovery.WithClock(clk))
	phases := phase.NewManager(catalog, fs, phase.NewValidator(logger), logger,
		phase.WithClock(clk),
		phase.WithExitTestRunner(passExitRunner{}),
		phase.WithCheckpointer(recoveryMgr),
	)
	agents, err := agent.NewDefaultRegistry(logger, nil)
	require.NoError(t, err)
	retryExec := retry.NewExecutor(logger,
		retry.WithClock(clk),
		retry.WithSleep(func(_ context.Context, _ time.Duration) error { return nil }),
	)

	return &controllerFixture{
		controller: NewController(nil, fs, agents, phases, catalog, retryExec, recoveryMgr, logger),
		store:      fs,
		phases:     phases,
		retry:      retryExec,
		clock:      clk,
	}
}

// seedState persists a freshly initialized phase-0 state.
func (f *controllerFixture) seedState(t *testing.T) *store.State {
	t.Helper()
	st := store.NewState(f.clock.Now())
	require.NoError(t, f.phases.InitializePhase(context.Background(), st, 0))
	return st
}

// TestStatus verifies the status payload over persisted state.
func TestStatus(t *testing.T) {
	f := newControllerFixture(t)
	f.seedState(t)

	result := f.controller.Status(context.Background())
	require.True(t, result.Success, result.Message)

	data, ok := result.Data.(StatusData)
	require.True(t, ok)
	assert.Equal(t, 0, data.Phase)
	assert.Equal(t, "Foundation", data.PhaseName)
	assert.Equal(t, 3, data.WaitingTasks)
	assert.Len(t, data.Milestones, 4)
	assert.False(t, data.Running)
}

// TestStatus_NoState verifies the failure envelope when nothing is
// persisted yet.
func TestStatus_NoState(t *testing.T) {
	f := newControllerFixture(t)

	result := f.controller.Status(context.Background())
	assert.False(t, result.Success)
	assert.NotEmpty(t, result.Error)
}

// TestAdvance_NotReady verifies advancing an incomplete phase returns a
// failure envelope without touching the phase.
func TestAdvance_NotReady(t *testing.T) {
	f := newControllerFixture(t)
	f.seedState(t)
	ctx := context.Background()

	result := f.controller.Advance(ctx)
	assert.False(t, result.Success)
	assert.Contains(t, result.Message, "not ready")
	assert.Equal(t, foremanerrors.ErrPhaseIncomplete.Error(), result.Error)

	st, err := f.store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, st.CurrentPhase)
}

// TestAdvance_Ready verifies a completed phase advances and persists.
func TestAdvance_Ready(t *testing.T) {
	f := newControllerFixture(t)
	st := f.seedState(t)
	ctx := context.Background()

	now := f.clock.Now()
	for _, task := range st.PhaseTasks(0) {
		task.Status = constants.TaskStatusCompleted
		task.CompletedAt = &now
	}
	for _, ms := range st.Milestones {
		ms.Status = constants.MilestoneStatusCompleted
	}
	require.NoError(t, f.store.Save(ctx, st))

	result := f.controller.Advance(ctx)
	require.True(t, result.Success, result.Message)
	assert.Contains(t, result.Message, "advanced to phase 1")

	loaded, err := f.store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, loaded.CurrentPhase)
	assert.True(t, loaded.IsPhaseCompleted(0))
}

// TestRollback_AtZero verifies the phase-zero guard, with the backup still
// taken before the refusal.
func TestRollback_AtZero(t *testing.T) {
	f := newControllerFixture(t)
	f.seedState(t)

	result := f.controller.Rollback(context.Background())
	assert.False(t, result.Success)
	assert.Contains(t, result.Message, "cannot roll back")
	assert.Equal(t, foremanerrors.ErrPhaseOutOfRange.Error(), result.Error)
}

// TestRollback verifies a successful rollback names its backup.
func TestRollback(t *testing.T) {
	f := newControllerFixture(t)
	st := f.seedState(t)
	ctx := context.Background()

	st.CurrentPhase = 1
	st.MarkPhaseCompleted(0)
	require.NoError(t, f.store.Save(ctx, st))

	result := f.controller.Rollback(ctx)
	require.True(t, result.Success, result.Message)
	assert.Contains(t, result.Message, "rolled back to phase 0")
	assert.Contains(t, result.Message, "state-")

	loaded, err := f.store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, loaded.CurrentPhase)
	assert.False(t, loaded.IsPhaseCompleted(0))
}

// TestRunTests verifies the exit-test envelope for pass and fail.
func TestRunTests(t *testing.T) {
	f := newControllerFixture(t)
	f.seedState(t)
	ctx := context.Background()

	result := f.controller.RunTests(ctx)
	require.True(t, result.Success, result.Message)
	assert.Contains(t, result.Message, "exit test passed")
}

// TestDeploy verifies an ad-hoc deploy runs the role's agent and lands in
// the task history.
func TestDeploy(t *testing.T) {
	f := newControllerFixture(t)
	f.seedState(t)
	ctx := context.Background()

	result := f.controller.Deploy(ctx, domain.RoleAPI)
	require.True(t, result.Success, result.Message)

	loaded, err := f.store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, loaded.Tasks, 4)

	deploy := loaded.Tasks[len(loaded.Tasks)-1]
	assert.Contains(t, deploy.ID, "deploy-api-")
	assert.Equal(t, constants.TaskStatusCompleted, deploy.Status)
	assert.NotNil(t, deploy.Result)
}

// TestDeploy_InvalidRole verifies the envelope for an unusable role value.
func TestDeploy_InvalidRole(t *testing.T) {
	f := newControllerFixture(t)

	result := f.controller.Deploy(context.Background(), domain.Role(99))
	assert.False(t, result.Success)
	assert.Contains(t, result.Message, "invalid role")
}

// TestGenerateReport verifies the report covers every catalog phase and
// renders text.
func TestGenerateReport(t *testing.T) {
	f := newControllerFixture(t)
	f.seedState(t)

	result := f.controller.GenerateReport(context.Background())
	require.True(t, result.Success, result.Message)

	report, ok := result.Data.(ReportData)
	require.True(t, ok)
	assert.Len(t, report.Phases, 6)
	assert.Equal(t, 0, report.Phase)
	assert.Contains(t, report.Text, "Foreman progress report")
	assert.Contains(t, report.Text, "Foundation")
}

// TestDashboardData verifies the snapshot payload.
func TestDashboardData(t *testing.T) {
	f := newControllerFixture(t)
	f.seedState(t)

	result := f.controller.DashboardData(context.Background())
	require.True(t, result.Success, result.Message)

	snapshot, ok := result.Data.(domain.ProgressSnapshot)
	require.True(t, ok)
	assert.Equal(t, 0, snapshot.Phase)
	assert.Zero(t, snapshot.ActiveTasks)
}

// TestResetBreaker verifies both the single-key and reset-all envelopes.
func TestResetBreaker(t *testing.T) {
	f := newControllerFixture(t)

	result := f.controller.ResetBreaker("role:api")
	require.True(t, result.Success)
	assert.Contains(t, result.Message, `"role:api"`)

	result = f.controller.ResetBreaker("")
	require.True(t, result.Success)
	assert.Contains(t, result.Message, "all circuit breakers")
}

// TestController_NoEngine verifies engine-bound operations fail cleanly
// when no engine is attached.
func TestController_NoEngine(t *testing.T) {
	f := newControllerFixture(t)
	ctx := context.Background()

	for _, result := range []domain.CommandResult{
		f.controller.Start(ctx),
		f.controller.Stop(ctx),
		f.controller.Pause(ctx),
		f.controller.Resume(ctx),
	} {
		assert.False(t, result.Success)
		assert.Contains(t, result.Message, "no engine attached")
	}
}

// TestController_PrefersEngineSnapshot verifies that between ticks a running
// engine's in-memory state wins over the store.
func TestController_PrefersEngineSnapshot(t *testing.T) {
	f := newEngineFixture(t, dryRunAgents(t), WithTickInterval(time.Hour))
	ctx := context.Background()

	dashboards := f.collect(events.KindDashboardUpdate)
	require.NoError(t, f.engine.Start(ctx))
	defer f.engine.Stop()
	waitEvent(t, dashboards)

	c := NewController(f.engine, f.store, f.engine.agents, f.phases, registry.Default(),
		f.engine.retry, f.recovery, zerolog.Nop())

	// A divergent store copy is only adopted at the next tick, an hour away;
	// until then the controller must report the engine's view.
	stale := store.NewState(f.clock.Now())
	stale.CurrentPhase = 4
	require.NoError(t, f.store.Save(ctx, stale))

	result := c.Status(ctx)
	require.True(t, result.Success, result.Message)
	data, ok := result.Data.(StatusData)
	require.True(t, ok)
	assert.Equal(t, 0, data.Phase)
	assert.True(t, data.Running)
}

// TestController_AdvanceVisibleToRunningEngine verifies a control-surface
// advance lands in the running engine's document: the loop dispatches the
// next phase's tasks instead of reverting the persisted change.
func TestController_AdvanceVisibleToRunningEngine(t *testing.T) {
	f := newEngineFixture(t, dryRunAgents(t), WithTickInterval(time.Hour))
	ctx := context.Background()

	require.NoError(t, f.engine.Start(ctx))
	defer f.engine.Stop()

	c := NewController(f.engine, f.store, f.engine.agents, f.phases, registry.Default(),
		f.engine.retry, f.recovery, zerolog.Nop())

	// Work phase 0 to completion tick by tick.
	require.Eventually(t, func() bool {
		f.engine.tick(ctx)
		snap, err := f.engine.Snapshot()
		if err != nil {
			return false
		}
		_, completed, _ := snap.TaskCounts()
		return completed == 3
	}, 2*time.Second, 10*time.Millisecond)

	result := c.Advance(ctx)
	require.True(t, result.Success, result.Message)

	snap, err := f.engine.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, 1, snap.CurrentPhase, "advance must reach the engine's live document")

	// The loop picks up phase-1 work on its next pass.
	require.Eventually(t, func() bool {
		f.engine.tick(ctx)
		snap, err := f.engine.Snapshot()
		if err != nil {
			return false
		}
		_, completed, _ := snap.TaskCounts()
		return completed > 3
	}, 2*time.Second, 10*time.Millisecond)

	// And the engine's own saves keep the advance durable.
	loaded, err := f.store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, loaded.CurrentPhase)
}
