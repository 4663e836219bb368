package phase

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgecrew/foreman/internal/constants"
	"github.com/forgecrew/foreman/internal/domain"
	"github.com/forgecrew/foreman/internal/registry"
	"github.com/forgecrew/foreman/internal/store"
	"github.com/forgecrew/foreman/internal/testutil"
)

// stubExitRunner satisfies ExitTestRunner with a canned result.
type stubExitRunner struct {
	err      error
	commands []string
}

func (r *stubExitRunner) Run(_ context.Context, command string) error {
	r.commands = append(r.commands, command)
	return r.err
}

// stubCheckpointer records checkpoints taken before rollbacks.
type stubCheckpointer struct {
	labels []string
}

func (c *stubCheckpointer) CreateCheckpoint(state json.RawMessage, label string, restorable bool, role *domain.Role) domain.Checkpoint {
	c.labels = append(c.labels, label)
	return domain.Checkpoint{State: state, Label: label, Restorable: restorable, Role: role}
}

// managerFixture wires a Manager over the default catalog with a temp-dir
// store, a passing exit runner, and a fixed clock.
type managerFixture struct {
	manager     *Manager
	store       *store.FileStore
	state       *store.State
	clock       *testutil.MockClock
	exitRunner  *stubExitRunner
	checkpoints *stubCheckpointer
}

func newManagerFixture(t *testing.T, opts ...ValidatorOption) *managerFixture {
	t.Helper()

	fs, err := store.NewFileStore(t.TempDir())
	require.NoError(t, err)

	clk := testutil.NewMockClock(time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC))
	exitRunner := &stubExitRunner{}
	checkpoints := &stubCheckpointer{}

	m := NewManager(
		registry.Default(),
		fs,
		NewValidator(zerolog.Nop(), opts...),
		zerolog.Nop(),
		WithClock(clk),
		WithExitTestRunner(exitRunner),
		WithCheckpointer(checkpoints),
	)

	return &managerFixture{
		manager:     m,
		store:       fs,
		state:       store.NewState(clk.Now()),
		clock:       clk,
		exitRunner:  exitRunner,
		checkpoints: checkpoints,
	}
}

// completePhaseZero drives every phase-0 task and milestone to completed.
func (f *managerFixture) completePhaseZero(t *testing.T) {
	t.Helper()
	ctx := context.Background()

	now := f.clock.Now()
	for _, task := range f.state.PhaseTasks(0) {
		task.Status = constants.TaskStatusCompleted
		task.CompletedAt = &now
	}
	for _, ms := range f.state.Milestones {
		if ms.Phase != 0 {
			continue
		}
		if len(ms.RequiredRoles) > 0 {
			ms.Status = constants.MilestoneStatusInProgress
		}
		done, err := f.manager.ReevaluateMilestone(ctx, f.state, ms.ID)
		require.NoError(t, err)
		require.True(t, done, "milestone %q should complete", ms.ID)
	}
}

// TestInitializePhase_Zero verifies phase 0 creates exactly one waiting task
// per (milestone, required role) pair: three in total, since the docker and
// dependencies milestones carry no required roles.
func TestInitializePhase_Zero(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()

	require.NoError(t, f.manager.InitializePhase(ctx, f.state, 0))

	require.Len(t, f.state.Tasks, 3)
	require.Len(t, f.state.Milestones, 4)

	byMilestone := map[string][]domain.Role{}
	for _, task := range f.state.Tasks {
		assert.Equal(t, constants.TaskStatusWaiting, task.Status)
		assert.Equal(t, 0, task.Phase)
		assert.NotEmpty(t, task.ID)
		byMilestone[task.MilestoneID] = append(byMilestone[task.MilestoneID], task.Role)
	}
	assert.Equal(t, []domain.Role{domain.RoleModels}, byMilestone["database"])
	assert.ElementsMatch(t, []domain.Role{domain.RoleAPI, domain.RoleTest}, byMilestone["health"])
	assert.NotContains(t, byMilestone, "docker")
	assert.NotContains(t, byMilestone, "dependencies")

	for _, ms := range f.state.Milestones {
		assert.Equal(t, constants.MilestoneStatusPending, ms.Status)
	}

	// Earlier milestones carry higher priority; models outranks test within
	// the same milestone.
	tasks := map[string]*domain.AgentTask{}
	for _, task := range f.state.Tasks {
		tasks[task.MilestoneID+"/"+task.Role.String()] = task
	}
	assert.Greater(t, tasks["database/models"].Priority, tasks["health/api"].Priority)
	assert.Greater(t, tasks["health/api"].Priority, tasks["health/test"].Priority)

	// Initialization persists before returning.
	loaded, err := f.store.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, loaded.Tasks, 3)
}

// TestInitializePhase_UnknownPhase verifies an out-of-range phase is
// rejected.
func TestInitializePhase_UnknownPhase(t *testing.T) {
	f := newManagerFixture(t)

	err := f.manager.InitializePhase(context.Background(), f.state, 99)
	require.Error(t, err)
}

// TestReevaluateMilestone_ProbeGates verifies completing the MODELS task
// alone does not complete the database milestone while the phase-specific
// probe still reports false.
func TestReevaluateMilestone_ProbeGates(t *testing.T) {
	probeResult := false
	f := newManagerFixture(t, WithProbe(0, "database", func(_ context.Context, _ *store.State) bool {
		return probeResult
	}))
	ctx := context.Background()

	require.NoError(t, f.manager.InitializePhase(ctx, f.state, 0))

	now := f.clock.Now()
	for _, task := range f.state.MilestoneTasks("database") {
		task.Status = constants.TaskStatusCompleted
		task.CompletedAt = &now
	}
	f.state.Milestones["database"].Status = constants.MilestoneStatusInProgress

	done, err := f.manager.ReevaluateMilestone(ctx, f.state, "database")
	require.NoError(t, err)
	assert.False(t, done, "milestone must stay open until the probe confirms")
	assert.Equal(t, constants.MilestoneStatusInProgress, f.state.Milestones["database"].Status)

	probeResult = true
	done, err = f.manager.ReevaluateMilestone(ctx, f.state, "database")
	require.NoError(t, err)
	assert.True(t, done)
	assert.Equal(t, constants.MilestoneStatusCompleted, f.state.Milestones["database"].Status)
	require.NotNil(t, f.state.Milestones["database"].CompletedAt)
}

// TestReevaluateMilestone_IncompleteTasks verifies a milestone with an
// unfinished bound task stays open.
func TestReevaluateMilestone_IncompleteTasks(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()

	require.NoError(t, f.manager.InitializePhase(ctx, f.state, 0))
	f.state.Milestones["health"].Status = constants.MilestoneStatusInProgress

	tasks := f.state.MilestoneTasks("health")
	require.Len(t, tasks, 2)
	now := f.clock.Now()
	tasks[0].Status = constants.TaskStatusCompleted
	tasks[0].CompletedAt = &now

	done, err := f.manager.ReevaluateMilestone(ctx, f.state, "health")
	require.NoError(t, err)
	assert.False(t, done)
}

// TestReevaluateMilestone_EmptyRoles verifies role-less milestones complete
// vacuously on reevaluation.
func TestReevaluateMilestone_EmptyRoles(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()

	require.NoError(t, f.manager.InitializePhase(ctx, f.state, 0))

	done, err := f.manager.ReevaluateMilestone(ctx, f.state, "docker")
	require.NoError(t, err)
	assert.True(t, done)
	assert.Equal(t, constants.MilestoneStatusCompleted, f.state.Milestones["docker"].Status)
}

// TestReevaluateMilestone_Unknown verifies unknown IDs are rejected.
func TestReevaluateMilestone_Unknown(t *testing.T) {
	f := newManagerFixture(t)

	_, err := f.manager.ReevaluateMilestone(context.Background(), f.state, "no-such-milestone")
	require.Error(t, err)
}

// TestUpdateMilestoneStatus_Timestamps verifies StartedAt is stamped once on
// the first in_progress transition and CompletedAt on completion.
func TestUpdateMilestoneStatus_Timestamps(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()

	require.NoError(t, f.manager.InitializePhase(ctx, f.state, 0))

	require.NoError(t, f.manager.UpdateMilestoneStatus(ctx, f.state, "database", constants.MilestoneStatusInProgress))
	ms := f.state.Milestones["database"]
	require.NotNil(t, ms.StartedAt)
	started := *ms.StartedAt

	f.clock.Advance(5 * time.Minute)
	require.NoError(t, f.manager.UpdateMilestoneStatus(ctx, f.state, "database", constants.MilestoneStatusInProgress))
	assert.True(t, started.Equal(*ms.StartedAt), "StartedAt must not move on repeat transitions")

	require.NoError(t, f.manager.UpdateMilestoneStatus(ctx, f.state, "database", constants.MilestoneStatusCompleted))
	require.NotNil(t, ms.CompletedAt)
	assert.Equal(t, 5*time.Minute, ms.CompletedAt.Sub(*ms.StartedAt))
}

// TestIsCurrentPhaseComplete verifies completion requires both every
// milestone and a passing exit test.
func TestIsCurrentPhaseComplete(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()

	require.NoError(t, f.manager.InitializePhase(ctx, f.state, 0))
	assert.False(t, f.manager.IsCurrentPhaseComplete(ctx, f.state))

	f.completePhaseZero(t)
	assert.True(t, f.manager.IsCurrentPhaseComplete(ctx, f.state))
	assert.Contains(t, f.exitRunner.commands, "make verify-foundation")

	f.exitRunner.err = context.DeadlineExceeded
	assert.False(t, f.manager.IsCurrentPhaseComplete(ctx, f.state))
}

// TestAdvancePhase_Incomplete verifies advancing an incomplete phase returns
// false with no error and changes nothing.
func TestAdvancePhase_Incomplete(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()

	require.NoError(t, f.manager.InitializePhase(ctx, f.state, 0))

	advanced, err := f.manager.AdvancePhase(ctx, f.state)
	require.NoError(t, err)
	assert.False(t, advanced)
	assert.Equal(t, 0, f.state.CurrentPhase)
	assert.Empty(t, f.state.CompletedPhases)
}

// TestAdvancePhase_Success verifies a completed phase advances: the old
// phase joins the completed set and the next phase's tasks are generated.
func TestAdvancePhase_Success(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()

	require.NoError(t, f.manager.InitializePhase(ctx, f.state, 0))
	f.completePhaseZero(t)

	advanced, err := f.manager.AdvancePhase(ctx, f.state)
	require.NoError(t, err)
	assert.True(t, advanced)
	assert.Equal(t, 1, f.state.CurrentPhase)
	assert.True(t, f.state.IsPhaseCompleted(0))

	// Phase 1: domain-model (models) + endpoints (api, test).
	waiting := 0
	for _, task := range f.state.PhaseTasks(1) {
		if task.Status == constants.TaskStatusWaiting {
			waiting++
		}
	}
	assert.Equal(t, 3, waiting)
}

// TestAdvancePhase_AtLastPhase verifies the final phase never advances.
func TestAdvancePhase_AtLastPhase(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()

	f.state.CurrentPhase = registry.Default().MaxPhase()

	advanced, err := f.manager.AdvancePhase(ctx, f.state)
	require.NoError(t, err)
	assert.False(t, advanced)
}

// TestAdvancePhase_DependencyGate verifies a next phase whose prerequisites
// are not in the completed set does not become current. Phase 3 depends on
// phases 1 and 2; with phase 1 missing from the completed set, a complete
// phase 2 must not advance.
func TestAdvancePhase_DependencyGate(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()

	f.state.CurrentPhase = 2
	require.NoError(t, f.manager.InitializePhase(ctx, f.state, 2))
	now := f.clock.Now()
	for _, task := range f.state.PhaseTasks(2) {
		task.Status = constants.TaskStatusCompleted
		task.CompletedAt = &now
	}
	for _, ms := range f.state.Milestones {
		if ms.Phase == 2 {
			ms.Status = constants.MilestoneStatusCompleted
		}
	}

	advanced, err := f.manager.AdvancePhase(ctx, f.state)
	require.NoError(t, err)
	assert.False(t, advanced)
	assert.Equal(t, 2, f.state.CurrentPhase)

	f.state.MarkPhaseCompleted(1)
	advanced, err = f.manager.AdvancePhase(ctx, f.state)
	require.NoError(t, err)
	assert.True(t, advanced)
	assert.Equal(t, 3, f.state.CurrentPhase)
}

// TestRollbackPhase_AtZero verifies rolling back below phase zero is
// forbidden and leaves state untouched.
func TestRollbackPhase_AtZero(t *testing.T) {
	f := newManagerFixture(t)

	rolled, err := f.manager.RollbackPhase(context.Background(), f.state)
	require.NoError(t, err)
	assert.False(t, rolled)
	assert.Equal(t, 0, f.state.CurrentPhase)
	assert.Empty(t, f.checkpoints.labels, "no checkpoint for a refused rollback")
}

// TestRollbackPhase verifies rollback checkpoints first, then decrements the
// phase and removes the redone phase from the completed set.
func TestRollbackPhase(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()

	f.state.CurrentPhase = 2
	f.state.MarkPhaseCompleted(0)
	f.state.MarkPhaseCompleted(1)

	rolled, err := f.manager.RollbackPhase(ctx, f.state)
	require.NoError(t, err)
	assert.True(t, rolled)
	assert.Equal(t, 1, f.state.CurrentPhase)
	assert.False(t, f.state.IsPhaseCompleted(1), "redone phase leaves the completed set")
	assert.True(t, f.state.IsPhaseCompleted(0))
	require.Len(t, f.checkpoints.labels, 1)
	assert.Contains(t, f.checkpoints.labels[0], "pre-rollback")

	// Rollback persists before returning.
	loaded, err := f.store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, loaded.CurrentPhase)
}

// TestAutoAdvance verifies completing the last milestone advances the phase
// immediately when auto-advance is on.
func TestAutoAdvance(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()

	f.state.AutoAdvance = true
	require.NoError(t, f.manager.InitializePhase(ctx, f.state, 0))
	f.completePhaseZero(t)

	assert.Equal(t, 1, f.state.CurrentPhase)
	assert.True(t, f.state.IsPhaseCompleted(0))
}

// TestPhaseProgress verifies the per-phase mean over milestone
// contributions.
func TestPhaseProgress(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()

	require.NoError(t, f.manager.InitializePhase(ctx, f.state, 0))
	assert.InDelta(t, 0.0, f.manager.PhaseProgress(f.state, 0), 0.0001)

	// One of four milestones completed, one in progress: (1 + 0.5) / 4.
	f.state.Milestones["docker"].Status = constants.MilestoneStatusCompleted
	f.state.Milestones["database"].Status = constants.MilestoneStatusInProgress
	assert.InDelta(t, 0.375, f.manager.PhaseProgress(f.state, 0), 0.0001)
}

// TestOverallProgress verifies the mean across all six catalog phases.
func TestOverallProgress(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()

	assert.InDelta(t, 0.0, f.manager.OverallProgress(f.state), 0.0001)

	f.state.MarkPhaseCompleted(0)
	f.state.CurrentPhase = 1
	require.NoError(t, f.manager.InitializePhase(ctx, f.state, 1))

	// Phase 0 complete, phase 1 half done: (1 + 0.25) / 6.
	f.state.Milestones["domain-model"].Status = constants.MilestoneStatusInProgress
	assert.InDelta(t, (1.0+0.25)/6.0, f.manager.OverallProgress(f.state), 0.0001)
}
