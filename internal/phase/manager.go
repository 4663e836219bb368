package phase

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/forgecrew/foreman/internal/clock"
	"github.com/forgecrew/foreman/internal/constants"
	"github.com/forgecrew/foreman/internal/domain"
	foremanerrors "github.com/forgecrew/foreman/internal/errors"
	"github.com/forgecrew/foreman/internal/registry"
	"github.com/forgecrew/foreman/internal/store"
)

// priorityBase anchors derived task priorities; earlier milestones within a
// phase get higher values.
const priorityBase = 100

// rolePriority orders dispatch within a milestone: schema work before the
// layers that consume it, verification last.
var rolePriority = [domain.NumRoles]int{
	domain.RoleAPI:         6,
	domain.RoleModels:      7,
	domain.RoleTest:        1,
	domain.RoleRealtime:    5,
	domain.RoleQuality:     2,
	domain.RoleIntegration: 4,
	domain.RoleSecurity:    3,
}

// Checkpointer is the slice of the recovery manager the phase manager needs
// to snapshot state before a rollback.
type Checkpointer interface {
	CreateCheckpoint(state json.RawMessage, label string, restorable bool, role *domain.Role) domain.Checkpoint
}

// Manager orchestrates the phase lifecycle: it initializes milestones and
// tasks for a phase, computes progress, advances or rolls back phases, and
// enforces phase dependency gating. All state mutation goes through the
// store so every change is durable before it is observable.
type Manager struct {
	registry    *registry.Registry
	store       store.Store
	validator   *Validator
	exitTests   ExitTestRunner
	checkpoints Checkpointer
	clock       clock.Clock
	logger      zerolog.Logger
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithClock sets the clock used for milestone and task timestamps.
func WithClock(c clock.Clock) ManagerOption {
	return func(m *Manager) { m.clock = c }
}

// WithExitTestRunner replaces the default shell exit-test runner.
func WithExitTestRunner(r ExitTestRunner) ManagerOption {
	return func(m *Manager) { m.exitTests = r }
}

// WithCheckpointer sets the checkpointer used before rollbacks.
func WithCheckpointer(c Checkpointer) ManagerOption {
	return func(m *Manager) { m.checkpoints = c }
}

// NewManager creates a phase manager.
func NewManager(reg *registry.Registry, st store.Store, validator *Validator, logger zerolog.Logger, opts ...ManagerOption) *Manager {
	m := &Manager{
		registry:  reg,
		store:     st,
		validator: validator,
		clock:     clock.RealClock{},
		logger:    logger.With().Str("component", "phase").Logger(),
	}
	if m.exitTests == nil {
		m.exitTests = NewShellExitRunner(logger)
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// InitializePhase resets every milestone of the phase to pending and
// generates one waiting task per (milestone, required role) pair. Previously
// generated tasks are kept: the task list is append-only history.
func (m *Manager) InitializePhase(ctx context.Context, st *store.State, phaseNum int) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	def, err := m.registry.Phase(phaseNum)
	if err != nil {
		return err
	}

	now := m.clock.Now().UTC()
	created := 0
	for i, md := range def.Milestones {
		st.Milestones[md.ID] = &domain.Milestone{
			ID:            md.ID,
			Phase:         phaseNum,
			Name:          md.Name,
			Description:   md.Description,
			Status:        constants.MilestoneStatusPending,
			RequiredRoles: append([]domain.Role(nil), md.RequiredRoles...),
		}
		for _, role := range md.RequiredRoles {
			st.Tasks = append(st.Tasks, m.generateTask(phaseNum, md, i, role, now))
			created++
		}
	}

	if err := m.store.Save(ctx, st); err != nil {
		return foremanerrors.Wrapf(err, "failed to initialize phase %d", phaseNum)
	}

	m.logger.Info().
		Int("phase", phaseNum).
		Str("phase_name", def.Name).
		Int("milestones", len(def.Milestones)).
		Int("tasks_created", created).
		Msg("phase initialized")

	return nil
}

// IsCurrentPhaseComplete reports whether every milestone of the current
// phase is completed and the phase's exit test passes.
func (m *Manager) IsCurrentPhaseComplete(ctx context.Context, st *store.State) bool {
	def, err := m.registry.Phase(st.CurrentPhase)
	if err != nil {
		return false
	}

	for _, md := range def.Milestones {
		ms, exists := st.Milestones[md.ID]
		if !exists || ms.Status != constants.MilestoneStatusCompleted {
			return false
		}
	}

	if err := m.exitTests.Run(ctx, def.ExitTest); err != nil {
		m.logger.Info().
			Err(err).
			Int("phase", st.CurrentPhase).
			Msg("phase milestones complete but exit test failed")
		return false
	}

	return true
}

// AdvancePhase moves the workflow to the next phase. It returns false (with
// no error) when a precondition fails: the current phase is incomplete, the
// last phase is already current, or a prerequisite of the next phase is not
// in the completed set. On success the current phase is marked completed,
// the next phase becomes current and is initialized, and a success lesson is
// recorded.
func (m *Manager) AdvancePhase(ctx context.Context, st *store.State) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	current := st.CurrentPhase
	if current >= m.registry.MaxPhase() {
		m.logger.Warn().Int("phase", current).Msg("already at last phase, cannot advance")
		return false, nil
	}

	if !m.IsCurrentPhaseComplete(ctx, st) {
		m.logger.Info().Int("phase", current).Msg("phase incomplete, not advancing")
		return false, nil
	}

	next, err := m.registry.Phase(current + 1)
	if err != nil {
		return false, err
	}
	for _, dep := range next.DependsOn {
		if dep != current && !st.IsPhaseCompleted(dep) {
			m.logger.Warn().
				Int("phase", current).
				Int("next_phase", next.Number).
				Int("missing_dependency", dep).
				Msg("prerequisite phase not completed, not advancing")
			return false, nil
		}
	}

	st.MarkPhaseCompleted(current)
	st.CurrentPhase = next.Number

	if err := m.InitializePhase(ctx, st, next.Number); err != nil {
		return false, err
	}

	m.recordLesson(ctx, st, constants.LessonSuccess,
		fmt.Sprintf("phase %d (%s) completed, advanced to phase %d (%s)",
			current, mustPhaseName(m.registry, current), next.Number, next.Name),
		"workflow advanced")

	m.logger.Info().
		Int("from_phase", current).
		Int("to_phase", next.Number).
		Msg("phase advanced")

	return true, nil
}

// RollbackPhase moves the workflow back one phase. Rolling back below phase
// zero is forbidden and returns false with no error and no state change.
// Otherwise a restorable checkpoint is taken first, the previous phase
// becomes current again and leaves the completed set, and a failure lesson
// is recorded.
func (m *Manager) RollbackPhase(ctx context.Context, st *store.State) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	current := st.CurrentPhase
	if current == 0 {
		m.logger.Warn().Msg("at phase zero, cannot roll back")
		return false, nil
	}

	if m.checkpoints != nil {
		encoded, err := store.EncodeState(st)
		if err != nil {
			return false, err
		}
		m.checkpoints.CreateCheckpoint(encoded, fmt.Sprintf("pre-rollback from phase %d", current), true, nil)
	}

	prev := current - 1
	st.CurrentPhase = prev
	// The phase being redone leaves the completed set; the abandoned phase
	// was never in it.
	st.UnmarkPhaseCompleted(prev)
	st.UnmarkPhaseCompleted(current)

	if err := m.store.Save(ctx, st); err != nil {
		return false, foremanerrors.Wrap(err, "failed to save rollback")
	}

	m.recordLesson(ctx, st, constants.LessonFailure,
		fmt.Sprintf("rolled back from phase %d to phase %d", current, prev),
		"workflow regressed one phase")

	m.logger.Warn().
		Int("from_phase", current).
		Int("to_phase", prev).
		Msg("phase rolled back")

	return true, nil
}

// UpdateMilestoneStatus transitions a milestone. StartedAt is stamped on the
// first transition into in_progress and CompletedAt on the transition into
// completed. When auto-advance is enabled and the update completes the
// phase, AdvancePhase is triggered immediately.
func (m *Manager) UpdateMilestoneStatus(ctx context.Context, st *store.State, milestoneID string, status constants.MilestoneStatus) error {
	ms, exists := st.Milestones[milestoneID]
	if !exists {
		return fmt.Errorf("%w: %q", foremanerrors.ErrUnknownMilestone, milestoneID)
	}

	now := m.clock.Now().UTC()
	switch status {
	case constants.MilestoneStatusInProgress:
		if ms.StartedAt == nil {
			ms.StartedAt = &now
		}
	case constants.MilestoneStatusCompleted:
		ms.CompletedAt = &now
	case constants.MilestoneStatusPending:
	}
	ms.Status = status

	if err := m.store.Save(ctx, st); err != nil {
		return foremanerrors.Wrapf(err, "failed to save milestone %q", milestoneID)
	}

	m.logger.Info().
		Str("milestone_id", milestoneID).
		Str("status", status.String()).
		Msg("milestone status updated")

	if status == constants.MilestoneStatusCompleted && st.AutoAdvance && m.IsCurrentPhaseComplete(ctx, st) {
		if _, err := m.AdvancePhase(ctx, st); err != nil {
			return err
		}
	}

	return nil
}

// ReevaluateMilestone checks a milestone's completion criteria and marks it
// completed when every bound task is completed and the validator confirms.
// Returns true if the milestone transitioned to completed.
func (m *Manager) ReevaluateMilestone(ctx context.Context, st *store.State, milestoneID string) (bool, error) {
	ms, exists := st.Milestones[milestoneID]
	if !exists {
		return false, fmt.Errorf("%w: %q", foremanerrors.ErrUnknownMilestone, milestoneID)
	}
	if ms.Status == constants.MilestoneStatusCompleted {
		return false, nil
	}

	for _, t := range st.MilestoneTasks(milestoneID) {
		if t.Status != constants.TaskStatusCompleted {
			return false, nil
		}
	}

	if !m.validator.Validate(ctx, st, ms) {
		m.logger.Debug().Str("milestone_id", milestoneID).Msg("milestone tasks done but validation failed")
		return false, nil
	}

	if err := m.UpdateMilestoneStatus(ctx, st, milestoneID, constants.MilestoneStatusCompleted); err != nil {
		return false, err
	}
	return true, nil
}

// RunExitTest runs the current phase's exit-test command against the
// external pass/fail oracle.
func (m *Manager) RunExitTest(ctx context.Context, st *store.State) error {
	def, err := m.registry.Phase(st.CurrentPhase)
	if err != nil {
		return err
	}
	return m.exitTests.Run(ctx, def.ExitTest)
}

// PhaseProgress returns the progress fraction for a phase: the mean
// per-milestone contribution, where a completed milestone contributes 1.0,
// an in-progress one the validator's estimate, and a pending one 0.
func (m *Manager) PhaseProgress(st *store.State, phaseNum int) float64 {
	def, err := m.registry.Phase(phaseNum)
	if err != nil || len(def.Milestones) == 0 {
		return 0
	}

	var sum float64
	for _, md := range def.Milestones {
		if ms, exists := st.Milestones[md.ID]; exists && ms.Phase == phaseNum {
			sum += m.validator.EstimatedProgress(ms)
		}
	}
	return sum / float64(len(def.Milestones))
}

// OverallProgress returns the mean progress across all defined phases,
// including not-yet-reached phases, which contribute 0.
func (m *Manager) OverallProgress(st *store.State) float64 {
	count := m.registry.Count()
	if count == 0 {
		return 0
	}

	var sum float64
	for _, p := range m.registry.Phases() {
		if st.IsPhaseCompleted(p.Number) {
			sum += 1.0
			continue
		}
		sum += m.PhaseProgress(st, p.Number)
	}
	return sum / float64(count)
}

// generateTask builds a waiting task for one (milestone, role) pair with a
// derived priority: earlier milestones dispatch first, and within a
// milestone roles follow the rolePriority ordering.
func (m *Manager) generateTask(phaseNum int, md domain.MilestoneDef, milestoneIndex int, role domain.Role, now time.Time) *domain.AgentTask {
	return &domain.AgentTask{
		ID:          fmt.Sprintf("task-p%d-%s-%s-%s", phaseNum, md.ID, role, shortID()),
		Phase:       phaseNum,
		MilestoneID: md.ID,
		Role:        role,
		Description: fmt.Sprintf("%s work for milestone %q", role, md.Name),
		Priority:    priorityBase - milestoneIndex*int(domain.NumRoles) + rolePriority[role],
		Status:      constants.TaskStatusWaiting,
		CreatedAt:   now,
	}
}

// recordLesson appends a lesson to the durable lesson log. Lessons feed the
// progress narrative only, so failures here are logged and swallowed.
func (m *Manager) recordLesson(ctx context.Context, st *store.State, category constants.LessonCategory, description, impact string) {
	lesson := domain.Lesson{
		ID:          uuid.NewString(),
		Timestamp:   m.clock.Now().UTC(),
		Phase:       st.CurrentPhase,
		Category:    category,
		Description: description,
		Impact:      impact,
	}
	if err := m.store.AppendLesson(ctx, lesson); err != nil {
		m.logger.Warn().Err(err).Msg("failed to record lesson")
	}
}

// mustPhaseName returns the phase name or a placeholder for unknown numbers.
func mustPhaseName(reg *registry.Registry, number int) string {
	p, err := reg.Phase(number)
	if err != nil {
		return "unknown"
	}
	return p.Name
}

// shortID returns the first eight characters of a fresh UUID for readable
// task identifiers.
func shortID() string {
	id := uuid.NewString()
	return strings.SplitN(id, "-", 2)[0]
}
