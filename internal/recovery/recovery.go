// Package recovery provides crash-safe checkpointing and failure
// classification for the Foreman engine. State snapshots are taken before
// risky operations; when an executor failure surfaces, the manager classifies
// it and maps the classification to a recovery action the engine branches on.
package recovery

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/forgecrew/foreman/internal/clock"
	"github.com/forgecrew/foreman/internal/constants"
	"github.com/forgecrew/foreman/internal/domain"
	foremanerrors "github.com/forgecrew/foreman/internal/errors"
)

// Action is the recovery action the engine takes for a classified failure.
type Action string

// Recovery actions.
const (
	// ActionPauseWorkflow pauses automated progress for human adjudication
	// (conflict class). The task is marked failed and not retried.
	ActionPauseWorkflow Action = "pause_workflow"

	// ActionRollback restores the most recent restorable checkpoint and
	// marks the task failed.
	ActionRollback Action = "rollback"

	// ActionCircuitBreak surfaces a system-health signal and requires a
	// manual breaker reset before the key is dispatched again.
	ActionCircuitBreak Action = "circuit_break"

	// ActionFailImmediately marks the task fatal: no retry, no rollback.
	ActionFailImmediately Action = "fail_immediately"
)

// String returns the string representation of the Action.
func (a Action) String() string {
	return string(a)
}

// Context carries what the manager needs to classify a failure.
type Context struct {
	// TaskID is the task whose execution failed.
	TaskID string

	// Role is the executor role involved, if any.
	Role *domain.Role

	// RetriesUsed is how many attempts the retry engine already spent.
	RetriesUsed int
}

// Decision is the outcome of HandleError: the classification, the action the
// engine should take, and the retries already used so the engine can log and
// branch.
type Decision struct {
	// Kind is the error classification.
	Kind foremanerrors.Kind

	// Action is the recovery action to take.
	Action Action

	// RetriesUsed echoes Context.RetriesUsed.
	RetriesUsed int
}

// CheckpointStats summarizes the checkpoint ring buffer.
type CheckpointStats struct {
	// Count is the number of checkpoints currently held.
	Count int `json:"count"`

	// Oldest is the timestamp of the oldest checkpoint, if any.
	Oldest *time.Time `json:"oldest,omitempty"`

	// Newest is the timestamp of the newest checkpoint, if any.
	Newest *time.Time `json:"newest,omitempty"`
}

// Manager owns the bounded checkpoint ring buffer and failure
// classification. Safe for concurrent use.
type Manager struct {
	mu          sync.Mutex
	checkpoints []domain.Checkpoint
	max         int
	clock       clock.Clock
	logger      zerolog.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock sets the clock used for checkpoint timestamps.
func WithClock(c clock.Clock) Option {
	return func(m *Manager) { m.clock = c }
}

// WithMaxCheckpoints bounds the ring buffer. Values below one fall back to
// the default.
func WithMaxCheckpoints(max int) Option {
	return func(m *Manager) {
		if max >= 1 {
			m.max = max
		}
	}
}

// NewManager creates a checkpoint and recovery manager.
func NewManager(logger zerolog.Logger, opts ...Option) *Manager {
	m := &Manager{
		max:    constants.DefaultMaxCheckpoints,
		clock:  clock.RealClock{},
		logger: logger.With().Str("component", "recovery").Logger(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// CreateCheckpoint pushes a full encoded state snapshot onto the ring
// buffer, evicting the oldest checkpoint past the configured maximum.
func (m *Manager) CreateCheckpoint(state json.RawMessage, label string, restorable bool, role *domain.Role) domain.Checkpoint {
	cp := domain.Checkpoint{
		ID:         uuid.NewString(),
		Timestamp:  m.clock.Now().UTC(),
		Label:      label,
		State:      append(json.RawMessage(nil), state...),
		Restorable: restorable,
		Role:       role,
	}

	m.mu.Lock()
	m.checkpoints = append(m.checkpoints, cp)
	evicted := 0
	if len(m.checkpoints) > m.max {
		evicted = len(m.checkpoints) - m.max
		m.checkpoints = m.checkpoints[evicted:]
	}
	count := len(m.checkpoints)
	m.mu.Unlock()

	m.logger.Debug().
		Str("checkpoint_id", cp.ID).
		Str("label", label).
		Bool("restorable", restorable).
		Int("count", count).
		Int("evicted", evicted).
		Msg("checkpoint created")

	return cp
}

// LatestRestorable returns the most recent restorable checkpoint.
// Returns ErrCheckpointNotFound if none exists.
func (m *Manager) LatestRestorable() (*domain.Checkpoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.checkpoints) - 1; i >= 0; i-- {
		if m.checkpoints[i].Restorable {
			cp := m.checkpoints[i]
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("no restorable checkpoint: %w", foremanerrors.ErrCheckpointNotFound)
}

// Checkpoints returns a copy of the current ring buffer contents, oldest first.
func (m *Manager) Checkpoints() []domain.Checkpoint {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Checkpoint, len(m.checkpoints))
	copy(out, m.checkpoints)
	return out
}

// Stats returns checkpoint ring buffer statistics.
func (m *Manager) Stats() CheckpointStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := CheckpointStats{Count: len(m.checkpoints)}
	if len(m.checkpoints) > 0 {
		oldest := m.checkpoints[0].Timestamp
		newest := m.checkpoints[len(m.checkpoints)-1].Timestamp
		stats.Oldest = &oldest
		stats.Newest = &newest
	}
	return stats
}

// ClearCheckpoints drops every checkpoint.
func (m *Manager) ClearCheckpoints() {
	m.mu.Lock()
	m.checkpoints = nil
	m.mu.Unlock()
	m.logger.Info().Msg("checkpoints cleared")
}

// HandleError classifies a failure and maps it to a recovery action.
//
// Transient and retriable errors reaching this point mean the retry engine
// already exhausted its attempt budget (or the breaker rejected the call),
// so they map to circuit-break: the key needs a manual reset or the breaker
// reset timeout before further dispatch.
func (m *Manager) HandleError(err error, ectx Context) Decision {
	kind := foremanerrors.Classify(err)

	var action Action
	switch kind {
	case foremanerrors.KindConflict:
		action = ActionPauseWorkflow
	case foremanerrors.KindRollback:
		action = ActionRollback
	case foremanerrors.KindTransient, foremanerrors.KindRetriable:
		action = ActionCircuitBreak
	default: // KindFatal
		action = ActionFailImmediately
	}

	logEvent := m.logger.Warn()
	if kind == foremanerrors.KindFatal {
		logEvent = m.logger.Error()
	}
	logEvent.
		Err(err).
		Str("task_id", ectx.TaskID).
		Str("kind", kind.String()).
		Str("action", action.String()).
		Int("retries_used", ectx.RetriesUsed).
		Msg("failure classified")

	return Decision{Kind: kind, Action: action, RetriesUsed: ectx.RetriesUsed}
}
