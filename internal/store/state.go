// Package store provides persistence for the Foreman orchestrator state.
// This package implements the storage layer for the aggregate state document
// and the auxiliary append-only logs, with atomic writes and file locking for
// data integrity.
package store

import (
	"time"

	"github.com/forgecrew/foreman/internal/constants"
	"github.com/forgecrew/foreman/internal/domain"
)

// State is the aggregate orchestrator state document. It is the single
// source of truth: all mutation goes through its methods and every mutation
// is persisted via the Store before the result is observable elsewhere.
type State struct {
	// SchemaVersion enables forward-compatible schema migrations.
	SchemaVersion int `json:"schema_version"`

	// CurrentPhase is the phase currently being worked.
	CurrentPhase int `json:"current_phase"`

	// CompletedPhases is the set of phase numbers that have completed.
	CompletedPhases []int `json:"completed_phases"`

	// Milestones maps milestone ID to its runtime state.
	Milestones map[string]*domain.Milestone `json:"milestones"`

	// Tasks is the append-only task history across all phases.
	Tasks []*domain.AgentTask `json:"tasks"`

	// Metrics holds per-role execution statistics.
	Metrics map[domain.Role]*domain.AgentMetrics `json:"metrics"`

	// ErrorLog is the rolling in-state error log, capped by the engine
	// configuration. The durable JSON-lines log keeps the full history.
	ErrorLog []domain.ErrorLogEntry `json:"error_log"`

	// AutoAdvance controls whether completing a phase immediately advances
	// to the next one.
	AutoAdvance bool `json:"auto_advance"`

	// CreatedAt is when the state document was first created.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the state document was last saved.
	UpdatedAt time.Time `json:"updated_at"`
}

// NewState returns an empty state document positioned at phase zero.
func NewState(now time.Time) *State {
	return &State{
		SchemaVersion:   constants.StateSchemaVersion,
		CurrentPhase:    0,
		CompletedPhases: []int{},
		Milestones:      make(map[string]*domain.Milestone),
		Tasks:           []*domain.AgentTask{},
		Metrics:         make(map[domain.Role]*domain.AgentMetrics),
		ErrorLog:        []domain.ErrorLogEntry{},
		CreatedAt:       now.UTC(),
		UpdatedAt:       now.UTC(),
	}
}

// Task returns the task with the given ID, or nil if absent.
func (s *State) Task(id string) *domain.AgentTask {
	for _, t := range s.Tasks {
		if t.ID == id {
			return t
		}
	}
	return nil
}

// PhaseTasks returns all tasks belonging to the given phase.
func (s *State) PhaseTasks(phase int) []*domain.AgentTask {
	var out []*domain.AgentTask
	for _, t := range s.Tasks {
		if t.Phase == phase {
			out = append(out, t)
		}
	}
	return out
}

// MilestoneTasks returns all tasks bound to the given milestone.
func (s *State) MilestoneTasks(milestoneID string) []*domain.AgentTask {
	var out []*domain.AgentTask
	for _, t := range s.Tasks {
		if t.MilestoneID == milestoneID {
			out = append(out, t)
		}
	}
	return out
}

// WaitingTasks returns tasks in the given phase with status waiting.
func (s *State) WaitingTasks(phase int) []*domain.AgentTask {
	var out []*domain.AgentTask
	for _, t := range s.Tasks {
		if t.Phase == phase && t.Status == constants.TaskStatusWaiting {
			out = append(out, t)
		}
	}
	return out
}

// RoleTasksComplete reports whether every task of the given role in the
// given phase has completed. A role with no tasks in the phase counts as
// complete; the dependency gate only waits on work that exists.
func (s *State) RoleTasksComplete(phase int, role domain.Role) bool {
	for _, t := range s.Tasks {
		if t.Phase == phase && t.Role == role && t.Status != constants.TaskStatusCompleted {
			return false
		}
	}
	return true
}

// IsPhaseCompleted reports whether the phase number is in the completed set.
func (s *State) IsPhaseCompleted(phase int) bool {
	for _, p := range s.CompletedPhases {
		if p == phase {
			return true
		}
	}
	return false
}

// MarkPhaseCompleted adds the phase to the completed set (idempotent).
func (s *State) MarkPhaseCompleted(phase int) {
	if s.IsPhaseCompleted(phase) {
		return
	}
	s.CompletedPhases = append(s.CompletedPhases, phase)
}

// UnmarkPhaseCompleted removes the phase from the completed set.
func (s *State) UnmarkPhaseCompleted(phase int) {
	out := s.CompletedPhases[:0]
	for _, p := range s.CompletedPhases {
		if p != phase {
			out = append(out, p)
		}
	}
	s.CompletedPhases = out
}

// RoleMetrics returns the metrics entry for the role, creating it on first use.
func (s *State) RoleMetrics(role domain.Role) *domain.AgentMetrics {
	if s.Metrics == nil {
		s.Metrics = make(map[domain.Role]*domain.AgentMetrics)
	}
	m, ok := s.Metrics[role]
	if !ok {
		m = &domain.AgentMetrics{Role: role}
		s.Metrics[role] = m
	}
	return m
}

// AppendError appends an entry to the rolling error log, evicting the oldest
// entries once the cap is exceeded. A cap of zero or less means unbounded.
func (s *State) AppendError(entry domain.ErrorLogEntry, limit int) {
	s.ErrorLog = append(s.ErrorLog, entry)
	if limit > 0 && len(s.ErrorLog) > limit {
		s.ErrorLog = s.ErrorLog[len(s.ErrorLog)-limit:]
	}
}

// TaskCounts returns the number of active, completed, and failed tasks
// across all phases.
func (s *State) TaskCounts() (active, completed, failed int) {
	for _, t := range s.Tasks {
		switch t.Status {
		case constants.TaskStatusActive:
			active++
		case constants.TaskStatusCompleted:
			completed++
		case constants.TaskStatusFailed:
			failed++
		case constants.TaskStatusWaiting:
		}
	}
	return active, completed, failed
}
