package domain

import (
	"time"

	"github.com/forgecrew/foreman/internal/constants"
)

// AgentTask is the smallest unit of dispatchable work. A task is bound to
// exactly one phase, one milestone, and one executor role for its lifetime.
// Tasks are created when a phase is initialized, mutated by the engine during
// dispatch and completion, and never deleted (append-only history).
//
// Example JSON representation:
//
//	{
//	    "id": "task-p0-database-models-3f2a1b9c",
//	    "phase": 0,
//	    "milestone_id": "database",
//	    "role": "models",
//	    "description": "database: schema and data model work",
//	    "priority": 80,
//	    "status": "waiting",
//	    "created_at": "2026-08-20T10:00:00Z"
//	}
type AgentTask struct {
	// ID is the unique identifier for the task.
	ID string `json:"id"`

	// Phase is the owning phase number.
	Phase int `json:"phase"`

	// MilestoneID is the owning milestone.
	MilestoneID string `json:"milestone_id"`

	// Role is the target executor role.
	Role Role `json:"role"`

	// Description is a human-readable summary of the work.
	Description string `json:"description"`

	// Priority is derived at task generation time and orders dispatch within
	// a tick (higher dispatches first). It is never user-set.
	Priority int `json:"priority"`

	// Status is the current state in the task lifecycle.
	Status constants.TaskStatus `json:"status"`

	// CreatedAt is when the task was generated.
	CreatedAt time.Time `json:"created_at"`

	// StartedAt is when the task was dispatched (nil until active).
	StartedAt *time.Time `json:"started_at,omitempty"`

	// CompletedAt is when the task reached a terminal state.
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Result holds the executor's result payload once the task is terminal.
	Result *TaskResult `json:"result,omitempty"`

	// Error contains the failure message if the task failed.
	Error string `json:"error,omitempty"`
}

// TaskResult captures the outcome an agent produced for a task.
type TaskResult struct {
	// Success indicates whether the agent completed the work.
	Success bool `json:"success"`

	// Output contains any text output from the execution.
	Output string `json:"output,omitempty"`

	// Error contains the failure message if Success is false.
	Error string `json:"error,omitempty"`

	// Metadata carries structured side-channel data. The engine specifically
	// recognizes a conflict marker here and pauses the workflow instead of
	// applying ordinary failure handling.
	Metadata *ResultMetadata `json:"metadata,omitempty"`
}

// ResultMetadata is the structured metadata attached to a task result.
type ResultMetadata struct {
	// Conflict is set when the agent surfaced a business/policy violation.
	Conflict *ConflictMarker `json:"conflict,omitempty"`

	// Extra holds agent-specific values with no engine semantics.
	Extra map[string]any `json:"extra,omitempty"`
}

// ConflictMarker describes a business/policy violation surfaced by an
// agent's own result (not a call exception), e.g. a security finding.
type ConflictMarker struct {
	// Type tags the conflict class (e.g. "security", "policy").
	Type string `json:"type"`

	// Severity grades the conflict.
	Severity constants.Severity `json:"severity"`

	// Findings lists the individual violations.
	Findings []string `json:"findings,omitempty"`
}

// HasConflict reports whether the result carries a conflict marker.
func (r *TaskResult) HasConflict() bool {
	return r != nil && r.Metadata != nil && r.Metadata.Conflict != nil
}
