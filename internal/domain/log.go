package domain

import (
	"time"

	"github.com/forgecrew/foreman/internal/constants"
)

// ErrorLogEntry is one record in the rolling error log. The in-state log is
// capped (oldest evicted past the cap); every entry is also mirrored to the
// durable append-only JSON-lines log.
type ErrorLogEntry struct {
	// Timestamp is when the error occurred.
	Timestamp time.Time `json:"timestamp"`

	// Phase is the current phase at the time of the error.
	Phase int `json:"phase"`

	// Role is the executor role involved, if any.
	Role *Role `json:"role,omitempty"`

	// MilestoneID is the milestone involved, if any.
	MilestoneID string `json:"milestone_id,omitempty"`

	// Message is the error text.
	Message string `json:"message"`

	// Stack optionally carries a stack trace for unexpected faults.
	Stack string `json:"stack,omitempty"`

	// Severity grades the entry.
	Severity constants.Severity `json:"severity"`
}

// Lesson is one record in the append-only lesson log. Lessons feed the
// progress narrative only; they have no effect on scheduling.
type Lesson struct {
	// ID is a unique identifier for the lesson.
	ID string `json:"id"`

	// Timestamp is when the lesson was recorded.
	Timestamp time.Time `json:"timestamp"`

	// Phase is the phase the lesson relates to.
	Phase int `json:"phase"`

	// Category classifies the lesson.
	Category constants.LessonCategory `json:"category"`

	// Description is the lesson text.
	Description string `json:"description"`

	// Impact notes what the lesson affected.
	Impact string `json:"impact,omitempty"`
}

// ProgressSnapshot is a point-in-time summary of overall workflow progress,
// recorded after each engine tick.
type ProgressSnapshot struct {
	// Timestamp is when the snapshot was taken.
	Timestamp time.Time `json:"timestamp"`

	// Phase is the current phase number.
	Phase int `json:"phase"`

	// PhaseProgress is the current phase's progress fraction in [0,1].
	PhaseProgress float64 `json:"phase_progress"`

	// OverallProgress is the mean progress across all phases in [0,1].
	OverallProgress float64 `json:"overall_progress"`

	// ActiveTasks counts tasks currently executing.
	ActiveTasks int `json:"active_tasks"`

	// CompletedTasks counts tasks that completed.
	CompletedTasks int `json:"completed_tasks"`

	// FailedTasks counts tasks that failed.
	FailedTasks int `json:"failed_tasks"`

	// EstimatedCompletion is the projected finish time, if computable.
	EstimatedCompletion *time.Time `json:"estimated_completion,omitempty"`
}
