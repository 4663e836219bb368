package constants

// TaskStatus represents the state of an agent task in the Foreman state machine.
// Status values use snake_case for JSON serialization compatibility.
type TaskStatus string

// Task status constants define the valid states a task can be in.
// A task moves waiting → active → completed|failed exactly once.
const (
	// TaskStatusWaiting indicates a task is queued but not yet dispatched.
	TaskStatusWaiting TaskStatus = "waiting"

	// TaskStatusActive indicates an agent is currently executing the task.
	TaskStatusActive TaskStatus = "active"

	// TaskStatusCompleted indicates the task finished successfully.
	TaskStatusCompleted TaskStatus = "completed"

	// TaskStatusFailed indicates the task failed and will not be retried
	// without operator intervention.
	TaskStatusFailed TaskStatus = "failed"
)

// String returns the string representation of the TaskStatus.
// This implements fmt.Stringer for convenient logging and debugging.
func (s TaskStatus) String() string {
	return string(s)
}

// IsTerminal returns true for states where no further transitions are allowed.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed
}

// MilestoneStatus represents the state of a milestone within a phase.
type MilestoneStatus string

// Milestone status constants define the valid states a milestone can be in.
const (
	// MilestoneStatusPending indicates no work on the milestone has started.
	MilestoneStatusPending MilestoneStatus = "pending"

	// MilestoneStatusInProgress indicates at least one bound task has been
	// dispatched.
	MilestoneStatusInProgress MilestoneStatus = "in_progress"

	// MilestoneStatusCompleted indicates all bound tasks completed and the
	// milestone validator confirmed the completion criteria.
	MilestoneStatusCompleted MilestoneStatus = "completed"
)

// String returns the string representation of the MilestoneStatus.
func (s MilestoneStatus) String() string {
	return string(s)
}

// Severity classifies error log entries.
type Severity string

// Severity constants, lowest to highest.
const (
	// SeverityLow marks informational failures with no workflow impact.
	SeverityLow Severity = "low"

	// SeverityMedium marks failures that degraded a single task.
	SeverityMedium Severity = "medium"

	// SeverityHigh marks failures that stopped a task or a tick.
	SeverityHigh Severity = "high"

	// SeverityCritical marks failures that require operator intervention.
	SeverityCritical Severity = "critical"
)

// String returns the string representation of the Severity.
func (s Severity) String() string {
	return string(s)
}

// LessonCategory classifies entries in the lesson log.
type LessonCategory string

// Lesson category constants.
const (
	// LessonSuccess records something that worked (e.g. a phase advanced).
	LessonSuccess LessonCategory = "success"

	// LessonFailure records something that failed (e.g. a phase rolled back).
	LessonFailure LessonCategory = "failure"

	// LessonImprovement records an observation worth acting on later.
	LessonImprovement LessonCategory = "improvement"
)

// String returns the string representation of the LessonCategory.
func (c LessonCategory) String() string {
	return string(c)
}
