package domain

import "time"

// AgentMetrics accumulates per-role execution statistics. One entry exists
// per role; it is updated on every task terminal transition.
type AgentMetrics struct {
	// Role is the executor role these metrics describe.
	Role Role `json:"role"`

	// TasksCompleted is the cumulative count of successful tasks.
	TasksCompleted int `json:"tasks_completed"`

	// TasksFailed is the cumulative count of failed tasks.
	TasksFailed int `json:"tasks_failed"`

	// AvgDuration is the running average completion duration over
	// successful tasks.
	AvgDuration time.Duration `json:"avg_duration"`

	// LastActiveAt is when the role last finished a task.
	LastActiveAt *time.Time `json:"last_active_at,omitempty"`
}

// RecordCompletion folds a successful task's duration into the running
// average and bumps the completion count.
func (m *AgentMetrics) RecordCompletion(duration time.Duration, at time.Time) {
	total := m.AvgDuration*time.Duration(m.TasksCompleted) + duration
	m.TasksCompleted++
	m.AvgDuration = total / time.Duration(m.TasksCompleted)
	m.LastActiveAt = &at
}

// RecordFailure bumps the failure count.
func (m *AgentMetrics) RecordFailure(at time.Time) {
	m.TasksFailed++
	m.LastActiveAt = &at
}

// SuccessRate returns the fraction of terminal tasks that completed,
// or zero when no tasks have finished.
func (m *AgentMetrics) SuccessRate() float64 {
	total := m.TasksCompleted + m.TasksFailed
	if total == 0 {
		return 0
	}
	return float64(m.TasksCompleted) / float64(total)
}
