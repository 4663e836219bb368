package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/forgecrew/foreman/internal/constants"
)

// TestTaskResult_HasConflict verifies conflict detection is nil-safe at
// every level of the result structure.
func TestTaskResult_HasConflict(t *testing.T) {
	tests := []struct {
		name   string
		result *TaskResult
		want   bool
	}{
		{"nil result", nil, false},
		{"no metadata", &TaskResult{Success: true}, false},
		{"metadata without conflict", &TaskResult{Metadata: &ResultMetadata{}}, false},
		{
			"conflict marker present",
			&TaskResult{
				Success: false,
				Metadata: &ResultMetadata{
					Conflict: &ConflictMarker{
						Type:     "security",
						Severity: constants.SeverityCritical,
						Findings: []string{"hardcoded credential"},
					},
				},
			},
			true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.result.HasConflict())
		})
	}
}

// TestAgentMetrics_RecordCompletion verifies the running average over
// successful tasks.
func TestAgentMetrics_RecordCompletion(t *testing.T) {
	m := &AgentMetrics{Role: RoleAPI}
	now := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)

	m.RecordCompletion(10*time.Second, now)
	assert.Equal(t, 1, m.TasksCompleted)
	assert.Equal(t, 10*time.Second, m.AvgDuration)

	m.RecordCompletion(20*time.Second, now.Add(time.Minute))
	assert.Equal(t, 2, m.TasksCompleted)
	assert.Equal(t, 15*time.Second, m.AvgDuration)

	m.RecordCompletion(30*time.Second, now.Add(2*time.Minute))
	assert.Equal(t, 20*time.Second, m.AvgDuration)
	assert.True(t, m.LastActiveAt.Equal(now.Add(2*time.Minute)))
}

// TestAgentMetrics_SuccessRate verifies the completed fraction including
// the no-data case.
func TestAgentMetrics_SuccessRate(t *testing.T) {
	m := &AgentMetrics{}
	assert.Zero(t, m.SuccessRate())

	now := time.Now()
	m.RecordCompletion(time.Second, now)
	m.RecordCompletion(time.Second, now)
	m.RecordFailure(now)
	assert.InDelta(t, 2.0/3.0, m.SuccessRate(), 0.0001)
	assert.Equal(t, 1, m.TasksFailed)
}
