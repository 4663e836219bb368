package cli

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgecrew/foreman/internal/constants"
	"github.com/forgecrew/foreman/internal/domain"
	"github.com/forgecrew/foreman/internal/engine"
)

// TestRenderResult_Text verifies the human-readable rendering of a
// successful result.
func TestRenderResult_Text(t *testing.T) {
	var buf bytes.Buffer

	err := renderResult(&buf, OutputText, domain.CommandResult{
		Success: true,
		Message: "engine started",
	})
	require.NoError(t, err)
	assert.Equal(t, "engine started\n", buf.String())
}

// TestRenderResult_TextFailure verifies a failed result renders its error
// and returns a non-nil error so the CLI exits non-zero.
func TestRenderResult_TextFailure(t *testing.T) {
	var buf bytes.Buffer

	err := renderResult(&buf, OutputText, domain.CommandResult{
		Success: false,
		Message: "failed to load state",
		Error:   "state not found",
	})
	require.Error(t, err)
	assert.Contains(t, buf.String(), "failed to load state")
	assert.Contains(t, buf.String(), "error: state not found")
}

// TestRenderResult_JSON verifies the machine-readable envelope, including
// the failure case still emitting valid JSON before the error return.
func TestRenderResult_JSON(t *testing.T) {
	var buf bytes.Buffer

	err := renderResult(&buf, OutputJSON, domain.CommandResult{
		Success: true,
		Message: "report generated",
		Data:    map[string]int{"phase": 2},
	})
	require.NoError(t, err)

	var decoded domain.CommandResult
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.True(t, decoded.Success)
	assert.Equal(t, "report generated", decoded.Message)

	buf.Reset()
	err = renderResult(&buf, OutputJSON, domain.CommandResult{Success: false, Message: "nope"})
	require.Error(t, err)
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.False(t, decoded.Success)
}

// TestRenderResult_StatusPayload verifies the status block formatting.
func TestRenderResult_StatusPayload(t *testing.T) {
	var buf bytes.Buffer

	err := renderResult(&buf, OutputText, domain.CommandResult{
		Success: true,
		Message: "phase 1 (Core API), 25% overall",
		Data: engine.StatusData{
			Phase:           1,
			PhaseName:       "Core API",
			PhaseProgress:   0.5,
			OverallProgress: 0.25,
			WaitingTasks:    2,
			ActiveTasks:     1,
			CompletedTasks:  4,
			Running:         true,
			Milestones: []*domain.Milestone{
				{ID: "endpoints", Status: constants.MilestoneStatusInProgress},
			},
		},
	})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "engine:    running")
	assert.Contains(t, out, "phase:     1 (Core API), 50% done")
	assert.Contains(t, out, "overall:   25%")
	assert.Contains(t, out, "2 waiting, 1 active, 4 completed, 0 failed")
	assert.Contains(t, out, "endpoints")
}

// TestRenderResult_ReportPayload verifies the report payload prints its
// pre-rendered text.
func TestRenderResult_ReportPayload(t *testing.T) {
	var buf bytes.Buffer

	err := renderResult(&buf, OutputText, domain.CommandResult{
		Success: true,
		Message: "report generated",
		Data:    engine.ReportData{Text: "Foreman progress report\n"},
	})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Foreman progress report")
}

// TestIsValidOutputFormat verifies the supported format set.
func TestIsValidOutputFormat(t *testing.T) {
	assert.True(t, IsValidOutputFormat(OutputText))
	assert.True(t, IsValidOutputFormat(OutputJSON))
	assert.False(t, IsValidOutputFormat("yaml"))
	assert.False(t, IsValidOutputFormat(""))
	assert.Equal(t, []string{"text", "json"}, ValidOutputFormats())
}
