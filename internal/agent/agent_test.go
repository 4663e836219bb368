package agent

import (
	"context"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgecrew/foreman/internal/domain"
	foremanerrors "github.com/forgecrew/foreman/internal/errors"
	"github.com/forgecrew/foreman/internal/testutil"
)

// sampleTask returns a minimal dispatchable task.
func sampleTask() *domain.AgentTask {
	return &domain.AgentTask{ID: "task-1", Phase: 0, MilestoneID: "database", Role: domain.RoleModels}
}

// TestBaseAgent_DryRun verifies an agent without a configured command
// succeeds without executing anything.
func TestBaseAgent_DryRun(t *testing.T) {
	a := NewModelsAgent(zerolog.Nop())

	result, err := a.Execute(context.Background(), sampleTask())
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.True(t, result.Success)
	assert.Contains(t, result.Output, "no command configured")
	assert.False(t, a.Busy())
}

// TestBaseAgent_ExecutorSuccess verifies command output flows into the
// result.
func TestBaseAgent_ExecutorSuccess(t *testing.T) {
	var gotCommand string
	a := NewAPIAgent(zerolog.Nop(),
		WithCommand("make build-api"),
		WithExecutor(func(_ context.Context, command string) (string, error) {
			gotCommand = command
			return "built", nil
		}),
	)

	result, err := a.Execute(context.Background(), sampleTask())
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "built", result.Output)
	assert.Equal(t, "make build-api", gotCommand)
}

// TestBaseAgent_ExecutorFailure verifies a failed command returns both the
// failure result and the error.
func TestBaseAgent_ExecutorFailure(t *testing.T) {
	a := NewTestAgent(zerolog.Nop(),
		WithCommand("make test"),
		WithExecutor(func(_ context.Context, _ string) (string, error) {
			return "1 test failed", testutil.ErrMockExecution
		}),
	)

	result, err := a.Execute(context.Background(), sampleTask())
	require.Error(t, err)
	assert.ErrorIs(t, err, testutil.ErrMockExecution)
	require.NotNil(t, result)
	assert.False(t, result.Success)
	assert.Equal(t, "1 test failed", result.Output)
	assert.NotEmpty(t, result.Error)
	assert.False(t, a.Busy(), "busy flag must clear after failure")
}

// TestBaseAgent_BusyGuard verifies a second concurrent Execute is rejected
// with ErrAgentBusy.
func TestBaseAgent_BusyGuard(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})

	a := NewQualityAgent(zerolog.Nop(),
		WithCommand("make quality"),
		WithExecutor(func(_ context.Context, _ string) (string, error) {
			close(started)
			<-release
			return "ok", nil
		}),
	)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := a.Execute(context.Background(), sampleTask())
		assert.NoError(t, err)
	}()

	<-started
	assert.True(t, a.Busy())

	_, err := a.Execute(context.Background(), sampleTask())
	require.Error(t, err)
	assert.ErrorIs(t, err, foremanerrors.ErrAgentBusy)

	close(release)
	wg.Wait()
	assert.False(t, a.Busy())
}

// TestBaseAgent_NilTask verifies a nil task is rejected.
func TestBaseAgent_NilTask(t *testing.T) {
	a := NewAPIAgent(zerolog.Nop())

	_, err := a.Execute(context.Background(), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, foremanerrors.ErrEmptyValue)
}

// TestBaseAgent_CanceledContext verifies a canceled context aborts before
// the command runs.
func TestBaseAgent_CanceledContext(t *testing.T) {
	calls := 0
	a := NewAPIAgent(zerolog.Nop(),
		WithCommand("make build"),
		WithExecutor(func(_ context.Context, _ string) (string, error) {
			calls++
			return "", nil
		}),
	)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := a.Execute(ctx, sampleTask())
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, calls)
	assert.False(t, a.Busy())
}

// TestDefaultDependencies verifies each role agent declares its upstream
// roles.
func TestDefaultDependencies(t *testing.T) {
	logger := zerolog.Nop()

	tests := []struct {
		agent Agent
		role  domain.Role
		deps  []domain.Role
	}{
		{NewModelsAgent(logger), domain.RoleModels, nil},
		{NewAPIAgent(logger), domain.RoleAPI, []domain.Role{domain.RoleModels}},
		{NewTestAgent(logger), domain.RoleTest, []domain.Role{domain.RoleAPI, domain.RoleModels}},
		{NewRealtimeAgent(logger), domain.RoleRealtime, []domain.Role{domain.RoleAPI}},
		{NewQualityAgent(logger), domain.RoleQuality, []domain.Role{domain.RoleTest}},
		{NewIntegrationAgent(logger), domain.RoleIntegration, []domain.Role{domain.RoleAPI}},
		{NewSecurityAgent(logger), domain.RoleSecurity, nil},
	}

	for _, tt := range tests {
		t.Run(tt.role.String(), func(t *testing.T) {
			assert.Equal(t, tt.role, tt.agent.Role())
			assert.Equal(t, tt.deps, tt.agent.Dependencies())
		})
	}
}

// TestBaseAgent_WithDependencies verifies the override option.
func TestBaseAgent_WithDependencies(t *testing.T) {
	a := NewTestAgent(zerolog.Nop(), WithDependencies(domain.RoleAPI))
	assert.Equal(t, []domain.Role{domain.RoleAPI}, a.Dependencies())
}
