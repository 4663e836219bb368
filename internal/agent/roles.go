package agent

import (
	"github.com/rs/zerolog"

	"github.com/forgecrew/foreman/internal/domain"
)

// defaultDependencies encodes the default upstream-role gating: an agent is
// not dispatched while any task of a listed role in the current phase is
// incomplete. Overridable per agent with WithDependencies.
var defaultDependencies = map[domain.Role][]domain.Role{
	domain.RoleModels:      nil,
	domain.RoleAPI:         {domain.RoleModels},
	domain.RoleTest:        {domain.RoleAPI, domain.RoleModels},
	domain.RoleRealtime:    {domain.RoleAPI},
	domain.RoleQuality:     {domain.RoleTest},
	domain.RoleIntegration: {domain.RoleAPI},
	domain.RoleSecurity:    nil,
}

// APIAgent builds the API layer.
type APIAgent struct{ *BaseAgent }

// NewAPIAgent creates the API-layer builder.
func NewAPIAgent(logger zerolog.Logger, opts ...Option) *APIAgent {
	return &APIAgent{newBase("api-builder", domain.RoleAPI, defaultDependencies[domain.RoleAPI], logger, opts...)}
}

// ModelsAgent builds schemas and data models.
type ModelsAgent struct{ *BaseAgent }

// NewModelsAgent creates the data-model builder.
func NewModelsAgent(logger zerolog.Logger, opts ...Option) *ModelsAgent {
	return &ModelsAgent{newBase("models-builder", domain.RoleModels, defaultDependencies[domain.RoleModels], logger, opts...)}
}

// TestAgent runs test suites.
type TestAgent struct{ *BaseAgent }

// NewTestAgent creates the test runner.
func NewTestAgent(logger zerolog.Logger, opts ...Option) *TestAgent {
	return &TestAgent{newBase("test-runner", domain.RoleTest, defaultDependencies[domain.RoleTest], logger, opts...)}
}

// RealtimeAgent builds realtime channels and presence.
type RealtimeAgent struct{ *BaseAgent }

// NewRealtimeAgent creates the realtime-channel builder.
func NewRealtimeAgent(logger zerolog.Logger, opts ...Option) *RealtimeAgent {
	return &RealtimeAgent{newBase("realtime-builder", domain.RoleRealtime, defaultDependencies[domain.RoleRealtime], logger, opts...)}
}

// QualityAgent runs quality and validation suites.
type QualityAgent struct{ *BaseAgent }

// NewQualityAgent creates the quality/validation runner.
func NewQualityAgent(logger zerolog.Logger, opts ...Option) *QualityAgent {
	return &QualityAgent{newBase("quality-runner", domain.RoleQuality, defaultDependencies[domain.RoleQuality], logger, opts...)}
}

// IntegrationAgent wires third-party integrations.
type IntegrationAgent struct{ *BaseAgent }

// NewIntegrationAgent creates the third-party-integration runner.
func NewIntegrationAgent(logger zerolog.Logger, opts ...Option) *IntegrationAgent {
	return &IntegrationAgent{newBase("integration-runner", domain.RoleIntegration, defaultDependencies[domain.RoleIntegration], logger, opts...)}
}
