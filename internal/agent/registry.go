package agent

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/forgecrew/foreman/internal/domain"
	foremanerrors "github.com/forgecrew/foreman/internal/errors"
)

// Registry holds at most one agent per role, indexed by the role enum. The
// set is fixed after construction; the engine only reads it.
type Registry struct {
	agents [domain.NumRoles]Agent
}

// NewRegistry creates an empty agent registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// NewDefaultRegistry creates a registry populated with one agent per role,
// each configured with the command from the commands map (empty command
// means dry-run mode).
func NewDefaultRegistry(logger zerolog.Logger, commands map[domain.Role]string) (*Registry, error) {
	r := NewRegistry()
	agents := []Agent{
		NewAPIAgent(logger, WithCommand(commands[domain.RoleAPI])),
		NewModelsAgent(logger, WithCommand(commands[domain.RoleModels])),
		NewTestAgent(logger, WithCommand(commands[domain.RoleTest])),
		NewRealtimeAgent(logger, WithCommand(commands[domain.RoleRealtime])),
		NewQualityAgent(logger, WithCommand(commands[domain.RoleQuality])),
		NewIntegrationAgent(logger, WithCommand(commands[domain.RoleIntegration])),
		NewSecurityAgent(logger, WithCommand(commands[domain.RoleSecurity])),
	}
	for _, a := range agents {
		if err := r.Register(a); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds an agent for its declared role. Registering a second agent
// for the same role is an error.
func (r *Registry) Register(a Agent) error {
	if a == nil {
		return fmt.Errorf("register: agent %w", foremanerrors.ErrEmptyValue)
	}
	role := a.Role()
	if !role.IsValid() {
		return fmt.Errorf("%w: %d", foremanerrors.ErrInvalidRole, int(role))
	}
	if r.agents[role] != nil {
		return fmt.Errorf("register: role %s already has agent %q", role, r.agents[role].Name())
	}
	r.agents[role] = a
	return nil
}

// Get returns the agent for a role. Returns ErrNoAgent when the role has no
// registered agent.
func (r *Registry) Get(role domain.Role) (Agent, error) {
	if !role.IsValid() {
		return nil, fmt.Errorf("%w: %d", foremanerrors.ErrInvalidRole, int(role))
	}
	a := r.agents[role]
	if a == nil {
		return nil, fmt.Errorf("%w: role %s", foremanerrors.ErrNoAgent, role)
	}
	return a, nil
}

// All returns the registered agents in role order.
func (r *Registry) All() []Agent {
	var out []Agent
	for _, a := range r.agents {
		if a != nil {
			out = append(out, a)
		}
	}
	return out
}
