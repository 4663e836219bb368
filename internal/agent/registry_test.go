package agent

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgecrew/foreman/internal/domain"
	foremanerrors "github.com/forgecrew/foreman/internal/errors"
)

// TestNewDefaultRegistry verifies one agent per role, each wired to its
// configured command.
func TestNewDefaultRegistry(t *testing.T) {
	r, err := NewDefaultRegistry(zerolog.Nop(), map[domain.Role]string{
		domain.RoleModels: "make migrate",
	})
	require.NoError(t, err)

	all := r.All()
	require.Len(t, all, int(domain.NumRoles))
	for i, a := range all {
		assert.Equal(t, domain.Role(i), a.Role(), "agents come back in role order")
	}

	models, err := r.Get(domain.RoleModels)
	require.NoError(t, err)
	assert.Equal(t, "models-builder", models.Name())

	security, err := r.Get(domain.RoleSecurity)
	require.NoError(t, err)
	assert.Equal(t, "security-scanner", security.Name())
}

// TestRegistry_Register verifies nil agents, invalid roles, and duplicate
// registrations are rejected.
func TestRegistry_Register(t *testing.T) {
	r := NewRegistry()

	require.Error(t, r.Register(nil))

	require.NoError(t, r.Register(NewAPIAgent(zerolog.Nop())))
	err := r.Register(NewAPIAgent(zerolog.Nop()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already has agent")
}

// TestRegistry_Get verifies lookups for unregistered and invalid roles.
func TestRegistry_Get(t *testing.T) {
	r := NewRegistry()

	_, err := r.Get(domain.RoleTest)
	require.Error(t, err)
	assert.ErrorIs(t, err, foremanerrors.ErrNoAgent)

	_, err = r.Get(domain.Role(99))
	require.Error(t, err)
	assert.ErrorIs(t, err, foremanerrors.ErrInvalidRole)
}

// TestRegistry_All_Sparse verifies a partially populated registry returns
// only registered agents.
func TestRegistry_All_Sparse(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(NewTestAgent(zerolog.Nop())))
	require.NoError(t, r.Register(NewModelsAgent(zerolog.Nop())))

	all := r.All()
	require.Len(t, all, 2)
	assert.Equal(t, domain.RoleModels, all[0].Role())
	assert.Equal(t, domain.RoleTest, all[1].Role())
}
