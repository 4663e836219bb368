// Package registry provides the static, ordered catalog of phase definitions
// that drives the Foreman workflow. The catalog is pure data: phase numbers,
// names, milestones, required roles, exit-test commands, and inter-phase
// dependencies. Behavior lives in internal/phase and internal/engine.
package registry

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/forgecrew/foreman/internal/domain"
	foremanerrors "github.com/forgecrew/foreman/internal/errors"
)

// Registry holds the ordered, immutable phase catalog.
type Registry struct {
	phases []domain.Phase
}

// New creates a registry from the given phase list. Phases are sorted by
// number; numbers must be contiguous starting at zero and milestone IDs must
// be unique across the catalog.
func New(phases []domain.Phase) (*Registry, error) {
	if len(phases) == 0 {
		return nil, fmt.Errorf("phase catalog %w", foremanerrors.ErrEmptyValue)
	}

	sorted := make([]domain.Phase, len(phases))
	copy(sorted, phases)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Number < sorted[j].Number })

	seen := make(map[string]int)
	for i, p := range sorted {
		if p.Number != i {
			return nil, fmt.Errorf("%w: phase numbers must be contiguous from zero, got %d at position %d",
				foremanerrors.ErrConfigInvalid, p.Number, i)
		}
		if p.Name == "" {
			return nil, fmt.Errorf("phase %d name %w", p.Number, foremanerrors.ErrEmptyValue)
		}
		for _, dep := range p.DependsOn {
			if dep < 0 || dep >= p.Number {
				return nil, fmt.Errorf("%w: phase %d depends on invalid phase %d",
					foremanerrors.ErrConfigInvalid, p.Number, dep)
			}
		}
		for _, m := range p.Milestones {
			if m.ID == "" {
				return nil, fmt.Errorf("phase %d milestone ID %w", p.Number, foremanerrors.ErrEmptyValue)
			}
			if prev, dup := seen[m.ID]; dup {
				return nil, fmt.Errorf("%w: milestone %q defined in phases %d and %d",
					foremanerrors.ErrConfigInvalid, m.ID, prev, p.Number)
			}
			seen[m.ID] = p.Number
			for _, r := range m.RequiredRoles {
				if !r.IsValid() {
					return nil, fmt.Errorf("%w: milestone %q", foremanerrors.ErrInvalidRole, m.ID)
				}
			}
		}
	}

	return &Registry{phases: sorted}, nil
}

// Default returns the built-in phase catalog.
func Default() *Registry {
	r, err := New(defaultPhases())
	if err != nil {
		// The built-in catalog is validated by tests; a failure here is a
		// programming error.
		panic(err)
	}
	return r
}

// LoadFile reads a phase catalog from a YAML file, replacing the built-in
// catalog entirely. The file holds a list of phase definitions.
func LoadFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- path comes from operator configuration
	if err != nil {
		return nil, fmt.Errorf("failed to read phase catalog: %w", err)
	}

	var phases []domain.Phase
	if err := yaml.Unmarshal(data, &phases); err != nil {
		return nil, fmt.Errorf("failed to parse phase catalog: %w", err)
	}

	return New(phases)
}

// Phase returns the definition for the given phase number.
func (r *Registry) Phase(number int) (*domain.Phase, error) {
	if number < 0 || number >= len(r.phases) {
		return nil, fmt.Errorf("%w: %d", foremanerrors.ErrUnknownPhase, number)
	}
	p := r.phases[number]
	return &p, nil
}

// Phases returns a copy of the full ordered catalog.
func (r *Registry) Phases() []domain.Phase {
	out := make([]domain.Phase, len(r.phases))
	copy(out, r.phases)
	return out
}

// MaxPhase returns the highest defined phase number.
func (r *Registry) MaxPhase() int {
	return len(r.phases) - 1
}

// Count returns the number of defined phases.
func (r *Registry) Count() int {
	return len(r.phases)
}

// MilestoneDef looks up a milestone definition by phase number and ID.
func (r *Registry) MilestoneDef(phase int, milestoneID string) (*domain.MilestoneDef, error) {
	p, err := r.Phase(phase)
	if err != nil {
		return nil, err
	}
	for i := range p.Milestones {
		if p.Milestones[i].ID == milestoneID {
			return &p.Milestones[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %q in phase %d", foremanerrors.ErrUnknownMilestone, milestoneID, phase)
}
