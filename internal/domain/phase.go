package domain

import (
	"time"

	"github.com/forgecrew/foreman/internal/constants"
)

// Phase is an immutable phase definition loaded from the phase registry.
// It describes one large ordered stage of the build workflow, gated by
// milestone completion and an exit test.
//
// Example JSON representation:
//
//	{
//	    "number": 0,
//	    "name": "Foundation",
//	    "milestones": [...],
//	    "required_roles": ["api", "models", "test"],
//	    "exit_test": "make verify-foundation",
//	    "depends_on": []
//	}
type Phase struct {
	// Number is the ordinal position of the phase, starting at zero.
	Number int `json:"number" yaml:"number"`

	// Name is the human-readable phase name.
	Name string `json:"name" yaml:"name"`

	// Description summarizes what the phase delivers.
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// Milestones is the ordered list of milestone definitions for the phase.
	Milestones []MilestoneDef `json:"milestones" yaml:"milestones"`

	// RequiredRoles is the set of executor roles the phase needs overall.
	RequiredRoles []Role `json:"required_roles,omitempty" yaml:"required_roles,omitempty"`

	// ExitTest is an external pass/fail command gating phase advancement.
	// Foreman treats it as an opaque oracle.
	ExitTest string `json:"exit_test,omitempty" yaml:"exit_test,omitempty"`

	// DependsOn lists phase numbers that must be in the completed set before
	// this phase may become current.
	DependsOn []int `json:"depends_on,omitempty" yaml:"depends_on,omitempty"`
}

// MilestoneDef is the immutable registry definition of a milestone.
type MilestoneDef struct {
	// ID uniquely identifies the milestone across all phases.
	ID string `json:"id" yaml:"id"`

	// Name is the human-readable milestone name.
	Name string `json:"name" yaml:"name"`

	// Description summarizes the deliverable.
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// RequiredRoles lists the executor roles whose tasks must complete.
	// An empty list means the milestone needs no agent work and completes
	// through validation alone.
	RequiredRoles []Role `json:"required_roles,omitempty" yaml:"required_roles,omitempty"`
}

// Milestone is the mutable runtime state of a milestone. It is mutated only
// through the phase manager.
type Milestone struct {
	// ID matches the MilestoneDef it was created from.
	ID string `json:"id"`

	// Phase is the owning phase number.
	Phase int `json:"phase"`

	// Name is the human-readable milestone name.
	Name string `json:"name"`

	// Description summarizes the deliverable.
	Description string `json:"description,omitempty"`

	// Status is the current milestone state.
	Status constants.MilestoneStatus `json:"status"`

	// RequiredRoles lists the executor roles whose tasks must complete.
	RequiredRoles []Role `json:"required_roles,omitempty"`

	// StartedAt is stamped on the first transition into in_progress.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// CompletedAt is stamped on the transition into completed.
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}
