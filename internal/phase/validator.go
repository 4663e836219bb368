// Package phase provides phase lifecycle management for Foreman: milestone
// validation, task generation, progress math, and phase advancement with
// dependency gating.
package phase

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/forgecrew/foreman/internal/constants"
	"github.com/forgecrew/foreman/internal/domain"
	"github.com/forgecrew/foreman/internal/store"
)

// inProgressEstimate is the fixed heuristic fraction for a milestone that is
// in progress with no finer signal available.
const inProgressEstimate = 0.5

// ProbeFunc is an independent boolean completion probe for one
// (phase, milestone) pair, e.g. "is the dependent service reachable" or
// "did the named suite pass".
type ProbeFunc func(ctx context.Context, st *store.State) bool

// CustomCheck is a pluggable named validation hook attached to a milestone.
type CustomCheck func(ctx context.Context, m *domain.Milestone) bool

// probeKey identifies a probe table entry.
type probeKey struct {
	phase       int
	milestoneID string
}

// Validator decides whether a milestone's completion criteria are satisfied.
// It never panics outward: internal faults degrade to a false result.
type Validator struct {
	probes map[probeKey]ProbeFunc
	custom map[string]CustomCheck
	logger zerolog.Logger
}

// ValidatorOption configures a Validator.
type ValidatorOption func(*Validator)

// WithProbe registers a phase-and-milestone-specific completion probe.
func WithProbe(phase int, milestoneID string, fn ProbeFunc) ValidatorOption {
	return func(v *Validator) {
		v.probes[probeKey{phase: phase, milestoneID: milestoneID}] = fn
	}
}

// WithCustomCheck registers a custom validation hook for a milestone.
func WithCustomCheck(milestoneID string, fn CustomCheck) ValidatorOption {
	return func(v *Validator) {
		v.custom[milestoneID] = fn
	}
}

// NewValidator creates a milestone validator. Milestones without a
// registered probe or custom check pass those stages by default.
func NewValidator(logger zerolog.Logger, opts ...ValidatorOption) *Validator {
	v := &Validator{
		probes: make(map[probeKey]ProbeFunc),
		custom: make(map[string]CustomCheck),
		logger: logger.With().Str("component", "validator").Logger(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate reports whether the milestone's completion criteria are
// satisfied. Checks run in order and short-circuit on the first failure:
//
//  1. Required-role tasks are not still waiting (the milestone is at least
//     in progress; a milestone with no required roles passes vacuously).
//  2. The milestone's custom validation hook, if one is registered.
//  3. The (phase, milestone) probe from the lookup table, if one is
//     registered.
func (v *Validator) Validate(ctx context.Context, st *store.State, m *domain.Milestone) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			v.logger.Error().
				Str("milestone_id", m.ID).
				Any("panic", r).
				Msg("validation fault, degrading to false")
			ok = false
		}
	}()

	if m == nil || st == nil {
		return false
	}

	if !v.requiredWorkStarted(st, m) {
		return false
	}

	if check, exists := v.custom[m.ID]; exists && !check(ctx, m) {
		v.logger.Debug().Str("milestone_id", m.ID).Msg("custom check failed")
		return false
	}

	if probe, exists := v.probes[probeKey{phase: m.Phase, milestoneID: m.ID}]; exists && !probe(ctx, st) {
		v.logger.Debug().
			Str("milestone_id", m.ID).
			Int("phase", m.Phase).
			Msg("phase-specific probe failed")
		return false
	}

	return true
}

// EstimatedProgress returns the milestone's contribution to phase progress:
// 1.0 when completed, a fixed heuristic fraction when in progress, 0
// otherwise.
func (v *Validator) EstimatedProgress(m *domain.Milestone) float64 {
	if m == nil {
		return 0
	}
	switch m.Status {
	case constants.MilestoneStatusCompleted:
		return 1.0
	case constants.MilestoneStatusInProgress:
		return inProgressEstimate
	default:
		return 0
	}
}

// requiredWorkStarted checks that no required-role task for the milestone is
// still waiting. A milestone with required roles that has not started at all
// fails; a milestone without required roles passes vacuously.
func (v *Validator) requiredWorkStarted(st *store.State, m *domain.Milestone) bool {
	if len(m.RequiredRoles) == 0 {
		return true
	}
	if m.Status == constants.MilestoneStatusPending {
		return false
	}
	for _, t := range st.MilestoneTasks(m.ID) {
		if t.Status == constants.TaskStatusWaiting {
			return false
		}
	}
	return true
}
