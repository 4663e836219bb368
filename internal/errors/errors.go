// Package errors provides centralized error handling for Foreman.
//
// This package defines sentinel errors used for programmatic error categorization
// throughout the application. All error types can be checked using errors.Is().
//
// IMPORTANT: This package MUST NOT import any other internal packages.
// Only standard library imports are allowed.
package errors

import "errors"

// Sentinel errors for error categorization.
// These allow callers to check error types with errors.Is().
// All errors use lowercase descriptions per Go conventions.
var (
	// ErrAgentUnavailable indicates the target agent was momentarily busy or
	// not reachable. Safe to retry immediately.
	ErrAgentUnavailable = errors.New("agent unavailable")

	// ErrExecutionTimeout indicates an agent did not produce a result within
	// its time budget. Safe to retry with backoff.
	ErrExecutionTimeout = errors.New("execution timeout")

	// ErrCommandFailed indicates a shell command invoked by an agent exited
	// non-zero. Safe to retry with backoff.
	ErrCommandFailed = errors.New("command failed")

	// ErrConflictDetected indicates a business or policy violation surfaced
	// by an agent (e.g. a security finding). Requires human adjudication; the
	// workflow pauses and the task is not retried.
	ErrConflictDetected = errors.New("conflict detected")

	// ErrStateCorrupted indicates orchestrator state is suspected
	// inconsistent. The most recent restorable checkpoint is restored.
	ErrStateCorrupted = errors.New("state corrupted")

	// ErrFatal indicates an unrecoverable failure. No retry, no rollback.
	ErrFatal = errors.New("fatal error")

	// ErrCircuitOpen indicates a call was rejected because the key's circuit
	// breaker is open. Requires a reset timeout or manual reset.
	ErrCircuitOpen = errors.New("circuit breaker open")

	// ErrRetriesExhausted indicates all retry attempts were used.
	ErrRetriesExhausted = errors.New("retries exhausted")

	// ErrStateNotFound indicates no persisted state document exists yet.
	ErrStateNotFound = errors.New("state not found")

	// ErrCheckpointNotFound indicates no restorable checkpoint exists.
	ErrCheckpointNotFound = errors.New("checkpoint not found")

	// ErrSchemaVersion indicates a persisted document has an unsupported
	// schema version.
	ErrSchemaVersion = errors.New("unsupported schema version")

	// ErrInvalidRole indicates an unknown executor role name.
	ErrInvalidRole = errors.New("invalid role")

	// ErrNoAgent indicates no agent is registered for the requested role.
	ErrNoAgent = errors.New("no agent registered")

	// ErrAgentBusy indicates the agent already has an active task.
	ErrAgentBusy = errors.New("agent busy")

	// ErrPhaseIncomplete indicates a phase cannot advance because milestones
	// or the exit test are not yet satisfied.
	ErrPhaseIncomplete = errors.New("phase incomplete")

	// ErrPhaseOutOfRange indicates an advance past the last phase or a
	// rollback below phase zero.
	ErrPhaseOutOfRange = errors.New("phase out of range")

	// ErrExitTestFailed indicates the phase exit-test command did not pass.
	ErrExitTestFailed = errors.New("exit test failed")

	// ErrUnknownMilestone indicates a milestone ID not present in the state.
	ErrUnknownMilestone = errors.New("unknown milestone")

	// ErrUnknownPhase indicates a phase number not present in the registry.
	ErrUnknownPhase = errors.New("unknown phase")

	// ErrEmptyValue indicates that a required value was empty.
	ErrEmptyValue = errors.New("value cannot be empty")

	// ErrLockTimeout indicates a file lock could not be acquired in time.
	ErrLockTimeout = errors.New("lock acquisition timeout")

	// ErrConfigInvalid indicates an invalid configuration value.
	ErrConfigInvalid = errors.New("invalid configuration")

	// ErrEngineStopped indicates an operation that requires a running engine.
	ErrEngineStopped = errors.New("engine not running")

	// ErrInvalidOutputFormat indicates an unsupported CLI output format.
	ErrInvalidOutputFormat = errors.New("invalid output format")
)
