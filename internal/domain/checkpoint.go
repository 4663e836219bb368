package domain

import (
	"encoding/json"
	"time"
)

// Checkpoint is a durable snapshot of orchestrator state taken before a
// risky operation. Checkpoints live in a bounded ring buffer; the oldest is
// evicted past the configured maximum.
type Checkpoint struct {
	// ID is a unique identifier for the checkpoint.
	ID string `json:"id"`

	// Timestamp is when the checkpoint was taken.
	Timestamp time.Time `json:"timestamp"`

	// Label names the operation the checkpoint protects.
	Label string `json:"label"`

	// State is the full encoded state document at checkpoint time.
	State json.RawMessage `json:"state"`

	// Restorable marks checkpoints the recovery manager may restore.
	Restorable bool `json:"restorable"`

	// Role is the executor role associated with the protected operation,
	// if any.
	Role *Role `json:"role,omitempty"`
}

// CommandResult is the uniform envelope returned by every control surface
// operation.
type CommandResult struct {
	// Success indicates whether the operation succeeded.
	Success bool `json:"success"`

	// Message is a human-readable summary.
	Message string `json:"message"`

	// Data carries operation-specific payload, if any.
	Data any `json:"data,omitempty"`

	// Error is the failure description when Success is false.
	Error string `json:"error,omitempty"`
}
