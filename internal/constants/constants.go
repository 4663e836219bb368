// Package constants provides centralized constant values used throughout Foreman.
// This package is the single source of truth for all shared constants and MUST NOT
// import any other internal packages.
package constants

import "time"

// File names used by Foreman for state persistence.
const (
	// StateFileName is the name of the JSON file that stores the aggregate
	// orchestrator state document.
	StateFileName = "state.json"

	// ErrorLogFileName is the durable append-only error log (JSON-lines).
	ErrorLogFileName = "errors.jsonl"

	// LessonLogFileName is the append-only lesson log (JSON-lines).
	LessonLogFileName = "lessons.jsonl"

	// ProgressLogFileName is the human-readable progress log.
	ProgressLogFileName = "progress.log"
)

// Directory names and paths used by Foreman for organizing data.
const (
	// ForemanHome is the hidden directory name where Foreman stores all its data.
	// This directory is created in the user's home directory.
	ForemanHome = ".foreman"

	// BackupsDir is the directory name where timestamped state backups are stored.
	BackupsDir = "backups"

	// LogsDir is the directory name where log files are stored.
	LogsDir = "logs"
)

// Engine defaults.
const (
	// DefaultTickInterval is the interval between scheduler ticks.
	DefaultTickInterval = 5 * time.Second

	// DefaultErrorLogCap is the maximum number of error log entries kept in
	// the aggregate state document. Older entries are evicted; the durable
	// JSON-lines log retains the full history.
	DefaultErrorLogCap = 100

	// DefaultExitTestTimeout is the maximum duration for a phase exit-test
	// command to complete.
	DefaultExitTestTimeout = 10 * time.Minute
)

// Retry configuration defaults for recoverable operations.
const (
	// DefaultMaxAttempts is the maximum number of attempts for recoverable errors.
	DefaultMaxAttempts = 3

	// DefaultBaseDelay is the backoff delay before the first retry.
	// Subsequent retries use exponential backoff based on this value.
	DefaultBaseDelay = 1 * time.Second

	// DefaultMaxDelay caps the exponential backoff delay.
	DefaultMaxDelay = 30 * time.Second

	// DefaultBreakerThreshold is the number of consecutive failures on a key
	// before its circuit breaker opens.
	DefaultBreakerThreshold = 5

	// DefaultBreakerResetTimeout is how long an open breaker waits before
	// allowing a half-open trial call.
	DefaultBreakerResetTimeout = 1 * time.Minute
)

// Checkpoint defaults.
const (
	// DefaultMaxCheckpoints bounds the checkpoint ring buffer. The oldest
	// checkpoint is evicted once the limit is exceeded.
	DefaultMaxCheckpoints = 20
)

// Schema version constants for data migration support.
const (
	// StateSchemaVersion is the current version of the aggregate state
	// document schema. This enables forward-compatible schema migrations.
	StateSchemaVersion = 1
)
