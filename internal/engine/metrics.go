package engine

import "time"

// Metrics receives engine telemetry. Implementations must be safe for
// concurrent use. The Prometheus implementation lives in internal/metrics;
// NoopMetrics is the default.
type Metrics interface {
	// TickStarted is called at the start of every control-loop tick.
	TickStarted()

	// TickCompleted is called when a tick finishes, with its wall time.
	TickCompleted(d time.Duration)

	// TaskDispatched is called when a task is handed to an agent.
	TaskDispatched(role string)

	// TaskCompleted is called when a task completes, with its execution time.
	TaskCompleted(role string, d time.Duration)

	// TaskFailed is called when a task reaches the failed state.
	TaskFailed(role string)

	// ConflictDetected is called when a result carries a conflict marker.
	ConflictDetected()

	// CircuitOpened is called when a failure decision circuit-breaks a key.
	CircuitOpened(key string)

	// PhaseChanged is called after an advance or rollback, with the new phase.
	PhaseChanged(phase int)

	// ProgressUpdated is called after each tick with overall progress in [0,1].
	ProgressUpdated(overall float64)
}

// NoopMetrics is a Metrics implementation that does nothing.
type NoopMetrics struct{}

// TickStarted does nothing.
func (NoopMetrics) TickStarted() {}

// TickCompleted does nothing.
func (NoopMetrics) TickCompleted(time.Duration) {}

// TaskDispatched does nothing.
func (NoopMetrics) TaskDispatched(string) {}

// TaskCompleted does nothing.
func (NoopMetrics) TaskCompleted(string, time.Duration) {}

// TaskFailed does nothing.
func (NoopMetrics) TaskFailed(string) {}

// ConflictDetected does nothing.
func (NoopMetrics) ConflictDetected() {}

// CircuitOpened does nothing.
func (NoopMetrics) CircuitOpened(string) {}

// PhaseChanged does nothing.
func (NoopMetrics) PhaseChanged(int) {}

// ProgressUpdated does nothing.
func (NoopMetrics) ProgressUpdated(float64) {}
