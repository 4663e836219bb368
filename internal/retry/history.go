package retry

import "time"

// Attempt records one execution attempt for a key.
type Attempt struct {
	// Number is the 1-based attempt number within one ExecuteWithRetry call.
	Number int `json:"number"`

	// Timestamp is when the attempt started.
	Timestamp time.Time `json:"timestamp"`

	// Success indicates whether the attempt succeeded.
	Success bool `json:"success"`

	// Delay is the backoff applied before this attempt (zero for the first).
	Delay time.Duration `json:"delay"`

	// Error is the failure message for unsuccessful attempts.
	Error string `json:"error,omitempty"`
}

// History accumulates every attempt recorded for a key.
type History struct {
	// Key identifies the unit of work (typically a role or task key).
	Key string `json:"key"`

	// Attempts lists every recorded attempt in order.
	Attempts []Attempt `json:"attempts"`

	// TotalAttempts counts all attempts across all executions.
	TotalAttempts int `json:"total_attempts"`

	// TotalElapsed sums the wall time of all executions for the key.
	TotalElapsed time.Duration `json:"total_elapsed"`
}

// record appends an attempt and updates the aggregates.
func (h *History) record(a Attempt) {
	h.Attempts = append(h.Attempts, a)
	h.TotalAttempts++
}

// clone returns a deep copy safe to hand to callers.
func (h *History) clone() *History {
	out := &History{
		Key:           h.Key,
		TotalAttempts: h.TotalAttempts,
		TotalElapsed:  h.TotalElapsed,
		Attempts:      make([]Attempt, len(h.Attempts)),
	}
	copy(out.Attempts, h.Attempts)
	return out
}
