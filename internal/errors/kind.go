package errors

import "errors"

// Kind is the coarse error taxonomy used by the retry policy engine and the
// recovery manager to decide how a failure is handled.
type Kind string

// Error kinds, from most to least recoverable.
const (
	// KindTransient errors are safe to retry immediately.
	KindTransient Kind = "transient"

	// KindRetriable errors are safe to retry with backoff.
	KindRetriable Kind = "retriable"

	// KindConflict errors are business/policy violations that pause the
	// workflow for human adjudication. Never retried.
	KindConflict Kind = "conflict"

	// KindRollback errors indicate suspect state; the last restorable
	// checkpoint is restored. Never retried.
	KindRollback Kind = "rollback"

	// KindFatal errors get no retry and no rollback.
	KindFatal Kind = "fatal"
)

// String returns the string representation of the Kind.
func (k Kind) String() string {
	return string(k)
}

// Retryable reports whether errors of this kind may be attempted again.
func (k Kind) Retryable() bool {
	return k == KindTransient || k == KindRetriable
}

// Classify maps an error to its Kind using the sentinel error chain.
//
// Unrecognized errors classify as KindRetriable: an unknown failure from an
// agent is assumed to be an environmental problem worth a bounded number of
// backed-off attempts, after which it surfaces normally. The conflict,
// rollback, and fatal classes must be explicit.
func Classify(err error) Kind {
	switch {
	case err == nil:
		return KindTransient
	case errors.Is(err, ErrConflictDetected):
		return KindConflict
	case errors.Is(err, ErrStateCorrupted):
		return KindRollback
	case errors.Is(err, ErrFatal), errors.Is(err, ErrCircuitOpen):
		return KindFatal
	case errors.Is(err, ErrAgentUnavailable):
		return KindTransient
	case errors.Is(err, ErrExecutionTimeout), errors.Is(err, ErrCommandFailed):
		return KindRetriable
	default:
		return KindRetriable
	}
}
