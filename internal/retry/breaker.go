package retry

import "time"

// BreakerState is the circuit breaker state for a key.
type BreakerState string

// Circuit breaker states.
const (
	// BreakerClosed allows calls normally.
	BreakerClosed BreakerState = "closed"

	// BreakerOpen rejects calls without attempting the operation.
	BreakerOpen BreakerState = "open"

	// BreakerHalfOpen allows exactly one trial call after the reset timeout.
	BreakerHalfOpen BreakerState = "half-open"
)

// breaker is the per-key circuit breaker. All access is serialized by the
// owning Executor's mutex.
type breaker struct {
	state               BreakerState
	consecutiveFailures int
	lastFailure         time.Time
	threshold           int
	resetTimeout        time.Duration
	trialInFlight       bool
}

// newBreaker returns a closed breaker with the given limits.
func newBreaker(threshold int, resetTimeout time.Duration) *breaker {
	return &breaker{
		state:        BreakerClosed,
		threshold:    threshold,
		resetTimeout: resetTimeout,
	}
}

// allow reports whether a call may proceed at the given time. When an open
// breaker's reset timeout has elapsed it transitions to half-open and admits
// exactly one trial call; further calls are rejected until the trial settles.
func (b *breaker) allow(now time.Time) bool {
	switch b.state {
	case BreakerOpen:
		if now.Sub(b.lastFailure) >= b.resetTimeout {
			b.state = BreakerHalfOpen
			b.trialInFlight = true
			return true
		}
		return false
	case BreakerHalfOpen:
		if b.trialInFlight {
			return false
		}
		b.trialInFlight = true
		return true
	default: // BreakerClosed
		return true
	}
}

// recordSuccess closes the breaker and resets the failure counter.
func (b *breaker) recordSuccess() {
	b.state = BreakerClosed
	b.consecutiveFailures = 0
	b.trialInFlight = false
}

// recordFailure counts a failure; reaching the threshold (or failing the
// half-open trial) opens the breaker and restarts the reset timeout.
func (b *breaker) recordFailure(now time.Time) {
	b.consecutiveFailures++
	b.lastFailure = now
	if b.state == BreakerHalfOpen || (b.threshold > 0 && b.consecutiveFailures >= b.threshold) {
		b.state = BreakerOpen
	}
	b.trialInFlight = false
}

// reset returns the breaker to closed with a clean failure counter.
func (b *breaker) reset() {
	b.state = BreakerClosed
	b.consecutiveFailures = 0
	b.trialInFlight = false
}
