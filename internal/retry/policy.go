// Package retry provides the retry policy engine: bounded retries with
// exponential backoff, a per-key circuit breaker, and attempt history.
// Transient and retriable failures are absorbed here; they only surface to
// callers when attempts are exhausted or a breaker is open.
package retry

import (
	"fmt"
	"time"

	"github.com/forgecrew/foreman/internal/constants"
	foremanerrors "github.com/forgecrew/foreman/internal/errors"
)

// Strategy selects the backoff curve between attempts.
type Strategy string

// Backoff strategies.
const (
	// StrategyExponential doubles the delay after each failed attempt,
	// capped at the policy's MaxDelay.
	StrategyExponential Strategy = "exponential"

	// StrategyFixed waits BaseDelay between every attempt.
	StrategyFixed Strategy = "fixed"
)

// Policy configures retry behavior for a unit of work.
type Policy struct {
	// MaxAttempts bounds the total number of attempts (including the first).
	MaxAttempts int

	// Strategy selects the backoff curve.
	Strategy Strategy

	// BaseDelay is the delay before the first retry.
	BaseDelay time.Duration

	// MaxDelay caps the backoff delay.
	MaxDelay time.Duration

	// RetryableKinds is the allow-list of error kinds worth retrying. An
	// error whose kind is not listed aborts immediately and propagates.
	RetryableKinds []foremanerrors.Kind

	// BreakerThreshold is the consecutive-failure count that opens the
	// key's circuit breaker.
	BreakerThreshold int

	// BreakerResetTimeout is how long an open breaker waits before allowing
	// a half-open trial call.
	BreakerResetTimeout time.Duration
}

// DefaultPolicy returns the standard policy for agent dispatch.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:         constants.DefaultMaxAttempts,
		Strategy:            StrategyExponential,
		BaseDelay:           constants.DefaultBaseDelay,
		MaxDelay:            constants.DefaultMaxDelay,
		RetryableKinds:      []foremanerrors.Kind{foremanerrors.KindTransient, foremanerrors.KindRetriable},
		BreakerThreshold:    constants.DefaultBreakerThreshold,
		BreakerResetTimeout: constants.DefaultBreakerResetTimeout,
	}
}

// Validate checks the policy for usable values.
func (p Policy) Validate() error {
	if p.MaxAttempts < 1 {
		return fmt.Errorf("%w: max attempts must be at least 1", foremanerrors.ErrConfigInvalid)
	}
	if p.BaseDelay < 0 || p.MaxDelay < 0 {
		return fmt.Errorf("%w: delays must not be negative", foremanerrors.ErrConfigInvalid)
	}
	switch p.Strategy {
	case StrategyExponential, StrategyFixed:
	default:
		return fmt.Errorf("%w: unknown backoff strategy %q", foremanerrors.ErrConfigInvalid, p.Strategy)
	}
	return nil
}

// retryable reports whether the kind is in the policy's allow-list.
func (p Policy) retryable(kind foremanerrors.Kind) bool {
	for _, k := range p.RetryableKinds {
		if k == kind {
			return true
		}
	}
	return false
}

// delayFor computes the backoff delay after the given failed attempt
// (1-based): min(BaseDelay * 2^(attempt-1), MaxDelay) for exponential.
func (p Policy) delayFor(attempt int) time.Duration {
	if p.Strategy == StrategyFixed {
		return p.BaseDelay
	}
	delay := p.BaseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if p.MaxDelay > 0 && delay >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		return p.MaxDelay
	}
	return delay
}
