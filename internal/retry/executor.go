package retry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/forgecrew/foreman/internal/clock"
	foremanerrors "github.com/forgecrew/foreman/internal/errors"
)

// Operation is a retryable unit of work.
type Operation func(ctx context.Context) error

// SleepFunc waits for the given duration or until the context is done.
// It is injectable so tests can run without real delays.
type SleepFunc func(ctx context.Context, d time.Duration) error

// defaultSleep blocks on a timer and honors context cancellation.
func defaultSleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Stats summarizes executor activity across all keys.
type Stats struct {
	// Operations counts completed ExecuteWithRetry calls.
	Operations int `json:"operations"`

	// TotalAttempts counts every attempt across all operations.
	TotalAttempts int `json:"total_attempts"`

	// AvgRetries is the mean number of retries (attempts beyond the first)
	// per operation.
	AvgRetries float64 `json:"avg_retries"`

	// AvgDuration is the mean wall time per operation.
	AvgDuration time.Duration `json:"avg_duration"`

	// OpenBreakers counts keys whose circuit breaker is currently open.
	OpenBreakers int `json:"open_breakers"`
}

// Executor runs operations under a retry policy with per-key attempt
// history and circuit breaking. Safe for concurrent use; breaker counters
// and histories are updated atomically with respect to concurrent
// completions for the same key.
type Executor struct {
	mu        sync.Mutex
	histories map[string]*History
	breakers  map[string]*breaker
	clock     clock.Clock
	sleep     SleepFunc
	logger    zerolog.Logger

	operations   int
	totalElapsed time.Duration
}

// Option configures an Executor.
type Option func(*Executor)

// WithClock sets the clock used for breaker timing and attempt timestamps.
func WithClock(c clock.Clock) Option {
	return func(e *Executor) { e.clock = c }
}

// WithSleep sets the sleep function used for backoff delays.
func WithSleep(s SleepFunc) Option {
	return func(e *Executor) { e.sleep = s }
}

// NewExecutor creates a retry executor.
func NewExecutor(logger zerolog.Logger, opts ...Option) *Executor {
	e := &Executor{
		histories: make(map[string]*History),
		breakers:  make(map[string]*breaker),
		clock:     clock.RealClock{},
		sleep:     defaultSleep,
		logger:    logger.With().Str("component", "retry").Logger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ExecuteWithRetry runs the operation under the policy for the given key.
//
// Each attempt (success or failure, with the backoff applied before it) is
// appended to the key's history. Failures whose kind is not in the policy's
// retryable allow-list abort immediately. An open circuit breaker rejects
// the call with ErrCircuitOpen before the operation is attempted at all.
func (e *Executor) ExecuteWithRetry(ctx context.Context, key string, op Operation, policy Policy) error {
	if err := policy.Validate(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if !e.breakerAllow(key, policy) {
		e.logger.Warn().Str("key", key).Msg("call rejected by open circuit breaker")
		return fmt.Errorf("%w: key %q", foremanerrors.ErrCircuitOpen, key)
	}

	start := e.clock.Now()
	var lastErr error

	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		var delay time.Duration
		if attempt > 1 {
			delay = policy.delayFor(attempt - 1)
			e.logger.Debug().
				Str("key", key).
				Int("attempt", attempt).
				Dur("backoff", delay).
				Msg("backing off before retry")
			if err := e.sleep(ctx, delay); err != nil {
				e.finishOperation(key, start)
				return err
			}
		}

		err := op(ctx)
		e.recordAttempt(key, Attempt{
			Number:    attempt,
			Timestamp: e.clock.Now(),
			Success:   err == nil,
			Delay:     delay,
			Error:     errString(err),
		})

		if err == nil {
			e.breakerSuccess(key)
			e.finishOperation(key, start)
			if attempt > 1 {
				e.logger.Info().Str("key", key).Int("attempt", attempt).Msg("operation succeeded after retry")
			}
			return nil
		}

		lastErr = err
		e.breakerFailure(key, policy)

		kind := foremanerrors.Classify(err)
		if !policy.retryable(kind) {
			e.logger.Debug().
				Err(err).
				Str("key", key).
				Str("kind", kind.String()).
				Msg("non-retryable error, aborting")
			e.finishOperation(key, start)
			return err
		}

		if attempt < policy.MaxAttempts {
			e.logger.Warn().
				Err(err).
				Str("key", key).
				Int("attempt", attempt).
				Int("max_attempts", policy.MaxAttempts).
				Msg("operation failed, will retry")
		}
	}

	e.finishOperation(key, start)
	e.logger.Error().
		Err(lastErr).
		Str("key", key).
		Int("max_attempts", policy.MaxAttempts).
		Msg("operation failed after max attempts")
	return fmt.Errorf("%w: %w", foremanerrors.ErrRetriesExhausted, lastErr)
}

// HistoryFor returns a copy of the attempt history for a key, or nil if the
// key has never been executed.
func (e *Executor) HistoryFor(key string) *History {
	e.mu.Lock()
	defer e.mu.Unlock()
	h, ok := e.histories[key]
	if !ok {
		return nil
	}
	return h.clone()
}

// BreakerStateFor returns the circuit breaker state for a key. Keys without
// recorded activity report closed.
func (e *Executor) BreakerStateFor(key string) BreakerState {
	e.mu.Lock()
	defer e.mu.Unlock()
	b, ok := e.breakers[key]
	if !ok {
		return BreakerClosed
	}
	return b.state
}

// ResetCircuitBreaker manually closes the breaker for a key. An empty key
// resets every breaker.
func (e *Executor) ResetCircuitBreaker(key string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if key == "" {
		for _, b := range e.breakers {
			b.reset()
		}
		e.logger.Info().Msg("all circuit breakers reset")
		return
	}
	if b, ok := e.breakers[key]; ok {
		b.reset()
		e.logger.Info().Str("key", key).Msg("circuit breaker reset")
	}
}

// Stats returns aggregate executor statistics.
func (e *Executor) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := Stats{Operations: e.operations}
	for _, h := range e.histories {
		s.TotalAttempts += h.TotalAttempts
	}
	for _, b := range e.breakers {
		if b.state == BreakerOpen {
			s.OpenBreakers++
		}
	}
	if e.operations > 0 {
		retries := s.TotalAttempts - e.operations
		if retries < 0 {
			retries = 0
		}
		s.AvgRetries = float64(retries) / float64(e.operations)
		s.AvgDuration = e.totalElapsed / time.Duration(e.operations)
	}
	return s
}

// breakerAllow checks the key's breaker, creating it on first use.
func (e *Executor) breakerAllow(key string, policy Policy) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.breakerFor(key, policy).allow(e.clock.Now())
}

func (e *Executor) breakerSuccess(key string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if b, ok := e.breakers[key]; ok {
		b.recordSuccess()
	}
}

func (e *Executor) breakerFailure(key string, policy Policy) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.breakerFor(key, policy).recordFailure(e.clock.Now())
}

// breakerFor returns the key's breaker, creating it with the policy's limits
// on first use. Caller must hold e.mu.
func (e *Executor) breakerFor(key string, policy Policy) *breaker {
	b, ok := e.breakers[key]
	if !ok {
		b = newBreaker(policy.BreakerThreshold, policy.BreakerResetTimeout)
		e.breakers[key] = b
	}
	return b
}

// recordAttempt appends an attempt to the key's history.
func (e *Executor) recordAttempt(key string, a Attempt) {
	e.mu.Lock()
	defer e.mu.Unlock()
	h, ok := e.histories[key]
	if !ok {
		h = &History{Key: key}
		e.histories[key] = h
	}
	h.record(a)
}

// finishOperation folds one completed operation into the aggregates and the
// key's per-history elapsed total.
func (e *Executor) finishOperation(key string, start time.Time) {
	elapsed := e.clock.Now().Sub(start)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.operations++
	e.totalElapsed += elapsed
	if h, ok := e.histories[key]; ok {
		h.TotalElapsed += elapsed
	}
}

// errString renders an error for attempt records, empty for nil.
func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
