// Package clock abstracts the current time behind a small interface so the
// engine's tick accounting, retry backoff, and milestone timestamps can be
// driven by a controllable clock in tests.
package clock

import "time"

// Clock supplies the current time. Production wiring uses RealClock; tests
// inject a mock to pin and advance time deterministically.
type Clock interface {
	// Now returns the current time.
	Now() time.Time
}

// RealClock reads the system clock.
type RealClock struct{}

// Now returns the current system time.
func (RealClock) Now() time.Time {
	return time.Now()
}

// Ensure RealClock implements Clock.
var _ Clock = RealClock{}
