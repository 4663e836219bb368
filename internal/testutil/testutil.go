// Package testutil provides testing utilities for Foreman.
//
// This package contains mock errors and test helpers used across test files.
// It should only be imported by test files (*_test.go).
package testutil

import (
	"errors"
	"sync"
	"time"
)

// Mock errors for testing purposes.
// These errors are used to simulate various failure scenarios in tests.
var (
	// ErrMockTransient simulates a momentary fault (used in tests).
	ErrMockTransient = errors.New("transient fault")

	// ErrMockExecution simulates an agent execution failure (used in tests).
	ErrMockExecution = errors.New("execution failed")

	// ErrMockStore simulates a persistence failure (used in tests).
	ErrMockStore = errors.New("store unavailable")
)

// MockClock implements clock.Clock with a controllable time.
// Safe for concurrent use.
type MockClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewMockClock creates a MockClock starting at the given time.
func NewMockClock(start time.Time) *MockClock {
	return &MockClock{now: start}
}

// Now returns the mock's current time.
func (c *MockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the mock's current time forward.
func (c *MockClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// Set pins the mock's current time.
func (c *MockClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}
