// Package events provides a small in-process pub/sub bus for engine
// lifecycle events. Publishing is asynchronous and fire-and-forget: a slow
// or panicking subscriber never blocks or crashes the control loop.
package events

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/forgecrew/foreman/internal/domain"
)

// Kind identifies an event type.
type Kind string

// Event kinds.
const (
	KindTaskStarted      Kind = "task_started"
	KindTaskCompleted    Kind = "task_completed"
	KindTaskFailed       Kind = "task_failed"
	KindConflictDetected Kind = "conflict_detected"
	KindWorkflowPaused   Kind = "workflow_paused"
	KindCircuitBreak     Kind = "circuit_break"
	KindPhaseAdvanced    Kind = "phase_advanced"
	KindPhaseRolledBack  Kind = "phase_rolled_back"
	KindDashboardUpdate  Kind = "dashboard_update"
	KindError            Kind = "error"
)

// String returns the string representation of the Kind.
func (k Kind) String() string {
	return string(k)
}

// Event is one bus message.
type Event struct {
	// Kind identifies the event type.
	Kind Kind `json:"kind"`

	// Timestamp is when the event was published.
	Timestamp time.Time `json:"timestamp"`

	// TaskID is the related task, if any.
	TaskID string `json:"task_id,omitempty"`

	// Role is the related executor role, if any.
	Role *domain.Role `json:"role,omitempty"`

	// Phase is the current phase at publish time.
	Phase int `json:"phase"`

	// Message is a human-readable summary.
	Message string `json:"message,omitempty"`

	// Payload carries event-specific data, if any.
	Payload any `json:"payload,omitempty"`
}

// Handler receives published events.
type Handler func(e Event)

// Bus is the in-process event bus. Safe for concurrent use.
type Bus struct {
	mu       sync.RWMutex
	handlers map[Kind][]Handler
	all      []Handler
	logger   zerolog.Logger
}

// NewBus creates an event bus.
func NewBus(logger zerolog.Logger) *Bus {
	return &Bus{
		handlers: make(map[Kind][]Handler),
		logger:   logger.With().Str("component", "events").Logger(),
	}
}

// Subscribe registers a handler for one event kind.
func (b *Bus) Subscribe(kind Kind, h Handler) {
	if h == nil {
		return
	}
	b.mu.Lock()
	b.handlers[kind] = append(b.handlers[kind], h)
	b.mu.Unlock()
}

// SubscribeAll registers a handler for every event kind.
func (b *Bus) SubscribeAll(h Handler) {
	if h == nil {
		return
	}
	b.mu.Lock()
	b.all = append(b.all, h)
	b.mu.Unlock()
}

// Publish delivers the event to subscribers asynchronously. Handler panics
// are recovered and logged.
func (b *Bus) Publish(e Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}

	b.mu.RLock()
	targets := make([]Handler, 0, len(b.handlers[e.Kind])+len(b.all))
	targets = append(targets, b.handlers[e.Kind]...)
	targets = append(targets, b.all...)
	b.mu.RUnlock()

	for _, h := range targets {
		go b.deliver(h, e)
	}
}

// deliver invokes one handler with panic isolation.
func (b *Bus) deliver(h Handler, e Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error().
				Str("kind", e.Kind.String()).
				Any("panic", r).
				Msg("event handler panicked")
		}
	}()
	h(e)
}
