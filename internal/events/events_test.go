package events

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// waitFor receives one event or fails the test after a timeout.
func waitFor(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case e := <-ch:
		return e
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

// TestBus_Subscribe verifies kind-scoped delivery: a subscriber sees its
// kind and nothing else.
func TestBus_Subscribe(t *testing.T) {
	b := NewBus(zerolog.Nop())
	got := make(chan Event, 4)

	b.Subscribe(KindTaskCompleted, func(e Event) { got <- e })

	b.Publish(Event{Kind: KindTaskStarted, TaskID: "t1"})
	b.Publish(Event{Kind: KindTaskCompleted, TaskID: "t2", Phase: 1})

	e := waitFor(t, got)
	assert.Equal(t, KindTaskCompleted, e.Kind)
	assert.Equal(t, "t2", e.TaskID)
	assert.Equal(t, 1, e.Phase)

	select {
	case extra := <-got:
		t.Fatalf("unexpected extra event: %v", extra.Kind)
	case <-time.After(50 * time.Millisecond):
	}
}

// TestBus_SubscribeAll verifies the catch-all handler sees every kind.
func TestBus_SubscribeAll(t *testing.T) {
	b := NewBus(zerolog.Nop())
	got := make(chan Event, 4)

	b.SubscribeAll(func(e Event) { got <- e })

	b.Publish(Event{Kind: KindPhaseAdvanced})
	b.Publish(Event{Kind: KindWorkflowPaused})

	kinds := map[Kind]bool{}
	kinds[waitFor(t, got).Kind] = true
	kinds[waitFor(t, got).Kind] = true
	assert.True(t, kinds[KindPhaseAdvanced])
	assert.True(t, kinds[KindWorkflowPaused])
}

// TestBus_MultipleHandlers verifies every subscriber of a kind receives the
// event.
func TestBus_MultipleHandlers(t *testing.T) {
	b := NewBus(zerolog.Nop())
	first := make(chan Event, 1)
	second := make(chan Event, 1)

	b.Subscribe(KindError, func(e Event) { first <- e })
	b.Subscribe(KindError, func(e Event) { second <- e })

	b.Publish(Event{Kind: KindError, Message: "boom"})

	assert.Equal(t, "boom", waitFor(t, first).Message)
	assert.Equal(t, "boom", waitFor(t, second).Message)
}

// TestBus_TimestampStamped verifies a zero timestamp is filled at publish
// time.
func TestBus_TimestampStamped(t *testing.T) {
	b := NewBus(zerolog.Nop())
	got := make(chan Event, 1)

	b.Subscribe(KindDashboardUpdate, func(e Event) { got <- e })
	b.Publish(Event{Kind: KindDashboardUpdate})

	e := waitFor(t, got)
	assert.False(t, e.Timestamp.IsZero())

	fixed := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)
	b.Publish(Event{Kind: KindDashboardUpdate, Timestamp: fixed})
	assert.True(t, waitFor(t, got).Timestamp.Equal(fixed))
}

// TestBus_PanicIsolation verifies a panicking handler does not affect the
// publisher or other subscribers.
func TestBus_PanicIsolation(t *testing.T) {
	b := NewBus(zerolog.Nop())
	got := make(chan Event, 1)

	b.Subscribe(KindCircuitBreak, func(_ Event) { panic("bad handler") })
	b.Subscribe(KindCircuitBreak, func(e Event) { got <- e })

	require.NotPanics(t, func() {
		b.Publish(Event{Kind: KindCircuitBreak, Message: "role:api"})
	})
	assert.Equal(t, "role:api", waitFor(t, got).Message)
}

// TestBus_NilHandlerIgnored verifies nil subscriptions are dropped.
func TestBus_NilHandlerIgnored(t *testing.T) {
	b := NewBus(zerolog.Nop())

	b.Subscribe(KindTaskFailed, nil)
	b.SubscribeAll(nil)

	require.NotPanics(t, func() {
		b.Publish(Event{Kind: KindTaskFailed})
	})
}
