package engine

import (
	"context"
	"testing"
	"time"

	"github.com/germanamz/assistant/pkg/turn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventBus_SubscribePublish(t *testing.T) {
	bus := NewEventBus()
	sub := bus.Subscribe(8)
	defer bus.Unsubscribe(sub)

	e := Event{
		Kind:      EventTurnStart,
		ChatID:    "chat-1",
		Model:     "claude-3.5-haiku",
		Timestamp: time.Now(),
	}

	bus.Publish(e)

	select {
	case got := <-sub.C:
		assert.Equal(t, EventTurnStart, got.Kind)
		assert.Equal(t, "chat-1", got.ChatID)
		assert.Equal(t, "claude-3.5-haiku", got.Model)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestEventBus_FanOut(t *testing.T) {
	bus := NewEventBus()
	sub1 := bus.Subscribe(4)
	sub2 := bus.Subscribe(4)
	defer bus.Unsubscribe(sub1)
	defer bus.Unsubscribe(sub2)

	bus.Publish(Event{Kind: EventMessageAdded})

	select {
	case <-sub1.C:
	case <-time.After(time.Second):
		t.Fatal("sub1 did not receive event")
	}

	select {
	case <-sub2.C:
	case <-time.After(time.Second):
		t.Fatal("sub2 did not receive event")
	}
}

func TestEventBus_NonBlockingDrop(t *testing.T) {
	bus := NewEventBus()
	sub := bus.Subscribe(1) // buffer of 1
	defer bus.Unsubscribe(sub)

	// Fill the buffer.
	bus.Publish(Event{Kind: EventTurnStart})
	// Dropped without blocking.
	bus.Publish(Event{Kind: EventTurnEnd})

	got := <-sub.C
	assert.Equal(t, EventTurnStart, got.Kind)

	select {
	case <-sub.C:
		t.Fatal("expected channel to be empty after drop")
	default:
	}
}

func TestEventBus_Unsubscribe(t *testing.T) {
	bus := NewEventBus()
	sub := bus.Subscribe(4)

	bus.Unsubscribe(sub)

	// Channel should be closed.
	_, ok := <-sub.C
	assert.False(t, ok, "channel should be closed after unsubscribe")

	// Double unsubscribe should not panic.
	bus.Unsubscribe(sub)
}

func TestEventBus_PublishNoSubscribers(t *testing.T) {
	bus := NewEventBus()
	// Should not panic.
	bus.Publish(Event{Kind: EventError})
}

func TestEventBus_Observer(t *testing.T) {
	bus := NewEventBus()
	sub := bus.Subscribe(4)
	defer bus.Unsubscribe(sub)

	bus.Observer().Observe(context.Background(), turn.Transition{ChatID: "c1", Model: "m", State: turn.StateDispatch, Round: 2})

	got := <-sub.C
	assert.Equal(t, EventTransition, got.Kind)
	assert.Equal(t, "c1", got.ChatID)
	assert.Equal(t, "m", got.Model)
	tr, ok := got.Data.(turn.Transition)
	require.True(t, ok)
	assert.Equal(t, turn.StateDispatch, tr.State)
	assert.Equal(t, 2, tr.Round)
}
