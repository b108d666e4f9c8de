package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscriptionFiltersByKey(t *testing.T) {
	bus := NewEventBus(quietLogger())
	mine := bus.Subscribe("r1", 4)
	all := bus.Subscribe("", 4)
	defer mine.Close()
	defer all.Close()

	bus.Publish(Event{Type: EventStart, Key: "r1"})
	bus.Publish(Event{Type: EventStart, Key: "r2"})

	require.Len(t, mine.Events(), 1)
	e := <-mine.Events()
	assert.Equal(t, "r1", e.Key)
	assert.NotEmpty(t, e.ID)
	assert.False(t, e.Timestamp.IsZero())

	assert.Len(t, all.Events(), 2)
}

func TestPublishPreservesOrder(t *testing.T) {
	bus := NewEventBus(quietLogger())
	sub := bus.Subscribe("r1", 8)
	defer sub.Close()

	for _, typ := range []EventType{EventStart, EventPreliminary, EventProgress, EventComplete} {
		bus.Publish(Event{Type: typ, Key: "r1"})
	}

	var got []EventType
	for i := 0; i < 4; i++ {
		got = append(got, (<-sub.Events()).Type)
	}
	assert.Equal(t, []EventType{EventStart, EventPreliminary, EventProgress, EventComplete}, got)
}

func TestFullBufferDropsEvent(t *testing.T) {
	bus := NewEventBus(quietLogger())
	slow := bus.Subscribe("r1", 1)
	defer slow.Close()

	bus.Publish(Event{Type: EventStart, Key: "r1"})
	assert.NotPanics(t, func() { bus.Publish(Event{Type: EventPreliminary, Key: "r1"}) })

	require.Len(t, slow.Events(), 1)
	assert.Equal(t, EventStart, (<-slow.Events()).Type)
}

func TestCloseSubscription(t *testing.T) {
	bus := NewEventBus(quietLogger())
	sub := bus.Subscribe("", 1)
	assert.Equal(t, 1, bus.SubscriberCount())

	sub.Close()
	sub.Close()
	assert.Equal(t, 0, bus.SubscriberCount())

	_, open := <-sub.Events()
	assert.False(t, open)
	assert.NotPanics(t, func() { bus.Publish(Event{Type: EventStart, Key: "x"}) })
}

func TestPushSubscribers(t *testing.T) {
	bus := NewEventBus(quietLogger())
	var seen []string
	remove := bus.AddSubscriber(SubscriberFunc(func(e Event) { seen = append(seen, e.Key) }))

	bus.Publish(Event{Type: EventStart, Key: "a"})
	bus.Publish(Event{Type: EventStart, Key: "b"})
	remove()
	bus.Publish(Event{Type: EventStart, Key: "c"})

	assert.Equal(t, []string{"a", "b"}, seen)
	assert.Equal(t, 0, bus.SubscriberCount())
}
