package analysis

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"interview-analyzer/pkg/interview"
	"interview-analyzer/pkg/metrics"
)

// EventType names a lifecycle event
type EventType string

const (
	EventStart       EventType = "start"
	EventPreliminary EventType = "preliminary"
	EventComplete    EventType = "complete"
	EventError       EventType = "error"
	EventProgress    EventType = "progress"
)

// Event is a lifecycle notification keyed by response id, or by session id
// for session aggregation
type Event struct {
	ID         string                      `json:"id"`
	Type       EventType                   `json:"type"`
	Key        string                      `json:"key"`
	ResponseID string                      `json:"response_id,omitempty"`
	SessionID  string                      `json:"session_id,omitempty"`
	Stage      interview.Stage             `json:"stage,omitempty"`
	Analysis   *interview.ResponseAnalysis `json:"analysis,omitempty"`
	Session    *interview.SessionAnalysis  `json:"session_analysis,omitempty"`
	Message    string                      `json:"message,omitempty"`
	Error      string                      `json:"error,omitempty"`
	Timestamp  time.Time                   `json:"timestamp"`
}

// Subscriber receives every published event. OnEvent is called while the
// bus serializes delivery and must not block.
type Subscriber interface {
	OnEvent(event Event)
}

// SubscriberFunc adapts a function to Subscriber
type SubscriberFunc func(Event)

func (f SubscriberFunc) OnEvent(event Event) { f(event) }

// Subscription is a buffered channel of events for one key ("" for all)
type Subscription struct {
	id     uint64
	key    string
	ch     chan Event
	bus    *EventBus
	closed bool
}

// Events returns the channel events are delivered on. It is closed by Close.
func (s *Subscription) Events() <-chan Event {
	return s.ch
}

func (s *Subscription) Key() string {
	return s.key
}

// Close stops delivery and closes the events channel
func (s *Subscription) Close() {
	s.bus.unsubscribe(s)
}

// EventBus fans events out to channel subscriptions and push subscribers.
// Publish delivers synchronously and in call order; an event that does not
// fit a subscription buffer is dropped for that subscription only.
type EventBus struct {
	logger *logrus.Entry

	mu          sync.Mutex
	nextID      uint64
	subs        map[uint64]*Subscription
	subscribers []pushSubscriber
}

type pushSubscriber struct {
	id  uint64
	sub Subscriber
}

// NewEventBus creates an event bus
func NewEventBus(logger *logrus.Logger) *EventBus {
	if logger == nil {
		logger = logrus.New()
	}
	return &EventBus{
		logger: logger.WithField("component", "event_bus"),
		subs:   make(map[uint64]*Subscription),
	}
}

// Subscribe opens a subscription for key with the given buffer size.
// An empty key receives every event.
func (b *EventBus) Subscribe(key string, buffer int) *Subscription {
	if buffer < 1 {
		buffer = 1
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	sub := &Subscription{id: b.nextID, key: key, ch: make(chan Event, buffer), bus: b}
	b.subs[sub.id] = sub
	metrics.SetEventSubscribers(len(b.subs) + len(b.subscribers))
	return sub
}

func (b *EventBus) unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if sub.closed {
		return
	}
	sub.closed = true
	delete(b.subs, sub.id)
	close(sub.ch)
	metrics.SetEventSubscribers(len(b.subs) + len(b.subscribers))
}

// AddSubscriber registers a push subscriber and returns a function that removes it
func (b *EventBus) AddSubscriber(sub Subscriber) (remove func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.subscribers = append(b.subscribers, pushSubscriber{id: id, sub: sub})
	metrics.SetEventSubscribers(len(b.subs) + len(b.subscribers))

	return func() { b.removeSubscriber(id) }
}

func (b *EventBus) removeSubscriber(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, s := range b.subscribers {
		if s.id == id {
			b.subscribers = append(b.subscribers[:i], b.subscribers[i+1:]...)
			break
		}
	}
	metrics.SetEventSubscribers(len(b.subs) + len(b.subscribers))
}

// Publish stamps and delivers an event
func (b *EventBus) Publish(event Event) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	metrics.RecordEventPublished(string(event.Type))

	for _, sub := range b.subs {
		if sub.key != "" && sub.key != event.Key {
			continue
		}
		select {
		case sub.ch <- event:
		default:
			metrics.RecordEventDropped(string(event.Type))
			b.logger.WithFields(logrus.Fields{
				"event_type": event.Type,
				"key":        event.Key,
				"sub_key":    sub.key,
			}).Warn("Subscriber buffer full, dropping event")
		}
	}

	for _, s := range b.subscribers {
		s.sub.OnEvent(event)
	}
}

// SubscriberCount returns open subscriptions plus push subscribers
func (b *EventBus) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs) + len(b.subscribers)
}
