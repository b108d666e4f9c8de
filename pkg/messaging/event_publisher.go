package messaging

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"interview-analyzer/pkg/analysis"
	"interview-analyzer/pkg/circuitbreaker"
	"interview-analyzer/pkg/metrics"
	"interview-analyzer/pkg/util"
)

const (
	defaultEventBuffer  = 256
	publishTimeout      = 2 * time.Second
	eventsSchemaVersion = "1"
)

// EventPublisher forwards analysis lifecycle events to a broker. OnEvent never
// blocks the event bus: events are queued for a background worker and dropped
// when the queue is full.
type EventPublisher struct {
	logger    *logrus.Entry
	publisher Publisher
	queue     string
	panics    *util.PanicHandler

	events chan analysis.Event
	types  map[analysis.EventType]bool

	mu      sync.Mutex
	started bool
	stopped bool
	done    chan struct{}
}

// NewEventPublisher creates a publisher. With no types given every event is forwarded.
func NewEventPublisher(logger *logrus.Logger, publisher Publisher, queue string, buffer int, types ...analysis.EventType) *EventPublisher {
	if buffer <= 0 {
		buffer = defaultEventBuffer
	}
	var filter map[analysis.EventType]bool
	if len(types) > 0 {
		filter = make(map[analysis.EventType]bool, len(types))
		for _, t := range types {
			filter[t] = true
		}
	}
	return &EventPublisher{
		logger:    logger.WithField("component", "event_publisher"),
		publisher: publisher,
		queue:     queue,
		panics:    util.NewPanicHandler(logger),
		events:    make(chan analysis.Event, buffer),
		types:     filter,
		done:      make(chan struct{}),
	}
}

// OnEvent implements analysis.Subscriber
func (p *EventPublisher) OnEvent(e analysis.Event) {
	if p.types != nil && !p.types[e.Type] {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return
	}

	select {
	case p.events <- e:
	default:
		metrics.RecordAMQPPublish(p.queue, "dropped")
		p.logger.WithFields(logrus.Fields{
			"event_type": e.Type,
			"key":        e.Key,
		}).Warn("Event publisher queue full, dropping event")
	}
}

// Start runs the publishing worker until Stop is called
func (p *EventPublisher) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started || p.stopped {
		return
	}
	p.started = true
	p.panics.SafeGo("event_publisher", p.run)
}

// Stop stops accepting events, publishes what is already queued and waits
// for the worker until ctx ends
func (p *EventPublisher) Stop(ctx context.Context) error {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return nil
	}
	p.stopped = true
	started := p.started
	close(p.events)
	p.mu.Unlock()

	if !started {
		return nil
	}
	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *EventPublisher) run() {
	defer close(p.done)
	for e := range p.events {
		p.publish(e)
	}
}

func (p *EventPublisher) publish(e analysis.Event) {
	log := p.logger.WithFields(logrus.Fields{
		"event_id":   e.ID,
		"event_type": e.Type,
		"key":        e.Key,
	})

	body, err := json.Marshal(e)
	if err != nil {
		metrics.RecordAMQPPublish(p.queue, "failed")
		log.WithError(err).Error("Failed to marshal event")
		return
	}

	if !p.publisher.IsConnected() {
		metrics.RecordAMQPPublish(p.queue, "failed")
		log.Debug("Broker not connected, event not published")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	err = p.publisher.Publish(ctx, Message{
		ID:   e.ID,
		Type: string(e.Type),
		Body: body,
		Headers: map[string]interface{}{
			"x-response-id":    e.ResponseID,
			"x-session-id":     e.SessionID,
			"x-schema-version": eventsSchemaVersion,
		},
		Timestamp: e.Timestamp,
	})
	if circuitbreaker.IsOpenError(err) {
		metrics.RecordAMQPPublish(p.queue, "rejected")
		log.Debug("Circuit open, event not published")
		return
	}
	if err != nil {
		metrics.RecordAMQPPublish(p.queue, "failed")
		log.WithError(err).Warn("Failed to publish event")
		return
	}
	metrics.RecordAMQPPublish(p.queue, "success")
	log.Debug("Published event")
}
