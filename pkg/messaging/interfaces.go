package messaging

import (
	"context"
	"time"
)

// Message is one broker message
type Message struct {
	ID        string
	Type      string
	Body      []byte
	Headers   map[string]interface{}
	Timestamp time.Time
}

// Publisher sends messages to a broker
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
	IsConnected() bool
}
