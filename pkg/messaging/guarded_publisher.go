package messaging

import (
	"context"

	"github.com/sirupsen/logrus"

	"interview-analyzer/pkg/circuitbreaker"
	"interview-analyzer/pkg/metrics"
)

// GuardedPublisher sends through a circuit breaker so a failing broker is
// skipped quickly instead of costing every event a publish timeout
type GuardedPublisher struct {
	next    Publisher
	breaker *circuitbreaker.CircuitBreaker
}

// NewGuardedPublisher wraps next with a breaker named after the queue. A nil
// config uses circuitbreaker.DefaultConfig.
func NewGuardedPublisher(logger *logrus.Logger, next Publisher, name string, config *circuitbreaker.Config) *GuardedPublisher {
	breaker := circuitbreaker.NewCircuitBreaker(name, config, logger)
	breaker.SetStateChangeCallback(func(name string, _, to circuitbreaker.State) {
		metrics.SetCircuitBreakerState(name, int(to))
	})
	return &GuardedPublisher{next: next, breaker: breaker}
}

// Publish implements Publisher
func (g *GuardedPublisher) Publish(ctx context.Context, msg Message) error {
	return g.breaker.Execute(ctx, func(ctx context.Context) error {
		return g.next.Publish(ctx, msg)
	})
}

// IsConnected implements Publisher
func (g *GuardedPublisher) IsConnected() bool {
	return g.next.IsConnected()
}

// Breaker exposes the breaker for status reporting
func (g *GuardedPublisher) Breaker() *circuitbreaker.CircuitBreaker {
	return g.breaker
}
