package eventbus

import (
	"context"

	"github.com/richxcame/petit-taxi/pkg/resilience"
)

// Publisher sends events on a subject
type Publisher interface {
	Publish(ctx context.Context, subject string, event *Event) error
}

// GuardedPublisher sends every publish through a circuit breaker so a dead
// broker fails fast instead of stalling callers
type GuardedPublisher struct {
	next    Publisher
	breaker *resilience.CircuitBreaker
}

// NewGuardedPublisher wraps next with breaker
func NewGuardedPublisher(next Publisher, breaker *resilience.CircuitBreaker) *GuardedPublisher {
	return &GuardedPublisher{next: next, breaker: breaker}
}

// Publish implements Publisher
func (p *GuardedPublisher) Publish(ctx context.Context, subject string, event *Event) error {
	_, err := p.breaker.Execute(ctx, func(ctx context.Context) (interface{}, error) {
		return nil, p.next.Publish(ctx, subject, event)
	})
	return err
}
