package resilience

import (
	"context"
	"errors"
	"time"

	"github.com/richxcame/petit-taxi/pkg/logger"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// ErrCircuitOpen is returned when the breaker rejects an operation
var ErrCircuitOpen = errors.New("circuit breaker is open")

// Operation is a unit of work guarded by a breaker or retried
type Operation func(ctx context.Context) (interface{}, error)

// Settings tunes a circuit breaker
type Settings struct {
	Name             string
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold uint32
	SuccessThreshold uint32
}

// CircuitBreaker wraps gobreaker with a fallback and Prometheus metrics
type CircuitBreaker struct {
	name     string
	cb       *gobreaker.CircuitBreaker
	fallback FallbackFunc
}

// NewCircuitBreaker creates a breaker. A nil fallback behaves like NoopFallback.
func NewCircuitBreaker(settings Settings, fallback FallbackFunc) *CircuitBreaker {
	name := nextBreakerName(settings.Name)
	if fallback == nil {
		fallback = NoopFallback
	}
	threshold := settings.FailureThreshold
	if threshold == 0 {
		threshold = 5
	}
	maxRequests := settings.SuccessThreshold
	if maxRequests == 0 {
		maxRequests = 1
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: maxRequests,
		Interval:    settings.Interval,
		Timeout:     settings.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			recordBreakerStateChange(name, from, to)
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
	recordBreakerState(name, gobreaker.StateClosed)

	return &CircuitBreaker{name: name, cb: cb, fallback: fallback}
}

// Name returns the breaker name used in metrics
func (b *CircuitBreaker) Name() string {
	return b.name
}

// State returns the current breaker state
func (b *CircuitBreaker) State() gobreaker.State {
	return b.cb.State()
}

// Execute runs op through the breaker. When the breaker rejects the call the
// fallback decides the result.
func (b *CircuitBreaker) Execute(ctx context.Context, op Operation) (interface{}, error) {
	recordBreakerRequest(b.name)

	result, err := b.cb.Execute(func() (interface{}, error) {
		return op(ctx)
	})
	if err == nil {
		return result, nil
	}

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		recordBreakerFallback(b.name)
		return b.fallback(ctx, err)
	}

	recordBreakerFailure(b.name)
	return nil, err
}
