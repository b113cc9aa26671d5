package resilience

import (
	"context"

	"github.com/richxcame/petit-taxi/pkg/logger"
	"go.uber.org/zap"
)

// FallbackFunc is executed when the breaker is open or overloaded.
type FallbackFunc func(ctx context.Context, err error) (interface{}, error)

// NoopFallback returns ErrCircuitOpen without additional handling.
func NoopFallback(ctx context.Context, err error) (interface{}, error) {
	return nil, ErrCircuitOpen
}

// GracefulDegradation returns ErrCircuitOpen but logs a structured warning.
// Use this when the caller can carry on without the dependency.
func GracefulDegradation(dependency string) FallbackFunc {
	return func(ctx context.Context, err error) (interface{}, error) {
		logger.WithContext(ctx).Warn("circuit breaker open, dependency degraded",
			zap.String("dependency", dependency),
			zap.Error(err),
		)
		return nil, ErrCircuitOpen
	}
}
