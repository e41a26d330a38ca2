package ai

import (
	"context"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// BreakerSettings configures WithBreaker.
type BreakerSettings struct {
	Name string
	// Failures is the number of consecutive transient failures that opens
	// the breaker.
	Failures uint32
	// Timeout is how long the breaker stays open before probing again.
	Timeout time.Duration
	Logger  *zap.Logger
}

type breakerGenerator struct {
	next Generator
	cb   *gobreaker.CircuitBreaker
}

// WithBreaker stops calling next after repeated transient failures. Only
// transient errors count against the provider; a rejected request or a bad
// schema does not open the breaker. While open, calls fail with
// gobreaker.ErrOpenState, which IsTransient reports as retryable.
func WithBreaker(next Generator, s BreakerSettings) Generator {
	logger := s.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	failures := s.Failures
	if failures == 0 {
		failures = 5
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        s.Name,
		MaxRequests: 1,
		Timeout:     s.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("model circuit breaker changed state",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !IsTransient(err)
		},
	})
	return &breakerGenerator{next: next, cb: cb}
}

func (b *breakerGenerator) Generate(ctx context.Context, req Request) (*Response, error) {
	out, err := b.cb.Execute(func() (interface{}, error) {
		return b.next.Generate(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	return out.(*Response), nil
}
