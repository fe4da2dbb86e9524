package redis

import (
	"context"
	"errors"
	"time"

	"github.com/studentgrades/studentgrades-api/pkg/circuitbreaker"
	"github.com/studentgrades/studentgrades-api/pkg/logger"
)

// RateLimiter counts requests per client in fixed one-minute windows shared
// by every instance that uses the same Redis. Calls go through a circuit
// breaker: while it is open Allow fails fast with circuitbreaker.ErrCircuitOpen.
type RateLimiter struct {
	client  *Client
	limit   int
	breaker *circuitbreaker.CircuitBreaker
	now     func() time.Time
}

// NewRateLimiter creates a limiter that admits limit requests per client per minute.
func NewRateLimiter(client *Client, limit int, log *logger.Logger) *RateLimiter {
	if log == nil {
		log = logger.Nop()
	}
	log = log.With(logger.Component("rate-limiter"))

	return &RateLimiter{
		client: client,
		limit:  limit,
		now:    time.Now,
		breaker: circuitbreaker.New("redis-rate-limit",
			circuitbreaker.WithFailureThreshold(3),
			circuitbreaker.WithCooldown(15*time.Second),
			// A client hanging up says nothing about Redis.
			circuitbreaker.WithIsFailure(func(err error) bool {
				return !errors.Is(err, context.Canceled)
			}),
			circuitbreaker.WithOnStateChange(func(name string, from, to circuitbreaker.State) {
				log.Warn("circuit breaker state changed",
					logger.String("breaker", name),
					logger.String("from", from.String()),
					logger.String("to", to.String()))
			}),
		),
	}
}

// Allow records one request for client and reports whether it is within the limit.
func (l *RateLimiter) Allow(ctx context.Context, client string) (bool, error) {
	window := l.now().Unix() / int64(TTLRateLimitWindow/time.Second)
	var count int64
	err := l.breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		count, err = l.client.IncrWithTTL(ctx, RateLimitKey(client, window), TTLRateLimitWindow)
		return err
	})
	if err != nil {
		return false, err
	}
	return count <= int64(l.limit), nil
}

// BreakerState reports the state of the guarding circuit breaker.
func (l *RateLimiter) BreakerState() circuitbreaker.State {
	return l.breaker.State()
}
