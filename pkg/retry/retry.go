// Package retry re-runs an operation that failed with a transient error,
// sleeping an exponentially growing, jittered delay between attempts.
// The Postgres adapter uses it for dropped connections and serialization
// conflicts.
package retry

import (
	"context"
	"math/rand/v2"
	"time"
)

// Retrier runs operations under one retry policy. The zero policy retries
// nothing: callers opt in with WithRetryIf.
type Retrier struct {
	attempts int
	initial  time.Duration
	ceiling  time.Duration
	jitter   float64
	retryIf  func(error) bool
	onRetry  func(attempt int, err error, delay time.Duration)
	random   func() float64
}

// Option configures a Retrier.
type Option func(*Retrier)

// WithMaxAttempts bounds the total number of calls, the first one included.
func WithMaxAttempts(n int) Option {
	return func(r *Retrier) {
		if n > 0 {
			r.attempts = n
		}
	}
}

// WithInitialDelay sets the pause after the first failure.
func WithInitialDelay(d time.Duration) Option {
	return func(r *Retrier) {
		if d > 0 {
			r.initial = d
		}
	}
}

// WithMaxDelay caps the pause between attempts.
func WithMaxDelay(d time.Duration) Option {
	return func(r *Retrier) {
		if d > 0 {
			r.ceiling = d
		}
	}
}

// WithJitter spreads each pause by up to ±f of its length. f must be in [0, 1].
func WithJitter(f float64) Option {
	return func(r *Retrier) {
		if f >= 0 && f <= 1 {
			r.jitter = f
		}
	}
}

// WithRetryIf selects which errors are worth another attempt.
func WithRetryIf(fn func(error) bool) Option {
	return func(r *Retrier) { r.retryIf = fn }
}

// WithOnRetry registers a hook that runs before each pause.
func WithOnRetry(fn func(attempt int, err error, delay time.Duration)) Option {
	return func(r *Retrier) { r.onRetry = fn }
}

// New builds a Retrier. Without options it makes up to three attempts
// starting at 100ms, but only once WithRetryIf says an error is transient.
func New(opts ...Option) *Retrier {
	r := &Retrier{
		attempts: 3,
		initial:  100 * time.Millisecond,
		ceiling:  5 * time.Second,
		jitter:   0.1,
		random:   rand.Float64,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Do calls op until it succeeds, returns an error the policy rejects, runs
// out of attempts, or ctx ends. The last error from op is returned as is.
func (r *Retrier) Do(ctx context.Context, op func(ctx context.Context) error) error {
	var last error
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			if last != nil {
				return last
			}
			return err
		}

		last = op(ctx)
		if last == nil || attempt >= r.attempts || r.retryIf == nil || !r.retryIf(last) {
			return last
		}

		wait := r.backoff(attempt)
		if r.onRetry != nil {
			r.onRetry(attempt, last, wait)
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return last
		case <-timer.C:
		}
	}
}

// backoff doubles the initial delay once per earlier attempt, stops at the
// ceiling and then applies jitter.
func (r *Retrier) backoff(attempt int) time.Duration {
	d := r.initial
	for i := 1; i < attempt && d < r.ceiling; i++ {
		d *= 2
	}
	if d > r.ceiling {
		d = r.ceiling
	}
	if r.jitter > 0 {
		d += time.Duration(float64(d) * r.jitter * (2*r.random() - 1))
	}
	return max(d, 0)
}
