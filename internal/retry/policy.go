// Package retry provides a reusable retry policy shared by transport retries (HTTP and
// external commands) and correctness retries (schema validation of model output).
package retry

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	apperrors "github.com/wiktor-jurek/stewthius/internal/errors"
)

// Sleeper waits for d or until ctx is done
type Sleeper func(ctx context.Context, d time.Duration) error

// Backoff returns the wait before the n-th retry (n starts at 1)
type Backoff func(n int) time.Duration

// Classifier reports whether err may be retried
type Classifier func(err error) bool

// HintedError carries a server-supplied wait hint such as Retry-After
type HintedError interface {
	RetryAfter() time.Duration
}

// Policy is a retry strategy value: {max attempts, error classifier, backoff function}
type Policy struct {
	MaxAttempts int
	Classify    Classifier // nil retries every error
	Backoff     Backoff    // nil retries immediately
	MaxWait     time.Duration
	Sleep       Sleeper
	OnRetry     func(attempt int, wait time.Duration, err error)
}

// Do runs fn until it succeeds, returns a non-retryable error, or the policy's attempts are
// used up. The last error is returned unchanged so callers can still classify it.
// Context cancellation is never retried.
func Do[T any](ctx context.Context, p Policy, fn func(ctx context.Context, attempt int) (T, error)) (T, error) {
	var zero T
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		v, err := fn(ctx, attempt)
		if err == nil {
			return v, nil
		}
		if attempt >= attempts || !p.retryable(err) {
			return zero, err
		}

		wait := p.delay(attempt, err)
		if p.OnRetry != nil {
			p.OnRetry(attempt, wait, err)
		}
		if wait <= 0 {
			continue
		}
		if err := p.sleeper()(ctx, wait); err != nil {
			return zero, err
		}
	}
}

func (p Policy) retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if p.Classify == nil {
		return true
	}
	return p.Classify(err)
}

func (p Policy) delay(attempt int, err error) time.Duration {
	var wait time.Duration
	var hinted HintedError
	if errors.As(err, &hinted) && hinted.RetryAfter() > 0 {
		wait = hinted.RetryAfter()
	} else if p.Backoff != nil {
		wait = p.Backoff(attempt)
	}
	if wait < 0 {
		return 0
	}
	if p.MaxWait > 0 && wait > p.MaxWait {
		return p.MaxWait
	}
	return wait
}

func (p Policy) sleeper() Sleeper {
	if p.Sleep != nil {
		return p.Sleep
	}
	return SleepContext
}

// SleepContext blocks for d or until ctx is done
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Exponential doubles base for every retry: base, 2*base, 4*base, ... capped at max
func Exponential(base, max time.Duration) Backoff {
	return func(n int) time.Duration {
		if base <= 0 {
			return 0
		}
		delay := base
		for i := 1; i < n; i++ {
			if max > 0 && delay > max/2 {
				return max
			}
			delay *= 2
		}
		if max > 0 && delay > max {
			return max
		}
		return delay
	}
}

// WithJitter adds up to fraction*delay of random extra wait to b.
// rnd must return values in [0,1); nil uses math/rand.
func WithJitter(b Backoff, fraction float64, rnd func() float64) Backoff {
	if rnd == nil {
		rnd = rand.Float64
	}
	return func(n int) time.Duration {
		d := b(n)
		return d + time.Duration(rnd()*fraction*float64(d))
	}
}

// Transport defaults
const (
	TransportBaseDelay = time.Second
	TransportMaxDelay  = 30 * time.Second
)

// Transport returns the policy for HTTP calls: TransientTransportErrors are retried with
// capped exponential backoff, honouring Retry-After hints.
func Transport(maxAttempts int) Policy {
	return Policy{
		MaxAttempts: maxAttempts,
		Classify:    apperrors.IsTransient,
		Backoff:     Exponential(TransportBaseDelay, TransportMaxDelay),
		MaxWait:     TransportMaxDelay,
	}
}

// Validation returns the policy for correctness retries: SchemaValidationErrors are
// re-requested immediately without backoff.
func Validation(maxAttempts int) Policy {
	return Policy{
		MaxAttempts: maxAttempts,
		Classify:    apperrors.IsSchemaValidation,
	}
}
