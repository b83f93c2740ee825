// Package retrying wraps github.com/cenkalti/backoff/v4 with the two
// backoff shapes the spec names: the sync engine's bounded retry-on-error
// (spec.md §4.3 step 7) and the async poller's growing poll delay
// (spec.md §4.4 step 8).
package retrying

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Retryable is returned by the operation passed to Do to mark an error as
// worth retrying (HTTP 429 or 5xx, or a transient socket error). Any other
// error is surfaced immediately without consuming a retry.
type Retryable struct{ Err error }

func (r *Retryable) Error() string { return r.Err.Error() }
func (r *Retryable) Unwrap() error { return r.Err }

// MarkRetryable wraps err so Do treats it as transient.
func MarkRetryable(err error) error {
	if err == nil {
		return nil
	}
	return &Retryable{Err: err}
}

// Do runs op up to maxRetries additional times (spec.md default 2) after
// the first attempt, backing off min(2s, 2^attempt·150ms·jitter[0.85,1.15])
// between attempts. It never retries a non-Retryable error.
func Do(ctx context.Context, maxRetries int, op func(attempt int) error) error {
	attempt := 0
	bo := backoff.WithContext(&specBackOff{}, ctx)

	return backoff.Retry(func() error {
		err := op(attempt)
		attempt++
		if err == nil {
			return nil
		}
		var r *Retryable
		if errors.As(err, &r) {
			if attempt > maxRetries {
				return backoff.Permanent(r.Err)
			}
			return err
		}
		return backoff.Permanent(err)
	}, backoff.WithMaxRetries(bo, uint64(maxRetries)))
}

// specBackOff implements backoff.BackOff with the spec's exact formula:
// min(2s, 2^attempt · 150ms · jitter[0.85,1.15]).
type specBackOff struct {
	attempt int
}

func (b *specBackOff) NextBackOff() time.Duration {
	b.attempt++
	return retryDelay(b.attempt)
}

func (b *specBackOff) Reset() { b.attempt = 0 }

func retryDelay(attempt int) time.Duration {
	base := (150 * time.Millisecond) << uint(attempt)
	jitter := 0.85 + rand.Float64()*0.30
	d := time.Duration(float64(base) * jitter)
	if d > 2*time.Second {
		d = 2 * time.Second
	}
	return d
}

// PollDelay implements the async poller's growing delay: starts at
// initial, multiplies by 1.5 each call, capped at max (spec.md §4.4 step 8,
// defaults 1s initial, 5s cap).
type PollDelay struct {
	current time.Duration
	max     time.Duration
}

// NewPollDelay builds a PollDelay whose first call to Next returns initial.
func NewPollDelay(initial, max time.Duration) *PollDelay {
	return &PollDelay{current: initial, max: max}
}

// Next returns the current delay and grows it for the following call.
func (p *PollDelay) Next() time.Duration {
	d := p.current
	grown := time.Duration(float64(p.current) * 1.5)
	if grown > p.max {
		grown = p.max
	}
	p.current = grown
	return d
}

// Sleep blocks for d or until ctx is done, returning ctx.Err() on
// cancellation.
func Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
