package httpclient

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// DefaultRateLimitWait is the delay between rate-limited attempts when the
// policy sets none and the upstream sends no Retry-After.
const DefaultRateLimitWait = 60 * time.Second

// ErrRateLimited matches every *RateLimitError.
var ErrRateLimited = errors.New("rate limited")

// RateLimitError reports an upstream rate limit. RetryAfter is zero when
// the upstream did not say how long to wait.
type RateLimitError struct {
	RetryAfter time.Duration
	Msg        string
}

func (e *RateLimitError) Error() string {
	if e.Msg == "" {
		return ErrRateLimited.Error()
	}
	return ErrRateLimited.Error() + ": " + e.Msg
}

func (e *RateLimitError) Is(target error) bool {
	return target == ErrRateLimited
}

// RetryPolicy controls how long rate-limited calls wait and how often
// they are retried.
type RetryPolicy struct {
	// Wait is the fixed delay between attempts when the upstream gives no
	// Retry-After. Zero means DefaultRateLimitWait.
	Wait time.Duration

	// MaxRetries caps the retries. Zero retries forever.
	MaxRetries int
}

// retryAfterBackOff is a constant backoff that prefers the delay the
// upstream asked for on the last attempt.
type retryAfterBackOff struct {
	constant *backoff.ConstantBackOff
	next     time.Duration
}

func (b *retryAfterBackOff) NextBackOff() time.Duration {
	if d := b.next; d > 0 {
		b.next = 0
		return d
	}
	return b.constant.NextBackOff()
}

func (b *retryAfterBackOff) Reset() {
	b.next = 0
	b.constant.Reset()
}

// Retry runs op until it succeeds or fails with anything other than
// ErrRateLimited. Rate-limited attempts wait per p, and ctx cancellation
// ends the wait.
func Retry(ctx context.Context, p RetryPolicy, logger *slog.Logger, op func() error) error {
	if logger == nil {
		logger = slog.Default()
	}

	wait := p.Wait
	if wait <= 0 {
		wait = DefaultRateLimitWait
	}
	ra := &retryAfterBackOff{constant: backoff.NewConstantBackOff(wait)}
	var b backoff.BackOff = ra
	if p.MaxRetries > 0 {
		b = backoff.WithMaxRetries(b, uint64(p.MaxRetries))
	}

	operation := func() error {
		err := op()
		if err == nil {
			return nil
		}
		var rl *RateLimitError
		if errors.As(err, &rl) {
			ra.next = rl.RetryAfter
			return err
		}
		if errors.Is(err, ErrRateLimited) {
			return err
		}
		return backoff.Permanent(err)
	}

	notify := func(err error, wait time.Duration) {
		logger.Warn("rate limited, waiting", "wait", wait, "error", err)
	}

	return backoff.RetryNotify(operation, backoff.WithContext(b, ctx), notify)
}
