// Package retry provides bounded exponential backoff for calls to upstream
// services such as the embedding and completion providers.
package retry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/papercomputeco/docchat/pkg/errs"
)

const (
	defaultMaxAttempts = 3
	defaultBaseDelay   = 500 * time.Millisecond
	defaultMaxDelay    = 8 * time.Second
)

// Policy controls how many times and how far apart an operation is retried.
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first.
	// Defaults to 3 if zero.
	MaxAttempts int

	// BaseDelay is the wait after the first failed attempt. Each following
	// wait doubles, capped at MaxDelay.
	BaseDelay time.Duration

	// MaxDelay caps a single wait.
	MaxDelay time.Duration

	// Retryable decides whether an error is worth another attempt.
	// Defaults to upstream failures that are not errs.ErrRejected.
	Retryable func(error) bool

	// OnRetry, if set, is called before each wait with the failed attempt
	// number and its error.
	OnRetry func(attempt int, err error)
}

// DefaultPolicy returns the policy used for upstream services.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: defaultMaxAttempts,
		BaseDelay:   defaultBaseDelay,
		MaxDelay:    defaultMaxDelay,
	}
}

func (p Policy) withDefaults() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = defaultMaxAttempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = defaultBaseDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = defaultMaxDelay
	}
	if p.MaxDelay < p.BaseDelay {
		p.MaxDelay = p.BaseDelay
	}
	if p.Retryable == nil {
		p.Retryable = func(err error) bool {
			return errors.Is(err, errs.ErrUpstreamUnavailable) && !errors.Is(err, errs.ErrRejected)
		}
	}
	return p
}

// RetryableStatus reports whether an upstream HTTP status is transient:
// 429 or any 5xx.
func RetryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}

// Delay returns the wait before attempt n+1, where n counts from 1.
func (p Policy) Delay(n int) time.Duration {
	p = p.withDefaults()

	delay := p.BaseDelay
	for i := 1; i < n; i++ {
		delay *= 2
		if delay >= p.MaxDelay {
			return p.MaxDelay
		}
	}

	return delay
}

// Do runs fn until it succeeds, returns a non-retryable error, the attempts
// are exhausted, or ctx is done. The last error is returned wrapped with the
// attempt count.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	p = p.withDefaults()

	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return fmt.Errorf("%w (canceled after %d attempts: %v)", lastErr, attempt-1, err)
			}
			return err
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}

		if !p.Retryable(lastErr) || attempt == p.MaxAttempts {
			break
		}

		if p.OnRetry != nil {
			p.OnRetry(attempt, lastErr)
		}

		timer := time.NewTimer(p.Delay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%w (canceled after %d attempts: %v)", lastErr, attempt, ctx.Err())
		case <-timer.C:
		}
	}

	if !p.Retryable(lastErr) {
		return lastErr
	}

	return fmt.Errorf("%w (after %d attempts)", lastErr, p.MaxAttempts)
}
