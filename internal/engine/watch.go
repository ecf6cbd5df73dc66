package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/picklr-io/converge/internal/ir"
)

// DefaultRetryMax is the default maximum number of retries of a failed pass.
const DefaultRetryMax = 3

// RetryPolicy defines how the watch loop retries a failed pass.
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

// DefaultRetryPolicy returns a sensible default retry policy.
func DefaultRetryPolicy() *RetryPolicy {
	return &RetryPolicy{
		MaxRetries: DefaultRetryMax,
		BaseDelay:  1 * time.Second,
		MaxDelay:   30 * time.Second,
	}
}

// RetryWithBackoff executes fn with exponential backoff and jitter.
// It retries only if shouldRetry returns true for the error.
func RetryWithBackoff(ctx context.Context, policy *RetryPolicy, fn func() error, shouldRetry func(error) bool) error {
	if policy == nil {
		policy = DefaultRetryPolicy()
	}

	var lastErr error
	for attempt := 0; attempt <= policy.MaxRetries; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}

		if !shouldRetry(lastErr) {
			return lastErr
		}

		if attempt < policy.MaxRetries {
			delay := calculateBackoff(attempt, policy.BaseDelay, policy.MaxDelay)
			select {
			case <-ctx.Done():
				return fmt.Errorf("retry cancelled: %w", ctx.Err())
			case <-time.After(delay):
			}
		}
	}

	return fmt.Errorf("max retries (%d) exceeded: %w", policy.MaxRetries, lastErr)
}

// calculateBackoff returns exponential backoff with jitter.
func calculateBackoff(attempt int, base, max time.Duration) time.Duration {
	backoff := float64(base) * math.Pow(2, float64(attempt))
	if backoff > float64(max) {
		backoff = float64(max)
	}
	// Add jitter: random between 0 and backoff
	jitter := rand.Float64() * backoff
	return time.Duration(jitter)
}

// IsRetryable reports whether running the same pass again could succeed.
// Invalid declarations and cancellation never recover on their own.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var verr *ir.ValidationError
	if errors.As(err, &verr) {
		return false
	}
	return !errors.Is(err, context.Canceled)
}

// PassFunc reports the outcome of one watch pass.
type PassFunc func(plan *ir.Plan, err error)

// Watch reconciles every interval until ctx is done. The declaration is
// loaded again for every pass. A failed pass is retried according to
// policy; if it still fails, the loop waits for the next interval.
func (e *Engine) Watch(ctx context.Context, load func(context.Context) (*ir.Config, error), interval time.Duration, policy *RetryPolicy, onPass PassFunc) error {
	if interval <= 0 {
		return fmt.Errorf("watch interval must be positive, got %s", interval)
	}

	for {
		var plan *ir.Plan
		err := RetryWithBackoff(ctx, policy, func() error {
			cfg, err := load(ctx)
			if err != nil {
				return err
			}
			plan, err = e.Reconcile(ctx, cfg)
			return err
		}, IsRetryable)
		if onPass != nil {
			onPass(plan, err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(interval):
		}
	}
}
