package services

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/inkvoice/inkvoice/internal/apperr"
)

// ---------------------------------------------------------------------------
// Retry coordination
// Generic bounded-retry-with-backoff wrapper for fallible remote calls.
// Only rate-limit/quota shaped failures are retried; anything else fails
// on the first attempt.
// ---------------------------------------------------------------------------

// RetryOptions configures a retry loop. MaxAttempts counts total attempts,
// so MaxAttempts=3 means one call plus at most two retries.
type RetryOptions struct {
	MaxAttempts       int
	InitialDelay      time.Duration
	MaxDelay          time.Duration
	BackoffMultiplier float64
}

// DefaultSynthesisRetry is the policy applied to speech-synthesis calls.
var DefaultSynthesisRetry = RetryOptions{
	MaxAttempts:       3,
	InitialDelay:      2000 * time.Millisecond,
	MaxDelay:          10000 * time.Millisecond,
	BackoffMultiplier: 2,
}

// Retry runs fn until it succeeds, the attempt budget is exhausted, or a
// non-retryable error occurs. Delays between attempts follow
// min(initial * multiplier^n, max) with no jitter, and honor ctx
// cancellation. After exhaustion the final underlying error is returned,
// wrapped as an upstream-fatal fault.
func Retry[T any](ctx context.Context, fn func() (T, error), opts RetryOptions) (T, error) {
	var zero T

	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	if opts.BackoffMultiplier == 0 {
		opts.BackoffMultiplier = 2
	}

	var lastErr error
	delay := opts.InitialDelay

	for attempt := 1; attempt <= opts.MaxAttempts; attempt++ {
		result, err := fn()
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !IsRetryable(err) {
			return zero, apperr.Wrap(apperr.KindUpstreamFatal, "non-retryable upstream error", err)
		}

		if attempt == opts.MaxAttempts {
			break
		}

		log.Printf("[Retry] Attempt %d/%d failed, retrying in %v: %v", attempt, opts.MaxAttempts, delay, err)

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(delay):
		}

		delay = nextDelay(delay, opts)
	}

	return zero, apperr.Wrap(apperr.KindUpstreamFatal, "retries exhausted", lastErr)
}

// nextDelay advances the backoff schedule, capped at MaxDelay.
func nextDelay(current time.Duration, opts RetryOptions) time.Duration {
	next := time.Duration(float64(current) * opts.BackoffMultiplier)
	if opts.MaxDelay > 0 && next > opts.MaxDelay {
		next = opts.MaxDelay
	}
	return next
}

// IsRetryable reports whether an error looks like a rate-limit or quota
// condition worth retrying.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "429") ||
		strings.Contains(msg, "quota")
}
