package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/inkvoice/inkvoice/internal/apperr"
)

func fastRetry(maxAttempts int) RetryOptions {
	return RetryOptions{
		MaxAttempts:       maxAttempts,
		InitialDelay:      time.Millisecond,
		MaxDelay:          4 * time.Millisecond,
		BackoffMultiplier: 2,
	}
}

func TestRetrySucceedsOnThirdAttempt(t *testing.T) {
	calls := 0
	result, err := Retry(context.Background(), func() (string, error) {
		calls++
		if calls < 3 {
			return "", errors.New("elevenlabs returned status 429: rate limit exceeded")
		}
		return "audio", nil
	}, fastRetry(3))

	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if result != "audio" {
		t.Errorf("expected result to pass through, got %q", result)
	}
	if calls != 3 {
		t.Errorf("expected exactly 3 calls, got %d", calls)
	}
}

func TestRetryNonRetryableFailsImmediately(t *testing.T) {
	calls := 0
	_, err := Retry(context.Background(), func() (string, error) {
		calls++
		return "", errors.New("elevenlabs returned status 401: invalid key")
	}, fastRetry(3))

	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("non-retryable error should not be retried, got %d calls", calls)
	}
	if !apperr.IsKind(err, apperr.KindUpstreamFatal) {
		t.Errorf("expected upstream_fatal, got %v", apperr.KindOf(err))
	}
}

func TestRetryExhaustsBudget(t *testing.T) {
	calls := 0
	underlying := errors.New("quota exceeded")
	_, err := Retry(context.Background(), func() (int, error) {
		calls++
		return 0, underlying
	}, fastRetry(3))

	if err == nil {
		t.Fatal("expected error after exhaustion")
	}
	if calls != 3 {
		t.Errorf("expected 3 attempts, got %d", calls)
	}
	if !errors.Is(err, underlying) {
		t.Error("final error should wrap the last underlying failure")
	}
	if !apperr.IsKind(err, apperr.KindUpstreamFatal) {
		t.Errorf("exhaustion should escalate to upstream_fatal, got %v", apperr.KindOf(err))
	}
}

func TestRetryHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	_, err := Retry(ctx, func() (int, error) {
		calls++
		return 0, errors.New("rate limit")
	}, RetryOptions{MaxAttempts: 3, InitialDelay: time.Hour, BackoffMultiplier: 2})

	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context cancellation, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected a single attempt before cancellation, got %d", calls)
	}
}

func TestNextDelayDoublesAndCaps(t *testing.T) {
	opts := RetryOptions{
		InitialDelay:      2 * time.Second,
		MaxDelay:          10 * time.Second,
		BackoffMultiplier: 2,
	}

	d1 := opts.InitialDelay
	d2 := nextDelay(d1, opts)
	d3 := nextDelay(d2, opts)
	d4 := nextDelay(d3, opts)

	if d2 != 4*time.Second {
		t.Errorf("expected second delay 4s, got %v", d2)
	}
	if d2 < d1 {
		t.Error("delays must be non-decreasing")
	}
	if d3 != 8*time.Second {
		t.Errorf("expected third delay 8s, got %v", d3)
	}
	if d4 != 10*time.Second {
		t.Errorf("expected cap at 10s, got %v", d4)
	}
}

func TestIsRetryable(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{errors.New("rate limit exceeded"), true},
		{errors.New("HTTP 429 Too Many Requests"), true},
		{errors.New("monthly quota reached"), true},
		{errors.New("connection refused"), false},
		{errors.New("invalid voice id"), false},
		{nil, false},
	}

	for _, tc := range cases {
		if got := IsRetryable(tc.err); got != tc.want {
			t.Errorf("IsRetryable(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}
