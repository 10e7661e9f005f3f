package breaker_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/m-mizutani/gt"

	"github.com/0xhatsume/tg-agentic-rag-dash/pkg/domain/types"
	"github.com/0xhatsume/tg-agentic-rag-dash/pkg/utils/breaker"
)

func TestBreakerOpensAfterThreshold(t *testing.T) {
	b := breaker.New(breaker.WithFailureThreshold(3))
	ctx := context.Background()
	boom := errors.New("provider down")

	for i := 0; i < 3; i++ {
		err := b.Do(ctx, func(ctx context.Context) error { return boom })
		gt.Error(t, err)
	}
	gt.Value(t, b.State()).Equal(breaker.StateOpen)

	// Calls are rejected without invoking the operation
	called := false
	err := b.Do(ctx, func(ctx context.Context) error {
		called = true
		return nil
	})
	gt.Error(t, err)
	gt.True(t, errors.Is(err, types.ErrCircuitOpen))
	gt.False(t, called)
}

func TestBreakerHalfOpenRecovery(t *testing.T) {
	now := time.Now()
	clock := func() time.Time { return now }
	b := breaker.New(
		breaker.WithFailureThreshold(1),
		breaker.WithResetTimeout(time.Minute),
		breaker.WithClock(clock),
	)
	ctx := context.Background()

	gt.Error(t, b.Do(ctx, func(ctx context.Context) error { return errors.New("fail") }))
	gt.Value(t, b.State()).Equal(breaker.StateOpen)

	// Before the reset timeout elapses the circuit stays open
	now = now.Add(30 * time.Second)
	gt.Value(t, b.State()).Equal(breaker.StateOpen)

	// After the timeout the circuit admits trial calls but stays
	// half-open until enough of them succeed in a row
	now = now.Add(31 * time.Second)
	gt.Value(t, b.State()).Equal(breaker.StateHalfOpen)
	gt.NoError(t, b.Do(ctx, func(ctx context.Context) error { return nil }))
	gt.Value(t, b.State()).Equal(breaker.StateHalfOpen)
	gt.NoError(t, b.Do(ctx, func(ctx context.Context) error { return nil }))
	gt.Value(t, b.State()).Equal(breaker.StateHalfOpen)
	gt.NoError(t, b.Do(ctx, func(ctx context.Context) error { return nil }))
	gt.Value(t, b.State()).Equal(breaker.StateClosed)
	gt.Value(t, b.FailureCount()).Equal(0)
}

func TestBreakerHalfOpenSuccessThenFailureReopens(t *testing.T) {
	now := time.Now()
	b := breaker.New(
		breaker.WithFailureThreshold(2),
		breaker.WithResetTimeout(time.Minute),
		breaker.WithHalfOpenMaxAttempts(3),
		breaker.WithClock(func() time.Time { return now }),
	)
	ctx := context.Background()
	boom := errors.New("flaky")

	gt.Error(t, b.Do(ctx, func(ctx context.Context) error { return boom }))
	gt.Error(t, b.Do(ctx, func(ctx context.Context) error { return boom }))
	gt.Value(t, b.State()).Equal(breaker.StateOpen)

	// One good trial call is not enough; a failure after it re-opens
	// with the failure counter carried over
	now = now.Add(2 * time.Minute)
	gt.NoError(t, b.Do(ctx, func(ctx context.Context) error { return nil }))
	gt.Value(t, b.State()).Equal(breaker.StateHalfOpen)
	gt.Error(t, b.Do(ctx, func(ctx context.Context) error { return boom }))
	gt.Value(t, b.State()).Equal(breaker.StateOpen)
	gt.Value(t, b.FailureCount()).Equal(3)

	// The next recovery window starts the success count from zero
	now = now.Add(2 * time.Minute)
	gt.NoError(t, b.Do(ctx, func(ctx context.Context) error { return nil }))
	gt.Value(t, b.State()).Equal(breaker.StateHalfOpen)
	gt.NoError(t, b.Do(ctx, func(ctx context.Context) error { return nil }))
	gt.Value(t, b.State()).Equal(breaker.StateHalfOpen)
	gt.NoError(t, b.Do(ctx, func(ctx context.Context) error { return nil }))
	gt.Value(t, b.State()).Equal(breaker.StateClosed)
	gt.Value(t, b.FailureCount()).Equal(0)
}

func TestBreakerHalfOpenFailureKeepsCount(t *testing.T) {
	now := time.Now()
	b := breaker.New(
		breaker.WithFailureThreshold(2),
		breaker.WithResetTimeout(time.Minute),
		breaker.WithClock(func() time.Time { return now }),
	)
	ctx := context.Background()
	boom := errors.New("still down")

	gt.Error(t, b.Do(ctx, func(ctx context.Context) error { return boom }))
	gt.Error(t, b.Do(ctx, func(ctx context.Context) error { return boom }))
	gt.Value(t, b.State()).Equal(breaker.StateOpen)
	gt.Value(t, b.FailureCount()).Equal(2)

	// Failed probe trips back open without resetting the failure counter
	now = now.Add(2 * time.Minute)
	gt.Value(t, b.State()).Equal(breaker.StateHalfOpen)
	gt.Error(t, b.Do(ctx, func(ctx context.Context) error { return boom }))
	gt.Value(t, b.State()).Equal(breaker.StateOpen)
	gt.Value(t, b.FailureCount()).Equal(3)
}
