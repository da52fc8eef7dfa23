package api

import (
	"context"
	"errors"
	"testing"
	"time"
)

func testPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, Delay: 5 * time.Millisecond, ServerCooldown: 20 * time.Millisecond}
}

func TestRetryNetworkThenSuccess(t *testing.T) {
	calls := 0
	start := time.Now()
	err := testPolicy().Do(context.Background(), func() error {
		calls++
		if calls < 3 {
			return &Error{Kind: KindNetwork, Op: "op", Err: errors.New("connection reset")}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success on third attempt, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
	// linear schedule: 1x + 2x the base delay
	if elapsed := time.Since(start); elapsed < 15*time.Millisecond {
		t.Fatalf("expected at least 15ms of backoff, got %v", elapsed)
	}
}

func TestRetryNotFoundImmediate(t *testing.T) {
	calls := 0
	err := testPolicy().Do(context.Background(), func() error {
		calls++
		return &Error{Kind: KindNotFound, Op: "op", Status: 404}
	})
	if calls != 1 {
		t.Fatalf("404 must not be retried, got %d calls", calls)
	}
	if !IsNotFound(err) {
		t.Fatalf("expected not-found kind, got %v", err)
	}
}

func TestRetryValidationImmediate(t *testing.T) {
	calls := 0
	err := testPolicy().Do(context.Background(), func() error {
		calls++
		return &Error{Kind: KindValidation, Op: "op"}
	})
	if calls != 1 || !IsValidation(err) {
		t.Fatalf("validation must surface immediately: calls=%d err=%v", calls, err)
	}
}

func TestRetryServerOnceAfterCooldown(t *testing.T) {
	calls := 0
	start := time.Now()
	err := testPolicy().Do(context.Background(), func() error {
		calls++
		return &Error{Kind: KindServer, Op: "op", Status: 502}
	})
	if calls != 2 {
		t.Fatalf("5xx gets exactly one extra attempt, got %d calls", calls)
	}
	if !IsServer(err) {
		t.Fatalf("expected server kind, got %v", err)
	}
	if elapsed := time.Since(start); elapsed < 20*time.Millisecond {
		t.Fatalf("expected the server cooldown to apply, got %v", elapsed)
	}
}

func TestRetryExhaustsCeiling(t *testing.T) {
	calls := 0
	err := testPolicy().Do(context.Background(), func() error {
		calls++
		return &Error{Kind: KindNetwork, Op: "op"}
	})
	if calls != 3 {
		t.Fatalf("expected exactly MaxAttempts calls, got %d", calls)
	}
	if !IsNetwork(err) {
		t.Fatalf("expected network kind after exhaustion, got %v", err)
	}
}

func TestRetryContextCancelDuringWait(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	go func() {
		time.Sleep(2 * time.Millisecond)
		cancel()
	}()
	err := RetryPolicy{MaxAttempts: 3, Delay: time.Minute}.Do(ctx, func() error {
		calls++
		return &Error{Kind: KindNetwork, Op: "op"}
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context cancellation, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected a single call before the cancelled wait, got %d", calls)
	}
}

func TestKindOfUnclassifiedDefaultsToNetwork(t *testing.T) {
	if KindOf(errors.New("dial tcp: timeout")) != KindNetwork {
		t.Fatal("plain errors classify as network")
	}
}
