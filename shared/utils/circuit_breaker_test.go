package utils

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errUpstream = errors.New("upstream down")

func failing(ctx context.Context) error { return errUpstream }
func passing(ctx context.Context) error { return nil }

func TestCircuitBreaker_OpensAfterMaxFailures(t *testing.T) {
	cb := NewCircuitBreaker("test", 3, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := cb.Execute(ctx, failing); !errors.Is(err, errUpstream) {
			t.Fatalf("call %d: expected upstream error, got %v", i, err)
		}
	}
	if cb.State() != BreakerOpen {
		t.Fatalf("expected open, got %s", cb.State())
	}

	called := false
	err := cb.Execute(ctx, func(ctx context.Context) error { called = true; return nil })
	if !errors.Is(err, ErrCircuitOpen) || called {
		t.Fatalf("expected call rejected while open, got %v (called=%v)", err, called)
	}
}

func TestCircuitBreaker_SuccessResetsCount(t *testing.T) {
	cb := NewCircuitBreaker("test", 2, time.Minute)
	ctx := context.Background()

	_ = cb.Execute(ctx, failing)
	_ = cb.Execute(ctx, passing)
	_ = cb.Execute(ctx, failing)
	if cb.State() != BreakerClosed {
		t.Fatalf("expected closed after interleaved success, got %s", cb.State())
	}
}

func TestCircuitBreaker_HalfOpenProbe(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cb := NewCircuitBreaker("test", 1, 30*time.Second)
	cb.now = func() time.Time { return now }
	ctx := context.Background()

	_ = cb.Execute(ctx, failing)
	if cb.State() != BreakerOpen {
		t.Fatalf("expected open, got %s", cb.State())
	}

	now = now.Add(31 * time.Second)
	release := make(chan struct{})
	probeDone := make(chan error)
	go func() {
		probeDone <- cb.Execute(ctx, func(ctx context.Context) error { <-release; return nil })
	}()

	deadline := time.Now().Add(time.Second)
	for cb.State() != BreakerHalfOpen && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if err := cb.Execute(ctx, passing); !errors.Is(err, ErrProbeInFlight) {
		t.Fatalf("expected second caller rejected during probe, got %v", err)
	}

	close(release)
	if err := <-probeDone; err != nil {
		t.Fatalf("probe: %v", err)
	}
	if cb.State() != BreakerClosed {
		t.Fatalf("expected closed after successful probe, got %s", cb.State())
	}
}

func TestCircuitBreaker_FailedProbeReopens(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cb := NewCircuitBreaker("test", 5, 10*time.Second)
	cb.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_ = cb.Execute(ctx, failing)
	}
	now = now.Add(11 * time.Second)
	if err := cb.Execute(ctx, failing); !errors.Is(err, errUpstream) {
		t.Fatalf("expected probe to reach upstream, got %v", err)
	}
	if cb.State() != BreakerOpen {
		t.Fatalf("expected reopened after failed probe, got %s", cb.State())
	}
	if err := cb.Execute(ctx, passing); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected new cool-down, got %v", err)
	}
}

func TestCircuitBreaker_CancelledContextNotCounted(t *testing.T) {
	cb := NewCircuitBreaker("test", 1, time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_ = cb.Execute(ctx, func(ctx context.Context) error { return ctx.Err() })
	if cb.State() != BreakerClosed {
		t.Fatalf("expected caller cancellation ignored, got %s", cb.State())
	}
}
