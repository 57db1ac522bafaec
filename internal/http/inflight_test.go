package http

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRequestGate_Count(t *testing.T) {
	var g RequestGate
	leaveA := g.Enter()
	leaveB := g.Enter()
	if got := g.Count(); got != 2 {
		t.Fatalf("Count() = %d, want 2", got)
	}
	leaveA()
	leaveA()
	if got := g.Count(); got != 1 {
		t.Errorf("Count() after double leave = %d, want 1", got)
	}
	leaveB()
	if got := g.Count(); got != 0 {
		t.Errorf("Count() = %d, want 0", got)
	}
}

func TestRequestGate_Drain_Idle(t *testing.T) {
	var g RequestGate
	if err := g.Drain(context.Background()); err != nil {
		t.Errorf("Drain() on idle gate = %v, want nil", err)
	}
}

func TestRequestGate_Drain_WaitsForLastRequest(t *testing.T) {
	var g RequestGate
	leave := g.Enter()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- g.Drain(ctx) }()

	select {
	case err := <-done:
		t.Fatalf("Drain() returned %v with a request open", err)
	case <-time.After(20 * time.Millisecond):
	}
	leave()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Drain() error = %v, want nil", err)
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatal("Drain did not return after the last request left")
	}
}

// TestRequestGate_Drain_Reopened verifies a gate that went idle and got busy again is waited on.
func TestRequestGate_Drain_Reopened(t *testing.T) {
	var g RequestGate
	g.Enter()()
	g.Enter()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := g.Drain(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Drain() error = %v, want context.DeadlineExceeded", err)
	}
}

func TestRequestGate_Drain_ContextCanceled(t *testing.T) {
	var g RequestGate
	g.Enter()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := g.Drain(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Drain() error = %v, want context.Canceled", err)
	}
}
