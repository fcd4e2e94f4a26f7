package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestLocalTonnelGateEnforcesMinimumInterval(t *testing.T) {
	g := NewLocalTonnelGate(30 * time.Millisecond)
	ctx := context.Background()

	start := time.Now()
	if err := g.Wait(ctx); err != nil {
		t.Fatalf("first wait: %v", err)
	}
	if err := g.Wait(ctx); err != nil {
		t.Fatalf("second wait: %v", err)
	}
	elapsed := time.Since(start)
	if elapsed < 30*time.Millisecond {
		t.Fatalf("expected at least 30ms between grants, got %v", elapsed)
	}
}

func TestLocalTonnelGateRespectsContextCancellation(t *testing.T) {
	g := NewLocalTonnelGate(time.Hour)
	ctx := context.Background()
	if err := g.Wait(ctx); err != nil {
		t.Fatalf("first wait: %v", err)
	}

	cancelCtx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := g.Wait(cancelCtx); err == nil {
		t.Fatal("expected cancelled context to return an error from the second wait")
	}
}
