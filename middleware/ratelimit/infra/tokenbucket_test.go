package infra

import (
	"context"
	"testing"
	"time"
)

func TestTokenBucket_BurstThenRetryAfterOneToken(t *testing.T) {
	clk := newFakeClock(baseTime)
	s := NewTokenBucketStore(WithTokenBucketClock(clk.Now))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if dec, _ := s.TryAcquire(ctx, "k", 3); !dec.Allowed {
			t.Fatalf("request %d: expected allowed", i+1)
		}
	}

	dec, err := s.TryAcquire(ctx, "k", 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dec.Allowed {
		t.Fatalf("expected 4th request rejected")
	}
	// 3/min => um token a cada 20s
	if dec.RetryAfter != 20*time.Second {
		t.Fatalf("expected RetryAfter=20s, got %s", dec.RetryAfter)
	}

	clk.Advance(20 * time.Second)
	if dec, _ := s.TryAcquire(ctx, "k", 3); !dec.Allowed {
		t.Fatalf("expected allowed after refill")
	}
}

func TestTokenBucket_RejectedReservationIsCancelled(t *testing.T) {
	clk := newFakeClock(baseTime)
	s := NewTokenBucketStore(WithTokenBucketClock(clk.Now))
	ctx := context.Background()

	_, _ = s.TryAcquire(ctx, "k", 1)
	for i := 0; i < 5; i++ {
		_, _ = s.TryAcquire(ctx, "k", 1)
	}

	clk.Advance(time.Minute)
	if dec, _ := s.TryAcquire(ctx, "k", 1); !dec.Allowed {
		t.Fatalf("rejections must not borrow future tokens")
	}
}

func TestTokenBucket_CleanupRemovesIdleEntries(t *testing.T) {
	clk := newFakeClock(baseTime)
	s := NewTokenBucketStore(WithTokenBucketClock(clk.Now), WithIdleTTL(time.Minute))

	_, _ = s.TryAcquire(context.Background(), "k", 10)
	clk.Advance(2 * time.Minute)
	s.Cleanup()

	if s.Len() != 0 {
		t.Fatalf("expected idle entry to be removed, got %d", s.Len())
	}
}
