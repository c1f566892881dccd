package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"extract-gateway/middleware/ratelimit/infra"
)

// stuckPool nunca libera vaga: só sai pelo ctx.
type stuckPool struct{}

func (stuckPool) Acquire(ctx context.Context) (func(), bool) {
	<-ctx.Done()
	return nil, false
}

func TestConcurrencyService_NilPoolAlwaysAdmits(t *testing.T) {
	release, err := ConcurrencyService{}.Acquire(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	release()
}

func TestConcurrencyService_TimeoutMeansSaturated(t *testing.T) {
	svc := ConcurrencyService{Pool: stuckPool{}, AcquireTimeout: 10 * time.Millisecond}

	start := time.Now()
	_, err := svc.Acquire(context.Background())
	if !errors.Is(err, ErrSaturated) {
		t.Fatalf("expected ErrSaturated, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Fatalf("acquire did not honour AcquireTimeout")
	}
}

func TestConcurrencyService_CancelledCallerIsNotSaturation(t *testing.T) {
	svc := ConcurrencyService{Pool: stuckPool{}, AcquireTimeout: time.Minute}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Acquire(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if errors.Is(err, ErrSaturated) {
		t.Fatalf("caller cancel must not be reported as saturation")
	}
}

func TestConcurrencyService_ReleaseFreesSlot(t *testing.T) {
	pool := infra.NewChanPool(1)
	svc := ConcurrencyService{Pool: pool, AcquireTimeout: 10 * time.Millisecond}

	release, err := svc.Acquire(context.Background())
	if err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	if _, err := svc.Acquire(context.Background()); !errors.Is(err, ErrSaturated) {
		t.Fatalf("expected second acquire to saturate, got %v", err)
	}

	release()
	release() // idempotente
	if pool.InUse() != 0 {
		t.Fatalf("expected 0 in use after release, got %d", pool.InUse())
	}

	again, err := svc.Acquire(context.Background())
	if err != nil {
		t.Fatalf("acquire after release: %v", err)
	}
	again()
}
