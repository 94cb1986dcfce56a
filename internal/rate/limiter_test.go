package rate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestLimiter(t *testing.T) (*Limiter, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return New(rdb, Config{MaxFailures: 3, Window: time.Hour}), mr
}

func TestThreshold(t *testing.T) {
	limiter, _ := newTestLimiter(t)
	ctx := context.Background()

	limited, err := limiter.IsLimited(ctx, "1.2.3.4")
	if err != nil {
		t.Fatalf("IsLimited error: %v", err)
	}
	if limited {
		t.Fatal("expected fresh identifier to not be limited")
	}

	for i := 0; i < 3; i++ {
		if err := limiter.RecordFailure(ctx, "1.2.3.4"); err != nil {
			t.Fatalf("RecordFailure error: %v", err)
		}
	}

	limited, err = limiter.IsLimited(ctx, "1.2.3.4")
	if err != nil {
		t.Fatalf("IsLimited error: %v", err)
	}
	if !limited {
		t.Fatal("expected identifier to be limited after threshold")
	}

	count, err := limiter.Failures(ctx, "1.2.3.4")
	if err != nil {
		t.Fatalf("Failures error: %v", err)
	}
	if count != 3 {
		t.Fatalf("Failures = %d, want 3", count)
	}
}

func TestCountersAreIsolatedPerIdentifier(t *testing.T) {
	limiter, _ := newTestLimiter(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := limiter.RecordFailure(ctx, "1.2.3.4"); err != nil {
			t.Fatalf("RecordFailure error: %v", err)
		}
	}

	limited, err := limiter.IsLimited(ctx, "5.6.7.8")
	if err != nil {
		t.Fatalf("IsLimited error: %v", err)
	}
	if limited {
		t.Fatal("expected a different identifier to be unaffected")
	}
}

func TestWindowExpiry(t *testing.T) {
	limiter, mr := newTestLimiter(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := limiter.RecordFailure(ctx, "1.2.3.4"); err != nil {
			t.Fatalf("RecordFailure error: %v", err)
		}
	}

	mr.FastForward(2 * time.Hour)

	limited, err := limiter.IsLimited(ctx, "1.2.3.4")
	if err != nil {
		t.Fatalf("IsLimited error: %v", err)
	}
	if limited {
		t.Fatal("expected counter to expire with its window")
	}
}

func TestClear(t *testing.T) {
	limiter, _ := newTestLimiter(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := limiter.RecordFailure(ctx, "1.2.3.4"); err != nil {
			t.Fatalf("RecordFailure error: %v", err)
		}
	}
	if err := limiter.Clear(ctx, "1.2.3.4"); err != nil {
		t.Fatalf("Clear error: %v", err)
	}

	count, err := limiter.Failures(ctx, "1.2.3.4")
	if err != nil {
		t.Fatalf("Failures error: %v", err)
	}
	if count != 0 {
		t.Fatalf("Failures = %d after Clear, want 0", count)
	}
}

func TestRedisUnavailable(t *testing.T) {
	limiter, mr := newTestLimiter(t)
	ctx := context.Background()

	mr.Close()

	if _, err := limiter.IsLimited(ctx, "1.2.3.4"); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable, got %v", err)
	}
	if err := limiter.RecordFailure(ctx, "1.2.3.4"); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable, got %v", err)
	}
}
