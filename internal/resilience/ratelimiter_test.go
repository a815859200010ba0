package resilience

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func setupTestRL(t *testing.T, window time.Duration) (*RateLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewRateLimiter(client, window, logger), mr
}

func TestRateLimiter_AllowsWithinLimit(t *testing.T) {
	rl, _ := setupTestRL(t, time.Minute)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if !rl.Allow(ctx, "checkout:10.0.0.1", 5) {
			t.Errorf("request %d should be allowed (limit=5)", i+1)
		}
	}
}

func TestRateLimiter_BlocksOverLimit(t *testing.T) {
	rl, _ := setupTestRL(t, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		rl.Allow(ctx, "checkout:10.0.0.1", 3)
	}

	if rl.Allow(ctx, "checkout:10.0.0.1", 3) {
		t.Error("request should be blocked when over limit")
	}
}

func TestRateLimiter_WindowSlides(t *testing.T) {
	rl, _ := setupTestRL(t, time.Minute)
	ctx := context.Background()

	start := time.Now()
	rl.now = func() time.Time { return start }
	for i := 0; i < 2; i++ {
		rl.Allow(ctx, "checkout:10.0.0.1", 2)
	}
	if rl.Allow(ctx, "checkout:10.0.0.1", 2) {
		t.Fatal("third request inside the window should be blocked")
	}

	rl.now = func() time.Time { return start.Add(61 * time.Second) }
	if !rl.Allow(ctx, "checkout:10.0.0.1", 2) {
		t.Error("request after the window should be allowed again")
	}
}

func TestRateLimiter_ZeroLimit_AllowsAll(t *testing.T) {
	rl, _ := setupTestRL(t, time.Minute)
	ctx := context.Background()

	for i := 0; i < 100; i++ {
		if !rl.Allow(ctx, "checkout:10.0.0.1", 0) {
			t.Errorf("request %d should be allowed with limit=0 (unlimited)", i+1)
		}
	}
}

func TestRateLimiter_IsolationBetweenKeys(t *testing.T) {
	rl, _ := setupTestRL(t, time.Minute)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		rl.Allow(ctx, "checkout:10.0.0.1", 2)
	}

	if rl.Allow(ctx, "checkout:10.0.0.1", 2) {
		t.Error("first client should be blocked")
	}
	if !rl.Allow(ctx, "checkout:10.0.0.2", 2) {
		t.Error("second client should be allowed; limits are per key")
	}
}

func TestRateLimiter_FailsOpen(t *testing.T) {
	rl, mr := setupTestRL(t, time.Minute)
	mr.Close()

	if !rl.Allow(context.Background(), "checkout:10.0.0.1", 1) {
		t.Error("limiter should fail open when Redis is unavailable")
	}
}
