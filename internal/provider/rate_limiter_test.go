package provider

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestRateLimiter(t *testing.T) {
	ctx := context.Background()

	t.Run("AllowsRequestsWithinLimit", func(t *testing.T) {
		rl := NewRateLimiter(5, 1*time.Second)

		start := time.Now()
		for i := 0; i < 5; i++ {
			if err := rl.Wait(ctx); err != nil {
				t.Errorf("Wait() request %d error = %v, want nil", i+1, err)
			}
		}
		if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
			t.Errorf("5 requests under limit took %v, expected < 100ms", elapsed)
		}
	})

	t.Run("BlocksExcessRequests", func(t *testing.T) {
		rl := NewRateLimiter(2, 300*time.Millisecond)

		start := time.Now()
		for i := 0; i < 3; i++ {
			if err := rl.Wait(ctx); err != nil {
				t.Errorf("Wait() request %d error = %v, want nil", i+1, err)
			}
		}
		if elapsed := time.Since(start); elapsed < 300*time.Millisecond {
			t.Errorf("3rd request took %v, expected at least 300ms delay", elapsed)
		}
	})

	t.Run("FixedDelayBetweenCalls", func(t *testing.T) {
		rl := NewRateLimiter(1, 100*time.Millisecond)

		start := time.Now()
		for i := 0; i < 3; i++ {
			if err := rl.Wait(ctx); err != nil {
				t.Fatalf("Wait() error = %v", err)
			}
		}
		if elapsed := time.Since(start); elapsed < 200*time.Millisecond {
			t.Errorf("3 calls took %v, expected at least 200ms", elapsed)
		}
	})

	t.Run("ConcurrentRequests", func(t *testing.T) {
		rl := NewRateLimiter(10, 200*time.Millisecond)

		var wg sync.WaitGroup
		var mu sync.Mutex
		successCount := 0
		for i := 0; i < 15; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := rl.Wait(ctx); err == nil {
					mu.Lock()
					successCount++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		if successCount != 15 {
			t.Errorf("Only %d concurrent requests succeeded, expected 15", successCount)
		}
	})

	t.Run("HonorsCancellation", func(t *testing.T) {
		rl := NewRateLimiter(1, 10*time.Second)
		if err := rl.Wait(ctx); err != nil {
			t.Fatalf("Wait() error = %v", err)
		}

		cctx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
		defer cancel()
		if err := rl.Wait(cctx); !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("Wait() error = %v, want deadline exceeded", err)
		}
	})

	t.Run("NilLimiterNeverBlocks", func(t *testing.T) {
		var rl *RateLimiter
		if err := rl.Wait(ctx); err != nil {
			t.Errorf("Wait() error = %v, want nil", err)
		}
	})
}
