package resilience

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestRateLimiter_AllowWithinBurst(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Name: "test", Rate: 10, Burst: 3})

	for i := 0; i < 3; i++ {
		if !rl.Allow() {
			t.Fatalf("expected call %d within burst to be allowed", i)
		}
	}
	if rl.Allow() {
		t.Fatal("expected call beyond burst to be denied")
	}
}

func TestRateLimiter_RefillsOverTime(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Name: "test", Rate: 100, Burst: 1})

	if !rl.Allow() {
		t.Fatal("expected first call to be allowed")
	}
	if rl.Allow() {
		t.Fatal("expected second immediate call to be denied")
	}

	time.Sleep(20 * time.Millisecond)
	if !rl.Allow() {
		t.Fatal("expected call after refill to be allowed")
	}
}

func TestRateLimiter_WaitBlocksUntilCapacity(t *testing.T) {
	rl := NewRateLimiter(IntervalConfig("test", 50*time.Millisecond))

	ctx := context.Background()
	if err := rl.Wait(ctx); err != nil {
		t.Fatalf("first wait should not block: %v", err)
	}

	start := time.Now()
	if err := rl.Wait(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 30*time.Millisecond {
		t.Fatalf("expected second wait to be throttled, returned after %v", elapsed)
	}
}

func TestRateLimiter_WaitHonorsContextDeadline(t *testing.T) {
	rl := NewRateLimiter(IntervalConfig("test", time.Hour))
	rl.Allow() // drain the bucket

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := rl.Wait(ctx)
	if err != context.DeadlineExceeded {
		t.Fatalf("expected DeadlineExceeded, got %v", err)
	}
}

func TestRateLimiter_MinIntervalUnderConcurrency(t *testing.T) {
	const minInterval = 20 * time.Millisecond
	rl := NewRateLimiter(IntervalConfig("test", minInterval))

	var mu sync.Mutex
	var timestamps []time.Time

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := rl.Wait(context.Background()); err != nil {
				t.Errorf("wait failed: %v", err)
				return
			}
			mu.Lock()
			timestamps = append(timestamps, time.Now())
			mu.Unlock()
		}()
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	if len(timestamps) != 4 {
		t.Fatalf("expected 4 acquisitions, got %d", len(timestamps))
	}
	for i := 1; i < len(timestamps); i++ {
		for j := 0; j < i; j++ {
			gap := timestamps[i].Sub(timestamps[j])
			if gap < 0 {
				gap = -gap
			}
			// Allow scheduling slack but catch gross violations of the
			// configured interval.
			if gap < minInterval/2 {
				t.Fatalf("two acquisitions only %v apart, interval is %v", gap, minInterval)
			}
		}
	}
}

func TestWindowConfig(t *testing.T) {
	cfg := WindowConfig("asr", 10, time.Minute)
	if cfg.Burst != 10 {
		t.Fatalf("expected burst 10, got %d", cfg.Burst)
	}
	want := 10.0 / 60.0
	if cfg.Rate < want-0.001 || cfg.Rate > want+0.001 {
		t.Fatalf("expected rate %.4f, got %.4f", want, cfg.Rate)
	}
}

func TestLimiterSet_SharedPerProvider(t *testing.T) {
	set := NewLimiterSet(nil)

	a1 := set.Get("bcut")
	a2 := set.Get("bcut")
	b := set.Get("kuaishou")

	if a1 != a2 {
		t.Fatal("expected the same limiter instance for the same provider")
	}
	if a1 == b {
		t.Fatal("expected distinct limiters for distinct providers")
	}
}

func TestLimiterSet_DefaultsFunc(t *testing.T) {
	set := NewLimiterSet(func(name string) RateLimiterConfig {
		return RateLimiterConfig{Name: name, Rate: 1, Burst: 7}
	})

	rl := set.Get("whispercpp")
	if rl.Tokens() != 7 {
		t.Fatalf("expected 7 tokens from defaults func, got %f", rl.Tokens())
	}
}

func TestLimiterSet_ConcurrentGet(t *testing.T) {
	set := NewLimiterSet(nil)

	var wg sync.WaitGroup
	results := make([]*RateLimiter, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = set.Get("shared")
		}(i)
	}
	wg.Wait()

	for i := 1; i < len(results); i++ {
		if results[i] != results[0] {
			t.Fatal("concurrent Get must return a single shared instance")
		}
	}
}
