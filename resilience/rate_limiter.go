// Package resilience provides the throttling and retry policies applied
// around recognition backend calls.
package resilience

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrRateLimited is returned when a non-blocking acquisition fails.
var ErrRateLimited = errors.New("rate limit exceeded")

// RateLimiterConfig configures a token bucket rate limiter.
type RateLimiterConfig struct {
	// Name identifies this rate limiter for logging.
	Name string
	// Rate is the number of calls allowed per second.
	Rate float64
	// Burst is the maximum burst size.
	Burst int
}

// IntervalConfig builds a limiter config enforcing a minimum interval
// between consecutive calls (burst of one).
func IntervalConfig(name string, minInterval time.Duration) RateLimiterConfig {
	if minInterval <= 0 {
		minInterval = time.Second
	}
	return RateLimiterConfig{
		Name:  name,
		Rate:  1.0 / minInterval.Seconds(),
		Burst: 1,
	}
}

// WindowConfig builds a limiter config allowing calls requests per period,
// matching a backend's published quota window.
func WindowConfig(name string, calls int, period time.Duration) RateLimiterConfig {
	if calls <= 0 {
		calls = 10
	}
	if period <= 0 {
		period = time.Minute
	}
	return RateLimiterConfig{
		Name:  name,
		Rate:  float64(calls) / period.Seconds(),
		Burst: calls,
	}
}

// RateLimiter implements a token bucket shared by every invocation that
// targets the same backend. Acquisitions atomically check and update the
// token count; waiting is cooperative and bounded by the caller's context.
type RateLimiter struct {
	config RateLimiterConfig

	mu         sync.Mutex
	tokens     float64
	lastRefill time.Time
}

// NewRateLimiter creates a new rate limiter.
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	if config.Rate <= 0 {
		config.Rate = 10.0
	}
	if config.Burst <= 0 {
		config.Burst = int(config.Rate)
		if config.Burst == 0 {
			config.Burst = 1
		}
	}
	return &RateLimiter{
		config:     config,
		tokens:     float64(config.Burst),
		lastRefill: time.Now(),
	}
}

// Allow checks if a call is allowed without blocking.
func (rl *RateLimiter) Allow() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.refill()
	if rl.tokens >= 1 {
		rl.tokens--
		return true
	}
	return false
}

// Wait blocks until a call is allowed or the context is done, whichever
// comes first. Acquisitions are served by availability, not priority.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	if rl.Allow() {
		return nil
	}

	waitTime := rl.reserve()
	if waitTime <= 0 {
		return nil
	}

	timer := time.NewTimer(waitTime)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Tokens returns the current number of available tokens.
func (rl *RateLimiter) Tokens() float64 {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.refill()
	return rl.tokens
}

// Name returns the limiter's identifier.
func (rl *RateLimiter) Name() string { return rl.config.Name }

// refill adds tokens based on elapsed time. Caller must hold mu.
func (rl *RateLimiter) refill() {
	now := time.Now()
	elapsed := now.Sub(rl.lastRefill).Seconds()
	rl.lastRefill = now

	rl.tokens += elapsed * rl.config.Rate
	if rl.tokens > float64(rl.config.Burst) {
		rl.tokens = float64(rl.config.Burst)
	}
}

// reserve takes one token, going negative if necessary, and returns how
// long the caller must wait before the debt is repaid.
func (rl *RateLimiter) reserve() time.Duration {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.refill()
	if rl.tokens >= 1 {
		rl.tokens--
		return 0
	}

	needed := 1 - rl.tokens
	rl.tokens--
	return time.Duration(needed / rl.config.Rate * float64(time.Second))
}
