package resilience

import (
	"sync"
	"time"
)

// LimiterSet holds one RateLimiter per provider identifier. The orchestrator
// owns a single set for the process and threads it through provider
// construction, so all concurrent invocations of the same backend share one
// limiter. Limiters are constructed lazily on first use.
type LimiterSet struct {
	mu       sync.Mutex
	limiters map[string]*RateLimiter
	defaults func(name string) RateLimiterConfig
}

// NewLimiterSet creates a LimiterSet. defaults supplies the limiter config
// for a provider seen for the first time; nil uses WindowConfig(name, 10, 1m).
func NewLimiterSet(defaults func(name string) RateLimiterConfig) *LimiterSet {
	return &LimiterSet{
		limiters: make(map[string]*RateLimiter),
		defaults: defaults,
	}
}

// Get returns the limiter for the given provider identifier, creating it on
// first use.
func (s *LimiterSet) Get(name string) *RateLimiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rl, ok := s.limiters[name]; ok {
		return rl
	}

	var cfg RateLimiterConfig
	if s.defaults != nil {
		cfg = s.defaults(name)
	} else {
		cfg = WindowConfig(name, 10, time.Minute)
	}
	rl := NewRateLimiter(cfg)
	s.limiters[name] = rl
	return rl
}
