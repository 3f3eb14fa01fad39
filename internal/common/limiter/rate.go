package limiter

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateConfig configures per-key request rates.
type RateConfig struct {
	RPS   float64       `yaml:"rps"`
	Burst int           `yaml:"burst"`
	TTL   time.Duration `yaml:"ttl"`
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// KeyedRateLimiter keeps one token bucket per key (usually a client IP).
type KeyedRateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	limit    rate.Limit
	burst    int
	ttl      time.Duration
	now      func() time.Time
}

// NewKeyedRateLimiter creates a limiter. A non-positive RPS disables limiting.
func NewKeyedRateLimiter(cfg RateConfig) *KeyedRateLimiter {
	limit := rate.Inf
	if cfg.RPS > 0 {
		limit = rate.Limit(cfg.RPS)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &KeyedRateLimiter{
		visitors: make(map[string]*visitor),
		limit:    limit,
		burst:    burst,
		ttl:      ttl,
		now:      time.Now,
	}
}

// Allow reports whether a request for key may proceed now.
func (l *KeyedRateLimiter) Allow(key string) bool {
	l.mu.Lock()
	v, ok := l.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.visitors[key] = v
	}
	v.lastSeen = l.now()
	l.mu.Unlock()
	return v.limiter.Allow()
}

// Cleanup drops keys idle for longer than the TTL.
func (l *KeyedRateLimiter) Cleanup() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	cutoff := l.now().Add(-l.ttl)
	removed := 0
	for key, v := range l.visitors {
		if v.lastSeen.Before(cutoff) {
			delete(l.visitors, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked keys.
func (l *KeyedRateLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.visitors)
}

// StartCleanup runs Cleanup every interval until ctx is done.
func (l *KeyedRateLimiter) StartCleanup(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = l.ttl
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				l.Cleanup()
			}
		}
	}()
}
