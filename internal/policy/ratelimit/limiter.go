// Package ratelimit implements a token bucket limiter keyed by caller.
package ratelimit

import (
	"sync"

	"golang.org/x/time/rate"
)

// Limiter hands out one token bucket per key. Keys are typically client
// addresses; a key that has never been seen starts with a full bucket.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*rate.Limiter
	limit   rate.Limit
	burst   int
}

// Config holds limiter settings. RPS <= 0 means unlimited.
type Config struct {
	RPS   float64
	Burst int
}

// New creates a Limiter.
func New(cfg Config) *Limiter {
	limit := rate.Limit(cfg.RPS)
	if cfg.RPS <= 0 {
		limit = rate.Inf
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &Limiter{
		buckets: make(map[string]*rate.Limiter),
		limit:   limit,
		burst:   burst,
	}
}

// Allow reports whether the caller identified by key may proceed now.
// It never blocks; shedding is the caller's job.
func (l *Limiter) Allow(key string) bool {
	return l.bucket(key).Allow()
}

func (l *Limiter) bucket(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.buckets[key]
	if !ok {
		b = rate.NewLimiter(l.limit, l.burst)
		l.buckets[key] = b
	}
	return b
}
