package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Pacer spaces out consecutive operations by a fixed interval.
type Pacer interface {
	Wait(ctx context.Context) error
}

// IntervalPacer lets the first call through immediately and every following
// call at most once per interval.
type IntervalPacer struct {
	limiter *rate.Limiter
}

// NewPacer creates a pacer. A non-positive interval disables pacing.
func NewPacer(interval time.Duration) *IntervalPacer {
	if interval <= 0 {
		return &IntervalPacer{limiter: rate.NewLimiter(rate.Inf, 1)}
	}
	return &IntervalPacer{limiter: rate.NewLimiter(rate.Every(interval), 1)}
}

func (p *IntervalPacer) Wait(ctx context.Context) error {
	return p.limiter.Wait(ctx)
}

// Limiter decides whether a caller identified by key may proceed right now.
type Limiter interface {
	Allow(key string) bool
}

// InMemoryLimiter keeps one token bucket per key in memory
type InMemoryLimiter struct {
	keys map[string]*rate.Limiter
	mu   sync.Mutex
	r    rate.Limit
	b    int
}

// NewInMemoryLimiter creates a new rate limiter
// Example: NewInMemoryLimiter(10, time.Second, 20) -> 10 requests per second per key, burst of 20
func NewInMemoryLimiter(requests int, per time.Duration, burst int) *InMemoryLimiter {
	if requests <= 0 {
		requests = 1
	}
	return &InMemoryLimiter{
		keys: make(map[string]*rate.Limiter),
		r:    rate.Every(per / time.Duration(requests)),
		b:    burst,
	}
}

func (l *InMemoryLimiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	limiter, exists := l.keys[key]
	if !exists {
		limiter = rate.NewLimiter(l.r, l.b)
		l.keys[key] = limiter
	}

	return limiter.Allow()
}
