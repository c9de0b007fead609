package api

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// KeyedLimiter is a token bucket per key.
type KeyedLimiter struct {
	limit rate.Limit
	burst int

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewKeyedLimiter allows perMinute events per key and minute, with bursts of
// the same size.
func NewKeyedLimiter(perMinute int) *KeyedLimiter {
	return &KeyedLimiter{
		limit:    rate.Every(time.Minute / time.Duration(perMinute)),
		burst:    perMinute,
		limiters: make(map[string]*rate.Limiter),
	}
}

func (l *KeyedLimiter) get(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	lim, ok := l.limiters[key]
	if !ok {
		lim = rate.NewLimiter(l.limit, l.burst)
		l.limiters[key] = lim
	}
	return lim
}

// Allow reports whether an event for key may happen now.
func (l *KeyedLimiter) Allow(key string) bool {
	return l.get(key).Allow()
}

// RetryAfter returns how long until key has a token again.
func (l *KeyedLimiter) RetryAfter(key string) time.Duration {
	r := l.get(key).Reserve()
	d := r.Delay()
	r.Cancel()
	return d
}

// Forget drops the bucket of key. It is wired to workspace eviction.
func (l *KeyedLimiter) Forget(key string) {
	l.mu.Lock()
	delete(l.limiters, key)
	l.mu.Unlock()
}

// Len returns the number of tracked keys.
func (l *KeyedLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.limiters)
}
