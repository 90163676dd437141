package middleware

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	maxEntries      = 10000
	cleanupInterval = time.Minute
	entryTTL        = 5 * time.Minute
)

// Limiter decides whether a request identified by key may proceed.
type Limiter interface {
	Allow(ctx context.Context, key string) (allowed bool, retryAfter time.Duration)
}

type limiterEntry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// IPRateLimiter keeps one token bucket per key in memory.
type IPRateLimiter struct {
	mu          sync.Mutex
	entries     map[string]*limiterEntry
	r           rate.Limit
	burst       int
	lastCleanup time.Time
	now         func() time.Time
}

func NewIPRateLimiter(perSecond float64, burst int) *IPRateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &IPRateLimiter{
		entries:     make(map[string]*limiterEntry),
		r:           rate.Limit(perSecond),
		burst:       burst,
		lastCleanup: time.Now(),
		now:         time.Now,
	}
}

func (l *IPRateLimiter) cleanup(now time.Time) {
	if now.Sub(l.lastCleanup) < cleanupInterval && len(l.entries) <= maxEntries {
		return
	}
	l.lastCleanup = now

	for key, entry := range l.entries {
		if now.Sub(entry.lastAccess) > entryTTL {
			delete(l.entries, key)
		}
	}

	if len(l.entries) > maxEntries {
		drop := len(l.entries) / 5
		for key := range l.entries {
			if drop == 0 {
				break
			}
			delete(l.entries, key)
			drop--
		}
	}
}

func (l *IPRateLimiter) Allow(_ context.Context, key string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.cleanup(now)

	entry, ok := l.entries[key]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(l.r, l.burst)}
		l.entries[key] = entry
	}
	entry.lastAccess = now

	reservation := entry.limiter.ReserveN(now, 1)
	if !reservation.OK() {
		return false, time.Second
	}
	if delay := reservation.DelayFrom(now); delay > 0 {
		reservation.CancelAt(now)
		return false, delay
	}
	return true, 0
}
