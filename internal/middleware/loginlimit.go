package middleware

import (
	"sync"
	"time"
)

const (
	authMaxFailures    = 5
	authWindowDuration = time.Minute
	authCleanupPeriod  = 5 * time.Minute
)

type authFailure struct {
	count       int
	windowStart time.Time
}

// AuthFailureLimiter counts failed logins per IP in a fixed window.
type AuthFailureLimiter struct {
	mu          sync.Mutex
	failures    map[string]*authFailure
	lastCleanup time.Time
	now         func() time.Time
}

func NewAuthFailureLimiter() *AuthFailureLimiter {
	return &AuthFailureLimiter{
		failures:    make(map[string]*authFailure),
		lastCleanup: time.Now(),
		now:         time.Now,
	}
}

func (l *AuthFailureLimiter) cleanup(now time.Time) {
	if now.Sub(l.lastCleanup) < authCleanupPeriod {
		return
	}
	l.lastCleanup = now

	for ip, f := range l.failures {
		if now.Sub(f.windowStart) > authWindowDuration {
			delete(l.failures, ip)
		}
	}
}

func (l *AuthFailureLimiter) isAllowed(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.cleanup(now)

	f, ok := l.failures[ip]
	if !ok {
		return true
	}
	if now.Sub(f.windowStart) > authWindowDuration {
		delete(l.failures, ip)
		return true
	}
	return f.count < authMaxFailures
}

func (l *AuthFailureLimiter) recordFailure(ip string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	f, ok := l.failures[ip]
	if !ok || now.Sub(f.windowStart) > authWindowDuration {
		l.failures[ip] = &authFailure{count: 1, windowStart: now}
		return
	}
	f.count++
}

func (l *AuthFailureLimiter) reset(ip string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.failures, ip)
}
