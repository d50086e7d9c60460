package auth

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitConfig holds sign-in rate limiting configuration.
type RateLimitConfig struct {
	MaxAttempts int           // Attempts allowed in a burst (default: 5)
	Window      time.Duration // Time to earn back the full burst (default: 15m)
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// SignInLimiter is a token bucket per key (client IP and email). Failed and
// successful attempts both spend a token; a success resets the key.
type SignInLimiter struct {
	mu        sync.Mutex
	limiters  map[string]*limiterEntry
	limit     rate.Limit
	burst     int
	window    time.Duration
	lastSweep time.Time
	now       func() time.Time
}

func NewSignInLimiter(cfg RateLimitConfig) *SignInLimiter {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.Window <= 0 {
		cfg.Window = 15 * time.Minute
	}
	return &SignInLimiter{
		limiters: make(map[string]*limiterEntry),
		limit:    rate.Every(cfg.Window / time.Duration(cfg.MaxAttempts)),
		burst:    cfg.MaxAttempts,
		window:   cfg.Window,
		now:      time.Now,
	}
}

// Allow spends one attempt for key and reports whether it was available.
func (l *SignInLimiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.sweepLocked(now)

	entry, ok := l.limiters[key]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.limiters[key] = entry
	}
	entry.lastSeen = now
	return entry.limiter.AllowN(now, 1)
}

// Reset forgets key after a successful sign-in.
func (l *SignInLimiter) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.limiters, key)
}

// RetryAfter is how long a limited client should wait for one more attempt.
func (l *SignInLimiter) RetryAfter() time.Duration {
	return l.window / time.Duration(l.burst)
}

// sweepLocked drops entries idle for a full window; they are back at full burst anyway.
func (l *SignInLimiter) sweepLocked(now time.Time) {
	if now.Sub(l.lastSweep) < l.window {
		return
	}
	l.lastSweep = now
	for key, entry := range l.limiters {
		if now.Sub(entry.lastSeen) >= l.window {
			delete(l.limiters, key)
		}
	}
}

func signInKey(clientIP, email string) string {
	return clientIP + "|" + email
}
