package alert

import (
	"context"
	"sync"
	"time"
)

const (
	maxAlertsPerMinute = 5
	counterResetAfter  = time.Hour
)

// Decision is the outcome of a rate-limit check. RetryAfter is only
// meaningful when Allowed is false.
type Decision struct {
	Allowed    bool
	RetryAfter int
}

// Limiter bounds alert emission per (client IP, metric) key. Both
// backends apply the same decision function so behavior is identical
// whether the counters live in process memory or in Redis.
type Limiter interface {
	Allow(ctx context.Context, key string) Decision
	Close() error
}

// decide applies the historical rate-limit rule: the counter resets
// when more than an hour has passed since the last alert, but the cap
// only applies inside a one-minute window, and the retry hint mixes the
// two scales. The arithmetic is intentionally preserved as observed in
// production; do not "fix" it without changing the documented contract.
func decide(count int, last, now time.Time) (Decision, int) {
	if !last.IsZero() && now.Sub(last) > counterResetAfter {
		count = 0
	}
	minutesSince := now.Sub(last).Minutes()
	if last.IsZero() {
		minutesSince = counterResetAfter.Minutes() + 1
	}
	if minutesSince < 1 && count >= maxAlertsPerMinute {
		return Decision{Allowed: false, RetryAfter: 60 - int(minutesSince)}, count
	}
	return Decision{Allowed: true}, count
}

type limiterEntry struct {
	count int
	last  time.Time
}

// MemoryLimiter keeps counters in a mutex-guarded map. Entries are
// never removed; the sweep interval bounds growth instead.
type MemoryLimiter struct {
	mu      sync.Mutex
	entries map[string]limiterEntry
	now     func() time.Time
}

// NewMemoryLimiter creates the in-process limiter backend.
func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{
		entries: make(map[string]limiterEntry),
		now:     time.Now,
	}
}

// Allow checks and, when permitted, records one alert for key. The
// read-modify-write runs under the lock so concurrent requests for the
// same key cannot slip past the cap.
func (l *MemoryLimiter) Allow(_ context.Context, key string) Decision {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	e := l.entries[key]
	d, count := decide(e.count, e.last, now)
	if !d.Allowed {
		// Rejected alerts do not touch the counter.
		return d
	}
	l.entries[key] = limiterEntry{count: count + 1, last: now}
	return d
}

// Sweep drops entries whose counters would reset anyway. Called from a
// background ticker to keep the key space bounded.
func (l *MemoryLimiter) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	cutoff := l.now().Add(-counterResetAfter)
	removed := 0
	for key, e := range l.entries {
		if e.last.Before(cutoff) {
			delete(l.entries, key)
			removed++
		}
	}
	return removed
}

// Close satisfies Limiter; the memory backend holds no resources.
func (l *MemoryLimiter) Close() error { return nil }
