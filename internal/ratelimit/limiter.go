// Package ratelimit implements the fixed-window login attempt limiter.
package ratelimit

import (
	"sync"
	"time"
)

// Limiter tracks recent attempts per key (client IP). The attempt map is
// bounded: once it grows past maxEntries a global sweep drops stale keys.
type Limiter struct {
	mu         sync.Mutex
	limit      int
	window     time.Duration
	maxEntries int
	attempts   map[string][]time.Time
	now        func() time.Time
}

func New(limit int, window time.Duration) *Limiter {
	return &Limiter{
		limit:      limit,
		window:     window,
		maxEntries: 1000,
		attempts:   make(map[string][]time.Time),
		now:        time.Now,
	}
}

// Allow reports whether another attempt is permitted for key right now.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.prune(key)) < l.limit
}

// Record registers a failed attempt for key.
func (l *Limiter) Record(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.attempts[key] = append(l.prune(key), l.now())
	if len(l.attempts) > l.maxEntries {
		l.sweep()
	}
}

// Reset clears attempts for key, e.g. after a successful login.
func (l *Limiter) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.attempts, key)
}

// prune drops attempts outside the window for one key. Caller holds the lock.
func (l *Limiter) prune(key string) []time.Time {
	cutoff := l.now().Add(-l.window)
	kept := l.attempts[key][:0]
	for _, at := range l.attempts[key] {
		if at.After(cutoff) {
			kept = append(kept, at)
		}
	}
	if len(kept) == 0 {
		delete(l.attempts, key)
		return nil
	}
	l.attempts[key] = kept
	return kept
}

// sweep prunes every key. Caller holds the lock.
func (l *Limiter) sweep() {
	for key := range l.attempts {
		l.prune(key)
	}
}
