package api

import (
	"sync"
	"time"
)

// Chat turns fan out to paid external APIs, so each session gets a sliding
// message window on top of the per-session turn lock.
const (
	chatRateLimit  = 20
	chatRateWindow = time.Minute
)

// RateLimiter caps how many turns a key may run inside a sliding window.
type RateLimiter struct {
	mu     sync.Mutex
	stamps map[string][]time.Time
	limit  int
	window time.Duration
}

// NewRateLimiter creates a limiter and starts its background eviction loop.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	l := &RateLimiter{
		stamps: make(map[string][]time.Time),
		limit:  limit,
		window: window,
	}
	go l.evict()
	return l
}

// Allow records an attempt for the key and reports whether it fits inside
// the window. Denied attempts are not recorded, so a throttled client
// recovers as soon as the window slides past its earlier turns.
func (l *RateLimiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-l.window)

	var recent []time.Time
	for _, t := range l.stamps[key] {
		if t.After(cutoff) {
			recent = append(recent, t)
		}
	}
	if len(recent) >= l.limit {
		l.stamps[key] = recent
		return false
	}
	l.stamps[key] = append(recent, now)
	return true
}

// evict drops keys whose every stamp has aged out, so abandoned sessions do
// not grow the map forever.
func (l *RateLimiter) evict() {
	ticker := time.NewTicker(l.window)
	defer ticker.Stop()
	for range ticker.C {
		l.mu.Lock()
		cutoff := time.Now().Add(-l.window)
		for key, stamps := range l.stamps {
			var fresh []time.Time
			for _, t := range stamps {
				if t.After(cutoff) {
					fresh = append(fresh, t)
				}
			}
			if len(fresh) == 0 {
				delete(l.stamps, key)
			} else {
				l.stamps[key] = fresh
			}
		}
		l.mu.Unlock()
	}
}
