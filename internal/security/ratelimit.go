// Package security holds the process-local brute-force primitives: the
// fixed-window rate limiter and the windowed failure counter used by the
// IP block service.
package security

import (
	"sync"
	"time"
)

// DefaultMaxKeys caps how many distinct keys the limiter tracks before
// the whole map is dropped. Sacrifices accuracy for bounded memory when
// an attacker churns through keys; a documented approximation, not a bug.
const DefaultMaxKeys = 500

type window struct {
	count int
	start time.Time
}

// RateLimiter is a fixed-window per-key request counter. It is
// process-local and resets on restart. Construct one per process and
// inject it; there is no package-level instance.
type RateLimiter struct {
	mu       sync.Mutex
	windows  map[string]window
	interval time.Duration
	maxKeys  int
}

// NewRateLimiter returns a limiter counting requests in fixed windows of
// the given interval. maxKeys <= 0 falls back to DefaultMaxKeys.
func NewRateLimiter(interval time.Duration, maxKeys int) *RateLimiter {
	if maxKeys <= 0 {
		maxKeys = DefaultMaxKeys
	}
	return &RateLimiter{
		windows:  make(map[string]window),
		interval: interval,
		maxKeys:  maxKeys,
	}
}

// Allow reports whether the request identified by key is within limit
// for the current window. A new or lapsed window resets the count to 1.
// A denied call does not mutate the window.
func (rl *RateLimiter) Allow(limit int, key string) bool {
	now := time.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	if len(rl.windows) > rl.maxKeys {
		rl.windows = make(map[string]window)
	}

	w, ok := rl.windows[key]
	if !ok || now.Sub(w.start) > rl.interval {
		rl.windows[key] = window{count: 1, start: now}
		return true
	}

	if w.count < limit {
		w.count++
		rl.windows[key] = w
		return true
	}

	return false
}

// Reset forgets the window for a key. Used by tests and by callers that
// want a clean slate after a successful operation.
func (rl *RateLimiter) Reset(key string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.windows, key)
}

// Len returns the number of tracked keys.
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.windows)
}
