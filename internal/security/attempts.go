package security

import (
	"sync"
	"time"
)

type attemptEntry struct {
	count int
	start time.Time
}

// AttemptCounter tracks failed-login counts per key (an IP address) over
// a rolling evaluation window. Entries whose window has lapsed count as
// zero and are rebuilt on the next increment. Ephemeral by design:
// restart clears it, the durable block rows carry the actual bans.
type AttemptCounter struct {
	mu      sync.Mutex
	entries map[string]attemptEntry
	window  time.Duration
}

func NewAttemptCounter(window time.Duration) *AttemptCounter {
	return &AttemptCounter{
		entries: make(map[string]attemptEntry),
		window:  window,
	}
}

// Increment records a failure for key and returns the count within the
// current window.
func (ac *AttemptCounter) Increment(key string) int {
	now := time.Now()

	ac.mu.Lock()
	defer ac.mu.Unlock()

	e, ok := ac.entries[key]
	if !ok || now.Sub(e.start) > ac.window {
		ac.entries[key] = attemptEntry{count: 1, start: now}
		return 1
	}

	e.count++
	ac.entries[key] = e
	return e.count
}

// Count returns the in-window failure count for key without mutating it.
func (ac *AttemptCounter) Count(key string) int {
	now := time.Now()

	ac.mu.Lock()
	defer ac.mu.Unlock()

	e, ok := ac.entries[key]
	if !ok || now.Sub(e.start) > ac.window {
		return 0
	}
	return e.count
}

// Reset clears the counter for key.
func (ac *AttemptCounter) Reset(key string) {
	ac.mu.Lock()
	defer ac.mu.Unlock()
	delete(ac.entries, key)
}

// Sweep drops entries whose window has lapsed, bounding map growth
// between restarts. Called opportunistically by the owning service.
func (ac *AttemptCounter) Sweep() {
	now := time.Now()

	ac.mu.Lock()
	defer ac.mu.Unlock()

	for k, e := range ac.entries {
		if now.Sub(e.start) > ac.window {
			delete(ac.entries, k)
		}
	}
}
