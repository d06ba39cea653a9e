package chat

import (
	"sync"
	"time"
)

// RateLimiter applies sliding-window admission control per client
// identifier. Each raw inbound frame costs one admission regardless of its
// type. Identifiers that go idle keep their (empty) history entry; bounding
// the map is a deployment concern, not a protocol one.
type RateLimiter struct {
	mu      sync.Mutex
	window  time.Duration
	max     int
	history map[string][]time.Time
	now     func() time.Time
}

func NewRateLimiter(window time.Duration, max int) *RateLimiter {
	if max <= 0 {
		max = 1
	}
	if window <= 0 {
		window = time.Second
	}

	return &RateLimiter{
		window:  window,
		max:     max,
		history: make(map[string][]time.Time),
		now:     time.Now,
	}
}

// Admit records the current call for the identifier and reports whether it
// is within the window's cap. Rejected calls are not recorded.
func (rl *RateLimiter) Admit(identifier string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	cutoff := now.Add(-rl.window)

	recent := rl.history[identifier][:0]
	for _, t := range rl.history[identifier] {
		if t.After(cutoff) {
			recent = append(recent, t)
		}
	}

	if len(recent) >= rl.max {
		rl.history[identifier] = recent
		return false
	}

	rl.history[identifier] = append(recent, now)
	return true
}
