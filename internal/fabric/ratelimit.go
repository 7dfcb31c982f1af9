package fabric

import (
	"sync"
	"time"
)

// PairLimiter enforces a maximum message rate per (sender, receiver) pair
// within a sliding window. Messages beyond the limit are rejected rather
// than queued, bounding the blast radius of an agent flooding a peer. The
// window slides over recorded send times, so a burst straddling a window
// boundary cannot double the effective rate.
type PairLimiter struct {
	mu     sync.Mutex
	rate   int
	window time.Duration
	now    func() time.Time
	sends  map[string][]time.Time
}

// NewPairLimiter creates a limiter allowing rate messages per window for
// each distinct (sender, receiver) pair.
func NewPairLimiter(rate int, window time.Duration) *PairLimiter {
	return &PairLimiter{
		rate:   rate,
		window: window,
		now:    time.Now,
		sends:  make(map[string][]time.Time),
	}
}

// Allow returns true if one more message from sender to receiver fits
// within the pair's window ending now. Sends older than the window are
// pruned; a rejected message is not recorded.
func (l *PairLimiter) Allow(sender, receiver string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := sender + "\x00" + receiver
	now := l.now()
	cutoff := now.Add(-l.window)

	kept := l.sends[key][:0]
	for _, ts := range l.sends[key] {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}

	if len(kept) >= l.rate {
		l.sends[key] = kept
		return false
	}
	l.sends[key] = append(kept, now)
	return true
}
