package auth

import (
	"sync"
	"time"
)

type window struct {
	count      int
	resetAfter time.Time
}

// RateLimiter is a fixed-window request limiter keyed by API key ID.
type RateLimiter struct {
	mu      sync.Mutex
	perKey  map[string]*window
	limit   int
	period  time.Duration
	nowFunc func() time.Time
}

func NewRateLimiter(limitPerMinute int) *RateLimiter {
	return &RateLimiter{
		perKey:  make(map[string]*window),
		limit:   limitPerMinute,
		period:  time.Minute,
		nowFunc: time.Now,
	}
}

// Allow reports whether the key may make another request in the current
// window. When denied, the returned duration is the time until the window
// resets.
func (rl *RateLimiter) Allow(keyID string) (bool, time.Duration) {
	if rl.limit <= 0 {
		return true, 0
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.nowFunc()
	w, ok := rl.perKey[keyID]
	if !ok || now.After(w.resetAfter) {
		rl.perKey[keyID] = &window{count: 1, resetAfter: now.Add(rl.period)}
		return true, 0
	}
	if w.count >= rl.limit {
		return false, w.resetAfter.Sub(now)
	}
	w.count++
	return true, 0
}
