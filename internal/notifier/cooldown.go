package notifier

import (
	"sync"
	"time"
)

// Limiter decides whether a user's command invocation may proceed.
// The dispatcher only consumes the decision; policy lives here.
type Limiter interface {
	Allow(userID, command string) bool
}

// AllowAll never denies. Used when no cooldown is configured.
type AllowAll struct{}

func (AllowAll) Allow(string, string) bool { return true }

// CooldownLimiter allows one invocation per user per command per window.
type CooldownLimiter struct {
	mu     sync.Mutex
	window time.Duration
	last   map[string]time.Time
	now    func() time.Time
}

// NewCooldownLimiter creates a limiter with the given window.
func NewCooldownLimiter(window time.Duration) *CooldownLimiter {
	return &CooldownLimiter{
		window: window,
		last:   make(map[string]time.Time),
		now:    time.Now,
	}
}

// Allow reports whether the user may run the command now, and if so
// starts a new window.
func (c *CooldownLimiter) Allow(userID, command string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	// Expired windows are dead weight; sweep them so the map stays
	// bounded by the number of currently-cooling buckets.
	for k, t := range c.last {
		if now.Sub(t) >= c.window {
			delete(c.last, k)
		}
	}

	key := userID + "|" + command
	if last, ok := c.last[key]; ok && now.Sub(last) < c.window {
		return false
	}
	c.last[key] = now
	return true
}
