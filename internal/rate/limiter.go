package rate

import (
	"strings"
	"sync"
	"time"
)

// Limiter admits at most limit events per key within each fixed window and
// reports how long until the window resets.
type Limiter interface {
	Allow(key string, limit int, window time.Duration) (bool, time.Duration)
}

type MemoryLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	now     func() time.Time
}

type bucket struct {
	count   int
	resetAt time.Time
	window  time.Duration
}

func NewMemory() *MemoryLimiter {
	return &MemoryLimiter{buckets: make(map[string]*bucket), now: time.Now}
}

// Allow counts one event for key. A limit of zero or less disables the check.
func (m *MemoryLimiter) Allow(key string, limit int, window time.Duration) (bool, time.Duration) {
	if limit <= 0 {
		return true, 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	b, ok := m.buckets[key]
	if !ok || !now.Before(b.resetAt) || b.window != window {
		b = &bucket{resetAt: now.Add(window), window: window}
		m.buckets[key] = b
	}

	if b.count >= limit {
		return false, b.resetAt.Sub(now)
	}
	b.count++
	return true, b.resetAt.Sub(now)
}

// Sweep drops buckets whose window has passed and returns how many went.
func (m *MemoryLimiter) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	n := 0
	for key, b := range m.buckets {
		if !now.Before(b.resetAt) {
			delete(m.buckets, key)
			n++
		}
	}
	return n
}

// Key joins an action name and the identifying parts of a caller,
// e.g. Key("vote", "user", id).
func Key(action string, parts ...string) string {
	return action + ":" + strings.Join(parts, ":")
}
