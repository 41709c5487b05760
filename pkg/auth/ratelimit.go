package auth

import (
	"context"
	"sync"
	"time"
)

// LoginLimiter decides whether another login attempt from key is allowed.
type LoginLimiter interface {
	Allow(ctx context.Context, key string) error
}

// InProcessLimiter is a fixed-window limiter that tracks attempts per key
// in memory.
type InProcessLimiter struct {
	attemptsPerMinute int
	now               func() time.Time

	mu       sync.Mutex
	counters map[string]*counter
}

type counter struct {
	count    int
	windowAt time.Time
}

// maxTrackedKeys bounds the counter map. Stale windows are pruned first;
// if none are stale the oldest window is evicted.
const maxTrackedKeys = 4096

// NewInProcessLimiter creates a limiter allowing attemptsPerMinute attempts
// per key. Zero or negative disables limiting.
func NewInProcessLimiter(attemptsPerMinute int) *InProcessLimiter {
	return &InProcessLimiter{
		attemptsPerMinute: attemptsPerMinute,
		now:               time.Now,
		counters:          make(map[string]*counter),
	}
}

// Allow returns ErrTooManyRequests once key exceeds its budget for the
// current window.
func (l *InProcessLimiter) Allow(_ context.Context, key string) error {
	if l.attemptsPerMinute <= 0 {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	c, ok := l.counters[key]
	if !ok || now.Sub(c.windowAt) >= time.Minute {
		if !ok && len(l.counters) >= maxTrackedKeys {
			l.prune(now)
			if len(l.counters) >= maxTrackedKeys {
				l.evictOldest()
			}
		}
		l.counters[key] = &counter{count: 1, windowAt: now}
		return nil
	}

	c.count++
	if c.count > l.attemptsPerMinute {
		return ErrTooManyRequests
	}

	return nil
}

func (l *InProcessLimiter) prune(now time.Time) {
	for key, c := range l.counters {
		if now.Sub(c.windowAt) >= time.Minute {
			delete(l.counters, key)
		}
	}
}

func (l *InProcessLimiter) evictOldest() {
	var (
		oldestKey string
		oldestAt  time.Time
		found     bool
	)
	for key, c := range l.counters {
		if !found || c.windowAt.Before(oldestAt) {
			oldestKey, oldestAt, found = key, c.windowAt, true
		}
	}
	if found {
		delete(l.counters, oldestKey)
	}
}
