// Package ratelimit provides the per-user minimum-interval throttle that
// damps message spam ahead of the hybrid pipeline.
package ratelimit

import (
	"sync"
	"time"
)

const (
	// DefaultMinInterval is the floor between two admitted messages from the
	// same user.
	DefaultMinInterval = 2 * time.Second
	// staleAfter is how long an idle entry survives before the cleanup pass
	// purges it.
	staleAfter = time.Hour
	// cleanupInterval is how often stale entries are purged.
	cleanupInterval = 5 * time.Minute
)

// Limiter is a per-user minimum-interval rate limiter. State is a bounded
// map purged opportunistically by a background goroutine.
type Limiter struct {
	mu          sync.Mutex
	lastAdmit   map[int64]time.Time
	minInterval time.Duration
	nowFunc     func() time.Time
	stopCh      chan struct{}
}

// New creates a Limiter and starts its background cleanup goroutine.
// A non-positive interval selects DefaultMinInterval.
func New(minInterval time.Duration) *Limiter {
	if minInterval <= 0 {
		minInterval = DefaultMinInterval
	}
	l := &Limiter{
		lastAdmit:   make(map[int64]time.Time),
		minInterval: minInterval,
		nowFunc:     time.Now,
		stopCh:      make(chan struct{}),
	}
	go l.cleanup()
	return l
}

// Stop halts the background cleanup goroutine.
func (l *Limiter) Stop() {
	close(l.stopCh)
}

// Admit reports whether a message from the user arriving at now may enter
// the pipeline, and records the admission when it may. Rejections are
// silently dropped by the caller and never feed circuit breakers.
func (l *Limiter) Admit(userKey int64, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if last, ok := l.lastAdmit[userKey]; ok && now.Sub(last) < l.minInterval {
		return false
	}
	l.lastAdmit[userKey] = now
	return true
}

// Len returns the number of tracked users.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.lastAdmit)
}

func (l *Limiter) cleanup() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-l.stopCh:
			return
		case <-ticker.C:
			cutoff := l.nowFunc().Add(-staleAfter)
			l.mu.Lock()
			for key, last := range l.lastAdmit {
				if last.Before(cutoff) {
					delete(l.lastAdmit, key)
				}
			}
			l.mu.Unlock()
		}
	}
}
