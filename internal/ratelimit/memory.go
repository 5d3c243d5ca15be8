package ratelimit

import (
	"context"
	"sync"
	"time"
)

// entry is the bucket state for one rate-limit key: the current token
// level and the instant it was last refilled.
type entry struct {
	level   float64
	updated time.Time
}

// MemoryLimiter is an in-process token-bucket Limiter. The server shares
// one instance across endpoint classes but never one bucket: the
// middleware prefixes every key with its class ("screen:", "write:",
// "read:" + client IP), so a screening burst drains only the screening
// budget for that client.
//
// Buckets refill lazily on access. A sweeper goroutine drops buckets
// idle past idleAfter so one-off clients do not accumulate.
type MemoryLimiter struct {
	perSecond float64
	capacity  float64
	idleAfter time.Duration

	mu      sync.Mutex
	entries map[string]*entry

	closeOnce sync.Once
	closed    chan struct{}
}

const (
	defaultIdleWindow = 10 * time.Minute
	sweepInterval     = time.Minute
)

// NewMemoryLimiter builds a limiter allowing rps sustained requests per
// second per key, with burst tokens of headroom. Call Close to stop the
// sweeper.
func NewMemoryLimiter(rps float64, burst int) *MemoryLimiter {
	m := &MemoryLimiter{
		perSecond: rps,
		capacity:  float64(burst),
		idleAfter: defaultIdleWindow,
		entries:   make(map[string]*entry),
		closed:    make(chan struct{}),
	}
	go m.sweep()
	return m
}

// Allow takes one token for key and reports whether the request may
// proceed. It never fails; the error return matches Limiter so a shared
// backend can stand in.
func (m *MemoryLimiter) Allow(_ context.Context, key string) (bool, error) {
	now := time.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		e = &entry{level: m.capacity, updated: now}
		m.entries[key] = e
	} else {
		e.level = min(m.capacity, e.level+now.Sub(e.updated).Seconds()*m.perSecond)
		e.updated = now
	}

	if e.level < 1 {
		return false, nil
	}
	e.level--
	return true, nil
}

// Close stops the sweeper. Safe to call more than once.
func (m *MemoryLimiter) Close() error {
	m.closeOnce.Do(func() { close(m.closed) })
	return nil
}

func (m *MemoryLimiter) sweep() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.closed:
			return
		case <-ticker.C:
			m.dropIdle(time.Now())
		}
	}
}

// dropIdle removes buckets whose last access predates the idle window.
func (m *MemoryLimiter) dropIdle(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for key, e := range m.entries {
		if now.Sub(e.updated) > m.idleAfter {
			delete(m.entries, key)
		}
	}
}
