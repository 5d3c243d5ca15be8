package fetch

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"
)

// Session is the in-process cache for one screening session. Values are
// decoded adapter responses; errors are memoized too, so a failed source is
// consulted once per session and every dependent check sees the same error.
//
// Concurrent misses on one key coalesce through singleflight: the second
// caller awaits the first's outbound call instead of issuing a duplicate.
// Unlike a cross-request cache, the caller context flows into the fetch
// function — every waiter belongs to the same request, so cancelling the
// request is supposed to cancel the call.
type Session struct {
	group  singleflight.Group
	second *Store // optional cross-session layer, nil when disabled

	mu     sync.Mutex
	values map[string]entry

	hits   atomic.Int64
	misses atomic.Int64
}

type entry struct {
	value any
	err   error
}

// NewSession creates an empty session cache. second may be nil.
func NewSession(second *Store) *Session {
	return &Session{
		second: second,
		values: make(map[string]entry),
	}
}

// Stats reports cache hits and misses, in that order. A coalesced waiter
// counts as a hit.
func (s *Session) Stats() (hits, misses int64) {
	return s.hits.Load(), s.misses.Load()
}

func (s *Session) lookup(key string) (entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.values[key]
	return e, ok
}

func (s *Session) store(key string, e entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = e
}

// Do returns the session's value for key, fetching it through fn on first
// use. T must round-trip JSON when a cross-session store is configured.
// A nil session disables caching and calls fn directly.
func Do[T any](ctx context.Context, s *Session, key string, fn func(context.Context) (T, error)) (T, error) {
	if s == nil {
		return fn(ctx)
	}
	if e, ok := s.lookup(key); ok {
		s.hits.Add(1)
		return castEntry[T](key, e)
	}

	executed := false
	v, err, _ := s.group.Do(key, func() (any, error) {
		executed = true
		// Re-check under the flight: a previous flight may have stored the
		// entry between the caller's lookup and this callback.
		if e, ok := s.lookup(key); ok {
			return e.value, e.err
		}

		if s.second != nil {
			var cached T
			if ok := s.second.get(ctx, key, &cached); ok {
				s.store(key, entry{value: cached})
				return cached, nil
			}
		}

		val, err := fn(ctx)
		s.store(key, entry{value: val, err: err})
		if err == nil && s.second != nil {
			s.second.put(ctx, key, val)
		}
		return val, err
	})
	if executed {
		s.misses.Add(1)
	} else {
		s.hits.Add(1)
	}
	return castEntry[T](key, entry{value: v, err: err})
}

func castEntry[T any](key string, e entry) (T, error) {
	var zero T
	if e.err != nil {
		return zero, e.err
	}
	v, ok := e.value.(T)
	if !ok {
		return zero, fmt.Errorf("fetch: cached value for %q is %T, want %T", key, e.value, zero)
	}
	return v, nil
}
