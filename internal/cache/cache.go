package cache

import (
	"sync"
	"time"
)

// Store is an in-memory cache of user-detail records with a fixed TTL.
// Entries past their TTL behave as absent on Get but are only removed by
// Sweep or explicit invalidation, so reads never pay cleanup cost.
type Store struct {
	mu      sync.RWMutex
	entries map[int64]entry
	ttl     time.Duration
}

type entry struct {
	value    any
	storedAt time.Time
}

// New creates a Store. A ttl <= 0 falls back to 5 minutes.
func New(ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Store{
		entries: make(map[int64]entry),
		ttl:     ttl,
	}
}

// TTL returns the configured time-to-live.
func (s *Store) TTL() time.Duration {
	return s.ttl
}

// Get returns the value for id if present and not expired. An expired entry
// is reported as a miss but left in place for the next Sweep.
func (s *Store) Get(id int64) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[id]
	if !ok {
		return nil, false
	}
	if time.Since(e.storedAt) >= s.ttl {
		return nil, false
	}
	return e.value, true
}

// Put stores value under id, unconditionally overwriting any prior entry.
// There is no recency guard: a slow fetch completing after a newer one
// wins (last-to-complete, not last-issued).
func (s *Store) Put(id int64, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[id] = entry{value: value, storedAt: time.Now()}
}

// Invalidate removes the entry for id if present.
func (s *Store) Invalidate(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, id)
}

// Clear removes all entries.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[int64]entry)
}

// Sweep removes every entry whose age at now is >= TTL and returns the
// number removed. Safe to call at any time; a sweep with nothing expired
// is a no-op.
func (s *Store) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, e := range s.entries {
		if now.Sub(e.storedAt) >= s.ttl {
			delete(s.entries, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of stored entries, expired ones included.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// putAt is a test hook for backdating entries.
func (s *Store) putAt(id int64, value any, storedAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[id] = entry{value: value, storedAt: storedAt}
}
