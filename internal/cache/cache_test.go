package cache

import (
	"testing"
	"time"
)

func TestPutGetRoundTrip(t *testing.T) {
	s := New(5 * time.Minute)

	s.Put(42, "userA")

	v, ok := s.Get(42)
	if !ok {
		t.Fatal("expected entry to be present immediately after Put")
	}
	if v != "userA" {
		t.Errorf("expected userA, got %v", v)
	}
}

func TestGetMissing(t *testing.T) {
	s := New(5 * time.Minute)

	if _, ok := s.Get(99); ok {
		t.Error("expected miss for key that was never put")
	}
}

func TestExpiryBoundary(t *testing.T) {
	s := New(5 * time.Minute)
	now := time.Now()

	// Entry just inside the TTL window is still valid.
	s.putAt(42, "userA", now.Add(-(5*time.Minute - time.Second)))
	if _, ok := s.Get(42); !ok {
		t.Error("entry aged 4m59s should still be present")
	}

	// Just past the TTL it behaves as absent but is not evicted.
	s.putAt(42, "userA", now.Add(-(5*time.Minute + time.Second)))
	if _, ok := s.Get(42); ok {
		t.Error("entry aged 5m01s should behave as absent")
	}
	if s.Len() != 1 {
		t.Errorf("expired entry should remain until sweep, len=%d", s.Len())
	}
}

func TestSweepRemovesExpired(t *testing.T) {
	s := New(5 * time.Minute)
	now := time.Now()

	s.putAt(1, "old", now.Add(-6*time.Minute))
	s.putAt(2, "older", now.Add(-10*time.Minute))
	s.Put(3, "fresh")

	removed := s.Sweep(now)
	if removed != 2 {
		t.Errorf("expected 2 removed, got %d", removed)
	}
	if s.Len() != 1 {
		t.Errorf("expected 1 remaining entry, got %d", s.Len())
	}
	if _, ok := s.Get(3); !ok {
		t.Error("fresh entry should survive the sweep")
	}
}

func TestSweepIdempotent(t *testing.T) {
	s := New(5 * time.Minute)
	now := time.Now()

	s.putAt(1, "old", now.Add(-6*time.Minute))

	if removed := s.Sweep(now); removed != 1 {
		t.Fatalf("first sweep: expected 1 removed, got %d", removed)
	}
	if removed := s.Sweep(now); removed != 0 {
		t.Errorf("second sweep: expected 0 removed, got %d", removed)
	}
}

func TestSweepEmptyIsNoop(t *testing.T) {
	s := New(5 * time.Minute)

	if removed := s.Sweep(time.Now()); removed != 0 {
		t.Errorf("sweep of empty store removed %d entries", removed)
	}
}

func TestPutOverwrites(t *testing.T) {
	s := New(5 * time.Minute)

	s.Put(42, "first")
	s.Put(42, "second")

	v, _ := s.Get(42)
	if v != "second" {
		t.Errorf("expected second, got %v", v)
	}
	if s.Len() != 1 {
		t.Errorf("overwrite should not grow the store, len=%d", s.Len())
	}
}

func TestPutRefreshesExpiredEntry(t *testing.T) {
	s := New(5 * time.Minute)
	now := time.Now()

	s.putAt(42, "stale", now.Add(-6*time.Minute))
	s.Put(42, "refreshed")

	v, ok := s.Get(42)
	if !ok || v != "refreshed" {
		t.Errorf("expected refreshed entry, got %v (ok=%v)", v, ok)
	}
}

func TestInvalidate(t *testing.T) {
	s := New(5 * time.Minute)

	s.Put(1, "a")
	s.Invalidate(1)

	if _, ok := s.Get(1); ok {
		t.Error("expected entry to be gone after Invalidate")
	}

	// Invalidating an absent key is a no-op.
	s.Invalidate(2)
}

func TestClear(t *testing.T) {
	s := New(5 * time.Minute)

	s.Put(1, "a")
	s.Put(2, "b")
	s.Clear()

	if s.Len() != 0 {
		t.Errorf("expected empty store after Clear, len=%d", s.Len())
	}
}

func TestDefaultTTL(t *testing.T) {
	s := New(0)
	if s.TTL() != 5*time.Minute {
		t.Errorf("expected 5m default TTL, got %v", s.TTL())
	}
}
