package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestTaskFiresOnInterval(t *testing.T) {
	var fired int32
	s := New()
	s.Register(&Task{
		Name:     "stats",
		Interval: 20 * time.Millisecond,
		Action:   func(ctx context.Context) { atomic.AddInt32(&fired, 1) },
	})

	s.Start()
	time.Sleep(90 * time.Millisecond)
	s.Stop()

	// Immediate fire plus ~4 interval ticks.
	n := atomic.LoadInt32(&fired)
	if n < 3 {
		t.Errorf("expected at least 3 firings, got %d", n)
	}
	if got := s.TickCount("stats"); got != int64(n) {
		t.Errorf("TickCount %d does not match firings %d", got, n)
	}
}

func TestDerivedFiresEveryThirdTick(t *testing.T) {
	var ticks, derived int32
	s := New()
	s.Register(&Task{
		Name:         "realtime",
		Interval:     10 * time.Millisecond,
		Action:       func(ctx context.Context) { atomic.AddInt32(&ticks, 1) },
		DerivedEvery: 3,
		DerivedDelay: time.Millisecond,
		Derived:      func(ctx context.Context) { atomic.AddInt32(&derived, 1) },
	})

	s.Start()

	// Wait for at least 9 ticks so three derived firings are due.
	deadline := time.Now().Add(time.Second)
	for atomic.LoadInt32(&ticks) < 9 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	time.Sleep(20 * time.Millisecond) // let trailing derived timers land
	s.Stop()

	nt := atomic.LoadInt32(&ticks)
	nd := atomic.LoadInt32(&derived)

	want := nt / 3
	// Stop may race the last derived timer; allow one firing of slack.
	if nd < want-1 || nd > want+1 {
		t.Errorf("after %d ticks expected about %d derived firings, got %d", nt, want, nd)
	}
	if nd == 0 {
		t.Error("derived action never fired")
	}
}

func TestDerivedNotFiredBeforeThirdTick(t *testing.T) {
	var derived int32
	s := New()
	s.Register(&Task{
		Name:         "realtime",
		Interval:     time.Hour, // only the immediate tick fires
		Action:       func(ctx context.Context) {},
		DerivedEvery: 3,
		Derived:      func(ctx context.Context) { atomic.AddInt32(&derived, 1) },
	})

	s.Start()
	time.Sleep(30 * time.Millisecond)
	s.Stop()

	if atomic.LoadInt32(&derived) != 0 {
		t.Error("derived fired on tick 1")
	}
}

func TestDisabledTaskNeverRuns(t *testing.T) {
	var fired int32
	s := New()
	s.Register(&Task{
		Name:     "gated",
		Interval: 5 * time.Millisecond,
		Action:   func(ctx context.Context) { atomic.AddInt32(&fired, 1) },
		Disabled: true,
	})

	s.Start()
	time.Sleep(30 * time.Millisecond)
	s.Stop()

	if atomic.LoadInt32(&fired) != 0 {
		t.Error("disabled task fired")
	}
}

func TestOverlappingActionsAllowed(t *testing.T) {
	var inFlight, maxInFlight int32
	s := New()
	s.Register(&Task{
		Name:     "slowpoll",
		Interval: 10 * time.Millisecond,
		Action: func(ctx context.Context) {
			n := atomic.AddInt32(&inFlight, 1)
			for {
				old := atomic.LoadInt32(&maxInFlight)
				if n <= old || atomic.CompareAndSwapInt32(&maxInFlight, old, n) {
					break
				}
			}
			time.Sleep(50 * time.Millisecond) // outlives the interval
			atomic.AddInt32(&inFlight, -1)
		},
	})

	s.Start()
	time.Sleep(80 * time.Millisecond)
	s.Stop()

	if atomic.LoadInt32(&maxInFlight) < 2 {
		t.Error("expected overlapping action instances; ticks must not wait for actions")
	}
}

func TestPanickingActionDoesNotStopTask(t *testing.T) {
	var fired int32
	s := New()
	s.Register(&Task{
		Name:     "flaky",
		Interval: 10 * time.Millisecond,
		Action: func(ctx context.Context) {
			atomic.AddInt32(&fired, 1)
			panic("tick failure")
		},
	})

	s.Start()
	time.Sleep(55 * time.Millisecond)
	s.Stop()

	if atomic.LoadInt32(&fired) < 3 {
		t.Errorf("task should keep ticking after panics, fired %d times", atomic.LoadInt32(&fired))
	}
}

func TestStopIsIdempotentAndHaltsTicks(t *testing.T) {
	var fired int32
	s := New()
	s.Register(&Task{
		Name:     "stats",
		Interval: 10 * time.Millisecond,
		Action:   func(ctx context.Context) { atomic.AddInt32(&fired, 1) },
	})

	s.Start()
	time.Sleep(25 * time.Millisecond)
	s.Stop()
	s.Stop()

	n := atomic.LoadInt32(&fired)
	time.Sleep(40 * time.Millisecond)
	if atomic.LoadInt32(&fired) != n {
		t.Error("task fired after Stop")
	}
}

func TestStartTwiceDoesNotDuplicate(t *testing.T) {
	var fired int32
	s := New()
	s.Register(&Task{
		Name:     "stats",
		Interval: time.Hour,
		Action:   func(ctx context.Context) { atomic.AddInt32(&fired, 1) },
	})

	s.Start()
	s.Start()
	time.Sleep(20 * time.Millisecond)
	s.Stop()

	if atomic.LoadInt32(&fired) != 1 {
		t.Errorf("expected a single immediate firing, got %d", atomic.LoadInt32(&fired))
	}
}

func TestOnTickObserver(t *testing.T) {
	var observed int32
	s := New()
	s.SetOnTick(func(task string) {
		if task == "stats" {
			atomic.AddInt32(&observed, 1)
		}
	})
	s.Register(&Task{
		Name:     "stats",
		Interval: time.Hour,
		Action:   func(ctx context.Context) {},
	})

	s.Start()
	time.Sleep(10 * time.Millisecond)
	s.Stop()

	if atomic.LoadInt32(&observed) != 1 {
		t.Errorf("expected 1 observed tick, got %d", atomic.LoadInt32(&observed))
	}
}
