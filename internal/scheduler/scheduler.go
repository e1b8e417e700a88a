package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Task is one periodic job. Ticks fire the action in its own goroutine and
// never wait for it, so an action outliving the interval overlaps the next
// tick's instance. That matches the original fire-and-forget behavior and
// is a documented hazard, not prevented here.
type Task struct {
	Name     string
	Interval time.Duration
	Action   func(ctx context.Context)

	// When DerivedEvery is N > 0, every Nth tick additionally schedules
	// Derived, DerivedDelay after the tick. This gives a lower-frequency
	// derived cadence (Interval x N) without a second timer.
	DerivedEvery int
	DerivedDelay time.Duration
	Derived      func(ctx context.Context)

	// Disabled tasks are registered but skipped at Start. Gating for feeds
	// that only matter on certain console views.
	Disabled bool

	mu    sync.Mutex
	ticks int64
}

// TickFunc is called after every tick of every running task.
type TickFunc func(task string)

// Scheduler drives a set of independently timed periodic tasks. Tasks run
// forever once started and are torn down as a unit by Stop.
type Scheduler struct {
	mu     sync.Mutex
	tasks  []*Task
	onTick TickFunc

	started  bool
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New creates an empty Scheduler.
func New() *Scheduler {
	return &Scheduler{stopCh: make(chan struct{})}
}

// SetOnTick wires an observer called once per fired tick (metrics hook).
func (s *Scheduler) SetOnTick(fn TickFunc) {
	s.onTick = fn
}

// Register adds a task. Must be called before Start.
func (s *Scheduler) Register(t *Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = append(s.tasks, t)
}

// Start launches one ticker loop per enabled task. Each task fires once
// immediately, then on its interval.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return
	}
	s.started = true

	for _, t := range s.tasks {
		if t.Disabled {
			slog.Info("scheduled task disabled", "task", t.Name)
			continue
		}
		s.wg.Add(1)
		go s.run(t)
		slog.Info("scheduled task started", "task", t.Name, "interval", t.Interval)
	}
}

// Stop cancels every running task. Safe to call multiple times. In-flight
// actions are not interrupted; only future ticks are cancelled.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
	})
	s.wg.Wait()
	slog.Info("scheduler stopped")
}

// TickCount returns how many ticks a task has fired.
func (s *Scheduler) TickCount(name string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tasks {
		if t.Name == name {
			t.mu.Lock()
			defer t.mu.Unlock()
			return t.ticks
		}
	}
	return 0
}

func (s *Scheduler) run(t *Task) {
	defer s.wg.Done()

	s.fire(t)

	ticker := time.NewTicker(t.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.fire(t)
		case <-s.stopCh:
			return
		}
	}
}

// fire launches one tick of t without waiting for it to finish, so the
// next tick stays on schedule regardless of how long the action takes.
func (s *Scheduler) fire(t *Task) {
	t.mu.Lock()
	t.ticks++
	n := t.ticks
	t.mu.Unlock()

	if s.onTick != nil {
		s.onTick(t.Name)
	}

	go func() {
		defer recoverTick(t.Name)
		t.Action(context.Background())
	}()

	if t.DerivedEvery > 0 && t.Derived != nil && n%int64(t.DerivedEvery) == 0 {
		time.AfterFunc(t.DerivedDelay, func() {
			defer recoverTick(t.Name + ":derived")
			select {
			case <-s.stopCh:
				return
			default:
			}
			t.Derived(context.Background())
		})
	}
}

// recoverTick keeps a panicking action from killing the process; a bad
// tick is logged and the task keeps its schedule.
func recoverTick(task string) {
	if r := recover(); r != nil {
		slog.Error("scheduled task panicked", "task", task, "panic", r)
	}
}
