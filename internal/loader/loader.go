package loader

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/botconsole/botconsole/internal/backend"
	"github.com/botconsole/botconsole/internal/cache"
	"github.com/botconsole/botconsole/internal/metrics"
)

// UserFetcher is the backend side of the read-through path.
type UserFetcher interface {
	GetUser(ctx context.Context, id int64) (*backend.User, error)
}

// Result describes how a user load was served.
type Result struct {
	User      *backend.User
	FromCache bool
	// Slow means the fetch crossed the advisory threshold before resolving.
	// Advisory only: the fetch was never cancelled.
	Slow    bool
	Elapsed time.Duration
}

// Loader is the read-through load path for user-detail records: cache
// first, then exactly one backend fetch on a miss, populating the cache
// on success. Errors never write to the cache.
type Loader struct {
	cache         *cache.Store
	fetcher       UserFetcher
	metrics       *metrics.Collector
	slowThreshold time.Duration
	onSlow        func(id int64, elapsed time.Duration)
}

// New creates a Loader. A slowThreshold <= 0 falls back to 5 seconds.
func New(c *cache.Store, f UserFetcher, m *metrics.Collector, slowThreshold time.Duration) *Loader {
	if slowThreshold <= 0 {
		slowThreshold = 5 * time.Second
	}
	return &Loader{
		cache:         c,
		fetcher:       f,
		metrics:       m,
		slowThreshold: slowThreshold,
	}
}

// SetOnSlow wires a hook fired the moment a fetch crosses the advisory
// threshold while still pending.
func (l *Loader) SetOnSlow(fn func(id int64, elapsed time.Duration)) {
	l.onSlow = fn
}

// Load returns the user-detail record for id, consulting the cache first.
// A cache write from a slow fetch overwrites whatever is there when it
// lands: last-to-complete wins, not last-issued.
func (l *Loader) Load(ctx context.Context, id int64) (Result, error) {
	start := time.Now()

	if v, ok := l.cache.Get(id); ok {
		elapsed := time.Since(start)
		l.metrics.CacheHit(elapsed)
		return Result{User: v.(*backend.User), FromCache: true, Elapsed: elapsed}, nil
	}

	// Advisory timer: flags the load as slow without touching the request.
	timer := time.AfterFunc(l.slowThreshold, func() {
		l.metrics.SlowLoad()
		slog.Warn("user load still pending past slow threshold",
			"user_id", id, "threshold", l.slowThreshold)
		if l.onSlow != nil {
			l.onSlow(id, l.slowThreshold)
		}
	})
	defer timer.Stop()

	u, err := l.fetcher.GetUser(ctx, id)
	elapsed := time.Since(start)
	l.metrics.CacheMiss(elapsed)

	if err != nil {
		l.metrics.FetchError(errorKind(err))
		return Result{Elapsed: elapsed, Slow: elapsed >= l.slowThreshold}, err
	}

	// A late success still populates the cache, slow or not.
	l.cache.Put(id, u)
	l.metrics.SetCacheSize(l.cache.Len())

	return Result{User: u, Elapsed: elapsed, Slow: elapsed >= l.slowThreshold}, nil
}

// Invalidate drops the cached record for id, if any.
func (l *Loader) Invalidate(id int64) {
	l.cache.Invalidate(id)
	l.metrics.SetCacheSize(l.cache.Len())
}

// ClearCache drops every cached record.
func (l *Loader) ClearCache() {
	l.cache.Clear()
	l.metrics.SetCacheSize(0)
}

// SweepCache evicts expired records and reports the result to metrics.
func (l *Loader) SweepCache(now time.Time) int {
	removed := l.cache.Sweep(now)
	l.metrics.SweepCompleted(removed, l.cache.Len())
	if removed > 0 {
		slog.Info("cache sweep completed", "removed", removed, "remaining", l.cache.Len())
	}
	return removed
}

// CacheLen returns the current cache entry count, expired entries included.
func (l *Loader) CacheLen() int {
	return l.cache.Len()
}

// MetricsSnapshot returns the accumulated load-path counters.
func (l *Loader) MetricsSnapshot() metrics.Snapshot {
	return l.metrics.GetSnapshot()
}

func errorKind(err error) string {
	var ipe *backend.InvalidPayloadError
	if errors.As(err, &ipe) {
		return "invalid_payload"
	}
	return "fetch"
}
