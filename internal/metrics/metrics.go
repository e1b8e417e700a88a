package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Snapshot is a point-in-time view of the load-path performance counters.
// Counters accumulate for the whole process lifetime and are never reset.
type Snapshot struct {
	CacheHits         int64   `json:"cache_hits"`
	CacheMisses       int64   `json:"cache_misses"`
	TotalLoads        int64   `json:"total_loads"`
	AverageLoadTimeMs float64 `json:"average_load_time_ms"`
}

// Collector holds all Prometheus metrics for the console, plus the plain
// counters backing Snapshot (Prometheus histograms don't expose a running
// mean directly, so those are kept by hand).
type Collector struct {
	Registry *prometheus.Registry

	cacheHits      prometheus.Counter
	cacheMisses    prometheus.Counter
	cacheSize      prometheus.Gauge
	sweepRemoved   prometheus.Counter
	loadDuration   prometheus.Histogram
	slowLoads      prometheus.Counter
	fetchErrors    *prometheus.CounterVec
	schedulerTicks *prometheus.CounterVec
	botActions     *prometheus.CounterVec

	mu          sync.Mutex
	hits        int64
	misses      int64
	totalLoadMs float64
}

// New creates a Collector registered on its own registry.
func New() *Collector {
	c := &Collector{
		Registry: prometheus.NewRegistry(),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "botconsole_cache_hits_total",
			Help: "Total user-detail lookups served from the cache",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "botconsole_cache_misses_total",
			Help: "Total user-detail lookups that went to the backend",
		}),
		cacheSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "botconsole_cache_entries",
			Help: "Number of entries currently in the user cache",
		}),
		sweepRemoved: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "botconsole_cache_sweep_removed_total",
			Help: "Total entries evicted by periodic cache sweeps",
		}),
		loadDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "botconsole_user_load_duration_seconds",
			Help:    "Duration of user-detail loads, cache hits included",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 15),
		}),
		slowLoads: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "botconsole_slow_loads_total",
			Help: "Loads that crossed the advisory slow-response threshold",
		}),
		fetchErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "botconsole_fetch_errors_total",
				Help: "Backend fetch failures by kind",
			},
			[]string{"kind"},
		),
		schedulerTicks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "botconsole_scheduler_ticks_total",
				Help: "Scheduler ticks fired per task",
			},
			[]string{"task"},
		),
		botActions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "botconsole_bot_actions_total",
				Help: "Administrative bot actions dispatched, by outcome",
			},
			[]string{"action", "outcome"},
		),
	}

	c.Registry.MustRegister(
		c.cacheHits,
		c.cacheMisses,
		c.cacheSize,
		c.sweepRemoved,
		c.loadDuration,
		c.slowLoads,
		c.fetchErrors,
		c.schedulerTicks,
		c.botActions,
	)

	return c
}

// CacheHit records a lookup served from the cache.
func (c *Collector) CacheHit(elapsed time.Duration) {
	c.cacheHits.Inc()
	c.loadDuration.Observe(elapsed.Seconds())

	c.mu.Lock()
	c.hits++
	c.totalLoadMs += float64(elapsed) / float64(time.Millisecond)
	c.mu.Unlock()
}

// CacheMiss records a lookup that had to go to the backend. The elapsed
// time covers the full round trip, failed fetches included.
func (c *Collector) CacheMiss(elapsed time.Duration) {
	c.cacheMisses.Inc()
	c.loadDuration.Observe(elapsed.Seconds())

	c.mu.Lock()
	c.misses++
	c.totalLoadMs += float64(elapsed) / float64(time.Millisecond)
	c.mu.Unlock()
}

// SlowLoad records a load that crossed the advisory threshold.
func (c *Collector) SlowLoad() {
	c.slowLoads.Inc()
}

// FetchError records a backend fetch failure by kind ("fetch", "invalid_payload", ...).
func (c *Collector) FetchError(kind string) {
	c.fetchErrors.WithLabelValues(kind).Inc()
}

// SweepCompleted records the result of a cache sweep.
func (c *Collector) SweepCompleted(removed, remaining int) {
	c.sweepRemoved.Add(float64(removed))
	c.cacheSize.Set(float64(remaining))
}

// SetCacheSize updates the cache size gauge.
func (c *Collector) SetCacheSize(n int) {
	c.cacheSize.Set(float64(n))
}

// TaskTick records one firing of a scheduled task.
func (c *Collector) TaskTick(task string) {
	c.schedulerTicks.WithLabelValues(task).Inc()
}

// BotAction records a dispatched bot action and whether it succeeded.
func (c *Collector) BotAction(action string, ok bool) {
	outcome := "error"
	if ok {
		outcome = "success"
	}
	c.botActions.WithLabelValues(action, outcome).Inc()
}

// GetSnapshot returns the accumulated load-path counters. The average is
// the arithmetic mean over every recorded load, hits and misses alike.
func (c *Collector) GetSnapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Snapshot{
		CacheHits:   c.hits,
		CacheMisses: c.misses,
		TotalLoads:  c.hits + c.misses,
	}
	if s.TotalLoads > 0 {
		s.AverageLoadTimeMs = c.totalLoadMs / float64(s.TotalLoads)
	}
	return s
}
