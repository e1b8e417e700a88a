package stats

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Feed names for the three polled documents.
const (
	FeedDashboard = "dashboard"
	FeedRealtime  = "realtime"
	FeedBotInfo   = "bot_info"
)

// Fetcher is the backend side of the stats feeds.
type Fetcher interface {
	GetStats(ctx context.Context) (json.RawMessage, error)
	GetRealtimeStats(ctx context.Context) (json.RawMessage, error)
	GetBotInfo(ctx context.Context) (json.RawMessage, error)
}

// Snapshot is the latest known state of one feed. A failed refresh leaves
// Data and FetchedAt from the previous success intact and only records
// the error.
type Snapshot struct {
	Feed      string          `json:"feed"`
	Data      json.RawMessage `json:"data,omitempty"`
	FetchedAt time.Time       `json:"fetched_at,omitempty"`
	LastError string          `json:"last_error,omitempty"`
}

// Poller holds the latest stats documents fetched from the backend.
// Concurrent refreshes of the same feed (a scheduler tick racing a manual
// dashboard refresh) are collapsed into one backend request.
type Poller struct {
	fetcher Fetcher

	mu    sync.RWMutex
	feeds map[string]*Snapshot

	sf singleflight.Group
}

// New creates a Poller.
func New(f Fetcher) *Poller {
	return &Poller{
		fetcher: f,
		feeds: map[string]*Snapshot{
			FeedDashboard: {Feed: FeedDashboard},
			FeedRealtime:  {Feed: FeedRealtime},
			FeedBotInfo:   {Feed: FeedBotInfo},
		},
	}
}

// Refresh fetches the named feed from the backend and stores the result.
// Returns the fresh snapshot; on failure the stale one with LastError set.
func (p *Poller) Refresh(ctx context.Context, feed string) Snapshot {
	_, err, _ := p.sf.Do(feed, func() (any, error) {
		data, err := p.fetch(ctx, feed)
		p.store(feed, data, err)
		return nil, err
	})
	if err != nil {
		slog.Warn("stats refresh failed", "feed", feed, "err", err)
	}
	return p.Get(feed)
}

// Get returns the latest snapshot for a feed without fetching.
func (p *Poller) Get(feed string) Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if s, ok := p.feeds[feed]; ok {
		return *s
	}
	return Snapshot{Feed: feed}
}

func (p *Poller) fetch(ctx context.Context, feed string) (json.RawMessage, error) {
	switch feed {
	case FeedRealtime:
		return p.fetcher.GetRealtimeStats(ctx)
	case FeedBotInfo:
		return p.fetcher.GetBotInfo(ctx)
	default:
		return p.fetcher.GetStats(ctx)
	}
}

func (p *Poller) store(feed string, data json.RawMessage, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	s, ok := p.feeds[feed]
	if !ok {
		s = &Snapshot{Feed: feed}
		p.feeds[feed] = s
	}
	if err != nil {
		// Keep the previous document; a single failed tick is not fatal.
		s.LastError = err.Error()
		return
	}
	s.Data = data
	s.FetchedAt = time.Now()
	s.LastError = ""
}
