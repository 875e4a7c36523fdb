// Package cache keeps per-user event feeds for a fixed freshness window.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"ghactivity/logger"
	"ghactivity/models"
)

// DefaultTTL is the freshness window for cached feeds.
const DefaultTTL = 24 * time.Hour

var lookups = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "ghactivity_event_cache_lookups_total",
	Help: "Event cache lookups by tier and result.",
}, []string{"tier", "result"})

// Backing is an optional second tier consulted on memory misses.
type Backing interface {
	LoadSnapshot(ctx context.Context, username string) (*models.Snapshot, error)
	SaveSnapshot(ctx context.Context, snap models.Snapshot) error
}

// LoadFunc fetches a fresh feed on a miss.
type LoadFunc func(ctx context.Context, username string) ([]models.GithubEvent, error)

type entry struct {
	events    []models.GithubEvent
	fetchedAt time.Time
}

// Cache is a TTL cache keyed by username. Entries are only ever removed by
// expiry.
type Cache struct {
	mu      sync.Mutex
	entries map[string]entry

	ttl     time.Duration
	now     func() time.Time
	backing Backing
	flight  singleflight.Group
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// WithBacking adds a persistent second tier.
func WithBacking(b Backing) Option {
	return func(c *Cache) { c.backing = b }
}

// New creates a cache. A non-positive ttl selects DefaultTTL.
func New(ttl time.Duration, opts ...Option) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c := &Cache{
		entries: make(map[string]entry),
		ttl:     ttl,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns a fresh copy of the cached feed for username.
func (c *Cache) Get(ctx context.Context, username string) ([]models.GithubEvent, bool) {
	if events, ok := c.getMemory(username); ok {
		lookups.WithLabelValues("memory", "hit").Inc()
		return events, true
	}
	lookups.WithLabelValues("memory", "miss").Inc()

	if c.backing == nil {
		return nil, false
	}

	snap, err := c.backing.LoadSnapshot(ctx, username)
	if err != nil || snap == nil {
		if err != nil {
			logger.Debug("Snapshot lookup missed",
				zap.String("username", username),
				zap.Error(err))
		}
		lookups.WithLabelValues("backing", "miss").Inc()
		return nil, false
	}
	if !c.fresh(snap.FetchedAt) {
		lookups.WithLabelValues("backing", "stale").Inc()
		return nil, false
	}
	lookups.WithLabelValues("backing", "hit").Inc()

	c.mu.Lock()
	c.entries[username] = entry{events: clone(snap.Events), fetchedAt: snap.FetchedAt}
	c.mu.Unlock()

	return clone(snap.Events), true
}

// Set stores events for username as fetched now.
func (c *Cache) Set(ctx context.Context, username string, events []models.GithubEvent) {
	fetchedAt := c.now()

	c.mu.Lock()
	c.entries[username] = entry{events: clone(events), fetchedAt: fetchedAt}
	c.mu.Unlock()

	if c.backing == nil {
		return
	}
	snap := models.Snapshot{Username: username, Events: clone(events), FetchedAt: fetchedAt}
	if err := c.backing.SaveSnapshot(ctx, snap); err != nil {
		logger.Warn("Failed to persist event snapshot",
			zap.String("username", username),
			zap.Error(err))
	}
}

// GetOrLoad returns the cached feed or calls load once per username across
// concurrent callers. Load errors are returned and never cached.
// The shared load ignores the caller's cancellation.
func (c *Cache) GetOrLoad(ctx context.Context, username string, load LoadFunc) ([]models.GithubEvent, error) {
	if events, ok := c.Get(ctx, username); ok {
		return events, nil
	}

	v, err, _ := c.flight.Do(username, func() (any, error) {
		if events, ok := c.getMemory(username); ok {
			return events, nil
		}
		loadCtx := context.WithoutCancel(ctx)
		events, err := load(loadCtx, username)
		if err != nil {
			return nil, err
		}
		c.Set(loadCtx, username, events)
		return events, nil
	})
	if err != nil {
		return nil, err
	}
	return clone(v.([]models.GithubEvent)), nil
}

func (c *Cache) getMemory(username string) ([]models.GithubEvent, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[username]
	if !ok {
		return nil, false
	}
	if !c.fresh(e.fetchedAt) {
		delete(c.entries, username)
		return nil, false
	}
	return clone(e.events), true
}

func (c *Cache) fresh(fetchedAt time.Time) bool {
	return c.now().Sub(fetchedAt) < c.ttl
}

func clone(events []models.GithubEvent) []models.GithubEvent {
	if events == nil {
		return []models.GithubEvent{}
	}
	out := make([]models.GithubEvent, len(events))
	copy(out, events)
	return out
}
