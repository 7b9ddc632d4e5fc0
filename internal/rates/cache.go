package rates

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// snapshot is the immutable value stored by the cache.
type snapshot struct {
	rate      decimal.Decimal
	fetchedAt time.Time
}

// Cache holds the latest successfully fetched rate. Until the first
// successful fetch, Current returns ErrUnavailable and callers must show
// a loading state rather than a price. A fetch failure after a success
// keeps serving the last known rate — a slightly stale rate beats no
// sale, and the refresher keeps trying.
type Cache struct {
	src      Source
	interval time.Duration
	lg       *zap.Logger
	current  atomic.Pointer[snapshot]
}

// NewCache creates a cache refreshing from src at the given interval.
func NewCache(src Source, interval time.Duration, lg *zap.Logger) *Cache {
	if lg == nil {
		lg = zap.NewNop()
	}
	return &Cache{src: src, interval: interval, lg: lg}
}

// Run refreshes the rate until ctx is cancelled. The first fetch happens
// immediately so prices become available as soon as the collaborator
// answers. Always returns nil, so it can run under an errgroup without
// taking the whole process down on collaborator outages.
func (c *Cache) Run(ctx context.Context) error {
	c.Refresh(ctx)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			c.Refresh(ctx)
		}
	}
}

// Refresh fetches the rate once and, on success, replaces the snapshot.
// Failures are logged and leave the previous snapshot in place.
func (c *Cache) Refresh(ctx context.Context) {
	rate, err := c.src.Fetch(ctx)
	if err != nil {
		c.lg.Warn("exchange rate refresh failed", zap.Error(err))
		return
	}
	c.current.Store(&snapshot{rate: rate, fetchedAt: time.Now()})
	c.lg.Info("exchange rate refreshed", zap.String("rate", rate.String()))
}

// Current returns the latest known rate, or ErrUnavailable when none has
// been loaded yet.
func (c *Cache) Current() (decimal.Decimal, error) {
	s := c.current.Load()
	if s == nil {
		return decimal.Zero, ErrUnavailable
	}
	return s.rate, nil
}

// FetchedAt reports when the current rate was loaded, for diagnostics.
func (c *Cache) FetchedAt() (time.Time, bool) {
	s := c.current.Load()
	if s == nil {
		return time.Time{}, false
	}
	return s.fetchedAt, true
}
