package cache

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/couchcryptid/crash-data-etl/internal/domain"
	"github.com/couchcryptid/crash-data-etl/internal/observability"
)

// RegionCache looks a region up in each tier in order and falls back to the
// source. A hit is copied into every faster tier; a source result is stored
// in all tiers.
type RegionCache struct {
	tiers   []Tier
	source  Source
	group   singleflight.Group
	logger  *slog.Logger
	metrics *observability.Metrics
}

// New creates a RegionCache. tiers are consulted fastest first.
func New(source Source, logger *slog.Logger, metrics *observability.Metrics, tiers ...Tier) *RegionCache {
	return &RegionCache{
		tiers:   tiers,
		source:  source,
		logger:  logger,
		metrics: metrics,
	}
}

// Get returns the columnar set for region code. Concurrent calls for the same
// region share one resolution, which is not cancelled when a caller gives up;
// each caller stops waiting when its own ctx is done.
func (c *RegionCache) Get(ctx context.Context, code string) (*domain.ColumnarSet, error) {
	region, err := domain.LookupRegion(code)
	if err != nil {
		return nil, err
	}

	shared := context.WithoutCancel(ctx)
	ch := c.group.DoChan(region.Code, func() (any, error) {
		return c.resolve(shared, region)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*domain.ColumnarSet), nil
	}
}

func (c *RegionCache) resolve(ctx context.Context, region domain.Region) (*domain.ColumnarSet, error) {
	start := time.Now()

	for i, tier := range c.tiers {
		set, ok, err := tier.Get(ctx, region.Code)
		switch {
		case err != nil:
			c.metrics.CacheLookups.WithLabelValues(tier.Name(), "error").Inc()
			c.logger.Warn("cache tier unreadable, treating as miss",
				"tier", tier.Name(), "region", region.Code, "error", err)
			continue
		case !ok:
			c.metrics.CacheLookups.WithLabelValues(tier.Name(), "miss").Inc()
			continue
		}

		c.metrics.CacheLookups.WithLabelValues(tier.Name(), "hit").Inc()
		c.store(ctx, region, set, c.tiers[:i], true)
		c.observe(tier.Name(), region, set, start)
		return set, nil
	}

	set, err := c.source.Load(ctx, region)
	partial := errors.Is(err, domain.ErrPartialLoad)
	if err != nil && !partial {
		c.metrics.CacheLookups.WithLabelValues("source", "error").Inc()
		return nil, err
	}
	c.metrics.CacheLookups.WithLabelValues("source", "hit").Inc()

	if partial {
		c.logger.Warn("region loaded with skipped archives, not persisting",
			"region", region.Code, "error", err)
	}
	c.store(ctx, region, set, c.tiers, !partial)
	c.observe("source", region, set, start)
	return set, nil
}

// store puts set into tiers, skipping durable ones unless durable is set.
// Write failures are logged; the set is still served.
func (c *RegionCache) store(ctx context.Context, region domain.Region, set *domain.ColumnarSet, tiers []Tier, durable bool) {
	for _, tier := range tiers {
		if tier.Durable() && !durable {
			continue
		}
		if err := tier.Put(ctx, region.Code, set); err != nil {
			c.logger.Error("cache tier write failed",
				"tier", tier.Name(), "region", region.Code, "error", err)
		}
	}
}

func (c *RegionCache) observe(tier string, region domain.Region, set *domain.ColumnarSet, start time.Time) {
	elapsed := time.Since(start)
	c.metrics.RegionLoadDuration.WithLabelValues(tier).Observe(elapsed.Seconds())
	c.logger.Debug("region resolved",
		"region", region.Code, "tier", tier, "records", set.Len(), "duration", elapsed)
}
