// Package cache resolves a region's columnar set through an ordered list of
// storage tiers backed by a source of last resort.
package cache

import (
	"context"

	"github.com/couchcryptid/crash-data-etl/internal/domain"
)

// Tier is one level of the region cache.
type Tier interface {
	// Name labels the tier in logs and metrics.
	Name() string
	// Get returns the stored set for region code. A miss is (nil, false, nil).
	Get(ctx context.Context, code string) (*domain.ColumnarSet, bool, error)
	Put(ctx context.Context, code string, set *domain.ColumnarSet) error
	// Durable reports whether entries outlive the process.
	Durable() bool
}

// Source computes a region's set when no tier holds it.
type Source interface {
	Load(ctx context.Context, region domain.Region) (*domain.ColumnarSet, error)
}
