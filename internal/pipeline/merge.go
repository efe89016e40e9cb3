package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/crash-data-etl/internal/domain"
)

// RegionGetter returns the columnar set for one region code.
type RegionGetter interface {
	Get(ctx context.Context, code string) (*domain.ColumnarSet, error)
}

// Merger combines regions into one columnar set.
type Merger struct {
	regions     RegionGetter
	concurrency int
	logger      *slog.Logger
}

// NewMerger creates a Merger resolving up to concurrency regions at once.
func NewMerger(regions RegionGetter, concurrency int, logger *slog.Logger) *Merger {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Merger{
		regions:     regions,
		concurrency: concurrency,
		logger:      logger,
	}
}

// Merge returns the concatenation of the requested regions in the given
// order. No codes means all regions. The result is a fresh set owned by the
// caller. Any unknown code or failing region fails the whole merge.
func (m *Merger) Merge(ctx context.Context, codes ...string) (*domain.ColumnarSet, error) {
	if len(codes) == 0 {
		codes = domain.RegionCodes()
	}
	regions := make([]domain.Region, len(codes))
	for i, code := range codes {
		r, err := domain.LookupRegion(code)
		if err != nil {
			return nil, err
		}
		regions[i] = r
	}

	start := time.Now()
	sets := make([]*domain.ColumnarSet, len(regions))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.concurrency)
	for i, r := range regions {
		g.Go(func() error {
			set, err := m.regions.Get(gctx, r.Code)
			if err != nil {
				return fmt.Errorf("region %s: %w", r.Code, err)
			}
			sets[i] = set
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged, err := domain.Concat(sets...)
	if err != nil {
		return nil, err
	}
	m.logger.Info("regions merged",
		"regions", len(regions), "records", merged.Len(), "duration", time.Since(start))
	return merged, nil
}
