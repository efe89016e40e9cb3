package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/couchcryptid/crash-data-etl/internal/archive"
	"github.com/couchcryptid/crash-data-etl/internal/domain"
	"github.com/couchcryptid/crash-data-etl/internal/observability"
)

// ArchiveSyncer makes the source archives available locally.
type ArchiveSyncer interface {
	Sync(ctx context.Context) ([]string, error)
}

// RegionLoader builds a region's set straight from the archives. It is the
// source of last resort behind the region cache.
type RegionLoader struct {
	archives ArchiveSyncer
	schema   *domain.Schema
	logger   *slog.Logger
	metrics  *observability.Metrics

	mu    sync.Mutex
	paths []string
}

// NewRegionLoader creates a RegionLoader. Archives are synced on first use
// and the resulting paths reused for every region.
func NewRegionLoader(archives ArchiveSyncer, schema *domain.Schema, logger *slog.Logger, metrics *observability.Metrics) *RegionLoader {
	return &RegionLoader{
		archives: archives,
		schema:   schema,
		logger:   logger,
		metrics:  metrics,
	}
}

// Load reads region's member from every archive, in discovery order, and
// concatenates the results. An archive that cannot be read or does not match
// the schema is skipped for this region. When every archive fails the joined
// errors are returned; when only some fail the set is returned together with
// an error wrapping domain.ErrPartialLoad.
func (l *RegionLoader) Load(ctx context.Context, region domain.Region) (*domain.ColumnarSet, error) {
	paths, err := l.archivePaths(ctx)
	if err != nil {
		return nil, err
	}

	sets := make([]*domain.ColumnarSet, 0, len(paths))
	var errs []error
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		set, err := l.loadArchive(path, region)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		sets = append(sets, set)
	}

	if len(errs) > 0 && len(sets) == 0 {
		return nil, fmt.Errorf("load region %s: %w", region.Code, errors.Join(errs...))
	}

	merged := domain.EmptySet(l.schema)
	if len(sets) > 0 {
		if merged, err = domain.Concat(sets...); err != nil {
			return nil, err
		}
	}
	l.logger.Info("region loaded from archives",
		"region", region.Code, "archives", len(sets), "skipped", len(errs), "records", merged.Len())

	if len(errs) > 0 {
		return merged, fmt.Errorf("%w: region %s skipped %d of %d archives: %w",
			domain.ErrPartialLoad, region.Code, len(errs), len(paths), errors.Join(errs...))
	}
	return merged, nil
}

func (l *RegionLoader) loadArchive(path string, region domain.Region) (*domain.ColumnarSet, error) {
	rows, err := archive.ReadRegion(path, region)
	if err != nil {
		l.skip(region, path, "read", err)
		return nil, err
	}

	set, stats, err := domain.BuildColumnarSet(l.schema, region.Code, rows)
	if err != nil {
		err = fmt.Errorf("%s: %w", path, err)
		l.skip(region, path, "schema", err)
		return nil, err
	}

	l.metrics.RecordsParsed.Add(float64(stats.Rows))
	l.metrics.SentinelFields.Add(float64(stats.Sentinels))
	return set, nil
}

func (l *RegionLoader) skip(region domain.Region, path, kind string, err error) {
	l.metrics.ArchiveErrors.WithLabelValues(kind).Inc()
	l.logger.Warn("skipping archive for region",
		"region", region.Code, "archive", path, "kind", kind, "error", err)
}

// archivePaths syncs the archives once. A failed sync is retried on the next call.
func (l *RegionLoader) archivePaths(ctx context.Context) ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.paths != nil {
		return l.paths, nil
	}

	paths, err := l.archives.Sync(ctx)
	if err != nil {
		return nil, fmt.Errorf("sync archives: %w", err)
	}
	if paths == nil {
		paths = []string{}
	}
	l.paths = paths
	return paths, nil
}
