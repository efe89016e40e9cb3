package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/crash-data-etl/internal/domain"
	"github.com/couchcryptid/crash-data-etl/internal/observability"
)

// Dataset merges regions into one columnar set.
type Dataset interface {
	Merge(ctx context.Context, codes ...string) (*domain.ColumnarSet, error)
}

// BatchLoader writes multiple export records to the destination.
type BatchLoader interface {
	LoadBatch(ctx context.Context, records []domain.ExportRecord) error
}

// Pipeline warms the dataset for the configured regions and, when a loader
// is set, publishes every merged record once.
type Pipeline struct {
	dataset   Dataset
	loader    BatchLoader
	regions   []string
	logger    *slog.Logger
	metrics   *observability.Metrics
	ready     atomic.Bool
	batchSize int
	records   atomic.Int64
}

// New creates a Pipeline. A nil loader only warms the cache. Empty regions
// means all regions.
func New(d Dataset, l BatchLoader, regions []string, logger *slog.Logger, metrics *observability.Metrics, batchSize int) *Pipeline {
	if batchSize < 1 {
		batchSize = 1
	}
	return &Pipeline{
		dataset:   d,
		loader:    l,
		regions:   regions,
		logger:    logger,
		metrics:   metrics,
		batchSize: batchSize,
	}
}

// CheckReadiness returns nil once the dataset has been merged (and exported,
// if a loader is set), or an error describing why the service is not yet ready.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("dataset has not been loaded yet")
	}
	return nil
}

// Records returns the number of records in the merged dataset, or 0 before it is ready.
func (p *Pipeline) Records() int64 {
	return p.records.Load()
}

// Run merges and exports the dataset, retrying failures with backoff, then
// blocks until the context is cancelled.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("pipeline started", "regions", len(p.regions), "batch_size", p.batchSize, "export", p.loader != nil)
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	// Exponential backoff: start at 200ms, double each retry, cap at 5s.
	backoff := 200 * time.Millisecond
	maxBackoff := 5 * time.Second

	var set *domain.ColumnarSet
	for set == nil {
		var err error
		set, err = p.dataset.Merge(ctx, p.regions...)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			p.logger.Error("merge regions failed", "error", err)
			if !p.backoffOrStop(ctx, &backoff, maxBackoff) {
				return nil
			}
		}
	}
	p.records.Store(int64(set.Len()))

	if p.loader != nil {
		backoff = 200 * time.Millisecond
		if !p.export(ctx, set, &backoff, maxBackoff) {
			return nil
		}
	}

	p.ready.Store(true)
	p.logger.Info("dataset ready", "records", set.Len())

	<-ctx.Done()
	p.logger.Info("pipeline stopping", "reason", ctx.Err())
	return nil
}

// export publishes set in batches. Returns false if the pipeline should stop.
func (p *Pipeline) export(ctx context.Context, set *domain.ColumnarSet, backoff *time.Duration, maxBackoff time.Duration) bool {
	for start := 0; start < set.Len(); start += p.batchSize {
		end := min(start+p.batchSize, set.Len())
		batch := domain.ExportRecords(set, start, end)

		for {
			err := p.loader.LoadBatch(ctx, batch)
			if err == nil {
				break
			}
			if ctx.Err() != nil {
				return false
			}
			p.metrics.PublishErrors.Inc()
			p.logger.Error("load batch failed", "error", err, "batch_size", len(batch), "offset", start)
			if !p.backoffOrStop(ctx, backoff, maxBackoff) {
				return false
			}
		}
		*backoff = 200 * time.Millisecond
		p.metrics.RecordsPublished.Add(float64(len(batch)))
	}
	p.logger.Info("dataset exported", "records", set.Len())
	return true
}

// backoffOrStop checks for context cancellation, sleeps with the current backoff,
// and advances the backoff. Returns false if the pipeline should stop.
func (p *Pipeline) backoffOrStop(ctx context.Context, backoff *time.Duration, maxBackoff time.Duration) bool {
	if ctx.Err() != nil {
		return false
	}
	if !sleepWithContext(ctx, *backoff) {
		return false
	}
	*backoff = nextBackoff(*backoff, maxBackoff)
	return true
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
