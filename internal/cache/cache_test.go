package cache_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/crash-data-etl/internal/cache"
	"github.com/couchcryptid/crash-data-etl/internal/domain"
	"github.com/couchcryptid/crash-data-etl/internal/observability"
)

// --- mock source ---

type countingSource struct {
	t     *testing.T
	mu    sync.Mutex
	calls map[string]int
	err   error
}

func newCountingSource(t *testing.T) *countingSource {
	return &countingSource{t: t, calls: make(map[string]int)}
}

func (s *countingSource) Load(_ context.Context, region domain.Region) (*domain.ColumnarSet, error) {
	s.mu.Lock()
	s.calls[region.Code]++
	err := s.err
	s.mu.Unlock()

	if err != nil && !errors.Is(err, domain.ErrPartialLoad) {
		return nil, err
	}
	return buildSet(s.t, region.Code, 4), err
}

func (s *countingSource) Calls(code string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[code]
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fixture struct {
	source  *countingSource
	memory  *cache.MemoryTier
	disk    *cache.DiskTier
	metrics *observability.Metrics
	cache   *cache.RegionCache
}

func newFixture(t *testing.T, dir string) *fixture {
	f := &fixture{
		source:  newCountingSource(t),
		memory:  cache.NewMemoryTier(),
		disk:    cache.NewDiskTier(dir, blobName, domain.AccidentSchema, nil),
		metrics: observability.NewMetricsForTesting(),
	}
	f.cache = cache.New(f.source, discardLogger(), f.metrics, f.memory, f.disk)
	return f
}

// --- RegionCache tests ---

func TestRegionCache_FirstGetLoadsFromSource(t *testing.T) {
	f := newFixture(t, t.TempDir())

	set, err := f.cache.Get(context.Background(), "pha")
	require.NoError(t, err)
	assert.Equal(t, 4, set.Len())
	assert.Equal(t, 1, f.source.Calls("PHA"))

	assert.Equal(t, 1, f.memory.Len())
	assert.FileExists(t, f.disk.Path("PHA"))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.CacheLookups.WithLabelValues("memory", "miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.CacheLookups.WithLabelValues("disk", "miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.CacheLookups.WithLabelValues("source", "hit")))
}

func TestRegionCache_SecondGetServedFromMemory(t *testing.T) {
	f := newFixture(t, t.TempDir())

	first, err := f.cache.Get(context.Background(), "PHA")
	require.NoError(t, err)
	require.NoError(t, os.Remove(f.disk.Path("PHA")))

	second, err := f.cache.Get(context.Background(), "PHA")
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, f.source.Calls("PHA"))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.CacheLookups.WithLabelValues("memory", "hit")))
}

func TestRegionCache_NewProcessServedFromDisk(t *testing.T) {
	dir := t.TempDir()
	first := newFixture(t, dir)
	want, err := first.cache.Get(context.Background(), "JHM")
	require.NoError(t, err)

	second := newFixture(t, dir)
	got, err := second.cache.Get(context.Background(), "JHM")
	require.NoError(t, err)

	assert.Equal(t, want, got)
	assert.Zero(t, second.source.Calls("JHM"))
	assert.Equal(t, 1, second.memory.Len(), "disk hit is promoted into memory")
	assert.Equal(t, 1.0, testutil.ToFloat64(second.metrics.CacheLookups.WithLabelValues("disk", "hit")))
}

func TestRegionCache_CorruptBlobIsRebuilt(t *testing.T) {
	dir := t.TempDir()
	f := newFixture(t, dir)
	require.NoError(t, os.WriteFile(f.disk.Path("PHA"), []byte("garbage"), 0o600))

	set, err := f.cache.Get(context.Background(), "PHA")
	require.NoError(t, err)
	assert.Equal(t, 4, set.Len())
	assert.Equal(t, 1, f.source.Calls("PHA"))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.CacheLookups.WithLabelValues("disk", "error")))

	_, ok, err := f.disk.Get(context.Background(), "PHA")
	require.NoError(t, err)
	assert.True(t, ok, "blob is overwritten with the fresh set")
}

func TestRegionCache_PartialLoadNotPersisted(t *testing.T) {
	f := newFixture(t, t.TempDir())
	f.source.err = fmt.Errorf("%w: 1 of 3 archives skipped", domain.ErrPartialLoad)

	set, err := f.cache.Get(context.Background(), "OLK")
	require.NoError(t, err)
	assert.Equal(t, 4, set.Len())

	assert.Equal(t, 1, f.memory.Len())
	assert.NoFileExists(t, f.disk.Path("OLK"))

	_, err = f.cache.Get(context.Background(), "OLK")
	require.NoError(t, err)
	assert.Equal(t, 1, f.source.Calls("OLK"), "served from memory for the rest of the process")
}

func TestRegionCache_SourceErrorNotCached(t *testing.T) {
	f := newFixture(t, t.TempDir())
	f.source.err = domain.ErrNetwork

	_, err := f.cache.Get(context.Background(), "PHA")
	require.ErrorIs(t, err, domain.ErrNetwork)
	assert.Zero(t, f.memory.Len())
	assert.NoFileExists(t, f.disk.Path("PHA"))

	f.source.mu.Lock()
	f.source.err = nil
	f.source.mu.Unlock()

	_, err = f.cache.Get(context.Background(), "PHA")
	require.NoError(t, err)
	assert.Equal(t, 2, f.source.Calls("PHA"))
}

func TestRegionCache_UnknownRegion(t *testing.T) {
	f := newFixture(t, t.TempDir())
	_, err := f.cache.Get(context.Background(), "XYZ")
	assert.ErrorIs(t, err, domain.ErrUnknownRegion)
	assert.Zero(t, f.source.Calls("XYZ"))
}

func TestRegionCache_ConcurrentGetsLoadOnce(t *testing.T) {
	f := newFixture(t, t.TempDir())

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			set, err := f.cache.Get(context.Background(), "MSK")
			assert.NoError(t, err)
			assert.Equal(t, 4, set.Len())
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, f.source.Calls("MSK"))
}

func TestRegionCache_MemoryOnly(t *testing.T) {
	src := newCountingSource(t)
	mem := cache.NewMemoryTier()
	c := cache.New(src, discardLogger(), observability.NewMetricsForTesting(), mem)

	for range 3 {
		_, err := c.Get(context.Background(), "ZLK")
		require.NoError(t, err)
	}
	assert.Equal(t, 1, src.Calls("ZLK"))
}

// gatedSource blocks every load until release is closed.
type gatedSource struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
	t       *testing.T
}

func (s *gatedSource) Load(ctx context.Context, region domain.Region) (*domain.ColumnarSet, error) {
	s.once.Do(func() { close(s.started) })
	select {
	case <-s.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return buildSet(s.t, region.Code, 2), nil
}

func TestRegionCache_CancelledCallerDoesNotFailWaiters(t *testing.T) {
	src := &gatedSource{started: make(chan struct{}), release: make(chan struct{}), t: t}
	c := cache.New(src, discardLogger(), observability.NewMetricsForTesting(), cache.NewMemoryTier())

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := c.Get(firstCtx, "OLK")
		firstErr <- err
	}()
	<-src.started

	type result struct {
		set *domain.ColumnarSet
		err error
	}
	second := make(chan result, 1)
	go func() {
		set, err := c.Get(context.Background(), "OLK")
		second <- result{set, err}
	}()

	cancelFirst()
	require.ErrorIs(t, <-firstErr, context.Canceled)

	close(src.release)
	got := <-second
	require.NoError(t, got.err)
	assert.Equal(t, 2, got.set.Len())
}
