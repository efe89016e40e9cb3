package pipeline_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/crash-data-etl/internal/domain"
	"github.com/couchcryptid/crash-data-etl/internal/mockdata"
	"github.com/couchcryptid/crash-data-etl/internal/observability"
	"github.com/couchcryptid/crash-data-etl/internal/pipeline"
)

// --- mocks ---

type mockDataset struct {
	mu       sync.Mutex
	set      *domain.ColumnarSet
	failures int
	calls    int
	codes    []string
}

func (m *mockDataset) Merge(_ context.Context, codes ...string) (*domain.ColumnarSet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.codes = codes
	if m.calls <= m.failures {
		return nil, domain.ErrNetwork
	}
	return m.set, nil
}

type mockLoader struct {
	mu       sync.Mutex
	batches  [][]domain.ExportRecord
	failures int
	calls    int
}

func (m *mockLoader) LoadBatch(_ context.Context, records []domain.ExportRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.calls <= m.failures {
		return errors.New("broker unavailable")
	}
	m.batches = append(m.batches, records)
	return nil
}

func (m *mockLoader) loaded() []domain.ExportRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.ExportRecord
	for _, b := range m.batches {
		out = append(out, b...)
	}
	return out
}

func newTestMetrics() *observability.Metrics {
	// Use a fresh registry to avoid "already registered" panics in tests.
	return observability.NewMetricsForTesting()
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func regionSet(t *testing.T, code string, n int) *domain.ColumnarSet {
	t.Helper()
	set, _, err := domain.BuildColumnarSet(domain.AccidentSchema, code, mockdata.Rows(code, "2021", n))
	require.NoError(t, err)
	return set
}

// runUntilReady runs p until it reports ready or the timeout passes, then stops it.
func runUntilReady(t *testing.T, p *pipeline.Pipeline, timeout time.Duration) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	assert.Eventually(t, func() bool { return p.CheckReadiness(ctx) == nil }, timeout, 10*time.Millisecond)
	cancel()
	require.NoError(t, <-done)
}

// --- tests ---

func TestPipeline_Run_HappyPath(t *testing.T) {
	ds := &mockDataset{set: regionSet(t, "PHA", 5)}
	ldr := &mockLoader{}
	metrics := newTestMetrics()

	p := pipeline.New(ds, ldr, []string{"PHA"}, discardLogger(), metrics, 2)
	runUntilReady(t, p, time.Second)

	require.Len(t, ldr.batches, 3)
	assert.Len(t, ldr.batches[0], 2)
	assert.Len(t, ldr.batches[2], 1)

	loaded := ldr.loaded()
	require.Len(t, loaded, 5)
	assert.Equal(t, "PHA-0", loaded[0].ID)
	assert.Equal(t, "PHA-4", loaded[4].ID)
	assert.Equal(t, []string{"PHA"}, ds.codes)
	assert.Equal(t, int64(5), p.Records())
	assert.Equal(t, 5.0, testutil.ToFloat64(metrics.RecordsPublished))
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.PipelineRunning))
}

func TestPipeline_Run_WithoutLoader(t *testing.T) {
	ds := &mockDataset{set: regionSet(t, "KVK", 3)}
	p := pipeline.New(ds, nil, nil, discardLogger(), newTestMetrics(), 50)
	runUntilReady(t, p, time.Second)

	assert.Empty(t, ds.codes, "no regions means all regions")
	assert.Equal(t, int64(3), p.Records())
}

func TestPipeline_Run_RetriesMerge(t *testing.T) {
	ds := &mockDataset{set: regionSet(t, "PHA", 1), failures: 2}
	p := pipeline.New(ds, nil, nil, discardLogger(), newTestMetrics(), 50)
	runUntilReady(t, p, 3*time.Second)

	assert.Equal(t, 3, ds.calls)
}

func TestPipeline_Run_RetriesLoad(t *testing.T) {
	ds := &mockDataset{set: regionSet(t, "PHA", 3)}
	ldr := &mockLoader{failures: 1}
	metrics := newTestMetrics()

	p := pipeline.New(ds, ldr, nil, discardLogger(), metrics, 50)
	runUntilReady(t, p, 3*time.Second)

	assert.Len(t, ldr.loaded(), 3, "failed batch is retried, not dropped")
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.PublishErrors))
}

func TestPipeline_Run_ContextCancellation(t *testing.T) {
	ds := &mockDataset{failures: 1 << 30}
	p := pipeline.New(ds, &mockLoader{}, nil, discardLogger(), newTestMetrics(), 50)

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // cancel immediately

	err := p.Run(ctx)
	require.NoError(t, err)
	assert.Error(t, p.CheckReadiness(ctx))
}

func TestPipeline_Run_EmptyDataset(t *testing.T) {
	ds := &mockDataset{set: domain.EmptySet(domain.AccidentSchema)}
	ldr := &mockLoader{}
	p := pipeline.New(ds, ldr, nil, discardLogger(), newTestMetrics(), 50)
	runUntilReady(t, p, time.Second)

	assert.Zero(t, ldr.calls)
}

func TestDomain_ExportRecords(t *testing.T) {
	fakeClock := clockwork.NewFakeClockAt(time.Date(2024, time.April, 26, 15, 10, 0, 0, time.UTC))
	domain.SetClock(fakeClock)
	t.Cleanup(func() {
		domain.SetClock(nil)
	})

	set := regionSet(t, "ULK", 3)
	records := domain.ExportRecords(set, 1, 3)
	require.Len(t, records, 2)

	type recordSummary struct {
		Key        string
		Year       string
		Hour       any
		ExportedAt time.Time
	}
	expected := []recordSummary{
		{Key: "ULK:ULK-1", Year: "2021", Hour: int64(14), ExportedAt: fakeClock.Now()},
		{Key: "ULK:ULK-2", Year: "2021", Hour: int64(14), ExportedAt: fakeClock.Now()},
	}
	actual := make([]recordSummary, len(records))
	for i, r := range records {
		actual[i] = recordSummary{Key: r.Key(), Year: r.Year, Hour: r.Fields["hour"], ExportedAt: r.ExportedAt}
	}
	if diff := cmp.Diff(expected, actual); diff != "" {
		t.Fatalf("export records mismatch (-want +got):\n%s", diff)
	}
	assert.Len(t, records[0].Fields, domain.AccidentSchema.Width()+1)
}
