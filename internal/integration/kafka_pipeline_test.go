//go:build integration

package integration_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/goccy/go-json"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"

	"github.com/couchcryptid/crash-data-etl/internal/adapter/kafka"
	"github.com/couchcryptid/crash-data-etl/internal/adapter/portal"
	"github.com/couchcryptid/crash-data-etl/internal/archive"
	"github.com/couchcryptid/crash-data-etl/internal/cache"
	"github.com/couchcryptid/crash-data-etl/internal/config"
	"github.com/couchcryptid/crash-data-etl/internal/domain"
	"github.com/couchcryptid/crash-data-etl/internal/mockdata"
	"github.com/couchcryptid/crash-data-etl/internal/observability"
	"github.com/couchcryptid/crash-data-etl/internal/pipeline"
)

const testTopic = "test-crash-records"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()
	container, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0", tckafka.WithClusterID("crash-etl-test"))
	require.NoError(t, err, "start kafka container")
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

func createTopic(t *testing.T, broker, topic string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)
	cc, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)
	defer cc.Close()

	require.NoError(t, cc.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     3,
		ReplicationFactor: 1,
	}))
}

// TestPipelineExportsMergedRegions wires the whole service against a mock
// portal and a real broker, and checks every merged record is published.
func TestPipelineExportsMergedRegions(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testTopic)

	pha, stc := domain.Regions[0], domain.Regions[1]
	p := mockdata.NewPortal()
	for _, year := range []string{"2018", "2019"} {
		data, err := mockdata.Archive(map[domain.Region][][]string{
			pha: mockdata.Rows("PHA-"+year, year, 4),
			stc: mockdata.Rows("STC-"+year, year, 3),
		})
		require.NoError(t, err)
		p.Add("data/datagis"+year+".zip", data)
	}
	srv := httptest.NewServer(p)
	t.Cleanup(srv.Close)

	cfg := &config.Config{
		KafkaBrokers: []string{broker},
		KafkaTopic:   testTopic,
		BatchSize:    5,
	}
	metrics := observability.NewMetricsForTesting()
	dataDir := filepath.Join(t.TempDir(), "data")

	client, err := portal.NewClient(srv.URL, 10*time.Second, discardLogger())
	require.NoError(t, err)
	store := archive.NewStore(client, dataDir, 0, discardLogger(), metrics)
	loader := pipeline.NewRegionLoader(store, domain.AccidentSchema, discardLogger(), metrics)
	regions := cache.New(loader, discardLogger(), metrics,
		cache.NewMemoryTier(),
		cache.NewDiskTier(dataDir, func(code string) string { return "data_" + code + ".arrow.gz" }, domain.AccidentSchema, nil),
	)
	merger := pipeline.NewMerger(regions, 2, discardLogger())

	writer := kafka.NewWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	pl := pipeline.New(merger, writer, []string{"PHA", "STC"}, discardLogger(), metrics, cfg.BatchSize)
	pipelineCtx, pipelineCancel := context.WithCancel(ctx)
	errCh := make(chan error, 1)
	go func() { errCh <- pl.Run(pipelineCtx) }()

	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testTopic,
		GroupID:     fmt.Sprintf("test-consumer-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })

	const want = 2*4 + 2*3
	keys := make(map[string]bool, want)
	perRegion := map[string]int{}
	for len(keys) < want {
		readCtx, readCancel := context.WithTimeout(ctx, 30*time.Second)
		msg, err := consumer.ReadMessage(readCtx)
		readCancel()
		require.NoError(t, err, "read from export topic")

		headers := make(map[string]string, len(msg.Headers))
		for _, h := range msg.Headers {
			headers[h.Key] = string(h.Value)
		}
		_, err = time.Parse(time.RFC3339, headers["exported_at"])
		assert.NoError(t, err, "exported_at should be valid RFC3339")

		var fields map[string]any
		require.NoError(t, json.Unmarshal(msg.Value, &fields))
		assert.Equal(t, headers["region"], fields["region"])
		assert.Equal(t, headers["year"], fields["year"])
		assert.Equal(t, float64(14), fields["hour"])

		keys[string(msg.Key)] = true
		perRegion[headers["region"]]++
	}

	assert.True(t, keys["PHA:PHA-2018-0"])
	assert.True(t, keys["STC:STC-2019-2"])
	assert.Equal(t, 8, perRegion["PHA"])
	assert.Equal(t, 6, perRegion["STC"])

	require.Eventually(t, func() bool { return pl.CheckReadiness(ctx) == nil }, 10*time.Second, 50*time.Millisecond)
	assert.Equal(t, int64(want), pl.Records())

	pipelineCancel()
	require.NoError(t, <-errCh)

	assert.FileExists(t, filepath.Join(dataDir, "data_PHA.arrow.gz"))
	assert.FileExists(t, filepath.Join(dataDir, "data_STC.arrow.gz"))
}
