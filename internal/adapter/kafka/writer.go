package kafka

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/goccy/go-json"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/crash-data-etl/internal/config"
	"github.com/couchcryptid/crash-data-etl/internal/domain"
)

// Writer produces messages to a Kafka topic.
// It implements pipeline.BatchLoader.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured export topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.KafkaBrokers...),
		Topic:                  cfg.KafkaTopic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &Writer{writer: w, logger: logger}
}

// LoadBatch serializes and publishes multiple accident records in a single
// WriteMessages call. Records of one region and id always land on the same
// partition.
func (w *Writer) LoadBatch(ctx context.Context, records []domain.ExportRecord) error {
	if len(records) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(records))
	for i := range records {
		msg, err := serializeToMessage(records[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write %d messages: %w", len(msgs), err)
	}
	w.logger.Debug("batch published", "topic", w.writer.Topic, "messages", len(msgs))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals an ExportRecord into a Kafka message.
func serializeToMessage(r domain.ExportRecord) (kafkago.Message, error) {
	data, err := json.Marshal(r.Fields)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize record %s: %w", r.Key(), err)
	}
	return kafkago.Message{
		Key:   []byte(r.Key()),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "region", Value: []byte(r.Region)},
			{Key: "year", Value: []byte(r.Year)},
			{Key: "exported_at", Value: []byte(r.ExportedAt.Format(time.RFC3339))},
		},
	}, nil
}
