// Package kafka publishes per-region count records to a sink topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/quake-region-etl/internal/config"
	"github.com/couchcryptid/quake-region-etl/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// Writer produces count records to a Kafka topic.
// It implements pipeline.Publisher.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured sink topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaSinkTopic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// countMessage is the wire form of one per-region count.
type countMessage struct {
	RunID       string    `json:"run_id"`
	RegionID    string    `json:"region_id"`
	Name        string    `json:"name,omitempty"`
	Count       int       `json:"count"`
	GeneratedAt time.Time `json:"generated_at"`
}

// PublishCounts serializes one message per region (zero-count regions
// included) and publishes the whole run in a single WriteMessages call.
func (w *Writer) PublishCounts(ctx context.Context, report domain.RunReport) error {
	if len(report.Counts) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(report.Counts))
	for i, rc := range report.Counts {
		msg, err := serializeCount(report, rc)
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	return w.writer.WriteMessages(ctx, msgs...)
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeCount marshals a region count into a Kafka message keyed by
// region id, so each region's history lands on one partition.
func serializeCount(report domain.RunReport, rc domain.RegionCount) (kafkago.Message, error) {
	data, err := json.Marshal(countMessage{
		RunID:       report.RunID,
		RegionID:    rc.RegionID,
		Name:        rc.Name,
		Count:       rc.Count,
		GeneratedAt: report.FinishedAt,
	})
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize count for region %s: %w", rc.RegionID, err)
	}
	return kafkago.Message{
		Key:   []byte(rc.RegionID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "run_id", Value: []byte(report.RunID)},
			{Key: "generated_at", Value: []byte(report.FinishedAt.Format(time.RFC3339))},
		},
	}, nil
}
