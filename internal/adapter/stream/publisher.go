// Package stream publishes record-change notifications to Kafka. The feed is
// optional and advisory: downstream consumers (alerting, dashboards) react to
// changes, but the store is always the source of truth.
package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/worldpulse/hazard-aqi-service/internal/config"
	"github.com/worldpulse/hazard-aqi-service/internal/domain"
)

// Publisher produces change messages to the configured topic. It implements
// ingest.ChangePublisher.
type Publisher struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewPublisher creates a Kafka producer for the change feed.
func NewPublisher(cfg *config.Config, logger *slog.Logger) *Publisher {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.BrokerList()...),
		Topic:        cfg.Kafka.Topic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Publisher{writer: w, logger: logger}
}

// PublishChange serializes and publishes one change notification. The
// message key is the record's natural key so per-record ordering holds
// within a partition.
func (p *Publisher) PublishChange(ctx context.Context, change domain.Change) error {
	msg, err := serializeChange(change)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, msg)
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

func serializeChange(change domain.Change) (kafkago.Message, error) {
	data, err := json.Marshal(change)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize change: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(change.Source + "|" + change.SourceID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "entity", Value: []byte(change.Entity)},
			{Key: "action", Value: []byte(change.Action)},
			{Key: "changed_at", Value: []byte(change.At.Format(time.RFC3339))},
		},
	}, nil
}
