// Package kafka publishes audit events to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"

	"opsdeck/internal/audit"
)

// Publisher produces audit events to a single topic, keyed by user ID so
// one user's trail stays ordered within a partition.
type Publisher struct {
	client *kgo.Client
	topic  string
	logger *slog.Logger
}

// New constructs a Kafka-backed audit publisher.
func New(brokers []string, topic string, logger *slog.Logger) (*Publisher, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, err
	}
	return &Publisher{client: client, topic: topic, logger: logger}, nil
}

// Emit produces the event asynchronously. Delivery failures are logged,
// never propagated: audit must not fail the request path.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		p.logger.ErrorContext(ctx, "marshal audit event", "error", err, "type", string(event.Type))
		return
	}
	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(event.UserID.String()),
		Value: payload,
	}
	p.client.Produce(ctx, record, func(_ *kgo.Record, err error) {
		if err != nil {
			p.logger.Error("produce audit event", "error", err, "type", string(event.Type))
		}
	})
}

// Close flushes buffered records and releases the client.
func (p *Publisher) Close() error {
	p.client.Flush(context.Background())
	p.client.Close()
	return nil
}
