package audit

import (
	"context"
	"encoding/json"
	"log/slog"

	"meridian/internal/platform/kafka/producer"
)

// KafkaPublisher writes events to a Kafka topic through the shared
// producer. Delivery is asynchronous; broker failures are logged by the
// producer and never reach the caller.
type KafkaPublisher struct {
	producer *producer.Producer
	topic    string
	logger   *slog.Logger
}

// NewKafkaPublisher builds a publisher for the given topic.
func NewKafkaPublisher(p *producer.Producer, topic string, logger *slog.Logger) *KafkaPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &KafkaPublisher{producer: p, topic: topic, logger: logger}
}

// Emit serializes the event and hands it to the producer. The subject is
// used as the partition key so events for one entity stay ordered.
func (p *KafkaPublisher) Emit(_ context.Context, event Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		p.logger.Error("audit event marshal failed",
			"error", err,
			"type", event.Type,
			"request_id", event.RequestID,
		)
		return
	}

	msg := &producer.Message{
		Topic: p.topic,
		Key:   []byte(event.Subject),
		Value: payload,
		Headers: map[string]string{
			"event_type": string(event.Type),
		},
	}

	if err := p.producer.ProduceAsync(msg); err != nil {
		p.logger.Error("audit event enqueue failed",
			"error", err,
			"type", event.Type,
			"request_id", event.RequestID,
		)
	}
}
