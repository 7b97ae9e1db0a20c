// Package main is a smoke tool for the audit pipeline: it publishes a
// few synthetic lifecycle events to Kafka and waits for the delivery
// reports, so broker connectivity and topic configuration can be checked
// without driving traffic through the API.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"meridian/internal/audit"
	"meridian/internal/platform/kafka/producer"
	"meridian/pkg/domain"
)

func main() {
	var (
		brokers = flag.String("brokers", envOr("MERIDIAN_KAFKA_BROKERS", "localhost:9092"), "comma-separated Kafka brokers")
		topic   = flag.String("topic", envOr("MERIDIAN_KAFKA_TOPIC", "meridian.audit"), "audit topic")
		count   = flag.Int("count", 3, "number of events to publish")
	)
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	if err := run(logger, splitBrokers(*brokers), *topic, *count); err != nil {
		logger.Error("audit smoke failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger, brokers []string, topic string, count int) error {
	p, err := producer.New(producer.DefaultConfig(brokers), logger)
	if err != nil {
		return err
	}
	defer p.Close()

	publisher := audit.NewKafkaPublisher(p, topic, logger)

	userID := domain.NewUserID()
	for i := 0; i < count; i++ {
		event := audit.Event{
			ID:         domain.NewEventID(),
			Type:       audit.EventUserRegistered,
			OccurredAt: time.Now().UTC(),
			Actor:      userID.String(),
			Subject:    userID.String(),
			Data: map[string]any{
				"smoke":    true,
				"sequence": i,
			},
		}
		publisher.Emit(context.Background(), event)
		logger.Info("event enqueued", "id", event.ID, "sequence", i)
	}

	if unflushed := p.Flush(30 * time.Second); unflushed > 0 {
		return fmt.Errorf("%d events not delivered before timeout", unflushed)
	}

	logger.Info("all events delivered", "count", count, "topic", topic)
	return nil
}

func splitBrokers(s string) []string {
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
