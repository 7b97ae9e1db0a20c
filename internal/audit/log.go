package audit

import (
	"context"
	"log/slog"
)

// LogPublisher writes events to the application log. It is the fallback
// sink when no Kafka brokers are configured.
type LogPublisher struct {
	logger *slog.Logger
}

// NewLogPublisher builds a publisher writing to the given logger.
func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Emit(_ context.Context, event Event) {
	p.logger.Info("audit event",
		"event_id", event.ID,
		"type", event.Type,
		"actor", event.Actor,
		"subject", event.Subject,
		"request_id", event.RequestID,
	)
}
