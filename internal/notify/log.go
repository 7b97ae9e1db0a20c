package notify

import (
	"context"
	"log/slog"
)

// LogSender records messages instead of delivering them. It stands in for
// the SMTP sender in development when no relay is configured.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender builds a sender that writes to the given logger.
func NewLogSender(logger *slog.Logger) *LogSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(_ context.Context, msg Message) error {
	s.logger.Info("notification (delivery disabled)",
		"to", msg.To,
		"subject", msg.Subject,
	)
	return nil
}
