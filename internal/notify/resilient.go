package notify

import (
	"context"
	"log/slog"

	dErrors "meridian/pkg/domain-errors"
	"meridian/pkg/platform/circuit"
)

// ResilientSender wraps a Sender with a circuit breaker. A dead SMTP
// relay fails each send only after the full dial timeout; once the
// breaker opens, sends fail fast and the queue workers stay free for
// messages that can still be delivered after recovery.
type ResilientSender struct {
	inner   Sender
	breaker *circuit.Breaker
	logger  *slog.Logger
}

// NewResilientSender wraps inner. A nil breaker gets the default
// thresholds; a nil logger falls back to slog.Default.
func NewResilientSender(inner Sender, breaker *circuit.Breaker, logger *slog.Logger) *ResilientSender {
	if breaker == nil {
		breaker = circuit.New("notify")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ResilientSender{inner: inner, breaker: breaker, logger: logger}
}

// Send delivers through the wrapped sender unless the circuit is open.
func (s *ResilientSender) Send(ctx context.Context, msg Message) error {
	if !s.breaker.Allow() {
		return dErrors.New(dErrors.CodeUnavailable, "notification channel unavailable")
	}

	if err := s.inner.Send(ctx, msg); err != nil {
		if s.breaker.RecordFailure() {
			s.logger.Warn("notification circuit opened",
				"breaker", s.breaker.Name(),
				"error", err,
			)
		}
		return err
	}

	if s.breaker.RecordSuccess() {
		s.logger.Info("notification circuit closed", "breaker", s.breaker.Name())
	}
	return nil
}
