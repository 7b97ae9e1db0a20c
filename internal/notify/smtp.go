package notify

import (
	"context"

	"gopkg.in/gomail.v2"

	dErrors "meridian/pkg/domain-errors"
)

// SMTPSender delivers messages through an SMTP relay.
type SMTPSender struct {
	dialer *gomail.Dialer
	from   string
}

// NewSMTPSender builds a sender for the given relay. from is used as the
// envelope sender on every message.
func NewSMTPSender(host string, port int, username, password, from string) *SMTPSender {
	return &SMTPSender{
		dialer: gomail.NewDialer(host, port, username, password),
		from:   from,
	}
}

// Send dials the relay and delivers one message. The context is accepted
// for interface symmetry; the underlying client manages its own socket
// lifetime.
func (s *SMTPSender) Send(_ context.Context, msg Message) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/plain", msg.Body)

	if err := s.dialer.DialAndSend(m); err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "smtp delivery failed")
	}
	return nil
}
