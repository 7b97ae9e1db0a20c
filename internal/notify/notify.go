// Package notify delivers user-facing email notifications off the
// request path. Services enqueue messages and never wait on delivery.
package notify

import (
	"context"
	"fmt"
)

// Message is a single plain-text notification.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Notifier accepts messages for asynchronous delivery. Implementations
// must not block the caller.
type Notifier interface {
	Enqueue(ctx context.Context, msg Message)
}

// Sender performs the actual delivery of a single message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Welcome builds the greeting sent after a successful registration.
func Welcome(to, name string) Message {
	if name == "" {
		name = "User"
	}
	return Message{
		To:      to,
		Subject: "Welcome to Meridian",
		Body: fmt.Sprintf(
			"Hi %s,\n\nYour account has been created and is ready to use. "+
				"You can now sign in with your email address.\n\n"+
				"If you did not create this account, please contact support.\n",
			name),
	}
}
