// Package audit emits lifecycle events for user and order activity.
// Events are published off the request path; a failed emit never fails
// the operation that produced it.
package audit

import (
	"context"
	"time"

	"meridian/pkg/domain"
	"meridian/pkg/requestcontext"
)

// EventType names a lifecycle event.
type EventType string

const (
	EventUserRegistered  EventType = "user.registered"
	EventUserCreated     EventType = "user.created"
	EventUserLoggedIn    EventType = "user.logged_in"
	EventUserUpdated     EventType = "user.updated"
	EventUserDeactivated EventType = "user.deactivated"
	EventUserDeleted     EventType = "user.deleted"

	EventOrderCreated        EventType = "order.created"
	EventOrderStatusChanged  EventType = "order.status_changed"
	EventOrderPaymentUpdated EventType = "order.payment_updated"
	EventOrderCancelled      EventType = "order.cancelled"
	EventOrderDeleted        EventType = "order.deleted"
)

// Event is a single audit record. Actor is the user who performed the
// action, Subject the entity acted on.
type Event struct {
	ID         domain.EventID `json:"id"`
	Type       EventType      `json:"type"`
	OccurredAt time.Time      `json:"occurred_at"`
	Actor      string         `json:"actor,omitempty"`
	Subject    string         `json:"subject,omitempty"`
	RequestID  string         `json:"request_id,omitempty"`
	Data       map[string]any `json:"data,omitempty"`
}

// NewEvent builds an event stamped with the request's ID and arrival
// time from ctx.
func NewEvent(ctx context.Context, typ EventType, actor, subject string, data map[string]any) Event {
	return Event{
		ID:         domain.NewEventID(),
		Type:       typ,
		OccurredAt: requestcontext.Now(ctx),
		Actor:      actor,
		Subject:    subject,
		RequestID:  requestcontext.RequestID(ctx),
		Data:       data,
	}
}
