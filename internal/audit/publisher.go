package audit

import "context"

// Publisher delivers audit events to a sink. Emit must be safe from the
// request path: implementations log failures instead of returning them
// and must not block on delivery.
type Publisher interface {
	Emit(ctx context.Context, event Event)
}

// PublisherFunc adapts a function to the Publisher interface.
type PublisherFunc func(ctx context.Context, event Event)

func (f PublisherFunc) Emit(ctx context.Context, event Event) { f(ctx, event) }

// Nop discards every event.
func Nop() Publisher {
	return PublisherFunc(func(context.Context, Event) {})
}
