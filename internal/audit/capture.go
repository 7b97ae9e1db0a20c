package audit

import (
	"context"
	"sync"
)

// Capture is an in-memory publisher that records events for inspection.
// Service tests use it to assert on emitted lifecycle events.
type Capture struct {
	mu     sync.RWMutex
	events []Event
}

func NewCapture() *Capture {
	return &Capture{}
}

func (c *Capture) Emit(_ context.Context, event Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
}

// Events returns a snapshot of everything emitted so far.
func (c *Capture) Events() []Event {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]Event(nil), c.events...)
}

// ByType returns the recorded events of one type, in emit order.
func (c *Capture) ByType(typ EventType) []Event {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []Event
	for _, e := range c.events {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}

func (c *Capture) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = nil
}
