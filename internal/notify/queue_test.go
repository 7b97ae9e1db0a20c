package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureSender struct {
	mu   sync.Mutex
	sent []Message
	gate chan struct{}
	err  error
}

func (s *captureSender) Send(_ context.Context, msg Message) error {
	if s.gate != nil {
		<-s.gate
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, msg)
	return s.err
}

func (s *captureSender) delivered() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Message(nil), s.sent...)
}

func TestQueuedNotifierDelivers(t *testing.T) {
	sender := &captureSender{}
	q := NewQueued(sender, WithWorkers(1))

	q.Enqueue(context.Background(), Message{To: "a@example.com", Subject: "one"})
	q.Enqueue(context.Background(), Message{To: "b@example.com", Subject: "two"})

	require.NoError(t, q.Close(context.Background()))

	sent := sender.delivered()
	require.Len(t, sent, 2)
	assert.Equal(t, "a@example.com", sent[0].To)
	assert.Equal(t, "two", sent[1].Subject)
}

func TestQueuedNotifierDropsWhenFull(t *testing.T) {
	gate := make(chan struct{})
	sender := &captureSender{gate: gate}

	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	q := NewQueued(sender, WithWorkers(1), WithBuffer(1), WithMetrics(m))

	// First message occupies the worker, second fills the buffer. The
	// worker needs a moment to pick up the first one.
	q.Enqueue(context.Background(), Message{Subject: "in flight"})
	require.Eventually(t, func() bool {
		return len(q.queue) == 0
	}, time.Second, time.Millisecond)

	q.Enqueue(context.Background(), Message{Subject: "buffered"})
	q.Enqueue(context.Background(), Message{Subject: "dropped"})

	assert.Equal(t, float64(1), promtestutil.ToFloat64(m.Dropped))
	assert.Equal(t, float64(2), promtestutil.ToFloat64(m.Enqueued))

	close(gate)
	require.NoError(t, q.Close(context.Background()))

	sent := sender.delivered()
	require.Len(t, sent, 2)
	assert.Equal(t, "in flight", sent[0].Subject)
	assert.Equal(t, "buffered", sent[1].Subject)
}

func TestQueuedNotifierKeepsGoingAfterSendFailure(t *testing.T) {
	sender := &captureSender{err: errors.New("relay down")}
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	q := NewQueued(sender, WithWorkers(1), WithMetrics(m))

	q.Enqueue(context.Background(), Message{Subject: "first"})
	q.Enqueue(context.Background(), Message{Subject: "second"})

	require.NoError(t, q.Close(context.Background()))
	assert.Len(t, sender.delivered(), 2)
	assert.Equal(t, float64(2), promtestutil.ToFloat64(m.Failed))
	assert.Equal(t, float64(0), promtestutil.ToFloat64(m.Delivered))
}

func TestQueuedNotifierCloseHonorsContext(t *testing.T) {
	gate := make(chan struct{})
	defer close(gate)

	sender := &captureSender{gate: gate}
	q := NewQueued(sender, WithWorkers(1))
	q.Enqueue(context.Background(), Message{Subject: "stuck"})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := q.Close(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestQueuedNotifierCloseIsIdempotent(t *testing.T) {
	q := NewQueued(&captureSender{})
	require.NoError(t, q.Close(context.Background()))
	require.NoError(t, q.Close(context.Background()))
}

func TestQueuedNotifierEnqueueAfterCloseDrops(t *testing.T) {
	sender := &captureSender{}
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	q := NewQueued(sender, WithWorkers(1), WithMetrics(m))

	require.NoError(t, q.Close(context.Background()))

	assert.NotPanics(t, func() {
		q.Enqueue(context.Background(), Message{To: "late@example.com", Subject: "late"})
	})

	assert.Equal(t, float64(1), promtestutil.ToFloat64(m.Dropped))
	assert.Empty(t, sender.delivered())
}

func TestWelcome(t *testing.T) {
	msg := Welcome("jane@example.com", "Jane")
	assert.Equal(t, "jane@example.com", msg.To)
	assert.Contains(t, msg.Body, "Hi Jane,")

	anon := Welcome("x@example.com", "")
	assert.Contains(t, anon.Body, "Hi User,")
}

func TestLogSenderNeverFails(t *testing.T) {
	s := NewLogSender(nil)
	require.NoError(t, s.Send(context.Background(), Message{To: "a@example.com"}))
}
