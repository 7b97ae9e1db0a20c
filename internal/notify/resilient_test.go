package notify

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "meridian/pkg/domain-errors"
	"meridian/pkg/platform/circuit"
)

type flakySender struct {
	err   error
	calls int
}

func (s *flakySender) Send(context.Context, Message) error {
	s.calls++
	return s.err
}

func TestResilientSenderPassesThroughWhenClosed(t *testing.T) {
	inner := &flakySender{}
	s := NewResilientSender(inner, circuit.New("test"), slog.Default())

	err := s.Send(context.Background(), Message{To: "a@x.com"})

	require.NoError(t, err)
	assert.Equal(t, 1, inner.calls)
}

func TestResilientSenderFailsFastWhenOpen(t *testing.T) {
	inner := &flakySender{err: errors.New("dial tcp: connection refused")}
	breaker := circuit.New("test",
		circuit.WithFailureThreshold(2),
		circuit.WithCooldown(time.Minute),
	)
	s := NewResilientSender(inner, breaker, slog.Default())

	ctx := context.Background()
	require.Error(t, s.Send(ctx, Message{}))
	require.Error(t, s.Send(ctx, Message{}))
	require.Equal(t, circuit.StateOpen, breaker.State())

	err := s.Send(ctx, Message{})

	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnavailable))
	assert.Equal(t, 2, inner.calls, "open circuit must not reach the sender")
}

func TestResilientSenderRecovers(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	inner := &flakySender{err: errors.New("smtp down")}
	breaker := circuit.New("test",
		circuit.WithFailureThreshold(1),
		circuit.WithSuccessThreshold(1),
		circuit.WithCooldown(time.Second),
		circuit.WithClock(func() time.Time { return now }),
	)
	s := NewResilientSender(inner, breaker, slog.Default())

	ctx := context.Background()
	require.Error(t, s.Send(ctx, Message{}))
	require.Equal(t, circuit.StateOpen, breaker.State())

	inner.err = nil
	now = now.Add(2 * time.Second)

	require.NoError(t, s.Send(ctx, Message{}))
	assert.Equal(t, circuit.StateClosed, breaker.State())
}
