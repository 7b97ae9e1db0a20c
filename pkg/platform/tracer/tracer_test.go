package tracer_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meridian/pkg/platform/tracer"
)

func TestNoopTracerStart(t *testing.T) {
	tr := tracer.NewNoop()
	ctx := context.Background()

	newCtx, span := tr.Start(ctx, "user.store.create",
		tracer.String("user_id", "abc"),
		tracer.Bool("cached", false),
	)

	// Context should be returned unchanged
	assert.Equal(t, ctx, newCtx)
	require.NotNil(t, span)

	// Span methods should not panic
	span.SetAttributes(tracer.String("another", "attr"))
	span.AddEvent("store.insert", tracer.Int64("rows", 1))
	span.End(nil)
}

func TestNoopTracerSpanEndWithError(t *testing.T) {
	tr := tracer.NewNoop()

	_, span := tr.Start(context.Background(), "ratelimit.allow")
	require.NotNil(t, span)

	// Should not panic when ending with error
	span.End(errors.New("store unavailable"))
}

func TestAttributeConstructors(t *testing.T) {
	t.Run("String", func(t *testing.T) {
		attr := tracer.String("key", "value")
		assert.Equal(t, "key", attr.Key)
		assert.Equal(t, "value", attr.Value)
	})

	t.Run("Bool", func(t *testing.T) {
		attr := tracer.Bool("flag", true)
		assert.Equal(t, "flag", attr.Key)
		assert.Equal(t, true, attr.Value)
	})

	t.Run("Int", func(t *testing.T) {
		attr := tracer.Int("count", 7)
		assert.Equal(t, 7, attr.Value)
	})

	t.Run("Duration converts to milliseconds", func(t *testing.T) {
		attr := tracer.Duration("elapsed", 1500*time.Millisecond)
		assert.Equal(t, int64(1500), attr.Value)
	})
}
