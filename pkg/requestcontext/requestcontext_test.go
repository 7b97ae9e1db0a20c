package requestcontext

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRequestID(t *testing.T) {
	t.Run("round trips through context", func(t *testing.T) {
		ctx := WithRequestID(context.Background(), "req-123")
		assert.Equal(t, "req-123", RequestID(ctx))
	})

	t.Run("returns empty string when absent", func(t *testing.T) {
		assert.Equal(t, "", RequestID(context.Background()))
	})
}

func TestNow(t *testing.T) {
	t.Run("returns injected time", func(t *testing.T) {
		fixed := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
		ctx := WithTime(context.Background(), fixed)
		assert.Equal(t, fixed, Now(ctx))
	})

	t.Run("falls back to wall clock when absent", func(t *testing.T) {
		before := time.Now()
		got := Now(context.Background())
		after := time.Now()
		assert.False(t, got.Before(before))
		assert.False(t, got.After(after))
	})
}

func TestClientMetadata(t *testing.T) {
	t.Run("round trips IP and user agent", func(t *testing.T) {
		ctx := WithClientMetadata(context.Background(), "192.0.2.7", "curl/8.0")
		assert.Equal(t, "192.0.2.7", ClientIP(ctx))
		assert.Equal(t, "curl/8.0", UserAgent(ctx))
	})

	t.Run("defaults to unknown IP when absent", func(t *testing.T) {
		assert.Equal(t, "unknown", ClientIP(context.Background()))
	})
}
