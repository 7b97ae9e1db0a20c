package sync

import (
	"fmt"
	stdsync "sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShardedMapUpdate(t *testing.T) {
	t.Run("creates entry when absent", func(t *testing.T) {
		m := NewShardedMap[int]()
		m.Update("a", func(v int, ok bool) (int, bool) {
			assert.False(t, ok)
			return 1, true
		})

		got, ok := m.Get("a")
		require.True(t, ok)
		assert.Equal(t, 1, got)
	})

	t.Run("mutates existing entry", func(t *testing.T) {
		m := NewShardedMap[int]()
		m.Update("a", func(int, bool) (int, bool) { return 1, true })
		m.Update("a", func(v int, ok bool) (int, bool) {
			assert.True(t, ok)
			return v + 10, true
		})

		got, _ := m.Get("a")
		assert.Equal(t, 11, got)
	})

	t.Run("keep=false removes entry", func(t *testing.T) {
		m := NewShardedMap[int]()
		m.Update("a", func(int, bool) (int, bool) { return 1, true })
		m.Update("a", func(int, bool) (int, bool) { return 0, false })

		_, ok := m.Get("a")
		assert.False(t, ok)
		assert.Equal(t, 0, m.Len())
	})
}

func TestShardedMapSweep(t *testing.T) {
	m := NewShardedMap[int]()
	for i := 0; i < 100; i++ {
		key := fmt.Sprintf("key-%d", i)
		val := i
		m.Update(key, func(int, bool) (int, bool) { return val, true })
	}

	removed := m.Sweep(func(_ string, v int) bool { return v%2 == 0 })

	assert.Equal(t, 50, removed)
	assert.Equal(t, 50, m.Len())
	_, ok := m.Get("key-2")
	assert.False(t, ok, "even entries should have been swept")
	_, ok = m.Get("key-3")
	assert.True(t, ok, "odd entries should survive the sweep")
}

// TestShardedMapConcurrentCounters verifies that read-modify-write cycles on
// the same key never lose updates under concurrency, the property the rate
// limiter depends on for atomic admit decisions.
func TestShardedMapConcurrentCounters(t *testing.T) {
	m := NewShardedMap[int]()
	const goroutines = 50
	const increments = 200

	var wg stdsync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			key := fmt.Sprintf("counter-%d", g%8)
			for i := 0; i < increments; i++ {
				m.Update(key, func(v int, _ bool) (int, bool) { return v + 1, true })
			}
		}(g)
	}
	wg.Wait()

	total := 0
	for i := 0; i < 8; i++ {
		v, ok := m.Get(fmt.Sprintf("counter-%d", i))
		require.True(t, ok)
		total += v
	}
	assert.Equal(t, goroutines*increments, total, "no increment may be lost")
}
