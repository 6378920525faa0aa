package cache

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryGetSet(t *testing.T) {
	m := NewMemory(1<<20, 0)

	_, ok := m.Get("h1")
	assert.False(t, ok, "miss on empty cache")

	m.Set("h1", "compiled one")
	content, ok := m.Get("h1")
	require.True(t, ok)
	assert.Equal(t, "compiled one", content)

	assert.Equal(t, int64(1), m.Hits())
	assert.Equal(t, int64(1), m.Misses())
	assert.Equal(t, 1, m.Count())
}

func TestMemoryOverwriteSameHash(t *testing.T) {
	m := NewMemory(1<<20, 0)

	m.Set("h1", "first")
	m.Set("h1", "second")

	content, ok := m.Get("h1")
	require.True(t, ok)
	assert.Equal(t, "second", content)
	assert.Equal(t, 1, m.Count())
	assert.Equal(t, int64(len("h1")+len("second")), m.Size())
}

func TestMemoryLRUEvictionOrder(t *testing.T) {
	// Each entry is 2 (hash) + 8 (content) = 10 bytes; the bound fits three.
	m := NewMemory(30, 0)

	m.Set("h1", "aaaaaaaa")
	m.Set("h2", "bbbbbbbb")
	m.Set("h3", "cccccccc")

	// Touch h1 so h2 becomes the least recently used.
	_, ok := m.Get("h1")
	require.True(t, ok)

	m.Set("h4", "dddddddd")

	_, ok = m.Get("h2")
	assert.False(t, ok, "least recently used entry should have been evicted")
	for _, hash := range []string{"h1", "h3", "h4"} {
		_, ok := m.Get(hash)
		assert.True(t, ok, "entry %s should survive", hash)
	}
	assert.Equal(t, int64(1), m.Evictions())
}

func TestMemoryEvictsMultipleForLargeEntry(t *testing.T) {
	m := NewMemory(30, 0)

	m.Set("h1", "aaaaaaaa")
	m.Set("h2", "bbbbbbbb")
	m.Set("h3", "cccccccc")
	m.Set("big", "ddddddddddddddddddddddd") // 3+23 = 26 bytes

	_, ok := m.Get("big")
	assert.True(t, ok)
	assert.GreaterOrEqual(t, m.Evictions(), int64(2))
	assert.LessOrEqual(t, m.Size(), int64(30))
}

func TestMemoryTTLExpiry(t *testing.T) {
	m := NewMemory(1<<20, 20*time.Millisecond)

	m.Set("h1", "content")
	_, ok := m.Get("h1")
	require.True(t, ok)

	time.Sleep(40 * time.Millisecond)

	_, ok = m.Get("h1")
	assert.False(t, ok, "expired entry should be a miss")
	assert.Equal(t, 0, m.Count(), "expired entry is removed on access")
}

func TestMemoryZeroTTLNeverExpires(t *testing.T) {
	m := NewMemory(1<<20, 0)

	m.Set("h1", "content")
	time.Sleep(10 * time.Millisecond)

	_, ok := m.Get("h1")
	assert.True(t, ok)
}

func TestMemoryDelete(t *testing.T) {
	m := NewMemory(1<<20, 0)

	m.Set("h1", "content")
	m.Delete("h1")

	_, ok := m.Get("h1")
	assert.False(t, ok)
	assert.Equal(t, int64(0), m.Size())

	// Deleting a missing hash is a no-op.
	m.Delete("absent")
}

func TestMemoryClear(t *testing.T) {
	m := NewMemory(1<<20, 0)

	m.Set("h1", "a")
	m.Set("h2", "b")
	m.Get("h1")

	removed := m.Clear()
	assert.Equal(t, 2, removed)
	assert.Equal(t, 0, m.Count())
	assert.Equal(t, int64(0), m.Size())
	assert.Equal(t, int64(0), m.Hits(), "statistics reset with the entries")

	// The list survives a clear and keeps working.
	m.Set("h3", "c")
	_, ok := m.Get("h3")
	assert.True(t, ok)
}

func TestMemoryConcurrentAccess(t *testing.T) {
	m := NewMemory(1<<20, 0)

	done := make(chan struct{})
	for g := 0; g < 8; g++ {
		go func(g int) {
			defer func() { done <- struct{}{} }()
			for i := 0; i < 200; i++ {
				hash := fmt.Sprintf("h%d-%d", g, i%10)
				m.Set(hash, "content")
				m.Get(hash)
			}
		}(g)
	}
	for g := 0; g < 8; g++ {
		<-done
	}
	assert.LessOrEqual(t, m.Count(), 80)
}
