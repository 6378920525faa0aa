package cache

import (
	"sync"
	"sync/atomic"
	"time"
)

// Memory is the Tier-1 cache: an in-memory LRU keyed by content hash,
// scoped to one engine instance and discarded with it. Entries are never
// mutated in place; a source change produces a new hash and a new entry.
type Memory struct {
	entries     map[string]*memoryEntry
	mutex       sync.RWMutex
	maxBytes    int64
	currentSize int64
	ttl         time.Duration
	// LRU doubly-linked list with dummy head and tail
	head *memoryEntry
	tail *memoryEntry
	// Statistics tracking (atomic for thread safety)
	hits      int64
	misses    int64
	sets      int64
	evictions int64
}

type memoryEntry struct {
	key       string
	content   string
	createdAt time.Time
	size      int64
	prev      *memoryEntry
	next      *memoryEntry
}

// NewMemory creates a Tier-1 cache bounded to maxBytes. ttl of zero means
// entries never expire.
func NewMemory(maxBytes int64, ttl time.Duration) *Memory {
	m := &Memory{
		entries:  make(map[string]*memoryEntry),
		maxBytes: maxBytes,
		ttl:      ttl,
	}
	m.head = &memoryEntry{}
	m.tail = &memoryEntry{}
	m.head.next = m.tail
	m.tail.prev = m.head
	return m
}

// Get retrieves compiled content by hash.
func (m *Memory) Get(hash string) (string, bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	entry, exists := m.entries[hash]
	if !exists {
		atomic.AddInt64(&m.misses, 1)
		return "", false
	}
	if m.expired(entry) {
		m.removeLocked(entry)
		atomic.AddInt64(&m.misses, 1)
		return "", false
	}

	m.moveToFront(entry)
	atomic.AddInt64(&m.hits, 1)
	return entry.content, true
}

// Set stores compiled content under its hash, evicting LRU entries if the
// byte bound would be exceeded.
func (m *Memory) Set(hash, content string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	size := int64(len(hash) + len(content))

	if existing, exists := m.entries[hash]; exists {
		m.currentSize += size - existing.size
		existing.content = content
		existing.size = size
		existing.createdAt = time.Now()
		m.moveToFront(existing)
		atomic.AddInt64(&m.sets, 1)
		return
	}

	m.evictIfNeeded(size)

	entry := &memoryEntry{
		key:       hash,
		content:   content,
		createdAt: time.Now(),
		size:      size,
	}
	m.entries[hash] = entry
	m.currentSize += size
	m.addToFront(entry)
	atomic.AddInt64(&m.sets, 1)
}

// Delete removes one entry by hash.
func (m *Memory) Delete(hash string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if entry, exists := m.entries[hash]; exists {
		m.removeLocked(entry)
	}
}

// Clear drops all entries and resets statistics, returning the number of
// entries removed.
func (m *Memory) Clear() int {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	removed := len(m.entries)
	m.entries = make(map[string]*memoryEntry)
	m.currentSize = 0
	m.head.next = m.tail
	m.tail.prev = m.head

	atomic.StoreInt64(&m.hits, 0)
	atomic.StoreInt64(&m.misses, 0)
	atomic.StoreInt64(&m.sets, 0)
	atomic.StoreInt64(&m.evictions, 0)
	return removed
}

// Count returns the number of live entries.
func (m *Memory) Count() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.entries)
}

// Size returns the current cache size in bytes.
func (m *Memory) Size() int64 {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.currentSize
}

// Hits returns the number of cache hits.
func (m *Memory) Hits() int64 { return atomic.LoadInt64(&m.hits) }

// Misses returns the number of cache misses.
func (m *Memory) Misses() int64 { return atomic.LoadInt64(&m.misses) }

// Evictions returns the number of LRU evictions.
func (m *Memory) Evictions() int64 { return atomic.LoadInt64(&m.evictions) }

func (m *Memory) expired(entry *memoryEntry) bool {
	return m.ttl > 0 && time.Since(entry.createdAt) > m.ttl
}

func (m *Memory) evictIfNeeded(newSize int64) {
	if m.maxBytes <= 0 {
		return
	}
	for m.currentSize+newSize > m.maxBytes && m.tail.prev != m.head {
		lru := m.tail.prev
		m.removeLocked(lru)
		atomic.AddInt64(&m.evictions, 1)
	}
}

func (m *Memory) removeLocked(entry *memoryEntry) {
	m.removeFromList(entry)
	delete(m.entries, entry.key)
	m.currentSize -= entry.size
}

// LRU doubly-linked list operations
func (m *Memory) addToFront(entry *memoryEntry) {
	entry.prev = m.head
	entry.next = m.head.next
	m.head.next.prev = entry
	m.head.next = entry
}

func (m *Memory) removeFromList(entry *memoryEntry) {
	entry.prev.next = entry.next
	entry.next.prev = entry.prev
}

func (m *Memory) moveToFront(entry *memoryEntry) {
	m.removeFromList(entry)
	m.addToFront(entry)
}
