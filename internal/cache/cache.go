package cache

import (
	"context"
	"sync"
	"time"

	"github.com/weftware/weft/internal/logging"
	"github.com/weftware/weft/internal/types"
)

// Tier identifies which cache tier served a lookup.
type Tier string

const (
	TierNone   Tier = ""
	TierMemory Tier = "memory"
	TierStore  Tier = "store"
)

// TemplateCache wires the Tier-1 memory cache in front of an optional
// durable store. It keeps a name-to-hashes index so invalidation by template
// name clears both tiers for that name only.
//
// Durable-store failures never propagate: a failed read is a miss and a
// failed write is logged at debug and dropped.
type TemplateCache struct {
	memory *Memory
	store  Store
	logger logging.Logger

	mutex sync.Mutex
	index map[string]map[string]struct{}
}

// New creates a template cache. store may be nil when only the memory tier
// is enabled.
func New(memory *Memory, store Store, logger logging.Logger) *TemplateCache {
	if memory == nil {
		memory = NewMemory(0, 0)
	}
	return &TemplateCache{
		memory: memory,
		store:  store,
		logger: logger,
		index:  make(map[string]map[string]struct{}),
	}
}

// Get looks up compiled content for (name, hash), memory tier first. A
// durable-store hit populates the memory tier on the way out.
func (tc *TemplateCache) Get(name, hash string) (string, Tier, bool) {
	if content, ok := tc.memory.Get(hash); ok {
		return content, TierMemory, true
	}
	if tc.store == nil {
		return "", TierNone, false
	}
	content, ok := tc.store.Get(name, hash)
	if !ok {
		return "", TierNone, false
	}
	tc.memory.Set(hash, content)
	tc.remember(name, hash)
	return content, TierStore, true
}

// Set stores compiled content in both tiers. The durable write is
// best-effort.
func (tc *TemplateCache) Set(ctx context.Context, name, hash, content string) {
	tc.memory.Set(hash, content)
	tc.remember(name, hash)

	if tc.store == nil {
		return
	}
	if err := tc.store.Set(name, hash, content); err != nil && tc.logger != nil {
		tc.logger.Debug(ctx, "durable cache write failed, continuing without it",
			"template", name, "hash", hash, "error", err.Error())
	}
}

// Invalidate removes all entries for one template name from both tiers and
// returns the number of durable entries removed.
func (tc *TemplateCache) Invalidate(name string) int {
	tc.mutex.Lock()
	for hash := range tc.index[name] {
		tc.memory.Delete(hash)
	}
	delete(tc.index, name)
	tc.mutex.Unlock()

	if tc.store == nil {
		return 0
	}
	return tc.store.Invalidate(name)
}

// Clear empties both tiers and returns the total number of entries removed.
func (tc *TemplateCache) Clear() int {
	tc.mutex.Lock()
	tc.index = make(map[string]map[string]struct{})
	tc.mutex.Unlock()

	removed := tc.memory.Clear()
	if tc.store != nil {
		removed += tc.store.Clear()
	}
	return removed
}

// SweepExpired removes expired durable entries.
func (tc *TemplateCache) SweepExpired() int {
	if tc.store == nil {
		return 0
	}
	return tc.store.SweepExpired()
}

// Stats returns a snapshot of both tiers.
func (tc *TemplateCache) Stats() types.CacheStats {
	stats := types.CacheStats{
		MemoryCount: tc.memory.Count(),
		MemoryBytes: tc.memory.Size(),
		Hits:        tc.memory.Hits(),
		Misses:      tc.memory.Misses(),
		Evictions:   tc.memory.Evictions(),
	}
	if tc.store != nil {
		stats.DiskCount = tc.store.Count()
		stats.DiskWritable = tc.store.IsWritable()
	}
	return stats
}

// Close releases the durable store.
func (tc *TemplateCache) Close() error {
	if tc.store == nil {
		return nil
	}
	return tc.store.Close()
}

func (tc *TemplateCache) remember(name, hash string) {
	tc.mutex.Lock()
	defer tc.mutex.Unlock()
	hashes, ok := tc.index[name]
	if !ok {
		hashes = make(map[string]struct{})
		tc.index[name] = hashes
	}
	hashes[hash] = struct{}{}
}

// NewMemoryOnly is a convenience constructor for an execution-local cache
// with no durable tier, used by tests and by configurations with caching
// disabled.
func NewMemoryOnly(maxBytes int64, ttl time.Duration) *TemplateCache {
	return New(NewMemory(maxBytes, ttl), nil, nil)
}
