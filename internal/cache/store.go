package cache

// Store is the Tier-2 durable cache, keyed by template name plus content
// hash. Implementations must make writes atomic from a reader's perspective:
// a concurrent Get never observes a partially written entry.
type Store interface {
	// Get returns the compiled content for (name, hash), or a miss.
	Get(name, hash string) (string, bool)
	// Set durably stores compiled content for (name, hash).
	Set(name, hash, content string) error
	// Invalidate removes all entries for one template name and returns
	// how many were removed.
	Invalidate(name string) int
	// Clear removes every entry and returns how many were removed.
	Clear() int
	// IsWritable reports whether the store can currently accept writes.
	IsWritable() bool
	// Count returns the number of stored entries.
	Count() int
	// SweepExpired removes entries past their TTL and returns how many
	// were removed. A store with no TTL removes nothing.
	SweepExpired() int
	// Close releases store resources.
	Close() error
}
