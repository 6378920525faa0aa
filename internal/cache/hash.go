// Package cache implements the two-tier compiled-template cache: an
// execution-scoped in-memory LRU in front of a durable store (disk or
// SQLite), keyed by a fast content hash of the pre-compile source.
//
// Caching is an optimization, never a correctness requirement: every durable
// store failure degrades to a cache miss and is swallowed at this boundary.
package cache

import (
	"hash/crc32"
	"hash/fnv"
	"strconv"
)

// castagnoliTable is pre-computed for faster hash generation.
var castagnoliTable = crc32.MakeTable(crc32.Castagnoli)

// Hash returns a fast, non-cryptographic digest of template source. Any
// change to the source yields a different hash and therefore an automatic
// cache miss; no explicit dependency tracking is needed.
func Hash(source string) string {
	sum := crc32.Checksum([]byte(source), castagnoliTable)
	return strconv.FormatUint(uint64(sum), 16)
}

// nameDigest returns a short stable digest of a template name, used to keep
// sanitized names collision-free in store keyspaces.
func nameDigest(name string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(name))
	return strconv.FormatUint(uint64(h.Sum32()), 16)
}
