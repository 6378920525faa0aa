package types

import "time"

// TemplateStatus describes the last known compile state of a template.
type TemplateStatus string

const (
	StatusPending  TemplateStatus = "pending"
	StatusCompiled TemplateStatus = "compiled"
	StatusFallback TemplateStatus = "fallback"
	StatusFailed   TemplateStatus = "failed"
)

// TemplateInfo holds registry metadata about one known template.
type TemplateInfo struct {
	Name       string         `json:"name" yaml:"name"`
	Path       string         `json:"path,omitempty" yaml:"path,omitempty"`
	Hash       string         `json:"hash,omitempty" yaml:"hash,omitempty"`
	Size       int64          `json:"size" yaml:"size"`
	ModTime    time.Time      `json:"mod_time,omitzero" yaml:"mod_time,omitempty"`
	CompiledAt time.Time      `json:"compiled_at,omitzero" yaml:"compiled_at,omitempty"`
	Status     TemplateStatus `json:"status" yaml:"status"`
	Error      string         `json:"error,omitempty" yaml:"error,omitempty"`
}

// CacheStats is a snapshot of both cache tiers.
type CacheStats struct {
	MemoryCount  int   `json:"memory_count" yaml:"memory_count"`
	MemoryBytes  int64 `json:"memory_bytes" yaml:"memory_bytes"`
	DiskCount    int   `json:"disk_count" yaml:"disk_count"`
	DiskWritable bool  `json:"disk_writable" yaml:"disk_writable"`
	Hits         int64 `json:"hits" yaml:"hits"`
	Misses       int64 `json:"misses" yaml:"misses"`
	Evictions    int64 `json:"evictions" yaml:"evictions"`
}
