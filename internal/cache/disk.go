package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const entryExt = ".tpl"

// Disk is a filesystem-backed Store. Each template name gets its own
// subdirectory (sanitized, with an FNV suffix against collisions) holding
// one <hash>.tpl file per content hash. Writes land in a temporary file in
// the cache root and are renamed into place, so readers either see the
// previous entry or the complete new one, never a partial write.
type Disk struct {
	root string
	ttl  time.Duration
}

// NewDisk creates a disk store rooted at dir. ttl of zero disables expiry.
func NewDisk(dir string, ttl time.Duration) (*Disk, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}
	return &Disk{root: dir, ttl: ttl}, nil
}

// Get reads the entry for (name, hash). Entries older than the TTL are
// treated as misses and removed best-effort.
func (d *Disk) Get(name, hash string) (string, bool) {
	path := d.entryPath(name, hash)
	info, err := os.Stat(path)
	if err != nil {
		return "", false
	}
	if d.ttl > 0 && time.Since(info.ModTime()) > d.ttl {
		_ = os.Remove(path)
		return "", false
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return "", false
	}
	return string(content), true
}

// Set writes the entry atomically: temp file in the cache root, then rename.
func (d *Disk) Set(name, hash, content string) error {
	dir := d.nameDir(name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating entry directory: %w", err)
	}

	tmp, err := os.CreateTemp(d.root, "weft-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp entry: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.WriteString(content); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("writing temp entry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("closing temp entry: %w", err)
	}
	if err := os.Rename(tmpPath, filepath.Join(dir, hash+entryExt)); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("publishing entry: %w", err)
	}
	return nil
}

// Invalidate removes every entry for one template name.
func (d *Disk) Invalidate(name string) int {
	dir := d.nameDir(name)
	removed := countEntries(dir)
	_ = os.RemoveAll(dir)
	return removed
}

// Clear removes every entry in the store.
func (d *Disk) Clear() int {
	removed := 0
	dirs, err := os.ReadDir(d.root)
	if err != nil {
		return 0
	}
	for _, entry := range dirs {
		path := filepath.Join(d.root, entry.Name())
		if entry.IsDir() {
			removed += countEntries(path)
			_ = os.RemoveAll(path)
			continue
		}
		// Stray temp files from interrupted writes.
		if strings.HasSuffix(entry.Name(), ".tmp") {
			_ = os.Remove(path)
		}
	}
	return removed
}

// IsWritable probes the cache root with a create-and-remove round trip.
func (d *Disk) IsWritable() bool {
	probe, err := os.CreateTemp(d.root, "weft-probe-*")
	if err != nil {
		return false
	}
	name := probe.Name()
	_ = probe.Close()
	_ = os.Remove(name)
	return true
}

// Count returns the number of stored entries.
func (d *Disk) Count() int {
	total := 0
	dirs, err := os.ReadDir(d.root)
	if err != nil {
		return 0
	}
	for _, entry := range dirs {
		if entry.IsDir() {
			total += countEntries(filepath.Join(d.root, entry.Name()))
		}
	}
	return total
}

// SweepExpired removes entries past the TTL.
func (d *Disk) SweepExpired() int {
	if d.ttl == 0 {
		return 0
	}
	removed := 0
	cutoff := time.Now().Add(-d.ttl)
	_ = filepath.Walk(d.root, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() || !strings.HasSuffix(path, entryExt) {
			return nil
		}
		if info.ModTime().Before(cutoff) {
			if os.Remove(path) == nil {
				removed++
			}
		}
		return nil
	})
	return removed
}

// Close is a no-op for the disk store.
func (d *Disk) Close() error { return nil }

func (d *Disk) nameDir(name string) string {
	return filepath.Join(d.root, sanitizeName(name)+"-"+nameDigest(name))
}

func (d *Disk) entryPath(name, hash string) string {
	return filepath.Join(d.nameDir(name), hash+entryExt)
}

// sanitizeName keeps template names filesystem-safe; the FNV suffix keeps
// distinct names distinct after sanitization.
func sanitizeName(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	s := b.String()
	if len(s) > 64 {
		s = s[:64]
	}
	return s
}

func countEntries(dir string) int {
	files, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}
	count := 0
	for _, f := range files {
		if !f.IsDir() && strings.HasSuffix(f.Name(), entryExt) {
			count++
		}
	}
	return count
}

var _ Store = (*Disk)(nil)
