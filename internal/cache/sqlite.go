package cache

import (
	"database/sql"
	"fmt"
	"time"

	// SQLite driver
	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS weft_cache (
	name       TEXT    NOT NULL,
	hash       TEXT    NOT NULL,
	content    TEXT    NOT NULL,
	created_at INTEGER NOT NULL,
	PRIMARY KEY (name, hash)
)`

// SQLite is a database-backed Store. Writes are transactional, which gives
// readers the same never-see-a-partial-entry guarantee the disk store gets
// from its atomic rename.
type SQLite struct {
	db  *sql.DB
	ttl time.Duration
}

// NewSQLite opens (and if needed creates) the cache database at path.
// ttl of zero disables expiry.
func NewSQLite(path string, ttl time.Duration) (*SQLite, error) {
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening cache database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging cache database: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating cache schema: %w", err)
	}
	return &SQLite{db: db, ttl: ttl}, nil
}

// Get returns the entry for (name, hash), honoring the TTL.
func (s *SQLite) Get(name, hash string) (string, bool) {
	var content string
	var createdAt int64
	err := s.db.QueryRow(
		`SELECT content, created_at FROM weft_cache WHERE name = ? AND hash = ?`,
		name, hash,
	).Scan(&content, &createdAt)
	if err != nil {
		return "", false
	}
	if s.ttl > 0 && time.Since(time.Unix(createdAt, 0)) > s.ttl {
		_, _ = s.db.Exec(`DELETE FROM weft_cache WHERE name = ? AND hash = ?`, name, hash)
		return "", false
	}
	return content, true
}

// Set stores the entry, replacing any previous content for the same key.
func (s *SQLite) Set(name, hash, content string) error {
	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO weft_cache (name, hash, content, created_at) VALUES (?, ?, ?, ?)`,
		name, hash, content, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("storing cache entry: %w", err)
	}
	return nil
}

// Invalidate removes every entry for one template name.
func (s *SQLite) Invalidate(name string) int {
	res, err := s.db.Exec(`DELETE FROM weft_cache WHERE name = ?`, name)
	if err != nil {
		return 0
	}
	n, _ := res.RowsAffected()
	return int(n)
}

// Clear removes every entry.
func (s *SQLite) Clear() int {
	res, err := s.db.Exec(`DELETE FROM weft_cache`)
	if err != nil {
		return 0
	}
	n, _ := res.RowsAffected()
	return int(n)
}

// IsWritable probes with a no-op write, which fails on a read-only database.
func (s *SQLite) IsWritable() bool {
	_, err := s.db.Exec(`UPDATE weft_cache SET content = content WHERE 0`)
	return err == nil
}

// Count returns the number of stored entries.
func (s *SQLite) Count() int {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM weft_cache`).Scan(&n); err != nil {
		return 0
	}
	return n
}

// SweepExpired removes entries past the TTL.
func (s *SQLite) SweepExpired() int {
	if s.ttl == 0 {
		return 0
	}
	cutoff := time.Now().Add(-s.ttl).Unix()
	res, err := s.db.Exec(`DELETE FROM weft_cache WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0
	}
	n, _ := res.RowsAffected()
	return int(n)
}

// Close closes the database.
func (s *SQLite) Close() error {
	return s.db.Close()
}

var _ Store = (*SQLite)(nil)
