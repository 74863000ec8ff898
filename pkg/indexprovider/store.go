// Package indexprovider implements the index provider role: a
// relational store with full-text search over published file metadata,
// deduplicated multi-seeder aggregation, and TTL-based expiry.
package indexprovider

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/glebarez/sqlite"

	"github.com/WebFirstLanguage/brisby/pkg/brisbyerr"
	"github.com/WebFirstLanguage/brisby/pkg/content"
	"github.com/WebFirstLanguage/brisby/pkg/wire"
)

// Store wraps a SQLite database holding the `entries`/`seeders` tables
// and their FTS5 mirror, following spec.md §4.6's two-table schema:
// entries never cascade-delete on republish (upsert preserves row
// identity so the FTS triggers fire as updates, not delete+insert).
type Store struct {
	db *sql.DB
}

// Open creates or opens the SQLite database at path, creating the
// parent directory and initializing schema if needed.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, brisbyerr.IO("failed to create index directory", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, brisbyerr.Database("failed to open index database", err)
	}
	if err := initSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// OpenInMemory opens a throwaway in-memory database, mainly for tests.
func OpenInMemory() (*Store, error) {
	db, err := sql.Open("sqlite", "file::memory:?_pragma=foreign_keys(1)&cache=shared")
	if err != nil {
		return nil, brisbyerr.Database("failed to open in-memory index database", err)
	}
	db.SetMaxOpenConns(1)
	if err := initSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS entries (
			content_hash BLOB PRIMARY KEY,
			filename TEXT NOT NULL,
			keywords TEXT NOT NULL,
			size INTEGER NOT NULL,
			chunk_count INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS seeders (
			content_hash BLOB NOT NULL,
			nym_address TEXT NOT NULL,
			published_at INTEGER NOT NULL,
			ttl INTEGER NOT NULL,
			PRIMARY KEY (content_hash, nym_address),
			FOREIGN KEY (content_hash) REFERENCES entries(content_hash) ON DELETE CASCADE
		)`,
		`CREATE VIRTUAL TABLE IF NOT EXISTS entries_fts USING fts5(
			filename, keywords,
			content='entries',
			content_rowid='rowid'
		)`,
		`CREATE TRIGGER IF NOT EXISTS entries_ai AFTER INSERT ON entries BEGIN
			INSERT INTO entries_fts(rowid, filename, keywords)
			VALUES (new.rowid, new.filename, new.keywords);
		END`,
		`CREATE TRIGGER IF NOT EXISTS entries_ad AFTER DELETE ON entries BEGIN
			INSERT INTO entries_fts(entries_fts, rowid, filename, keywords)
			VALUES ('delete', old.rowid, old.filename, old.keywords);
		END`,
		`CREATE TRIGGER IF NOT EXISTS entries_au AFTER UPDATE ON entries BEGIN
			INSERT INTO entries_fts(entries_fts, rowid, filename, keywords)
			VALUES ('delete', old.rowid, old.filename, old.keywords);
			INSERT INTO entries_fts(rowid, filename, keywords)
			VALUES (new.rowid, new.filename, new.keywords);
		END`,
		`CREATE INDEX IF NOT EXISTS idx_seeders_published_at ON seeders(published_at)`,
		`CREATE INDEX IF NOT EXISTS idx_seeders_ttl ON seeders(ttl)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return brisbyerr.Database("failed to initialize index schema", err)
		}
	}
	return nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Upsert inserts or updates entry's `entries` row and the
// `(content_hash, nym_address)` seeders row for publisher, refreshing
// published_at and ttl. It never deletes and reinserts the entries row,
// so co-publishers registered under other nym_addresses survive and the
// FTS mirror updates via the AFTER UPDATE trigger rather than a
// delete+insert pair.
func (s *Store) Upsert(entry IndexEntry, publisher string, publishedAt uint64) error {
	keywords := strings.Join(entry.Keywords, " ")

	if _, err := s.db.Exec(`
		INSERT INTO entries (content_hash, filename, keywords, size, chunk_count)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(content_hash) DO UPDATE SET
			filename = excluded.filename,
			keywords = excluded.keywords,
			size = excluded.size,
			chunk_count = excluded.chunk_count
	`, entry.ContentHash[:], entry.Filename, keywords, entry.Size, entry.ChunkCount); err != nil {
		return brisbyerr.Database("failed to upsert entry", err)
	}

	ttl := entry.TTL
	if ttl == 0 {
		ttl = DefaultTTLSeconds
	}
	if _, err := s.db.Exec(`
		INSERT INTO seeders (content_hash, nym_address, published_at, ttl)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(content_hash, nym_address) DO UPDATE SET
			published_at = excluded.published_at,
			ttl = excluded.ttl
	`, entry.ContentHash[:], publisher, publishedAt, ttl); err != nil {
		return brisbyerr.Database("failed to upsert seeder", err)
	}
	return nil
}

type candidate struct {
	hash       content.ContentHash
	filename   string
	size       uint64
	chunkCount uint32
	relevance  float32
}

// Search runs query against the FTS mirror with BM25 ranking, then
// aggregates each candidate's seeders, preserving the FTS rank order in
// the returned slice (spec.md §4.6 step 3).
func (s *Store) Search(query string, maxResults uint32) ([]wire.SearchResult, error) {
	rows, err := s.db.Query(`
		SELECT e.content_hash, e.filename, e.size, e.chunk_count, bm25(entries_fts) AS rank
		FROM entries_fts
		JOIN entries e ON e.rowid = entries_fts.rowid
		WHERE entries_fts MATCH ?
		ORDER BY rank
		LIMIT ?
	`, query, maxResults)
	if err != nil {
		return nil, brisbyerr.Database("failed to run search query", err)
	}
	defer rows.Close()

	var candidates []candidate
	for rows.Next() {
		var hashBytes []byte
		var c candidate
		var rank float64
		if err := rows.Scan(&hashBytes, &c.filename, &c.size, &c.chunkCount, &rank); err != nil {
			return nil, brisbyerr.Database("failed to scan search row", err)
		}
		copy(c.hash[:], hashBytes)
		c.relevance = float32(-rank)
		candidates = append(candidates, c)
	}
	if err := rows.Err(); err != nil {
		return nil, brisbyerr.Database("failed to iterate search rows", err)
	}

	results := make([]wire.SearchResult, 0, len(candidates))
	for _, c := range candidates {
		seederRows, err := s.db.Query(`SELECT nym_address FROM seeders WHERE content_hash = ? ORDER BY nym_address`, c.hash[:])
		if err != nil {
			return nil, brisbyerr.Database("failed to query seeders", err)
		}
		var addrs []string
		for seederRows.Next() {
			var addr string
			if err := seederRows.Scan(&addr); err != nil {
				seederRows.Close()
				return nil, brisbyerr.Database("failed to scan seeder row", err)
			}
			addrs = append(addrs, addr)
		}
		seederRows.Close()

		results = append(results, wire.SearchResult{
			ContentHash: c.hash,
			Filename:    c.filename,
			Size:        c.size,
			ChunkCount:  c.chunkCount,
			Relevance:   c.relevance,
			Seeders:     addrs,
		})
	}
	return results, nil
}

// CleanupExpired deletes every seeders row whose published_at+ttl is
// before now, then every entries row left with no seeders, and returns
// the total number of rows removed (spec.md §4.6 steps 1-2).
func (s *Store) CleanupExpired(now uint64) (int64, error) {
	res, err := s.db.Exec(`DELETE FROM seeders WHERE published_at + ttl < ?`, now)
	if err != nil {
		return 0, brisbyerr.Database("failed to delete expired seeders", err)
	}
	seedersRemoved, _ := res.RowsAffected()

	res, err = s.db.Exec(`DELETE FROM entries WHERE content_hash NOT IN (SELECT DISTINCT content_hash FROM seeders)`)
	if err != nil {
		return 0, brisbyerr.Database("failed to delete orphaned entries", err)
	}
	entriesRemoved, _ := res.RowsAffected()

	return seedersRemoved + entriesRemoved, nil
}

// Stats reports the current entry count and total declared file size.
func (s *Store) Stats() (Stats, error) {
	var stats Stats
	row := s.db.QueryRow(`SELECT COUNT(*), COALESCE(SUM(size), 0) FROM entries`)
	if err := row.Scan(&stats.EntryCount, &stats.TotalSizeBytes); err != nil {
		return Stats{}, brisbyerr.Database("failed to query stats", err)
	}
	return stats, nil
}
