// Package localindex is the client's own SQLite FTS index over files it
// is sharing, distinct from pkg/indexprovider's network-facing store, so
// `brisby list` and a local-first `brisby search` never need a mixnet
// round trip. Supplemented from original_source's
// brisby-client/src/local_index.rs; built on the same database/sql +
// glebarez/sqlite idiom as pkg/indexprovider.
package localindex

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/glebarez/sqlite"

	"github.com/WebFirstLanguage/brisby/pkg/content"
	"github.com/WebFirstLanguage/brisby/pkg/wire"
)

// Index is the client-local store of files this node shares.
type Index struct {
	db *sql.DB
}

// Open creates or opens the local index database at path.
func Open(path string) (*Index, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("localindex: mkdir %s: %w", dir, err)
		}
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("localindex: open %s: %w", path, err)
	}
	if err := initSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Index{db: db}, nil
}

func initSchema(db *sql.DB) error {
	_, err := db.Exec(`
CREATE TABLE IF NOT EXISTS files (
	content_hash  BLOB PRIMARY KEY,
	filename      TEXT NOT NULL,
	size          INTEGER NOT NULL,
	chunk_count   INTEGER NOT NULL,
	keywords      TEXT NOT NULL,
	created_at    INTEGER NOT NULL,
	metadata_json TEXT NOT NULL
);

CREATE VIRTUAL TABLE IF NOT EXISTS files_fts USING fts5(
	filename,
	keywords,
	content='files',
	content_rowid='rowid'
);

CREATE TRIGGER IF NOT EXISTS files_ai AFTER INSERT ON files BEGIN
	INSERT INTO files_fts(rowid, filename, keywords)
	VALUES (new.rowid, new.filename, new.keywords);
END;

CREATE TRIGGER IF NOT EXISTS files_ad AFTER DELETE ON files BEGIN
	INSERT INTO files_fts(files_fts, rowid, filename, keywords)
	VALUES ('delete', old.rowid, old.filename, old.keywords);
END;

CREATE TRIGGER IF NOT EXISTS files_au AFTER UPDATE ON files BEGIN
	INSERT INTO files_fts(files_fts, rowid, filename, keywords)
	VALUES ('delete', old.rowid, old.filename, old.keywords);
	INSERT INTO files_fts(rowid, filename, keywords)
	VALUES (new.rowid, new.filename, new.keywords);
END;
`)
	if err != nil {
		return fmt.Errorf("localindex: init schema: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (idx *Index) Close() error {
	return idx.db.Close()
}

// Add records a shared file's metadata, upserting on content hash. The
// upsert preserves row identity the same way pkg/indexprovider's does,
// so the update trigger (not the delete trigger) refreshes the FTS
// mirror.
func (idx *Index) Add(meta *content.FileMetadata) error {
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("localindex: marshal metadata: %w", err)
	}
	keywords := strings.Join(meta.Keywords, " ")
	_, err = idx.db.Exec(`
INSERT INTO files (content_hash, filename, size, chunk_count, keywords, created_at, metadata_json)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(content_hash) DO UPDATE SET
	filename=excluded.filename,
	size=excluded.size,
	chunk_count=excluded.chunk_count,
	keywords=excluded.keywords,
	created_at=excluded.created_at,
	metadata_json=excluded.metadata_json
`, meta.ContentHash[:], meta.Filename, meta.Size, meta.ChunkCount(), keywords, meta.CreatedAt, string(metaJSON))
	if err != nil {
		return fmt.Errorf("localindex: add %s: %w", meta.ContentHash, err)
	}
	return nil
}

// Get returns the metadata for hash, or false if absent.
func (idx *Index) Get(hash content.ContentHash) (*content.FileMetadata, bool, error) {
	var metaJSON string
	err := idx.db.QueryRow(`SELECT metadata_json FROM files WHERE content_hash = ?`, hash[:]).Scan(&metaJSON)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("localindex: get %s: %w", hash, err)
	}
	var meta content.FileMetadata
	if err := json.Unmarshal([]byte(metaJSON), &meta); err != nil {
		return nil, false, fmt.Errorf("localindex: unmarshal metadata: %w", err)
	}
	return &meta, true, nil
}

// Remove deletes hash from the index, reporting whether a row was
// removed.
func (idx *Index) Remove(hash content.ContentHash) (bool, error) {
	res, err := idx.db.Exec(`DELETE FROM files WHERE content_hash = ?`, hash[:])
	if err != nil {
		return false, fmt.Errorf("localindex: remove %s: %w", hash, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// List returns every file's metadata currently in the index.
func (idx *Index) List() ([]*content.FileMetadata, error) {
	rows, err := idx.db.Query(`SELECT metadata_json FROM files ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("localindex: list: %w", err)
	}
	defer rows.Close()

	var out []*content.FileMetadata
	for rows.Next() {
		var metaJSON string
		if err := rows.Scan(&metaJSON); err != nil {
			return nil, fmt.Errorf("localindex: scan: %w", err)
		}
		var meta content.FileMetadata
		if err := json.Unmarshal([]byte(metaJSON), &meta); err != nil {
			return nil, fmt.Errorf("localindex: unmarshal metadata: %w", err)
		}
		out = append(out, &meta)
	}
	return out, rows.Err()
}

// Search ranks local files by BM25 relevance against query. Local
// results never carry a seeder list; the client itself is the seeder.
func (idx *Index) Search(query string, maxResults uint32) ([]wire.SearchResult, error) {
	if maxResults == 0 {
		maxResults = 20
	}
	rows, err := idx.db.Query(`
SELECT f.content_hash, f.filename, f.size, f.chunk_count, bm25(files_fts) AS rank
FROM files_fts
JOIN files f ON f.rowid = files_fts.rowid
WHERE files_fts MATCH ?
ORDER BY rank
LIMIT ?
`, query, maxResults)
	if err != nil {
		return nil, fmt.Errorf("localindex: search: %w", err)
	}
	defer rows.Close()

	var out []wire.SearchResult
	for rows.Next() {
		var hashBytes []byte
		var r wire.SearchResult
		var rank float64
		if err := rows.Scan(&hashBytes, &r.Filename, &r.Size, &r.ChunkCount, &rank); err != nil {
			return nil, fmt.Errorf("localindex: scan: %w", err)
		}
		copy(r.ContentHash[:], hashBytes)
		r.Relevance = float32(-rank)
		out = append(out, r)
	}
	return out, rows.Err()
}
