// Package seeder implements the seeder role: an on-disk chunk store and
// a request loop that answers ChunkRequest and PingRequest messages over
// the transport.
package seeder

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/WebFirstLanguage/brisby/pkg/brisbyerr"
	"github.com/WebFirstLanguage/brisby/pkg/content"
)

// chunkFileName returns the zero-padded chunk file name for index, e.g.
// chunk_000003.
func chunkFileName(index uint32) string {
	return fmt.Sprintf("chunk_%06d", index)
}

// Store is the on-disk chunk store described by spec.md §4.4:
// <storage_dir>/<hex(content_hash)>/metadata.json plus per-chunk files,
// mirrored by an in-memory cache guarded by a reader-writer lock. Reads
// (GetChunk, GetMetadata, ListFiles) take the read lock; writes
// (AddFile, LoadFile, LoadAll) take the write lock.
type Store struct {
	mu         sync.RWMutex
	storageDir string
	metadata   map[content.ContentHash]*content.FileMetadata
	chunks     map[content.ContentHash]map[uint32][]byte
}

// NewStore creates a Store rooted at storageDir. The directory is not
// created until AddFile or LoadAll is called.
func NewStore(storageDir string) *Store {
	return &Store{
		storageDir: storageDir,
		metadata:   make(map[content.ContentHash]*content.FileMetadata),
		chunks:     make(map[content.ContentHash]map[uint32][]byte),
	}
}

func (s *Store) dirFor(hash content.ContentHash) string {
	return filepath.Join(s.storageDir, hex.EncodeToString(hash[:]))
}

// AddFile chunks path (§4.1), persists metadata.json and every chunk
// file, and updates the in-memory caches. Idempotent by content hash:
// re-adding the same file overwrites it on disk.
func (s *Store) AddFile(path string) (*content.FileMetadata, error) {
	metadata, chunks, err := content.ChunkFile(path)
	if err != nil {
		return nil, err
	}

	dir := s.dirFor(metadata.ContentHash)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, brisbyerr.IO("failed to create chunk directory", err)
	}

	data, err := json.MarshalIndent(metadata, "", "  ")
	if err != nil {
		return nil, brisbyerr.InvalidData("failed to marshal metadata")
	}
	if err := os.WriteFile(filepath.Join(dir, "metadata.json"), data, 0o644); err != nil {
		return nil, brisbyerr.IO("failed to write metadata.json", err)
	}

	for i, chunk := range chunks {
		name := chunkFileName(uint32(i))
		if err := os.WriteFile(filepath.Join(dir, name), chunk, 0o644); err != nil {
			return nil, brisbyerr.IO(fmt.Sprintf("failed to write %s", name), err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.metadata[metadata.ContentHash] = metadata
	byIndex := make(map[uint32][]byte, len(chunks))
	for i, chunk := range chunks {
		byIndex[uint32(i)] = chunk
	}
	s.chunks[metadata.ContentHash] = byIndex

	return metadata, nil
}

// LoadFile reads metadata.json and every chunk_NNNNNN file for hash from
// disk into the caches. Returns false if metadata.json is absent.
func (s *Store) LoadFile(hash content.ContentHash) (bool, error) {
	dir := s.dirFor(hash)
	data, err := os.ReadFile(filepath.Join(dir, "metadata.json"))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, brisbyerr.IO("failed to read metadata.json", err)
	}

	var metadata content.FileMetadata
	if err := json.Unmarshal(data, &metadata); err != nil {
		return false, brisbyerr.InvalidData("failed to parse metadata.json")
	}

	byIndex := make(map[uint32][]byte, len(metadata.Chunks))
	for _, info := range metadata.Chunks {
		chunkData, err := os.ReadFile(filepath.Join(dir, chunkFileName(info.Index)))
		if err != nil {
			return false, brisbyerr.IO(fmt.Sprintf("failed to read chunk %d", info.Index), err)
		}
		byIndex[info.Index] = chunkData
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.metadata[hash] = &metadata
	s.chunks[hash] = byIndex
	return true, nil
}

// LoadAll scans storageDir for hex-named subdirectories and attempts
// LoadFile for each, returning the count successfully loaded. Creates
// storageDir if it doesn't exist yet.
func (s *Store) LoadAll() (int, error) {
	if err := os.MkdirAll(s.storageDir, 0o755); err != nil {
		return 0, brisbyerr.IO("failed to create storage directory", err)
	}

	entries, err := os.ReadDir(s.storageDir)
	if err != nil {
		return 0, brisbyerr.IO("failed to list storage directory", err)
	}

	loaded := 0
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		hash, err := content.ParseContentHash(entry.Name())
		if err != nil {
			continue
		}
		ok, err := s.LoadFile(hash)
		if err != nil {
			return loaded, err
		}
		if ok {
			loaded++
		}
	}
	return loaded, nil
}

// GetChunk returns chunk index of hash from the in-memory cache.
func (s *Store) GetChunk(hash content.ContentHash, index uint32) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	byIndex, ok := s.chunks[hash]
	if !ok {
		return nil, false
	}
	data, ok := byIndex[index]
	return data, ok
}

// GetMetadata returns the cached metadata for hash.
func (s *Store) GetMetadata(hash content.ContentHash) (*content.FileMetadata, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.metadata[hash]
	return m, ok
}

// ListFiles returns the metadata of every file currently cached.
func (s *Store) ListFiles() []*content.FileMetadata {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*content.FileMetadata, 0, len(s.metadata))
	for _, m := range s.metadata {
		out = append(out, m)
	}
	return out
}
