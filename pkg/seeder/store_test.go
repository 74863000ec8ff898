package seeder

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/WebFirstLanguage/brisby/pkg/content"
)

func TestAddFileAndGetChunk(t *testing.T) {
	srcDir := t.TempDir()
	storeDir := t.TempDir()

	path := filepath.Join(srcDir, "hello.txt")
	input := []byte("Hello, Brisby! This is integration test content.")
	if err := os.WriteFile(path, input, 0o644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}

	store := NewStore(storeDir)
	metadata, err := store.AddFile(path)
	if err != nil {
		t.Fatalf("AddFile: %v", err)
	}

	chunk, ok := store.GetChunk(metadata.ContentHash, 0)
	if !ok {
		t.Fatal("expected chunk 0 to be present")
	}
	if string(chunk) != string(input) {
		t.Fatalf("chunk data mismatch: got %q", chunk)
	}

	metaFile := filepath.Join(storeDir, metadata.ContentHash.String(), "metadata.json")
	if _, err := os.Stat(metaFile); err != nil {
		t.Fatalf("expected metadata.json to be written: %v", err)
	}
	chunkFile := filepath.Join(storeDir, metadata.ContentHash.String(), "chunk_000000")
	if _, err := os.Stat(chunkFile); err != nil {
		t.Fatalf("expected chunk_000000 to be written: %v", err)
	}
}

func TestLoadAllRoundTrip(t *testing.T) {
	srcDir := t.TempDir()
	storeDir := t.TempDir()

	path := filepath.Join(srcDir, "data.bin")
	if err := os.WriteFile(path, []byte("some bytes to chunk"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	store1 := NewStore(storeDir)
	metadata, err := store1.AddFile(path)
	if err != nil {
		t.Fatalf("AddFile: %v", err)
	}

	store2 := NewStore(storeDir)
	n, err := store2.LoadAll()
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 file loaded, got %d", n)
	}

	chunk, ok := store2.GetChunk(metadata.ContentHash, 0)
	if !ok || len(chunk) == 0 {
		t.Fatal("expected chunk to be loaded from disk")
	}
}

func TestGetChunkMissing(t *testing.T) {
	store := NewStore(t.TempDir())
	_, ok := store.GetChunk(content.ContentHash{}, 0)
	if ok {
		t.Fatal("expected miss on empty store")
	}
}

func TestLoadFileMissingReturnsFalse(t *testing.T) {
	store := NewStore(t.TempDir())
	ok, err := store.LoadFile(content.ContentHash{1, 2, 3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("expected LoadFile to report false for missing metadata")
	}
}
